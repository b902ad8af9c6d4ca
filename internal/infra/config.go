package infra

import (
	"fmt"
	"os"

	"github.com/holiman/uint256"
	"gopkg.in/yaml.v3"
)

// GenesisAccount은 기동 시 주입되는 계정 잔고입니다. Amounts are decimal
// strings; YAML integers cannot hold 256-bit values.
type GenesisAccount struct {
	Addr   string `yaml:"addr"`
	Tokens string `yaml:"tokens"`
	Wei    string `yaml:"wei"`
}

// Config는 애플리케이션의 모든 설정을 담습니다.
// LoadConfig로 로드된 후에 환경 변수를 통해 배포별 값을 덮어씁니다.
type Config struct {
	App struct {
		Name    string `yaml:"name"`
		Version string `yaml:"version"`
	} `yaml:"app"`

	Desk struct {
		Address   string `yaml:"address"`
		Owner     string `yaml:"owner"`
		BuyCost   string `yaml:"buy_cost"`
		SellValue string `yaml:"sell_value"`
		InboxSize int    `yaml:"inbox_size"`
	} `yaml:"desk"`

	Token struct {
		Address  string `yaml:"address"`
		Name     string `yaml:"name"`
		Symbol   string `yaml:"symbol"`
		Decimals uint8  `yaml:"decimals"`
	} `yaml:"token"`

	Genesis struct {
		Accounts []GenesisAccount `yaml:"accounts"`
	} `yaml:"genesis"`

	Journal struct {
		Path string `yaml:"path"`
	} `yaml:"journal"`

	Feed struct {
		Addr string `yaml:"addr"`
	} `yaml:"feed"`

	Metrics struct {
		Addr string `yaml:"addr"`
	} `yaml:"metrics"`

	Solvency struct {
		MinCoverageBps uint64 `yaml:"min_coverage_bps"`
	} `yaml:"solvency"`

	Sim struct {
		Enabled     bool   `yaml:"enabled"`
		Traders     int    `yaml:"traders"`
		IntervalMS  int    `yaml:"interval_ms"`
		Seed        int64  `yaml:"seed"`
		MaxSpendWei string `yaml:"max_spend_wei"`
	} `yaml:"sim"`

	Logging struct {
		Level string `yaml:"level"`
	} `yaml:"logging"`
}

// LoadConfig는 설정 파일을 읽고 파싱합니다.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	// 환경 변수 오버라이드 지원
	overrideWithEnv(&cfg)

	// 설정 유효성 검사
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Validate checks configuration validity
func (c *Config) Validate() error {
	// Desk
	if c.Desk.Address == "" || c.Desk.Owner == "" {
		return fmt.Errorf("desk address and owner are required")
	}
	if c.Desk.Address == c.Token.Address {
		return fmt.Errorf("desk and token cannot share address %s", c.Desk.Address)
	}
	if err := requireNonZeroAmount("desk.buy_cost", c.Desk.BuyCost); err != nil {
		return err
	}
	if err := requireNonZeroAmount("desk.sell_value", c.Desk.SellValue); err != nil {
		return err
	}
	if c.Desk.InboxSize <= 0 {
		return fmt.Errorf("desk inbox size must be positive")
	}

	// Token
	if c.Token.Address == "" {
		return fmt.Errorf("token address is required")
	}
	if c.Token.Decimals > 30 {
		return fmt.Errorf("token decimals %d exceed 30", c.Token.Decimals)
	}

	// Genesis
	for i, acct := range c.Genesis.Accounts {
		if acct.Addr == "" {
			return fmt.Errorf("genesis account %d has no address", i)
		}
		if _, err := parseAmountField(acct.Tokens); err != nil {
			return fmt.Errorf("genesis account %s tokens: %w", acct.Addr, err)
		}
		if _, err := parseAmountField(acct.Wei); err != nil {
			return fmt.Errorf("genesis account %s wei: %w", acct.Addr, err)
		}
	}

	// Sim
	if c.Sim.Enabled {
		if c.Sim.Traders <= 0 {
			return fmt.Errorf("sim traders must be positive")
		}
		if c.Sim.IntervalMS <= 0 {
			return fmt.Errorf("sim interval must be positive")
		}
		if _, err := parseAmountField(c.Sim.MaxSpendWei); err != nil {
			return fmt.Errorf("sim max_spend_wei: %w", err)
		}
	}

	return nil
}

func requireNonZeroAmount(field, s string) error {
	x, err := parseAmountField(s)
	if err != nil {
		return fmt.Errorf("%s: %w", field, err)
	}
	if x.IsZero() {
		return fmt.Errorf("%s must be at least 1", field)
	}
	return nil
}

// parseAmountField는 10진수 문자열 금액을 파싱합니다. 빈 값은 0입니다.
func parseAmountField(s string) (*uint256.Int, error) {
	if s == "" {
		return new(uint256.Int), nil
	}
	return uint256.FromDecimal(s)
}

// MustAmount parses a validated amount field. Call only after Validate.
func MustAmount(s string) *uint256.Int {
	x, err := parseAmountField(s)
	if err != nil {
		panic(fmt.Sprintf("CONFIG_BAD_AMOUNT: %q: %v", s, err))
	}
	return x
}

// overrideWithEnv는 환경 변수가 존재할 경우 설정 값을 덮어씁니다.
func overrideWithEnv(cfg *Config) {
	if path := os.Getenv("TOKENDESK_JOURNAL_PATH"); path != "" {
		cfg.Journal.Path = path
	}
	if addr := os.Getenv("TOKENDESK_FEED_ADDR"); addr != "" {
		cfg.Feed.Addr = addr
	}
	if addr := os.Getenv("TOKENDESK_METRICS_ADDR"); addr != "" {
		cfg.Metrics.Addr = addr
	}
	if level := os.Getenv("TOKENDESK_LOG_LEVEL"); level != "" {
		cfg.Logging.Level = level
	}
}
