// Package access implements the owner/pause capability gate. The desk
// consults it at the top of every privileged or pause-sensitive
// operation instead of inheriting modifier behavior.
package access

import (
	"sync"

	"tokendesk/internal/domain"
)

// Guard holds the owner identity, the two-step ownership handshake and
// the pause flag. Reads are safe from any goroutine; mutations go
// through the engine like every other state change.
type Guard struct {
	mu      sync.RWMutex
	owner   string
	pending string
	paused  bool
}

// NewGuard creates a guard owned by owner, unpaused.
func NewGuard(owner string) *Guard {
	return &Guard{owner: owner}
}

var _ domain.AccessControl = (*Guard)(nil)

// Owner returns the current owner identity.
func (g *Guard) Owner() string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.owner
}

// PendingOwner returns the nominee of an open ownership offer, if any.
func (g *Guard) PendingOwner() string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.pending
}

// IsOwner reports whether caller is the owner.
func (g *Guard) IsOwner(caller string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return caller == g.owner
}

// Paused reports whether trading is suspended.
func (g *Guard) Paused() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.paused
}

// RequireOwner fails with ErrUnauthorized unless caller is the owner.
func (g *Guard) RequireOwner(caller string) error {
	if !g.IsOwner(caller) {
		return domain.ErrUnauthorized
	}
	return nil
}

// RequireRunning fails with ErrPaused while trading is suspended.
func (g *Guard) RequireRunning() error {
	if g.Paused() {
		return domain.ErrPaused
	}
	return nil
}

// RequirePaused fails with ErrNotPaused while trading is live.
func (g *Guard) RequirePaused() error {
	if !g.Paused() {
		return domain.ErrNotPaused
	}
	return nil
}

// Pause suspends trading. Owner-only; fails with ErrPaused when already
// suspended.
func (g *Guard) Pause(caller string) error {
	if err := g.RequireOwner(caller); err != nil {
		return err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.paused {
		return domain.ErrPaused
	}
	g.paused = true
	return nil
}

// Unpause resumes trading. Owner-only; fails with ErrNotPaused when not
// suspended.
func (g *Guard) Unpause(caller string) error {
	if err := g.RequireOwner(caller); err != nil {
		return err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.paused {
		return domain.ErrNotPaused
	}
	g.paused = false
	return nil
}

// TransferOwnership opens (or, with an empty nominee, cancels) an
// ownership offer. Nothing changes hands until the nominee accepts.
func (g *Guard) TransferOwnership(caller, nominee string) error {
	if err := g.RequireOwner(caller); err != nil {
		return err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.pending = nominee
	return nil
}

// AcceptOwnership completes the handshake: only the nominee may call it.
func (g *Guard) AcceptOwnership(caller string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if caller == "" || caller != g.pending {
		return domain.ErrNotPendingOwner
	}
	g.owner = g.pending
	g.pending = ""
	return nil
}

// Restore resets owner and pause state directly. Replay-only.
func (g *Guard) Restore(owner string, paused bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.owner = owner
	g.pending = ""
	g.paused = paused
}
