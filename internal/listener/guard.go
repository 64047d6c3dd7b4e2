package listener

import (
	"sync"
	"sync/atomic"
	"time"
)

// Guard is the shared block/unblock coordination between capture and
// playback. The playback collaborator blocks before speaking and unblocks
// after; while blocked the capture pipeline only monitors for barge-in.
//
// The blocked flag is atomic so the per-frame hot path never takes a lock;
// the reason string sits behind a short critical section. Mutations land at
// the next frame boundary on the processing path.
type Guard struct {
	blocked atomic.Bool

	mu          sync.Mutex
	reason      string
	settleDelay time.Duration
	settleTimer *time.Timer
}

// NewGuard creates a guard. settleDelay is waited out after Unblock before
// capture resumes, so the room's reverb tail is not mistaken for speech.
func NewGuard(settleDelay time.Duration) *Guard {
	return &Guard{settleDelay: settleDelay}
}

// Block suspends normal listening. Called by the playback collaborator
// immediately before audio output begins. A pending settle release is
// cancelled: playback restarting wins over a still-settling unblock.
func (g *Guard) Block(reason string) {
	g.mu.Lock()
	if g.settleTimer != nil {
		g.settleTimer.Stop()
		g.settleTimer = nil
	}
	g.reason = reason
	g.mu.Unlock()

	g.blocked.Store(true)
}

// Unblock schedules release after the settle delay. Called by the playback
// collaborator once output has finished.
func (g *Guard) Unblock() {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.settleTimer != nil {
		g.settleTimer.Stop()
	}
	if g.settleDelay <= 0 {
		g.release()
		return
	}
	g.settleTimer = time.AfterFunc(g.settleDelay, func() {
		g.mu.Lock()
		defer g.mu.Unlock()
		g.release()
	})
}

// ForceRelease clears the block immediately, bypassing the settle delay.
// Used when a barge-in fires: the user is already speaking, so there is
// nothing to settle.
func (g *Guard) ForceRelease() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.settleTimer != nil {
		g.settleTimer.Stop()
		g.settleTimer = nil
	}
	g.release()
}

// release must be called with g.mu held.
func (g *Guard) release() {
	g.settleTimer = nil
	g.reason = ""
	g.blocked.Store(false)
}

// Blocked reports whether capture is currently suspended. Lock-free.
func (g *Guard) Blocked() bool { return g.blocked.Load() }

// Reason returns the current block reason, empty when unblocked.
func (g *Guard) Reason() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.reason
}
