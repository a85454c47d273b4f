package usecase

import "sync/atomic"

// Generation is the cycle counter shared by the engine and the fan-out.
// Every new submission advances it; work tagged with an older value is stale.
type Generation struct {
	n atomic.Uint64
}

// Advance starts a new cycle and returns its token
func (g *Generation) Advance() uint64 {
	return g.n.Add(1)
}

// Current returns the token of the newest cycle (0 before the first one)
func (g *Generation) Current() uint64 {
	return g.n.Load()
}

// IsCurrent reports whether token still belongs to the newest cycle
func (g *Generation) IsCurrent(token uint64) bool {
	return token != 0 && g.n.Load() == token
}
