package lending

import "sync/atomic"

// opGuard is the operation-in-flight flag protecting mutating operations. It
// is set before any external transfer call and cleared on every exit path, so
// a transfer callback that re-enters a mutating operation fails immediately
// instead of interleaving reads and writes with the original operation.
type opGuard struct {
	inFlight atomic.Bool
}

func (g *opGuard) enter() error {
	if !g.inFlight.CompareAndSwap(false, true) {
		return ErrReentrantCall
	}
	return nil
}

func (g *opGuard) exit() {
	g.inFlight.Store(false)
}

// PauseView reports whether a named module flow is paused by the operator.
type PauseView interface {
	IsPaused(module string) bool
}

func guardPaused(p PauseView, module string) error {
	if p == nil || module == "" {
		return nil
	}
	if p.IsPaused(module) {
		return ErrModulePaused
	}
	return nil
}
