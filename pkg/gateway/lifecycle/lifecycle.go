package lifecycle

import "sync/atomic"

// Lifecycle tracks whether the gateway is draining. During shutdown the
// server flips it so readiness checks fail and new calls are refused while
// in-flight calls finish.
type Lifecycle struct {
	draining atomic.Bool
}

func (l *Lifecycle) SetDraining(draining bool) {
	if l == nil {
		return
	}
	l.draining.Store(draining)
}

func (l *Lifecycle) IsDraining() bool {
	if l == nil {
		return false
	}
	return l.draining.Load()
}
