package app

import "sync"

// SessionLocks serializes turns within one session. Context assembly
// reads the full history, so a second turn must wait until the prior
// turn finished persisting; distinct sessions never contend.
type SessionLocks struct {
	locks sync.Map // uint -> *sync.Mutex
}

func NewSessionLocks() *SessionLocks {
	return &SessionLocks{}
}

// Lock acquires the session's mutex and returns the unlock func.
func (l *SessionLocks) Lock(sessionID uint) func() {
	muAny, _ := l.locks.LoadOrStore(sessionID, &sync.Mutex{})
	mu := muAny.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}
