package common

import "sync"

// UserLocks hands out one mutex per user id so that balance and bucket
// read-modify-write cycles for the same user never interleave.
type UserLocks struct {
	locks map[int64]*sync.Mutex
	mu    sync.Mutex
}

// NewUserLocks creates an empty lock table.
func NewUserLocks() *UserLocks {
	return &UserLocks{locks: make(map[int64]*sync.Mutex)}
}

// Lock blocks until the user's lock is held and returns the matching unlock func.
func (l *UserLocks) Lock(userID int64) func() {
	l.mu.Lock()
	m, ok := l.locks[userID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[userID] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}
