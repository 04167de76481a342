package service

import "sync"

// TimelineLocks serializes writes to one user's timeline. Manual appends
// and sync merges for the same user take the same lock; different users
// never contend.
//
// Entries are reference counted and removed when the last holder unlocks,
// so the map only holds users with a write in flight.
type TimelineLocks struct {
	mu    sync.Mutex
	locks map[string]*userLock
}

type userLock struct {
	mu   sync.Mutex
	refs int
}

func NewTimelineLocks() *TimelineLocks {
	return &TimelineLocks{locks: make(map[string]*userLock)}
}

// Lock blocks until userID's lock is held and returns the matching unlock.
// The returned function must be called exactly once.
func (l *TimelineLocks) Lock(userID string) (unlock func()) {
	l.mu.Lock()
	ul, ok := l.locks[userID]
	if !ok {
		ul = &userLock{}
		l.locks[userID] = ul
	}
	ul.refs++
	l.mu.Unlock()

	ul.mu.Lock()

	return func() {
		ul.mu.Unlock()

		l.mu.Lock()
		ul.refs--
		if ul.refs == 0 {
			delete(l.locks, userID)
		}
		l.mu.Unlock()
	}
}

// size reports how many users currently hold or wait on a lock.
func (l *TimelineLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
