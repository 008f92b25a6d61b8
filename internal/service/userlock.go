package service

import "sync"

// userLocks serializes engine runs per user inside this process.
//
// The version check in SaveEngagement is what actually keeps two sessions
// from clobbering each other; the lock only stops a double-submitted login
// from burning its retries against itself. Entries are refcounted and
// dropped when the last holder unlocks, so the map stays the size of the
// set of users currently logging in.
type userLocks struct {
	mu    sync.Mutex
	locks map[string]*userLock
}

type userLock struct {
	mu   sync.Mutex
	refs int
}

func newUserLocks() *userLocks {
	return &userLocks{locks: make(map[string]*userLock)}
}

// lock blocks until userID is free and returns the matching unlock.
func (l *userLocks) lock(userID string) (unlock func()) {
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

// size is the number of users with a live entry.
func (l *userLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
