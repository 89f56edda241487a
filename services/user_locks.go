package services

import (
	"match-chat/domain"
	"sync"
)

// userLocks is a mutex per user, entries are dropped once nobody holds or waits for them.
type userLocks struct {
	mu    sync.Mutex
	locks map[domain.UserID]*userLock
}

type userLock struct {
	sync.Mutex
	refs int
}

func newUserLocks() *userLocks {
	return &userLocks{locks: make(map[domain.UserID]*userLock)}
}

func (l *userLocks) lock(user domain.UserID) (unlock func()) {
	l.mu.Lock()
	entry, ok := l.locks[user]
	if !ok {
		entry = &userLock{}
		l.locks[user] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.Lock()
	return func() {
		entry.Unlock()
		l.mu.Lock()
		if entry.refs--; entry.refs == 0 {
			delete(l.locks, user)
		}
		l.mu.Unlock()
	}
}

func (l *userLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
