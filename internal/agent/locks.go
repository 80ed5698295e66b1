// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package agent

import "sync"

// ClaimLocks serialises work on the same claim inside this process. Entries
// are reference counted and removed when the last holder unlocks.
type ClaimLocks struct {
	mu    sync.Mutex
	locks map[string]*claimLock
}

type claimLock struct {
	mu   sync.Mutex
	refs int
}

func NewClaimLocks() *ClaimLocks {
	return &ClaimLocks{locks: make(map[string]*claimLock)}
}

// Lock blocks until claimID is free and returns the matching unlock.
func (l *ClaimLocks) Lock(claimID string) (unlock func()) {
	l.mu.Lock()
	cl, ok := l.locks[claimID]
	if !ok {
		cl = &claimLock{}
		l.locks[claimID] = cl
	}
	cl.refs++
	l.mu.Unlock()

	cl.mu.Lock()

	var once sync.Once
	return func() {
		once.Do(func() {
			cl.mu.Unlock()
			l.mu.Lock()
			cl.refs--
			if cl.refs == 0 {
				delete(l.locks, claimID)
			}
			l.mu.Unlock()
		})
	}
}

// held returns the number of claims with a holder or waiter.
func (l *ClaimLocks) held() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
