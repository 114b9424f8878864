package orchestrator

import "sync"

// keyedMutex serializes session-mutating calls per workspace. Calls for
// different workspaces proceed fully in parallel.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*wsLock
}

type wsLock struct {
	mu   sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: map[string]*wsLock{}}
}

// Lock acquires the workspace's mutex and returns its unlock func. Entries
// are dropped once the last holder releases, so the map does not grow with
// the number of workspaces ever seen.
func (km *keyedMutex) Lock(key string) func() {
	km.mu.Lock()
	l, ok := km.locks[key]
	if !ok {
		l = &wsLock{}
		km.locks[key] = l
	}
	l.refs++
	km.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		km.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(km.locks, key)
		}
		km.mu.Unlock()
	}
}
