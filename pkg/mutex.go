package pkg

import "sync"

// HasLocker exposes the RWMutex guarding a shared store. The server wraps
// every dispatched action so concurrent connections serialize on it.
type HasLocker interface{ GetLocker() *sync.RWMutex }

// LockWrap runs f under the write lock.
func LockWrap(i HasLocker, f func()) {
	i.GetLocker().Lock()
	defer i.GetLocker().Unlock()
	f()
}

// RLockWrap runs f under the read lock; read-only actions share it.
func RLockWrap(i HasLocker, f func()) {
	i.GetLocker().RLock()
	defer i.GetLocker().RUnlock()
	f()
}
