package services

import "sync"

const lockStripes = 64

// stripedMutex provides a mutex per chat without allocating one for
// every chat that ever existed. Two chats mapping to the same stripe
// may contend, which is harmless; two lockers of the same chat always
// do, which is the point.
type stripedMutex struct {
	stripes [lockStripes]sync.Mutex
}

func (m *stripedMutex) lock(key int64) func() {
	stripe := &m.stripes[uint64(key)%lockStripes]
	stripe.Lock()
	return stripe.Unlock
}
