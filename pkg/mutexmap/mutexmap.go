// Named non-blocking locks, e.g. one per volume
package mutexmap

import (
	"sync"
)

// Think of this as an infinite number of named bathroom stalls. Each named stall can only
// be occupied by one person. TryLock() won't open an occupied stall, so you have to
// decide to do something else. If you get in, call the returned func on your way out.
type M struct {
	held     map[string]bool
	masterMu sync.Mutex
}

func New() *M {
	return &M{
		held: map[string]bool{},
	}
}

// returns (nil, false) if key is already held. otherwise you have to use the returned
// func to release it. calling the release func more than once is harmless.
func (n *M) TryLock(key string) (func(), bool) {
	n.masterMu.Lock()
	defer n.masterMu.Unlock()

	if n.held[key] {
		return nil, false
	}

	n.held[key] = true

	var once sync.Once

	return func() {
		once.Do(func() {
			n.masterMu.Lock()
			defer n.masterMu.Unlock()

			delete(n.held, key)
		})
	}, true
}

func (n *M) Held(key string) bool {
	n.masterMu.Lock()
	defer n.masterMu.Unlock()

	return n.held[key]
}
