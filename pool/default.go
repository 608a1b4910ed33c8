package pool

import "sync"

var (
	defaultOnce sync.Once
	defaultPool *SlabPool
)

// Default returns a process-wide SlabPool so all decode pools share the
// same retained pixel slices instead of fragmenting allocations.
func Default() *SlabPool {
	defaultOnce.Do(func() {
		defaultPool = NewSlabPool(defaultPerClass)
	})
	return defaultPool
}
