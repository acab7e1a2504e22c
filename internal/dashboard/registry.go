package dashboard

import (
	"time"

	"finboard/internal/auth"
	"finboard/internal/cache"
)

// Registry hands out one Navigator per session. Idle navigators expire and
// the least recently used are evicted beyond the size limit.
type Registry struct {
	navigators *cache.LRUCache[*Navigator]
	now        func() time.Time
}

func NewRegistry(maxSessions int, idle time.Duration, now func() time.Time) *Registry {
	if now == nil {
		now = time.Now
	}
	return &Registry{
		navigators: cache.NewLRUCache[*Navigator](maxSessions, idle).WithClock(now),
		now:        now,
	}
}

// For returns the session's navigator, creating it on first use.
func (r *Registry) For(s auth.Session) *Navigator {
	return r.navigators.GetOrCreate(s.Key(), func() *Navigator {
		return NewNavigator(r.now)
	})
}

// Forget drops the session's navigator, e.g. on logout.
func (r *Registry) Forget(s auth.Session) {
	r.navigators.Delete(s.Key())
}

// Cleaner exposes the navigator cache to a cache.Manager sweep.
func (r *Registry) Cleaner() cache.Cleaner { return r.navigators }
