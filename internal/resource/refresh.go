package resource

import (
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// Refresher runs one periodic refresh per resource name. Ticks are handed to
// post so the refresh runs on the caller's event loop.
type Refresher struct {
	mu     sync.Mutex
	timers map[string]*refreshTimer
	post   func(func())
}

type refreshTimer struct {
	token ulid.ULID
	stop  chan struct{}
}

// NewRefresher creates a refresher. A nil post runs callbacks directly on
// the ticker goroutine.
func NewRefresher(post func(func())) *Refresher {
	if post == nil {
		post = func(fn func()) { fn() }
	}
	return &Refresher{
		timers: make(map[string]*refreshTimer),
		post:   post,
	}
}

// Start schedules fn every interval under name, cancelling any earlier
// schedule for the same name. When fn returns an error the schedule cancels
// itself. The returned token identifies this schedule.
func (r *Refresher) Start(name string, every time.Duration, fn func() error) ulid.ULID {
	rt := &refreshTimer{
		token: ulid.Make(),
		stop:  make(chan struct{}),
	}

	r.mu.Lock()
	if old, ok := r.timers[name]; ok {
		close(old.stop)
	}
	r.timers[name] = rt
	r.mu.Unlock()

	go func() {
		ticker := time.NewTicker(every)
		defer ticker.Stop()
		for {
			select {
			case <-rt.stop:
				return
			case <-ticker.C:
				r.post(func() {
					if err := fn(); err != nil {
						r.stopToken(name, rt.token)
					}
				})
			}
		}
	}()
	return rt.token
}

// Stop cancels the schedule for name.
func (r *Refresher) Stop(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rt, ok := r.timers[name]; ok {
		close(rt.stop)
		delete(r.timers, name)
	}
}

// StopAll cancels every schedule.
func (r *Refresher) StopAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for name, rt := range r.timers {
		close(rt.stop)
		delete(r.timers, name)
	}
}

// Active reports whether name currently has a schedule.
func (r *Refresher) Active(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.timers[name]
	return ok
}

// stopToken cancels name only if it still belongs to token, so a failing
// old tick never cancels a newer schedule.
func (r *Refresher) stopToken(name string, token ulid.ULID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rt, ok := r.timers[name]
	if !ok || rt.token != token {
		return
	}
	close(rt.stop)
	delete(r.timers, name)
}
