package panel

import (
	"time"

	"github.com/oklog/ulid/v2"
)

// ZCounter hands out popup stacking levels. It never goes below zero.
type ZCounter struct {
	n int
}

// Alloc increments the counter and returns the new level.
func (z *ZCounter) Alloc() int {
	z.n++
	return z.n
}

// Release gives one level back.
func (z *ZCounter) Release() {
	if z.n > 0 {
		z.n--
	}
}

// Value returns the current count.
func (z *ZCounter) Value() int { return z.n }

// Scheduler runs fn once after d. The returned function cancels it.
type Scheduler interface {
	AfterFunc(d time.Duration, fn func()) (stop func() bool)
}

// LoopScheduler fires timers through Post so callbacks run on the owning
// event loop.
type LoopScheduler struct {
	Post func(func())
}

// AfterFunc implements Scheduler.
func (s LoopScheduler) AfterFunc(d time.Duration, fn func()) func() bool {
	post := s.Post
	if post == nil {
		post = func(f func()) { f() }
	}
	t := time.AfterFunc(d, func() { post(fn) })
	return t.Stop
}

type timer struct {
	token ulid.ULID
	stop  func() bool
}

// timers keeps one cancellable timer per name. A fire whose token no
// longer matches the registry is stale and ignored.
type timers struct {
	sched Scheduler
	m     map[string]timer
}

func newTimers(s Scheduler) *timers {
	return &timers{sched: s, m: make(map[string]timer)}
}

func (t *timers) schedule(name string, d time.Duration, fn func()) ulid.ULID {
	t.cancel(name)
	tok := ulid.Make()
	stop := t.sched.AfterFunc(d, func() {
		cur, ok := t.m[name]
		if !ok || cur.token != tok {
			return
		}
		delete(t.m, name)
		fn()
	})
	t.m[name] = timer{token: tok, stop: stop}
	return tok
}

func (t *timers) cancel(name string) {
	if cur, ok := t.m[name]; ok {
		cur.stop()
		delete(t.m, name)
	}
}

func (t *timers) cancelAll() {
	for name := range t.m {
		t.cancel(name)
	}
}

func (t *timers) pending(name string) bool {
	_, ok := t.m[name]
	return ok
}
