// Package session runs one panel: a single goroutine owns the display
// state, and everything that touches it (controller messages, viewer
// events, timer callbacks) is posted to that goroutine as a closure.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/amxpanel/amxpanel/internal/display"
	"github.com/amxpanel/amxpanel/internal/dispatch"
	"github.com/amxpanel/amxpanel/internal/dom"
	"github.com/amxpanel/amxpanel/internal/input"
	"github.com/amxpanel/amxpanel/internal/model"
	"github.com/amxpanel/amxpanel/internal/observability"
	"github.com/amxpanel/amxpanel/internal/panel"
	"github.com/amxpanel/amxpanel/internal/resource"
	"github.com/amxpanel/amxpanel/internal/transport"
)

var (
	ErrStopped = errors.New("session stopped")
	ErrRunning = errors.New("session already running")
)

// Options configures a Session.
type Options struct {
	PanelID    int    // overrides the project's panel ID when non-zero
	StartPage  string // overrides the project's start page
	ImageBase  string
	Compositor display.Compositor
	Metrics    *observability.MetricsCollector
	Logger     *observability.Logger
}

// Update is a rendered document published after a turn that changed it.
type Update struct {
	Version uint64 `json:"version"`
	HTML    string `json:"html"`
}

// Session wires the panel components around one event loop.
type Session struct {
	project *model.Project
	opts    Options
	log     *observability.Logger
	metrics *observability.MetricsCollector

	doc       *dom.Document
	panel     *panel.Panel
	disp      *dispatch.Dispatcher
	router    *input.Router
	refresher *resource.Refresher

	posts chan func()
	done  chan struct{}

	// conn is only touched on the loop goroutine.
	conn transport.Conn

	mu        sync.Mutex
	running   bool
	subs      map[int]chan Update
	nextSub   int
	published uint64
	last      Update
}

// New builds the panel for proj. Nothing runs until Run.
func New(proj *model.Project, opts Options) (*Session, error) {
	if err := proj.Validate(); err != nil {
		return nil, fmt.Errorf("session: %w", err)
	}
	if opts.Logger == nil {
		opts.Logger = observability.Discard()
	}
	if opts.Metrics == nil {
		opts.Metrics = observability.NewMetricsCollector(0)
	}
	if opts.PanelID == 0 {
		opts.PanelID = proj.PanelID
	}
	if opts.StartPage == "" {
		opts.StartPage = proj.Start
	}

	s := &Session{
		project: proj,
		opts:    opts,
		log:     opts.Logger,
		metrics: opts.Metrics,
		posts:   make(chan func(), 1024),
		done:    make(chan struct{}),
		subs:    make(map[int]chan Update),
	}

	idx := model.NewIndex(proj)
	s.doc = dom.NewDocument()
	eng := display.New(s.doc, idx, s.log)
	res := resource.NewTable()
	eng.SetResources(res)
	if opts.Compositor != nil {
		eng.SetCompositor(opts.Compositor)
	}
	if opts.ImageBase != "" {
		eng.SetImageBase(opts.ImageBase)
	}

	s.panel = panel.New(proj, idx, eng, s.log)
	s.panel.SetScheduler(panel.LoopScheduler{Post: s.Post})
	s.panel.SetMetrics(s.metrics)

	s.refresher = resource.NewRefresher(s.Post)
	res.SetRefresher(s.refresher)
	s.disp = dispatch.New(s.panel, res, s.refresher, s.metrics, s.log)
	s.router = input.New(s.panel, sender{s}, opts.PanelID, s.metrics, s.log)
	eng.SetBinder(s.router)
	return s, nil
}

// sender forwards router output to the current controller link.
type sender struct{ s *Session }

func (o sender) Send(ctx context.Context, msg string) error {
	if o.s.conn == nil {
		return transport.ErrNotConnected
	}
	return o.s.conn.Send(ctx, msg)
}

// Post queues fn to run on the loop. It drops fn once the session has
// stopped.
func (s *Session) Post(fn func()) {
	select {
	case s.posts <- fn:
	case <-s.done:
	}
}

// Do runs fn on the loop and waits for it.
func (s *Session) Do(ctx context.Context, fn func() error) error {
	errc := make(chan error, 1)
	wrapped := func() { errc <- fn() }
	select {
	case s.posts <- wrapped:
	case <-s.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-errc:
		return err
	case <-s.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run owns the loop until ctx ends or conn stops delivering. Inbound
// messages are dispatched in arrival order. conn may be nil for a
// viewer-only session.
func (s *Session) Run(ctx context.Context, conn transport.Conn) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return ErrRunning
	}
	s.running = true
	s.mu.Unlock()

	s.conn = conn
	defer s.stop()

	recvErr := make(chan error, 1)
	if conn != nil {
		go s.receive(ctx, conn, recvErr)
	}

	if s.opts.StartPage != "" {
		if err := s.panel.ShowPage(ctx, s.opts.StartPage); err != nil {
			s.log.Warn("start page", "page", s.opts.StartPage, "error", err)
		}
	}
	s.publish()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-recvErr:
			return err
		case fn := <-s.posts:
			fn()
			s.publish()
		}
	}
}

func (s *Session) receive(ctx context.Context, conn transport.Conn, errc chan<- error) {
	for {
		msg, err := conn.Receive(ctx)
		if err != nil {
			errc <- err
			return
		}
		select {
		case s.posts <- func() { s.disp.Dispatch(ctx, msg) }:
		case <-ctx.Done():
			return
		case <-s.done:
			return
		}
	}
}

func (s *Session) stop() {
	close(s.done)
	s.refresher.StopAll()
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, ch := range s.subs {
		close(ch)
		delete(s.subs, id)
	}
}

// publish sends the rendered document to subscribers when it changed
// since the last turn. Slow subscribers only see the newest update.
func (s *Session) publish() {
	v := s.doc.Version()
	s.mu.Lock()
	defer s.mu.Unlock()
	if v == s.published && s.last.HTML != "" {
		return
	}
	s.published = v
	s.last = Update{Version: v, HTML: s.doc.HTML()}
	for _, ch := range s.subs {
		select {
		case <-ch:
		default:
		}
		ch <- s.last
	}
}

// Subscribe returns a channel of document updates, primed with the latest
// one. cancel releases it.
func (s *Session) Subscribe() (<-chan Update, func()) {
	ch := make(chan Update, 1)
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextSub
	s.nextSub++
	select {
	case <-s.done:
		close(ch)
		return ch, func() {}
	default:
	}
	if s.last.HTML != "" {
		ch <- s.last
	}
	s.subs[id] = ch
	return ch, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if _, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(ch)
		}
	}
}

// Latest returns the last published document.
func (s *Session) Latest() Update {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// Inject dispatches a raw controller message on the loop.
func (s *Session) Inject(ctx context.Context, raw string) (dispatch.Result, error) {
	var res dispatch.Result
	err := s.Do(ctx, func() error {
		res = s.disp.Dispatch(ctx, raw)
		return nil
	})
	return res, err
}

// Pointer delivers a viewer press or release.
func (s *Session) Pointer(ctx context.Context, elementID string, phase input.Phase) error {
	return s.Do(ctx, func() error { return s.router.Pointer(ctx, elementID, phase) })
}

// Keyboard delivers keyboard text.
func (s *Session) Keyboard(ctx context.Context, text string) error {
	return s.Do(ctx, func() error { return s.router.Keyboard(ctx, text) })
}

// Keypad delivers keypad text.
func (s *Session) Keypad(ctx context.Context, text string) error {
	return s.Do(ctx, func() error { return s.router.Keypad(ctx, text) })
}

// Snapshot reads the popup and page state on the loop.
func (s *Session) Snapshot(ctx context.Context) (panel.Snapshot, error) {
	var snap panel.Snapshot
	err := s.Do(ctx, func() error {
		snap = s.panel.Snapshot()
		return nil
	})
	return snap, err
}

// Metrics returns the session's collector.
func (s *Session) Metrics() *observability.MetricsCollector { return s.metrics }

// PanelID returns the ID sent in READY and KEY messages.
func (s *Session) PanelID() int { return s.opts.PanelID }
