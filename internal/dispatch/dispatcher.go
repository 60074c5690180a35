// Package dispatch maps inbound controller messages to panel operations.
//
// Messages are matched against a prefix table scanned in declaration order;
// the first prefix found anywhere in the command wins and its handler gets
// the raw command. A failing or panicking handler is logged and counted but
// never stops the dispatcher.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/amxpanel/amxpanel/internal/observability"
	"github.com/amxpanel/amxpanel/internal/panel"
	"github.com/amxpanel/amxpanel/internal/protocol"
	"github.com/amxpanel/amxpanel/internal/resource"
)

var (
	ErrUnsupported = errors.New("unsupported command")
	ErrBadArgs     = errors.New("bad command arguments")
	ErrPanic       = errors.New("handler panicked")
)

// Handler runs one command. port is the message's port (0 when absent)
// and cmd the command with the port prefix removed.
type Handler func(ctx context.Context, port int, cmd string) error

type entry struct {
	prefix  string
	handler Handler
}

// Result describes one dispatched message.
type Result struct {
	Port     int
	Token    string
	Prefix   string
	Position int // index into the table, -1 when nothing matched
	Err      error
}

// Dispatcher holds the prefix table and the state handlers act on.
type Dispatcher struct {
	table     []entry
	panel     *panel.Panel
	resources *resource.Table
	refresher *resource.Refresher
	metrics   *observability.MetricsCollector
	log       *observability.Logger
	refreshN  uint64
}

// New creates a dispatcher with the built-in table.
func New(p *panel.Panel, res *resource.Table, ref *resource.Refresher, m *observability.MetricsCollector, log *observability.Logger) *Dispatcher {
	if log == nil {
		log = observability.Discard()
	}
	if m == nil {
		m = observability.NewMetricsCollector(0)
	}
	d := &Dispatcher{
		panel:     p,
		resources: res,
		refresher: ref,
		metrics:   m,
		log:       log,
	}
	d.registerDefaults()
	return d
}

// Register appends prefix to the end of the table.
func (d *Dispatcher) Register(prefix string, h Handler) {
	d.table = append(d.table, entry{prefix: prefix, handler: h})
}

// Prefixes returns the table's prefixes in scan order.
func (d *Dispatcher) Prefixes() []string {
	out := make([]string, len(d.table))
	for i, e := range d.table {
		out[i] = e.prefix
	}
	return out
}

// Dispatch parses raw and runs the first matching handler. The returned
// result carries any handler error; callers only need it for reporting.
func (d *Dispatcher) Dispatch(ctx context.Context, raw string) Result {
	start := time.Now()
	port, cmd := protocol.SplitPort(raw)
	res := Result{Port: port, Token: protocol.CommandToken(cmd), Position: -1}
	d.metrics.Increment(observability.CounterMessages)

	for i, e := range d.table {
		if !strings.Contains(cmd, e.prefix) {
			continue
		}
		res.Position = i
		res.Prefix = e.prefix
		res.Err = d.run(ctx, i, e, port, cmd)
		break
	}
	if res.Position < 0 {
		res.Err = d.unsupported(ctx, port, cmd)
	}

	labels := observability.Labels{"command": res.Token}
	d.metrics.Record(observability.MetricDispatch, 1, labels)
	d.metrics.Record(observability.MetricLatency, float64(time.Since(start).Microseconds()), labels)
	if res.Err != nil && !errors.Is(res.Err, ErrUnsupported) {
		d.metrics.Increment(observability.CounterHandlerErrs)
		d.metrics.Record(observability.MetricErrors, 1, labels)
		d.log.Warn("handler failed", "command", res.Token, "port", port, "position", res.Position, "error", res.Err)
	}
	d.log.Dispatch(port, res.Token, "position", res.Position)
	return res
}

func (d *Dispatcher) run(ctx context.Context, pos int, e entry, port int, cmd string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w at %d (%s): %v", ErrPanic, pos, e.prefix, r)
		}
	}()
	return e.handler(ctx, port, cmd)
}

// unsupported is the no-op handler for commands the panel does not
// implement. It only logs and counts the token.
func (d *Dispatcher) unsupported(_ context.Context, port int, cmd string) error {
	tok := protocol.CommandToken(cmd)
	d.metrics.Increment(observability.CounterUnsupported)
	d.metrics.Record(observability.MetricUnsupported, 1, observability.Labels{"command": tok})
	d.log.Info("unsupported command", "command", tok, "port", port)
	return fmt.Errorf("%w: %s", ErrUnsupported, tok)
}
