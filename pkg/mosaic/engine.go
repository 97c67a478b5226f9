package mosaic

import (
	"context"
	"errors"
	"log/slog"
	"runtime/debug"
	"sort"
	"time"

	"golang.org/x/net/html"

	"github.com/randalmurphal/mosaic/pkg/mosaic/bus"
	"github.com/randalmurphal/mosaic/pkg/mosaic/dom"
	"github.com/randalmurphal/mosaic/pkg/mosaic/observability"
)

// CreateEvent is notified on a component's topic the first time the engine
// registers a lazily loaded definition for it. The payload is the name.
const CreateEvent = "create"

// Engine renders components into nodes and wires their listeners to a bus.
//
// An Engine is not safe for concurrent use. Call it from one goroutine, or
// from tasks posted to the Executor it was built with.
type Engine struct {
	registry *Registry
	bus      *bus.Bus
	loader   Loader
	executor Executor
	logger   *slog.Logger
	metrics  observability.MetricsRecorder
	spans    observability.SpanManager
	ctx      context.Context
	onError  func(error)

	mounts  map[*html.Node]*Instance
	pending map[*html.Node]uint64
	seq     uint64
}

// Option configures an Engine.
type Option func(*Engine)

// WithRegistry uses r instead of a fresh registry.
func WithRegistry(r *Registry) Option {
	return func(e *Engine) {
		e.registry = r
	}
}

// WithBus uses b instead of a fresh, halted bus.
func WithBus(b *bus.Bus) Option {
	return func(e *Engine) {
		e.bus = b
	}
}

// WithLoader sets the collaborator used for names missing from the registry.
func WithLoader(l Loader) Option {
	return func(e *Engine) {
		e.loader = l
	}
}

// WithExecutor makes lazy loads asynchronous. Load runs on its own
// goroutine and the rest of the render is posted to x.
//
// Without an executor, Render calls the loader inline and returns its error.
func WithExecutor(x Executor) Option {
	return func(e *Engine) {
		e.executor = x
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithMetrics sets the metrics recorder. Default: observability.NoopMetrics{}.
func WithMetrics(m observability.MetricsRecorder) Option {
	return func(e *Engine) {
		if m != nil {
			e.metrics = m
		}
	}
}

// WithSpanManager sets the tracer. Default: observability.NoopSpanManager{}.
func WithSpanManager(s observability.SpanManager) Option {
	return func(e *Engine) {
		if s != nil {
			e.spans = s
		}
	}
}

// WithContext sets the parent context of loads and render spans.
// Cancelling it cancels in-flight loads.
func WithContext(ctx context.Context) Option {
	return func(e *Engine) {
		if ctx != nil {
			e.ctx = ctx
		}
	}
}

// WithErrorHandler receives failures of asynchronous render branches,
// which have no caller to return to. They are logged either way.
func WithErrorHandler(fn func(error)) Option {
	return func(e *Engine) {
		e.onError = fn
	}
}

// New creates an engine.
//
// Example:
//
//	engine := mosaic.New(mosaic.WithLogger(logger))
//	engine.Define("menu", menuDef)
//	err := engine.Render("menu", node, nil)
//	engine.Bus().Unhalt()
func New(opts ...Option) *Engine {
	e := &Engine{
		logger:  slog.Default(),
		metrics: observability.NoopMetrics{},
		spans:   observability.NoopSpanManager{},
		ctx:     context.Background(),
		mounts:  make(map[*html.Node]*Instance),
		pending: make(map[*html.Node]uint64),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.registry == nil {
		e.registry = NewRegistry()
	}
	if e.bus == nil {
		e.bus = bus.New(bus.WithLogger(e.logger))
	}
	return e
}

// Registry returns the engine's registry.
func (e *Engine) Registry() *Registry {
	return e.registry
}

// Bus returns the engine's bus.
func (e *Engine) Bus() *bus.Bus {
	return e.bus
}

// Define registers a definition. See Registry.Define.
func (e *Engine) Define(name string, def Definition) {
	e.registry.Define(name, def)
}

// Render mounts component name into node.
//
// Whatever was mounted at or below node is unmounted first and its
// subscriptions are removed. Failing child branches are skipped and
// reported; the returned error joins every failure of the tree. A branch
// waiting on an asynchronous load is not an error.
func (e *Engine) Render(name string, node *html.Node, data any) error {
	return e.render(e.ctx, nil, name, node, data)
}

// Unmount unmounts every instance at or below node and removes their
// subscriptions. Pending loads for those nodes are discarded. Returns the
// number of instances unmounted.
func (e *Engine) Unmount(node *html.Node) int {
	if node == nil {
		return 0
	}
	return e.teardown(node, true)
}

// Instance returns the instance mounted on node.
func (e *Engine) Instance(node *html.Node) (*Instance, bool) {
	inst, ok := e.mounts[node]
	return inst, ok
}

// Mounted returns every mounted instance, ordered by component name.
func (e *Engine) Mounted() []*Instance {
	out := make([]*Instance, 0, len(e.mounts))
	for _, inst := range e.mounts {
		out = append(out, inst)
	}
	sort.SliceStable(out, func(a, b int) bool {
		return out[a].name < out[b].name
	})
	return out
}

// Loading reports whether node is waiting on a lazy load.
func (e *Engine) Loading(node *html.Node) bool {
	_, ok := e.pending[node]
	return ok
}

func (e *Engine) render(ctx context.Context, parent *Instance, name string, node *html.Node, data any) error {
	if node == nil {
		return &RenderError{Component: name, Op: "render", Err: ErrNilNode}
	}
	e.teardown(node, true)

	def, ok := e.registry.Get(name)
	if ok {
		return e.mount(ctx, parent, name, def, node, data)
	}
	if e.loader == nil {
		observability.LogUnknownComponent(e.logger, name)
		return &RenderError{Component: name, Op: "lookup", Err: ErrUnknownComponent}
	}
	return e.load(ctx, parent, name, node, data)
}

// mount runs one component: render, children, init, listeners.
func (e *Engine) mount(ctx context.Context, parent *Instance, name string, def Definition, node *html.Node, data any) error {
	observability.LogRenderStart(e.logger, name)
	elapsed := observability.TimedOperation()

	inst := newInstance(ctx, e, parent, name, node)
	ctx, span := e.spans.StartRenderSpan(ctx, name, inst.ID())
	inst.ctx = ctx
	e.mounts[node] = inst

	start := time.Now()
	comp, err := e.create(name, def)
	if err == nil {
		err = e.guard(name, "render", func() error {
			return comp.Render(inst, node, data)
		})
	}
	e.metrics.RecordRender(ctx, name, time.Since(start), err)
	if err != nil {
		e.teardown(node, true)
		rerr := asRenderError(name, "render", err)
		observability.LogRenderError(e.logger, name, rerr)
		e.spans.EndSpanWithError(span, rerr)
		return rerr
	}

	var errs []error
	children := 0
	if imp, ok := comp.(Importer); ok {
		for _, t := range e.placeholders(imp.Imports(), node) {
			if !inst.mounted {
				break
			}
			// An earlier sibling may have replaced the markup holding t.
			if !dom.Contains(node, t.node) {
				continue
			}
			children++
			if err := e.render(ctx, inst, t.name, t.node, data); err != nil {
				errs = append(errs, err)
			}
		}
	}

	if inst.mounted {
		if hook, ok := comp.(Initializer); ok {
			err := e.guard(name, "init", func() error {
				hook.OnInit(inst)
				return nil
			})
			if err != nil {
				observability.LogRenderError(e.logger, name, err)
				errs = append(errs, asRenderError(name, "init", err))
			}
		}
	}

	if inst.mounted {
		if lp, ok := comp.(ListenerProvider); ok {
			errs = append(errs, e.listen(inst, lp)...)
		}
	}

	err = errors.Join(errs...)
	observability.LogRenderComplete(e.logger, name, elapsed(), children)
	e.spans.EndSpanWithError(span, err)
	return err
}

type placeholder struct {
	name string
	node *html.Node
}

// placeholders finds the targets of every import before any child renders,
// in import order and then document order.
func (e *Engine) placeholders(imports []string, node *html.Node) []placeholder {
	var out []placeholder
	for _, child := range imports {
		nodes, err := dom.Placeholders(node, child)
		if err != nil {
			continue
		}
		for _, n := range nodes {
			out = append(out, placeholder{name: child, node: n})
		}
	}
	return out
}

// listen subscribes the listener map of inst, topic by topic in name order.
// A rejected topic is reported and the others still subscribe.
func (e *Engine) listen(inst *Instance, lp ListenerProvider) []error {
	var listeners Listeners
	err := e.guard(inst.name, "listeners", func() error {
		listeners = lp.Listeners(inst)
		return nil
	})
	if err != nil {
		observability.LogSubscribeError(e.logger, inst.name, err)
		return []error{asRenderError(inst.name, "subscribe", err)}
	}

	topics := make([]string, 0, len(listeners))
	for topic := range listeners {
		topics = append(topics, topic)
	}
	sort.Strings(topics)

	var errs []error
	for _, topic := range topics {
		if err := inst.Subscribe(topic, listeners[topic]); err != nil {
			observability.LogSubscribeError(e.logger, inst.name, err)
			errs = append(errs, &RenderError{Component: inst.name, Op: "subscribe", Err: err})
		}
	}
	return errs
}

// load asks the loader for a missing definition and mounts it when it
// arrives. A later render or unmount of node supersedes the load.
func (e *Engine) load(ctx context.Context, parent *Instance, name string, node *html.Node, data any) error {
	e.seq++
	token := e.seq
	e.pending[node] = token
	observability.LogLoadStart(e.logger, name)

	if e.executor == nil {
		def, err := e.fetch(ctx, name)
		return e.finishLoad(ctx, parent, name, node, data, token, def, err)
	}

	go func() {
		def, err := e.fetch(ctx, name)
		posted := e.executor.Post(func() {
			if err := e.finishLoad(ctx, parent, name, node, data, token, def, err); err != nil {
				e.report(err)
			}
		})
		if !posted {
			observability.LogLoadError(e.logger, name, ErrExecutorClosed)
		}
	}()
	return nil
}

func (e *Engine) fetch(ctx context.Context, name string) (Definition, error) {
	ctx, span := e.spans.StartLoadSpan(ctx, name)
	start := time.Now()
	def, err := e.loader.Load(ctx, name)
	if err == nil && def == nil {
		err = ErrUnknownComponent
	}
	e.metrics.RecordLoad(ctx, name, time.Since(start), err)
	e.spans.EndSpanWithError(span, err)
	return def, err
}

func (e *Engine) finishLoad(ctx context.Context, parent *Instance, name string, node *html.Node, data any, token uint64, def Definition, err error) error {
	if e.pending[node] != token {
		observability.LogSuperseded(e.logger, name)
		return &RenderError{Component: name, Op: "load", Err: ErrSuperseded}
	}
	delete(e.pending, node)
	if err != nil {
		observability.LogLoadError(e.logger, name, err)
		return &RenderError{Component: name, Op: "load", Err: err}
	}

	created := !e.registry.Has(name)
	e.registry.Define(name, def)
	if created {
		e.bus.Notify(name, CreateEvent, name, true)
	}
	return e.mount(ctx, parent, name, def, node, data)
}

// teardown unmounts instances below root, and root's own instance if self
// is set. Pending loads targeting those nodes are discarded. It walks the
// subtree rather than every mount, and stops once no tracked node is left.
func (e *Engine) teardown(root *html.Node, self bool) int {
	left := len(e.mounts) + len(e.pending)
	count := 0
	dom.Walk(root, func(n *html.Node) bool {
		if left == 0 {
			return false
		}
		if n == root && !self {
			return true
		}
		if _, ok := e.pending[n]; ok {
			delete(e.pending, n)
			left--
		}
		if inst, ok := e.mounts[n]; ok {
			e.destroy(inst)
			left--
			count++
		}
		return true
	})
	return count
}

func (e *Engine) destroy(inst *Instance) {
	if e.mounts[inst.node] == inst {
		delete(e.mounts, inst.node)
	}
	inst.mounted = false
	e.bus.UnsubscribeAll(inst.subs)
	inst.subs = nil
}

func (e *Engine) create(name string, def Definition) (comp Component, err error) {
	err = e.guard(name, "render", func() error {
		comp = def.New()
		return nil
	})
	if err == nil && comp == nil {
		err = errors.New("definition returned a nil component")
	}
	return comp, err
}

// guard runs fn, converting a panic into a *PanicError.
func (e *Engine) guard(name, op string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{
				Component: name,
				Op:        op,
				Value:     r,
				Stack:     string(debug.Stack()),
			}
		}
	}()
	return fn()
}

func (e *Engine) report(err error) {
	if e.onError != nil {
		e.onError(err)
	}
}

func asRenderError(name, op string, err error) error {
	var rerr *RenderError
	if errors.As(err, &rerr) && rerr.Component == name {
		return err
	}
	return &RenderError{Component: name, Op: op, Err: err}
}
