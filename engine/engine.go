// Package engine publishes immutable topology snapshots from a control
// thread to a deadline-bound render thread and evaluates them with
// click-free crossfades on every structural change.
package engine

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/cwbudde/algo-fxgraph/graph"
	"github.com/cwbudde/algo-fxgraph/internal/metrics"
	"github.com/cwbudde/algo-fxgraph/kernel"
	"github.com/cwbudde/algo-fxgraph/vocoder"
)

// Engine is the signal graph engine. Edits arrive on the control side, are
// debounced into immutable snapshots, and take effect atomically at the next
// buffer boundary on the render side.
//
// Process must be called from a single goroutine; every other method is safe
// for concurrent use.
type Engine struct {
	cfg      Config
	log      *logrus.Logger
	registry *kernel.Registry

	mu      sync.Mutex
	editor  graph.Config
	globals map[string]GlobalEffect
	dirty   bool
	timer   *time.Timer
	closed  bool

	snapshot atomic.Pointer[Snapshot]

	states *stateStore

	levelMu sync.Mutex
	levels  map[string]float64

	resetMu sync.Mutex
	resets  map[kernel.Scope]bool
	resetAllPending bool

	publishHooks []func(*Snapshot)

	render renderState
}

// Option adjusts engine construction.
type Option func(*Engine)

// WithLogger replaces the default logger.
func WithLogger(log *logrus.Logger) Option {
	return func(e *Engine) {
		if log != nil {
			e.log = log
		}
	}
}

// WithRegistry replaces the default kernel registry.
func WithRegistry(r *kernel.Registry) Option {
	return func(e *Engine) {
		if r != nil {
			e.registry = r
		}
	}
}

// WithPublishHook registers a callback invoked on the control thread after
// every publish, for UI refresh. Hooks must not call back into the edit API.
func WithPublishHook(fn func(*Snapshot)) Option {
	return func(e *Engine) {
		if fn != nil {
			e.publishHooks = append(e.publishHooks, fn)
		}
	}
}

// New creates an engine and publishes an initial empty linear snapshot.
func New(cfg Config, opts ...Option) (*Engine, error) {
	cfg = cfg.withDefaults()

	e := &Engine{
		cfg:     cfg,
		log:     logrus.StandardLogger(),
		editor:  graph.Config{Mode: graph.ModeLinear},
		globals: make(map[string]GlobalEffect),
		levels:  make(map[string]float64),
		resets:  make(map[kernel.Scope]bool),
	}

	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}

	if e.registry == nil {
		e.registry = kernel.DefaultRegistry(kernel.WithPitchProcessor(func() kernel.PitchProcessor {
			return vocoder.New()
		}))
	}

	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		e.log.SetLevel(level)
	}

	e.states = newStateStore(e.registry)
	e.render.init(cfg)

	e.mu.Lock()
	e.publishLocked()
	e.mu.Unlock()

	return e, nil
}

// Close stops the debounce timer. A dirty editor state is published first.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return
	}

	e.closed = true

	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}

	if e.dirty {
		e.publishLocked()
	}
}

// Snapshot returns the currently published snapshot.
func (e *Engine) Snapshot() *Snapshot {
	return e.snapshot.Load()
}

// Graph returns a copy of the editable topology, including edits not yet
// published.
func (e *Engine) Graph() graph.Config {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.editor.Clone()
}

// SetLinearChain switches to linear mode with the given node order. Node IDs
// not present in the node set are dropped by the compiler.
func (e *Engine) SetLinearChain(order []string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.editor.Mode = graph.ModeLinear
	e.editor.Chain = append([]string(nil), order...)
	e.markDirtyLocked()
}

// SetManualGraph replaces the whole topology with an explicit manual graph.
func (e *Engine) SetManualGraph(nodes []graph.Node, conns []graph.Connection, autoConnectEnd bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.editor.Mode = graph.ModeManual
	e.editor.Nodes = append([]graph.Node(nil), nodes...)
	e.editor.Connections = append([]graph.Connection(nil), conns...)
	e.editor.AutoConnectEnd = autoConnectEnd
	e.markDirtyLocked()
}

// SetSplitGraph replaces the topology with two independent lane graphs.
// Node lanes select which sub-graph each node and its connections belong to.
func (e *Engine) SetSplitGraph(nodes []graph.Node, conns []graph.Connection, autoConnectEnd bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.editor.Mode = graph.ModeSplit
	e.editor.Nodes = append([]graph.Node(nil), nodes...)
	e.editor.Connections = append([]graph.Connection(nil), conns...)
	e.editor.AutoConnectEnd = autoConnectEnd
	e.markDirtyLocked()
}

// AddNode adds an effect node and returns its generated ID.
func (e *Engine) AddNode(effectType string, lane graph.Lane, params map[string]float64) string {
	id := uuid.NewString()

	copied := make(map[string]float64, len(params))
	for k, v := range params {
		copied[k] = v
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.editor.Nodes = append(e.editor.Nodes, graph.Node{
		ID:      id,
		Type:    effectType,
		Enabled: true,
		Lane:    lane,
		Params:  copied,
	})
	e.markDirtyLocked()

	return id
}

// RemoveNode deletes a node, its incident connections, and requests its
// state cleared. Returns false if the node does not exist.
func (e *Engine) RemoveNode(id string) bool {
	e.mu.Lock()
	ok := e.editor.RemoveNode(id)
	if ok {
		e.markDirtyLocked()
	}
	e.mu.Unlock()

	if ok {
		e.RequestReset(kernel.NodeScope(id))
	}

	return ok
}

// AddConnection adds a gain-weighted edge and returns its generated ID.
// Endpoints are not validated here; the compiler drops dangling edges.
func (e *Engine) AddConnection(from, to string, gain float64) string {
	id := uuid.NewString()

	e.mu.Lock()
	defer e.mu.Unlock()

	e.editor.Connections = append(e.editor.Connections, graph.Connection{
		ID:   id,
		From: from,
		To:   to,
		Gain: clampUnit(gain),
	})
	e.markDirtyLocked()

	return id
}

// RemoveConnection deletes an edge by ID. Returns false if absent.
func (e *Engine) RemoveConnection(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	conns := e.editor.Connections[:0]
	found := false

	for _, conn := range e.editor.Connections {
		if conn.ID == id {
			found = true
			continue
		}

		conns = append(conns, conn)
	}

	e.editor.Connections = conns

	if found {
		e.markDirtyLocked()
	}

	return found
}

// SetConnectionGain updates one edge's mixing weight, clamped to [0,1].
func (e *Engine) SetConnectionGain(id string, gain float64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	for i := range e.editor.Connections {
		if e.editor.Connections[i].ID == id {
			e.editor.Connections[i].Gain = clampUnit(gain)
			e.markDirtyLocked()

			return true
		}
	}

	return false
}

// SetNodeParameter updates one numeric parameter of a node.
func (e *Engine) SetNodeParameter(id, field string, value float64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	n := e.editor.Node(id)
	if n == nil {
		return false
	}

	if n.Params == nil {
		n.Params = make(map[string]float64)
	}

	n.Params[field] = value
	e.markDirtyLocked()

	return true
}

// SetNodeEnabled toggles a node's bypass flag.
func (e *Engine) SetNodeEnabled(id string, enabled bool) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	n := e.editor.Node(id)
	if n == nil {
		return false
	}

	n.Enabled = enabled
	e.markDirtyLocked()

	return true
}

// SetNodePosition stores UI coordinates on a node. Position edits are
// persisted with presets but never affect rendering.
func (e *Engine) SetNodePosition(id string, x, y float64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	n := e.editor.Node(id)
	if n == nil {
		return false
	}

	n.X, n.Y = x, y
	e.markDirtyLocked()

	return true
}

// SetGlobalEffect configures one legacy single-instance effect. These run as
// a fixed serial chain on the summed graph output, one process-wide instance
// per effect type.
func (e *Engine) SetGlobalEffect(effectType string, enabled bool, params map[string]float64) {
	copied := make(map[string]float64, len(params))
	for k, v := range params {
		copied[k] = v
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.globals[effectType] = GlobalEffect{Enabled: enabled, Params: copied}
	e.markDirtyLocked()
}

// LoadPreset replaces the topology from a persisted preset record.
func (e *Engine) LoadPreset(data []byte) error {
	cfg, err := graph.DecodePreset(data)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.editor = cfg
	e.markDirtyLocked()

	return nil
}

// SavePreset encodes the current editable topology, including unpublished
// edits.
func (e *Engine) SavePreset() ([]byte, error) {
	e.mu.Lock()
	cfg := e.editor.Clone()
	e.mu.Unlock()

	return graph.EncodePreset(cfg)
}

// RequestReset asks for a kernel state clear at the next buffer boundary.
// Resets never apply mid-block.
func (e *Engine) RequestReset(scope kernel.Scope) {
	e.resetMu.Lock()
	e.resets[scope] = true
	e.resetMu.Unlock()
}

// ResetAll requests a state clear of every kernel at the next buffer start.
func (e *Engine) ResetAll() {
	e.resetMu.Lock()
	e.resetAllPending = true
	e.resetMu.Unlock()
}

// Levels returns a copy of the latest per-node RMS map. Values are refreshed
// once per processed buffer; stale reads are acceptable.
func (e *Engine) Levels() map[string]float64 {
	e.levelMu.Lock()
	defer e.levelMu.Unlock()

	out := make(map[string]float64, len(e.levels))
	for k, v := range e.levels {
		out[k] = v
	}

	return out
}

// Commit publishes the pending editor state synchronously, bypassing the
// debounce window. A clean state publishes anyway, recomputing signatures.
func (e *Engine) Commit() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.publishLocked()
}

// markDirtyLocked arms the debounce timer so an edit burst coalesces into a
// single publish. Callers hold e.mu.
func (e *Engine) markDirtyLocked() {
	e.dirty = true

	if e.closed {
		return
	}

	if e.timer == nil {
		e.timer = time.AfterFunc(e.cfg.Debounce, e.debouncedPublish)
		return
	}

	e.timer.Reset(e.cfg.Debounce)
}

func (e *Engine) debouncedPublish() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed || !e.dirty {
		return
	}

	e.publishLocked()
}

// publishLocked builds a fully resolved snapshot from the editor state and
// swaps it in. Plans are compiled and processors bound here, on the control
// thread; their configuration is staged on the snapshot and applied by the
// render side at the buffer boundary where the snapshot takes effect, so a
// parameter edit never reconfigures a kernel that is mid-block.
func (e *Engine) publishLocked() {
	cfg := e.editor.Clone()
	ctx := kernel.Context{SampleRate: e.cfg.SampleRate, Channels: e.cfg.Channels}

	snap := &Snapshot{
		Config:        cfg,
		Signature:     graph.Signature(cfg),
		GainSignature: graph.GainSignature(cfg),
		Plans:         make(map[graph.Lane]*graph.Plan),
		procs:         make(map[graph.Lane]map[string]kernel.Processor),
	}

	live := make(map[stateKey]bool)

	for _, lane := range cfg.Lanes() {
		laneCtx := ctx
		if cfg.Mode == graph.ModeSplit {
			laneCtx.Channels = 1
		}

		plan, err := graph.Compile(cfg, lane)
		if err != nil {
			metrics.CompileFailures.Inc()
			e.log.WithFields(logrus.Fields{
				"lane":  lane,
				"error": err,
			}).Warn("lane compilation failed, rendering silence")

			snap.Plans[lane] = nil

			continue
		}

		snap.Plans[lane] = plan
		e.bindProcessors(snap, lane, plan, laneCtx, live)
	}

	e.bindGlobals(snap, ctx, live)

	e.states.retain(live)
	e.snapshot.Store(snap)
	e.dirty = false

	metrics.SnapshotPublishes.Inc()
	e.log.WithFields(logrus.Fields{
		"mode":      cfg.Mode,
		"nodes":     len(cfg.Nodes),
		"conns":     len(cfg.Connections),
		"signature": snap.Signature[:12],
	}).Debug("snapshot published")

	for _, hook := range e.publishHooks {
		hook(snap)
	}
}

// bindProcessors resolves the persistent kernel instance for every live
// effect node in a plan and stages its configuration on the snapshot.
func (e *Engine) bindProcessors(snap *Snapshot, lane graph.Lane, plan *graph.Plan, ctx kernel.Context, live map[stateKey]bool) {
	bound := make(map[string]kernel.Processor, len(plan.Order))

	for _, id := range plan.Order {
		if graph.IsVirtual(id) {
			continue
		}

		node := plan.Nodes[id]
		key := nodeKey(id)
		live[key] = true

		proc, err := e.states.processor(key, node.Type, ctx)
		if err != nil {
			e.log.WithFields(logrus.Fields{
				"node":   id,
				"effect": node.Type,
				"error":  err,
			}).Warn("kernel unavailable, node passes through")

			continue
		}

		bound[id] = proc
		snap.configs = append(snap.configs, pendingConfig{
			lane:   lane,
			id:     id,
			ctx:    ctx,
			proc:   proc,
			params: kernel.NewParams(node.Params),
		})
	}

	snap.procs[lane] = bound
}

// bindGlobals resolves the enabled legacy effects in their fixed order and
// stages their configuration on the snapshot.
func (e *Engine) bindGlobals(snap *Snapshot, ctx kernel.Context, live map[stateKey]bool) {
	for _, effectType := range globalOrder {
		g, ok := e.globals[effectType]
		if !ok || !g.Enabled {
			continue
		}

		key := globalKey(effectType)
		live[key] = true

		proc, err := e.states.processor(key, effectType, ctx)
		if err != nil {
			e.log.WithFields(logrus.Fields{
				"effect": effectType,
				"error":  err,
			}).Warn("global effect unavailable")

			continue
		}

		snap.globals = append(snap.globals, globalBinding{effectType: effectType, proc: proc})
		snap.configs = append(snap.configs, pendingConfig{
			id:     effectType,
			global: true,
			ctx:    ctx,
			proc:   proc,
			params: kernel.NewParams(g.Params),
		})
	}
}

func clampUnit(v float64) float64 {
	if v < 0 {
		return 0
	}

	if v > 1 {
		return 1
	}

	return v
}
