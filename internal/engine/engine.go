package engine

import (
	"context"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/eruption-project/eruption-sub002/internal/canvas"
	"github.com/eruption-project/eruption-sub002/internal/compositor"
	"github.com/eruption-project/eruption-sub002/internal/device"
	"github.com/eruption-project/eruption-sub002/internal/profile"
	"github.com/eruption-project/eruption-sub002/internal/script"
	"github.com/eruption-project/eruption-sub002/internal/sensors"
	"github.com/eruption-project/eruption-sub002/internal/sink"
)

// State is the scheduler's lifecycle state.
type State int32

const (
	StateIdle State = iota
	StateInitializing
	StateRunning
	StateReconfiguring
	StateShuttingDown
)

func (s State) String() string {
	switch s {
	case StateInitializing:
		return "initializing"
	case StateRunning:
		return "running"
	case StateReconfiguring:
		return "reconfiguring"
	case StateShuttingDown:
		return "shutting_down"
	default:
		return "idle"
	}
}

// Options tune the scheduler.
type Options struct {
	FPS          int
	FadeDuration time.Duration
	FaultLimit   int
	MaxTickDebt  int
	InputQueue   int
	ScriptDir    string
}

func (o *Options) withDefaults() {
	if o.FPS <= 0 {
		o.FPS = 24
	}
	if o.FadeDuration <= 0 {
		o.FadeDuration = 800 * time.Millisecond
	}
	if o.FaultLimit <= 0 {
		o.FaultLimit = 3
	}
	if o.MaxTickDebt <= 0 {
		o.MaxTickDebt = 5
	}
	if o.InputQueue <= 0 {
		o.InputQueue = 256
	}
}

const maxTrackedKeys = 512

// Engine is the fixed-rate scheduler: one cooperative goroutine owns
// script execution, event dispatch and compositing; device I/O and
// sensors run as workers behind bounded channels.
type Engine struct {
	opts   Options
	log    zerolog.Logger
	devman *device.Manager
	store  *sensors.Store
	slots  *profile.Slots

	// Loop-owned; mutated only on the scheduler goroutine (control
	// requests execute there via reqC).
	cv      *canvas.Canvas
	comp    *compositor.Compositor
	scripts []*script.Instance
	windows map[string]sink.Window
	sinks   map[string]*sink.Worker
	sweep   *device.Sweep

	layerScratch [][]canvas.Color
	sweepBuf     []canvas.Color

	geo     atomic.Pointer[geometry]
	keys    [maxTrackedKeys]atomic.Bool
	mouseDx atomic.Int64
	mouseDy atomic.Int64
	mouseDz atomic.Int64

	inputC       chan device.InputEvent
	reqC         chan func()
	inputDropped atomic.Uint64

	state  atomic.Int32
	frames atomic.Uint64

	runCtx     context.Context
	pollCancel context.CancelFunc
	pollWG     sync.WaitGroup

	// frameHook receives each composited frame; it must not block.
	frameHook func([]canvas.Color)
}

func New(devman *device.Manager, slots *profile.Slots, store *sensors.Store, opts Options, log zerolog.Logger) *Engine {
	opts.withDefaults()
	e := &Engine{
		opts:   opts,
		log:    log.With().Str("component", "engine").Logger(),
		devman: devman,
		store:  store,
		slots:  slots,
		inputC: make(chan device.InputEvent, opts.InputQueue),
		reqC:   make(chan func(), 32),
		sinks:  map[string]*sink.Worker{},
	}
	e.geo.Store(&geometry{width: 1, height: 1, zones: map[string]canvas.Rect{}})
	return e
}

// SetFrameHook installs a per-frame tap (e.g. websocket streaming). The
// hook runs on the scheduler goroutine and must hand off, not block.
func (e *Engine) SetFrameHook(fn func([]canvas.Color)) { e.frameHook = fn }

func (e *Engine) State() State { return State(e.state.Load()) }

func (e *Engine) setState(s State) { e.state.Store(int32(s)) }

// FadeTicks is the crossfade length in ticks for the configured rate.
func (e *Engine) FadeTicks() int {
	ticks := int(e.opts.FadeDuration * time.Duration(e.opts.FPS) / time.Second)
	if ticks < 1 {
		ticks = 1
	}
	return ticks
}

// Run drives the scheduler until ctx is cancelled.
func (e *Engine) Run(ctx context.Context) error {
	e.runCtx = ctx
	e.setState(StateInitializing)

	e.bindAll()
	if err := e.reconfigure(ctx); err != nil {
		return err
	}

	_, active := e.slots.Active()
	insts, err := e.instantiate(active)
	if err != nil {
		e.log.Error().Err(err).Str("profile", active.Name).Msg("profile activation failed, using fail-safe")
		insts, err = e.instantiate(profile.FailSafe())
		if err != nil {
			return err
		}
	}
	e.adoptScripts(insts)

	e.setState(StateRunning)
	e.log.Info().Int("fps", e.opts.FPS).Int("cells", e.cv.Len()).Msg("render loop started")
	e.loop(ctx)
	return nil
}

func (e *Engine) loop(ctx context.Context) {
	tick := time.Second / time.Duration(e.opts.FPS)
	next := time.Now().Add(tick)
	debt := 0

	for {
		if ctx.Err() != nil {
			e.shutdown()
			return
		}

		// The fault window opens before anything can call into a script
		// this tick; a fault in an event callback must survive into
		// EndFrame, not be wiped by a later reset.
		e.beginFrames()
		e.drainRequests()
		e.resetMouseDeltas()
		e.drainInput()

		delta := 1
		if debt > 0 {
			use := debt
			if use > e.opts.MaxTickDebt-1 {
				use = e.opts.MaxTickDebt - 1
			}
			delta += use
			debt -= use
		}

		e.tickScripts(delta)
		e.stepSweep()
		frame := e.comp.Compose(e.collectLayers())
		for _, w := range e.sinks {
			if !w.Offline() {
				w.TrySend(frame)
			}
		}
		if e.frameHook != nil {
			e.frameHook(frame)
		}
		e.frames.Add(1)

		now := time.Now()
		if sleep := next.Sub(now); sleep > 0 {
			timer := time.NewTimer(sleep)
			select {
			case <-ctx.Done():
				timer.Stop()
			case <-timer.C:
			}
		} else {
			debt += int(-sleep / tick)
		}
		next = next.Add(tick)

		if debt > e.opts.MaxTickDebt {
			// Structurally too slow (or we slept through a suspend):
			// tick with a capped delta instead of catching up abruptly.
			e.log.Warn().Int("debt_ticks", debt).Msg("tick debt exceeded threshold, capping delta")
			debt = e.opts.MaxTickDebt
			next = time.Now().Add(tick)
		}
	}
}

func (e *Engine) beginFrames() {
	for _, inst := range e.scripts {
		if !inst.Unloaded() {
			inst.BeginFrame()
		}
	}
}

// tickScripts advances and renders; events were already dispatched
// during drainInput, inside the same fault window.
func (e *Engine) tickScripts(delta int) {
	for _, inst := range e.scripts {
		if inst.Unloaded() {
			continue
		}
		_ = inst.OnTick(delta)
		_ = inst.OnRender()
		if inst.EndFrame() >= e.opts.FaultLimit {
			inst.Unload()
		}
	}
}

func (e *Engine) collectLayers() [][]canvas.Color {
	e.layerScratch = e.layerScratch[:0]
	for _, inst := range e.scripts {
		if layer := inst.Layer(); layer != nil {
			e.layerScratch = append(e.layerScratch, layer)
		}
	}
	return e.layerScratch
}

func (e *Engine) stepSweep() {
	if e.sweep == nil {
		return
	}
	if !e.sweep.Step(e.sweepBuf, e.cv.Width()) {
		e.sweep = nil
		return
	}
	_ = e.comp.SubmitOverride(e.sweepBuf)
}

func (e *Engine) drainRequests() {
	for {
		select {
		case fn := <-e.reqC:
			fn()
		default:
			return
		}
	}
}

// drainInput dispatches queued events to all active scripts in arrival
// order, before the tick that follows them.
func (e *Engine) drainInput() {
	for {
		select {
		case ev := <-e.inputC:
			e.dispatchEvent(ev)
		default:
			return
		}
	}
}

func (e *Engine) dispatchEvent(ev device.InputEvent) {
	switch ev.Kind {
	case device.KeyDown:
		e.setKey(ev.Index, true)
		for _, inst := range e.scripts {
			_ = inst.OnKeyDown(ev.Index)
		}
	case device.KeyUp:
		e.setKey(ev.Index, false)
		for _, inst := range e.scripts {
			_ = inst.OnKeyUp(ev.Index)
		}
	case device.MouseButtonDown:
		for _, inst := range e.scripts {
			_ = inst.OnMouseButtonDown(ev.Index)
		}
	case device.MouseButtonUp:
		for _, inst := range e.scripts {
			_ = inst.OnMouseButtonUp(ev.Index)
		}
	case device.MouseWheel:
		for _, inst := range e.scripts {
			_ = inst.OnMouseWheel(ev.Direction)
		}
	case device.MouseMove:
		e.mouseDx.Add(int64(ev.Dx))
		e.mouseDy.Add(int64(ev.Dy))
		e.mouseDz.Add(int64(ev.Dz))
		for _, inst := range e.scripts {
			_ = inst.OnMouseMove(ev.Dx, ev.Dy, ev.Dz)
		}
	case device.MouseHID:
		for _, inst := range e.scripts {
			_ = inst.OnMouseHIDEvent(ev.Index, ev.Arg)
		}
	}
}

func (e *Engine) setKey(index int, down bool) {
	if index >= 0 && index < maxTrackedKeys {
		e.keys[index].Store(down)
	}
}

func (e *Engine) resetMouseDeltas() {
	e.mouseDx.Store(0)
	e.mouseDy.Store(0)
	e.mouseDz.Store(0)
}

// bindAll enumerates and binds everything it can; unsupported or busy
// devices are logged and skipped, never fatal.
func (e *Engine) bindAll() {
	for _, info := range e.devman.Enumerate() {
		if _, err := e.devman.Bind(info); err != nil {
			e.log.Debug().Err(err).Str("path", info.Path).Msg("skipping device")
		}
	}
}

// reconfigure rebuilds the canvas composition, compositor, sinks and
// pollers for the current bound device set.
func (e *Engine) reconfigure(ctx context.Context) error {
	if e.pollCancel != nil {
		e.pollCancel()
		e.pollWG.Wait()
	}

	devs := e.devman.Bound()
	comp, err := composeDevices(devs)
	if err != nil {
		return err
	}
	e.cv = comp.cv
	e.geo.Store(comp.geo)
	e.comp = compositor.New(comp.cv, e.log)
	e.windows = comp.windows
	e.sweepBuf = make([]canvas.Color, comp.cv.Len())

	e.sinks = map[string]*sink.Worker{}
	pctx, cancel := context.WithCancel(ctx)
	e.pollCancel = cancel
	for _, d := range devs {
		win := comp.windows[d.Info.Path]
		w := sink.NewWorker(d.Info.Path, d, win, e.log)
		// Workers share the pollers' lifetime: the next reconfigure
		// cancels pctx and the whole old pipeline exits with it.
		w.Start(pctx)
		e.sinks[d.Info.Path] = w

		e.pollWG.Add(1)
		go e.pollDevice(pctx, d)
	}
	return nil
}

// pollDevice feeds decoded input events into the bounded queue. A full
// queue drops events rather than blocking the device worker.
func (e *Engine) pollDevice(ctx context.Context, d *device.Device) {
	defer e.pollWG.Done()
	for {
		if ctx.Err() != nil {
			return
		}
		evs := d.PollInput()
		for _, ev := range evs {
			select {
			case e.inputC <- ev:
			default:
				e.inputDropped.Add(1)
			}
		}
		if len(evs) == 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(2 * time.Millisecond):
			}
		}
	}
}

// instantiate compiles a profile's scripts and runs their on_startup
// against the current geometry snapshot, entirely off the hot path.
func (e *Engine) instantiate(p *profile.Profile) ([]*script.Instance, error) {
	insts := make([]*script.Instance, 0, len(p.ActiveScripts))
	fail := func(err error) ([]*script.Instance, error) {
		for _, inst := range insts {
			inst.Close()
		}
		return nil, err
	}
	for _, ref := range p.ActiveScripts {
		var inst *script.Instance
		var err error
		if ref == script.FailSafeName {
			inst, err = script.New(ref, script.FailSafeSource, host{e}, nil, e.log)
		} else {
			path := ref
			if !filepath.IsAbs(path) && e.opts.ScriptDir != "" {
				path = filepath.Join(e.opts.ScriptDir, ref)
			}
			inst, err = script.NewFromFile(path, host{e}, p.ScriptParams(ref), e.log)
		}
		if err != nil {
			return fail(err)
		}
		insts = append(insts, inst)
		if serr := inst.OnStartup(); serr != nil {
			return fail(serr)
		}
	}
	return insts, nil
}

// adoptScripts swaps the active script set.
func (e *Engine) adoptScripts(insts []*script.Instance) {
	for _, old := range e.scripts {
		old.Close()
	}
	for _, inst := range insts {
		inst.BeginFrame()
	}
	e.scripts = insts
}

// shutdown performs the best-effort final all-LEDs-off write with a
// bounded timeout, then tears scripts down.
func (e *Engine) shutdown() {
	e.setState(StateShuttingDown)
	if e.pollCancel != nil {
		e.pollCancel()
		e.pollWG.Wait()
	}

	off := make([]canvas.Color, e.cv.Len())
	var wg sync.WaitGroup
	for _, d := range e.devman.Bound() {
		win, ok := e.windows[d.Info.Path]
		if !ok {
			continue
		}
		wg.Add(1)
		go func(d *device.Device, win sink.Window) {
			defer wg.Done()
			buf := make([]canvas.Color, win.CellCount())
			win.Extract(buf, off)
			done := make(chan struct{})
			go func() {
				_ = d.WriteFrame(buf)
				close(done)
			}()
			select {
			case <-done:
			case <-time.After(250 * time.Millisecond):
				e.log.Warn().Str("device", d.Info.Path).Msg("final frame write timed out")
			}
		}(d, win)
	}
	wg.Wait()

	for _, inst := range e.scripts {
		inst.Close()
	}
	e.scripts = nil
	e.setState(StateIdle)
	e.log.Info().Msg("render loop stopped")
}
