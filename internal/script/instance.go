package script

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	lua "github.com/yuin/gopher-lua"

	"github.com/eruption-project/eruption-sub002/internal/canvas"
)

// Host is the curated surface a script may query. All methods are pure
// reads; the only mutation a script can perform is submitting its layer.
type Host interface {
	CanvasSize() (width, height int)
	Zones() map[string]canvas.Rect
	// NumKeys and KeyCells expose the primary keyboard's topology:
	// KeyCells maps a key index to its global canvas cell indices.
	NumKeys() int
	KeyCells(index int) []int
	KeyState(index int) bool
	AudioLevel() float64
	AudioSpectrum(bucket int) float64
	Temperature() float64
	MouseDelta() (dx, dy, dz int)
}

// ScriptError wraps a compile or runtime fault with its origin.
type ScriptError struct {
	Script   string
	Callback string
	Err      error
}

func (e *ScriptError) Error() string {
	return fmt.Sprintf("script %s: %s: %v", e.Script, e.Callback, e.Err)
}

func (e *ScriptError) Unwrap() error { return e.Err }

// Callback names looked up once at load time. A missing callback is
// skipped forever instead of failing a global lookup every frame.
const (
	cbStartup         = "on_startup"
	cbTick            = "on_tick"
	cbKeyDown         = "on_key_down"
	cbKeyUp           = "on_key_up"
	cbMouseButtonDown = "on_mouse_button_down"
	cbMouseButtonUp   = "on_mouse_button_up"
	cbMouseWheel      = "on_mouse_wheel"
	cbMouseMove       = "on_mouse_move"
	cbMouseHID        = "on_mouse_hid_event"
	cbRender          = "on_render"
	cbApplyParameter  = "on_apply_parameter"
)

// Instance is one running effect: an isolated interpreter bound to one
// script source plus its parameter table. Instances never share state.
type Instance struct {
	name string
	host Host
	log  zerolog.Logger

	l        *lua.LState
	cb       map[string]*lua.LFunction
	layer    []canvas.Color
	params   map[string]any
	manifest *Manifest

	ticks      uint64
	frameFault bool
	faults     int
	unloaded   bool
}

// New compiles source into a fresh sandboxed interpreter. A compile
// error is returned without leaving a half-initialized instance behind.
func New(name, source string, host Host, params map[string]any, log zerolog.Logger) (*Instance, error) {
	w, h := host.CanvasSize()
	inst := &Instance{
		name:   name,
		host:   host,
		log:    log.With().Str("script", name).Logger(),
		layer:  make([]canvas.Color, w*h),
		params: params,
	}

	l := lua.NewState(lua.Options{SkipOpenLibs: true})
	// Sandbox: base, table, string and math only. No io, os or debug.
	for _, open := range []struct {
		name string
		fn   lua.LGFunction
	}{
		{lua.BaseLibName, lua.OpenBase},
		{lua.TabLibName, lua.OpenTable},
		{lua.StringLibName, lua.OpenString},
		{lua.MathLibName, lua.OpenMath},
	} {
		l.Push(l.NewFunction(open.fn))
		l.Push(lua.LString(open.name))
		l.Call(1, 0)
	}
	inst.l = l
	inst.installAPI()

	if err := l.DoString(source); err != nil {
		l.Close()
		return nil, &ScriptError{Script: name, Callback: "load", Err: err}
	}

	inst.cb = map[string]*lua.LFunction{}
	for _, name := range []string{
		cbStartup, cbTick, cbKeyDown, cbKeyUp, cbMouseButtonDown,
		cbMouseButtonUp, cbMouseWheel, cbMouseMove, cbMouseHID,
		cbRender, cbApplyParameter,
	} {
		if fn, ok := l.GetGlobal(name).(*lua.LFunction); ok {
			inst.cb[name] = fn
		}
	}
	return inst, nil
}

// NewFromFile loads the script source and its optional manifest, merging
// manifest defaults with the supplied parameter overrides.
func NewFromFile(path string, host Host, overrides map[string]any, log zerolog.Logger) (*Instance, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, &ScriptError{Script: path, Callback: "load", Err: err}
	}
	params := overrides
	m, merr := LoadManifest(ManifestPath(path))
	if merr == nil && m != nil {
		params = m.Merge(overrides)
	}
	inst, err := New(path, string(src), host, params, log)
	if err != nil {
		return nil, err
	}
	inst.manifest = m
	return inst, nil
}

func (i *Instance) Name() string { return i.name }

// Layer is the script's current submitted layer. Scripts that skip
// on_render keep their previous frame's contribution.
func (i *Instance) Layer() []canvas.Color {
	if i.frameFault || i.unloaded {
		return nil
	}
	return i.layer
}

// Params returns the effective parameter table.
func (i *Instance) Params() map[string]any { return i.params }

// Faulted reports whether this frame's contribution is suppressed.
func (i *Instance) Faulted() bool { return i.frameFault }

// Unloaded reports whether the script has been replaced by a
// transparent placeholder after repeated faults.
func (i *Instance) Unloaded() bool { return i.unloaded }

// BeginFrame resets the per-frame fault flag.
func (i *Instance) BeginFrame() { i.frameFault = false }

// EndFrame folds the frame's fault flag into the consecutive-fault
// counter and returns it. A clean frame resets the counter.
func (i *Instance) EndFrame() int {
	if i.frameFault {
		i.faults++
	} else {
		i.faults = 0
	}
	return i.faults
}

// Unload tears the interpreter down, leaving a transparent placeholder.
// Further callbacks are no-ops; the main loop is never aborted.
func (i *Instance) Unload() {
	if i.unloaded {
		return
	}
	i.unloaded = true
	clearLayer(i.layer)
	i.l.Close()
	i.log.Warn().Msg("script unloaded after repeated faults")
}

func (i *Instance) Close() {
	if !i.unloaded {
		i.unloaded = true
		i.l.Close()
	}
}

func (i *Instance) OnStartup() error {
	return i.call(cbStartup, i.paramsTable())
}

func (i *Instance) OnTick(deltaTicks int) error {
	i.ticks += uint64(deltaTicks)
	return i.call(cbTick, lua.LNumber(deltaTicks))
}

func (i *Instance) OnKeyDown(index int) error {
	return i.call(cbKeyDown, lua.LNumber(index))
}

func (i *Instance) OnKeyUp(index int) error {
	return i.call(cbKeyUp, lua.LNumber(index))
}

func (i *Instance) OnMouseButtonDown(index int) error {
	return i.call(cbMouseButtonDown, lua.LNumber(index))
}

func (i *Instance) OnMouseButtonUp(index int) error {
	return i.call(cbMouseButtonUp, lua.LNumber(index))
}

func (i *Instance) OnMouseWheel(direction int) error {
	return i.call(cbMouseWheel, lua.LNumber(direction))
}

func (i *Instance) OnMouseMove(dx, dy, dz int) error {
	return i.call(cbMouseMove, lua.LNumber(dx), lua.LNumber(dy), lua.LNumber(dz))
}

func (i *Instance) OnMouseHIDEvent(kind, arg int) error {
	return i.call(cbMouseHID, lua.LNumber(kind), lua.LNumber(arg))
}

func (i *Instance) OnRender() error {
	return i.call(cbRender)
}

// OnApplyParameter merges values into the parameter table, clamping
// each to its declared manifest range, and notifies the script. The
// callback must be idempotent.
func (i *Instance) OnApplyParameter(values map[string]any) error {
	if i.params == nil {
		i.params = map[string]any{}
	}
	for k, v := range values {
		if i.manifest != nil {
			v = i.manifest.Clamp(k, v)
		}
		i.params[k] = v
	}
	return i.call(cbApplyParameter, i.paramsTable())
}

// call invokes a cached callback, catching any fault at the dispatch
// boundary: the error is logged, the frame contribution cleared and the
// fault flag set. Errors never unwind into the scheduler.
func (i *Instance) call(name string, args ...lua.LValue) error {
	if i.unloaded || i.frameFault {
		return nil
	}
	fn, ok := i.cb[name]
	if !ok {
		return nil
	}
	i.l.Push(fn)
	for _, a := range args {
		i.l.Push(a)
	}
	if err := i.l.PCall(len(args), 0, nil); err != nil {
		i.frameFault = true
		clearLayer(i.layer)
		serr := &ScriptError{Script: i.name, Callback: name, Err: err}
		i.log.Error().Err(serr).Msg("script fault")
		return serr
	}
	return nil
}

func (i *Instance) paramsTable() *lua.LTable {
	tbl := i.l.NewTable()
	for k, v := range i.params {
		tbl.RawSetString(k, toLValue(v))
	}
	return tbl
}

func toLValue(v any) lua.LValue {
	switch x := v.(type) {
	case nil:
		return lua.LNil
	case bool:
		return lua.LBool(x)
	case int:
		return lua.LNumber(x)
	case int64:
		return lua.LNumber(x)
	case uint32:
		return lua.LNumber(x)
	case float64:
		return lua.LNumber(x)
	case string:
		return lua.LString(x)
	default:
		return lua.LString(fmt.Sprint(x))
	}
}

func clearLayer(layer []canvas.Color) {
	for i := range layer {
		layer[i] = canvas.Transparent
	}
}
