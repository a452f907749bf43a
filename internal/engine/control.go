package engine

import (
	"errors"
	"fmt"
	"time"

	"github.com/eruption-project/eruption-sub002/internal/canvas"
	"github.com/eruption-project/eruption-sub002/internal/device"
	"github.com/eruption-project/eruption-sub002/internal/profile"
	"github.com/eruption-project/eruption-sub002/internal/sink"
)

// Control-plane surface. These methods are safe to call from any
// goroutine; mutations execute on the scheduler goroutine between
// ticks, so swaps are atomic with respect to frame production.

var errEngineBusy = errors.New("engine not accepting requests")

// do runs fn on the scheduler goroutine and waits for completion.
func (e *Engine) do(fn func()) error {
	done := make(chan struct{})
	wrapped := func() {
		fn()
		close(done)
	}
	select {
	case e.reqC <- wrapped:
	case <-time.After(2 * time.Second):
		return errEngineBusy
	}
	select {
	case <-done:
		return nil
	case <-time.After(2 * time.Second):
		return errEngineBusy
	}
}

// SwitchProfile loads a profile file, stages its scripts off the hot
// path, then applies it to the active slot with a crossfade. A compile
// or startup failure rejects the switch and leaves the active profile
// untouched.
func (e *Engine) SwitchProfile(path string) error {
	p, err := profile.Load(path)
	if err != nil {
		return err
	}
	insts, err := e.instantiate(p)
	if err != nil {
		return fmt.Errorf("%w: %v", profile.ErrProfileLoad, err)
	}
	if err := e.do(func() {
		idx, _ := e.slots.Active()
		_ = e.slots.Assign(idx, p)
		e.comp.BeginFade(e.FadeTicks())
		e.adoptScripts(insts)
		e.log.Info().Str("profile", p.Name).Int("slot", idx).Msg("profile switched")
	}); err != nil {
		// The scheduler never adopted the staged instances; their
		// interpreters would otherwise leak.
		for _, inst := range insts {
			inst.Close()
		}
		return err
	}
	return nil
}

// SwitchSlot activates the profile bound to slot index, with the same
// staged-compile-then-atomic-swap protocol as SwitchProfile.
func (e *Engine) SwitchSlot(index int) error {
	p, err := e.slots.Get(index)
	if err != nil {
		return err
	}
	if p == nil {
		return fmt.Errorf("%w: slot %d is empty", profile.ErrProfileLoad, index)
	}
	insts, err := e.instantiate(p)
	if err != nil {
		return fmt.Errorf("%w: %v", profile.ErrProfileLoad, err)
	}
	if err := e.do(func() {
		_, _ = e.slots.SetActive(index)
		e.comp.BeginFade(e.FadeTicks())
		e.adoptScripts(insts)
		e.log.Info().Str("profile", p.Name).Int("slot", index).Msg("slot switched")
	}); err != nil {
		for _, inst := range insts {
			inst.Close()
		}
		return err
	}
	return nil
}

// SetParameter updates one script parameter in the active profile and
// notifies the running instance via on_apply_parameter.
func (e *Engine) SetParameter(profileName, scriptName, name string, value any) error {
	var applyErr error
	err := e.do(func() {
		_, p := e.slots.Active()
		if profileName != "" && p.Name != profileName {
			applyErr = fmt.Errorf("profile %q is not active", profileName)
			return
		}
		for _, inst := range e.scripts {
			if inst.Name() == scriptName || inst.Name() == e.resolveScriptPath(scriptName) {
				p.SetParam(scriptName, name, value)
				_ = inst.OnApplyParameter(map[string]any{name: value})
				return
			}
		}
		applyErr = fmt.Errorf("script %q not active", scriptName)
	})
	if err != nil {
		return err
	}
	return applyErr
}

func (e *Engine) resolveScriptPath(ref string) string {
	if e.opts.ScriptDir == "" {
		return ref
	}
	return e.opts.ScriptDir + "/" + ref
}

// SubmitCanvasOverride pushes an externally rendered RGBA frame that
// bypasses scripted compositing for one tick.
func (e *Engine) SubmitCanvasOverride(data []byte) error {
	if len(data)%4 != 0 {
		return fmt.Errorf("override payload must be RGBA quads, got %d bytes", len(data))
	}
	frame := make([]canvas.Color, len(data)/4)
	for i := range frame {
		frame[i] = canvas.Color{
			R: data[i*4+0],
			G: data[i*4+1],
			B: data[i*4+2],
			A: data[i*4+3],
		}
	}
	var applyErr error
	err := e.do(func() {
		applyErr = e.comp.SubmitOverride(frame)
	})
	if err != nil {
		return err
	}
	return applyErr
}

// HotplugPayload describes a device arrival or removal.
type HotplugPayload struct {
	Action    string `json:"action"` // "add" | "remove"
	Path      string `json:"path"`
	VendorID  uint16 `json:"vendor_id,omitempty"`
	ProductID uint16 `json:"product_id,omitempty"`
}

// NotifyHotplug reconfigures the device set. The scheduler passes
// through Reconfiguring and restarts the active profile against the new
// canvas geometry.
func (e *Engine) NotifyHotplug(p HotplugPayload) error {
	var applyErr error
	err := e.do(func() {
		e.setState(StateReconfiguring)
		defer e.setState(StateRunning)

		switch p.Action {
		case "remove":
			e.devman.Unbind(p.Path)
		default:
			e.bindAll()
		}
		if err := e.reconfigure(e.runCtx); err != nil {
			applyErr = err
			return
		}
		_, active := e.slots.Active()
		insts, err := e.instantiate(active)
		if err != nil {
			e.log.Error().Err(err).Msg("profile restart after hotplug failed, using fail-safe")
			insts, err = e.instantiate(profile.FailSafe())
			if err != nil {
				applyErr = err
				return
			}
		}
		e.adoptScripts(insts)
		e.log.Info().Str("action", p.Action).Str("path", p.Path).Msg("hotplug reconfiguration complete")
	})
	if err != nil {
		return err
	}
	return applyErr
}

// RunSweep starts a hardware verification sweep through the override
// path.
func (e *Engine) RunSweep(kind device.SweepKind) error {
	return e.do(func() {
		e.sweep = device.NewSweep(kind)
	})
}

// ScriptStatus is one active script's health.
type ScriptStatus struct {
	Name     string `json:"name"`
	Faulted  bool   `json:"faulted"`
	Unloaded bool   `json:"unloaded"`
}

// DeviceStatus is one bound device plus its sink counters.
type DeviceStatus struct {
	Path  string     `json:"path"`
	Name  string     `json:"name"`
	Class string     `json:"class"`
	Cells int        `json:"cells"`
	Sink  sink.Stats `json:"sink"`
}

// Status is the control-plane snapshot.
type Status struct {
	State         string                   `json:"state"`
	Frames        uint64                   `json:"frames"`
	FPS           int                      `json:"fps"`
	CanvasWidth   int                      `json:"canvas_width"`
	CanvasHeight  int                      `json:"canvas_height"`
	ActiveSlot    int                      `json:"active_slot"`
	ActiveProfile string                   `json:"active_profile"`
	Slots         [profile.NumSlots]string `json:"slots"`
	Scripts       []ScriptStatus           `json:"scripts"`
	Devices       []DeviceStatus           `json:"devices"`
	InputDropped  uint64                   `json:"input_dropped"`
}

// GetStatus snapshots scheduler state on the loop goroutine.
func (e *Engine) GetStatus() (Status, error) {
	var st Status
	err := e.do(func() {
		g := e.geo.Load()
		idx, p := e.slots.Active()
		st = Status{
			State:         e.State().String(),
			Frames:        e.frames.Load(),
			FPS:           e.opts.FPS,
			CanvasWidth:   g.width,
			CanvasHeight:  g.height,
			ActiveSlot:    idx,
			ActiveProfile: p.Name,
			Slots:         e.slots.Names(),
			InputDropped:  e.inputDropped.Load(),
		}
		for _, inst := range e.scripts {
			st.Scripts = append(st.Scripts, ScriptStatus{
				Name:     inst.Name(),
				Faulted:  inst.Faulted(),
				Unloaded: inst.Unloaded(),
			})
		}
		for _, d := range e.devman.Bound() {
			ds := DeviceStatus{
				Path:  d.Info.Path,
				Name:  d.Info.Name,
				Class: d.Info.Class.String(),
				Cells: d.CellCount(),
			}
			if w, ok := e.sinks[d.Info.Path]; ok {
				ds.Sink = w.Stats()
			}
			st.Devices = append(st.Devices, ds)
		}
	})
	return st, err
}

// ActiveProfile returns the active slot index and profile.
func (e *Engine) ActiveProfile() (int, *profile.Profile) {
	return e.slots.Active()
}
