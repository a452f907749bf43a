package script

import (
	lua "github.com/yuin/gopher-lua"

	"github.com/eruption-project/eruption-sub002/internal/canvas"
)

// installAPI injects the curated script API: geometry constants, color
// helpers, sensor queries and the single mutating call submit_color_map.
func (i *Instance) installAPI() {
	l := i.l
	w, h := i.host.CanvasSize()

	l.SetGlobal("canvas_size", lua.LNumber(w*h))
	l.SetGlobal("canvas_width", lua.LNumber(w))
	l.SetGlobal("canvas_height", lua.LNumber(h))
	l.SetGlobal("num_keys", lua.LNumber(i.host.NumKeys()))

	// key_cells(index) -> array of 1-based canvas cell indices
	l.SetGlobal("key_cells", l.NewFunction(func(l *lua.LState) int {
		cells := i.host.KeyCells(int(l.CheckNumber(1)))
		tbl := l.NewTable()
		for n, c := range cells {
			tbl.RawSetInt(n+1, lua.LNumber(c+1))
		}
		l.Push(tbl)
		return 1
	}))

	// zone(name) -> x, y, x2, y2 or nil
	l.SetGlobal("zone", l.NewFunction(func(l *lua.LState) int {
		name := l.CheckString(1)
		if r, ok := i.host.Zones()[name]; ok {
			l.Push(lua.LNumber(r.X))
			l.Push(lua.LNumber(r.Y))
			l.Push(lua.LNumber(r.X2))
			l.Push(lua.LNumber(r.Y2))
			return 4
		}
		l.Push(lua.LNil)
		return 1
	}))

	// zone_names() -> array table
	l.SetGlobal("zone_names", l.NewFunction(func(l *lua.LState) int {
		tbl := l.NewTable()
		n := 1
		for name := range i.host.Zones() {
			tbl.RawSetInt(n, lua.LString(name))
			n++
		}
		l.Push(tbl)
		return 1
	}))

	l.SetGlobal("rgb_to_color", l.NewFunction(func(l *lua.LState) int {
		c := canvas.RGB(u8(l.CheckNumber(1)), u8(l.CheckNumber(2)), u8(l.CheckNumber(3)))
		l.Push(lua.LNumber(canvas.PackARGB(c)))
		return 1
	}))

	l.SetGlobal("rgba_to_color", l.NewFunction(func(l *lua.LState) int {
		c := canvas.Color{
			R: u8(l.CheckNumber(1)),
			G: u8(l.CheckNumber(2)),
			B: u8(l.CheckNumber(3)),
			A: u8(l.CheckNumber(4)),
		}
		l.Push(lua.LNumber(canvas.PackARGB(c)))
		return 1
	}))

	l.SetGlobal("color_to_rgba", l.NewFunction(func(l *lua.LState) int {
		c := canvas.UnpackARGB(uint32(l.CheckNumber(1)))
		l.Push(lua.LNumber(c.R))
		l.Push(lua.LNumber(c.G))
		l.Push(lua.LNumber(c.B))
		l.Push(lua.LNumber(c.A))
		return 4
	}))

	// hsl_to_color(h_degrees, s, l) -> opaque packed color
	l.SetGlobal("hsl_to_color", l.NewFunction(func(l *lua.LState) int {
		hdeg := float64(l.CheckNumber(1))
		s := float64(l.CheckNumber(2))
		lv := float64(l.CheckNumber(3))
		c := canvas.HSLToRGB(hdeg/360.0, s, lv)
		l.Push(lua.LNumber(canvas.PackARGB(c)))
		return 1
	}))

	l.SetGlobal("lerp_color", l.NewFunction(func(l *lua.LState) int {
		a := canvas.UnpackARGB(uint32(l.CheckNumber(1)))
		b := canvas.UnpackARGB(uint32(l.CheckNumber(2)))
		t := float64(l.CheckNumber(3))
		l.Push(lua.LNumber(canvas.PackARGB(canvas.Lerp(a, b, t))))
		return 1
	}))

	l.SetGlobal("get_ticks", l.NewFunction(func(l *lua.LState) int {
		l.Push(lua.LNumber(i.ticks))
		return 1
	}))

	l.SetGlobal("get_key_state", l.NewFunction(func(l *lua.LState) int {
		l.Push(lua.LBool(i.host.KeyState(int(l.CheckNumber(1)))))
		return 1
	}))

	l.SetGlobal("get_audio_level", l.NewFunction(func(l *lua.LState) int {
		l.Push(lua.LNumber(i.host.AudioLevel()))
		return 1
	}))

	l.SetGlobal("get_audio_spectrum", l.NewFunction(func(l *lua.LState) int {
		l.Push(lua.LNumber(i.host.AudioSpectrum(int(l.CheckNumber(1)))))
		return 1
	}))

	l.SetGlobal("get_temperature", l.NewFunction(func(l *lua.LState) int {
		l.Push(lua.LNumber(i.host.Temperature()))
		return 1
	}))

	l.SetGlobal("get_mouse_delta", l.NewFunction(func(l *lua.LState) int {
		dx, dy, dz := i.host.MouseDelta()
		l.Push(lua.LNumber(dx))
		l.Push(lua.LNumber(dy))
		l.Push(lua.LNumber(dz))
		return 3
	}))

	// submit_color_map(tbl): 1-based array of packed ARGB values, one per
	// canvas cell. The script's entire frame contribution goes through
	// this call.
	l.SetGlobal("submit_color_map", l.NewFunction(func(l *lua.LState) int {
		tbl := l.CheckTable(1)
		n := len(i.layer)
		for idx := 0; idx < n; idx++ {
			v := tbl.RawGetInt(idx + 1)
			if num, ok := v.(lua.LNumber); ok {
				i.layer[idx] = canvas.UnpackARGB(uint32(num))
			} else {
				i.layer[idx] = canvas.Transparent
			}
		}
		return 0
	}))

	l.SetGlobal("log_info", l.NewFunction(func(l *lua.LState) int {
		i.log.Info().Msg(l.CheckString(1))
		return 0
	}))
	l.SetGlobal("log_debug", l.NewFunction(func(l *lua.LState) int {
		i.log.Debug().Msg(l.CheckString(1))
		return 0
	}))
}

func u8(n lua.LNumber) uint8 {
	v := int(n)
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}
