package sink

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/eruption-project/eruption-sub002/internal/canvas"
)

// Target is the hardware write surface a worker drives.
type Target interface {
	WriteFrame(cells []canvas.Color) error
}

const (
	// maxWriteFailures consecutive failures mark the device offline.
	maxWriteFailures = 10
	backoffBase      = 10 * time.Millisecond
	backoffCap       = time.Second
)

// State is the worker's health, reported through the control plane.
type State int32

const (
	StateOK State = iota
	StateDegraded
	StateOffline
)

func (s State) String() string {
	switch s {
	case StateOK:
		return "ok"
	case StateDegraded:
		return "degraded"
	default:
		return "offline"
	}
}

// Stats is a point-in-time counter snapshot.
type Stats struct {
	Written  uint64 `json:"written"`
	Skipped  uint64 `json:"skipped"`
	Failures uint64 `json:"failures"`
	State    string `json:"state"`
}

// Window selects a device's cells out of the global canvas: Rows full
// grid rows starting at StartRow, of which the first Cols cells per row
// belong to the device (the rest is padding up to the canvas width).
type Window struct {
	StartRow, Rows, Cols, CanvasWidth int
}

// CellCount is the number of device-local cells the window extracts.
func (w Window) CellCount() int { return w.Rows * w.Cols }

// Extract copies the window's cells out of frame into dst, compacting
// away the canvas-width padding.
func (w Window) Extract(dst, frame []canvas.Color) {
	for r := 0; r < w.Rows; r++ {
		src := (w.StartRow + r) * w.CanvasWidth
		end := src + w.Cols
		if src >= len(frame) {
			break
		}
		if end > len(frame) {
			end = len(frame)
		}
		copy(dst[r*w.Cols:(r+1)*w.Cols], frame[src:end])
	}
}

// Worker owns one bound device's outbound pipeline. Frames arrive on a
// capacity-1 channel with newest-wins discipline: the render loop never
// blocks on a slow device, it just replaces the stale frame.
type Worker struct {
	name   string
	target Target
	win    Window

	frames chan []canvas.Color
	free   chan []canvas.Color
	log    zerolog.Logger

	written  atomic.Uint64
	skipped  atomic.Uint64
	failures atomic.Uint64
	state    atomic.Int32

	consecFail int
	backoff    time.Duration
}

func NewWorker(name string, target Target, win Window, log zerolog.Logger) *Worker {
	w := &Worker{
		name:   name,
		target: target,
		win:    win,
		frames: make(chan []canvas.Color, 1),
		free:   make(chan []canvas.Color, 2),
		log:    log.With().Str("component", "sink").Str("device", name).Logger(),
	}
	// Pre-size the frame pool so the hot path never allocates.
	w.free <- make([]canvas.Color, win.CellCount())
	w.free <- make([]canvas.Color, win.CellCount())
	return w
}

func (w *Worker) Name() string { return w.name }

// Offline reports whether the device has been excluded after an
// excessive run of failures.
func (w *Worker) Offline() bool { return State(w.state.Load()) == StateOffline }

func (w *Worker) Stats() Stats {
	return Stats{
		Written:  w.written.Load(),
		Skipped:  w.skipped.Load(),
		Failures: w.failures.Load(),
		State:    State(w.state.Load()).String(),
	}
}

// TrySend copies the device's window of frame and queues it without
// blocking. A full queue drops the stale frame and counts a skip.
func (w *Worker) TrySend(frame []canvas.Color) {
	buf, ok := w.getBuf()
	if !ok {
		w.skipped.Add(1)
		return
	}
	w.win.Extract(buf, frame)

	select {
	case w.frames <- buf:
		return
	default:
	}
	// Queue full: replace the stale frame, newest wins.
	select {
	case old := <-w.frames:
		w.recycle(old)
		w.skipped.Add(1)
	default:
	}
	select {
	case w.frames <- buf:
	default:
		w.recycle(buf)
		w.skipped.Add(1)
	}
}

// Start launches the write loop.
func (w *Worker) Start(ctx context.Context) {
	go w.run(ctx)
}

func (w *Worker) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case buf := <-w.frames:
			w.writeOne(ctx, buf)
			w.recycle(buf)
		}
	}
}

func (w *Worker) writeOne(ctx context.Context, buf []canvas.Color) {
	if w.Offline() {
		return
	}
	if w.backoff > 0 {
		t := time.NewTimer(w.backoff)
		select {
		case <-ctx.Done():
			t.Stop()
			return
		case <-t.C:
		}
	}

	if err := w.target.WriteFrame(buf); err != nil {
		w.failures.Add(1)
		w.consecFail++
		w.backoff = backoffBase << uint(w.consecFail-1)
		if w.backoff > backoffCap {
			w.backoff = backoffCap
		}
		if w.consecFail >= maxWriteFailures {
			w.state.Store(int32(StateOffline))
			w.log.Warn().Err(err).Int("failures", w.consecFail).Msg("device marked offline")
		} else {
			w.state.Store(int32(StateDegraded))
			w.log.Debug().Err(err).Dur("backoff", w.backoff).Msg("device write failed")
		}
		return
	}

	if w.consecFail > 0 {
		w.log.Info().Msg("device recovered")
	}
	w.consecFail = 0
	w.backoff = 0
	w.state.Store(int32(StateOK))
	w.written.Add(1)
}

func (w *Worker) getBuf() ([]canvas.Color, bool) {
	select {
	case buf := <-w.free:
		return buf, true
	default:
		return nil, false
	}
}

func (w *Worker) recycle(buf []canvas.Color) {
	select {
	case w.free <- buf:
	default:
	}
}
