package sink

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/eruption-project/eruption-sub002/internal/canvas"
)

// fakeTarget records writes and can be switched into failure mode.
type fakeTarget struct {
	mu     sync.Mutex
	frames [][]canvas.Color
	fail   bool
}

func (f *fakeTarget) WriteFrame(cells []canvas.Color) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("write failed")
	}
	cp := make([]canvas.Color, len(cells))
	copy(cp, cells)
	f.frames = append(f.frames, cp)
	return nil
}

func (f *fakeTarget) setFail(v bool) {
	f.mu.Lock()
	f.fail = v
	f.mu.Unlock()
}

func (f *fakeTarget) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.frames)
}

func (f *fakeTarget) last() []canvas.Color {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.frames) == 0 {
		return nil
	}
	return f.frames[len(f.frames)-1]
}

func TestWindowExtract(t *testing.T) {
	// 4-wide canvas, device occupies rows 1-2 with 3 columns.
	win := Window{StartRow: 1, Rows: 2, Cols: 3, CanvasWidth: 4}
	if win.CellCount() != 6 {
		t.Fatalf("cell count: %d", win.CellCount())
	}
	frame := make([]canvas.Color, 12)
	for i := range frame {
		frame[i] = canvas.Color{R: uint8(i)}
	}
	dst := make([]canvas.Color, 6)
	win.Extract(dst, frame)

	want := []uint8{4, 5, 6, 8, 9, 10}
	for i, w := range want {
		if dst[i].R != w {
			t.Fatalf("cell %d: expected %d, got %d", i, w, dst[i].R)
		}
	}
}

func TestWindowExtractShortFrame(t *testing.T) {
	win := Window{StartRow: 2, Rows: 2, Cols: 2, CanvasWidth: 2}
	dst := make([]canvas.Color, 4)
	// Frame shorter than the window must not panic.
	win.Extract(dst, make([]canvas.Color, 5))
}

func frame(n int, c canvas.Color) []canvas.Color {
	out := make([]canvas.Color, n)
	for i := range out {
		out[i] = c
	}
	return out
}

func TestWorkerDelivers(t *testing.T) {
	tgt := &fakeTarget{}
	win := Window{StartRow: 0, Rows: 1, Cols: 4, CanvasWidth: 4}
	w := NewWorker("dev0", tgt, win, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w.Start(ctx)

	w.TrySend(frame(4, canvas.RGB(1, 2, 3)))
	deadline := time.After(time.Second)
	for tgt.count() == 0 {
		select {
		case <-deadline:
			t.Fatal("frame never delivered")
		case <-time.After(time.Millisecond):
		}
	}
	if got := tgt.last(); got[0] != canvas.RGB(1, 2, 3) {
		t.Fatalf("delivered frame wrong: %#v", got[0])
	}
	if st := w.Stats(); st.Written != 1 || st.State != "ok" {
		t.Fatalf("stats wrong: %#v", st)
	}
}

func TestWorkerNewestWins(t *testing.T) {
	tgt := &fakeTarget{}
	win := Window{StartRow: 0, Rows: 1, Cols: 2, CanvasWidth: 2}
	w := NewWorker("dev0", tgt, win, zerolog.Nop())
	// Worker not started: the queue fills and stale frames get replaced.

	w.TrySend(frame(2, canvas.RGB(1, 0, 0)))
	w.TrySend(frame(2, canvas.RGB(2, 0, 0)))
	w.TrySend(frame(2, canvas.RGB(3, 0, 0)))

	st := w.Stats()
	if st.Skipped == 0 {
		t.Fatalf("expected skips under backpressure: %#v", st)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w.Start(ctx)

	deadline := time.After(time.Second)
	for tgt.count() == 0 {
		select {
		case <-deadline:
			t.Fatal("frame never delivered")
		case <-time.After(time.Millisecond):
		}
	}
	// The queued frame is the newest one that made it in.
	if got := tgt.last(); got[0].R < 2 {
		t.Fatalf("stale frame delivered: %#v", got[0])
	}
}

func TestWorkerOfflineAfterFailures(t *testing.T) {
	tgt := &fakeTarget{}
	tgt.setFail(true)
	win := Window{StartRow: 0, Rows: 1, Cols: 1, CanvasWidth: 1}
	w := NewWorker("dev0", tgt, win, zerolog.Nop())

	ctx := context.Background()
	buf := frame(1, canvas.RGB(1, 1, 1))
	for i := 0; i < maxWriteFailures; i++ {
		w.backoff = 0 // keep the test fast
		w.writeOne(ctx, buf)
	}
	if !w.Offline() {
		t.Fatalf("expected offline after %d failures: %#v", maxWriteFailures, w.Stats())
	}
	st := w.Stats()
	if st.Failures != maxWriteFailures || st.State != "offline" {
		t.Fatalf("stats wrong: %#v", st)
	}

	// Offline workers stop touching the hardware.
	w.writeOne(ctx, buf)
	if w.Stats().Failures != maxWriteFailures {
		t.Fatal("offline worker must not keep writing")
	}
}

func TestWorkerRecovery(t *testing.T) {
	tgt := &fakeTarget{}
	tgt.setFail(true)
	win := Window{StartRow: 0, Rows: 1, Cols: 1, CanvasWidth: 1}
	w := NewWorker("dev0", tgt, win, zerolog.Nop())

	ctx := context.Background()
	buf := frame(1, canvas.RGB(1, 1, 1))
	w.writeOne(ctx, buf)
	if st := w.Stats(); st.State != "degraded" {
		t.Fatalf("expected degraded after one failure: %#v", st)
	}
	if w.backoff != backoffBase {
		t.Fatalf("expected base backoff, got %v", w.backoff)
	}

	tgt.setFail(false)
	w.backoff = 0
	w.writeOne(ctx, buf)
	st := w.Stats()
	if st.State != "ok" || st.Written != 1 {
		t.Fatalf("expected recovery: %#v", st)
	}
	if w.consecFail != 0 || w.backoff != 0 {
		t.Fatal("failure state must reset on success")
	}
}

func TestBackoffCapped(t *testing.T) {
	tgt := &fakeTarget{}
	tgt.setFail(true)
	win := Window{StartRow: 0, Rows: 1, Cols: 1, CanvasWidth: 1}
	w := NewWorker("dev0", tgt, win, zerolog.Nop())

	ctx := context.Background()
	buf := frame(1, canvas.RGB(1, 1, 1))
	for i := 0; i < maxWriteFailures-1; i++ {
		w.writeOne(ctx, buf)
		if w.backoff > backoffCap {
			t.Fatalf("backoff exceeded cap: %v", w.backoff)
		}
		w.backoff = 0 // skip the actual sleep
		w.consecFail = minInt(w.consecFail, 8)
	}
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
