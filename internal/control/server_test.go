package control

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/eruption-project/eruption-sub002/internal/device"
	"github.com/eruption-project/eruption-sub002/internal/engine"
	"github.com/eruption-project/eruption-sub002/internal/profile"
)

// fakeCore records control calls and returns canned state.
type fakeCore struct {
	status    engine.Status
	statusErr error

	switched  string
	slot      int
	slotErr   error
	param     [3]string
	sweepKind device.SweepKind
	hotplug   engine.HotplugPayload
	override  []byte
}

func (f *fakeCore) GetStatus() (engine.Status, error) { return f.status, f.statusErr }
func (f *fakeCore) SwitchProfile(path string) error {
	f.switched = path
	return nil
}
func (f *fakeCore) SwitchSlot(index int) error {
	f.slot = index
	return f.slotErr
}
func (f *fakeCore) SetParameter(profileName, scriptName, name string, value any) error {
	f.param = [3]string{profileName, scriptName, name}
	return nil
}
func (f *fakeCore) SubmitCanvasOverride(data []byte) error {
	f.override = data
	return nil
}
func (f *fakeCore) NotifyHotplug(p engine.HotplugPayload) error {
	f.hotplug = p
	return nil
}
func (f *fakeCore) RunSweep(kind device.SweepKind) error {
	f.sweepKind = kind
	return nil
}
func (f *fakeCore) ActiveProfile() (int, *profile.Profile) {
	return 0, profile.FailSafe()
}

func newTestServer(core Core) *httptest.Server {
	s := NewServer(core, NewHub(zerolog.Nop()), zerolog.Nop())
	return httptest.NewServer(s.Router())
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	b, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(b))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	return resp
}

func TestHealthAndStatus(t *testing.T) {
	core := &fakeCore{status: engine.Status{State: "running", Frames: 42}}
	srv := newTestServer(core)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("health status: %d", resp.StatusCode)
	}

	resp2, err := http.Get(srv.URL + "/api/status")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp2.Body.Close()
	var st engine.Status
	if err := json.NewDecoder(resp2.Body).Decode(&st); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if st.State != "running" || st.Frames != 42 {
		t.Fatalf("status payload: %#v", st)
	}
}

func TestHealthUnavailable(t *testing.T) {
	core := &fakeCore{statusErr: errors.New("engine busy")}
	srv := newTestServer(core)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", resp.StatusCode)
	}
}

func TestSwitchProfileEndpoint(t *testing.T) {
	core := &fakeCore{}
	srv := newTestServer(core)
	defer srv.Close()

	resp := postJSON(t, srv.URL+"/api/profile/switch", map[string]string{"path": "p.yaml"})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status: %d", resp.StatusCode)
	}
	if core.switched != "p.yaml" {
		t.Fatalf("core not called: %q", core.switched)
	}

	// Missing path fails binding validation.
	resp2 := postJSON(t, srv.URL+"/api/profile/switch", map[string]string{})
	defer resp2.Body.Close()
	if resp2.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp2.StatusCode)
	}
}

func TestSlotEndpoint(t *testing.T) {
	core := &fakeCore{}
	srv := newTestServer(core)
	defer srv.Close()

	resp := postJSON(t, srv.URL+"/api/slot/2", nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK || core.slot != 2 {
		t.Fatalf("status %d, slot %d", resp.StatusCode, core.slot)
	}

	resp2 := postJSON(t, srv.URL+"/api/slot/xyz", nil)
	defer resp2.Body.Close()
	if resp2.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for non-numeric slot, got %d", resp2.StatusCode)
	}

	core.slotErr = errors.New("empty slot")
	resp3 := postJSON(t, srv.URL+"/api/slot/3", nil)
	defer resp3.Body.Close()
	if resp3.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", resp3.StatusCode)
	}
}

func TestParameterEndpoint(t *testing.T) {
	core := &fakeCore{}
	srv := newTestServer(core)
	defer srv.Close()

	resp := postJSON(t, srv.URL+"/api/parameter", map[string]any{
		"profile": "p", "script": "s.lua", "name": "speed", "value": 3,
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status: %d", resp.StatusCode)
	}
	if core.param != [3]string{"p", "s.lua", "speed"} {
		t.Fatalf("core call: %#v", core.param)
	}
}

func TestCanvasEndpoint(t *testing.T) {
	core := &fakeCore{}
	srv := newTestServer(core)
	defer srv.Close()

	// encoding/json expects []byte fields as base64 strings.
	resp := postJSON(t, srv.URL+"/api/canvas", map[string]any{
		"data": []byte{1, 2, 3, 4},
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status: %d", resp.StatusCode)
	}
	if len(core.override) != 4 || core.override[0] != 1 {
		t.Fatalf("override payload: %#v", core.override)
	}
}

func TestHotplugEndpoint(t *testing.T) {
	core := &fakeCore{}
	srv := newTestServer(core)
	defer srv.Close()

	resp := postJSON(t, srv.URL+"/api/hotplug", engine.HotplugPayload{
		Action: "remove", Path: "/dev/hidraw3",
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status: %d", resp.StatusCode)
	}
	if core.hotplug.Action != "remove" || core.hotplug.Path != "/dev/hidraw3" {
		t.Fatalf("hotplug call: %#v", core.hotplug)
	}
}

func TestStatusStream(t *testing.T) {
	core := &fakeCore{status: engine.Status{State: "running", Frames: 7}}
	srv := newTestServer(core)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/status"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var st engine.Status
	if err := conn.ReadJSON(&st); err != nil {
		t.Fatalf("read: %v", err)
	}
	if st.State != "running" || st.Frames != 7 {
		t.Fatalf("streamed status: %#v", st)
	}
}

func TestSweepEndpoint(t *testing.T) {
	core := &fakeCore{}
	srv := newTestServer(core)
	defer srv.Close()

	resp := postJSON(t, srv.URL+"/api/debug/sweep", map[string]string{"kind": "rgb_channels"})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status: %d", resp.StatusCode)
	}
	if core.sweepKind != device.SweepChannels {
		t.Fatalf("sweep kind: %q", core.sweepKind)
	}
}
