package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"cooling_control"
	"cooling_control/internal/models"
	"cooling_control/internal/service"
)

func doRequest(r http.Handler, method, path, body, token string) *httptest.ResponseRecorder {
	var buf *bytes.Buffer
	if body != "" {
		buf = bytes.NewBufferString(body)
	} else {
		buf = &bytes.Buffer{}
	}
	req := httptest.NewRequest(method, path, buf)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, vv := range authHeader(token) {
		for _, v := range vv {
			req.Header.Add(k, v)
		}
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func newControlRouter() (http.Handler, *mockControl, *mockMonitoring) {
	ctl := &mockControl{}
	mon := &mockMonitoring{state: cooling_control.StateResponse{
		Snapshot: models.Snapshot{Mode: models.ModeAuto, OutputPct: 42, Setpoint: 35, Running: true},
	}}
	s := &service.Service{
		Authorization: &mockAuth{parseOp: models.Operator{ID: 7, Username: "ops"}},
		Control:       ctl,
		Monitoring:    mon,
	}
	return newTestRouter(s), ctl, mon
}

func TestControlHandlers_StateIsOpen(t *testing.T) {
	r, _, _ := newControlRouter()

	w := doRequest(r, http.MethodGet, "/api/v1/control/state", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("state status=%d, body=%s", w.Code, w.Body.String())
	}
	var st cooling_control.StateResponse
	if err := json.Unmarshal(w.Body.Bytes(), &st); err != nil {
		t.Fatalf("unmarshal state: %v", err)
	}
	if st.OutputPct != 42 || st.Setpoint != 35 || !st.Running {
		t.Fatalf("unexpected state: %+v", st)
	}
}

func TestControlHandlers_CommandsRequireAuth(t *testing.T) {
	r, ctl, _ := newControlRouter()

	w := doRequest(r, http.MethodPost, "/api/v1/control/setpoint", `{"setpoint":30}`, "")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without auth, got %d", w.Code)
	}
	if len(ctl.calls) != 0 {
		t.Fatalf("command reached the service: %v", ctl.calls)
	}
}

func TestControlHandlers_Commands(t *testing.T) {
	cases := []struct {
		path  string
		body  string
		call  string
		check func(t *testing.T, m *mockControl)
	}{
		{"/api/v1/control/setpoint", `{"setpoint":36.5}`, "setpoint", func(t *testing.T, m *mockControl) {
			if m.setpoint != 36.5 {
				t.Fatalf("setpoint=%v", m.setpoint)
			}
		}},
		{"/api/v1/control/setpoint", `{"setpoint":0}`, "setpoint", func(t *testing.T, m *mockControl) {
			if m.setpoint != 0 {
				t.Fatalf("setpoint=%v", m.setpoint)
			}
		}},
		{"/api/v1/control/mode", `{"mode":"manual"}`, "mode", func(t *testing.T, m *mockControl) {
			if m.mode != "manual" {
				t.Fatalf("mode=%q", m.mode)
			}
		}},
		{"/api/v1/control/manual", `{"percent":65}`, "manual", func(t *testing.T, m *mockControl) {
			if m.percent != 65 {
				t.Fatalf("percent=%v", m.percent)
			}
		}},
		{"/api/v1/control/alarm", `{"threshold":58}`, "alarm", func(t *testing.T, m *mockControl) {
			if m.alarm.Threshold == nil || *m.alarm.Threshold != 58 || m.alarm.Percent != nil {
				t.Fatalf("alarm=%+v", m.alarm)
			}
		}},
		{"/api/v1/control/gains", `{"kp":2,"ki":0.5,"kd":0}`, "gains", func(t *testing.T, m *mockControl) {
			if m.gains != (service.GainsParams{Kp: 2, Ki: 0.5, Kd: 0}) {
				t.Fatalf("gains=%+v", m.gains)
			}
		}},
		{"/api/v1/control/swap", `{"swap":true}`, "swap", func(t *testing.T, m *mockControl) {
			if !m.swap {
				t.Fatal("swap not forwarded")
			}
		}},
		{"/api/v1/control/postrun", `{"seconds":45}`, "postrun", func(t *testing.T, m *mockControl) {
			if m.postrun != 45 {
				t.Fatalf("postrun=%v", m.postrun)
			}
		}},
		{"/api/v1/control/actuator/min", `{"min":12}`, "actuator_min", func(t *testing.T, m *mockControl) {
			if m.minOverride == nil || *m.minOverride != 12 {
				t.Fatalf("min=%v", m.minOverride)
			}
		}},
		{"/api/v1/control/actuator/min", `{"min":null}`, "actuator_min", func(t *testing.T, m *mockControl) {
			if m.minOverride != nil {
				t.Fatalf("min should be cleared, got %v", *m.minOverride)
			}
		}},
		{"/api/v1/control/smoothing", `{"enabled":false}`, "smoothing", func(t *testing.T, m *mockControl) {
			if m.smoothing != (service.SmoothingParams{Enabled: false, Alpha: 0}) {
				t.Fatalf("smoothing=%+v", m.smoothing)
			}
		}},
		{"/api/v1/control/thermocouple", `{"type":"J"}`, "thermocouple", func(t *testing.T, m *mockControl) {
			if m.tc != "J" {
				t.Fatalf("type=%q", m.tc)
			}
		}},
		{"/api/v1/control/start", "", "start", nil},
		{"/api/v1/control/stop", "", "stop", nil},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(fmt.Sprintf("%s %s", tc.path, tc.body), func(t *testing.T) {
			r, ctl, _ := newControlRouter()
			w := doRequest(r, http.MethodPost, tc.path, tc.body, "valid")
			if w.Code != http.StatusOK {
				t.Fatalf("status=%d, body=%s", w.Code, w.Body.String())
			}
			if len(ctl.calls) != 1 || ctl.calls[0] != tc.call {
				t.Fatalf("calls=%v, want [%s]", ctl.calls, tc.call)
			}
			if tc.check != nil {
				tc.check(t, ctl)
			}
			var resp struct {
				Status string                        `json:"status"`
				State  cooling_control.StateResponse `json:"state"`
			}
			_ = json.Unmarshal(w.Body.Bytes(), &resp)
			if resp.Status == "" || resp.State.OutputPct != 42 {
				t.Fatalf("response missing status/state: %s", w.Body.String())
			}
		})
	}
}

func TestControlHandlers_BadBodies(t *testing.T) {
	cases := []struct{ path, body string }{
		{"/api/v1/control/setpoint", `{}`},
		{"/api/v1/control/setpoint", `{"setpoint":"hot"}`},
		{"/api/v1/control/mode", `{}`},
		{"/api/v1/control/gains", `{"kp":1,"ki":0.1}`},
		{"/api/v1/control/swap", `{}`},
		{"/api/v1/control/smoothing", `{"alpha":0.2}`},
	}
	for _, tc := range cases {
		r, ctl, _ := newControlRouter()
		w := doRequest(r, http.MethodPost, tc.path, tc.body, "valid")
		if w.Code != http.StatusBadRequest {
			t.Fatalf("%s %s: expected 400, got %d", tc.path, tc.body, w.Code)
		}
		if len(ctl.calls) != 0 {
			t.Fatalf("%s %s: bad body reached the service", tc.path, tc.body)
		}
	}
}

func TestControlHandlers_ErrorMapping(t *testing.T) {
	r, ctl, _ := newControlRouter()

	ctl.err = service.ErrPercentOutOfRange
	w := doRequest(r, http.MethodPost, "/api/v1/control/manual", `{"percent":150}`, "valid")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("validation error: expected 400, got %d", w.Code)
	}

	ctl.err = fmt.Errorf("%w: save settings: %w", service.ErrStorage, errors.New("disk full"))
	w = doRequest(r, http.MethodPost, "/api/v1/control/manual", `{"percent":50}`, "valid")
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("storage error: expected 500, got %d", w.Code)
	}
	var out map[string]string
	_ = json.Unmarshal(w.Body.Bytes(), &out)
	if out["error"] != errPersist {
		t.Fatalf("error=%q", out["error"])
	}
}

func TestHealthAndMetrics(t *testing.T) {
	metrics := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("cooling_output_percent 42\n"))
	})
	r := newTestRouter(&service.Service{}, WithMetrics(metrics))

	w := doRequest(r, http.MethodGet, "/health", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("health status=%d", w.Code)
	}
	w = doRequest(r, http.MethodGet, "/metrics", "", "")
	if w.Code != http.StatusOK || w.Body.String() != "cooling_output_percent 42\n" {
		t.Fatalf("metrics status=%d body=%q", w.Code, w.Body.String())
	}
}
