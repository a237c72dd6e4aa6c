package handlers

import (
	"context"
	"net/http"
	"sync"
	"time"

	"cooling_control"
	"cooling_control/internal/models"
	"cooling_control/internal/service"

	"github.com/gin-gonic/gin"
)

// ---- Service Mocks ----

type mockAuth struct {
	signUpID      int
	signUpErr     error
	genTokenToken string
	genTokenErr   error
	parseOp       models.Operator
	parseErr      error

	lastSignUpUsername string
	lastSignUpPassword string
	lastGenUsername    string
	lastGenPassword    string
	lastParseToken     string
}

func (m *mockAuth) SignUp(_ context.Context, username, password string) (int, error) {
	m.lastSignUpUsername = username
	m.lastSignUpPassword = password
	return m.signUpID, m.signUpErr
}
func (m *mockAuth) GenerateToken(_ context.Context, username, password string) (string, error) {
	m.lastGenUsername = username
	m.lastGenPassword = password
	return m.genTokenToken, m.genTokenErr
}
func (m *mockAuth) ParseToken(token string) (models.Operator, error) {
	m.lastParseToken = token
	return m.parseOp, m.parseErr
}

// mockControl records the last value of every command.
type mockControl struct {
	err         error
	calls       []string
	setpoint    float64
	mode        string
	percent     float64
	alarm       service.AlarmParams
	gains       service.GainsParams
	swap        bool
	postrun     float64
	minOverride *int
	smoothing   service.SmoothingParams
	tc          string
}

func (m *mockControl) call(name string) error {
	m.calls = append(m.calls, name)
	return m.err
}

func (m *mockControl) Start(ctx context.Context) error { return m.call("start") }
func (m *mockControl) Stop(ctx context.Context) error  { return m.call("stop") }

func (m *mockControl) SetSetpoint(ctx context.Context, v float64) error {
	m.setpoint = v
	return m.call("setpoint")
}
func (m *mockControl) SetMode(ctx context.Context, mode string) error {
	m.mode = mode
	return m.call("mode")
}
func (m *mockControl) SetManualPercent(ctx context.Context, p float64) error {
	m.percent = p
	return m.call("manual")
}
func (m *mockControl) SetAlarm(ctx context.Context, p service.AlarmParams) error {
	m.alarm = p
	return m.call("alarm")
}
func (m *mockControl) SetGains(ctx context.Context, p service.GainsParams) error {
	m.gains = p
	return m.call("gains")
}
func (m *mockControl) SetSwapSensors(ctx context.Context, swap bool) error {
	m.swap = swap
	return m.call("swap")
}
func (m *mockControl) SetPostrunSeconds(ctx context.Context, sec float64) error {
	m.postrun = sec
	return m.call("postrun")
}
func (m *mockControl) SetActuatorMin(ctx context.Context, min *int) error {
	m.minOverride = min
	return m.call("actuator_min")
}
func (m *mockControl) SetSmoothing(ctx context.Context, p service.SmoothingParams) error {
	m.smoothing = p
	return m.call("smoothing")
}
func (m *mockControl) SetThermocoupleType(ctx context.Context, tc string) error {
	m.tc = tc
	return m.call("thermocouple")
}
func (m *mockControl) ApplySettings(ctx context.Context, s models.Settings) error {
	return m.call("apply")
}

type mockMonitoring struct {
	mu    sync.Mutex
	state cooling_control.StateResponse
	err   error
}

func (m *mockMonitoring) GetState(ctx context.Context) (cooling_control.StateResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state, m.err
}

func (m *mockMonitoring) set(s models.Snapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = cooling_control.StateResponse{Snapshot: s}
}

type mockEventLog struct {
	resp      []models.ControlEvent
	err       error
	lastFrom  time.Time
	lastTo    time.Time
	lastType  string
	lastLimit int
}

func (m *mockEventLog) List(ctx context.Context, f service.LogFilter) ([]models.ControlEvent, error) {
	m.lastFrom = f.From
	m.lastTo = f.To
	m.lastType = f.Type
	m.lastLimit = f.Limit
	return m.resp, m.err
}

type mockDiagnostics struct {
	scan    cooling_control.ScanResponse
	scanErr error
	raw     cooling_control.RawReadResponse
	rawErr  error
}

func (m *mockDiagnostics) Scan(ctx context.Context) (cooling_control.ScanResponse, error) {
	return m.scan, m.scanErr
}

func (m *mockDiagnostics) RawRead(ctx context.Context) (cooling_control.RawReadResponse, error) {
	return m.raw, m.rawErr
}

// ---- Shared Test Helpers ----

func newTestRouter(s *service.Service, opts ...Option) *gin.Engine {
	h := NewHandler(s, nil, opts...)
	gin.SetMode(gin.TestMode)
	return h.InitRoutes()
}

func authHeader(token string) http.Header {
	h := http.Header{}
	if token != "" {
		h.Set("Authorization", "Bearer "+token)
	}
	return h
}
