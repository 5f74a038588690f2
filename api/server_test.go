package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	gorillaws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wricardo/mcp-training/roadtiles/game/config"
	"github.com/wricardo/mcp-training/roadtiles/game/engine"
	"github.com/wricardo/mcp-training/roadtiles/game/service"
	"github.com/wricardo/mcp-training/roadtiles/game/session"
	"github.com/wricardo/mcp-training/roadtiles/game/store"
	"github.com/wricardo/mcp-training/roadtiles/transport/websocket"
)

// MockGameService implements service.GameService for testing. Unset funcs
// fall back to a neutral answer.
type MockGameService struct {
	CreateSessionFunc  func(ctx context.Context, configID string) (*service.SessionInfo, error)
	GetSessionFunc     func(ctx context.Context, sessionID string) (*service.SessionInfo, error)
	ListSessionsFunc   func(ctx context.Context) ([]*service.SessionInfo, error)
	DeleteSessionFunc  func(ctx context.Context, sessionID string) error
	SlideFunc          func(ctx context.Context, sessionID string, row, col int) (*service.SlideResult, error)
	BulkSlideFunc      func(ctx context.Context, sessionID string, slides []engine.Position) (*service.BulkSlideResult, error)
	TickFunc           func(ctx context.Context, sessionID string, dt time.Duration) (*service.StepResult, error)
	TickAllFunc        func(ctx context.Context, dt time.Duration) ([]string, error)
	AdvanceFunc        func(ctx context.Context, sessionID string) (*service.StepResult, error)
	ControlFunc        func(ctx context.Context, action, sessionID string) (*service.ControlResult, error)
	SetSpeedFunc       func(ctx context.Context, sessionID string, level int, fast *bool) (*engine.GameState, error)
	ResetFunc          func(ctx context.Context, sessionID string) (*engine.GameState, error)
	GetGameStateFunc   func(ctx context.Context, sessionID string) (*engine.GameState, error)
	GetMoveHistoryFunc func(ctx context.Context, sessionID string, opts service.HistoryOptions) (*service.HistoryResponse, error)
	ListConfigsFunc    func(ctx context.Context) ([]*service.ConfigInfo, error)
	LoadConfigFunc     func(ctx context.Context, configID string) (*engine.Preset, error)
	SaveConfigFunc     func(ctx context.Context, configID string, preset *engine.Preset) (string, error)
	DeleteConfigFunc   func(ctx context.Context, configID string) error
	ListResultsFunc    func(ctx context.Context, configID string, limit int) ([]store.Result, error)
}

func (m *MockGameService) CreateSession(ctx context.Context, configID string) (*service.SessionInfo, error) {
	if m.CreateSessionFunc != nil {
		return m.CreateSessionFunc(ctx, configID)
	}
	return &service.SessionInfo{ID: "ab12", ConfigID: configID, CreatedAt: time.Now()}, nil
}

func (m *MockGameService) GetSession(ctx context.Context, sessionID string) (*service.SessionInfo, error) {
	if m.GetSessionFunc != nil {
		return m.GetSessionFunc(ctx, sessionID)
	}
	return &service.SessionInfo{ID: sessionID, ConfigID: "level1"}, nil
}

func (m *MockGameService) ListSessions(ctx context.Context) ([]*service.SessionInfo, error) {
	if m.ListSessionsFunc != nil {
		return m.ListSessionsFunc(ctx)
	}
	return []*service.SessionInfo{}, nil
}

func (m *MockGameService) DeleteSession(ctx context.Context, sessionID string) error {
	if m.DeleteSessionFunc != nil {
		return m.DeleteSessionFunc(ctx, sessionID)
	}
	return nil
}

func (m *MockGameService) Slide(ctx context.Context, sessionID string, row, col int) (*service.SlideResult, error) {
	if m.SlideFunc != nil {
		return m.SlideFunc(ctx, sessionID, row, col)
	}
	return &service.SlideResult{Success: true, GameState: &engine.GameState{}}, nil
}

func (m *MockGameService) BulkSlide(ctx context.Context, sessionID string, slides []engine.Position) (*service.BulkSlideResult, error) {
	if m.BulkSlideFunc != nil {
		return m.BulkSlideFunc(ctx, sessionID, slides)
	}
	return &service.BulkSlideResult{Success: true, GameState: &engine.GameState{}}, nil
}

func (m *MockGameService) Tick(ctx context.Context, sessionID string, dt time.Duration) (*service.StepResult, error) {
	if m.TickFunc != nil {
		return m.TickFunc(ctx, sessionID, dt)
	}
	return &service.StepResult{GameState: &engine.GameState{}}, nil
}

func (m *MockGameService) TickAll(ctx context.Context, dt time.Duration) ([]string, error) {
	if m.TickAllFunc != nil {
		return m.TickAllFunc(ctx, dt)
	}
	return nil, nil
}

func (m *MockGameService) Advance(ctx context.Context, sessionID string) (*service.StepResult, error) {
	if m.AdvanceFunc != nil {
		return m.AdvanceFunc(ctx, sessionID)
	}
	return &service.StepResult{Advanced: true, GameState: &engine.GameState{}}, nil
}

func (m *MockGameService) control(ctx context.Context, action, sessionID string) (*service.ControlResult, error) {
	if m.ControlFunc != nil {
		return m.ControlFunc(ctx, action, sessionID)
	}
	return &service.ControlResult{Success: true, GameState: &engine.GameState{}}, nil
}

func (m *MockGameService) Retry(ctx context.Context, sessionID string) (*service.ControlResult, error) {
	return m.control(ctx, "retry", sessionID)
}

func (m *MockGameService) Reverse(ctx context.Context, sessionID string) (*service.ControlResult, error) {
	return m.control(ctx, "reverse", sessionID)
}

func (m *MockGameService) Pause(ctx context.Context, sessionID string) (*service.ControlResult, error) {
	return m.control(ctx, "pause", sessionID)
}

func (m *MockGameService) Resume(ctx context.Context, sessionID string) (*service.ControlResult, error) {
	return m.control(ctx, "resume", sessionID)
}

func (m *MockGameService) SetSpeed(ctx context.Context, sessionID string, level int, fast *bool) (*engine.GameState, error) {
	if m.SetSpeedFunc != nil {
		return m.SetSpeedFunc(ctx, sessionID, level, fast)
	}
	return &engine.GameState{Speed: level}, nil
}

func (m *MockGameService) Reset(ctx context.Context, sessionID string) (*engine.GameState, error) {
	if m.ResetFunc != nil {
		return m.ResetFunc(ctx, sessionID)
	}
	return &engine.GameState{}, nil
}

func (m *MockGameService) GetGameState(ctx context.Context, sessionID string) (*engine.GameState, error) {
	if m.GetGameStateFunc != nil {
		return m.GetGameStateFunc(ctx, sessionID)
	}
	return &engine.GameState{}, nil
}

func (m *MockGameService) GetMoveHistory(ctx context.Context, sessionID string, opts service.HistoryOptions) (*service.HistoryResponse, error) {
	if m.GetMoveHistoryFunc != nil {
		return m.GetMoveHistoryFunc(ctx, sessionID, opts)
	}
	return &service.HistoryResponse{Moves: []engine.MoveHistoryEntry{}, Page: opts.Page, PageSize: opts.Limit, TotalPages: 1}, nil
}

func (m *MockGameService) ListConfigs(ctx context.Context) ([]*service.ConfigInfo, error) {
	if m.ListConfigsFunc != nil {
		return m.ListConfigsFunc(ctx)
	}
	return []*service.ConfigInfo{}, nil
}

func (m *MockGameService) LoadConfig(ctx context.Context, configID string) (*engine.Preset, error) {
	if m.LoadConfigFunc != nil {
		return m.LoadConfigFunc(ctx, configID)
	}
	p, _ := engine.BuiltinPreset("level1")
	return p, nil
}

func (m *MockGameService) SaveConfig(ctx context.Context, configID string, preset *engine.Preset) (string, error) {
	if m.SaveConfigFunc != nil {
		return m.SaveConfigFunc(ctx, configID, preset)
	}
	if configID == "" {
		configID = "new-id"
	}
	return configID, nil
}

func (m *MockGameService) DeleteConfig(ctx context.Context, configID string) error {
	if m.DeleteConfigFunc != nil {
		return m.DeleteConfigFunc(ctx, configID)
	}
	return nil
}

func (m *MockGameService) ListResults(ctx context.Context, configID string, limit int) ([]store.Result, error) {
	if m.ListResultsFunc != nil {
		return m.ListResultsFunc(ctx, configID, limit)
	}
	return []store.Result{}, nil
}

func quietLogger() *log.Logger {
	return log.New(io.Discard)
}

func setupTestServer(mockService *MockGameService) *Server {
	return NewServer(mockService, nil, quietLogger())
}

func makeRequest(method, path string, body interface{}) *http.Request {
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(b)
	default:
		data, _ := json.Marshal(b)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	return req
}

func serve(s *Server, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	s.ServeHTTP(w, req)
	return w
}

func parseResponse(t *testing.T, w *httptest.ResponseRecorder, target interface{}) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), target); err != nil {
		t.Fatalf("Failed to parse response %q: %v", w.Body.String(), err)
	}
}

func TestCreateSession(t *testing.T) {
	tests := []struct {
		name       string
		body       interface{}
		err        error
		wantStatus int
		wantConfig string
	}{
		{name: "default preset", body: nil, wantStatus: http.StatusCreated},
		{name: "named preset", body: map[string]string{"config_id": "snake"}, wantStatus: http.StatusCreated, wantConfig: "snake"},
		{name: "unknown preset", body: map[string]string{"config_id": "nope"}, err: fmt.Errorf("config 'nope': %w", config.ErrConfigNotFound), wantStatus: http.StatusNotFound},
		{name: "bad json", body: "{", wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotConfig string
			mock := &MockGameService{
				CreateSessionFunc: func(ctx context.Context, configID string) (*service.SessionInfo, error) {
					gotConfig = configID
					if tt.err != nil {
						return nil, tt.err
					}
					return &service.SessionInfo{ID: "ab12", ConfigID: configID}, nil
				},
			}

			w := serve(setupTestServer(mock), makeRequest("POST", "/api/sessions", tt.body))
			if w.Code != tt.wantStatus {
				t.Fatalf("Expected status %d, got %d: %s", tt.wantStatus, w.Code, w.Body.String())
			}
			if w.Code == http.StatusCreated && gotConfig != tt.wantConfig {
				t.Errorf("Expected config %q, got %q", tt.wantConfig, gotConfig)
			}
		})
	}
}

func TestListSessions(t *testing.T) {
	now := time.Now()
	mock := &MockGameService{
		ListSessionsFunc: func(ctx context.Context) ([]*service.SessionInfo, error) {
			return []*service.SessionInfo{
				{ID: "old1", ConfigID: "level1", CreatedAt: now.Add(-2 * time.Hour), LastAccessedAt: now.Add(-time.Hour)},
				{ID: "new1", ConfigID: "snake", CreatedAt: now.Add(-time.Hour), LastAccessedAt: now},
				{ID: "mid1", ConfigID: "level1", CreatedAt: now.Add(-90 * time.Minute), LastAccessedAt: now.Add(-30 * time.Minute)},
			}, nil
		},
	}
	server := setupTestServer(mock)

	var resp struct {
		Count    int                    `json:"count"`
		Total    int                    `json:"total"`
		Sessions []*service.SessionInfo `json:"sessions"`
	}

	w := serve(server, makeRequest("GET", "/api/sessions", nil))
	require.Equal(t, http.StatusOK, w.Code)
	parseResponse(t, w, &resp)
	assert.Equal(t, []string{"new1", "mid1", "old1"}, sessionIDs(resp.Sessions))

	w = serve(server, makeRequest("GET", "/api/sessions?sort=created&order=asc&limit=2", nil))
	parseResponse(t, w, &resp)
	assert.Equal(t, []string{"old1", "mid1"}, sessionIDs(resp.Sessions))
	assert.Equal(t, 3, resp.Total)

	w = serve(server, makeRequest("GET", "/api/sessions?config=level1", nil))
	parseResponse(t, w, &resp)
	assert.Equal(t, 2, resp.Count)
}

func sessionIDs(sessions []*service.SessionInfo) []string {
	ids := make([]string, len(sessions))
	for i, s := range sessions {
		ids[i] = s.ID
	}
	return ids
}

func TestGetAndDeleteSession(t *testing.T) {
	mock := &MockGameService{
		GetSessionFunc: func(ctx context.Context, id string) (*service.SessionInfo, error) {
			if id != "ab12" {
				return nil, fmt.Errorf("session '%s': %w", id, session.ErrSessionNotFound)
			}
			return &service.SessionInfo{ID: id}, nil
		},
		DeleteSessionFunc: func(ctx context.Context, id string) error {
			if id != "ab12" {
				return session.ErrSessionNotFound
			}
			return nil
		},
	}
	server := setupTestServer(mock)

	assert.Equal(t, http.StatusOK, serve(server, makeRequest("GET", "/api/sessions/ab12", nil)).Code)
	assert.Equal(t, http.StatusNotFound, serve(server, makeRequest("GET", "/api/sessions/zz99", nil)).Code)
	assert.Equal(t, http.StatusOK, serve(server, makeRequest("DELETE", "/api/sessions/ab12", nil)).Code)
	assert.Equal(t, http.StatusNotFound, serve(server, makeRequest("DELETE", "/api/sessions/zz99", nil)).Code)
}

func TestSlide(t *testing.T) {
	var gotRow, gotCol int
	mock := &MockGameService{
		SlideFunc: func(ctx context.Context, id string, row, col int) (*service.SlideResult, error) {
			gotRow, gotCol = row, col
			return &service.SlideResult{Success: row == 2, GameState: &engine.GameState{}}, nil
		},
	}
	server := setupTestServer(mock)

	w := serve(server, makeRequest("POST", "/api/sessions/ab12/slide", map[string]int{"row": 2, "col": 1}))
	require.Equal(t, http.StatusOK, w.Code)
	var res service.SlideResult
	parseResponse(t, w, &res)
	assert.True(t, res.Success)
	assert.Equal(t, 2, gotRow)
	assert.Equal(t, 1, gotCol)

	w = serve(server, makeRequest("POST", "/api/sessions/ab12/slide", map[string]int{"row": 0}))
	assert.Equal(t, http.StatusBadRequest, w.Code, "col is required")

	w = serve(server, makeRequest("POST", "/api/sessions/ab12/slide", "not json"))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestBulkSlide(t *testing.T) {
	var got []engine.Position
	mock := &MockGameService{
		BulkSlideFunc: func(ctx context.Context, id string, slides []engine.Position) (*service.BulkSlideResult, error) {
			got = slides
			if len(slides) == 0 {
				return nil, fmt.Errorf("no slides given: %w", service.ErrInvalidArgument)
			}
			return &service.BulkSlideResult{Results: []bool{true}, GameState: &engine.GameState{}}, nil
		},
	}
	server := setupTestServer(mock)

	body := map[string]interface{}{"slides": []map[string]int{{"row": 2, "col": 1}, {"row": 2, "col": 2}}}
	w := serve(server, makeRequest("POST", "/api/sessions/ab12/bulk-slide", body))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []engine.Position{{Row: 2, Col: 1}, {Row: 2, Col: 2}}, got)

	w = serve(server, makeRequest("POST", "/api/sessions/ab12/bulk-slide", map[string]interface{}{"slides": []int{}}))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTickAndAdvance(t *testing.T) {
	var gotDt time.Duration
	mock := &MockGameService{
		TickFunc: func(ctx context.Context, id string, dt time.Duration) (*service.StepResult, error) {
			gotDt = dt
			return &service.StepResult{GameState: &engine.GameState{}}, nil
		},
		AdvanceFunc: func(ctx context.Context, id string) (*service.StepResult, error) {
			return &service.StepResult{Crash: engine.CrashNoRoad, GameState: &engine.GameState{Status: engine.StatusCrashed}}, nil
		},
	}
	server := setupTestServer(mock)

	w := serve(server, makeRequest("POST", "/api/sessions/ab12/tick", map[string]int{"dt_ms": 250}))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 250*time.Millisecond, gotDt)

	// values that would overflow a Duration never reach the service
	gotDt = 0
	for _, dt := range []int64{-5, 9223372036854, 1 << 62} {
		w = serve(server, makeRequest("POST", "/api/sessions/ab12/tick", map[string]int64{"dt_ms": dt}))
		assert.Equal(t, http.StatusBadRequest, w.Code, "dt_ms %d", dt)
		assert.Contains(t, w.Body.String(), "dt_ms must be between 0 and 60000")
	}
	assert.Zero(t, gotDt)

	w = serve(server, makeRequest("POST", "/api/sessions/ab12/advance", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var res service.StepResult
	parseResponse(t, w, &res)
	assert.Equal(t, engine.CrashNoRoad, res.Crash)
}

func TestControlRoutes(t *testing.T) {
	var actions []string
	mock := &MockGameService{
		ControlFunc: func(ctx context.Context, action, id string) (*service.ControlResult, error) {
			actions = append(actions, action)
			return &service.ControlResult{Success: true, GameState: &engine.GameState{}}, nil
		},
	}
	server := setupTestServer(mock)

	for _, action := range []string{"pause", "resume", "retry", "reverse"} {
		w := serve(server, makeRequest("POST", "/api/sessions/ab12/"+action, nil))
		assert.Equal(t, http.StatusOK, w.Code, action)
	}
	assert.Equal(t, []string{"pause", "resume", "retry", "reverse"}, actions)
}

func TestSpeed(t *testing.T) {
	var gotFast *bool
	mock := &MockGameService{
		SetSpeedFunc: func(ctx context.Context, id string, level int, fast *bool) (*engine.GameState, error) {
			gotFast = fast
			if level < engine.MinSpeed || level > engine.MaxSpeed {
				return nil, fmt.Errorf("bad speed: %w", service.ErrInvalidArgument)
			}
			return &engine.GameState{Speed: level}, nil
		},
	}
	server := setupTestServer(mock)

	w := serve(server, makeRequest("POST", "/api/sessions/ab12/speed", map[string]interface{}{"level": 7, "fast": true}))
	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, gotFast)
	assert.True(t, *gotFast)

	w = serve(server, makeRequest("POST", "/api/sessions/ab12/speed", map[string]interface{}{"level": 0}))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetHistory(t *testing.T) {
	var gotOpts service.HistoryOptions
	mock := &MockGameService{
		GetMoveHistoryFunc: func(ctx context.Context, id string, opts service.HistoryOptions) (*service.HistoryResponse, error) {
			gotOpts = opts
			return &service.HistoryResponse{Moves: []engine.MoveHistoryEntry{}}, nil
		},
	}
	server := setupTestServer(mock)

	serve(server, makeRequest("GET", "/api/sessions/ab12/history", nil))
	assert.Equal(t, service.HistoryOptions{Page: 1, Limit: 20, Order: "desc"}, gotOpts)

	serve(server, makeRequest("GET", "/api/sessions/ab12/history?page=3&limit=5&order=asc", nil))
	assert.Equal(t, service.HistoryOptions{Page: 3, Limit: 5, Order: "asc"}, gotOpts)

	serve(server, makeRequest("GET", "/api/sessions/ab12/history?page=-1&order=sideways", nil))
	assert.Equal(t, service.HistoryOptions{Page: 1, Limit: 20, Order: "desc"}, gotOpts)
}

func TestConfigs(t *testing.T) {
	var saved *engine.Preset
	var savedID string
	mock := &MockGameService{
		SaveConfigFunc: func(ctx context.Context, id string, p *engine.Preset) (string, error) {
			if id == "level1" {
				return "", fmt.Errorf("%w: %s", config.ErrReadOnly, id)
			}
			if err := engine.ValidatePreset(p); err != nil {
				return "", err
			}
			saved, savedID = p, id
			return "generated", nil
		},
		DeleteConfigFunc: func(ctx context.Context, id string) error {
			return config.ErrConfigNotFound
		},
	}
	server := setupTestServer(mock)

	t.Run("create from grid only", func(t *testing.T) {
		level3, _ := engine.BuiltinPreset("level3")
		body := map[string]interface{}{"name": "Mine", "grid": level3.Grid}

		w := serve(server, makeRequest("POST", "/api/configs", body))
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		require.NotNil(t, saved)
		assert.Equal(t, level3.Empty, saved.Empty)
		assert.Equal(t, "", savedID)
	})

	t.Run("update full preset", func(t *testing.T) {
		snake, _ := engine.BuiltinPreset("snake")
		w := serve(server, makeRequest("PUT", "/api/configs/abc", snake))
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		assert.Equal(t, "abc", savedID)
		assert.Equal(t, snake.Car, saved.Car)
	})

	t.Run("built-in is read-only", func(t *testing.T) {
		snake, _ := engine.BuiltinPreset("snake")
		w := serve(server, makeRequest("PUT", "/api/configs/level1", snake))
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("invalid preset", func(t *testing.T) {
		w := serve(server, makeRequest("POST", "/api/configs", map[string]interface{}{"name": "Bad", "grid": [][]int{{1, 2}}}))
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("delete unknown", func(t *testing.T) {
		w := serve(server, makeRequest("DELETE", "/api/configs/xyz", nil))
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("get", func(t *testing.T) {
		w := serve(server, makeRequest("GET", "/api/configs/level1", nil))
		require.Equal(t, http.StatusOK, w.Code)
		var p engine.Preset
		parseResponse(t, w, &p)
		assert.Equal(t, "Level 1", p.Name)
	})
}

func TestStatusFor(t *testing.T) {
	cases := map[error]int{
		session.ErrSessionNotFound:                        http.StatusNotFound,
		fmt.Errorf("x: %w", store.ErrNotFound):            http.StatusNotFound,
		session.ErrSessionAlreadyExists:                   http.StatusConflict,
		config.ErrReadOnly:                                http.StatusForbidden,
		fmt.Errorf("x: %w", engine.ErrInvalidPreset):      http.StatusBadRequest,
		fmt.Errorf("x: %w", service.ErrInvalidArgument):   http.StatusBadRequest,
		fmt.Errorf("disk full"):                           http.StatusInternalServerError,
	}
	for err, want := range cases {
		assert.Equal(t, want, statusFor(err), err.Error())
	}
}

func TestHealth(t *testing.T) {
	w := serve(setupTestServer(&MockGameService{}), makeRequest("GET", "/api/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "healthy")
}

// newRealServer wires the API to a real service, session manager and store
func newRealServer(t *testing.T, hub *websocket.Hub) *Server {
	t.Helper()
	db, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	configs, err := config.NewManager("", config.WithStore(db))
	require.NoError(t, err)
	svc := service.NewGameService(session.NewManager(), configs,
		service.WithResultStore(db), service.WithLogger(quietLogger()))
	return NewServer(svc, hub, quietLogger())
}

func TestEndToEnd_SnakeVictory(t *testing.T) {
	server := newRealServer(t, nil)

	w := serve(server, makeRequest("POST", "/api/sessions", map[string]string{"config_id": "snake"}))
	require.Equal(t, http.StatusCreated, w.Code)
	var info service.SessionInfo
	parseResponse(t, w, &info)

	for i := 0; i < 14; i++ {
		w = serve(server, makeRequest("POST", "/api/sessions/"+info.ID+"/advance", nil))
		require.Equal(t, http.StatusOK, w.Code)
	}

	var state engine.GameState
	parseResponse(t, serve(server, makeRequest("GET", "/api/sessions/"+info.ID+"/state", nil)), &state)
	assert.Equal(t, engine.StatusWon, state.Status)
	assert.Equal(t, 15, state.TilesEntered)

	var results []store.Result
	parseResponse(t, serve(server, makeRequest("GET", "/api/results/snake", nil)), &results)
	require.Len(t, results, 1)
	assert.Equal(t, info.ID, results[0].SessionID)

	w = serve(server, makeRequest("POST", "/api/sessions/"+info.ID+"/slide", map[string]int{"row": 3, "col": 3}))
	require.Equal(t, http.StatusOK, w.Code)
	var slide service.SlideResult
	parseResponse(t, w, &slide)
	assert.False(t, slide.Success, "a won board is frozen")
}

func TestEndToEnd_EditPreset(t *testing.T) {
	server := newRealServer(t, nil)
	snake, _ := engine.BuiltinPreset("snake")
	snake.Name = "My Snake"

	w := serve(server, makeRequest("PUT", "/api/configs/no-such-key", snake))
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = serve(server, makeRequest("GET", "/api/configs/no-such-key", nil))
	assert.Equal(t, http.StatusNotFound, w.Code, "a failed edit creates nothing")

	w = serve(server, makeRequest("POST", "/api/configs", snake))
	require.Equal(t, http.StatusCreated, w.Code)
	var created struct {
		ConfigID string `json:"config_id"`
	}
	parseResponse(t, w, &created)

	snake.Name = "Renamed Snake"
	w = serve(server, makeRequest("PUT", "/api/configs/"+created.ConfigID, snake))
	require.Equal(t, http.StatusOK, w.Code)

	var p engine.Preset
	parseResponse(t, serve(server, makeRequest("GET", "/api/configs/"+created.ConfigID, nil)), &p)
	assert.Equal(t, "Renamed Snake", p.Name)
}

func TestWebSocket(t *testing.T) {
	hub := websocket.NewHub(quietLogger())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	server := newRealServer(t, hub)
	ts := httptest.NewServer(server)
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/api/sessions", "application/json", strings.NewReader(`{"config_id":"level1"}`))
	require.NoError(t, err)
	var info service.SessionInfo
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&info))
	resp.Body.Close()

	t.Run("missing session parameter", func(t *testing.T) {
		resp, err := http.Get(ts.URL + "/ws")
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("unknown session", func(t *testing.T) {
		resp, err := http.Get(ts.URL + "/ws?session=zz99")
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("slide is pushed to watchers", func(t *testing.T) {
		wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws?session=" + info.ID
		conn, _, err := gorillaws.DefaultDialer.Dial(wsURL, nil)
		require.NoError(t, err)
		defer conn.Close()
		require.Eventually(t, func() bool { return hub.ClientCount(info.ID) == 1 }, time.Second, 10*time.Millisecond)

		resp, err := http.Post(ts.URL+"/api/sessions/"+info.ID+"/slide", "application/json", strings.NewReader(`{"row":2,"col":1}`))
		require.NoError(t, err)
		resp.Body.Close()

		conn.SetReadDeadline(time.Now().Add(time.Second))
		_, data, err := conn.ReadMessage()
		require.NoError(t, err)

		var msg websocket.Message
		require.NoError(t, json.Unmarshal(data, &msg))
		assert.Equal(t, "state_update", msg.Event)
		assert.Equal(t, engine.Position{Row: 2, Col: 1}, msg.GameState.Board.Empty)
	})
}

func TestRunClock(t *testing.T) {
	ticked := make(chan time.Duration, 1)
	mock := &MockGameService{
		TickAllFunc: func(ctx context.Context, dt time.Duration) ([]string, error) {
			select {
			case ticked <- dt:
			default:
			}
			return nil, nil
		},
	}
	server := setupTestServer(mock)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go server.RunClock(ctx, 5*time.Millisecond)

	select {
	case dt := <-ticked:
		assert.Greater(t, dt, time.Duration(0))
	case <-time.After(time.Second):
		t.Fatal("clock never ticked")
	}
}
