package api

import (
	"encoding/json"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ryansname/boilersim/src/anomaly"
	"github.com/ryansname/boilersim/src/combustion"
	"github.com/ryansname/boilersim/src/configstore"
	"github.com/ryansname/boilersim/src/history"
	"github.com/ryansname/boilersim/src/mentor"
	"github.com/ryansname/boilersim/src/metrics"
	"github.com/ryansname/boilersim/src/sim"
)

type fixedRisk anomaly.State

func (f fixedRisk) Risk() anomaly.State { return anomaly.State(f) }

type fixture struct {
	sim     *sim.Simulation
	hub     *Hub
	handler http.Handler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	s := sim.New(sim.Options{Seed: 7, Start: time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)})
	advisor, err := mentor.NewAdvisor(mentor.Options{})
	require.NoError(t, err)
	m := metrics.New()
	hub := NewHub(m, nil)

	return &fixture{
		sim: s,
		hub: hub,
		handler: NewRouter(Deps{
			Sim:     s,
			Configs: configstore.NewFileStore(filepath.Join(t.TempDir(), "configs.json")),
			Mentor:  advisor,
			Risk:    fixedRisk{RiskLevel: anomaly.RiskWarning, Score: 45},
			Hub:     hub,
			Metrics: m,
		}),
	}
}

func (f *fixture) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestWriteJSON_UnencodableValue(t *testing.T) {
	rec := httptest.NewRecorder()
	writeJSON(rec, http.StatusOK, map[string]float64{"sh5": math.NaN()})

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "error")
}

func TestHealth(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decode[map[string]any](t, rec)["status"])
}

func TestState(t *testing.T) {
	f := newFixture(t)
	f.sim.Tick()

	rec := f.do(t, http.MethodGet, "/api/state", "")
	require.Equal(t, http.StatusOK, rec.Code)
	snap := decode[sim.Snapshot](t, rec)
	assert.Equal(t, int64(1), snap.Tick)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
}

func TestCommands(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		status int
		value  string
	}{
		{"steam", `{"name":"steam","value":"35"}`, http.StatusOK, "35"},
		{"clamped", `{"name":"pusher","value":"250"}`, http.StatusOK, "100"},
		{"mode", `{"name":"mode","value":"manual"}`, http.StatusOK, "1"},
		{"unknown", `{"name":"warp","value":"9"}`, http.StatusBadRequest, ""},
		{"bad value", `{"name":"steam","value":"lots"}`, http.StatusBadRequest, ""},
		{"bad speed", `{"name":"speed","value":"7"}`, http.StatusBadRequest, ""},
		{"bad json", `{"name":`, http.StatusBadRequest, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			rec := f.do(t, http.MethodPost, "/api/commands", tt.body)
			require.Equal(t, tt.status, rec.Code, rec.Body.String())
			body := decode[map[string]string](t, rec)
			if tt.status == http.StatusOK {
				assert.Equal(t, tt.value, body["value"])
			} else {
				assert.NotEmpty(t, body["error"])
			}
		})
	}
}

func TestZone(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodPost, "/api/zones/1", `{"value":65}`)
	require.Equal(t, http.StatusOK, rec.Code)

	z := decode[combustion.Zones](t, rec)
	assert.InDelta(t, 65, z.Zone1, 1e-9)
	assert.InDelta(t, 100, z.Zone1+z.Zone2+z.Zone3, 1e-9)

	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodPost, "/api/zones/4", `{"value":1}`).Code)
}

func TestSootBlowAndReset(t *testing.T) {
	f := newFixture(t)
	for range 100 {
		f.sim.Tick()
	}

	rec := f.do(t, http.MethodPost, "/api/soot-blow", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0.0, decode[map[string]float64](t, rec)["fouling"])

	rec = f.do(t, http.MethodPost, "/api/reset", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(0), decode[sim.Snapshot](t, rec).Tick)
}

func TestRecordingExport(t *testing.T) {
	f := newFixture(t)
	require.Equal(t, http.StatusOK, f.do(t, http.MethodPost, "/api/recording", `{"enabled":true}`).Code)
	f.sim.Tick()
	f.sim.Tick()

	rec := f.do(t, http.MethodPost, "/api/recording", `{"enabled":false}`)
	body := decode[map[string]any](t, rec)
	assert.Equal(t, false, body["recording"])
	assert.Equal(t, 2.0, body["ticks"])

	rec = f.do(t, http.MethodGet, "/api/export.csv", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, history.TickCSVHeader, lines[0])
}

const pcvueCSV = "Timestamp;Inc_AP3_FT10342N_YOUT;Inc_AP3_FT10352N_YOUT;Inc_AP3_FT10362N_YOUT;Chaud_Vap_TT12115_YOUT\n" +
	"2025-06-01 08:00:00;17000;5000;6000;610\n" +
	"2025-06-01 08:00:05;17000;5000;6000;480\n" +
	"2025-06-01 08:00:10;17000;5000;6000;615\n"

func TestHistoryImportAndQuery(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/history/import", pcvueCSV)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 3, decode[map[string]int](t, rec)["imported"])

	rec = f.do(t, http.MethodGet, "/api/history?exclude_stops=true", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[struct {
		Count  int                 `json:"count"`
		Points []history.DataPoint `json:"points"`
	}](t, rec)
	assert.Equal(t, 2, body.Count)

	rec = f.do(t, http.MethodGet, "/api/history/stats", "")
	require.Equal(t, http.StatusOK, rec.Code)
	stats := decode[historyStats](t, rec)
	assert.Equal(t, 3, stats.Analysis.Points)
	require.Len(t, stats.Daily, 1)
	assert.Equal(t, "2025-06-01", stats.Daily[0].Date)

	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodGet, "/api/history?sample=-1", "").Code)
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPost, "/api/history/import", "a;b\n1;2\n").Code)
}

func TestAnomalies(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/api/anomalies", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, anomaly.RiskWarning, decode[anomaly.State](t, rec).RiskLevel)
}

func TestConfigs(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/configs", `{"name":"rear fire","zones":{"zone1":20,"zone2":30,"zone3":50,"sub_zone1":50,"sub_zone2":50,"sub_zone3":50}}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	saved := decode[configstore.Config](t, rec)
	assert.NotEmpty(t, saved.ID)
	assert.Equal(t, combustion.DefaultWasteMix(), saved.Mix)

	rec = f.do(t, http.MethodGet, "/api/configs", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]configstore.Config](t, rec), 1)

	rec = f.do(t, http.MethodGet, "/api/configs/"+saved.ID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "rear fire", decode[configstore.Config](t, rec).Name)

	rec = f.do(t, http.MethodPost, "/api/configs/"+saved.ID+"/apply", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.InDelta(t, 50, f.sim.Snapshot().Zones.Zone3, 1e-9)

	assert.Equal(t, http.StatusNoContent, f.do(t, http.MethodDelete, "/api/configs/"+saved.ID, "").Code)
	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, "/api/configs/"+saved.ID, "").Code)
	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodPost, "/api/configs/missing/apply", "").Code)
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPost, "/api/configs", `{"name":"  "}`).Code)
}

func TestMentor(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/mentor/ask", `{"question":"what o2 should I run"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	answer := decode[mentor.Answer](t, rec)
	assert.True(t, answer.Fallback)
	assert.True(t, strings.HasPrefix(answer.Text, mentor.FallbackMarker))

	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPost, "/api/mentor/ask", `{}`).Code)

	rec = f.do(t, http.MethodPost, "/api/mentor/analyze", `{"images":[{"base64":"eA==","mimeType":"image/png"}]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode[mentor.Answer](t, rec).Fallback)
}

func TestSankey(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/api/dashboard/sankey", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "custom:sankey-chart")

	rec = f.do(t, http.MethodGet, "/api/dashboard/sankey?part=templates", "")
	assert.Contains(t, rec.Body.String(), "unique_id:")
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(t)
	f.do(t, http.MethodGet, "/health", "")

	rec := f.do(t, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `boilersim_http_requests_total{route="/health",status="200"} 1`)
}

func TestCORS(t *testing.T) {
	f := newFixture(t)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "http://example.com")
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestStream(t *testing.T) {
	f := newFixture(t)
	srv := httptest.NewServer(f.handler)
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return f.hub.Clients() == 1 }, time.Second, 10*time.Millisecond)
	require.NoError(t, f.hub.Publish(map[string]int{"tick": 3}))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.JSONEq(t, `{"tick":3}`, string(data))

	conn.Close()
	require.Eventually(t, func() bool { return f.hub.Clients() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestHub_DropsWhenClientFull(t *testing.T) {
	h := NewHub(nil, nil)
	c := &streamClient{send: make(chan []byte, 1)}
	h.add(c)

	require.NoError(t, h.Publish(1))
	require.NoError(t, h.Publish(2))
	assert.Len(t, c.send, 1)
	assert.Equal(t, []byte("1"), <-c.send)

	h.remove(c)
	assert.Equal(t, 0, h.Clients())
}
