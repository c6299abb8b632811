package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agmipx/internal/config"
)

const sampleCSV = `Model,Scenario,Year,Sector,Region,Indicator,Unit,Value
M1,S1,2000,AGR,WLD,PROD,t,10
M1,S1,2010,AGR,WLD,PROD,t,20
M2,S1,2000,AGR,WLD,PROD,t,5
`

func testConfig(t *testing.T, withData bool) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Paths.RootDir = t.TempDir()
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = 0
	cfg.Telemetry.TraceExporter = "none"
	cfg.Telemetry.MetricExporter = "none"
	cfg.Logging.Level = "error"

	if withData {
		dir := filepath.Join(cfg.Paths.RootDir, cfg.Paths.DataDir)
		require.NoError(t, os.MkdirAll(dir, 0755))
		require.NoError(t, os.WriteFile(filepath.Join(dir, cfg.Dataset.File), []byte(sampleCSV), 0644))
	}
	return cfg
}

func newTestApp(t *testing.T, withData bool) *Application {
	t.Helper()
	a, err := New(testConfig(t, withData))
	require.NoError(t, err)
	t.Cleanup(func() {
		a.Broadcaster.Stop()
		a.WebSocketHub.Stop()
	})
	return a
}

func serve(a *Application, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	a.Router.ServeHTTP(rec, req)
	return rec
}

func TestNew(t *testing.T) {
	a := newTestApp(t, true)

	assert.True(t, a.Explorer.Loaded())
	assert.DirExists(t, a.Paths.ExportsDir)
	assert.DirExists(t, a.Paths.LogsDir)
	assert.NotNil(t, a.Metrics)
	assert.Equal(t, "127.0.0.1:0", a.Server.Addr)
}

func TestNewWithoutDataset(t *testing.T) {
	a := newTestApp(t, false)

	assert.False(t, a.Explorer.Loaded())

	rec := serve(a, http.MethodGet, "/api/dataset", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = serve(a, http.MethodGet, "/api/health/ready", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = serve(a, http.MethodGet, "/api/health/live", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRouter(t *testing.T) {
	a := newTestApp(t, true)

	t.Run("request id and security headers", func(t *testing.T) {
		rec := serve(a, http.MethodGet, "/api/health", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
		assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	})

	t.Run("unknown route", func(t *testing.T) {
		rec := serve(a, http.MethodGet, "/nope", "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("search pivot export", func(t *testing.T) {
		rec := serve(a, http.MethodPost, "/api/search", `{"selections":{"Model":["(All)"]}}`)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		rec = serve(a, http.MethodPost, "/api/pivot", `{"row":"Year","col":"Model","aggregation":"sum"}`)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var out struct {
			Rows []string `json:"rows"`
			Cols []string `json:"cols"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
		assert.Equal(t, []string{"2000", "2010"}, out.Rows)
		assert.Equal(t, []string{"M1", "M2"}, out.Cols)

		rec = serve(a, http.MethodGet, "/api/export/pivot/xlsx", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.NotZero(t, rec.Body.Len())
	})

	t.Run("body too large", func(t *testing.T) {
		big := `{"selections":{"Model":["` + strings.Repeat("x", int(a.Config.Security.MaxBodyBytes)) + `"]}}`
		rec := serve(a, http.MethodPost, "/api/search", big)
		assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	})
}

func TestStartStop(t *testing.T) {
	a, err := New(testConfig(t, true))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, a.Start(ctx, cancel))
	time.Sleep(50 * time.Millisecond)

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer stopCancel()
	require.NoError(t, a.Stop(stopCtx))

	assert.Equal(t, 0, a.WebSocketHub.ClientCount())
}
