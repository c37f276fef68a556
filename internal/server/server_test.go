package server

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"lozenge/pkg/config"
	"lozenge/pkg/fastjson"
	"lozenge/pkg/ir"
	"lozenge/pkg/journal"
	"lozenge/pkg/logger"
	"lozenge/pkg/middleware"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

const countdown = `
CONST start = 3
        LOADC start
        STORE n
loop:   LOAD  n
        JMZ   done
        LOAD  n
        WRITE
        LOAD  n
        LOADC 1
        SUB
        STORE n
        JMP   loop
done:   HALT
n:      DEC   0
`

func testConfig() config.Config {
	return config.Config{
		Env:         "test",
		MemoryWords: 2048,
		StackDepth:  4096,
		ReturnDepth: 1024,
		MaxSteps:    10_000,
	}
}

func newTestServer(t *testing.T, withJournal bool) (*Server, *journal.Journal) {
	t.Helper()
	var j *journal.Journal
	if withJournal {
		var err error
		j, err = journal.Open("sqlite", ":memory:")
		require.NoError(t, err)
		require.NoError(t, j.Migrate(context.Background()))
		t.Cleanup(func() { j.Close() })
	}
	return New(testConfig(), j), j
}

func post(t *testing.T, h http.Handler, path, body string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var out map[string]interface{}
	require.NoError(t, fastjson.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return rec, out
}

func sourceBody(t *testing.T, name, src string) string {
	t.Helper()
	b, err := fastjson.Marshal(map[string]string{"name": name, "source": src})
	require.NoError(t, err)
	return string(b)
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t, true)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"OK"`)
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
}

func TestRunEndpoint(t *testing.T) {
	s, j := newTestServer(t, true)
	h := s.Router()

	rec, out := post(t, h, "/api/run", sourceBody(t, "countdown", countdown))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, out["success"])
	assert.Equal(t, "halted", out["state"])
	assert.Equal(t, []interface{}{float64(3), float64(2), float64(1)}, out["output"])

	entries, err := j.Recent(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "countdown", entries[0].Program)
}

func TestRunRequestLogCarriesOutcome(t *testing.T) {
	var buf bytes.Buffer
	logger.SetupWriter(&buf, "development", "info")
	t.Cleanup(func() { logger.SetupWriter(io.Discard, "test", "error") })

	s, _ := newTestServer(t, false)
	post(t, s.Router(), "/api/run", sourceBody(t, "div", "LOADC 1\nLOADC 0\nDIV\nHALT\n"))

	line := buf.String()
	assert.Contains(t, line, "route=/api/run")
	assert.Contains(t, line, "program=div")
	assert.Contains(t, line, "state=faulted")
	assert.Contains(t, line, `fault="division by zero"`)
	assert.Contains(t, line, "pc=2")
}

func TestRunEndpointReportsFault(t *testing.T) {
	s, _ := newTestServer(t, false)

	rec, out := post(t, s.Router(), "/api/run", sourceBody(t, "div", "LOADC 1\nLOADC 0\nDIV\nHALT\n"))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, out["success"])
	assert.Equal(t, "faulted", out["state"])

	fault, ok := out["fault"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "division by zero", fault["kind"])
	assert.Equal(t, float64(2), fault["pc"])
}

func TestRunEndpointBoundsInfiniteLoop(t *testing.T) {
	s, _ := newTestServer(t, false)

	_, out := post(t, s.Router(), "/api/run", sourceBody(t, "spin", "top: JMP top\n"))
	assert.Equal(t, "faulted", out["state"])
	assert.Equal(t, float64(10_000), out["steps"])
}

func TestBuildErrorsAre422(t *testing.T) {
	s, _ := newTestServer(t, false)
	h := s.Router()

	rec, out := post(t, h, "/api/build", sourceBody(t, "", "JMP nowhere\nHALT\n"))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, false, out["success"])
	assert.Equal(t, float64(0), out["index"])

	rec, out = post(t, h, "/api/build", sourceBody(t, "", "HALT\nBOGUS 1\n"))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, float64(2), out["line"])
}

func TestBuildAcceptsLongCommentLine(t *testing.T) {
	s, _ := newTestServer(t, false)
	src := "; " + strings.Repeat("=", 70000) + "\nLOADC 1\nWRITE\nHALT\n"

	rec, out := post(t, s.Router(), "/api/build", sourceBody(t, "", src))
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, true, out["success"])
}

func TestOverlongLineIs422(t *testing.T) {
	_, err := ir.ParseListingString("; " + strings.Repeat("=", ir.MaxLineBytes) + "\nHALT\n")
	require.Error(t, err)

	rec := httptest.NewRecorder()
	writeBuildError(rec, err)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), `"line":1`)
}

func TestBuildEndpoint(t *testing.T) {
	s, _ := newTestServer(t, false)

	rec, out := post(t, s.Router(), "/api/build", sourceBody(t, "", countdown))
	require.Equal(t, http.StatusOK, rec.Code)
	words, ok := out["words"].([]interface{})
	require.True(t, ok)
	assert.Len(t, words, 13)

	symbols := out["symbols"].(map[string]interface{})
	assert.Equal(t, float64(12), symbols["n"])
}

func TestDisasmEndpoint(t *testing.T) {
	s, _ := newTestServer(t, false)

	rec, out := post(t, s.Router(), "/api/disasm", sourceBody(t, "", "LOADC 7\nWRITE\nHALT\n"))
	require.Equal(t, http.StatusOK, rec.Code)
	entries, ok := out["entries"].([]interface{})
	require.True(t, ok)
	assert.Len(t, entries, 3)
}

func TestMissingSourceIs400(t *testing.T) {
	s, _ := newTestServer(t, false)

	rec, out := post(t, s.Router(), "/api/run", `{"name":"empty"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "source is required", out["error"])
}

func TestRunsEndpoint(t *testing.T) {
	s, _ := newTestServer(t, true)
	h := s.Router()
	post(t, h, "/api/run", sourceBody(t, "one", "LOADC 1\nWRITE\nHALT\n"))
	time.Sleep(time.Millisecond)
	post(t, h, "/api/run", sourceBody(t, "two", "LOADC 2\nWRITE\nHALT\n"))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/runs?limit=1", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var out struct {
		Runs []journal.Entry `json:"runs"`
	}
	require.NoError(t, fastjson.Unmarshal(rec.Body.Bytes(), &out))
	require.Len(t, out.Runs, 1)
	assert.Equal(t, "two", out.Runs[0].Program)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/runs?limit=0", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRunsWithoutJournal(t *testing.T) {
	s, _ := newTestServer(t, false)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/runs", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMetricsExposed(t *testing.T) {
	s, _ := newTestServer(t, false)
	h := s.Router()
	post(t, h, "/api/run", sourceBody(t, "m", "HALT\n"))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "lozenge_runs_total")
}

func TestRunNameIsSanitized(t *testing.T) {
	s, j := newTestServer(t, true)

	_, out := post(t, s.Router(), "/api/run", sourceBody(t, "<script>alert(1)</script>demo", "HALT\n"))
	assert.Equal(t, "demo", out["name"])

	entries, err := j.Recent(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "demo", entries[0].Program)
}

func TestExportEndpoint(t *testing.T) {
	s, _ := newTestServer(t, true)
	h := s.Router()
	post(t, h, "/api/run", sourceBody(t, "one", "LOADC 1\nWRITE\nHALT\n"))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/runs/export", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "lozenge_runs.xlsx")

	f, err := excelize.OpenReader(rec.Body)
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows("Runs")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "one", rows[1][1])
}

func TestAPIRequiresTokenWhenSecretSet(t *testing.T) {
	cfg := testConfig()
	cfg.JWTSecret = "playground-secret"
	h := New(cfg, nil).Router()

	req := httptest.NewRequest(http.MethodPost, "/api/run", strings.NewReader(sourceBody(t, "x", "HALT\n")))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	token, err := middleware.IssueToken(cfg.JWTSecret, "tester", time.Minute)
	require.NoError(t, err)
	req = httptest.NewRequest(http.MethodPost, "/api/run", strings.NewReader(sourceBody(t, "x", "HALT\n")))
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	// health stays public
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
