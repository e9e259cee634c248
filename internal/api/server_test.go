package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"retirement-sim-lab/internal/kernel"
	"retirement-sim-lab/internal/kernel/stub"
	"retirement-sim-lab/internal/orchestrator"
	"retirement-sim-lab/internal/storage/memory"
)

// failingEngine simulates kernel outages.
type failingEngine struct{}

func (failingEngine) RunMonteCarlo(context.Context, *kernel.SimulationInput, int) (*kernel.MCPayload, error) {
	return nil, kernel.ErrUnavailable
}
func (failingEngine) RunReplay(context.Context, *kernel.SimulationInput) (*kernel.ReplayResult, error) {
	return nil, kernel.ErrUnavailable
}
func (failingEngine) Ready(context.Context) error { return kernel.ErrUnavailable }

func newTestServer(t *testing.T, engine kernel.Engine) (*Server, *memory.RunStore) {
	t.Helper()

	orch, err := orchestrator.New(orchestrator.Options{Engine: engine})
	if err != nil {
		t.Fatalf("orchestrator: %v", err)
	}

	runStore := memory.NewRunStore()
	srv, err := NewServer(Options{
		Orchestrator:  orch,
		Engine:        engine,
		RunStore:      runStore,
		RunStatsStore: memory.NewRunStatisticsStore(),
	})
	if err != nil {
		t.Fatalf("server: %v", err)
	}
	return srv, runStore
}

func simulateBody(fields string) *bytes.Reader {
	return bytes.NewReader([]byte(`{"packetBuildRequest":{` + fields + `}}`))
}

func doSimulate(t *testing.T, srv *Server, body *bytes.Reader) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, "/simulate", body)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	var resp map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response (%d): %v: %s", rec.Code, err, rec.Body.String())
	}
	return rec, resp
}

const baseFields = `"seed":42,"startYear":2026,"currentAge":55,` +
	`"investableAssets":1200000,"annualSpending":80000,"expectedIncome":120000`

func TestSimulate_Success(t *testing.T) {
	srv, runStore := newTestServer(t, stub.NewEngine())

	rec, resp := doSimulate(t, srv, simulateBody(baseFields))
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}

	if resp["success"] != true {
		t.Error("expected success=true")
	}
	if resp["baseSeed"] != float64(42) {
		t.Errorf("baseSeed %v, want 42", resp["baseSeed"])
	}
	if resp["pathsRun"] != float64(100) {
		t.Errorf("pathsRun %v, want default 100", resp["pathsRun"])
	}
	if resp["replayMode"] != false {
		t.Error("replayMode must be false without explicit pathSeed")
	}
	mc, ok := resp["mc"].(map[string]any)
	if !ok {
		t.Fatalf("mc missing: %v", resp)
	}
	if _, ok := mc["successRate"]; !ok {
		t.Error("mc.successRate missing")
	}
	if _, ok := resp["annualSnapshots"]; !ok {
		t.Error("default annual verbosity must include annualSnapshots")
	}
	if _, ok := resp["trace"]; ok {
		t.Error("trace must require trace verbosity")
	}

	// Run persisted best-effort.
	runID, _ := resp["runId"].(string)
	if runID == "" {
		t.Fatal("runId missing")
	}
	if _, err := runStore.GetByID(context.Background(), runID); err != nil {
		t.Errorf("run not persisted: %v", err)
	}
}

func TestSimulate_DeterministicAcrossCalls(t *testing.T) {
	srv, _ := newTestServer(t, stub.NewEngine())

	_, first := doSimulate(t, srv, simulateBody(baseFields))
	_, second := doSimulate(t, srv, simulateBody(baseFields))

	fm := first["mc"].(map[string]any)
	sm := second["mc"].(map[string]any)
	if fm["finalNetWorthP50"] != sm["finalNetWorthP50"] {
		t.Errorf("same seed must reproduce identical statistics: %v vs %v",
			fm["finalNetWorthP50"], sm["finalNetWorthP50"])
	}
}

func TestSimulate_MissingSeed(t *testing.T) {
	srv, _ := newTestServer(t, stub.NewEngine())

	rec, resp := doSimulate(t, srv, simulateBody(`"startYear":2026,"investableAssets":1000000`))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status %d, want 400", rec.Code)
	}
	errObj := resp["error"].(map[string]any)
	if errObj["code"] != "MISSING_INPUT" {
		t.Errorf("code %v, want MISSING_INPUT", errObj["code"])
	}
	if !strings.Contains(errObj["message"].(string), "seed") {
		t.Errorf("message must name the missing field, got %v", errObj["message"])
	}
}

func TestSimulate_MissingEnvelope(t *testing.T) {
	srv, _ := newTestServer(t, stub.NewEngine())

	req := httptest.NewRequest(http.MethodPost, "/simulate", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status %d, want 400", rec.Code)
	}
}

func TestSimulate_KernelUnavailable(t *testing.T) {
	srv, _ := newTestServer(t, failingEngine{})

	rec, resp := doSimulate(t, srv, simulateBody(baseFields))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status %d, want 503", rec.Code)
	}
	errObj := resp["error"].(map[string]any)
	if errObj["code"] != "SERVICE_UNAVAILABLE" {
		t.Errorf("code %v, want SERVICE_UNAVAILABLE", errObj["code"])
	}
}

func TestSimulate_ExplicitPathSeed(t *testing.T) {
	srv, _ := newTestServer(t, stub.NewEngine())

	rec, resp := doSimulate(t, srv, simulateBody(baseFields+`,"pathSeed":777`))
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	if resp["replayMode"] != true || resp["pathsRun"] != float64(1) || resp["baseSeed"] != float64(777) {
		t.Errorf("replay mode envelope wrong: replayMode=%v pathsRun=%v baseSeed=%v",
			resp["replayMode"], resp["pathsRun"], resp["baseSeed"])
	}
	if _, ok := resp["mc"]; ok {
		t.Error("explicit replay has no mc statistics")
	}
	blocked, _ := resp["blockedOutputs"].([]any)
	if len(blocked) != 1 || blocked[0] != "mc" {
		t.Errorf("blockedOutputs %v, want [mc]", blocked)
	}
}

func TestSimulate_SummaryVerbosity(t *testing.T) {
	srv, _ := newTestServer(t, stub.NewEngine())

	_, resp := doSimulate(t, srv, simulateBody(baseFields+`,"verbosity":"summary"`))
	if _, ok := resp["annualSnapshots"]; ok {
		t.Error("summary verbosity must omit annualSnapshots")
	}
	if _, ok := resp["mc"]; !ok {
		t.Error("summary verbosity must still carry mc statistics")
	}
}

func TestSimulate_TraceVerbosity(t *testing.T) {
	srv, _ := newTestServer(t, stub.NewEngine())

	_, resp := doSimulate(t, srv, simulateBody(baseFields+`,"verbosity":"trace","horizonMonths":24`))
	tr, ok := resp["trace"].(map[string]any)
	if !ok {
		t.Fatal("trace verbosity must include the full trace")
	}
	if tr["monthCount"] != float64(24) {
		t.Errorf("trace monthCount %v, want 24", tr["monthCount"])
	}
}

func TestSimulate_ConfirmedChanges(t *testing.T) {
	srv, _ := newTestServer(t, stub.NewEngine())

	body := simulateBody(`"startYear":2026,"investableAssets":1000000,` +
		`"confirmedChanges":[{"fieldPath":"seed","newValue":42}]`)
	rec, _ := doSimulate(t, srv, body)
	if rec.Code != http.StatusOK {
		t.Errorf("seed via confirmedChanges must satisfy the requirement, got %d: %s",
			rec.Code, rec.Body.String())
	}
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t, stub.NewEngine())

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status %d, want 200", rec.Code)
	}
	var resp healthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Status != "ok" || !resp.EngineLoaded || !resp.EngineReady {
		t.Errorf("unexpected health %+v", resp)
	}
	if resp.Timestamp == 0 {
		t.Error("timestamp missing")
	}
}

func TestHealth_Degraded(t *testing.T) {
	srv, _ := newTestServer(t, failingEngine{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status %d, want 503", rec.Code)
	}
	var resp healthResponse
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Status != "degraded" || resp.EngineReady {
		t.Errorf("unexpected health %+v", resp)
	}
}

func TestRuns_FetchAfterSimulate(t *testing.T) {
	srv, _ := newTestServer(t, stub.NewEngine())

	_, resp := doSimulate(t, srv, simulateBody(baseFields))
	runID := resp["runId"].(string)

	req := httptest.NewRequest(http.MethodGet, "/runs/"+runID, nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("get run status %d", rec.Code)
	}

	var run map[string]any
	json.Unmarshal(rec.Body.Bytes(), &run)
	if run["runId"] != runID || run["baseSeed"] != float64(42) {
		t.Errorf("unexpected run record %v", run)
	}

	// Listing includes it too.
	req = httptest.NewRequest(http.MethodGet, "/runs?limit=5", nil)
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("list runs status %d", rec.Code)
	}
	var list map[string][]map[string]any
	json.Unmarshal(rec.Body.Bytes(), &list)
	if len(list["runs"]) != 1 {
		t.Errorf("expected 1 run, got %d", len(list["runs"]))
	}
}

func TestRuns_NotFound(t *testing.T) {
	srv, _ := newTestServer(t, stub.NewEngine())

	req := httptest.NewRequest(http.MethodGet, "/runs/does-not-exist", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status %d, want 404", rec.Code)
	}
}

func TestRuns_FilterBySeed(t *testing.T) {
	srv, _ := newTestServer(t, stub.NewEngine())

	doSimulate(t, srv, simulateBody(baseFields))
	doSimulate(t, srv, simulateBody(strings.Replace(baseFields, `"seed":42`, `"seed":43,"horizonMonths":120`, 1)))

	req := httptest.NewRequest(http.MethodGet, "/runs?seed=43", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}

	var list map[string][]map[string]any
	json.Unmarshal(rec.Body.Bytes(), &list)
	if len(list["runs"]) != 1 || list["runs"][0]["baseSeed"] != float64(43) {
		t.Errorf("seed filter returned %v", list["runs"])
	}
}

func TestRunStatistics_FetchAfterSimulate(t *testing.T) {
	srv, _ := newTestServer(t, stub.NewEngine())

	_, resp := doSimulate(t, srv, simulateBody(baseFields))
	runID := resp["runId"].(string)

	req := httptest.NewRequest(http.MethodGet, "/runs/"+runID+"/statistics", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}

	var body struct {
		RunID      string `json:"runId"`
		Statistics []struct {
			Metric     string  `json:"metric"`
			Percentile string  `json:"percentile"`
			Value      float64 `json:"value"`
		} `json:"statistics"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.RunID != runID || len(body.Statistics) == 0 {
		t.Fatalf("unexpected body %+v", body)
	}

	found := false
	for _, p := range body.Statistics {
		if p.Metric == "final_net_worth" && p.Percentile == "p50" {
			found = true
		}
	}
	if !found {
		t.Error("final_net_worth p50 point missing")
	}
}

func TestRunStatistics_UnknownRun(t *testing.T) {
	srv, _ := newTestServer(t, stub.NewEngine())

	req := httptest.NewRequest(http.MethodGet, "/runs/nope/statistics", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status %d, want 404", rec.Code)
	}
}

func TestMetricSeries(t *testing.T) {
	srv, _ := newTestServer(t, stub.NewEngine())

	doSimulate(t, srv, simulateBody(baseFields))
	doSimulate(t, srv, simulateBody(strings.Replace(baseFields, `"seed":42`, `"seed":43`, 1)))

	req := httptest.NewRequest(http.MethodGet, "/stats/success_rate?percentile=point", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}

	var body struct {
		Metric string           `json:"metric"`
		Values []map[string]any `json:"values"`
	}
	json.Unmarshal(rec.Body.Bytes(), &body)
	if body.Metric != "success_rate" || len(body.Values) != 2 {
		t.Errorf("expected 2 success_rate points, got %+v", body)
	}
}

func TestMetricSeries_MissingPercentile(t *testing.T) {
	srv, _ := newTestServer(t, stub.NewEngine())

	req := httptest.NewRequest(http.MethodGet, "/stats/final_net_worth", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status %d, want 400", rec.Code)
	}
}

func TestRuns_InvalidLimit(t *testing.T) {
	srv, _ := newTestServer(t, stub.NewEngine())

	for _, limit := range []string{"0", "-3", "abc"} {
		req := httptest.NewRequest(http.MethodGet, "/runs?limit="+limit, nil)
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("limit=%s: status %d, want 400", limit, rec.Code)
		}
	}
}

func TestSimulate_MalformedJSON(t *testing.T) {
	srv, _ := newTestServer(t, stub.NewEngine())

	req := httptest.NewRequest(http.MethodPost, "/simulate", strings.NewReader(`{not json`))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status %d, want 400", rec.Code)
	}
}

func TestSimulate_ValidationError(t *testing.T) {
	srv, _ := newTestServer(t, stub.NewEngine())

	rec, resp := doSimulate(t, srv, simulateBody(baseFields+`,"horizonMonths":-5`))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status %d, want 400", rec.Code)
	}
	errObj := resp["error"].(map[string]any)
	if errObj["code"] != "VALIDATION_ERROR" {
		t.Errorf("code %v, want VALIDATION_ERROR", errObj["code"])
	}
}

func ExampleServer() {
	engine := stub.NewEngine()
	quiet := log.New(io.Discard, "", 0)
	orch, _ := orchestrator.New(orchestrator.Options{Engine: engine, Logger: quiet})
	srv, _ := NewServer(Options{Orchestrator: orch, Engine: engine, Logger: quiet})

	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, _ := http.Post(ts.URL+"/simulate", "application/json",
		strings.NewReader(`{"packetBuildRequest":{"seed":1,"startYear":2026,"investableAssets":500000}}`))
	fmt.Println(resp.StatusCode)
	// Output: 200
}
