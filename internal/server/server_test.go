package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/copyleftdev/stochopt/internal/config"
	"github.com/copyleftdev/stochopt/internal/logging"
)

// testConfig creates a test configuration with default values
func testConfig(t *testing.T) *config.Config {
	cfg := &config.Config{
		Environment: "test",
	}

	// Set up HTTP config
	cfg.HTTP.Port = 8080
	cfg.HTTP.ReadTimeout = 30 * time.Second
	cfg.HTTP.WriteTimeout = 30 * time.Second
	cfg.HTTP.IdleTimeout = 120 * time.Second
	cfg.HTTP.ShutdownTimeout = 30 * time.Second

	// Set up logging
	cfg.Logging.Level = "error"
	cfg.Logging.Format = "json"
	cfg.Logging.Output = "stderr"

	// Set up solver defaults
	cfg.Solver.MaxEvaluations = 2000
	cfg.Solver.NumRestarts = 1
	cfg.Solver.StagnationGenerations = 1000

	return cfg
}

// testLogger creates a test logger
func testLogger(t *testing.T) *logging.Logger {
	logger, err := logging.NewLogger(&logging.Config{
		Level:  "error",
		Format: "json",
		Output: "stderr",
	})
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}
	return logger
}

// testRouter builds a server with routes registered on a fresh router.
func testRouter(t *testing.T) (*Server, chi.Router) {
	srv := NewServer(testConfig(t), testLogger(t), nil)
	r := chi.NewRouter()
	srv.RegisterRoutes(r)
	return srv, r
}

func TestNewServer(t *testing.T) {
	srv := NewServer(testConfig(t), testLogger(t), nil)
	assert.NotNil(t, srv, "Server should be created")
}

func TestRegisterRoutes(t *testing.T) {
	_, r := testRouter(t)

	tests := []struct {
		method      string
		path        string
		shouldExist bool
	}{
		{"GET", "/api/v1/objectives", true},
		{"POST", "/api/v1/optimize", true},
		{"GET", "/api/v1/status/123", true},
		{"DELETE", "/api/v1/optimization/123", true},
		{"POST", "/rpc", true},
		{"GET", "/healthz", false}, // Not registered by server package
		{"GET", "/nonexistent", false},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			rr := httptest.NewRecorder()
			r.ServeHTTP(rr, req)

			if tt.shouldExist && rr.Code == http.StatusNotFound {
				t.Errorf("Route %s %s should exist but returned 404", tt.method, tt.path)
			}
		})
	}
}

func TestListObjectives(t *testing.T) {
	_, r := testRouter(t)

	req := httptest.NewRequest("GET", "/api/v1/objectives", nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)

	var body struct {
		Objectives []string `json:"objectives"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Contains(t, body.Objectives, "sphere")
	assert.Contains(t, body.Objectives, "rastrigin")
}

// startTestJob posts an optimization request and returns the job ID.
func startTestJob(t *testing.T, r chi.Router, payload map[string]interface{}) string {
	t.Helper()

	body, err := json.Marshal(payload)
	require.NoError(t, err)

	req := httptest.NewRequest("POST", "/api/v1/optimize", bytes.NewReader(body))
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	require.Equal(t, http.StatusAccepted, rr.Code, rr.Body.String())

	var resp struct {
		ID     string `json:"optimization_id"`
		Status string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.ID)
	assert.Equal(t, "pending", resp.Status)
	return resp.ID
}

// jobStatusBody fetches the status payload of a job.
func jobStatusBody(t *testing.T, r chi.Router, id string) map[string]interface{} {
	t.Helper()

	req := httptest.NewRequest("GET", "/api/v1/status/"+id, nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	return body
}

func TestOptimizeJobLifecycle(t *testing.T) {
	srv, r := testRouter(t)
	defer srv.Close()

	id := startTestJob(t, r, map[string]interface{}{
		"objective": "sphere",
		"bounds":    [][]float64{{-5, 5}, {-5, 5}},
		"options": map[string]interface{}{
			"max_evaluations": 500,
			"random_seed":     1,
		},
	})

	require.Eventually(t, func() bool {
		return jobStatusBody(t, r, id)["status"] == "completed"
	}, 10*time.Second, 20*time.Millisecond, "job should complete")

	body := jobStatusBody(t, r, id)
	result, ok := body["result"].(map[string]interface{})
	require.True(t, ok, "completed job must carry a result")

	assert.Equal(t, "BUDGET_EXHAUSTED", result["termination_reason"])
	assert.LessOrEqual(t, result["evaluations_used"].(float64), 500.0)
	assert.GreaterOrEqual(t, result["total_evaluations"].(float64), result["evaluations_used"].(float64))
	assert.Less(t, result["best_fitness"].(float64), 1.0)
	assert.Len(t, result["best_parameters"].([]interface{}), 2)
	assert.NotEmpty(t, body["end_time"])
}

func TestOptimizeTargetReached(t *testing.T) {
	srv, r := testRouter(t)
	defer srv.Close()

	id := startTestJob(t, r, map[string]interface{}{
		"objective": "sphere",
		"bounds":    [][]float64{{-5, 5}, {-5, 5}},
		"options": map[string]interface{}{
			"max_evaluations": 20000,
			"target_fitness":  0.01,
			"random_seed":     2,
		},
	})

	require.Eventually(t, func() bool {
		return jobStatusBody(t, r, id)["status"] == "completed"
	}, 10*time.Second, 20*time.Millisecond)

	result := jobStatusBody(t, r, id)["result"].(map[string]interface{})
	assert.Equal(t, "TARGET_REACHED", result["termination_reason"])
	assert.LessOrEqual(t, result["best_fitness"].(float64), 0.01)
}

func TestOptimizeRejectsUnknownObjective(t *testing.T) {
	_, r := testRouter(t)

	body, _ := json.Marshal(map[string]interface{}{
		"objective": "does-not-exist",
		"bounds":    [][]float64{{-1, 1}},
	})
	req := httptest.NewRequest("POST", "/api/v1/optimize", bytes.NewReader(body))
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestOptimizeRejectsInvalidBounds(t *testing.T) {
	_, r := testRouter(t)

	body, _ := json.Marshal(map[string]interface{}{
		"objective": "sphere",
		"bounds":    [][]float64{{1, 1}, {0, 2}},
	})
	req := httptest.NewRequest("POST", "/api/v1/optimize", bytes.NewReader(body))
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestCancelJob(t *testing.T) {
	srv, r := testRouter(t)
	defer srv.Close()

	// A large budget keeps the job running long enough to cancel.
	id := startTestJob(t, r, map[string]interface{}{
		"objective": "rastrigin",
		"bounds":    [][]float64{{-5.12, 5.12}, {-5.12, 5.12}},
		"options": map[string]interface{}{
			"max_evaluations":        50000000,
			"stagnation_generations": 50000000,
			"random_seed":            3,
		},
	})

	req := httptest.NewRequest("DELETE", "/api/v1/optimization/"+id, nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)

	assert.Equal(t, "cancelled", jobStatusBody(t, r, id)["status"])

	// Cancelling again is an error
	req = httptest.NewRequest("DELETE", "/api/v1/optimization/"+id, nil)
	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestStatusUnknownJob(t *testing.T) {
	_, r := testRouter(t)

	req := httptest.NewRequest("GET", "/api/v1/status/opt_missing", nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestJSONRPCLifecycle(t *testing.T) {
	srv, r := testRouter(t)
	defer srv.Close()

	call := func(method string, params interface{}) map[string]interface{} {
		t.Helper()
		body, err := json.Marshal(map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      1,
			"method":  method,
			"params":  []interface{}{params},
		})
		require.NoError(t, err)

		req := httptest.NewRequest("POST", "/rpc", bytes.NewReader(body))
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, req)
		require.Equal(t, http.StatusOK, rr.Code)

		var resp map[string]interface{}
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		return resp
	}

	resp := call("optimization.start", map[string]interface{}{
		"objective": "ackley",
		"bounds":    [][]float64{{-5, 5}, {-5, 5}},
		"options":   map[string]interface{}{"max_evaluations": 400, "random_seed": 4},
	})
	require.NotNil(t, resp["result"], "start must succeed: %v", resp)
	id := resp["result"].(map[string]interface{})["optimization_id"].(string)

	require.Eventually(t, func() bool {
		resp := call("optimization.status", map[string]interface{}{"optimization_id": id})
		result, ok := resp["result"].(map[string]interface{})
		return ok && result["status"] == "completed"
	}, 10*time.Second, 20*time.Millisecond)

	resp = call("optimization.status", map[string]interface{}{"optimization_id": id})
	status := resp["result"].(map[string]interface{})
	assert.Equal(t, "ackley", status["objective"])
	assert.NotNil(t, status["result"])
}

func TestJSONRPCRejectsBadRequests(t *testing.T) {
	_, r := testRouter(t)

	tests := []struct {
		name string
		body string
		code float64
	}{
		{"parse error", "{not json", -32700},
		{"wrong version", `{"jsonrpc":"1.0","method":"optimization.start"}`, -32600},
		{"unknown method", `{"jsonrpc":"2.0","method":"optimization.nope"}`, -32601},
		{"missing params", `{"jsonrpc":"2.0","method":"optimization.start"}`, -32000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", "/rpc", bytes.NewReader([]byte(tt.body)))
			rr := httptest.NewRecorder()
			r.ServeHTTP(rr, req)
			require.Equal(t, http.StatusOK, rr.Code)

			var resp map[string]interface{}
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
			errObj, ok := resp["error"].(map[string]interface{})
			require.True(t, ok, "expected an error object")
			assert.Equal(t, tt.code, errObj["code"])
		})
	}
}

func TestClose(t *testing.T) {
	srv, _ := testRouter(t)
	err := srv.Close()
	assert.NoError(t, err, "Close should not return an error")
}
