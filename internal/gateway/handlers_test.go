package gateway

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"procura/internal/computesim"
	"procura/internal/correlation"
	"procura/internal/notify"
	"procura/internal/pipeline"
	"procura/internal/symbolic"
	"procura/internal/types"
)

type stubCatalog struct {
	candidates []types.Candidate
	err        error
}

func (s *stubCatalog) All(ctx context.Context) ([]types.Candidate, error) {
	return s.candidates, s.err
}

func (s *stubCatalog) Discover(ctx context.Context, req types.Requirement) ([]types.Candidate, error) {
	return s.candidates, s.err
}

func laptop(id string) types.Candidate {
	return types.Candidate{
		ID:    id,
		Model: "Laptop " + id,
		Brand: "TestBrand",
		Specs: types.Specs{
			Processor: "Intel Core i7",
			RAMGB:     32,
			GPU:       "NVIDIA RTX 4060",
		},
		Price:       1000,
		Rating:      4.4,
		ReviewCount: 300,
		Stock:       500,
		UseCases:    []string{"programming"},
		BulkPricing: []types.BulkTier{{MinQty: 10, DiscountPct: 10}},
	}
}

func newTestServer(t *testing.T, cat *stubCatalog) (*Server, *notify.Notifier, *correlation.Store) {
	t.Helper()
	store := correlation.NewStore(time.Minute, nil)
	notifier := notify.NewNotifier(64, time.Minute, nil)
	sim := computesim.NewSimulator(computesim.DefaultFactors(), nil)

	driver := pipeline.NewDriver(pipeline.Deps{
		Store:      store,
		Notifier:   notifier,
		Discoverer: cat,
		Compute:    sim,
		Symbolic:   symbolic.Heuristic{},
	}, time.Second)

	srv := NewServer(Deps{
		Driver:   driver,
		Store:    store,
		Notifier: notifier,
		Catalog:  cat,
		Compute:  sim,
	}, ":0", time.Second)
	return srv, notifier, store
}

func postJSON(t *testing.T, h http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestHandleProcure(t *testing.T) {
	srv, _, store := newTestServer(t, &stubCatalog{candidates: []types.Candidate{laptop("lap-1")}})
	h := srv.Handler()

	t.Run("text request is accepted", func(t *testing.T) {
		w := postJSON(t, h, "/api/procure", map[string]string{
			"text": "20 laptops for programming under $1500",
		})
		require.Equal(t, http.StatusAccepted, w.Code)

		var resp procureResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.NotEmpty(t, resp.RequestID)
		assert.Equal(t, "accepted", resp.Status)

		_, err := store.Get(resp.RequestID)
		assert.NoError(t, err)
	})

	t.Run("structured requirement is accepted", func(t *testing.T) {
		w := postJSON(t, h, "/api/procure", map[string]any{
			"requirement": types.Requirement{
				Quantity:         10,
				MaxBudgetPerUnit: 1200,
				UseCase:          types.UseCaseProgramming,
			},
		})
		assert.Equal(t, http.StatusAccepted, w.Code)
	})

	t.Run("invalid requirement is rejected", func(t *testing.T) {
		w := postJSON(t, h, "/api/procure", map[string]any{
			"requirement": types.Requirement{Quantity: 0, MaxBudgetPerUnit: 1200},
		})
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	})

	t.Run("empty body is rejected", func(t *testing.T) {
		w := postJSON(t, h, "/api/procure", map[string]string{})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("malformed JSON is rejected", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/procure", strings.NewReader("{nope"))
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestHandleStream(t *testing.T) {
	srv, _, _ := newTestServer(t, &stubCatalog{candidates: []types.Candidate{laptop("lap-1")}})
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	w := postJSON(t, srv.Handler(), "/api/procure", map[string]string{
		"text": "20 laptops for programming under $1500",
	})
	require.Equal(t, http.StatusAccepted, w.Code)
	var resp procureResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

	res, err := ts.Client().Get(ts.URL + "/api/stream/" + resp.RequestID)
	require.NoError(t, err)
	defer res.Body.Close()
	assert.Equal(t, "text/event-stream", res.Header.Get("Content-Type"))

	var lines []string
	scanner := bufio.NewScanner(res.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "data: ") {
			lines = append(lines, strings.TrimPrefix(line, "data: "))
		}
	}
	require.NoError(t, scanner.Err())

	require.NotEmpty(t, lines)
	assert.Contains(t, lines[0], "Request accepted")
	assert.Equal(t, streamClosedMarker, lines[len(lines)-1])

	var sawTerminal bool
	for _, l := range lines {
		if strings.Contains(l, "Deal secured") {
			sawTerminal = true
		}
	}
	assert.True(t, sawTerminal, "stream should carry the terminal event, got %v", lines)
}

func TestHandleRequestStatus(t *testing.T) {
	srv, _, store := newTestServer(t, &stubCatalog{})
	h := srv.Handler()

	t.Run("unknown id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/requests/nope", nil)
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("known id", func(t *testing.T) {
		require.NoError(t, store.Create("req-1", "test", types.Requirement{
			Quantity: 10, MaxBudgetPerUnit: 1500,
		}))

		req := httptest.NewRequest(http.MethodGet, "/api/requests/req-1", nil)
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		require.Equal(t, http.StatusOK, w.Code)

		var resp statusResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "req-1", resp.RequestID)
		assert.Equal(t, types.StateReceived, resp.State)
		assert.False(t, resp.Terminal)
	})
}

func TestHandleNotify(t *testing.T) {
	srv, notifier, _ := newTestServer(t, &stubCatalog{})
	h := srv.Handler()

	t.Run("publishes onto the stream", func(t *testing.T) {
		w := postJSON(t, h, "/api/notify", notifyRequest{
			RequestID: "req-ext", Message: "external progress", Done: true,
		})
		require.Equal(t, http.StatusAccepted, w.Code)

		select {
		case ev := <-notifier.Subscribe("req-ext"):
			assert.Equal(t, "external progress", ev.Message)
			assert.True(t, ev.Done)
		case <-time.After(time.Second):
			t.Fatal("event not delivered")
		}
	})

	t.Run("missing fields rejected", func(t *testing.T) {
		w := postJSON(t, h, "/api/notify", notifyRequest{Message: "no id"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestHandleLaptops(t *testing.T) {
	srv, _, _ := newTestServer(t, &stubCatalog{candidates: []types.Candidate{laptop("lap-1"), laptop("lap-2")}})
	h := srv.Handler()

	req := httptest.NewRequest(http.MethodGet, "/api/laptops", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Count   int               `json:"count"`
		Laptops []types.Candidate `json:"laptops"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Count)
	require.Len(t, resp.Laptops, 2)
	assert.Equal(t, "lap-1", resp.Laptops[0].ID)
}

func TestHandleScore(t *testing.T) {
	srv, _, _ := newTestServer(t, &stubCatalog{})
	h := srv.Handler()

	t.Run("scores a batch", func(t *testing.T) {
		w := postJSON(t, h, "/api/score", scoreRequest{
			Candidates: []types.Candidate{laptop("lap-1")},
		})
		require.Equal(t, http.StatusOK, w.Code)

		var resp struct {
			Results []types.ScoredCandidate `json:"results"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		require.Len(t, resp.Results, 1)
		assert.Equal(t, 0.85, resp.Results[0].Scores.ProcessorScore)
	})

	t.Run("empty batch rejected", func(t *testing.T) {
		w := postJSON(t, h, "/api/score", scoreRequest{})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestHandleHealth(t *testing.T) {
	srv, _, _ := newTestServer(t, &stubCatalog{})
	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)
}
