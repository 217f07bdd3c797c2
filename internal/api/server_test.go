package api

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"curator-signal-lab/internal/domain"
	"curator-signal-lab/internal/observability"
	"curator-signal-lab/internal/storage"
	"curator-signal-lab/internal/tracker"
)

var started = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

type fakeLedger struct {
	trades []*domain.PaperTrade
}

func (f *fakeLedger) Summary() domain.AggregateStats {
	s := domain.AggregateStats{TotalTrades: len(f.trades)}
	for _, t := range f.trades {
		if !t.Status.IsTerminal() {
			s.OpenTrades++
		}
	}
	return s
}

func (f *fakeLedger) AllTrades() []*domain.PaperTrade { return f.trades }

func (f *fakeLedger) Trade(id string) (*domain.PaperTrade, error) {
	for _, t := range f.trades {
		if t.ID == id {
			return t, nil
		}
	}
	return nil, storage.ErrNotFound
}

type fixedStatus tracker.Status

func (s fixedStatus) Status() tracker.Status { return tracker.Status(s) }

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	reg := prometheus.NewRegistry()
	m := observability.NewMetrics(reg, "test")
	m.RecordConfirmed()

	ledger := &fakeLedger{trades: []*domain.PaperTrade{
		{ID: "a", CuratorWallet: "w1", TokenID: "t1", Status: domain.StatusPending1h},
		{ID: "b", CuratorWallet: "w2", TokenID: "t2", Status: domain.StatusComplete},
		{ID: "c", CuratorWallet: "w1", TokenID: "t3", Status: domain.StatusAbandoned},
	}}
	srv, err := NewServer(Options{
		Ledger:    ledger,
		Scheduler: fixedStatus{PendingSignals: 2, Sweeps: 7, LastSweepAt: started.Add(time.Hour)},
		Gatherer:  reg,
		StartedAt: started,
		Wallets:   3,
	})
	require.NoError(t, err)
	srv.now = func() time.Time { return started.Add(90 * time.Minute) }

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func get(t *testing.T, ts *httptest.Server, path string) (int, []byte) {
	t.Helper()
	resp, err := http.Get(ts.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, body
}

func TestServer_HealthAndMetrics(t *testing.T) {
	ts := newTestServer(t)

	code, body := get(t, ts, "/health")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", string(body))

	code, body = get(t, ts, "/metrics")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(body), "test_signals_confirmed_total 1")
}

func TestServer_Status(t *testing.T) {
	ts := newTestServer(t)

	code, body := get(t, ts, "/status")
	require.Equal(t, http.StatusOK, code)

	var resp StatusResponse
	require.NoError(t, json.Unmarshal(body, &resp))
	assert.Equal(t, "running", resp.Status)
	assert.Equal(t, "1h30m0s", resp.Uptime)
	assert.Equal(t, 3, resp.Wallets)
	assert.Equal(t, 2, resp.PendingSignals)
	assert.Equal(t, int64(7), resp.Sweeps)
	require.NotNil(t, resp.LastSweepAt)
	assert.True(t, started.Add(time.Hour).Equal(*resp.LastSweepAt))
	assert.Equal(t, 1, resp.OpenTrades)
	assert.Equal(t, 3, resp.TotalTrades)
}

func TestServer_Summary(t *testing.T) {
	ts := newTestServer(t)

	code, body := get(t, ts, "/summary")
	require.Equal(t, http.StatusOK, code)

	var sum domain.AggregateStats
	require.NoError(t, json.Unmarshal(body, &sum))
	assert.Equal(t, 3, sum.TotalTrades)
}

func TestServer_Trades(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		query string
		want  []string
	}{
		{"", []string{"a", "b", "c"}},
		{"?status=open", []string{"a"}},
		{"?status=complete", []string{"b"}},
		{"?wallet=w1", []string{"a", "c"}},
		{"?wallet=w1&token=t3", []string{"c"}},
		{"?token=none", []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			code, body := get(t, ts, "/trades"+tt.query)
			require.Equal(t, http.StatusOK, code)

			var trades []*domain.PaperTrade
			require.NoError(t, json.Unmarshal(body, &trades))
			ids := make([]string, 0, len(trades))
			for _, tr := range trades {
				ids = append(ids, tr.ID)
			}
			assert.Equal(t, tt.want, ids)
		})
	}

	code, _ := get(t, ts, "/trades?status=sideways")
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestServer_TradeByID(t *testing.T) {
	ts := newTestServer(t)

	code, body := get(t, ts, "/trades/b")
	require.Equal(t, http.StatusOK, code)
	var trade domain.PaperTrade
	require.NoError(t, json.Unmarshal(body, &trade))
	assert.Equal(t, "w2", trade.CuratorWallet)

	code, _ = get(t, ts, "/trades/zzz")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestNewServer_RequiresLedger(t *testing.T) {
	_, err := NewServer(Options{})
	assert.Error(t, err)
}
