package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/outboundlabs/leadflow/internal/model"
	"github.com/outboundlabs/leadflow/internal/store"
)

func newCmdTestStore(t *testing.T) store.Store {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func TestDashboard_Healthz(t *testing.T) {
	srv := httptest.NewServer(dashboardRouter(newCmdTestStore(t)))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
}

func TestDashboard_Stats(t *testing.T) {
	st := newCmdTestStore(t)
	require.NoError(t, st.InsertLead(context.Background(), &model.Lead{
		Company:     "Acme Creative",
		Fingerprint: "acme creative|austin",
	}))

	srv := httptest.NewServer(dashboardRouter(st))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/stats")
	require.NoError(t, err)
	defer resp.Body.Close()

	var stats model.Stats
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&stats))
	assert.Equal(t, 1, stats.TotalLeads)
	assert.Equal(t, 1, stats.ByStatus[model.StatusNew])
}

func TestDashboard_LeadsStatusFilter(t *testing.T) {
	st := newCmdTestStore(t)
	require.NoError(t, st.InsertLead(context.Background(), &model.Lead{
		Company:     "Acme Creative",
		Fingerprint: "acme creative|austin",
	}))
	require.NoError(t, st.InsertLead(context.Background(), &model.Lead{
		Company:     "Bolt Media",
		Fingerprint: "bolt media|denver",
		Status:      model.StatusQueued,
	}))

	srv := httptest.NewServer(dashboardRouter(st))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/leads?status=Queued")
	require.NoError(t, err)
	defer resp.Body.Close()

	var leads []model.Lead
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&leads))
	require.Len(t, leads, 1)
	assert.Equal(t, "Bolt Media", leads[0].Company)
}

func TestDashboard_LeadsUnknownStatus(t *testing.T) {
	srv := httptest.NewServer(dashboardRouter(newCmdTestStore(t)))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/leads?status=Bogus")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestDashboard_Runs(t *testing.T) {
	st := newCmdTestStore(t)
	run, err := st.CreateRun(context.Background(), model.RunKindDaily)
	require.NoError(t, err)
	require.NoError(t, st.CompleteRun(context.Background(), run.ID, model.RunStatusComplete, &model.RunSummary{Stored: 3}))

	srv := httptest.NewServer(dashboardRouter(st))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/runs?limit=5")
	require.NoError(t, err)
	defer resp.Body.Close()

	var runs []model.Run
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&runs))
	require.Len(t, runs, 1)
	assert.Equal(t, model.RunStatusComplete, runs[0].Status)
	require.NotNil(t, runs[0].Summary)
	assert.Equal(t, 3, runs[0].Summary.Stored)
}

func TestQueryLimit(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/runs?limit=7", nil)
	assert.Equal(t, 7, queryLimit(req, 20))

	req = httptest.NewRequest(http.MethodGet, "/api/runs", nil)
	assert.Equal(t, 20, queryLimit(req, 20))

	req = httptest.NewRequest(http.MethodGet, "/api/runs?limit=junk", nil)
	assert.Equal(t, 20, queryLimit(req, 20))
}
