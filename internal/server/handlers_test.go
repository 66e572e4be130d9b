package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"komari-bridge/internal/cache"
	"komari-bridge/internal/client/komari"
	"komari-bridge/internal/config"
	"komari-bridge/internal/model"
)

type stubSnapshots struct {
	snapshot *model.Snapshot
}

func (s *stubSnapshots) Latest() *model.Snapshot { return s.snapshot }

type stubQueries struct {
	monitors []model.Monitor
	groups   []model.Group
	services []model.Service
	err      error
}

func (s *stubQueries) Monitors(ctx context.Context, serverID uint32) ([]model.Monitor, error) {
	return s.monitors, s.err
}
func (s *stubQueries) Groups(ctx context.Context) ([]model.Group, error) {
	return s.groups, s.err
}
func (s *stubQueries) Services(ctx context.Context) ([]model.Service, error) {
	return s.services, s.err
}

type stubSettings struct {
	info    *komari.PublicInfo
	version *komari.VersionInfo
	err     error
}

func (s *stubSettings) GetPublicInfo(ctx context.Context) (*komari.PublicInfo, error) {
	return s.info, s.err
}
func (s *stubSettings) GetVersion(ctx context.Context) (*komari.VersionInfo, error) {
	return s.version, s.err
}

func newTestServer(snapshots SnapshotSource, queries Querier, settings SettingSource) *Server {
	handlers := NewHandlers(
		snapshots, queries, settings,
		cache.NewNoteStore(),
		config.SiteConfig{Name: "Test Fleet", Language: "zh-CN"},
		"0.1.0",
		zerolog.Nop(),
	)
	cfg := config.ServerConfig{Listen: ":0", AllowedOrigins: []string{"*"}}
	return New(cfg, handlers, NewHub(zerolog.Nop()), zerolog.Nop())
}

func doRequest(t *testing.T, srv *Server, path string) (*httptest.ResponseRecorder, Response) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	var resp Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return rec, resp
}

func TestHealthCheck(t *testing.T) {
	srv := newTestServer(&stubSnapshots{}, &stubQueries{}, &stubSettings{})

	rec, resp := doRequest(t, srv, "/api/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, resp.Success)

	data := resp.Data.(map[string]interface{})
	assert.Equal(t, "0.1.0", data["version"])
	assert.Equal(t, "waiting", data["upstream"])
}

func TestServers_EmptyBeforeFirstPoll(t *testing.T) {
	srv := newTestServer(&stubSnapshots{}, &stubQueries{}, &stubSettings{})

	rec, resp := doRequest(t, srv, "/api/v1/servers")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, resp.Success)

	data := resp.Data.(map[string]interface{})
	assert.Empty(t, data["servers"])
}

func TestServers_ProjectsSnapshot(t *testing.T) {
	snapshot := &model.Snapshot{
		Now: 1750000000000,
		Servers: []model.Server{{
			ID:         42,
			Name:       "alpha",
			LastActive: model.NeverActive,
			Host:       model.Host{MemTotal: 4096},
			State:      model.State{CPU: 12.5, MemUsed: 2048},
		}},
	}
	srv := newTestServer(&stubSnapshots{snapshot: snapshot}, &stubQueries{}, &stubSettings{})

	rec, resp := doRequest(t, srv, "/api/v1/servers")
	assert.Equal(t, http.StatusOK, rec.Code)

	data := resp.Data.(map[string]interface{})
	assert.Equal(t, float64(1750000000000), data["now"])

	servers := data["servers"].([]interface{})
	require.Len(t, servers, 1)

	view := servers[0].(map[string]interface{})
	assert.Equal(t, false, view["online"])
	assert.Equal(t, 12.5, view["cpu_percent"])
	assert.Equal(t, 50.0, view["mem_percent"])
	assert.Equal(t, "alpha", view["server"].(map[string]interface{})["name"])
}

func TestServerGroups(t *testing.T) {
	queries := &stubQueries{groups: []model.Group{{ID: 0, Name: "asia", Servers: []uint32{1, 2}}}}
	srv := newTestServer(&stubSnapshots{}, queries, &stubSettings{})

	rec, resp := doRequest(t, srv, "/api/v1/server-group")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, resp.Success)

	groups := resp.Data.([]interface{})
	require.Len(t, groups, 1)
	assert.Equal(t, "asia", groups[0].(map[string]interface{})["name"])
}

func TestMonitor_Success(t *testing.T) {
	queries := &stubQueries{monitors: []model.Monitor{{MonitorID: 1, MonitorName: "telecom", ServerID: 42}}}
	srv := newTestServer(&stubSnapshots{}, queries, &stubSettings{})

	rec, resp := doRequest(t, srv, "/api/v1/monitor/42")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, resp.Success)

	monitors := resp.Data.([]interface{})
	require.Len(t, monitors, 1)
	assert.Equal(t, "telecom", monitors[0].(map[string]interface{})["monitor_name"])
}

func TestMonitor_NonNumericIDNotRouted(t *testing.T) {
	srv := newTestServer(&stubSnapshots{}, &stubQueries{}, &stubSettings{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/monitor/not-a-number", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMonitor_UpstreamError(t *testing.T) {
	queries := &stubQueries{err: errors.New("upstream down")}
	srv := newTestServer(&stubSnapshots{}, queries, &stubSettings{})

	rec, resp := doRequest(t, srv, "/api/v1/monitor/42")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Error, "upstream down")
}

func TestService_Success(t *testing.T) {
	queries := &stubQueries{services: []model.Service{{Name: "telecom", Status: "up", Delay: 48}}}
	srv := newTestServer(&stubSnapshots{}, queries, &stubSettings{})

	rec, resp := doRequest(t, srv, "/api/v1/service")
	assert.Equal(t, http.StatusOK, rec.Code)

	services := resp.Data.([]interface{})
	require.Len(t, services, 1)
	assert.Equal(t, "up", services[0].(map[string]interface{})["status"])
}

func TestSetting_UpstreamWins(t *testing.T) {
	settings := &stubSettings{
		info:    &komari.PublicInfo{SiteName: "Upstream Fleet", CustomHead: "<style></style>"},
		version: &komari.VersionInfo{Version: "1.0.7"},
	}
	srv := newTestServer(&stubSnapshots{}, &stubQueries{}, settings)

	rec, resp := doRequest(t, srv, "/api/v1/setting")
	assert.Equal(t, http.StatusOK, rec.Code)

	data := resp.Data.(map[string]interface{})
	assert.Equal(t, "Upstream Fleet", data["site_name"])
	assert.Equal(t, "zh-CN", data["language"])
	assert.Equal(t, "1.0.7", data["upstream_version"])
}

func TestSetting_FallsBackToLocalConfig(t *testing.T) {
	settings := &stubSettings{err: errors.New("upstream down")}
	srv := newTestServer(&stubSnapshots{}, &stubQueries{}, settings)

	rec, resp := doRequest(t, srv, "/api/v1/setting")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, resp.Success)

	data := resp.Data.(map[string]interface{})
	assert.Equal(t, "Test Fleet", data["site_name"])
	assert.Equal(t, "", data["upstream_version"])
}
