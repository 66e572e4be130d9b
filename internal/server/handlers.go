package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"komari-bridge/internal/cache"
	"komari-bridge/internal/client/komari"
	"komari-bridge/internal/config"
	"komari-bridge/internal/model"
	"komari-bridge/internal/service"
)

// SnapshotSource supplies the latest merged status snapshot.
type SnapshotSource interface {
	Latest() *model.Snapshot
}

// Querier answers the secondary dashboard lookups.
type Querier interface {
	Monitors(ctx context.Context, serverID uint32) ([]model.Monitor, error)
	Groups(ctx context.Context) ([]model.Group, error)
	Services(ctx context.Context) ([]model.Service, error)
}

// SettingSource supplies upstream site metadata.
type SettingSource interface {
	GetPublicInfo(ctx context.Context) (*komari.PublicInfo, error)
	GetVersion(ctx context.Context) (*komari.VersionInfo, error)
}

// Handlers bundle the HTTP endpoints of the bridge API.
type Handlers struct {
	snapshots SnapshotSource
	queries   Querier
	settings  SettingSource
	notes     *cache.NoteStore
	site      config.SiteConfig
	version   string
	logger    zerolog.Logger
}

// NewHandlers creates the API handler set.
func NewHandlers(snapshots SnapshotSource, queries Querier, settings SettingSource, notes *cache.NoteStore, site config.SiteConfig, version string, logger zerolog.Logger) *Handlers {
	return &Handlers{
		snapshots: snapshots,
		queries:   queries,
		settings:  settings,
		notes:     notes,
		site:      site,
		version:   version,
		logger:    logger.With().Str("component", "api").Logger(),
	}
}

// Response is the JSON envelope of every REST endpoint.
type Response struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

func (h *Handlers) sendJSON(w http.ResponseWriter, status int, resp Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		h.logger.Error().Err(err).Msg("failed to encode response")
	}
}

// HealthCheck reports liveness and basic runtime facts.
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	status := "waiting" // No snapshot yet
	if h.snapshots.Latest() != nil {
		status = "polling"
	}

	h.sendJSON(w, http.StatusOK, Response{
		Success: true,
		Message: "komari-bridge is running",
		Data: map[string]interface{}{
			"version":   h.version,
			"timestamp": time.Now().Format(time.RFC3339),
			"upstream":  status,
		},
	})
}

// Servers serves the latest canonical snapshot with per-server render
// projections applied.
func (h *Handlers) Servers(w http.ResponseWriter, r *http.Request) {
	snapshot := h.snapshots.Latest()
	if snapshot == nil {
		h.sendJSON(w, http.StatusOK, Response{
			Success: true,
			Data:    map[string]interface{}{"now": time.Now().UnixMilli(), "servers": []service.View{}},
		})
		return
	}

	now := time.Now()
	views := make([]service.View, 0, len(snapshot.Servers))
	for _, s := range snapshot.Servers {
		views = append(views, service.Project(now, s, h.notes))
	}

	h.sendJSON(w, http.StatusOK, Response{
		Success: true,
		Data:    map[string]interface{}{"now": snapshot.Now, "servers": views},
	})
}

// ServerGroups serves the distinct server groups.
func (h *Handlers) ServerGroups(w http.ResponseWriter, r *http.Request) {
	groups, err := h.queries.Groups(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("group lookup failed")
		h.sendJSON(w, http.StatusBadGateway, Response{Success: false, Error: err.Error()})
		return
	}
	h.sendJSON(w, http.StatusOK, Response{Success: true, Data: groups})
}

// Monitor serves the historical latency series for one server.
func (h *Handlers) Monitor(w http.ResponseWriter, r *http.Request) {
	raw := mux.Vars(r)["id"]
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		h.sendJSON(w, http.StatusBadRequest, Response{Success: false, Error: "invalid server id: " + raw})
		return
	}

	monitors, err := h.queries.Monitors(r.Context(), uint32(id))
	if err != nil {
		h.logger.Error().Err(err).Uint64("server_id", id).Msg("monitor lookup failed")
		h.sendJSON(w, http.StatusBadGateway, Response{Success: false, Error: err.Error()})
		return
	}
	h.sendJSON(w, http.StatusOK, Response{Success: true, Data: monitors})
}

// Service serves the uptime-probe aggregates.
func (h *Handlers) Service(w http.ResponseWriter, r *http.Request) {
	services, err := h.queries.Services(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("service lookup failed")
		h.sendJSON(w, http.StatusBadGateway, Response{Success: false, Error: err.Error()})
		return
	}
	h.sendJSON(w, http.StatusOK, Response{Success: true, Data: services})
}

// Setting serves site metadata. Upstream values win; the local configuration
// fills the gaps when the upstream cannot be reached.
func (h *Handlers) Setting(w http.ResponseWriter, r *http.Request) {
	siteName := h.site.Name
	customHead := ""

	if info, err := h.settings.GetPublicInfo(r.Context()); err != nil {
		h.logger.Warn().Err(err).Msg("public info lookup failed, using local settings")
	} else {
		if info.SiteName != "" {
			siteName = info.SiteName
		}
		customHead = info.CustomHead
	}

	upstreamVersion := ""
	if v, err := h.settings.GetVersion(r.Context()); err == nil {
		upstreamVersion = v.Version
	}

	h.sendJSON(w, http.StatusOK, Response{
		Success: true,
		Data: map[string]interface{}{
			"site_name":        siteName,
			"language":         h.site.Language,
			"custom_head":      customHead,
			"version":          h.version,
			"upstream_version": upstreamVersion,
		},
	})
}
