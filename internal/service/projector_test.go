package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"komari-bridge/internal/cache"
	"komari-bridge/internal/model"
)

func baseServer(lastActive string) model.Server {
	return model.Server{
		ID:         42,
		Name:       "alpha",
		LastActive: lastActive,
		Host: model.Host{
			MemTotal:  4096,
			SwapTotal: 0,
			DiskTotal: 200,
			BootTime:  time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC).Unix(),
		},
		State: model.State{
			CPU:         25,
			MemUsed:     1024,
			SwapUsed:    512,
			DiskUsed:    50,
			NetInSpeed:  2 * 1024 * 1024,
			NetOutSpeed: 1024 * 1024,
		},
	}
}

func TestProject_OnlineWindow(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name       string
		lastActive time.Time
		online     bool
	}{
		{"just inside window", now.Add(-29999 * time.Millisecond), true},
		{"just outside window", now.Add(-30001 * time.Millisecond), false},
		{"exactly at boundary", now.Add(-30 * time.Second), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := baseServer(tt.lastActive.Format(time.RFC3339Nano))
			view := Project(now, server, nil)
			assert.Equal(t, tt.online, view.Online)
		})
	}
}

func TestProject_NeverActiveSentinelIsOffline(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

	view := Project(now, baseServer(model.NeverActive), nil)
	assert.False(t, view.Online)
	assert.Zero(t, view.LastActiveMs)
	assert.Equal(t, "", view.LastActiveString)
}

func TestProject_Percentages(t *testing.T) {
	now := time.Now()
	view := Project(now, baseServer(model.NeverActive), nil)

	assert.Equal(t, 25.0, view.CPUPercent)
	assert.Equal(t, 25.0, view.MemPercent)  // 1024/4096
	assert.Equal(t, 25.0, view.DiskPercent) // 50/200
	// Zero totals yield 0, never NaN or Inf.
	assert.Equal(t, 0.0, view.SwapPercent)
}

func TestProject_Speeds(t *testing.T) {
	view := Project(time.Now(), baseServer(model.NeverActive), nil)
	assert.Equal(t, 2.0, view.DownSpeedMBps)
	assert.Equal(t, 1.0, view.UpSpeedMBps)
}

func TestProject_NotePassThrough(t *testing.T) {
	server := baseServer(model.NeverActive)
	server.PublicNote = `{"planDataMod":{"bandwidth":"1Gbps"}}`

	view := Project(time.Now(), server, nil)
	require.NotNil(t, view.Note)
	require.NotNil(t, view.Note.PlanDataMod)
	assert.Equal(t, "1Gbps", view.Note.PlanDataMod.Bandwidth)
}

func TestProject_NoteStoreFallback(t *testing.T) {
	notes := cache.NewNoteStore()

	server := baseServer(model.NeverActive)
	server.PublicNote = `{"planDataMod":{"bandwidth":"1Gbps"}}`
	Project(time.Now(), server, notes)

	// The next tick reports an empty note; the stored one fills in.
	server.PublicNote = ""
	view := Project(time.Now(), server, notes)
	require.NotNil(t, view.Note)
	require.NotNil(t, view.Note.PlanDataMod)
	assert.Equal(t, "1Gbps", view.Note.PlanDataMod.Bandwidth)
}

func TestProject_BootTimeFormatting(t *testing.T) {
	view := Project(time.Now(), baseServer(model.NeverActive), nil)
	assert.Equal(t, "2025-06-01 00:00:00", view.BootTimeString)

	noBoot := baseServer(model.NeverActive)
	noBoot.Host.BootTime = 0
	assert.Equal(t, "", Project(time.Now(), noBoot, nil).BootTimeString)
}
