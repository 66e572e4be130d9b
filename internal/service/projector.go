package service

import (
	"strings"
	"time"

	"komari-bridge/internal/billing"
	"komari-bridge/internal/cache"
	"komari-bridge/internal/model"
	"komari-bridge/internal/note"
)

// onlineWindow is the liveness window: a server whose last activity is older
// than this is shown offline.
const onlineWindow = 30 * time.Second

// timeLayout is the human-readable timestamp format used in views.
const timeLayout = "2006-01-02 15:04:05"

// View is a render-ready projection of one canonical server record.
type View struct {
	Server model.Server `json:"server"`

	Online           bool    `json:"online"`
	LastActiveMs     int64   `json:"last_active_ms"`
	LastActiveString string  `json:"last_active_string"`
	BootTimeString   string  `json:"boot_time_string"`
	CPUPercent       float64 `json:"cpu_percent"`
	MemPercent       float64 `json:"mem_percent"`
	SwapPercent      float64 `json:"swap_percent"`
	DiskPercent      float64 `json:"disk_percent"`
	UpSpeedMBps      float64 `json:"up_speed_mbps"`   // Outbound, MB/s
	DownSpeedMBps    float64 `json:"down_speed_mbps"` // Inbound, MB/s

	Note *note.Data `json:"note,omitempty"` // Parsed structured note, if any
}

// Project computes the derived, render-ready view of a server at a reference
// time. It is a pure function of its inputs apart from the optional note
// store, which supplies the last known note when the record's own note is
// momentarily empty (a nil store disables that fallback).
func Project(now time.Time, server model.Server, notes *cache.NoteStore) View {
	view := View{
		Server:        server,
		CPUPercent:    server.State.CPU,
		MemPercent:    percent(server.State.MemUsed, server.Host.MemTotal),
		SwapPercent:   percent(server.State.SwapUsed, server.Host.SwapTotal),
		DiskPercent:   percent(server.State.DiskUsed, server.Host.DiskTotal),
		UpSpeedMBps:   float64(server.State.NetOutSpeed) / 1024 / 1024,
		DownSpeedMBps: float64(server.State.NetInSpeed) / 1024 / 1024,
	}

	// A last_active starting with zeros is the "never reported" sentinel.
	if !strings.HasPrefix(server.LastActive, "000") {
		if t, err := billing.ParseDate(server.LastActive); err == nil {
			view.LastActiveMs = t.UnixMilli()
			view.LastActiveString = t.UTC().Format(timeLayout)
		}
	}
	view.Online = view.LastActiveMs > 0 && now.UnixMilli()-view.LastActiveMs <= onlineWindow.Milliseconds()

	if server.Host.BootTime > 0 {
		view.BootTimeString = time.Unix(server.Host.BootTime, 0).UTC().Format(timeLayout)
	}

	resolved := server.PublicNote
	if notes != nil {
		resolved = notes.Resolve(server.ID, server.PublicNote)
	}
	view.Note = note.Parse(resolved)

	return view
}

// percent computes used/total as a percentage, yielding 0 for a zero total so
// a partially-populated host block can never produce NaN or Inf.
func percent(used, total int64) float64 {
	if total == 0 {
		return 0
	}
	return float64(used) / float64(total) * 100
}
