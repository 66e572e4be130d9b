// Package model provides the canonical server data model served to dashboards.
package model

// NeverActive is the last_active sentinel for nodes known from the directory
// that have produced no live status yet. Consumers recognize the leading
// zeros and treat the node as offline regardless of the reference time.
const NeverActive = "0000-00-00T00:00:00Z"

// Snapshot is one normalized view of the whole fleet, produced per poll tick.
type Snapshot struct {
	Now     int64    `json:"now"` // Reference time in milliseconds
	Servers []Server `json:"servers"`
}

// Server is the canonical per-server record. Its ID is a pure function of the
// source node UUID, so the same node keeps the same identity across polls and
// restarts.
type Server struct {
	ID           uint32 `json:"id"`
	Name         string `json:"name"`
	PublicNote   string `json:"public_note"` // Structured note JSON, see the note package
	LastActive   string `json:"last_active"`
	CountryCode  string `json:"country_code"`
	DisplayIndex int    `json:"display_index"`
	Host         Host   `json:"host"`
	State        State  `json:"state"`
}

// Host holds the semi-static hardware facts of a server.
type Host struct {
	Platform        string   `json:"platform"`
	PlatformVersion string   `json:"platform_version"`
	CPU             []string `json:"cpu"`
	GPU             []string `json:"gpu"`
	MemTotal        int64    `json:"mem_total"`
	DiskTotal       int64    `json:"disk_total"`
	SwapTotal       int64    `json:"swap_total"`
	Arch            string   `json:"arch"`
	BootTime        int64    `json:"boot_time"` // Unix seconds
	Version         string   `json:"version"`
}

// State holds the live metrics of a server as of the last status poll.
type State struct {
	CPU            float64       `json:"cpu"`
	MemUsed        int64         `json:"mem_used"`
	SwapUsed       int64         `json:"swap_used"`
	DiskUsed       int64         `json:"disk_used"`
	NetInTransfer  int64         `json:"net_in_transfer"`
	NetOutTransfer int64         `json:"net_out_transfer"`
	NetInSpeed     int64         `json:"net_in_speed"`
	NetOutSpeed    int64         `json:"net_out_speed"`
	Uptime         int64         `json:"uptime"` // Seconds
	Load1          float64       `json:"load_1"`
	Load5          float64       `json:"load_5"`
	Load15         float64       `json:"load_15"`
	TCPConnCount   int           `json:"tcp_conn_count"`
	UDPConnCount   int           `json:"udp_conn_count"`
	ProcessCount   int           `json:"process_count"`
	Temperatures   []Temperature `json:"temperatures"`
	GPU            []float64     `json:"gpu"`
}

// Temperature is a single sensor reading.
type Temperature struct {
	Name        string  `json:"Name"`
	Temperature float64 `json:"Temperature"`
}

// Group is a named set of servers extracted from the directory roster.
type Group struct {
	ID      int      `json:"id"`
	Name    string   `json:"name"`
	Servers []uint32 `json:"servers"`
}

// Monitor is a per-task latency series for one server, time-ascending.
type Monitor struct {
	MonitorID   int       `json:"monitor_id"`
	MonitorName string    `json:"monitor_name"`
	ServerID    uint32    `json:"server_id"`
	ServerName  string    `json:"server_name"`
	CreatedAt   []int64   `json:"created_at"` // Milliseconds
	AvgDelay    []float64 `json:"avg_delay"`
	PacketLoss  []float64 `json:"packet_loss,omitempty"`
}

// Service is the aggregated health of one uptime probe.
type Service struct {
	Name   string  `json:"name"`
	Delay  float64 `json:"delay"`
	Loss   float64 `json:"loss"`
	Avg    float64 `json:"avg"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Status string  `json:"status"` // "up" or "down"
}
