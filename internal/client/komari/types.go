// Package komari provides a client for the Komari monitoring RPC API.
package komari

import (
	"bytes"
	"encoding/json"
	"sort"
	"strconv"
)

// rpcRequest is the envelope posted to the Komari RPC endpoint.
type rpcRequest struct {
	Method string      `json:"method"`
	Params interface{} `json:"params,omitempty"`
}

// rpcResponse wraps every Komari RPC reply. A non-empty error field means the
// call failed even when the HTTP status is 200.
type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  string          `json:"error"`
}

// Flag is a boolean that tolerates the loose encodings Komari emits:
// true/false, 0/1, and "0"/"1"/"true"/"false".
type Flag bool

// UnmarshalJSON implements json.Unmarshaler.
func (f *Flag) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*f = false
		return nil
	}

	switch data[0] {
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(data, &b); err != nil {
			return err
		}
		*f = Flag(b)
		return nil
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = s == "1" || s == "true"
		return nil
	}

	n, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return err
	}
	*f = n != 0
	return nil
}

// Node is one directory roster entry: the semi-static attributes of a server
// as Komari reports them from common:getNodes.
type Node struct {
	UUID             string  `json:"uuid"`
	Name             string  `json:"name"`
	Group            string  `json:"group"`
	OS               string  `json:"os"`
	KernelVersion    string  `json:"kernel_version"`
	CPUName          string  `json:"cpu_name"`
	GPUName          string  `json:"gpu_name"`
	Arch             string  `json:"arch"`
	MemTotal         int64   `json:"mem_total"`
	SwapTotal        int64   `json:"swap_total"`
	DiskTotal        int64   `json:"disk_total"`
	Region           string  `json:"region"` // Flag emoji or country code
	Weight           int     `json:"weight"`
	Price            float64 `json:"price"`         // -1 means free/unmetered
	BillingCycle     int     `json:"billing_cycle"` // Days; -1 means one-time
	AutoRenewal      Flag    `json:"auto_renewal"`
	Currency         string  `json:"currency"`
	CreatedAt        string  `json:"created_at"`
	ExpiredAt        string  `json:"expired_at"`
	TrafficLimit     int64   `json:"traffic_limit"`
	TrafficLimitType string  `json:"traffic_limit_type"`
	PublicRemark     string  `json:"public_remark"`
	Tags             string  `json:"tags"` // ";"-separated, may carry <色> color markup
	IPv4             Flag    `json:"ipv4"`
	IPv6             Flag    `json:"ipv6"`
}

// Status is one node's latest live metrics from common:getNodesLatestStatus.
// Entries absent from a poll mean the node produced no fresh data this tick.
type Status struct {
	Name           string              `json:"name"`
	Time           string              `json:"time"` // Observation timestamp
	CPU            float64             `json:"cpu"`
	RAM            int64               `json:"ram"`
	RAMTotal       int64               `json:"ram_total"`
	Swap           int64               `json:"swap"`
	SwapTotal      int64               `json:"swap_total"`
	Disk           int64               `json:"disk"`
	DiskTotal      int64               `json:"disk_total"`
	NetIn          int64               `json:"net_in"`  // Instantaneous speed, bytes/s
	NetOut         int64               `json:"net_out"` // Instantaneous speed, bytes/s
	NetTotalUp     int64               `json:"net_total_up"`
	NetTotalDown   int64               `json:"net_total_down"`
	Uptime         int64               `json:"uptime"` // Seconds
	Load           float64             `json:"load"`
	Load5          float64             `json:"load5"`
	Load15         float64             `json:"load15"`
	Connections    int                 `json:"connections"`
	ConnectionsUDP int                 `json:"connections_udp"`
	Process        int                 `json:"process"`
	Temp           float64             `json:"temp"`
	GPU            *float64            `json:"gpu"` // Aggregate GPU usage; absent on GPU-less nodes
	OS             string              `json:"os"`
	KernelVersion  string              `json:"kernel_version"`
	CPUName        string              `json:"cpu_name"`
	GPUName        string              `json:"gpu_name"`
	Arch           string              `json:"arch"`
	Region         string              `json:"region"`
	Ping           map[string]PingStat `json:"ping,omitempty"`
}

// PingStat is the aggregated state of one uptime probe on a node.
type PingStat struct {
	Name   string  `json:"name"`
	Latest float64 `json:"latest"`
	Loss   float64 `json:"loss"`
	Avg    float64 `json:"avg"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
}

// RecordSet is the reply of common:getRecords: probe task definitions plus
// raw samples keyed back to tasks by id.
type RecordSet struct {
	Tasks   []RecordTask `json:"tasks"`
	Records []Record     `json:"records"`
}

// RecordTask describes one probe task.
type RecordTask struct {
	ID   int     `json:"id"`
	Name string  `json:"name"`
	Loss float64 `json:"loss"`
}

// UnmarshalJSON accepts both reply shapes of common:getRecords: the full
// {tasks, records} object and a bare records array.
func (r *RecordSet) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		return json.Unmarshal(trimmed, &r.Records)
	}

	type alias RecordSet
	var a alias
	if err := json.Unmarshal(trimmed, &a); err != nil {
		return err
	}
	*r = RecordSet(a)
	return nil
}

// Record is a single probe sample. A value of -1 marks a failed probe.
type Record struct {
	TaskID int     `json:"task_id"`
	Time   string  `json:"time"`
	Value  float64 `json:"value"`
	Name   string  `json:"name,omitempty"`
}

// Me is the reply of common:getMe.
type Me struct {
	UUID     string `json:"uuid"`
	Username string `json:"username"`
	LoggedIn bool   `json:"logged_in"`
}

// PublicInfo is the reply of common:getPublicInfo.
type PublicInfo struct {
	SiteName   string `json:"sitename"`
	CustomHead string `json:"custom_head"`
}

// VersionInfo is the reply of common:getVersion.
type VersionInfo struct {
	Version string `json:"version"`
	Hash    string `json:"hash"`
}

// decodeNodes accepts both encodings of the roster: a plain array, or an
// object keyed by UUID. Map-shaped rosters are sorted by descending weight
// (name as tiebreak) so the directory order is deterministic.
func decodeNodes(raw json.RawMessage) ([]Node, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || string(trimmed) == "null" {
		return nil, nil
	}

	if trimmed[0] == '[' {
		var nodes []Node
		if err := json.Unmarshal(trimmed, &nodes); err != nil {
			return nil, err
		}
		return nodes, nil
	}

	var byUUID map[string]Node
	if err := json.Unmarshal(trimmed, &byUUID); err != nil {
		return nil, err
	}

	nodes := make([]Node, 0, len(byUUID))
	for uuid, node := range byUUID {
		if node.UUID == "" {
			node.UUID = uuid
		}
		nodes = append(nodes, node)
	}
	sort.Slice(nodes, func(i, j int) bool {
		if nodes[i].Weight != nodes[j].Weight {
			return nodes[i].Weight > nodes[j].Weight
		}
		return nodes[i].Name < nodes[j].Name
	})
	return nodes, nil
}
