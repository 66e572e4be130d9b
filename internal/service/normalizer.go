// Package service adapts Komari-shaped monitoring data into the canonical
// server model and runs the polling loop that keeps it fresh.
package service

import (
	"context"
	"sort"

	"github.com/rs/zerolog"

	"komari-bridge/internal/billing"
	"komari-bridge/internal/cache"
	"komari-bridge/internal/client/komari"
	"komari-bridge/internal/ident"
	"komari-bridge/internal/model"
	"komari-bridge/internal/note"
)

// Normalizer merges the directory roster with a live status snapshot into
// canonical server records.
type Normalizer struct {
	directory *cache.Directory
	logger    zerolog.Logger
}

// NewNormalizer creates a Normalizer backed by the given directory cache.
func NewNormalizer(directory *cache.Directory, logger zerolog.Logger) *Normalizer {
	return &Normalizer{
		directory: directory,
		logger:    logger.With().Str("component", "normalizer").Logger(),
	}
}

// Merge reconciles one live status snapshot with the node directory.
//
// Every known node appears in the output: nodes with fresh status carry their
// live metrics, nodes absent from the snapshot get a zeroed state and the
// "never active" timestamp, and nodes present only in the snapshot are
// appended with best-effort host facts. When the directory is unavailable the
// merge degrades to snapshot-only records rather than blocking the dashboard.
//
// Ordering is directory order first, then the leftover live-only nodes; the
// merge does not re-sort beyond that.
func (n *Normalizer) Merge(ctx context.Context, live map[string]komari.Status) []model.Server {
	nodes, err := n.directory.Get(ctx)
	if err != nil {
		n.logger.Warn().Err(err).Msg("directory unavailable, merging from live status only")
		nodes = nil
	}

	// Phase 1: directory nodes, matched against the snapshot.
	servers := make([]model.Server, 0, len(nodes)+len(live))
	matched := make(map[string]bool, len(nodes))
	for i := range nodes {
		node := &nodes[i]
		var status *komari.Status
		if s, ok := live[node.UUID]; ok {
			status = &s
			matched[node.UUID] = true
		}
		servers = append(servers, n.fromNode(node, status))
	}

	// Phase 2: live-only nodes the directory has never heard of. They are
	// still shown, just without roster-backed host facts or a note.
	leftover := make([]string, 0, len(live))
	for uuid := range live {
		if !matched[uuid] {
			leftover = append(leftover, uuid)
		}
	}
	sort.Strings(leftover)
	for _, uuid := range leftover {
		status := live[uuid]
		servers = append(servers, n.fromStatus(uuid, &status))
	}

	return servers
}

// fromNode builds a canonical record for a directory node, with live metrics
// when a status entry is present.
func (n *Normalizer) fromNode(node *komari.Node, status *komari.Status) model.Server {
	server := model.Server{
		ID:           ident.Hash(node.UUID),
		Name:         node.Name,
		PublicNote:   note.BuildFromNode(node, node.PublicRemark),
		LastActive:   model.NeverActive,
		CountryCode:  model.CountryCode(node.Region),
		DisplayIndex: -node.Weight,
		Host: model.Host{
			Platform:        node.OS,
			PlatformVersion: node.KernelVersion,
			CPU:             nonEmpty(node.CPUName),
			GPU:             nonEmpty(node.GPUName),
			MemTotal:        node.MemTotal,
			DiskTotal:       node.DiskTotal,
			SwapTotal:       node.SwapTotal,
			Arch:            node.Arch,
		},
	}

	if status == nil {
		// Known but silent: zeroed metrics, never dropped.
		server.State.Temperatures = []model.Temperature{}
		server.State.GPU = []float64{}
		return server
	}

	server.LastActive = status.Time
	server.Host.BootTime = bootTime(status)
	server.State = stateFrom(status)
	if node.GPUName == "" {
		// Without a known GPU the usage sample is meaningless.
		server.State.GPU = []float64{}
	}
	return server
}

// fromStatus builds a canonical record for a node seen only in the live
// snapshot. Host facts come from the status itself, the note stays empty.
func (n *Normalizer) fromStatus(uuid string, status *komari.Status) model.Server {
	name := status.Name
	if name == "" {
		name = uuid
	}

	return model.Server{
		ID:          ident.Hash(uuid),
		Name:        name,
		LastActive:  status.Time,
		CountryCode: model.CountryCode(status.Region),
		Host: model.Host{
			Platform:        status.OS,
			PlatformVersion: status.KernelVersion,
			CPU:             nonEmpty(status.CPUName),
			GPU:             nonEmpty(status.GPUName),
			MemTotal:        status.RAMTotal,
			DiskTotal:       status.DiskTotal,
			SwapTotal:       status.SwapTotal,
			Arch:            status.Arch,
			BootTime:        bootTime(status),
		},
		State: stateFrom(status),
	}
}

// stateFrom maps a live status entry onto the canonical state block.
func stateFrom(status *komari.Status) model.State {
	state := model.State{
		CPU:            status.CPU,
		MemUsed:        status.RAM,
		SwapUsed:       status.Swap,
		DiskUsed:       status.Disk,
		NetInTransfer:  status.NetTotalDown,
		NetOutTransfer: status.NetTotalUp,
		NetInSpeed:     status.NetIn,
		NetOutSpeed:    status.NetOut,
		Uptime:         status.Uptime,
		Load1:          status.Load,
		Load5:          status.Load5,
		Load15:         status.Load15,
		TCPConnCount:   status.Connections,
		UDPConnCount:   status.ConnectionsUDP,
		ProcessCount:   status.Process,
		Temperatures:   []model.Temperature{},
		GPU:            []float64{},
	}
	if status.Temp > 0 {
		state.Temperatures = []model.Temperature{{Name: "CPU", Temperature: status.Temp}}
	}
	if status.GPU != nil {
		state.GPU = []float64{*status.GPU}
	}
	return state
}

// bootTime derives the boot timestamp from the observation time minus uptime.
// Returns 0 when the observation timestamp does not parse.
func bootTime(status *komari.Status) int64 {
	observed, err := billing.ParseDate(status.Time)
	if err != nil {
		return 0
	}
	return observed.Unix() - status.Uptime
}

func nonEmpty(s string) []string {
	if s == "" {
		return []string{}
	}
	return []string{s}
}
