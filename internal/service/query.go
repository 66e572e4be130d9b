package service

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"komari-bridge/internal/billing"
	"komari-bridge/internal/cache"
	"komari-bridge/internal/client/komari"
	"komari-bridge/internal/ident"
	"komari-bridge/internal/model"
)

// Query answers the dashboard's secondary lookups: historical latency series,
// server groups, and uptime-probe aggregates. All lookups translate Komari
// identities to the canonical numeric ids.
type Query struct {
	client    *komari.Client
	directory *cache.Directory
	maxCount  int
	hours     int
	logger    zerolog.Logger
}

// NewQuery creates a Query service.
func NewQuery(client *komari.Client, directory *cache.Directory, maxCount, hours int, logger zerolog.Logger) *Query {
	return &Query{
		client:    client,
		directory: directory,
		maxCount:  maxCount,
		hours:     hours,
		logger:    logger.With().Str("component", "query").Logger(),
	}
}

// Monitors fetches the ping history of one server and reshapes it into
// per-task latency series. An id that matches no known node yields an empty
// result, not an error.
func (q *Query) Monitors(ctx context.Context, serverID uint32) ([]model.Monitor, error) {
	nodes, err := q.directory.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolve server %d: %w", serverID, err)
	}

	var uuid, serverName string
	for i := range nodes {
		if ident.Hash(nodes[i].UUID) == serverID {
			uuid = nodes[i].UUID
			serverName = nodes[i].Name
			break
		}
	}
	if uuid == "" {
		return []model.Monitor{}, nil
	}
	if serverName == "" {
		serverName = strconv.FormatUint(uint64(serverID), 10)
	}

	records, err := q.client.GetRecords(ctx, uuid, "ping", q.maxCount, q.hours)
	if err != nil {
		return nil, err
	}

	series := make(map[int]*model.Monitor)
	for _, task := range records.Tasks {
		series[task.ID] = &model.Monitor{
			MonitorID:   task.ID,
			MonitorName: task.Name,
			ServerID:    serverID,
			ServerName:  serverName,
			CreatedAt:   []int64{},
			AvgDelay:    []float64{},
			PacketLoss:  []float64{task.Loss},
		}
	}

	for _, rec := range records.Records {
		s, ok := series[rec.TaskID]
		if !ok {
			// Flat record arrays carry no task table; create the
			// series on first sight.
			name := rec.Name
			if name == "" {
				name = fmt.Sprintf("task_%d", rec.TaskID)
			}
			s = &model.Monitor{
				MonitorID:   rec.TaskID,
				MonitorName: name,
				ServerID:    serverID,
				ServerName:  serverName,
				CreatedAt:   []int64{},
				AvgDelay:    []float64{},
			}
			series[rec.TaskID] = s
		}

		ts, err := billing.ParseDate(rec.Time)
		if err != nil {
			continue
		}
		if rec.Value == -1 {
			// Failed probes would drag the latency chart to -1ms.
			continue
		}
		s.CreatedAt = append(s.CreatedAt, ts.UnixMilli())
		s.AvgDelay = append(s.AvgDelay, rec.Value)
	}

	monitors := make([]model.Monitor, 0, len(series))
	for _, s := range series {
		sortSeries(s)
		if len(s.AvgDelay) == 0 {
			// Charts cannot render an empty series; pad with a
			// single failure sample.
			if len(s.PacketLoss) == 0 {
				s.PacketLoss = []float64{0}
			}
			s.AvgDelay = []float64{-1}
			s.CreatedAt = []int64{time.Now().UnixMilli()}
		}
		monitors = append(monitors, *s)
	}
	sort.Slice(monitors, func(i, j int) bool { return monitors[i].MonitorID < monitors[j].MonitorID })
	return monitors, nil
}

// sortSeries orders one latency series by sample time ascending.
func sortSeries(s *model.Monitor) {
	type sample struct {
		t int64
		v float64
	}
	zip := make([]sample, len(s.CreatedAt))
	for i := range s.CreatedAt {
		zip[i] = sample{s.CreatedAt[i], s.AvgDelay[i]}
	}
	sort.Slice(zip, func(i, j int) bool { return zip[i].t < zip[j].t })
	for i := range zip {
		s.CreatedAt[i] = zip[i].t
		s.AvgDelay[i] = zip[i].v
	}
}

// Groups extracts the distinct server groups from the directory roster, in
// roster order, with members resolved to canonical ids.
func (q *Query) Groups(ctx context.Context) ([]model.Group, error) {
	nodes, err := q.directory.Get(ctx)
	if err != nil {
		return nil, err
	}

	groups := make([]model.Group, 0)
	index := make(map[string]int)
	for i := range nodes {
		name := nodes[i].Group
		if name == "" {
			continue
		}
		gi, ok := index[name]
		if !ok {
			gi = len(groups)
			index[name] = gi
			groups = append(groups, model.Group{ID: gi, Name: name})
		}
		groups[gi].Servers = append(groups[gi].Servers, ident.Hash(nodes[i].UUID))
	}
	return groups, nil
}

// Services aggregates the uptime probes reported in the latest status
// snapshot, sorted by probe name.
func (q *Query) Services(ctx context.Context) ([]model.Service, error) {
	status, err := q.client.GetNodesLatestStatus(ctx)
	if err != nil {
		return nil, err
	}

	services := make([]model.Service, 0)
	for _, node := range status {
		for _, ping := range node.Ping {
			state := "down"
			if ping.Loss == 0 {
				state = "up"
			}
			services = append(services, model.Service{
				Name:   ping.Name,
				Delay:  ping.Latest,
				Loss:   ping.Loss,
				Avg:    ping.Avg,
				Min:    ping.Min,
				Max:    ping.Max,
				Status: state,
			})
		}
	}
	sort.Slice(services, func(i, j int) bool { return services[i].Name < services[j].Name })
	return services, nil
}
