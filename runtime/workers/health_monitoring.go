package workers

import (
	"context"
	"log/slog"
	"match-chat/observability"
	"os"
	goruntime "runtime"
	"time"

	"github.com/shirou/gopsutil/process"
)

type connectionStats interface {
	Stats() (users, connections int)
}

type roomStats interface {
	Count() int
}

// HealthReport is what HealthMonitoringWorker logs on every tick.
type HealthReport struct {
	Gateway     observability.GatewayStats
	Users       int
	Connections int
	Rooms       int
	Goroutines  int
	CPUPercent  float64
	RSSBytes    uint64
}

// HealthMonitoringWorker periodically logs the gateway counters, the registry sizes
// and the resource usage of the current process.
type HealthMonitoringWorker struct {
	log            *slog.Logger
	monitoring     *observability.Monitoring
	connections    connectionStats
	rooms          roomStats
	metricInterval time.Duration
}

func NewHealthMonitoringWorker(
	log *slog.Logger,
	monitoring *observability.Monitoring,
	connections connectionStats,
	rooms roomStats,
	metricInterval time.Duration,
) *HealthMonitoringWorker {
	return &HealthMonitoringWorker{
		log:            log,
		monitoring:     monitoring,
		connections:    connections,
		rooms:          rooms,
		metricInterval: metricInterval,
	}
}

func (w *HealthMonitoringWorker) Run(ctx context.Context) error {
	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return err
	}
	ticker := time.NewTicker(w.metricInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Context done, stopping health monitoring")
			return nil
		case <-ticker.C:
			report := w.Collect(p)
			w.log.Info("Health",
				"users", report.Users,
				"connections", report.Connections,
				"rooms", report.Rooms,
				"goroutines", report.Goroutines,
				"cpu", report.CPUPercent,
				"rss", report.RSSBytes,
				"accepted", report.Gateway.ConnectionsAccepted,
				"rejected", report.Gateway.ConnectionsRejected,
				"dropped_frames", report.Gateway.FramesDropped,
				"sent", report.Gateway.EventsSent,
				"send_failures", report.Gateway.SendFailures,
			)
		}
	}
}

// Collect builds a report. Process metrics are left at zero when p is nil or unreadable.
func (w *HealthMonitoringWorker) Collect(p *process.Process) HealthReport {
	report := HealthReport{
		Gateway:    w.monitoring.Snapshot(),
		Goroutines: goruntime.NumGoroutine(),
	}
	if w.connections != nil {
		report.Users, report.Connections = w.connections.Stats()
	}
	if w.rooms != nil {
		report.Rooms = w.rooms.Count()
	}
	if p == nil {
		return report
	}
	if cpu, err := p.CPUPercent(); err == nil {
		report.CPUPercent = cpu
	} else {
		w.log.Debug("Error while finding process cpu usage", "err", err)
	}
	if mem, err := p.MemoryInfo(); err == nil && mem != nil {
		report.RSSBytes = mem.RSS
	} else {
		w.log.Debug("Error while finding process ram usage", "err", err)
	}
	return report
}
