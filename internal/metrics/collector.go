package metrics

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// TimestampLayout is ISO-8601 UTC with a literal Z suffix.
const TimestampLayout = "2006-01-02T15:04:05.000000Z"

type Collector struct {
	CPU        CPUTotalsSource
	Memory     MemorySource
	Disk       DiskSource
	Containers ContainerStatsSource

	SampleWait time.Duration
	Sleep      SleepFunc
	Now        func() time.Time
	Logger     *slog.Logger
}

type Options struct {
	ProcRoot   string
	DiskPath   string
	DockerBin  string
	SampleWait time.Duration
	Logger     *slog.Logger
}

// NewCollector wires the host sources: /proc counters, the filesystem at
// DiskPath and the docker CLI.
func NewCollector(opts Options) *Collector {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Collector{
		CPU:        ProcStat{Root: opts.ProcRoot},
		Memory:     ProcMeminfo{Root: opts.ProcRoot},
		Disk:       FilesystemUsage{Path: opts.DiskPath},
		Containers: DockerStats{Binary: opts.DockerBin},
		SampleWait: opts.SampleWait,
		Sleep:      ContextSleep,
		Now:        time.Now,
		Logger:     logger,
	}
}

// Collect samples every source once and assembles the payload. Only CPU
// counter failures are returned; memory, disk and container failures are
// logged and reported as zero values.
func (c *Collector) Collect(ctx context.Context, host string) (*Payload, error) {
	now := time.Now
	if c.Now != nil {
		now = c.Now
	}
	logger := c.logger()

	cpuPercent, err := SampleCPUPercent(ctx, c.CPU, c.SampleWait, c.Sleep)
	if err != nil {
		return nil, err
	}

	var memory UtilizationSnapshot
	if totals, err := c.Memory.MemoryTotals(ctx); err != nil {
		logger.Warn("memory collection failed", "error", err)
	} else {
		memory = MemorySnapshot(totals)
	}

	var diskSnap UtilizationSnapshot
	if totals, err := c.Disk.DiskTotals(ctx); err != nil {
		logger.Warn("disk collection failed", "error", err)
	} else {
		diskSnap = DiskSnapshot(totals)
	}

	return &Payload{
		Host:      host,
		Timestamp: now().UTC().Format(TimestampLayout),
		Metrics: HostPayload{
			CPUPercent:    round2(cpuPercent),
			MemoryBytes:   float64(memory.UsedBytes),
			MemoryPercent: round2(memory.Percent),
			DiskBytes:     float64(diskSnap.UsedBytes),
			DiskPercent:   round2(diskSnap.Percent),
		},
		Containers: c.collectContainers(ctx),
	}, nil
}

func (c *Collector) collectContainers(ctx context.Context) []ContainerRecord {
	if c.Containers == nil {
		return []ContainerRecord{}
	}

	rows, err := c.Containers.ContainerStats(ctx)
	if err != nil {
		if errors.Is(err, ErrRuntimeUnavailable) {
			c.logger().Warn("docker not found; skipping container metrics", "error", err)
		} else {
			c.logger().Warn("docker stats failed; skipping container metrics", "error", err)
		}
		return []ContainerRecord{}
	}
	return NormalizeContainerRows(rows)
}

func (c *Collector) logger() *slog.Logger {
	if c.Logger == nil {
		return slog.Default()
	}
	return c.Logger
}
