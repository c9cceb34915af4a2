package metrics

import (
	"context"

	"github.com/shirou/gopsutil/v3/disk"
)

type DiskSource interface {
	DiskTotals(ctx context.Context) (DiskTotals, error)
}

// FilesystemUsage queries the filesystem mounted at Path.
type FilesystemUsage struct {
	Path string
}

func (f FilesystemUsage) DiskTotals(ctx context.Context) (DiskTotals, error) {
	usage, err := disk.UsageWithContext(ctx, f.Path)
	if err != nil {
		return DiskTotals{}, err
	}
	return DiskTotals{
		TotalBytes: clampInt64(usage.Total),
		UsedBytes:  clampInt64(usage.Used),
	}, nil
}

func DiskSnapshot(t DiskTotals) UtilizationSnapshot {
	if t.TotalBytes <= 0 {
		return UtilizationSnapshot{}
	}
	used := t.UsedBytes
	if used < 0 {
		used = 0
	}
	return UtilizationSnapshot{
		UsedBytes: used,
		Percent:   clampPercent(float64(used) / float64(t.TotalBytes) * 100.0),
	}
}

func clampInt64(v uint64) int64 {
	const maxInt64 = 1<<63 - 1
	if v > maxInt64 {
		return maxInt64
	}
	return int64(v)
}
