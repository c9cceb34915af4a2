package metrics

import (
	"bufio"
	"context"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

type MemorySource interface {
	MemoryTotals(ctx context.Context) (MemoryTotals, error)
}

// ProcMeminfo reads MemTotal and MemAvailable from <root>/meminfo.
type ProcMeminfo struct {
	Root string
}

func (p ProcMeminfo) MemoryTotals(ctx context.Context) (MemoryTotals, error) {
	f, err := os.Open(filepath.Join(p.Root, "meminfo"))
	if err != nil {
		return MemoryTotals{}, err
	}
	defer f.Close()

	return ParseMeminfo(f)
}

// ParseMeminfo reads "Key: value kB" lines. Absent keys default to 0 and
// unparseable lines are skipped.
func ParseMeminfo(r io.Reader) (MemoryTotals, error) {
	valuesKiB := map[string]int64{}
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		key, raw, ok := strings.Cut(scanner.Text(), ":")
		if !ok {
			continue
		}
		fields := strings.Fields(raw)
		if len(fields) < 1 {
			continue
		}
		value, err := strconv.ParseInt(fields[0], 10, 64)
		if err != nil {
			continue
		}
		valuesKiB[strings.TrimSpace(key)] = value
	}
	if err := scanner.Err(); err != nil {
		return MemoryTotals{}, err
	}

	return MemoryTotals{
		TotalKiB:     valuesKiB["MemTotal"],
		AvailableKiB: valuesKiB["MemAvailable"],
	}, nil
}

func MemorySnapshot(t MemoryTotals) UtilizationSnapshot {
	if t.TotalKiB <= 0 {
		return UtilizationSnapshot{}
	}
	usedKiB := t.TotalKiB - t.AvailableKiB
	if usedKiB < 0 {
		usedKiB = 0
	}
	return UtilizationSnapshot{
		UsedBytes: usedKiB * 1024,
		Percent:   clampPercent(float64(usedKiB) / float64(t.TotalKiB) * 100.0),
	}
}
