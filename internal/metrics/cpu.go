package metrics

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// FormatError reports a CPU counter source whose shape cannot be trusted.
type FormatError struct {
	Source string
	Reason string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("unexpected %s format: %s", e.Source, e.Reason)
}

type CPUTotalsSource interface {
	CPUTotals(ctx context.Context) (TotalsSample, error)
}

// SleepFunc blocks for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// ProcStat reads the aggregate cpu line of <root>/stat.
type ProcStat struct {
	Root string
}

func (p ProcStat) CPUTotals(ctx context.Context) (TotalsSample, error) {
	path := filepath.Join(p.Root, "stat")
	f, err := os.Open(path)
	if err != nil {
		return TotalsSample{}, err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return TotalsSample{}, fmt.Errorf("read %s: %w", path, err)
		}
		return TotalsSample{}, &FormatError{Source: path, Reason: "empty file"}
	}

	sample, err := ParseCPUTotals(scanner.Text())
	if err != nil {
		if fe, ok := err.(*FormatError); ok {
			fe.Source = path
		}
		return TotalsSample{}, err
	}
	return sample, nil
}

// ParseCPUTotals parses a "cpu user nice system idle [iowait ...]" line.
// Idle includes iowait when present; total is the sum of every field.
func ParseCPUTotals(line string) (TotalsSample, error) {
	parts := strings.Fields(strings.TrimSpace(line))
	if len(parts) == 0 || parts[0] != "cpu" {
		return TotalsSample{}, &FormatError{Source: "stat", Reason: "missing aggregate cpu line"}
	}
	if len(parts) < 5 {
		return TotalsSample{}, &FormatError{Source: "stat", Reason: fmt.Sprintf("cpu line has %d fields", len(parts)-1)}
	}

	values := make([]float64, 0, len(parts)-1)
	for _, raw := range parts[1:] {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return TotalsSample{}, &FormatError{Source: "stat", Reason: fmt.Sprintf("invalid counter %q", raw)}
		}
		values = append(values, v)
	}

	idle := values[3]
	if len(values) > 4 {
		idle += values[4]
	}
	var total float64
	for _, v := range values {
		total += v
	}
	return TotalsSample{Idle: idle, Total: total}, nil
}

// BusyPercent derives the busy share between two samples. A non-positive
// total delta yields 0.
func BusyPercent(a, b TotalsSample) float64 {
	totalDelta := b.Total - a.Total
	idleDelta := b.Idle - a.Idle
	if totalDelta <= 0 {
		return 0
	}
	busy := 1.0 - idleDelta/totalDelta
	return clampPercent(busy * 100.0)
}

// SampleCPUPercent takes two readings separated by wait and returns the busy
// percentage over that window.
func SampleCPUPercent(ctx context.Context, src CPUTotalsSource, wait time.Duration, sleep SleepFunc) (float64, error) {
	if sleep == nil {
		sleep = ContextSleep
	}

	first, err := src.CPUTotals(ctx)
	if err != nil {
		return 0, err
	}
	if err := sleep(ctx, wait); err != nil {
		return 0, err
	}
	second, err := src.CPUTotals(ctx)
	if err != nil {
		return 0, err
	}
	return BusyPercent(first, second), nil
}

func ContextSleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
