package metrics

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"testing"
	"time"
)

type fakeMemory struct {
	totals MemoryTotals
	err    error
}

func (f fakeMemory) MemoryTotals(ctx context.Context) (MemoryTotals, error) { return f.totals, f.err }

type fakeDisk struct {
	totals DiskTotals
	err    error
}

func (f fakeDisk) DiskTotals(ctx context.Context) (DiskTotals, error) { return f.totals, f.err }

type fakeContainers struct {
	rows []string
	err  error
}

func (f fakeContainers) ContainerStats(ctx context.Context) ([]string, error) { return f.rows, f.err }

type failingCPU struct{}

func (failingCPU) CPUTotals(ctx context.Context) (TotalsSample, error) {
	return TotalsSample{}, &FormatError{Source: "stat", Reason: "cpu line has 2 fields"}
}

func newTestCollector(logs *bytes.Buffer) *Collector {
	return &Collector{
		CPU: &totalsSequence{samples: []TotalsSample{
			{Idle: 0, Total: 0},
			{Idle: 2, Total: 3},
		}},
		Memory:     fakeMemory{totals: MemoryTotals{TotalKiB: 3, AvailableKiB: 1}},
		Disk:       fakeDisk{totals: DiskTotals{TotalBytes: 1000, UsedBytes: 250}},
		Containers: fakeContainers{rows: []string{"platform-infra-api-1|3.5%|10MiB / 1GiB|0.98%"}},
		SampleWait: 200 * time.Millisecond,
		Sleep:      func(ctx context.Context, d time.Duration) error { return nil },
		Now:        func() time.Time { return time.Date(2024, 5, 6, 7, 8, 9, 123456000, time.FixedZone("X", 3600)) },
		Logger:     slog.New(slog.NewTextHandler(logs, nil)),
	}
}

func TestCollectAssemblesPayload(t *testing.T) {
	var logs bytes.Buffer
	payload, err := newTestCollector(&logs).Collect(context.Background(), "platform")
	if err != nil {
		t.Fatalf("Collect() error: %v", err)
	}

	if payload.Host != "platform" {
		t.Errorf("Host = %q", payload.Host)
	}
	if payload.Timestamp != "2024-05-06T06:08:09.123456Z" {
		t.Errorf("Timestamp = %q", payload.Timestamp)
	}
	want := HostPayload{
		CPUPercent:    33.33,
		MemoryBytes:   2048,
		MemoryPercent: 66.67,
		DiskBytes:     250,
		DiskPercent:   25,
	}
	if payload.Metrics != want {
		t.Errorf("Metrics = %+v, want %+v", payload.Metrics, want)
	}
	if len(payload.Containers) != 1 || payload.Containers[0].Name != "api" {
		t.Errorf("Containers = %+v", payload.Containers)
	}
	if logs.Len() != 0 {
		t.Errorf("unexpected logs: %s", logs.String())
	}
}

func TestCollectDegradesOnSourceFailures(t *testing.T) {
	var logs bytes.Buffer
	c := newTestCollector(&logs)
	c.Memory = fakeMemory{err: errors.New("no meminfo")}
	c.Disk = fakeDisk{err: errors.New("statfs failed")}
	c.Containers = fakeContainers{err: fmt.Errorf("%w: docker", ErrRuntimeUnavailable)}

	payload, err := c.Collect(context.Background(), "h")
	if err != nil {
		t.Fatalf("Collect() error: %v", err)
	}
	if payload.Metrics.MemoryBytes != 0 || payload.Metrics.MemoryPercent != 0 {
		t.Errorf("memory = %+v", payload.Metrics)
	}
	if payload.Metrics.DiskBytes != 0 || payload.Metrics.DiskPercent != 0 {
		t.Errorf("disk = %+v", payload.Metrics)
	}
	if payload.Containers == nil || len(payload.Containers) != 0 {
		t.Errorf("Containers = %#v, want empty", payload.Containers)
	}
	for _, msg := range []string{"memory collection failed", "disk collection failed", "docker not found"} {
		if !strings.Contains(logs.String(), msg) {
			t.Errorf("logs missing %q: %s", msg, logs.String())
		}
	}

	encoded, err := json.Marshal(payload)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(encoded), `"containers":[]`) {
		t.Errorf("containers not encoded as empty array: %s", encoded)
	}
}

func TestCollectDockerFailureIsNotFatal(t *testing.T) {
	var logs bytes.Buffer
	c := newTestCollector(&logs)
	c.Containers = fakeContainers{err: errors.New("docker stats exited with 1: daemon down")}

	payload, err := c.Collect(context.Background(), "h")
	if err != nil {
		t.Fatalf("Collect() error: %v", err)
	}
	if len(payload.Containers) != 0 {
		t.Errorf("Containers = %+v", payload.Containers)
	}
	if !strings.Contains(logs.String(), "docker stats failed") {
		t.Errorf("logs = %s", logs.String())
	}
}

func TestCollectCPUFormatErrorIsFatal(t *testing.T) {
	var logs bytes.Buffer
	c := newTestCollector(&logs)
	c.CPU = failingCPU{}

	_, err := c.Collect(context.Background(), "h")
	var fe *FormatError
	if !errors.As(err, &fe) {
		t.Fatalf("error = %v, want FormatError", err)
	}
}

func TestPayloadWireShape(t *testing.T) {
	var logs bytes.Buffer
	payload, err := newTestCollector(&logs).Collect(context.Background(), "platform")
	if err != nil {
		t.Fatal(err)
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		t.Fatal(err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(encoded, &decoded); err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{"host", "timestamp", "metrics", "containers"} {
		if _, ok := decoded[key]; !ok {
			t.Errorf("payload missing %q: %s", key, encoded)
		}
	}
	metrics := decoded["metrics"].(map[string]any)
	for _, key := range []string{"cpu_percent", "memory_bytes", "memory_percent", "disk_bytes", "disk_percent"} {
		if _, ok := metrics[key]; !ok {
			t.Errorf("metrics missing %q", key)
		}
	}
	container := decoded["containers"].([]any)[0].(map[string]any)
	if container["memory_bytes"] != float64(10*1024*1024) {
		t.Errorf("container memory_bytes = %v", container["memory_bytes"])
	}
}
