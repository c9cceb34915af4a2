package metrics

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os/exec"
	"strings"
)

const dockerStatsFormat = "{{.Name}}|{{.CPUPerc}}|{{.MemUsage}}|{{.MemPerc}}"

// ErrRuntimeUnavailable is returned when the container runtime CLI is not
// installed.
var ErrRuntimeUnavailable = errors.New("container runtime not found")

type ContainerStatsSource interface {
	ContainerStats(ctx context.Context) ([]string, error)
}

// DockerStats runs "docker stats --no-stream" once.
type DockerStats struct {
	Binary string
}

func (d DockerStats) ContainerStats(ctx context.Context) ([]string, error) {
	binary := d.Binary
	if binary == "" {
		binary = "docker"
	}

	cmd := exec.CommandContext(ctx, binary, "stats", "--no-stream", "--format", dockerStatsFormat)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrRuntimeUnavailable, binary)
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil, fmt.Errorf("docker stats exited with %d: %s", exitErr.ExitCode(), strings.TrimSpace(stderr.String()))
		}
		return nil, fmt.Errorf("docker stats: %w", err)
	}

	var rows []string
	scanner := bufio.NewScanner(&stdout)
	for scanner.Scan() {
		rows = append(rows, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read docker stats output: %w", err)
	}
	return rows, nil
}

// NormalizeContainerRows converts "name|cpu%|used/limit|mem%" rows into
// records, in input order. Blank rows and rows with fewer than four fields
// are dropped; fields that fail to parse become zero.
func NormalizeContainerRows(rows []string) []ContainerRecord {
	records := make([]ContainerRecord, 0, len(rows))
	for _, row := range rows {
		if strings.TrimSpace(row) == "" {
			continue
		}

		parts := strings.SplitN(row, "|", 4)
		if len(parts) != 4 {
			continue
		}

		usedRaw, _, _ := strings.Cut(parts[2], "/")
		records = append(records, ContainerRecord{
			Name:          NormalizeServiceName(parts[0]),
			CPUPercent:    round2(clampPercent(ParsePercent(parts[1]))),
			MemoryBytes:   ParseBytes(usedRaw),
			MemoryPercent: round2(clampPercent(ParsePercent(parts[3]))),
		})
	}
	return records
}
