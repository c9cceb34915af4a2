package metrics

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

const servicePrefix = "platform-infra-"

var (
	byteSizePattern = regexp.MustCompile(`^([0-9]*\.?[0-9]+)\s*([A-Za-z]+)?$`)
	replicaSuffix   = regexp.MustCompile(`-\d+$`)
)

var byteUnits = map[string]float64{
	"b":   1,
	"kib": 1 << 10,
	"mib": 1 << 20,
	"gib": 1 << 30,
	"tib": 1 << 40,
	"pib": 1 << 50,
	"kb":  1e3,
	"mb":  1e6,
	"gb":  1e9,
	"tb":  1e12,
	"pb":  1e15,
}

// ParsePercent parses text like "12.34%". Anything unparseable is 0.
func ParsePercent(raw string) float64 {
	text := strings.TrimSpace(strings.TrimRight(strings.TrimSpace(raw), "%"))
	v, err := strconv.ParseFloat(text, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// ParseBytes parses "<number><unit>" sizes such as "512MiB" or "1.5GB".
// Unknown units count as bytes; text that is not a size is 0. Sizes beyond
// the int64 range saturate at math.MaxInt64.
func ParseBytes(raw string) int64 {
	match := byteSizePattern.FindStringSubmatch(strings.TrimSpace(raw))
	if match == nil {
		return 0
	}
	value, err := strconv.ParseFloat(match[1], 64)
	if err != nil {
		return 0
	}

	multiplier, ok := byteUnits[strings.ToLower(match[2])]
	if !ok {
		multiplier = 1
	}
	size := value * multiplier
	if size >= math.MaxInt64 {
		return math.MaxInt64
	}
	return int64(size)
}

// NormalizeServiceName maps a container name to its logical service name,
// e.g. "platform-infra-worker-3" becomes "worker". Replicas collapse.
func NormalizeServiceName(containerName string) string {
	name := strings.ReplaceAll(strings.TrimSpace(containerName), "_", "-")
	name = strings.TrimPrefix(name, servicePrefix)
	return replicaSuffix.ReplaceAllString(name, "")
}

func clampPercent(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(0, math.Min(100, v))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
