package metrics

type Payload struct {
	Host       string            `json:"host"`
	Timestamp  string            `json:"timestamp"`
	Metrics    HostPayload       `json:"metrics"`
	Containers []ContainerRecord `json:"containers"`
}

// HostPayload carries byte counts as floats on the wire.
type HostPayload struct {
	CPUPercent    float64 `json:"cpu_percent"`
	MemoryBytes   float64 `json:"memory_bytes"`
	MemoryPercent float64 `json:"memory_percent"`
	DiskBytes     float64 `json:"disk_bytes"`
	DiskPercent   float64 `json:"disk_percent"`
}

type ContainerRecord struct {
	Name          string  `json:"name"`
	CPUPercent    float64 `json:"cpu_percent"`
	MemoryBytes   int64   `json:"memory_bytes"`
	MemoryPercent float64 `json:"memory_percent"`
}

// Source readings

// TotalsSample is a cumulative CPU counter reading. Only the difference
// between two samples is meaningful.
type TotalsSample struct {
	Idle  float64
	Total float64
}

type MemoryTotals struct {
	TotalKiB     int64
	AvailableKiB int64
}

type DiskTotals struct {
	TotalBytes int64
	UsedBytes  int64
}

type UtilizationSnapshot struct {
	UsedBytes int64
	Percent   float64
}
