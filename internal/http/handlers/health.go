// Package handlers provides the status API handlers.
package handlers

import (
	"context"
	"os"
	"runtime"
	"sort"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/shirou/gopsutil/v4/load"
	"github.com/shirou/gopsutil/v4/mem"
	"github.com/shirou/gopsutil/v4/process"

	"github.com/discoursekg/discoursekg/internal/graph"
	"github.com/discoursekg/discoursekg/pkg/fetch"
)

const graphPingTimeout = 5 * time.Second

// HealthHandler handles the health check endpoint.
type HealthHandler struct {
	version   string
	startTime time.Time
	fetcher   *fetch.Client
	store     graph.Store
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(version string) *HealthHandler {
	return &HealthHandler{
		version:   version,
		startTime: time.Now(),
	}
}

// WithFetchClient wires the fetch client whose circuit breakers are
// reported.
func (h *HealthHandler) WithFetchClient(client *fetch.Client) *HealthHandler {
	h.fetcher = client
	return h
}

// WithGraphStore wires the graph store checked for reachability.
func (h *HealthHandler) WithGraphStore(store graph.Store) *HealthHandler {
	h.store = store
	return h
}

// CPUInfo reports load averages relative to core count.
type CPUInfo struct {
	Cores              int     `json:"cores"`
	Load1Min           float64 `json:"load_1min"`
	Load5Min           float64 `json:"load_5min"`
	Load15Min          float64 `json:"load_15min"`
	LoadPercentage1Min float64 `json:"load_percentage_1min"`
}

// MemoryInfo reports system and process memory usage.
type MemoryInfo struct {
	TotalMemoryMB     float64 `json:"total_memory_mb"`
	UsedMemoryMB      float64 `json:"used_memory_mb"`
	AvailableMemoryMB float64 `json:"available_memory_mb"`
	ProcessMemoryMB   float64 `json:"process_memory_mb"`
}

// BreakerStatus is one circuit breaker's state keyed by host.
type BreakerStatus struct {
	Host          string `json:"host"`
	State         string `json:"state"`
	Failures      int    `json:"failures"`
	TotalRequests int64  `json:"total_requests"`
	TotalFailures int64  `json:"total_failures"`
}

// GraphHealth reports graph store reachability.
type GraphHealth struct {
	Status         string  `json:"status"`
	ResponseTimeMS float64 `json:"response_time_ms,omitempty"`
	Error          string  `json:"error,omitempty"`
}

// HealthResponse is the health check response body.
type HealthResponse struct {
	Status          string          `json:"status"`
	Timestamp       string          `json:"timestamp"`
	Version         string          `json:"version"`
	Uptime          string          `json:"uptime"`
	UptimeSeconds   float64         `json:"uptime_seconds"`
	CPUInfo         CPUInfo         `json:"cpu"`
	Memory          MemoryInfo      `json:"memory"`
	Graph           GraphHealth     `json:"graph"`
	CircuitBreakers []BreakerStatus `json:"circuit_breakers,omitempty"`
}

// HealthInput is the input for the health check endpoint.
type HealthInput struct{}

// HealthOutput is the output for the health check endpoint.
type HealthOutput struct {
	Body HealthResponse
}

// Register registers the health route with the API.
func (h *HealthHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "getHealth",
		Method:      "GET",
		Path:        "/health",
		Summary:     "Health check",
		Description: "Returns service health including system metrics, graph store reachability and fetch circuit breakers",
		Tags:        []string{"System"},
	}, h.GetHealth)
}

// GetHealth returns the health status of the service.
func (h *HealthHandler) GetHealth(ctx context.Context, input *HealthInput) (*HealthOutput, error) {
	now := time.Now()
	uptime := now.Sub(h.startTime)

	graphHealth := h.getGraphHealth(ctx)

	status := "healthy"
	if graphHealth.Status == "error" {
		status = "degraded"
	}

	return &HealthOutput{
		Body: HealthResponse{
			Status:          status,
			Timestamp:       now.UTC().Format(time.RFC3339),
			Version:         h.version,
			Uptime:          uptime.Round(time.Second).String(),
			UptimeSeconds:   uptime.Seconds(),
			CPUInfo:         h.getCPUInfo(),
			Memory:          h.getMemoryInfo(),
			Graph:           graphHealth,
			CircuitBreakers: h.getBreakerStatuses(),
		},
	}, nil
}

func (h *HealthHandler) getCPUInfo() CPUInfo {
	cores := runtime.NumCPU()

	info := CPUInfo{
		Cores: cores,
	}

	loadAvg, err := load.Avg()
	if err == nil && loadAvg != nil {
		info.Load1Min = loadAvg.Load1
		info.Load5Min = loadAvg.Load5
		info.Load15Min = loadAvg.Load15

		if cores > 0 {
			info.LoadPercentage1Min = (loadAvg.Load1 / float64(cores)) * 100
		}
	}

	return info
}

func (h *HealthHandler) getMemoryInfo() MemoryInfo {
	info := MemoryInfo{}

	vmStat, err := mem.VirtualMemory()
	if err == nil && vmStat != nil {
		info.TotalMemoryMB = float64(vmStat.Total) / 1024 / 1024
		info.UsedMemoryMB = float64(vmStat.Used) / 1024 / 1024
		info.AvailableMemoryMB = float64(vmStat.Available) / 1024 / 1024
	}

	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return info
	}
	memInfo, err := proc.MemoryInfo()
	if err == nil && memInfo != nil {
		info.ProcessMemoryMB = float64(memInfo.RSS) / 1024 / 1024
	}

	return info
}

func (h *HealthHandler) getBreakerStatuses() []BreakerStatus {
	if h.fetcher == nil {
		return nil
	}

	stats := h.fetcher.BreakerStats()
	statuses := make([]BreakerStatus, 0, len(stats))
	for host, s := range stats {
		statuses = append(statuses, BreakerStatus{
			Host:          host,
			State:         s.State,
			Failures:      s.Failures,
			TotalRequests: s.TotalRequests,
			TotalFailures: s.TotalFailures,
		})
	}
	sort.Slice(statuses, func(i, j int) bool { return statuses[i].Host < statuses[j].Host })
	return statuses
}

func (h *HealthHandler) getGraphHealth(ctx context.Context) GraphHealth {
	if h.store == nil {
		return GraphHealth{Status: "not_configured"}
	}

	pingCtx, cancel := context.WithTimeout(ctx, graphPingTimeout)
	defer cancel()

	start := time.Now()
	err := h.store.Ping(pingCtx)
	elapsed := float64(time.Since(start).Microseconds()) / 1000

	if err != nil {
		return GraphHealth{Status: "error", ResponseTimeMS: elapsed, Error: err.Error()}
	}
	return GraphHealth{Status: "ok", ResponseTimeMS: elapsed}
}
