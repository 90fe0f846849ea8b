package api

import (
	"net/http"
	"runtime"
	"time"

	"github.com/posterrama/fleet-core/internal/bridge"
)

// SystemMetrics represents the complete system metrics response.
type SystemMetrics struct {
	Timestamp     string          `json:"timestamp"`
	Version       string          `json:"version"`
	UptimeSeconds int64           `json:"uptime_seconds"`
	Runtime       RuntimeMetrics  `json:"runtime"`
	Hub           HubMetrics      `json:"hub"`
	MQTT          MQTTMetrics     `json:"mqtt"`
	Bridge        *bridge.Metrics `json:"bridge,omitempty"`
	Devices       DeviceMetrics   `json:"devices"`
}

// RuntimeMetrics contains Go runtime statistics.
type RuntimeMetrics struct {
	Goroutines    int     `json:"goroutines"`
	MemoryAllocMB float64 `json:"memory_alloc_mb"`
	MemoryTotalMB float64 `json:"memory_total_mb"`
	NumGC         uint32  `json:"num_gc"`
}

// HubMetrics contains socket hub statistics.
type HubMetrics struct {
	ConnectedDevices int      `json:"connected_devices"`
	DeviceIDs        []string `json:"device_ids"`
}

// MQTTMetrics contains MQTT client statistics.
type MQTTMetrics struct {
	Connected bool `json:"connected"`
}

// DeviceMetrics contains device registry statistics.
type DeviceMetrics struct {
	Total    int            `json:"total"`
	ByStatus map[string]int `json:"by_status"`
	ByMode   map[string]int `json:"by_mode"`
}

// handleMetrics returns comprehensive system metrics.
func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	metrics := SystemMetrics{
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		Version:       s.version,
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
		Runtime: RuntimeMetrics{
			Goroutines:    runtime.NumGoroutine(),
			MemoryAllocMB: float64(memStats.Alloc) / 1024 / 1024,
			MemoryTotalMB: float64(memStats.TotalAlloc) / 1024 / 1024,
			NumGC:         memStats.NumGC,
		},
		Hub: HubMetrics{
			ConnectedDevices: s.hub.ConnectionCount(),
			DeviceIDs:        s.hub.ConnectedIDs(),
		},
	}

	if s.broker != nil {
		metrics.MQTT = MQTTMetrics{Connected: s.broker.IsConnected()}
	}

	if s.bridge != nil {
		bm := s.bridge.GetMetrics()
		metrics.Bridge = &bm
	}

	regStats := s.registry.GetStats()
	metrics.Devices = DeviceMetrics{
		Total:    regStats.TotalDevices,
		ByStatus: make(map[string]int),
		ByMode:   make(map[string]int),
	}
	for status, count := range regStats.ByStatus {
		metrics.Devices.ByStatus[string(status)] = count
	}
	for mode, count := range regStats.ByMode {
		metrics.Devices.ByMode[mode] = count
	}

	writeJSON(w, http.StatusOK, metrics)
}
