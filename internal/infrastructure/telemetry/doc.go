// Package telemetry records fleet health metrics to InfluxDB.
//
// This package manages:
//   - Connection to InfluxDB v2 with token authentication
//   - Non-blocking batched writes (no impact on command latency)
//   - Device online/offline transitions
//   - Command execution counters
//   - Aggregate fleet connection stats
//
// # Design
//
// Telemetry is strictly optional. When disabled in config, Connect
// returns ErrDisabled and callers run without a client. All write
// helpers are no-ops on a disconnected client, so call sites never
// need nil-guards beyond the client pointer itself.
//
// Writes are batched and flushed asynchronously by the underlying
// client; errors surface through the SetOnError callback.
//
// # Usage
//
//	tsdb, err := telemetry.Connect(cfg.Telemetry)
//	if errors.Is(err, telemetry.ErrDisabled) {
//	    tsdb = nil // run without telemetry
//	} else if err != nil {
//	    return err
//	}
//
//	if tsdb != nil {
//	    tsdb.WriteDeviceStatus("lobby-01", true)
//	}
package telemetry
