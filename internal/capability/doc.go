// Package capability defines the static catalog of device-controllable
// capabilities for Fleet Core.
//
// A capability is one controllable or observable facet of a display,
// identified by a dotted name (e.g. "playback.pause"), with an entity
// classification, an availability predicate, a command handler, and an
// optional state getter. The socket hub, the MQTT bridge, and the REST
// API all dispatch through this single catalog.
//
// # Key Types
//
//   - ID: dotted identifier; Slug()/ParseSlug convert to the underscore
//     form used in MQTT topic segments
//   - EntityType: button, switch, select, number, text, sensor, camera
//   - Definition: the immutable per-capability bundle
//   - Registry: the fixed-at-startup lookup table
//
// # Usage
//
//	reg := capability.NewRegistry()
//	reg.Init(capability.Deps{Store: store, Commander: hub, Logger: log})
//
//	// Dispatch an inbound command
//	err := reg.Execute(ctx, "display.mode", "lobby-01", "wallart")
//
//	// Discovery support
//	for _, def := range reg.AvailableFor(dev) {
//	    // publish discovery config
//	}
//
// The registry tolerates queries before Init (returning empty results)
// because the hub and bridge are wired together at process startup in
// no particular order relative to catalog population. Init is idempotent.
package capability
