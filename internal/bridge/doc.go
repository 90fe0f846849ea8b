// Package bridge mirrors the device fleet onto an MQTT broker so
// third-party consoles can observe and control displays without talking
// to the HTTP API.
//
// # Topic Layout
//
// Under the configured prefix (default "posterrama"):
//
//	device/{id}/command/{capability}   inbound, per-device commands
//	broadcast/command/{capability}     inbound, fleet-wide commands
//	device/{id}/state                  outbound state snapshots
//	device/{id}/availability           outbound, retained online/offline
//	device/{id}/camera                 outbound base64 poster previews
//	bridge/status                      retained bridge liveness
//
// Capability segments use the underscore slug form of the dotted ID
// (playback.pause travels as playback_pause).
//
// # Publishing Behavior
//
// State snapshots are serialized through a fixed-field struct so the
// JSON form is canonical; a snapshot is published only when its bytes
// differ from the last publish for that device, plus at least once per
// sweep interval for new devices. Availability is retained and
// published on transitions only. Fleet registry change events trigger
// immediate publishes between sweeps.
//
// Discovery configs follow the Home Assistant MQTT discovery schema,
// retained under the configured discovery prefix. Capabilities gated on
// display mode are published and retracted as devices switch modes; a
// mode change forces a full retract-and-republish cycle so consoles
// pick up changed entity sets. Deleting a device clears every retained
// topic it owned.
//
// Inbound commands are decoded leniently (raw ON/OFF strings, JSON
// scalars, or {"value": ...} envelopes), routed through the capability
// registry, and recorded in a bounded in-memory history ring. Handler
// errors are logged and counted, never returned to the broker.
package bridge
