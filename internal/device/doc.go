// Package device provides the device registry for Fleet Core.
//
// The registry is the central catalogue of all signage displays in a
// Posterrama installation. It manages device lifecycle, reported state,
// and secrets, and feeds the REST API, the socket hub, and the MQTT
// bridge.
//
// # Architecture
//
//	┌─────────────────────────────────────────────────────────────────────────┐
//	│                          Device Registry                                 │
//	│                                                                          │
//	│  ┌──────────────────┐    ┌──────────────────┐    ┌──────────────────┐   │
//	│  │     Registry     │    │    Repository    │    │    Validation    │   │
//	│  │   (registry.go)  │───▶│  (repository.go) │    │ (validation.go)  │   │
//	│  │                  │    │                  │    │                  │   │
//	│  │ • CRUD ops       │    │ • SQLite queries │    │ • Device checks  │   │
//	│  │ • In-memory cache│    │ • JSON marshal   │    │ • ID format      │   │
//	│  │ • Change events  │    │ • json_patch     │    │ • Size limits    │   │
//	│  └──────────────────┘    └──────────────────┘    └──────────────────┘   │
//	│           │                       │                                      │
//	└───────────│───────────────────────│──────────────────────────────────────┘
//	            │                       │
//	            ▼                       ▼
//	┌──────────────────────┐   ┌──────────────────────┐
//	│ REST API / Hub / MQTT│   │   SQLite Database    │
//	│  • GET /devices      │   │   (devices table)    │
//	│  • WebSocket state   │   └──────────────────────┘
//	│  • Bridge discovery  │
//	└──────────────────────┘
//
// # Key Types
//
//   - Device: A registered signage display with name, location, and secret
//   - State: The device-reported state document (mode, paused, pinned, ...)
//   - Settings: Per-device setting overrides pushed from the admin layer
//   - Status: Derived connectivity (online, offline, unknown)
//   - Event: Change notification delivered to registry subscribers
//
// # Usage
//
//	// Create repository and registry
//	repo := device.NewSQLiteRepository(db)
//	registry := device.NewRegistry(repo)
//	registry.SetLogger(log)
//
//	// Load devices into cache on startup
//	if err := registry.RefreshCache(ctx); err != nil {
//	    return err
//	}
//
//	// Register a new display
//	secret, _ := device.GenerateSecret()
//	dev := &device.Device{
//	    ID:         "lobby-01",
//	    Name:       "Lobby Display",
//	    Location:   "Lobby",
//	    SecretHash: device.HashSecret(secret),
//	}
//	if err := registry.CreateDevice(ctx, dev); err != nil {
//	    return err
//	}
//
//	// Merge reported state (from the socket hub)
//	registry.SetDeviceState(ctx, "lobby-01", device.State{"mode": "wallart"})
//
//	// React to changes (from the MQTT bridge)
//	unsub := registry.Subscribe(func(evt device.Event) {
//	    // publish state, refresh discovery, ...
//	})
//	defer unsub()
//
// # Thread Safety
//
// The Registry is safe for concurrent use. All operations are protected by
// a read-write mutex. The Repository implementation must also be thread-safe.
// Event handlers run synchronously on the mutating goroutine and must not
// block.
package device
