// Package config loads and validates the Fleet Core configuration.
//
// Configuration comes from a YAML file, with FLEETCORE_-prefixed
// environment variables layered on top. Load applies defaults, then
// the file, then the environment, then validates the result, so a
// returned Config is always usable.
//
// Secrets never belong in the file: the JWT signing secret and the
// MQTT broker password are expected via environment variables
// (FLEETCORE_SECURITY_JWT_SECRET, or auth.password_env indirection
// for the broker). Validation rejects a missing or short JWT secret
// outright rather than falling back to a default.
//
// The file is read once at startup; there is no hot reload.
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Bridge.TopicPrefix)
package config
