// Package config loads and validates the display bridge configuration.
//
// Loading order:
//  1. Defaults
//  2. YAML file
//  3. GRAYLOGIC_* environment variables
//
// Credentials (MQTT password, InfluxDB token) should come from the
// environment rather than the file.
//
// Device entries carry type-specific properties as a raw YAML node; the
// supervisor's factory for each device type decodes them.
//
// Usage:
//
//	cfg, err := config.Load("configs/display-bridge.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for _, d := range cfg.Devices {
//	    fmt.Println(d.Key, d.Type)
//	}
package config
