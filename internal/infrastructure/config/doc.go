// Package config handles loading and validating PhaseLink Core configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with PHASELINK_* environment variables
//   - Validation of required fields
//   - Default value handling
//
// Security Considerations:
//   - Sensitive values (InfluxDB token, JWT secret) should be set via environment variables
//   - The config file should have restricted permissions (0600)
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.DeviceLink.Channels)
package config
