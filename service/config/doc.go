// Package config assembles the runtime configuration of the activity service.
//
// Values come from defaults, an optional YAML file named by CONFIG_FILE, a .env file and the process
// environment, in that order of increasing precedence. The package also opens the database pools,
// builds the OpenTelemetry providers and creates the configured logger.
package config
