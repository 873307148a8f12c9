// Package config loads konnect-mcp process configuration.
//
// Values are resolved by viper in the usual order: explicit flag, environment
// variable, config file, default. The environment names follow the Konnect
// conventions (KONNECT_ACCESS_TOKEN, KONNECT_REGION) so an existing Konnect
// setup works unchanged.
package config
