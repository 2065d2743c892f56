// Package config handles YAML configuration loading with environment
// variable substitution.
//
// Configuration files support ${VAR} syntax for environment variable
// interpolation. Login credentials are never read from the file; they are
// taken from BROKER_* environment variables only.
package config
