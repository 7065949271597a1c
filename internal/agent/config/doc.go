// Package config defines the agent configuration structure.
//
// Configuration is loaded from an optional YAML file and LAPSTREAM_
// environment variables, with environment taking precedence. Each
// section delegates to the owning package's config type so defaults
// and validation live next to the code they describe.
package config
