// Package config loads the espeakng command's settings from a yaml file,
// ESPEAKNG_* environment variables and command line flags.
package config
