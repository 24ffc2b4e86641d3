// Package cache stores synthesized audio on disk, zstd-compressed and keyed
// by everything that influences the engine's output.
package cache
