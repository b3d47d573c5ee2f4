// Package config provides centralized configuration management for the
// embassy runtime. It loads a single JSON file at startup, fills in safe
// defaults for every tunable (matching floor, orchestration timeout,
// session TTL, retry caps) and hands typed sections to downstream
// services.
package config
