// Package config provides configuration structures and utilities for papergrab.
// It defines the run settings (subject, series, timeouts, output), the
// qualification profiles that drive the wizard navigator, and the loader
// for the .papergrab.yaml configuration file.
package config
