// Package config defines configuration structures for the fastdlx CLI.
//
// Configuration can be provided via:
//   - Command-line flags
//   - Environment variables (FASTDLX_ prefix)
//   - YAML configuration file
//
// Flags win over environment variables, which win over the file.
package config
