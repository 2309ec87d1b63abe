// Package cliconfig assembles the actlife command configuration from a
// TOML file, ACTLIFE_* environment variables and command-line flags.
// Flags win over the environment, which wins over the file.
package cliconfig
