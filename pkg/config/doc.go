// Package config loads mailmerge settings from a YAML file, a .env file and
// MAILMERGE_* environment variables, in that order of precedence.
package config
