// Package config loads storytotest.toml and layers it with environment
// variables and CLI flags into a ResolvedConfig that remembers where every
// value came from. Secrets never live in the file; LoadCredentials reads
// them from the environment.
package config
