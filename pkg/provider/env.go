package provider

import (
	"os"
	"strings"
)

// Env is a snapshot of environment variables.
type Env map[string]string

// Environ returns a snapshot of the process environment.
// It is meant to be called once at process start.
func Environ() Env {
	return ParseEnv(os.Environ())
}

// ParseEnv returns Env from KEY=VALUE pairs.
func ParseEnv(pairs []string) Env {
	env := make(Env, len(pairs))
	for _, kv := range pairs {
		k, v, ok := strings.Cut(kv, "=")
		if ok && k != "" {
			env[k] = v
		}
	}
	return env
}

// Get returns the first non-empty value of the keys.
func (e Env) Get(keys ...string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(e[k]); v != "" {
			return v
		}
	}
	return ""
}
