package llmfactory

import "github.com/effective-security/llmkit/pkg/provider"

// SetEnviron replaces the process environment reader, the returned
// function restores it.
func SetEnviron(fn func() provider.Env) func() {
	prev := environ
	environ = fn
	return func() { environ = prev }
}
