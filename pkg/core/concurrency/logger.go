package concurrency

import "github.com/fluxorio/pollexec/pkg/core"

// newComponentLogger returns the default logger tagged with the component
// name, used when no Logger is configured.
func newComponentLogger(component string) core.Logger {
	return core.NewDefaultLogger().WithFields(map[string]interface{}{
		"component": component,
	})
}
