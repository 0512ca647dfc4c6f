package config

import "context"

// Environment describes the ambient conditions a capability adapts to.
type Environment struct {
	IsLowPowerMode bool
	IsDebug        bool
}

// EnvironmentSource supplies the current environment and a stream of changes.
// The runtime re-derives its configuration through Adjust on every update.
type EnvironmentSource interface {
	Current() Environment
	// Watch emits environment changes until ctx is cancelled. Implementations
	// must close the returned channel when they stop emitting.
	Watch(ctx context.Context) <-chan Environment
}

// StaticEnvironment is an EnvironmentSource that never changes. It is the
// default when no source is supplied.
type StaticEnvironment struct {
	Env Environment
}

func (s StaticEnvironment) Current() Environment { return s.Env }

func (s StaticEnvironment) Watch(ctx context.Context) <-chan Environment {
	ch := make(chan Environment)
	go func() {
		<-ctx.Done()
		close(ch)
	}()
	return ch
}
