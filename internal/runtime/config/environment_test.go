package config

import (
	"context"
	"testing"
	"time"
)

func TestStaticEnvironmentCurrent(t *testing.T) {
	src := StaticEnvironment{Env: Environment{IsLowPowerMode: true}}
	if !src.Current().IsLowPowerMode {
		t.Error("Current() should return the configured environment")
	}
}

func TestStaticEnvironmentWatchClosesOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	src := StaticEnvironment{}

	ch := src.Watch(ctx)
	cancel()

	select {
	case _, ok := <-ch:
		if ok {
			t.Error("static watch should emit no events")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("watch channel did not close after cancellation")
	}
}
