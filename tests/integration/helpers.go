package integration

import (
	"time"

	"tsgate/internal/filterpreset"
	"tsgate/internal/logger"
)

const (
	containerStartupTimeout = 60
	timestampDelay          = 10 * time.Millisecond
)

func createTestLogger() logger.Logger {
	return logger.NopLogger()
}

func createTestPresetRequest(name, expression string, enabled bool) filterpreset.CreatePresetRequest {
	return filterpreset.CreatePresetRequest{
		Name:       name,
		Expression: expression,
		Enabled:    &enabled,
	}
}

func createTestPreset(name, expression string, enabled bool) *filterpreset.Preset {
	return &filterpreset.Preset{
		Name:       name,
		Expression: expression,
		Enabled:    enabled,
	}
}
