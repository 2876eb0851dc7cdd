package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]LogLevel{
		"debug":   DebugLevel,
		"INFO":    InfoLevel,
		"warning": WarnLevel,
		"error":   ErrorLevel,
		"bogus":   WarnLevel,
		"":        WarnLevel,
	}

	for in, want := range tests {
		assert.Equal(t, want, ParseLevel(in), "level %q", in)
	}
}

func TestEventsAreSafeBeforeInit(t *testing.T) {
	assert.NotPanics(t, func() {
		Debug().Msg("not initialized")
		Default().Warn().Str("k", "v").Send()
	})
}
