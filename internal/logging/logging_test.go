package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func TestSetupLevel(t *testing.T) {
	cases := []struct {
		name string
		opts Options
		want zerolog.Level
	}{
		{"debug", Options{Level: "debug"}, zerolog.DebugLevel},
		{"warn", Options{Level: "warn"}, zerolog.WarnLevel},
		{"unknown falls back to info", Options{Level: "shout"}, zerolog.InfoLevel},
		{"empty falls back to info", Options{}, zerolog.InfoLevel},
		{"verbose overrides level", Options{Level: "error", Verbose: true}, zerolog.DebugLevel},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			Setup(tc.opts)
			if got := zerolog.GlobalLevel(); got != tc.want {
				t.Errorf("expected global level %s, got %s", tc.want, got)
			}
		})
	}
}

func TestSetupOutput(t *testing.T) {
	var buf bytes.Buffer
	Setup(Options{Level: "info", Output: &buf})

	log.Info().Str("word", "hello").Msg("token shown")
	if !strings.Contains(buf.String(), "token shown") {
		t.Errorf("log output missing message: %q", buf.String())
	}

	buf.Reset()
	log.Debug().Msg("hidden")
	if buf.Len() != 0 {
		t.Errorf("debug message leaked at info level: %q", buf.String())
	}
}
