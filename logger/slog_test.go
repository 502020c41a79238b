package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    Level
		wantErr bool
	}{
		{in: "debug", want: DebugLevel},
		{in: "INFO", want: InfoLevel},
		{in: "", want: InfoLevel},
		{in: "warning", want: WarnLevel},
		{in: " error ", want: ErrorLevel},
		{in: "fatal", want: FatalLevel},
		{in: "verbose", want: InfoLevel, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
			require.Equal(t, tt.want, got)
		})
	}
}

func TestSlogLogger_LevelFiltering(t *testing.T) {
	t.Setenv("ENV", "")

	var buf bytes.Buffer
	l := newSlogWithWriter(WarnLevel, false, &buf)
	require.Equal(t, WarnLevel, l.Level())

	l.Info("dropped")
	l.Warn("kept", "code", -113)
	require.NotContains(t, buf.String(), "dropped")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	require.Equal(t, "kept", rec["msg"])
	require.EqualValues(t, -113, rec["code"])
	require.Contains(t, rec, "ts")

	l.SetLevel(DebugLevel)
	require.Equal(t, DebugLevel, l.Level())
}

func TestSlogLogger_FanoutToExtraWriters(t *testing.T) {
	t.Setenv("ENV", "")

	var primary, file bytes.Buffer
	l := newSlogWithWriter(InfoLevel, false, &primary, &file)

	child := l.With("addr", "192.168.1.151:5025")
	child.Info("link opened")

	require.Contains(t, primary.String(), "link opened")
	require.Contains(t, file.String(), "link opened")
	require.Equal(t, 1, strings.Count(file.String(), "192.168.1.151:5025"))

	// children share the parent's level
	l.SetLevel(ErrorLevel)
	child.Info("suppressed")
	require.NotContains(t, file.String(), "suppressed")
}
