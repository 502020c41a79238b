package console

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/arloliu/go-scpi/logger"
	"github.com/arloliu/go-scpi/scpi"
	"github.com/stretchr/testify/require"
)

func newTestConsole(input string, mode Mode, opts ...Option) (*Console, *bytes.Buffer) {
	var out bytes.Buffer
	opts = append([]Option{WithLogger(logger.Discard())}, opts...)

	return New(strings.NewReader(input), &out, mode, opts...), &out
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode("Directional")
	require.NoError(t, err)
	require.Equal(t, ModeDirectional, m)

	m, err = ParseMode("")
	require.NoError(t, err)
	require.Equal(t, ModeAverage, m)

	_, err = ParseMode("peak")
	require.Error(t, err)
}

func TestConsole_PromptHost(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr error
	}{
		{name: "default", input: "\n", want: "192.168.1.151"},
		{name: "explicit", input: "10.0.0.7\n", want: "10.0.0.7"},
		{name: "retry after invalid", input: "bridge\n10.0.0.8\n", want: "10.0.0.8"},
		{name: "too many attempts", input: "a\nb\nc\n10.0.0.9\n", wantErr: ErrTooManyAttempts},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newTestConsole(tt.input, ModeAverage)

			host, err := c.PromptHost("192.168.1.151")
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, host)
		})
	}
}

func TestConsole_PromptFrequency(t *testing.T) {
	c, out := newTestConsole("\n", ModeAverage)
	_, fixed, err := c.PromptFrequency()
	require.NoError(t, err)
	require.False(t, fixed)
	require.Empty(t, out.String(), "prompts are not echoed for piped input")

	c, out = newTestConsole("-5\nabc\n915.5\n", ModeAverage)
	mhz, fixed, err := c.PromptFrequency()
	require.NoError(t, err)
	require.True(t, fixed)
	require.InDelta(t, 915.5, mhz, 1e-9)
	require.Equal(t, 2, strings.Count(out.String(), "Invalid entry"))
}

func TestConsole_SelectAverage(t *testing.T) {
	c, _ := newTestConsole("\nanything\nEXIT\n", ModeAverage)
	ctx := context.Background()

	q, stop, err := c.Select(ctx, &scpi.StatusReport{})
	require.NoError(t, err)
	require.False(t, stop)
	require.Equal(t, scpi.Average, q)

	q, stop, err = c.Select(ctx, &scpi.StatusReport{})
	require.NoError(t, err)
	require.False(t, stop)
	require.Equal(t, scpi.Average, q)

	_, stop, err = c.Select(ctx, &scpi.StatusReport{})
	require.NoError(t, err)
	require.True(t, stop)

	// closed input stops as well
	_, stop, err = c.Select(ctx, &scpi.StatusReport{})
	require.NoError(t, err)
	require.True(t, stop)
}

func TestConsole_SelectDirectional(t *testing.T) {
	c, out := newTestConsole("f\nx\nReflected\n", ModeDirectional, WithInteractive(true))
	ctx := context.Background()

	q, stop, err := c.Select(ctx, nil)
	require.NoError(t, err)
	require.False(t, stop)
	require.Equal(t, scpi.Forward, q)

	q, stop, err = c.Select(ctx, nil)
	require.NoError(t, err)
	require.False(t, stop)
	require.Equal(t, scpi.Reflected, q)

	require.Contains(t, out.String(), "(F)orward or (R)eflected")
	require.Contains(t, out.String(), "Invalid entry")
}

func TestConsole_SelectDirectionalGivesUp(t *testing.T) {
	c, _ := newTestConsole("a\nb\nc\n", ModeDirectional, WithMaxAttempts(2))

	_, _, err := c.Select(context.Background(), nil)
	require.ErrorIs(t, err, ErrTooManyAttempts)
}

func TestConsole_SelectCanceled(t *testing.T) {
	c, _ := newTestConsole("\n", ModeAverage)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := c.Select(ctx, nil)
	require.ErrorIs(t, err, context.Canceled)
}

func TestConsole_PrintsReportAndMeasurements(t *testing.T) {
	c, out := newTestConsole("\n", ModeAverage)

	report := &scpi.StatusReport{
		Errors:     []scpi.InstrumentError{{Code: -113, Message: "Undefined header"}},
		Conditions: scpi.DecodeConditions(1 << 8),
	}
	_, _, err := c.Select(context.Background(), report)
	require.NoError(t, err)

	c.Report(scpi.Measurement{Quantity: scpi.Average, Watts: 12.345, Raw: "12.345"})

	require.Equal(t,
		"Error -113: Undefined header\n\nNote: Calibration not valid\n\n12.345 Watts\n",
		out.String())

	d, out := newTestConsole("", ModeDirectional)
	d.Report(scpi.Measurement{Quantity: scpi.Reflected, Watts: 0.5})
	require.Equal(t, "Reflected: 0.5 Watts\n", out.String())
}
