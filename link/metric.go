package link

import (
	"strings"
	"sync/atomic"

	"github.com/puzpuzpuz/xsync/v3"
)

// LinkMetrics contains atomic counters of a link.
// Metrics can be used as the value of a prometheus CounterFunc or GaugeFunc.
type LinkMetrics struct {
	// SendCount indicates the number of commands written.
	SendCount atomic.Uint64
	// RecvCount indicates the number of replies read.
	RecvCount atomic.Uint64
	// ErrCount indicates the number of failed sends and receives.
	ErrCount atomic.Uint64
	// BytesSent indicates the number of bytes written, terminators included.
	BytesSent atomic.Uint64
	// BytesRecv indicates the number of bytes read.
	BytesRecv atomic.Uint64
	// TruncatedCount indicates the number of replies cut at the read buffer size.
	TruncatedCount atomic.Uint64

	// commands counts sends per command header, e.g. "SENS:FREQ" for "SENS:FREQ 915".
	commands *xsync.MapOf[string, *atomic.Uint64]
}

func newLinkMetrics() *LinkMetrics {
	return &LinkMetrics{
		commands: xsync.NewMapOf[string, *atomic.Uint64](),
	}
}

// CommandCount returns how many times the command header was sent.
func (m *LinkMetrics) CommandCount(cmd string) uint64 {
	if c, ok := m.commands.Load(commandHeader(cmd)); ok {
		return c.Load()
	}

	return 0
}

// RangeCommands calls f for every command header sent so far.
// Iteration stops when f returns false.
func (m *LinkMetrics) RangeCommands(f func(header string, count uint64) bool) {
	m.commands.Range(func(header string, c *atomic.Uint64) bool {
		return f(header, c.Load())
	})
}

func (m *LinkMetrics) incSendCount(cmd string, n int) {
	m.SendCount.Add(1)
	m.BytesSent.Add(uint64(n))

	c, _ := m.commands.LoadOrCompute(commandHeader(cmd), func() *atomic.Uint64 {
		return &atomic.Uint64{}
	})
	c.Add(1)
}

func (m *LinkMetrics) incRecvCount(n int) {
	m.RecvCount.Add(1)
	m.BytesRecv.Add(uint64(n))
}

func (m *LinkMetrics) incErrCount() {
	m.ErrCount.Add(1)
}

func (m *LinkMetrics) incTruncatedCount() {
	m.TruncatedCount.Add(1)
}

func commandHeader(cmd string) string {
	if fields := strings.Fields(cmd); len(fields) > 0 {
		return fields[0]
	}

	return cmd
}
