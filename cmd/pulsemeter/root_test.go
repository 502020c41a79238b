package main

import (
	"bufio"
	"bytes"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// bridge simulates the sensor behind its ethernet bridge: it answers every
// query from a per-command script and records all received lines.
type bridge struct {
	ln net.Listener

	mu       sync.Mutex
	received []string
	replies  map[string][]string
}

func newBridge(t *testing.T, replies map[string][]string) *bridge {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	b := &bridge{ln: ln, replies: replies}
	t.Cleanup(func() { _ = ln.Close() })

	go b.serve()

	return b
}

func (b *bridge) port() int {
	return b.ln.Addr().(*net.TCPAddr).Port
}

func (b *bridge) serve() {
	conn, err := b.ln.Accept()
	if err != nil {
		return
	}
	defer conn.Close()

	r := bufio.NewReader(conn)
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return
		}
		cmd := strings.TrimSuffix(line, "\n")

		b.mu.Lock()
		b.received = append(b.received, cmd)
		var reply string
		if strings.HasSuffix(cmd, "?") {
			queue := b.replies[cmd]
			if len(queue) > 0 {
				reply, b.replies[cmd] = queue[0], queue[1:]
			} else {
				reply = "0"
			}
		}
		b.mu.Unlock()

		if strings.HasSuffix(cmd, "?") {
			if _, err := conn.Write([]byte(reply + "\n")); err != nil {
				return
			}
		}
	}
}

func (b *bridge) commands() []string {
	b.mu.Lock()
	defer b.mu.Unlock()

	return append([]string(nil), b.received...)
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "pulsemeter.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func TestRootCmd_MeasuresUntilExit(t *testing.T) {
	b := newBridge(t, map[string][]string{
		"*OPC?":           {"1", "1"},
		"*STB?":           {"4", "0"},
		"SYST:ERR?":       {`-113,"Undefined header"`, `0,"No error"`},
		"FETC:AVER?":      {"12.345"},
		"STAT:QUES:COND?": {"0"},
	})

	cfgPath := writeConfig(t, "settle_delay: 1ms\nlog:\n  level: error\n")

	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetIn(strings.NewReader("\nexit\n"))
	cmd.SetOut(&out)
	cmd.SetArgs([]string{
		"--config", cfgPath,
		"--host", "127.0.0.1",
		"--port", strconv.Itoa(b.port()),
		"--prompt=false",
	})

	require.NoError(t, cmd.Execute())

	require.Contains(t, out.String(), "Error -113: Undefined header")
	require.Contains(t, out.String(), "12.345 Watts")

	require.Equal(t, []string{
		"*RST", "*CLS",
		"INIT", "*OPC?", "*STB?", "SYST:ERR?", "SYST:ERR?", "FETC:AVER?",
		"INIT", "*OPC?", "*STB?",
	}, b.commands())
}

func TestRootCmd_DirectionalWithFrequency(t *testing.T) {
	b := newBridge(t, map[string][]string{
		"*OPC?":           {"1", "1", "1"},
		"*STB?":           {"0", "0", "0"},
		"FETC:FORW:AVER?": {"100.5"},
		"FETC:REFL:AVER?": {"2.25"},
	})

	cfgPath := writeConfig(t, "settle_delay: 1ms\nmode: directional\nlog:\n  level: error\n")

	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetIn(strings.NewReader("f\nr\nexit\n"))
	cmd.SetOut(&out)
	cmd.SetArgs([]string{
		"-c", cfgPath,
		"--host", "127.0.0.1",
		"--port", strconv.Itoa(b.port()),
		"--frequency", "915",
	})

	require.NoError(t, cmd.Execute())

	require.Contains(t, out.String(), "Forward: 100.5 Watts")
	require.Contains(t, out.String(), "Reflected: 2.25 Watts")
	require.Equal(t, []string{"*RST", "*CLS", "SENS:FREQ 915"}, b.commands()[:3])
}

func TestRootCmd_InvalidFlags(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--mode", "peak", "--prompt=false"})

	err := cmd.Execute()
	require.Error(t, err)
	require.Contains(t, err.Error(), "unknown mode")
}
