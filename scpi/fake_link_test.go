package scpi

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/arloliu/go-scpi/link"
	"github.com/arloliu/go-scpi/logger"
)

func TestMain(m *testing.M) {
	level, err := logger.ParseLevel(os.Getenv("LOG_LEVEL"))
	if err != nil {
		level = logger.InfoLevel
	}
	logger.SetLevel(level)

	os.Exit(m.Run())
}

var errNoReply = errors.New("fake link: receive without queued reply")

// fakeLink is a scripted instrument. Replies are queued per query; every
// Send and Receive is appended to events so tests can assert exact ordering.
type fakeLink struct {
	events  []string
	sentAt  map[string]time.Time
	replies map[string][]string
	pending string
	closed  bool

	// failSend makes Send of the named command fail as if the stream was closed.
	failSend string
	// failRecv makes the Receive answering the named query fail.
	failRecv string
}

var _ link.Link = (*fakeLink)(nil)

func newFakeLink() *fakeLink {
	return &fakeLink{
		sentAt:  make(map[string]time.Time),
		replies: make(map[string][]string),
	}
}

// reply queues replies for query, each terminated like the bridge does.
func (f *fakeLink) reply(query string, replies ...string) *fakeLink {
	for _, r := range replies {
		f.replies[query] = append(f.replies[query], r+"\n")
	}

	return f
}

func (f *fakeLink) Send(cmd string) error {
	if f.closed || cmd == f.failSend {
		f.events = append(f.events, "send-failed:"+cmd)
		return &link.LinkError{Op: link.OpWrite, Command: cmd, Err: link.ErrLinkClosed}
	}

	f.events = append(f.events, "send:"+cmd)
	f.sentAt[cmd] = time.Now()
	f.pending = cmd

	return nil
}

func (f *fakeLink) Receive() (string, error) {
	query := f.pending
	f.pending = ""

	if f.closed || (query != "" && query == f.failRecv) {
		f.events = append(f.events, "recv-failed:"+query)
		return "", &link.LinkError{Op: link.OpRead, Err: link.ErrLinkClosed}
	}

	queue := f.replies[query]
	if len(queue) == 0 {
		f.events = append(f.events, "recv-missing:"+query)
		return "", errNoReply
	}

	f.replies[query] = queue[1:]
	f.events = append(f.events, "recv:"+query)

	return queue[0], nil
}

func (f *fakeLink) Close() error {
	f.closed = true
	return nil
}

// sends returns the commands sent successfully, in order.
func (f *fakeLink) sends() []string {
	var out []string
	for _, e := range f.events {
		if cmd, ok := strings.CutPrefix(e, "send:"); ok {
			out = append(out, cmd)
		}
	}

	return out
}

func (f *fakeLink) count(cmd string) int {
	n := 0
	for _, s := range f.sends() {
		if s == cmd {
			n++
		}
	}

	return n
}

// recordingSleeper logs settle delays into the fake link's event stream.
func recordingSleeper(f *fakeLink) SleepFunc {
	return func(ctx context.Context, d time.Duration) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		f.events = append(f.events, fmt.Sprintf("sleep:%s", d))

		return nil
	}
}

// newTestSession builds a session with recorded settle delays and a silent logger.
func newTestSession(t *testing.T, f *fakeLink, opts ...SessionOption) *Session {
	t.Helper()

	base := []SessionOption{
		WithSleeper(recordingSleeper(f)),
		WithLogger(logger.Discard()),
	}

	s, err := NewSession(f, append(base, opts...)...)
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}

	return s
}

// selectorOf returns a selector answering the given selections in order;
// an exhausted script requests a stop.
func selectorOf(selections ...Quantity) *scriptedOperator {
	return &scriptedOperator{selections: selections}
}

type scriptedOperator struct {
	selections []Quantity
	reports    []*StatusReport
	measured   []Measurement
}

func (o *scriptedOperator) Select(_ context.Context, report *StatusReport) (Quantity, bool, error) {
	o.reports = append(o.reports, report)
	if len(o.selections) == 0 {
		return 0, true, nil
	}

	q := o.selections[0]
	o.selections = o.selections[1:]

	return q, false, nil
}

func (o *scriptedOperator) Report(m Measurement) {
	o.measured = append(o.measured, m)
}
