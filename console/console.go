// Package console is the operator-facing side of the pulse meter: it asks
// for the bridge address and frequency tracking choice, offers a measurement
// each cycle and prints results, instrument errors and condition notes.
//
// Operator input is validated here with a bounded number of attempts so the
// measurement session only ever receives valid selections.
package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"strings"

	"github.com/arloliu/go-scpi/logger"
	"github.com/arloliu/go-scpi/scpi"
	"golang.org/x/term"
)

// DefaultMaxAttempts is the number of tries an operator gets per prompt.
const DefaultMaxAttempts = 3

// ErrTooManyAttempts is returned when the operator keeps entering invalid input.
var ErrTooManyAttempts = errors.New("console: too many invalid entries")

// stopWord ends the measurement loop.
const stopWord = "exit"

// Mode selects which quantities the operator is offered.
type Mode int

const (
	// ModeAverage offers a single undifferentiated average power reading.
	ModeAverage Mode = iota
	// ModeDirectional offers forward or reflected power.
	ModeDirectional
)

func (m Mode) String() string {
	switch m {
	case ModeAverage:
		return "average"
	case ModeDirectional:
		return "directional"
	default:
		return "Mode(" + strconv.Itoa(int(m)) + ")"
	}
}

// ParseMode converts "average" or "directional" into a Mode.
func ParseMode(name string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "average":
		return ModeAverage, nil
	case "directional":
		return ModeDirectional, nil
	default:
		return ModeAverage, fmt.Errorf("console: unknown mode %q", name)
	}
}

// Console talks to the operator over a line-oriented reader and writer.
type Console struct {
	in          *bufio.Reader
	out         io.Writer
	mode        Mode
	interactive bool
	maxAttempts int
	logger      logger.Logger
}

var _ scpi.Operator = (*Console)(nil)

// Option configures a Console.
type Option func(*Console)

// WithMaxAttempts sets the number of tries per prompt; values below 1 are ignored.
func WithMaxAttempts(n int) Option {
	return func(c *Console) {
		if n >= 1 {
			c.maxAttempts = n
		}
	}
}

// WithInteractive forces prompts on or off regardless of terminal detection.
func WithInteractive(interactive bool) Option {
	return func(c *Console) {
		c.interactive = interactive
	}
}

// WithLogger sets the logger used for rejected input.
func WithLogger(l logger.Logger) Option {
	return func(c *Console) {
		if l != nil {
			c.logger = l
		}
	}
}

// New creates a Console. Prompts are written only when in is a terminal,
// so piped input produces just the results.
func New(in io.Reader, out io.Writer, mode Mode, opts ...Option) *Console {
	c := &Console{
		in:          bufio.NewReader(in),
		out:         out,
		mode:        mode,
		interactive: isTerminal(in),
		maxAttempts: DefaultMaxAttempts,
		logger:      logger.GetLogger(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

func isTerminal(r io.Reader) bool {
	f, ok := r.(*os.File)
	if !ok {
		return false
	}

	return term.IsTerminal(int(f.Fd()))
}

// PromptHost asks for the bridge IP address; an empty answer selects defaultHost.
func (c *Console) PromptHost(defaultHost string) (string, error) {
	var host string
	err := c.ask("Enter the IP address of the ethernet bridge (or press ENTER to use "+defaultHost+"): ",
		func(answer string) error {
			if answer == "" {
				host = defaultHost
				return nil
			}
			if net.ParseIP(answer) == nil {
				return fmt.Errorf("%q is not an IP address", answer)
			}
			host = answer

			return nil
		})

	return host, err
}

// PromptFrequency asks for a fixed carrier frequency in MHz. An empty answer
// keeps frequency auto tracking and returns fixed=false.
func (c *Console) PromptFrequency() (mhz float64, fixed bool, err error) {
	err = c.ask("Enter the carrier frequency in MHz (or press ENTER for auto tracking): ",
		func(answer string) error {
			if answer == "" {
				return nil
			}
			v, err := strconv.ParseFloat(answer, 64)
			if err != nil || v <= 0 {
				return fmt.Errorf("%q is not a positive frequency", answer)
			}
			mhz, fixed = v, true

			return nil
		})

	return mhz, fixed, err
}

// Select prints the status report and asks which quantity to fetch.
// Entering "exit", or closing the input, stops the session.
func (c *Console) Select(ctx context.Context, report *scpi.StatusReport) (scpi.Quantity, bool, error) {
	if err := ctx.Err(); err != nil {
		return 0, false, err
	}

	c.printReport(report)

	var (
		q    scpi.Quantity
		stop bool
	)

	prompt := "Type EXIT to end the program\nPress ENTER to make a measurement: "
	if c.mode == ModeDirectional {
		prompt = "Type EXIT to end the program\nMeasure (F)orward or (R)eflected power: "
	}

	err := c.ask(prompt, func(answer string) error {
		switch strings.ToLower(answer) {
		case stopWord:
			stop = true
			return nil
		case "f", "forward":
			if c.mode == ModeDirectional {
				q = scpi.Forward
				return nil
			}
		case "r", "reflected":
			if c.mode == ModeDirectional {
				q = scpi.Reflected
				return nil
			}
		}

		if c.mode == ModeAverage {
			q = scpi.Average
			return nil
		}

		return fmt.Errorf("%q is neither F, R nor EXIT", answer)
	})
	if errors.Is(err, io.EOF) {
		return 0, true, nil
	}

	return q, stop, err
}

// Report prints a measurement, e.g. "12.345 Watts".
func (c *Console) Report(m scpi.Measurement) {
	if c.mode == ModeDirectional {
		label := "Forward"
		if m.Quantity == scpi.Reflected {
			label = "Reflected"
		}
		fmt.Fprintf(c.out, "%s: %s\n", label, m)

		return
	}

	fmt.Fprintln(c.out, m.String())
}

func (c *Console) printReport(report *scpi.StatusReport) {
	if report == nil {
		return
	}

	for _, note := range report.Notes() {
		fmt.Fprintf(c.out, "%s\n\n", note)
	}
}

// ask prompts until accept returns nil or the attempts are used up.
func (c *Console) ask(prompt string, accept func(answer string) error) error {
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		if c.interactive {
			fmt.Fprint(c.out, prompt)
		}

		answer, err := c.readLine()
		if err != nil {
			return err
		}

		err = accept(answer)
		if err == nil {
			return nil
		}

		c.logger.Debug("console: rejected input", "attempt", attempt, "error", err)
		fmt.Fprintf(c.out, "Invalid entry: %v\n", err)
	}

	return ErrTooManyAttempts
}

func (c *Console) readLine() (string, error) {
	line, err := c.in.ReadString('\n')
	if err != nil && (!errors.Is(err, io.EOF) || line == "") {
		return "", err
	}

	return strings.TrimSpace(line), nil
}
