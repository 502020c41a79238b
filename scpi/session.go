package scpi

import (
	"context"
	"strconv"
	"strings"

	"github.com/arloliu/go-scpi/link"
	"github.com/arloliu/go-scpi/logger"
)

// Selector is asked once per cycle, after the status check, which quantity
// to fetch. Returning stop=true ends the session without fetching.
//
// Implementations are expected to validate operator input themselves; the
// session only acts on the returned selection.
type Selector interface {
	Select(ctx context.Context, report *StatusReport) (q Quantity, stop bool, err error)
}

// SelectorFunc adapts a function to the Selector interface.
type SelectorFunc func(ctx context.Context, report *StatusReport) (Quantity, bool, error)

func (f SelectorFunc) Select(ctx context.Context, report *StatusReport) (Quantity, bool, error) {
	return f(ctx, report)
}

// Operator is the operator-facing collaborator of [Session.Run].
type Operator interface {
	Selector
	// Report receives every fetched measurement.
	Report(m Measurement)
}

// CycleResult is the outcome of one measurement cycle.
type CycleResult struct {
	Status *StatusReport
	// Measurement is nil when the operator stopped the session.
	Measurement *Measurement
	Stopped     bool
}

// Session runs the SCPI measurement procedure over a link it exclusively owns.
//
// A Session is not safe for concurrent use: the procedure is strictly
// sequential and every query is paired with exactly one reply.
type Session struct {
	link   link.Link
	cfg    *sessionConfig
	logger logger.Logger

	initialized bool

	metrics SessionMetrics
}

// NewSession creates a session over l. The session takes ownership of l and
// closes it in [Session.Close].
func NewSession(l link.Link, opts ...SessionOption) (*Session, error) {
	if l == nil {
		return nil, ErrLinkNil
	}

	cfg := defaultSessionConfig()
	for _, opt := range opts {
		if err := opt.apply(cfg); err != nil {
			return nil, err
		}
	}

	return &Session{
		link:   l,
		cfg:    cfg,
		logger: cfg.logger,
	}, nil
}

// Command sends a command that has no reply.
func (s *Session) Command(cmd string) error {
	return s.link.Send(cmd)
}

// Query sends cmd and reads exactly one reply, trimmed of whitespace and
// line terminators.
func (s *Session) Query(cmd string) (string, error) {
	if err := s.link.Send(cmd); err != nil {
		return "", err
	}

	reply, err := s.link.Receive()
	if err != nil {
		return "", err
	}
	s.metrics.QueryCount.Add(1)

	return strings.TrimSpace(reply), nil
}

func (s *Session) queryInt(cmd string) (int, error) {
	reply, err := s.Query(cmd)
	if err != nil {
		return 0, err
	}

	v, err := strconv.Atoi(reply)
	if err != nil {
		return 0, &ProtocolViolation{Command: cmd, Reply: reply, Err: err}
	}

	return v, nil
}

// Initialize restores the default configuration, clears the status
// structures and applies the frequency tracking choice:
//
//	*RST, settle delay, *CLS, [SENS:FREQ <MHz>]
//
// It runs once per session; later calls return nil without touching the link.
func (s *Session) Initialize(ctx context.Context) error {
	if s.initialized {
		return nil
	}

	if err := s.Command(CmdReset); err != nil {
		return err
	}

	if err := s.cfg.sleep(ctx, s.cfg.settleDelay); err != nil {
		return err
	}

	if err := s.Command(CmdClear); err != nil {
		return err
	}

	if mhz, ok := s.FrequencyMHz(); ok {
		if err := s.Command(CmdFrequency + " " + strconv.FormatFloat(mhz, 'f', -1, 64)); err != nil {
			return err
		}
		s.logger.Info("scpi: frequency fixed", "mhz", mhz)
	} else {
		s.logger.Info("scpi: frequency auto tracking")
	}

	s.initialized = true

	return nil
}

// Cycle performs one measurement cycle:
//
//	settle delay, INIT, *OPC?, status check, selection, FETC:...AVER?
//
// A link failure or protocol violation aborts the cycle before the fetch.
// Once INIT has been sent the cycle runs to completion regardless of ctx;
// ctx only interrupts the leading settle delay and is handed to sel.
func (s *Session) Cycle(ctx context.Context, sel Selector) (*CycleResult, error) {
	if !s.initialized {
		return nil, ErrNotInitialized
	}
	if sel == nil {
		return nil, ErrSelectorNil
	}

	if err := s.cfg.sleep(ctx, s.cfg.settleDelay); err != nil {
		return nil, err
	}

	s.metrics.CycleCount.Add(1)

	if err := s.Command(CmdInitiate); err != nil {
		return nil, err
	}

	// The reply content is irrelevant; its arrival is the completion barrier.
	opc, err := s.Query(QueryOperationComplete)
	if err != nil {
		return nil, err
	}
	if opc == "" {
		return nil, &ProtocolViolation{Command: QueryOperationComplete, Reply: opc, Err: ErrEmptyReply}
	}

	report, err := s.CheckStatus()
	if err != nil {
		return nil, err
	}

	q, stop, err := sel.Select(ctx, report)
	if err != nil {
		return nil, err
	}
	if stop {
		s.logger.Info("scpi: stop requested")

		return &CycleResult{Status: report, Stopped: true}, nil
	}

	m, err := s.Fetch(q)
	if err != nil {
		return nil, err
	}

	return &CycleResult{Status: report, Measurement: &m}, nil
}

// Fetch reads the last measured average power of q.
func (s *Session) Fetch(q Quantity) (Measurement, error) {
	query, ok := q.Query()
	if !ok {
		return Measurement{}, ErrUnknownQuantity
	}

	reply, err := s.Query(query)
	if err != nil {
		return Measurement{}, err
	}

	watts, err := strconv.ParseFloat(reply, 64)
	if err != nil {
		return Measurement{}, &ProtocolViolation{Command: query, Reply: reply, Err: err}
	}

	s.metrics.MeasurementCount.Add(1)
	s.logger.Info("scpi: measurement", "quantity", q.String(), "watts", watts)

	return Measurement{Quantity: q, Watts: watts, Raw: reply}, nil
}

// Run initializes the instrument and repeats measurement cycles until op
// requests a stop, a fatal error occurs or ctx is done between cycles.
//
// A stop request returns nil; cancellation returns ctx.Err().
func (s *Session) Run(ctx context.Context, op Operator) error {
	if op == nil {
		return ErrSelectorNil
	}

	if err := s.Initialize(ctx); err != nil {
		return err
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		res, err := s.Cycle(ctx, op)
		if err != nil {
			s.logger.Error("scpi: measurement cycle aborted", "error", err)

			return err
		}

		if res.Stopped {
			return nil
		}

		op.Report(*res.Measurement)
	}
}

// FrequencyMHz returns the fixed carrier frequency, or false when the
// sensor tracks the frequency automatically.
func (s *Session) FrequencyMHz() (float64, bool) {
	if s.cfg.frequencyMHz == nil {
		return 0, false
	}

	return *s.cfg.frequencyMHz, true
}

// Policy returns the status policy of the session.
func (s *Session) Policy() StatusPolicy {
	return s.cfg.policy
}

// Initialized reports whether Initialize has completed.
func (s *Session) Initialized() bool {
	return s.initialized
}

// GetMetrics returns the metrics of the session.
func (s *Session) GetMetrics() *SessionMetrics {
	return &s.metrics
}

// GetLogger returns the logger of the session.
func (s *Session) GetLogger() logger.Logger {
	return s.logger
}

// Close closes the underlying link.
func (s *Session) Close() error {
	return s.link.Close()
}
