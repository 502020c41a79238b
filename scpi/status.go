package scpi

import (
	"fmt"
	"strconv"
	"strings"
)

// Status byte bits interpreted by the status check. Other bits are ignored.
const (
	// StatusErrorQueueBit is set while the error queue holds entries.
	StatusErrorQueueBit uint = 2
	// StatusQuestionableBit summarises the questionable status register.
	StatusQuestionableBit uint = 3
)

// Questionable condition register bits with a diagnostic note.
const (
	CondCalFrequencyBit uint = 3
	CondFrequencyBit    uint = 5
	CondCalibrationBit  uint = 8
)

// conditionNotes lists the known condition bits in ascending order.
var conditionNotes = []QuestionableCondition{
	{Bit: CondCalFrequencyBit, Note: "Calibration not valid at measured frequency"},
	{Bit: CondFrequencyBit, Note: "Insufficient RF amplitude or duration to measure frequency"},
	{Bit: CondCalibrationBit, Note: "Calibration not valid"},
}

// StatusPolicy selects how the error and questionable branches of the status
// check combine when both status bits are set.
//
// Instrument procedures disagree on this point: one drains the error queue
// and then independently reads the condition register, another treats the
// two as mutually exclusive with the error queue taking precedence.
type StatusPolicy int

const (
	// PolicyExclusive runs the error drain when bit 2 is set and reads the
	// condition register only when bit 2 is clear and bit 3 is set.
	PolicyExclusive StatusPolicy = iota
	// PolicyIndependent evaluates bit 2 and bit 3 separately, so both
	// branches run when both bits are set.
	PolicyIndependent
)

func (p StatusPolicy) String() string {
	switch p {
	case PolicyExclusive:
		return "exclusive"
	case PolicyIndependent:
		return "independent"
	default:
		return "StatusPolicy(" + strconv.Itoa(int(p)) + ")"
	}
}

// ParseStatusPolicy converts "exclusive" or "independent" into a StatusPolicy.
func ParseStatusPolicy(name string) (StatusPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "exclusive":
		return PolicyExclusive, nil
	case "independent":
		return PolicyIndependent, nil
	default:
		return PolicyExclusive, fmt.Errorf("scpi: unknown status policy %q", name)
	}
}

// StatusReport is the outcome of one status check.
type StatusReport struct {
	// Status is the status byte returned by *STB?.
	Status int
	// Errors holds every drained instrument error, in queue order.
	Errors []InstrumentError
	// ConditionRead is true when STAT:QUES:COND? was queried.
	ConditionRead bool
	// Condition is the questionable condition register, valid when ConditionRead is true.
	Condition int
	// Conditions holds the decoded notes in ascending bit order.
	Conditions []QuestionableCondition
}

// HasErrorQueue reports whether the error queue bit is set in the status byte.
func (r *StatusReport) HasErrorQueue() bool {
	return bitSet(r.Status, StatusErrorQueueBit)
}

// HasQuestionable reports whether the questionable summary bit is set in the status byte.
func (r *StatusReport) HasQuestionable() bool {
	return bitSet(r.Status, StatusQuestionableBit)
}

// Notes returns the human-readable lines of the report: one per instrument
// error followed by one per questionable condition.
func (r *StatusReport) Notes() []string {
	notes := make([]string, 0, len(r.Errors)+len(r.Conditions))
	for _, e := range r.Errors {
		if e.Message == "" {
			notes = append(notes, fmt.Sprintf("Error %d", e.Code))
			continue
		}
		notes = append(notes, fmt.Sprintf("Error %d: %s", e.Code, e.Message))
	}
	for _, c := range r.Conditions {
		notes = append(notes, c.String())
	}

	return notes
}

// DecodeConditions returns the diagnostic notes for the known bits set in
// cond, in ascending bit order. Unknown bits are ignored.
func DecodeConditions(cond int) []QuestionableCondition {
	var out []QuestionableCondition
	for _, c := range conditionNotes {
		if bitSet(cond, c.Bit) {
			out = append(out, c)
		}
	}

	return out
}

// ParseErrorRecord parses a SYST:ERR? reply such as `-113,"Undefined header"`.
//
// The code is the leading comma-separated integer; the message is the rest
// of the reply with surrounding quotes removed.
func ParseErrorRecord(reply string) (InstrumentError, error) {
	reply = strings.TrimSpace(reply)
	codeText, message, _ := strings.Cut(reply, ",")

	code, err := strconv.Atoi(strings.TrimSpace(codeText))
	if err != nil {
		return InstrumentError{}, &ProtocolViolation{Command: QuerySystemError, Reply: reply, Err: err}
	}

	message = strings.TrimSpace(message)
	message = strings.TrimPrefix(message, `"`)
	message = strings.TrimSuffix(message, `"`)

	return InstrumentError{Code: code, Message: message}, nil
}

// CheckStatus reads the status byte and reacts to it according to the
// session's status policy.
func (s *Session) CheckStatus() (*StatusReport, error) {
	status, err := s.queryInt(QueryStatusByte)
	if err != nil {
		return nil, err
	}

	report := &StatusReport{Status: status}

	drain := report.HasErrorQueue()
	inspect := report.HasQuestionable()
	if s.cfg.policy == PolicyExclusive && drain {
		inspect = false
	}

	if drain {
		report.Errors, err = s.DrainErrors()
		if err != nil {
			return nil, err
		}
	}

	if inspect {
		cond, err := s.queryInt(QueryQuestionableCondition)
		if err != nil {
			return nil, err
		}
		report.ConditionRead = true
		report.Condition = cond
		report.Conditions = DecodeConditions(cond)

		for _, c := range report.Conditions {
			s.metrics.ConditionCount.Add(1)
			s.logger.Warn("scpi: questionable condition", "bit", c.Bit, "note", c.Note)
		}
	}

	s.logger.Debug("scpi: status checked",
		"status", status,
		"policy", s.cfg.policy.String(),
		"errors", len(report.Errors),
		"conditions", len(report.Conditions))

	return report, nil
}

// DrainErrors queries SYST:ERR? until the instrument reports code 0 and
// returns the nonzero entries in the order they were read.
func (s *Session) DrainErrors() ([]InstrumentError, error) {
	var drained []InstrumentError

	for {
		reply, err := s.Query(QuerySystemError)
		if err != nil {
			return drained, err
		}

		rec, err := ParseErrorRecord(reply)
		if err != nil {
			return drained, err
		}

		if rec.Code == 0 {
			return drained, nil
		}

		if s.cfg.drainLimit > 0 && len(drained) >= s.cfg.drainLimit {
			return drained, &ProtocolViolation{Command: QuerySystemError, Reply: reply, Err: ErrDrainLimit}
		}

		drained = append(drained, rec)
		s.metrics.InstrumentErrorCount.Add(1)
		s.logger.Warn("scpi: instrument error", "code", rec.Code, "message", rec.Message)
	}
}

func bitSet(v int, bit uint) bool {
	return v&(1<<bit) != 0
}
