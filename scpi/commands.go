package scpi

// SCPI commands and queries used by the measurement procedure. The session
// treats them as opaque strings.
const (
	CmdReset    = "*RST"
	CmdClear    = "*CLS"
	CmdInitiate = "INIT"
	// CmdFrequency takes the carrier frequency in MHz as its parameter.
	CmdFrequency = "SENS:FREQ"

	QueryOperationComplete     = "*OPC?"
	QueryStatusByte            = "*STB?"
	QuerySystemError           = "SYST:ERR?"
	QueryQuestionableCondition = "STAT:QUES:COND?"

	QueryFetchAverage   = "FETC:AVER?"
	QueryFetchForward   = "FETC:FORW:AVER?"
	QueryFetchReflected = "FETC:REFL:AVER?"
)
