package scpi

import "strconv"

// Quantity selects the power value fetched at the end of a cycle.
type Quantity int

const (
	// Average is the undifferentiated average power.
	Average Quantity = iota
	// Forward is the average forward power of a directional sensor.
	Forward
	// Reflected is the average reflected power of a directional sensor.
	Reflected
)

func (q Quantity) String() string {
	switch q {
	case Average:
		return "average"
	case Forward:
		return "forward"
	case Reflected:
		return "reflected"
	default:
		return "Quantity(" + strconv.Itoa(int(q)) + ")"
	}
}

// Query returns the fetch query of the quantity.
func (q Quantity) Query() (string, bool) {
	switch q {
	case Average:
		return QueryFetchAverage, true
	case Forward:
		return QueryFetchForward, true
	case Reflected:
		return QueryFetchReflected, true
	default:
		return "", false
	}
}

// Measurement is one fetched power value.
type Measurement struct {
	Quantity Quantity
	// Watts is the parsed value.
	Watts float64
	// Raw is the reply as sent by the instrument, trimmed.
	Raw string
}

// String formats the value the way the operator sees it, e.g. "12.345 Watts".
func (m Measurement) String() string {
	return strconv.FormatFloat(m.Watts, 'g', -1, 64) + " Watts"
}
