// Package size extracts flash and RAM usage figures from compiler output.
//
// Two interchangeable strategies are provided: scraping the human-readable
// console output of arduino-cli, and summing section sizes reported by an
// architecture-specific binary size tool. The strategy is selected per board
// family, because some platforms omit RAM reporting or leave the data
// segment out of the flash total in the console output.
package size

import (
	"fmt"
	"strconv"
)

// NotApplicableIndicator is the serialized form of a metric the toolchain
// did not report. It is distinct from zero: conflating the two would later
// produce a bogus 100%-reduction delta.
const NotApplicableIndicator = "N/A"

// Metric is a single memory usage figure. The zero value is NotApplicable.
type Metric struct {
	value int64
	known bool
}

// NotApplicable is the "metric unavailable" sentinel.
var NotApplicable = Metric{}

// Bytes returns a known metric of n bytes.
func Bytes(n int64) Metric {
	return Metric{value: n, known: true}
}

// Known reports whether the metric carries a value.
func (m Metric) Known() bool { return m.known }

// Value returns the byte count. Only meaningful when Known is true.
func (m Metric) Value() int64 { return m.value }

// Sub returns the delta m - prev. If either operand is NotApplicable the
// delta is NotApplicable. The result is signed: growth is positive,
// shrinkage negative, no clamping.
func (m Metric) Sub(prev Metric) Metric {
	if !m.known || !prev.known {
		return NotApplicable
	}
	return Bytes(m.value - prev.value)
}

// String renders the byte count, or the N/A indicator.
func (m Metric) String() string {
	if !m.known {
		return NotApplicableIndicator
	}
	return strconv.FormatInt(m.value, 10)
}

// MarshalJSON serializes as a JSON number, or the literal string "N/A".
func (m Metric) MarshalJSON() ([]byte, error) {
	if !m.known {
		return []byte(`"` + NotApplicableIndicator + `"`), nil
	}
	return []byte(strconv.FormatInt(m.value, 10)), nil
}

// UnmarshalJSON accepts a JSON number or the literal string "N/A".
func (m *Metric) UnmarshalJSON(data []byte) error {
	s := string(data)
	if s == `"`+NotApplicableIndicator+`"` {
		*m = NotApplicable
		return nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid size metric %s: %w", s, err)
	}
	*m = Bytes(n)
	return nil
}

// Usage holds the memory figures extracted for one compilation.
type Usage struct {
	Flash Metric
	RAM   Metric
}
