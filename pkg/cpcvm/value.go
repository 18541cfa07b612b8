// Package cpcvm implements the execution core of a CPC-style BASIC virtual
// machine: the cooperative stop scheduler, program and sound-queue timers,
// the error/break state machine, numeric coercion, memory, text windows and
// the resumable control-code interpreter used by PRINT.
package cpcvm

import (
	"math"
	"strconv"
	"strings"
)

// BASICValue represents a value within the BASIC interpreter (number or string).
type BASICValue struct {
	NumValue  float64 `json:"num,omitempty"`
	StrValue  string  `json:"str,omitempty"`
	IsNumeric bool    `json:"isNumeric"`
}

// Num creates a numeric value.
func Num(n float64) BASICValue { return BASICValue{NumValue: n, IsNumeric: true} }

// Str creates a string value.
func Str(s string) BASICValue { return BASICValue{StrValue: s} }

// Interface returns the plain Go value (float64 or string).
func (v BASICValue) Interface() any {
	if v.IsNumeric {
		return v.NumValue
	}
	return v.StrValue
}

// VarType is the BASIC type of a variable.
type VarType byte

const (
	TypeReal    VarType = '!'
	TypeInteger VarType = '%'
	TypeString  VarType = '$'
)

// toNumber accepts every numeric shape generated code may pass in.
func toNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case bool:
		// BASIC truth values: true is -1
		if n {
			return -1, true
		}
		return 0, true
	case BASICValue:
		if n.IsNumeric {
			return n.NumValue, true
		}
	}
	return 0, false
}

func toValue(v any) (BASICValue, bool) {
	switch s := v.(type) {
	case string:
		return Str(s), true
	case BASICValue:
		return s, true
	}
	if n, ok := toNumber(v); ok {
		return Num(n), true
	}
	return BASICValue{}, false
}

// ParseNumber converts BASIC number notation (decimal, &H hex, &hex, &X binary)
// the way VAL, READ and INPUT read numbers. Empty input is 0.
func ParseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, true
	}
	neg := false
	if s[0] == '-' || s[0] == '+' {
		neg = s[0] == '-'
		s = strings.TrimSpace(s[1:])
	}
	var n float64
	upper := strings.ToUpper(s)
	switch {
	case strings.HasPrefix(upper, "&X"):
		u, err := strconv.ParseUint(upper[2:], 2, 16)
		if err != nil {
			return 0, false
		}
		n = float64(u)
	case strings.HasPrefix(upper, "&H"):
		u, err := strconv.ParseUint(upper[2:], 16, 16)
		if err != nil {
			return 0, false
		}
		n = float64(u)
	case strings.HasPrefix(upper, "&"):
		u, err := strconv.ParseUint(upper[1:], 16, 16)
		if err != nil {
			return 0, false
		}
		n = float64(u)
	default:
		f, err := strconv.ParseFloat(s, 64)
		if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
			return 0, false
		}
		n = f
	}
	if neg {
		n = -n
	}
	return n, true
}

// numberToString formats like the CPC does without the sign padding:
// integers plainly, reals with 9 significant digits and no leading zero.
func numberToString(n float64) string {
	if n == math.Trunc(n) && math.Abs(n) < 1e9 {
		return strconv.FormatInt(int64(n), 10)
	}
	s := strconv.FormatFloat(n, 'G', 9, 64)
	if strings.Contains(s, "E") {
		mant, exp, _ := strings.Cut(s, "E")
		sign := exp[0]
		digits := strings.TrimLeft(exp[1:], "0")
		if len(digits) < 2 {
			digits = strings.Repeat("0", 2-len(digits)) + digits
		}
		s = mant + "E" + string(sign) + digits
	}
	if strings.HasPrefix(s, "0.") {
		s = s[1:]
	} else if strings.HasPrefix(s, "-0.") {
		s = "-" + s[2:]
	}
	return s
}

// formatPrintNumber is STR$ plus the trailing blank PRINT adds after numbers.
func formatPrintNumber(n float64) string {
	return formatStrNumber(n) + " "
}

func formatStrNumber(n float64) string {
	s := numberToString(n)
	if n >= 0 {
		s = " " + s
	}
	return s
}

// lineNumber extracts the numeric BASIC line from a label such as "100" or "100s2".
func lineNumber(label string) int {
	end := 0
	for end < len(label) && label[end] >= '0' && label[end] <= '9' {
		end++
	}
	n, err := strconv.Atoi(label[:end])
	if err != nil {
		return 0
	}
	return n
}
