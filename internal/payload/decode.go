// Package payload extracts a numeric reading from an MQTT message body.
package payload

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
)

const (
	// RawPath selects the bare-number fast path
	RawPath = "."

	// scratchSize bounds the token copied by the fast path
	scratchSize = 64

	// MaxDocumentSize is the largest body the structured path will parse
	MaxDocumentSize = 4096
)

// Decode returns the numeric value carried by body. An empty path or "."
// means the body is a bare number; otherwise path names a top-level field of
// a JSON object. Any malformed input yields (NaN, false).
func Decode(body []byte, path string) (float64, bool) {
	if path == "" || path == RawPath {
		if v, ok := parseNumberPrefix(body); ok {
			return v, true
		}
		return decodeDocument(body, "")
	}
	return decodeDocument(body, path)
}

// parseNumberPrefix skips leading whitespace, copies the next token into a
// fixed buffer (truncating long tokens) and parses its decimal prefix.
func parseNumberPrefix(body []byte) (float64, bool) {
	var scratch [scratchSize]byte

	i := 0
	for i < len(body) && isSpace(body[i]) {
		i++
	}

	n := 0
	for i < len(body) && n < len(scratch)-1 {
		c := body[i]
		if c == 0 || isSpace(c) || c == ',' || c == '}' || c == ']' {
			break
		}
		scratch[n] = c
		n++
		i++
	}
	if n == 0 {
		return math.NaN(), false
	}

	end := decimalPrefixLen(scratch[:n])
	if end == 0 {
		return math.NaN(), false
	}

	v, err := strconv.ParseFloat(string(scratch[:end]), 64)
	if err != nil || math.IsInf(v, 0) {
		return math.NaN(), false
	}
	return v, true
}

// decimalPrefixLen returns the length of the longest prefix of b that forms a
// decimal number: [sign] digits [. digits] [(e|E) [sign] digits].
// A prefix without any mantissa digit has length 0.
func decimalPrefixLen(b []byte) int {
	i := 0
	if i < len(b) && (b[i] == '+' || b[i] == '-') {
		i++
	}

	digits := 0
	for i < len(b) && isDigit(b[i]) {
		i++
		digits++
	}
	if i < len(b) && b[i] == '.' {
		j := i + 1
		frac := 0
		for j < len(b) && isDigit(b[j]) {
			j++
			frac++
		}
		if digits > 0 || frac > 0 {
			i = j
			digits += frac
		}
	}
	if digits == 0 {
		return 0
	}

	if i < len(b) && (b[i] == 'e' || b[i] == 'E') {
		j := i + 1
		if j < len(b) && (b[j] == '+' || b[j] == '-') {
			j++
		}
		exp := 0
		for j < len(b) && isDigit(b[j]) {
			j++
			exp++
		}
		if exp > 0 {
			i = j
		}
	}
	return i
}

// decodeDocument parses body as JSON. With an empty path the document itself
// must be a number; otherwise path names a top-level numeric field.
func decodeDocument(body []byte, path string) (float64, bool) {
	if len(body) == 0 || len(body) > MaxDocumentSize {
		return math.NaN(), false
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var doc interface{}
	if err := dec.Decode(&doc); err != nil {
		return math.NaN(), false
	}

	if path == "" {
		return numberValue(doc)
	}

	obj, ok := doc.(map[string]interface{})
	if !ok {
		return math.NaN(), false
	}
	field, ok := obj[path]
	if !ok {
		return math.NaN(), false
	}
	return numberValue(field)
}

func numberValue(v interface{}) (float64, bool) {
	n, ok := v.(json.Number)
	if !ok {
		return math.NaN(), false
	}
	f, err := n.Float64()
	if err != nil || math.IsInf(f, 0) {
		return math.NaN(), false
	}
	return f, true
}

func isSpace(c byte) bool {
	switch c {
	case ' ', '\t', '\n', '\r', '\v', '\f':
		return true
	}
	return false
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}
