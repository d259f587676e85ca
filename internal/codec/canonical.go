// Package codec implements the canonical JSON serialization and digesting
// that the rest of the authority core relies on to agree byte-for-byte on
// what a given value means: sorted object keys at every depth, UTF-8 only,
// integers or fixed-precision decimals (never scientific notation), and a
// single trailing LF.
package codec

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"unicode/utf8"
)

// Canonicalize serializes value into its canonical byte form. value may be
// a Go struct (encoded via its json tags first) or an already-decoded
// generic value (map[string]any, []any, json.Number, string, bool, nil).
func Canonicalize(value any) ([]byte, error) {
	generic, err := toGeneric(value)
	if err != nil {
		return nil, newEncodingError("canonicalize", err)
	}

	var buf bytes.Buffer
	if err := writeCanonical(&buf, generic); err != nil {
		return nil, newEncodingError("canonicalize", err)
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

// Digest returns SHA-256(Canonicalize(value)).
func Digest(value any) ([32]byte, error) {
	bs, err := Canonicalize(value)
	if err != nil {
		return [32]byte{}, err
	}
	return sha256Sum(bs), nil
}

// VerifyCanonical reports whether data is already in canonical form: it
// parses data and re-serializes it, then compares byte-for-byte.
func VerifyCanonical(data []byte) bool {
	var generic any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&generic); err != nil {
		return false
	}
	reserialized, err := Canonicalize(generic)
	if err != nil {
		return false
	}
	return bytes.Equal(trimTrailingLF(data), trimTrailingLF(reserialized))
}

func trimTrailingLF(b []byte) []byte {
	if len(b) > 0 && b[len(b)-1] == '\n' {
		return b[:len(b)-1]
	}
	return b
}

// toGeneric converts an arbitrary Go value into the generic representation
// writeCanonical understands, by round-tripping through encoding/json with
// UseNumber so integers don't turn into float64 and lose precision.
func toGeneric(value any) (any, error) {
	switch value.(type) {
	case json.Number, string, bool, nil:
		return value, nil
	}

	marshaled, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("marshal: %w", err)
	}

	var generic any
	dec := json.NewDecoder(bytes.NewReader(marshaled))
	dec.UseNumber()
	if err := dec.Decode(&generic); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	return generic, nil
}

func writeCanonical(buf *bytes.Buffer, value any) error {
	switch v := value.(type) {
	case nil:
		buf.WriteString("null")
		return nil
	case bool:
		if v {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
		return nil
	case json.Number:
		return writeCanonicalNumber(buf, v)
	case float64:
		return writeCanonicalNumber(buf, json.Number(fmt.Sprintf("%v", v)))
	case string:
		return writeCanonicalString(buf, v)
	case []any:
		buf.WriteByte('[')
		for i, elem := range v {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeCanonical(buf, elem); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
		return nil
	case map[string]any:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeCanonicalString(buf, k); err != nil {
				return err
			}
			buf.WriteByte(':')
			if err := writeCanonical(buf, v[k]); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
		return nil
	default:
		return fmt.Errorf("unsupported value type %T", value)
	}
}

func writeCanonicalNumber(buf *bytes.Buffer, n json.Number) error {
	s := n.String()
	if f, err := n.Float64(); err == nil {
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return fmt.Errorf("non-representable number %q", s)
		}
	}
	if _, err := n.Int64(); err == nil {
		buf.WriteString(s)
		return nil
	}
	// Fixed-precision decimal: reject exponent notation outright, it is
	// never produced by canonical writers and never accepted on read.
	for _, r := range s {
		if r == 'e' || r == 'E' {
			return fmt.Errorf("scientific notation not allowed: %q", s)
		}
	}
	buf.WriteString(s)
	return nil
}

func writeCanonicalString(buf *bytes.Buffer, s string) error {
	if !utf8.ValidString(s) {
		return fmt.Errorf("invalid UTF-8 string")
	}
	marshaled, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal string: %w", err)
	}
	buf.Write(marshaled)
	return nil
}
