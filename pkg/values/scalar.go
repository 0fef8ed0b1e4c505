package values

import (
	"bytes"
	"encoding/json"
	"math"
	"math/big"
	"reflect"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/bratushka/cypher/pkg/errdefs"
)

type booleanType struct{}

func (booleanType) Name() string      { return "Boolean" }
func (booleanType) Accepts() []string { return []string{"any"} }

// Normalize applies truthiness: nil, false, zero numbers and empty strings or
// collections are false, everything else is true.
func (booleanType) Normalize(raw any) any {
	switch x := raw.(type) {
	case nil:
		return false
	case bool:
		return x
	case string:
		return x != ""
	case *big.Int:
		return x != nil && x.Sign() != 0
	}
	rv := reflect.ValueOf(raw)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int() != 0
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return rv.Uint() != 0
	case reflect.Float32, reflect.Float64:
		return rv.Float() != 0
	case reflect.Slice, reflect.Map, reflect.Array, reflect.Chan:
		return rv.Len() != 0
	case reflect.Pointer, reflect.Interface:
		return !rv.IsNil()
	}
	return true
}

func (booleanType) Validate(v any) error {
	if _, ok := v.(bool); !ok {
		return errdefs.TypeMismatch(v, "Boolean", "bool")
	}
	return nil
}

func (t booleanType) ToQueryLiteral(v any) (string, error) {
	if err := t.Validate(v); err != nil {
		return "", err
	}
	return strconv.FormatBool(v.(bool)), nil
}

func (booleanType) FromQueryLiteral(text string) (any, error) {
	switch strings.TrimSpace(text) {
	case "true":
		return true, nil
	case "false":
		return false, nil
	}
	return nil, errdefs.TypeMismatch(text, "Boolean", "true", "false")
}

var (
	minInt64 = big.NewInt(math.MinInt64)
	maxInt64 = big.NewInt(math.MaxInt64)
)

type integerType struct{}

func (integerType) Name() string { return "Integer" }
func (integerType) Accepts() []string {
	return []string{"int", "int8", "int16", "int32", "int64", "uint", "uint8", "uint16", "uint32", "uint64", "*big.Int"}
}

// Normalize converts in-range integers to int64. Out of range values keep
// their type so Validate can report them.
func (integerType) Normalize(raw any) any {
	switch x := raw.(type) {
	case *big.Int:
		if x != nil && x.IsInt64() {
			return x.Int64()
		}
		return raw
	case bool:
		return raw
	}
	rv := reflect.ValueOf(raw)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		if rv.Uint() <= math.MaxInt64 {
			return int64(rv.Uint())
		}
	}
	return raw
}

func (t integerType) Validate(v any) error {
	if !isInteger(v) {
		return errdefs.TypeMismatch(v, "Integer", t.Accepts()...)
	}
	switch x := v.(type) {
	case *big.Int:
		if x == nil || x.Cmp(minInt64) < 0 || x.Cmp(maxInt64) > 0 {
			return &errdefs.ConstraintError{Value: x, Reason: "Integers must fit into 64 bits."}
		}
	default:
		rv := reflect.ValueOf(v)
		if k := rv.Kind(); k >= reflect.Uint && k <= reflect.Uintptr && rv.Uint() > math.MaxInt64 {
			return &errdefs.ConstraintError{Value: v, Reason: "Integers must fit into 64 bits."}
		}
	}
	return nil
}

func (t integerType) ToQueryLiteral(v any) (string, error) {
	if err := t.Validate(v); err != nil {
		return "", err
	}
	switch x := t.Normalize(v).(type) {
	case int64:
		return strconv.FormatInt(x, 10), nil
	case *big.Int:
		return x.String(), nil
	}
	return "", errdefs.TypeMismatch(v, "Integer", t.Accepts()...)
}

func (integerType) FromQueryLiteral(text string) (any, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(text), 10, 64)
	if err != nil {
		return nil, &errdefs.ConstraintError{Value: text, Reason: err.Error()}
	}
	return n, nil
}

type floatType struct{}

func (floatType) Name() string { return "Float" }
func (floatType) Accepts() []string {
	return []string{"float32", "float64", "int", "int64", "uint64"}
}

func (floatType) Normalize(raw any) any {
	if _, ok := raw.(bool); ok {
		return raw
	}
	if x, ok := raw.(*big.Int); ok && x != nil {
		f, _ := new(big.Float).SetInt(x).Float64()
		return f
	}
	rv := reflect.ValueOf(raw)
	switch rv.Kind() {
	case reflect.Float32:
		// Go through the shortest decimal so 1.1 stays 1.1.
		f, _ := strconv.ParseFloat(strconv.FormatFloat(rv.Float(), 'g', -1, 32), 64)
		return f
	case reflect.Float64:
		return rv.Float()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return float64(rv.Uint())
	}
	return raw
}

func (t floatType) Validate(v any) error {
	f, ok := v.(float64)
	if !ok {
		if isFloat(v) || isInteger(v) {
			return nil
		}
		return errdefs.TypeMismatch(v, "Float", t.Accepts()...)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return &errdefs.ConstraintError{Value: f, Reason: "Cypher has no literal for NaN or infinity."}
	}
	return nil
}

func (t floatType) ToQueryLiteral(v any) (string, error) {
	if err := t.Validate(v); err != nil {
		return "", err
	}
	f, ok := t.Normalize(v).(float64)
	if !ok {
		return "", errdefs.TypeMismatch(v, "Float", t.Accepts()...)
	}
	if err := t.Validate(f); err != nil {
		return "", err
	}
	return FormatFloat(f), nil
}

func (floatType) FromQueryLiteral(text string) (any, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
	if err != nil {
		return nil, &errdefs.ConstraintError{Value: text, Reason: err.Error()}
	}
	return f, nil
}

// FormatFloat renders f as a Cypher float literal that always carries a
// fractional part or an exponent.
func FormatFloat(f float64) string {
	abs := math.Abs(f)
	if abs == 0 || (abs >= 1e-4 && abs < 1e16) {
		s := strconv.FormatFloat(f, 'f', -1, 64)
		if !strings.Contains(s, ".") {
			s += ".0"
		}
		return s
	}
	s := strconv.FormatFloat(f, 'e', -1, 64)
	return strings.Replace(s, "e+", "e", 1)
}

type stringType struct{}

func (stringType) Name() string          { return "String" }
func (stringType) Accepts() []string     { return []string{"string"} }
func (stringType) Normalize(raw any) any { return raw }

func (stringType) Validate(v any) error {
	if _, ok := v.(string); !ok {
		return errdefs.TypeMismatch(v, "String", "string")
	}
	return nil
}

func (t stringType) ToQueryLiteral(v any) (string, error) {
	if err := t.Validate(v); err != nil {
		return "", err
	}
	return QuoteString(v.(string)), nil
}

func (stringType) FromQueryLiteral(text string) (any, error) {
	var s string
	if err := json.Unmarshal([]byte(strings.TrimSpace(text)), &s); err != nil {
		return nil, &errdefs.ConstraintError{Value: text, Reason: err.Error()}
	}
	return s, nil
}

// QuoteString double-quotes s with JSON escaping, leaving non-ASCII runes
// and HTML characters as they are.
func QuoteString(s string) string {
	var b strings.Builder
	b.WriteByte('"')
	for {
		// The JSON encoder escapes these two line separators unconditionally.
		i := strings.IndexAny(s, "\u2028\u2029")
		if i < 0 {
			b.WriteString(jsonEscape(s))
			break
		}
		b.WriteString(jsonEscape(s[:i]))
		r, n := utf8.DecodeRuneInString(s[i:])
		b.WriteRune(r)
		s = s[i+n:]
	}
	b.WriteByte('"')
	return b.String()
}

// jsonEscape returns the JSON encoding of s without the surrounding quotes.
func jsonEscape(s string) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	// Encoding a string cannot fail.
	_ = enc.Encode(s)
	out := strings.TrimSuffix(buf.String(), "\n")
	return out[1 : len(out)-1]
}

// uidType holds identifiers: any non-empty string or a uuid.UUID.
type uidType struct{}

func (uidType) Name() string      { return "UID" }
func (uidType) Accepts() []string { return []string{"string", "uuid.UUID"} }

func (uidType) Normalize(raw any) any {
	switch x := raw.(type) {
	case uuid.UUID:
		return x.String()
	case *uuid.UUID:
		if x != nil {
			return x.String()
		}
	}
	return raw
}

func (uidType) Validate(v any) error {
	s, ok := v.(string)
	if !ok {
		return errdefs.TypeMismatch(v, "UID", "string", "uuid.UUID")
	}
	if s == "" {
		return &errdefs.ConstraintError{Value: s, Reason: "Identifiers cannot be empty."}
	}
	return nil
}

func (t uidType) ToQueryLiteral(v any) (string, error) {
	v = t.Normalize(v)
	if err := t.Validate(v); err != nil {
		return "", err
	}
	return QuoteString(v.(string)), nil
}

func (uidType) FromQueryLiteral(text string) (any, error) {
	return String.FromQueryLiteral(text)
}

// NewUID returns a random identifier suitable as a UID default.
func NewUID() any { return uuid.NewString() }

func isInteger(v any) bool {
	if x, ok := v.(*big.Int); ok {
		return x != nil
	}
	if v == nil {
		return false
	}
	switch reflect.ValueOf(v).Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return true
	}
	return false
}

func isFloat(v any) bool {
	if v == nil {
		return false
	}
	k := reflect.ValueOf(v).Kind()
	return k == reflect.Float32 || k == reflect.Float64
}

func decodeJSONLiteral(text string) (any, error) {
	dec := json.NewDecoder(strings.NewReader(strings.TrimSpace(text)))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, &errdefs.ConstraintError{Value: text, Reason: err.Error()}
	}
	return fromJSONNumbers(v), nil
}

// fromJSONNumbers replaces json.Number leaves with int64 or float64.
func fromJSONNumbers(v any) any {
	switch x := v.(type) {
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return i
		}
		f, _ := x.Float64()
		return f
	case []any:
		for i := range x {
			x[i] = fromJSONNumbers(x[i])
		}
	case map[string]any:
		for k := range x {
			x[k] = fromJSONNumbers(x[k])
		}
	}
	return v
}
