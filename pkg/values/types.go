// Package values implements the value kinds a property can hold and their
// conversion to and from Cypher literals.
package values

import (
	"reflect"
	"sort"
	"strings"

	"github.com/bratushka/cypher/pkg/errdefs"
)

// Type is the validation and serialization strategy of a property.
type Type interface {
	Name() string
	Accepts() []string
	Normalize(raw any) any
	Validate(v any) error
	ToQueryLiteral(v any) (string, error)
	FromQueryLiteral(text string) (any, error)
}

var (
	Generic  Type = genericType{}
	Boolean  Type = booleanType{}
	Integer  Type = integerType{}
	Float    Type = floatType{}
	String   Type = stringType{}
	Date     Type = dateType{}
	DateTime Type = DateTimeType{}
	UID      Type = uidType{}
)

// Lookup returns the type called name, matched case-insensitively against
// Type.Name. "Generic" is accepted for the generic type.
func Lookup(name string) (Type, bool) {
	for _, t := range []Type{Generic, Boolean, Integer, Float, String, Date, DateTime, UID} {
		if strings.EqualFold(t.Name(), name) {
			return t, true
		}
	}
	if strings.EqualFold(name, "generic") {
		return Generic, true
	}
	return nil, false
}

// Literal normalizes, validates and serializes raw with t.
func Literal(t Type, raw any) (string, error) {
	v := t.Normalize(raw)
	if err := t.Validate(v); err != nil {
		return "", err
	}
	return t.ToQueryLiteral(v)
}

// ListLiteral renders items as a Cypher list, each through t.
func ListLiteral(t Type, items []any) (string, error) {
	parts := make([]string, 0, len(items))
	for _, item := range items {
		lit, err := Literal(t, item)
		if err != nil {
			return "", err
		}
		parts = append(parts, lit)
	}
	return "[" + strings.Join(parts, ", ") + "]", nil
}

// Items flattens a slice or array value into []any. ok is false for
// anything else.
func Items(v any) (items []any, ok bool) {
	if v == nil {
		return nil, false
	}
	if list, isList := v.([]any); isList {
		return list, true
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	if rv.Type().Elem().Kind() == reflect.Uint8 {
		return nil, false
	}
	items = make([]any, rv.Len())
	for i := range items {
		items[i] = rv.Index(i).Interface()
	}
	return items, true
}

// QuoteName backtick-quotes a label or property key, doubling embedded
// backticks.
func QuoteName(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

// genericType accepts anything and renders it by its dynamic kind.
type genericType struct{}

func (genericType) Name() string          { return "Value" }
func (genericType) Accepts() []string     { return []string{"any"} }
func (genericType) Normalize(raw any) any { return raw }
func (genericType) Validate(v any) error  { return nil }

func (genericType) ToQueryLiteral(v any) (string, error) {
	switch x := v.(type) {
	case nil:
		return "null", nil
	case bool:
		return Boolean.ToQueryLiteral(x)
	case string:
		return String.ToQueryLiteral(x)
	case CalendarDate:
		return dateType{}.ToQueryLiteral(x)
	}
	if isInteger(v) {
		return Literal(Integer, v)
	}
	if isFloat(v) {
		return Literal(Float, v)
	}
	if t, ok := asTime(v); ok {
		return Literal(DateTime, t)
	}
	if items, ok := Items(v); ok {
		return ListLiteral(Generic, items)
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Map && rv.Type().Key().Kind() == reflect.String {
		return mapLiteral(rv)
	}
	if s, ok := v.(interface{ String() string }); ok {
		return String.ToQueryLiteral(s.String())
	}
	return "", errdefs.TypeMismatch(v, "Value", "bool", "int", "float64", "string", "slice", "map[string]any")
}

func (genericType) FromQueryLiteral(text string) (any, error) {
	return decodeJSONLiteral(text)
}

func mapLiteral(rv reflect.Value) (string, error) {
	keys := make([]string, 0, rv.Len())
	for _, k := range rv.MapKeys() {
		keys = append(keys, k.String())
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		lit, err := Generic.ToQueryLiteral(rv.MapIndex(reflect.ValueOf(k).Convert(rv.Type().Key())).Interface())
		if err != nil {
			return "", err
		}
		parts = append(parts, QuoteName(k)+": "+lit)
	}
	if len(parts) == 0 {
		return "{}", nil
	}
	return "{ " + strings.Join(parts, ", ") + " }", nil
}
