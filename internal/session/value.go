package session

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

type ValueKind uint8

const (
	KindInvalid ValueKind = iota
	KindString
	KindBool
	KindInt
	KindStrings
)

// Value is the closed set of types a session value may hold.
type Value struct {
	kind ValueKind
	s    string
	b    bool
	i    int64
	list []string
}

func String(v string) Value { return Value{kind: KindString, s: v} }
func Bool(v bool) Value     { return Value{kind: KindBool, b: v} }
func Int(v int64) Value     { return Value{kind: KindInt, i: v} }

func Strings(v []string) Value {
	return Value{kind: KindStrings, list: append([]string(nil), v...)}
}

func (v Value) Kind() ValueKind { return v.kind }

func (v Value) AsString() (string, bool) { return v.s, v.kind == KindString }
func (v Value) AsBool() (bool, bool)     { return v.b, v.kind == KindBool }
func (v Value) AsInt() (int64, bool)     { return v.i, v.kind == KindInt }

func (v Value) AsStrings() ([]string, bool) {
	if v.kind != KindStrings {
		return nil, false
	}
	return append([]string(nil), v.list...), true
}

func (v Value) Equal(other Value) bool {
	if v.kind != other.kind {
		return false
	}
	switch v.kind {
	case KindString:
		return v.s == other.s
	case KindBool:
		return v.b == other.b
	case KindInt:
		return v.i == other.i
	case KindStrings:
		if len(v.list) != len(other.list) {
			return false
		}
		for i := range v.list {
			if v.list[i] != other.list[i] {
				return false
			}
		}
		return true
	default:
		return true
	}
}

// Any returns the plain Go value, suitable for token claims and JSON views.
func (v Value) Any() any {
	switch v.kind {
	case KindString:
		return v.s
	case KindBool:
		return v.b
	case KindInt:
		return v.i
	case KindStrings:
		return append([]string(nil), v.list...)
	default:
		return nil
	}
}

func (v Value) String() string {
	switch v.kind {
	case KindString:
		return v.s
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindStrings:
		return fmt.Sprintf("%v", v.list)
	default:
		return "<invalid>"
	}
}

func (v Value) MarshalJSON() ([]byte, error) {
	if v.kind == KindInvalid {
		return nil, fmt.Errorf("marshal session value: invalid kind")
	}
	return json.Marshal(v.Any())
}

func (v *Value) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	parsed, ok := ValueOf(raw)
	if !ok {
		return fmt.Errorf("unsupported session value %s", string(data))
	}
	*v = parsed
	return nil
}

// ValueOf converts decoded JSON or token claim values. Floats are accepted only when integral.
func ValueOf(raw any) (Value, bool) {
	switch x := raw.(type) {
	case Value:
		return x, x.kind != KindInvalid
	case string:
		return String(x), true
	case bool:
		return Bool(x), true
	case int:
		return Int(int64(x)), true
	case int64:
		return Int(x), true
	case json.Number:
		n, err := x.Int64()
		if err != nil {
			return Value{}, false
		}
		return Int(n), true
	case float64:
		if x != math.Trunc(x) || math.IsInf(x, 0) || x >= math.MaxInt64 || x < math.MinInt64 {
			return Value{}, false
		}
		return Int(int64(x)), true
	case []string:
		return Strings(x), true
	case []any:
		out := make([]string, 0, len(x))
		for _, item := range x {
			s, ok := item.(string)
			if !ok {
				return Value{}, false
			}
			out = append(out, s)
		}
		return Strings(out), true
	default:
		return Value{}, false
	}
}

func EncodeValues(values map[string]Value) (string, error) {
	if len(values) == 0 {
		return "{}", nil
	}
	raw, err := json.Marshal(values)
	if err != nil {
		return "", fmt.Errorf("encode session values: %w", err)
	}
	return string(raw), nil
}

func DecodeValues(raw string) (map[string]Value, error) {
	values := map[string]Value{}
	if raw == "" {
		return values, nil
	}
	if err := json.Unmarshal([]byte(raw), &values); err != nil {
		return nil, fmt.Errorf("decode session values: %w", err)
	}
	return values, nil
}

func cloneValues(in map[string]Value) map[string]Value {
	out := make(map[string]Value, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
