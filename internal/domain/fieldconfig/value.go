package fieldconfig

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// ValueKind enumerates the closed set of field value shapes the engine
// understands. Anything else from a collaborator is coerced to a String
// holding the raw JSON so the merge stays total.
type ValueKind uint8

const (
	KindString ValueKind = iota
	KindNumber
	KindBool
	KindStringList
)

// Value is a closed variant of a Jira field value. The zero Value is the
// empty string.
type Value struct {
	kind ValueKind
	str  string
	num  float64
	b    bool
	list []string
}

func StringValue(s string) Value { return Value{kind: KindString, str: s} }

func NumberValue(n float64) Value { return Value{kind: KindNumber, num: n} }

func BoolValue(b bool) Value { return Value{kind: KindBool, b: b} }

func StringListValue(l []string) Value {
	cloned := make([]string, len(l))
	copy(cloned, l)
	return Value{kind: KindStringList, list: cloned}
}

func (v Value) Kind() ValueKind { return v.kind }

// String renders the value for display and CSV-ish surfaces.
func (v Value) String() string {
	switch v.kind {
	case KindNumber:
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindStringList:
		return strings.Join(v.list, ", ")
	default:
		return v.str
	}
}

func (v Value) Number() float64 { return v.num }
func (v Value) Bool() bool      { return v.b }

func (v Value) StringList() []string {
	cloned := make([]string, len(v.list))
	copy(cloned, v.list)
	return cloned
}

// Equal compares two values structurally.
func (v Value) Equal(other Value) bool {
	if v.kind != other.kind {
		return false
	}
	switch v.kind {
	case KindNumber:
		return v.num == other.num
	case KindBool:
		return v.b == other.b
	case KindStringList:
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
		return v.str == other.str
	}
}

func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindNumber:
		return json.Marshal(v.num)
	case KindBool:
		return json.Marshal(v.b)
	case KindStringList:
		if v.list == nil {
			return json.Marshal([]string{})
		}
		return json.Marshal(v.list)
	default:
		return json.Marshal(v.str)
	}
}

func (v *Value) UnmarshalJSON(data []byte) error {
	decoded, err := DecodeValue(data)
	if err != nil {
		return err
	}
	*v = decoded
	return nil
}

// DecodeValue maps raw JSON onto the closed variant. Objects and arrays with
// non-string elements are kept as the raw JSON text in a String value: the
// engine trusts the collaborator and must not drop data it cannot type.
func DecodeValue(data []byte) (Value, error) {
	var probe any
	if err := json.Unmarshal(data, &probe); err != nil {
		return Value{}, fmt.Errorf("%w: %v", ErrInvalidFieldValuePayload, err)
	}

	switch typed := probe.(type) {
	case nil:
		return StringValue(""), nil
	case string:
		return StringValue(typed), nil
	case float64:
		return NumberValue(typed), nil
	case bool:
		return BoolValue(typed), nil
	case []any:
		list := make([]string, 0, len(typed))
		for _, item := range typed {
			s, ok := item.(string)
			if !ok {
				return StringValue(string(data)), nil
			}
			list = append(list, s)
		}
		return StringListValue(list), nil
	default:
		return StringValue(string(data)), nil
	}
}

// DecodeValueMap decodes a JSON object of field values.
func DecodeValueMap(data []byte) (map[string]Value, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFieldValuePayload, err)
	}
	values := make(map[string]Value, len(raw))
	for key, payload := range raw {
		value, err := DecodeValue(payload)
		if err != nil {
			return nil, err
		}
		values[key] = value
	}
	return values, nil
}
