// Copyright (c) 2025 The AgroMarket developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package sanitize

import (
	"fmt"
	"math"
	"strings"
)

// FieldType identifies how a form field is cleaned.
type FieldType int

const (
	TypeString FieldType = iota
	TypeEmail
	TypeInt
	TypeFloat
	TypePhone
	TypeName
	TypeTextArea
)

// Rule describes a single form field.
type Rule struct {
	Type     FieldType
	Required bool

	// MinLength and MaxLength apply to TypeName. MaxLength also applies to
	// TypeString and TypeTextArea.
	MinLength int
	MaxLength int

	// MinValue and MaxValue apply to TypeInt.
	MinValue *int64
	MaxValue *int64

	// AllowHTML disables HTML escaping for TypeString.
	AllowHTML bool

	// Default is used when the field is missing or empty.
	Default interface{}
}

// Schema maps a field name to its rule.
type Schema map[string]Rule

// isEmpty mirrors what a submitted form considers an empty value.
func isEmpty(v interface{}) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == ""
	}
	return false
}

func toString(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		if t == math.Trunc(t) {
			return fmt.Sprintf("%.0f", t)
		}
	}
	return fmt.Sprint(v)
}

// clean applies a single rule to a value. A nil result with a nil error
// means the value could not be used.
func clean(v interface{}, r Rule) (interface{}, error) {
	switch r.Type {
	case TypeEmail:
		e, err := Email(toString(v))
		if err != nil {
			return nil, nil
		}
		return e, nil

	case TypeInt:
		var (
			i   int64
			err error
		)
		switch t := v.(type) {
		case float64:
			if t != math.Trunc(t) {
				return nil, nil
			}
			i, err = IntegerValue(int64(t), r.MinValue, r.MaxValue)
		case int:
			i, err = IntegerValue(int64(t), r.MinValue, r.MaxValue)
		case int64:
			i, err = IntegerValue(t, r.MinValue, r.MaxValue)
		default:
			i, err = Integer(strings.TrimSpace(toString(v)),
				r.MinValue, r.MaxValue)
		}
		if err != nil {
			return nil, nil
		}
		return i, nil

	case TypeFloat:
		var (
			p   float64
			err error
		)
		switch t := v.(type) {
		case float64:
			p, err = PriceValue(t)
		case int:
			p, err = PriceValue(float64(t))
		default:
			p, err = Price(toString(v))
		}
		if err != nil {
			return nil, nil
		}
		return p, nil

	case TypePhone:
		p, err := Phone(toString(v))
		if err != nil {
			return nil, nil
		}
		return p, nil

	case TypeName:
		n, err := Name(toString(v), r.MinLength, r.MaxLength)
		if err != nil {
			return nil, nil
		}
		return n, nil

	case TypeTextArea:
		s := TextArea(toString(v), r.MaxLength)
		if s == "" {
			return nil, nil
		}
		return s, nil

	case TypeString:
		max := r.MaxLength
		if max <= 0 {
			max = 255
		}
		var s string
		if r.AllowHTML {
			s = strings.TrimSpace(truncate(
				regexpControlChars.ReplaceAllString(toString(v), ""), max))
		} else {
			s = String(toString(v), max)
		}
		if s == "" {
			return nil, nil
		}
		return s, nil
	}

	return nil, fmt.Errorf("unknown field type %v", r.Type)
}

// FormData cleans the submitted data according to the schema. Fields that
// are not part of the schema are dropped. A required field that is missing
// or invalid results in a FieldError. An optional field that is invalid
// falls back to its default, or is dropped when it has none.
func FormData(data map[string]interface{}, schema Schema) (map[string]interface{}, error) {
	out := make(map[string]interface{}, len(schema))
	for field, r := range schema {
		v, ok := data[field]
		if !ok || isEmpty(v) {
			if r.Required {
				return nil, FieldError{Field: field, Reason: reasonRequired}
			}
			v = r.Default
		}
		if isEmpty(v) {
			continue
		}

		c, err := clean(v, r)
		if err != nil {
			return nil, err
		}
		switch {
		case c != nil:
			out[field] = c
		case r.Required:
			return nil, FieldError{Field: field, Reason: reasonInvalid}
		case r.Default != nil:
			out[field] = r.Default
		}
	}
	return out, nil
}
