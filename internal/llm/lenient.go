package llm

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/joseph-ayodele/household-docs/internal/utils"
)

// The Opt types decode whatever the model put in a field without failing:
// nulls, wrong scalar types and numbers-as-strings leave the value unset or
// coerce it.

type OptString struct {
	Value string
	Valid bool
}

func (s *OptString) UnmarshalJSON(b []byte) error {
	*s = OptString{}
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return nil
	}
	switch t := v.(type) {
	case string:
		t = strings.TrimSpace(t)
		if t != "" && !strings.EqualFold(t, "null") {
			*s = OptString{Value: t, Valid: true}
		}
	case float64:
		*s = OptString{Value: strings.TrimSpace(string(b)), Valid: true}
	case bool:
		*s = OptString{Value: strconv.FormatBool(t), Valid: true}
	}
	return nil
}

func (s OptString) Or(def string) string {
	if s.Valid {
		return s.Value
	}
	return def
}

type OptDecimal struct {
	Value decimal.Decimal
	Valid bool
}

func (d *OptDecimal) UnmarshalJSON(b []byte) error {
	*d = OptDecimal{}
	b = bytes.TrimSpace(b)
	if len(b) == 0 {
		return nil
	}
	switch b[0] {
	case '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return nil
		}
		if v, ok := utils.ParseAmountOK(s); ok {
			*d = OptDecimal{Value: v, Valid: true}
		}
	case '-', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		if v, err := decimal.NewFromString(string(b)); err == nil {
			*d = OptDecimal{Value: v, Valid: true}
		}
	}
	return nil
}

func (d OptDecimal) Or(def decimal.Decimal) decimal.Decimal {
	if d.Valid {
		return d.Value
	}
	return def
}

type OptBool struct {
	Value bool
	Valid bool
}

func (o *OptBool) UnmarshalJSON(b []byte) error {
	*o = OptBool{}
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return nil
	}
	switch t := v.(type) {
	case bool:
		*o = OptBool{Value: t, Valid: true}
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "true", "yes", "y", "1":
			*o = OptBool{Value: true, Valid: true}
		case "false", "no", "n", "0":
			*o = OptBool{Value: false, Valid: true}
		}
	case float64:
		*o = OptBool{Value: t != 0, Valid: true}
	}
	return nil
}

// List decodes a JSON array, dropping elements that do not fit T. Anything
// other than an array decodes as empty.
type List[T any] []T

func (l *List[T]) UnmarshalJSON(b []byte) error {
	*l = nil
	var raw []json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return nil
	}
	out := make(List[T], 0, len(raw))
	for _, r := range raw {
		var v T
		if err := json.Unmarshal(r, &v); err != nil {
			continue
		}
		out = append(out, v)
	}
	*l = out
	return nil
}

// Object decodes a JSON object into T; anything else leaves it unset.
type Object[T any] struct {
	Value T
	Valid bool
}

func (o *Object[T]) UnmarshalJSON(b []byte) error {
	*o = Object[T]{}
	b = bytes.TrimSpace(b)
	if len(b) == 0 || b[0] != '{' {
		return nil
	}
	var v T
	if err := json.Unmarshal(b, &v); err != nil {
		return nil
	}
	*o = Object[T]{Value: v, Valid: true}
	return nil
}
