package resource

import (
	"bytes"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

var errNull = errors.New("must not be null")

// coerceString converts a query-string value into the field's Go type.
func coerceString(f Field, raw string) (any, error) {
	switch f.Type {
	case TypeInt:
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, errors.New("must be an integer")
		}
		return n, nil
	case TypeBool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, errors.New("must be true or false")
		}
		return b, nil
	case TypeDate:
		return parseDate(raw)
	case TypeTimestamp:
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return nil, errors.New("must be an RFC 3339 timestamp")
		}
		return t, nil
	default:
		return raw, nil
	}
}

// coerceJSON converts a JSON body value into the field's Go type.
func coerceJSON(f Field, raw json.RawMessage) (any, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		if f.Nullable {
			return nil, nil
		}
		return nil, errNull
	}
	switch f.Type {
	case TypeInt:
		dec := json.NewDecoder(bytes.NewReader(trimmed))
		dec.UseNumber()
		var v any
		if err := dec.Decode(&v); err != nil {
			return nil, errors.New("must be an integer")
		}
		num, ok := v.(json.Number)
		if !ok {
			return nil, errors.New("must be an integer")
		}
		n, err := num.Int64()
		if err != nil {
			return nil, errors.New("must be an integer")
		}
		return n, nil
	case TypeBool:
		var b bool
		if err := json.Unmarshal(trimmed, &b); err != nil {
			return nil, errors.New("must be true or false")
		}
		return b, nil
	case TypeDate, TypeTimestamp:
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return nil, errors.New("must be a string")
		}
		s = strings.TrimSpace(s)
		if s == "" && f.Nullable {
			return nil, nil
		}
		return coerceString(f, s)
	default:
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return nil, errors.New("must be a string")
		}
		return strings.TrimSpace(s), nil
	}
}

func parseDate(raw string) (time.Time, error) {
	if t, err := time.Parse(dateLayout, raw); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return DateOnly(t), nil
	}
	return time.Time{}, errors.New("must be a date in YYYY-MM-DD format")
}
