package ingest

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rickgao/predictit-etl/internal/model"
)

var errNull = errors.New("null value")

// timestampLayouts are tried in order. Values without a zone are UTC.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
}

// ParseTimestamp parses an extraction timestamp and returns it in UTC.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, errors.New("empty timestamp")
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

// isNull reports whether raw is absent or JSON null.
func isNull(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) == 0 || bytes.Equal(raw, []byte("null"))
}

// numericText returns the text of a JSON number or numeric string.
func numericText(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if isNull(raw) {
		return "", errNull
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			return "", errNull
		}
		return s, nil
	}
	if raw[0] == '-' || (raw[0] >= '0' && raw[0] <= '9') {
		return string(raw), nil
	}
	return "", fmt.Errorf("not a number: %s", raw)
}

// ParseID accepts integers, integral floats and numeric strings.
func ParseID(raw json.RawMessage) (int64, error) {
	text, err := numericText(raw)
	if err != nil {
		return 0, err
	}

	d, err := decimal.NewFromString(text)
	if err != nil {
		return 0, fmt.Errorf("parse id %q: %w", text, err)
	}
	if !d.IsInteger() {
		return 0, fmt.Errorf("id %s is not an integer", text)
	}
	if d.GreaterThan(decimal.NewFromInt(math.MaxInt64)) || d.LessThan(decimal.NewFromInt(math.MinInt64)) {
		return 0, fmt.Errorf("id %s out of range", text)
	}
	return d.IntPart(), nil
}

// ParsePrice returns a price rounded to model.PriceScale. A null or absent
// value is a valid null, not an error.
func ParsePrice(raw json.RawMessage) (decimal.NullDecimal, error) {
	text, err := numericText(raw)
	if errors.Is(err, errNull) {
		return decimal.NullDecimal{}, nil
	}
	if err != nil {
		return decimal.NullDecimal{}, err
	}

	d, err := decimal.NewFromString(text)
	if err != nil {
		return decimal.NullDecimal{}, fmt.Errorf("parse price %q: %w", text, err)
	}
	return decimal.NewNullDecimal(d.Round(model.PriceScale)), nil
}

// parseString decodes a JSON string; null and absent give "".
func parseString(raw json.RawMessage) (string, error) {
	if isNull(raw) {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", err
	}
	return s, nil
}

// parseInt decodes an integer field; null and absent give 0.
func parseInt(raw json.RawMessage) (int, error) {
	if isNull(raw) {
		return 0, nil
	}
	n, err := ParseID(raw)
	if err != nil {
		return 0, err
	}
	if n > math.MaxInt32 || n < math.MinInt32 {
		return 0, fmt.Errorf("value %d out of range", n)
	}
	return int(n), nil
}
