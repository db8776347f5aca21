package importer

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// looseValue holds a scalar from the source dataset that may be a JSON
// number, a numeric string, null, or missing altogether.
type looseValue struct {
	raw json.RawMessage
}

func (v *looseValue) UnmarshalJSON(data []byte) error {
	v.raw = append(v.raw[:0], data...)
	return nil
}

func (v looseValue) isNull() bool {
	trimmed := bytes.TrimSpace(v.raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

// text returns the value as a string. Numbers keep their literal form and
// booleans, objects and arrays yield "".
func (v looseValue) text() string {
	if v.isNull() {
		return ""
	}
	var s string
	if err := json.Unmarshal(v.raw, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(v.raw, &n); err == nil {
		return n.String()
	}
	return ""
}

// float parses the value, returning 0 when it is absent or not numeric.
func (v looseValue) float() float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(v.text()), 64)
	if err != nil {
		return 0
	}
	return f
}

// int truncates a numeric value toward zero, returning 0 on failure.
func (v looseValue) int() int {
	s := strings.TrimSpace(v.text())
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return int(f)
}

// UnmarshalJSON leaves the rating empty when user_rating is not an object so
// a malformed rating falls back to the defaults instead of dropping the
// restaurant.
func (u *rawUserRating) UnmarshalJSON(data []byte) error {
	type plain rawUserRating
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		*u = rawUserRating{}
		return nil
	}
	*u = rawUserRating(p)
	return nil
}
