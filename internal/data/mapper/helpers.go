// Package mapper converts between wire entities and flat storable rows.
//
// Timestamps are stored as fixed-width ISO-8601 strings in UTC, with "" for absent
// values. Nested collections are stored as JSON text; unknown backend fields
// are kept in an extraData blob and spread back on read.
package mapper

import (
	"encoding/json"
	"strconv"
	"time"

	"chatcache/internal/chat"
	"chatcache/internal/data/schema"
)

// TimeLayout is fixed width so stored timestamps sort lexically.
const TimeLayout = "2006-01-02T15:04:05.000Z07:00"

// Time is the canonical storable form of t.
func Time(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(TimeLayout)
}

// ParseTime parses a stored timestamp; "" and invalid values are zero.
func ParseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// jsonText serializes v; nil, empty collections and "null" become "".
func jsonText(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	switch string(b) {
	case "null", "[]", "{}":
		return ""
	}
	return string(b)
}

func fromJSON(s string, v any) {
	if s == "" {
		return
	}
	_ = json.Unmarshal([]byte(s), v)
}

func extraText(extra chat.ExtraData) string {
	if len(extra) == 0 {
		return ""
	}
	return jsonText(extra)
}

func extraFrom(row schema.Row) chat.ExtraData {
	var extra chat.ExtraData
	fromJSON(String(row, "extraData"), &extra)
	if len(extra) == 0 {
		return nil
	}
	return extra
}

// wireKeys maps storable columns to the payload keys they are decoded from.
type wireKeys map[string]string

// present drops the columns whose payload key a decoded entity did not carry,
// so an upsert of a partial payload leaves them as stored. An empty extraData
// is dropped too. Entities built in code (nil fields) keep every column.
func present(row schema.Row, fields chat.Fields, keys wireKeys) schema.Row {
	if fields == nil {
		return row
	}
	for col, key := range keys {
		if !fields.Has(key) {
			delete(row, col)
		}
	}
	if s, _ := row["extraData"].(string); s == "" {
		delete(row, "extraData")
	}
	return row
}

// String reads a TEXT column.
func String(row schema.Row, col string) string {
	switch v := row[col].(type) {
	case string:
		return v
	case []byte:
		return string(v)
	}
	return ""
}

// Int reads an INTEGER column.
func Int(row schema.Row, col string) int64 {
	switch v := row[col].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case int32:
		return int64(v)
	case float64:
		return int64(v)
	case bool:
		if v {
			return 1
		}
	case string:
		n, _ := strconv.ParseInt(v, 10, 64)
		return n
	}
	return 0
}

// Bool reads an INTEGER column holding 0 or 1.
func Bool(row schema.Row, col string) bool {
	return Int(row, col) != 0
}

func timeCol(row schema.Row, col string) time.Time {
	return ParseTime(String(row, col))
}
