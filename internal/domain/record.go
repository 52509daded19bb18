package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// IDField is the attribute every record is addressed by.
const IDField = "id"

// Record is an opaque entity owned by a collaborator. The only attribute the
// router relies on is "id".
type Record map[string]any

// ID returns the record identifier and whether it is set.
func (r Record) ID() (any, bool) {
	if r == nil {
		return nil, false
	}
	v, ok := r[IDField]
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}

// Clone returns a shallow copy of r.
func (r Record) Clone() Record {
	if r == nil {
		return nil
	}
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// IDKey normalizes an identifier so that values arriving through different
// paths compare equal: 7, int64(7), 7.0, json.Number("7") and "7" all map to "7".
func IDKey(v any) string {
	switch id := v.(type) {
	case nil:
		return ""
	case string:
		return id
	case json.Number:
		return id.String()
	case int:
		return strconv.Itoa(id)
	case int32:
		return strconv.FormatInt(int64(id), 10)
	case int64:
		return strconv.FormatInt(id, 10)
	case uint:
		return strconv.FormatUint(uint64(id), 10)
	case uint32:
		return strconv.FormatUint(uint64(id), 10)
	case uint64:
		return strconv.FormatUint(id, 10)
	case float64:
		if id == math.Trunc(id) && math.Abs(id) < 1<<53 {
			return strconv.FormatInt(int64(id), 10)
		}
		return strconv.FormatFloat(id, 'f', -1, 64)
	case fmt.Stringer:
		return id.String()
	default:
		return fmt.Sprint(id)
	}
}

// ToRecord converts a struct (or anything JSON-encodable to an object) into a
// Record. Numbers are kept as json.Number so integer ids survive untouched.
func ToRecord(v any) (Record, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode record: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var rec Record
	if err := dec.Decode(&rec); err != nil {
		return nil, fmt.Errorf("decode record: %w", err)
	}
	return rec, nil
}

// FromRecord decodes rec onto dst, overlaying only the keys rec carries.
func FromRecord(rec Record, dst any) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return NewAppError(CodeValidation, "invalid record payload", err)
	}
	return nil
}
