package domain

import (
	"bytes"
	"errors"
	"strconv"

	"github.com/bytedance/sonic"
)

// ID identifies a task. Remote identity columns may be bigint or uuid, so the
// JSON form is either a number or a string; both decode to the same ID.
type ID string

var errInvalidID = errors.New("invalid task id")

// UnmarshalJSON accepts numeric and string ids.
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := sonic.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	if _, err := strconv.ParseFloat(string(data), 64); err != nil {
		return errInvalidID
	}
	*id = ID(data)
	return nil
}

func (id ID) String() string {
	return string(id)
}

// Numeric returns the id as an integer when it is one.
func (id ID) Numeric() (int64, bool) {
	n, err := strconv.ParseInt(string(id), 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}
