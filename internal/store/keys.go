package store

import (
	"errors"
	"fmt"
	"strconv"
)

// ErrNoRecord is returned when a write targets a ticket that has no stored record.
var ErrNoRecord = errors.New("ticket record does not exist")

// ErrContention is returned when an optimistic transaction keeps losing to
// concurrent writers.
var ErrContention = errors.New("too many concurrent modifications")

// keys builds the persisted key layout under a configurable prefix.
type keys struct {
	prefix string
}

func (k keys) current() string { return k.prefix + ":current" }
func (k keys) last() string    { return k.prefix + ":last" }
func (k keys) next() string    { return k.prefix + ":next" }
func (k keys) index() string   { return k.prefix + ":tickets" }

func (k keys) ticketPrefix() string { return k.prefix + ":ticket:" }

func (k keys) ticket(number int64) string {
	return fmt.Sprintf("%s%d", k.ticketPrefix(), number)
}

// parseCounter reads an MGET slot; nil means unset.
func parseCounter(v interface{}) (int64, bool, error) {
	if v == nil {
		return 0, false, nil
	}
	s, ok := v.(string)
	if !ok {
		return 0, false, fmt.Errorf("unexpected counter value %T", v)
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("counter value %q is not an integer: %w", s, err)
	}
	return n, true, nil
}

func hashArgs(fields map[string]string) map[string]interface{} {
	args := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		args[k] = v
	}
	return args
}
