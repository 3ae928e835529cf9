package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/redis/go-redis/v9"

	"queue-ticket-backend/internal/model"
)

// maxTxAttempts bounds the WATCH/MULTI retry loop.
const maxTxAttempts = 8

// Store defines every persistence operation of the queue.
type Store interface {
	State(ctx context.Context) (model.QueueState, error)
	CreateTicket(ctx context.Context, fields map[string]string) (int64, error)
	Advance(ctx context.Context) (state model.QueueState, advanced bool, err error)
	SetCounters(ctx context.Context, current, next *int64) (model.QueueState, error)
	TicketNumbers(ctx context.Context, limit int) ([]int64, error)
	TicketFields(ctx context.Context, numbers ...int64) ([]map[string]string, error)
	UpdateTicket(ctx context.Context, number int64, fields map[string]string) (map[string]string, error)
	DeleteTicket(ctx context.Context, number int64) error
	UpsertTicket(ctx context.Context, number int64, fields, defaults map[string]string) (created bool, err error)
	Reset(ctx context.Context) error
}

// redisStore implements Store on top of Redis. Every multi-key write is a
// MULTI/EXEC; read-then-write paths use WATCH.
type redisStore struct {
	rdb  *redis.Client
	keys keys
}

// NewRedisStore creates a Redis-backed store whose keys start with prefix.
func NewRedisStore(rdb *redis.Client, prefix string) Store {
	if prefix == "" {
		prefix = "queue"
	}
	return &redisStore{rdb: rdb, keys: keys{prefix: prefix}}
}

type mgetter interface {
	MGet(ctx context.Context, keys ...string) *redis.SliceCmd
}

func (s *redisStore) readState(ctx context.Context, c mgetter) (model.QueueState, error) {
	vals, err := c.MGet(ctx, s.keys.current(), s.keys.last(), s.keys.next()).Result()
	if err != nil {
		return model.QueueState{}, fmt.Errorf("failed to read counters: %w", err)
	}

	current, _, err := parseCounter(vals[0])
	if err != nil {
		return model.QueueState{}, err
	}
	last, _, err := parseCounter(vals[1])
	if err != nil {
		return model.QueueState{}, err
	}
	next, ok, err := parseCounter(vals[2])
	if err != nil {
		return model.QueueState{}, err
	}
	if !ok {
		next = current + 1
	}

	return model.QueueState{CurrentNumber: current, LastTicket: last, NextNumber: next}, nil
}

// watch runs fn as an optimistic transaction, retrying when a watched key changes.
func (s *redisStore) watch(ctx context.Context, fn func(tx *redis.Tx) error, watched ...string) error {
	for attempt := 0; attempt < maxTxAttempts; attempt++ {
		err := s.rdb.Watch(ctx, fn, watched...)
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
	}
	return ErrContention
}

// State returns the counters, defaulting unset keys.
func (s *redisStore) State(ctx context.Context) (model.QueueState, error) {
	return s.readState(ctx, s.rdb)
}

// createTicketScript allocates the next number and writes the record and its
// index entry as one server-side step, so a concurrent Reset either precedes
// or follows the whole issuance.
//
// KEYS: last, index. ARGV: ticket key prefix, then field/value pairs.
var createTicketScript = redis.NewScript(`
local n = redis.call('INCR', KEYS[1])
if #ARGV > 1 then
  redis.call('HSET', ARGV[1] .. n, unpack(ARGV, 2))
end
redis.call('RPUSH', KEYS[2], n)
return n
`)

// CreateTicket assigns the next number and stores the record under it.
func (s *redisStore) CreateTicket(ctx context.Context, fields map[string]string) (int64, error) {
	names := make([]string, 0, len(fields))
	for k := range fields {
		names = append(names, k)
	}
	sort.Strings(names)

	args := make([]interface{}, 0, 1+2*len(names))
	args = append(args, s.keys.ticketPrefix())
	for _, k := range names {
		args = append(args, k, fields[k])
	}

	number, err := createTicketScript.Run(ctx, s.rdb, []string{s.keys.last(), s.keys.index()}, args...).Int64()
	if err != nil {
		return 0, fmt.Errorf("failed to issue ticket: %w", err)
	}
	return number, nil
}

// Advance moves next into current and bumps next, unless next is beyond the
// last issued ticket.
func (s *redisStore) Advance(ctx context.Context) (model.QueueState, bool, error) {
	var (
		state    model.QueueState
		advanced bool
	)

	err := s.watch(ctx, func(tx *redis.Tx) error {
		st, err := s.readState(ctx, tx)
		if err != nil {
			return err
		}
		if st.NextNumber > st.LastTicket {
			state, advanced = st, false
			return nil
		}

		called := st.NextNumber
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.MSet(ctx, s.keys.current(), called, s.keys.next(), called+1)
			return nil
		})
		if err != nil {
			return err
		}
		state = model.QueueState{CurrentNumber: called, LastTicket: st.LastTicket, NextNumber: called + 1}
		advanced = true
		return nil
	}, s.keys.current(), s.keys.next(), s.keys.last())
	if err != nil {
		return model.QueueState{}, false, fmt.Errorf("failed to advance queue: %w", err)
	}
	return state, advanced, nil
}

// SetCounters writes the provided counters with a single MSET.
func (s *redisStore) SetCounters(ctx context.Context, current, next *int64) (model.QueueState, error) {
	var pairs []interface{}
	if current != nil {
		pairs = append(pairs, s.keys.current(), *current)
	}
	if next != nil {
		pairs = append(pairs, s.keys.next(), *next)
	}
	if len(pairs) > 0 {
		if err := s.rdb.MSet(ctx, pairs...).Err(); err != nil {
			return model.QueueState{}, fmt.Errorf("failed to set counters: %w", err)
		}
	}
	return s.readState(ctx, s.rdb)
}

// TicketNumbers returns the index in insertion order, or only its last limit
// entries when limit > 0.
func (s *redisStore) TicketNumbers(ctx context.Context, limit int) ([]int64, error) {
	start := int64(0)
	if limit > 0 {
		start = -int64(limit)
	}
	raw, err := s.rdb.LRange(ctx, s.keys.index(), start, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read ticket index: %w", err)
	}
	return parseNumbers(raw), nil
}

func parseNumbers(raw []string) []int64 {
	numbers := make([]int64, 0, len(raw))
	for _, r := range raw {
		n, err := strconv.ParseInt(r, 10, 64)
		if err != nil {
			continue
		}
		numbers = append(numbers, n)
	}
	return numbers
}

// TicketFields fetches the record hashes of numbers in one pipeline. Missing
// records come back as empty maps.
func (s *redisStore) TicketFields(ctx context.Context, numbers ...int64) ([]map[string]string, error) {
	if len(numbers) == 0 {
		return nil, nil
	}

	cmds := make([]*redis.MapStringStringCmd, len(numbers))
	_, err := s.rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, n := range numbers {
			cmds[i] = pipe.HGetAll(ctx, s.keys.ticket(n))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read ticket records: %w", err)
	}

	out := make([]map[string]string, len(numbers))
	for i, cmd := range cmds {
		out[i] = cmd.Val()
	}
	return out, nil
}

// UpdateTicket merges fields into an existing record and returns the result.
func (s *redisStore) UpdateTicket(ctx context.Context, number int64, fields map[string]string) (map[string]string, error) {
	key := s.keys.ticket(number)

	err := s.watch(ctx, func(tx *redis.Tx) error {
		exists, err := tx.Exists(ctx, key).Result()
		if err != nil {
			return err
		}
		if exists == 0 {
			return ErrNoRecord
		}
		if len(fields) == 0 {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, hashArgs(fields))
			return nil
		})
		return err
	}, key)
	if err != nil {
		return nil, fmt.Errorf("failed to update ticket %d: %w", number, err)
	}

	merged, err := s.rdb.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to reload ticket %d: %w", number, err)
	}
	return merged, nil
}

// DeleteTicket removes the record and its index entry together.
func (s *redisStore) DeleteTicket(ctx context.Context, number int64) error {
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.keys.ticket(number))
		pipe.LRem(ctx, s.keys.index(), 0, number)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete ticket %d: %w", number, err)
	}
	return nil
}

// UpsertTicket writes fields for number, creating the record (with defaults)
// when absent, appending the number to the index if missing and raising the
// last issued number when needed.
func (s *redisStore) UpsertTicket(ctx context.Context, number int64, fields, defaults map[string]string) (bool, error) {
	key := s.keys.ticket(number)
	var created bool

	err := s.watch(ctx, func(tx *redis.Tx) error {
		exists, err := tx.Exists(ctx, key).Result()
		if err != nil {
			return err
		}
		raw, err := tx.LRange(ctx, s.keys.index(), 0, -1).Result()
		if err != nil {
			return err
		}
		indexed := false
		for _, n := range parseNumbers(raw) {
			if n == number {
				indexed = true
				break
			}
		}
		last, err := tx.Get(ctx, s.keys.last()).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}

		values := make(map[string]string, len(fields)+len(defaults))
		if exists == 0 {
			for k, v := range defaults {
				values[k] = v
			}
		}
		for k, v := range fields {
			values[k] = v
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			if len(values) > 0 {
				pipe.HSet(ctx, key, hashArgs(values))
			}
			if !indexed {
				pipe.RPush(ctx, s.keys.index(), number)
			}
			if number > last {
				pipe.Set(ctx, s.keys.last(), number, 0)
			}
			return nil
		})
		if err != nil {
			return err
		}
		created = exists == 0
		return nil
	}, key, s.keys.index(), s.keys.last())
	if err != nil {
		return false, fmt.Errorf("failed to upsert ticket %d: %w", number, err)
	}
	return created, nil
}

// Reset deletes every indexed record, the index and the counters.
func (s *redisStore) Reset(ctx context.Context) error {
	err := s.watch(ctx, func(tx *redis.Tx) error {
		raw, err := tx.LRange(ctx, s.keys.index(), 0, -1).Result()
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			for _, n := range parseNumbers(raw) {
				pipe.Del(ctx, s.keys.ticket(n))
			}
			pipe.Del(ctx, s.keys.index(), s.keys.next())
			pipe.MSet(ctx, s.keys.current(), 0, s.keys.last(), 0)
			return nil
		})
		return err
	}, s.keys.index())
	if err != nil {
		return fmt.Errorf("failed to reset queue: %w", err)
	}
	return nil
}
