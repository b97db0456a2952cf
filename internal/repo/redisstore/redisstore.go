// Package redisstore implements repo.Store on Redis.
//
// Each mutation is a single Lua script, so it is atomic on the server, and
// every mutation replies with what the caller needs to know afterwards (the
// new line depth, the number of purged entries). There are no multi-command
// transactions: InTx runs its callback directly. The service layer makes at
// most one mutating call per callback and serializes writers of one
// attraction itself.
//
// Key layout, under a configurable prefix (default "fq"):
//
//	fq:attraction:seq, fq:entry:seq  INCR id counters
//	fq:attraction:<id>               HASH id, name, description, duration, created_us, updated_us
//	fq:attractions                   ZSET of attraction ids
//	fq:attractions:byname            HASH name -> id
//	fq:queue:<attractionID>          ZSET of entry ids, scored by id
//	fq:entry:<id>                    HASH id, attraction_id, person_name, enqueued_us
//	fq:clock                         last timestamp handed out, in microseconds
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/pkordes/attraction-queue/internal/domain"
	"github.com/pkordes/attraction-queue/internal/repo"
)

// DefaultPrefix is the key prefix used unless WithPrefix overrides it.
const DefaultPrefix = "fq"

// Script statuses.
const (
	statusOK            = "ok"
	statusNotFound      = "not_found"
	statusDuplicateName = "duplicate_name"
	statusEmpty         = "empty"
)

// errMalformedReply is returned when a script or hash does not have the expected shape.
var errMalformedReply = errors.New("malformed reply")

// Store is the Redis implementation of repo.Store.
type Store struct {
	client redis.UniversalClient
	prefix string
}

// Option configures a Store.
type Option func(*Store)

// WithPrefix sets the key prefix. Tests use a unique prefix per test.
func WithPrefix(prefix string) Option {
	return func(s *Store) { s.prefix = prefix }
}

// New returns a Store using client. Close closes the client.
func New(client redis.UniversalClient, opts ...Option) *Store {
	s := &Store{client: client, prefix: DefaultPrefix}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var _ repo.Store = (*Store)(nil)

func (s *Store) Attractions() repo.AttractionRepo { return attractionRepo{s} }
func (s *Store) Queue() repo.QueueRepo             { return queueRepo{s} }

// InTx runs fn against the store itself; see the package comment.
func (s *Store) InTx(ctx context.Context, fn func(repo.Repos) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(s)
}

func (s *Store) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redisstore.Store.Ping: %w", err)
	}
	return nil
}

func (s *Store) Close() {
	_ = s.client.Close()
}

func (s *Store) key(parts ...string) string {
	return s.prefix + ":" + strings.Join(parts, ":")
}

func (s *Store) attractionKey(id int64) string { return s.key("attraction", formatID(id)) }
func (s *Store) queueKey(id int64) string      { return s.key("queue", formatID(id)) }
func (s *Store) entryKey(id int64) string      { return s.key("entry", formatID(id)) }

// run executes script with the prefix prepended to args and returns the reply
// payload after the status. Non-ok statuses are mapped to domain errors.
func (s *Store) run(ctx context.Context, script *redis.Script, args ...any) ([]any, error) {
	res, err := script.Run(ctx, s.client, nil, append([]any{s.prefix}, args...)...).Slice()
	if err != nil {
		return nil, err
	}
	if len(res) == 0 {
		return nil, errMalformedReply
	}
	status, ok := res[0].(string)
	if !ok {
		return nil, errMalformedReply
	}
	switch status {
	case statusOK:
		return res[1:], nil
	case statusNotFound:
		return nil, domain.ErrNotFound
	case statusDuplicateName:
		return nil, domain.ErrDuplicateName
	case statusEmpty:
		return nil, domain.ErrEmptyQueue
	}
	return nil, fmt.Errorf("unexpected script status %q", status)
}

// record returns the single HGETALL list a script replied with.
func record(payload []any) (map[string]string, error) {
	if len(payload) != 1 {
		return nil, errMalformedReply
	}
	return fieldMap(payload[0])
}

// fieldMap turns a flat field/value reply into a map.
func fieldMap(v any) (map[string]string, error) {
	vals, ok := v.([]any)
	if !ok || len(vals)%2 != 0 {
		return nil, errMalformedReply
	}
	m := make(map[string]string, len(vals)/2)
	for i := 0; i < len(vals); i += 2 {
		k, ok1 := vals[i].(string)
		val, ok2 := vals[i+1].(string)
		if !ok1 || !ok2 {
			return nil, errMalformedReply
		}
		m[k] = val
	}
	return m, nil
}

// count returns the integer a purge-style script replied with.
func count(payload []any) (int, error) {
	if len(payload) != 1 {
		return 0, errMalformedReply
	}
	return toInt(payload[0])
}

// recordAndDepth splits a reply made of one HGETALL list and a ZCARD.
func recordAndDepth(payload []any) (map[string]string, int, error) {
	if len(payload) != 2 {
		return nil, 0, errMalformedReply
	}
	m, err := fieldMap(payload[0])
	if err != nil {
		return nil, 0, err
	}
	depth, err := toInt(payload[1])
	if err != nil {
		return nil, 0, err
	}
	return m, depth, nil
}

func toInt(v any) (int, error) {
	n, ok := v.(int64)
	if !ok {
		return 0, errMalformedReply
	}
	return int(n), nil
}

func parseAttraction(m map[string]string) (domain.Attraction, error) {
	var (
		a   domain.Attraction
		err error
	)
	if a.ID, err = parseID(m["id"]); err != nil {
		return domain.Attraction{}, fmt.Errorf("id: %w", err)
	}
	if a.ServiceDuration, err = strconv.Atoi(m["duration"]); err != nil {
		return domain.Attraction{}, fmt.Errorf("duration: %w", err)
	}
	if a.CreatedAt, err = parseMicros(m["created_us"]); err != nil {
		return domain.Attraction{}, fmt.Errorf("created_us: %w", err)
	}
	if a.UpdatedAt, err = parseMicros(m["updated_us"]); err != nil {
		return domain.Attraction{}, fmt.Errorf("updated_us: %w", err)
	}
	a.Name = m["name"]
	a.Description = m["description"]
	return a, nil
}

func parseEntry(m map[string]string) (domain.QueueEntry, error) {
	var (
		e   domain.QueueEntry
		err error
	)
	if e.ID, err = parseID(m["id"]); err != nil {
		return domain.QueueEntry{}, fmt.Errorf("id: %w", err)
	}
	if e.AttractionID, err = parseID(m["attraction_id"]); err != nil {
		return domain.QueueEntry{}, fmt.Errorf("attraction_id: %w", err)
	}
	if e.EnqueuedAt, err = parseMicros(m["enqueued_us"]); err != nil {
		return domain.QueueEntry{}, fmt.Errorf("enqueued_us: %w", err)
	}
	e.PersonName = m["person_name"]
	return e, nil
}

func formatID(id int64) string { return strconv.FormatInt(id, 10) }

func parseID(s string) (int64, error) { return strconv.ParseInt(s, 10, 64) }

func parseMicros(s string) (time.Time, error) {
	us, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.UnixMicro(us).UTC(), nil
}
