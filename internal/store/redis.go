package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"onetime.share/internal/models"
)

var _ Store = (*RedisStore)(nil)

// RedisStore keeps each record as a hash at "secret:{id}". Multi-field
// mutations run as Lua scripts so the write, the scrub, and the EXPIREAT are
// one atomic unit on the server; the attempt counter rides on HINCRBY.
type RedisStore struct {
	client  *redis.Client
	timeout time.Duration
}

const (
	fieldEnvelope      = "payload"
	fieldProofHash     = "passphrase_hash"
	fieldAttempts      = "attempts"
	fieldStatus        = "status"
	fieldExpiresAt     = "expires_at"
	fieldHasPassphrase = "has_passphrase"

	defaultOpTimeout = 5 * time.Second
)

var createScript = redis.NewScript(`
	if redis.call('EXISTS', KEYS[1]) == 1 then
		return 0
	end
	redis.call('HSET', KEYS[1],
		'status', ARGV[1],
		'payload', ARGV[2],
		'expires_at', ARGV[3],
		'has_passphrase', ARGV[4])
	if ARGV[5] ~= '' then
		redis.call('HSET', KEYS[1], 'passphrase_hash', ARGV[5], 'attempts', '0')
	end
	redis.call('EXPIREAT', KEYS[1], ARGV[3])
	return 1
`)

var transitionScript = redis.NewScript(`
	if redis.call('EXISTS', KEYS[1]) == 0 then
		return 0
	end
	if redis.call('HGET', KEYS[1], 'status') ~= 'UNREAD' then
		return -1
	end
	local expires = tonumber(ARGV[2])
	local current = tonumber(redis.call('HGET', KEYS[1], 'expires_at'))
	if current and current > expires then
		expires = current
	end
	redis.call('HDEL', KEYS[1], 'payload', 'passphrase_hash', 'attempts')
	redis.call('HSET', KEYS[1], 'status', ARGV[1], 'expires_at', expires)
	redis.call('EXPIREAT', KEYS[1], expires)
	return 1
`)

var incrementScript = redis.NewScript(`
	if redis.call('EXISTS', KEYS[1]) == 0 then
		return -1
	end
	return redis.call('HINCRBY', KEYS[1], 'attempts', 1)
`)

func NewRedisStore(options *redis.Options) (*RedisStore, error) {
	client := redis.NewClient(options)

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), defaultOpTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}

	return &RedisStore{client: client, timeout: defaultOpTimeout}, nil
}

func (r *RedisStore) Create(ctx context.Context, id string, rec *models.Record) error {
	ctx, cancel := r.bound(ctx)
	defer cancel()

	proofHash := ""
	if rec.Proof != nil {
		proofHash = rec.Proof.Hash
	}

	created, err := createScript.Run(ctx, r.client, []string{secretKey(id)},
		string(rec.Status),
		rec.Envelope,
		rec.ExpiresAt.Unix(),
		boolField(rec.HasPassphrase),
		proofHash,
	).Int()
	if err != nil {
		return unavailable(err)
	}
	if created == 0 {
		return ErrConflict
	}
	return nil
}

func (r *RedisStore) Get(ctx context.Context, id string) (*models.Record, error) {
	ctx, cancel := r.bound(ctx)
	defer cancel()

	fields, err := r.client.HGetAll(ctx, secretKey(id)).Result()
	if err != nil {
		return nil, unavailable(err)
	}
	if len(fields) == 0 {
		return nil, ErrNotFound
	}
	return recordFromFields(fields)
}

func (r *RedisStore) GetMeta(ctx context.Context, id string) (*models.Metadata, error) {
	ctx, cancel := r.bound(ctx)
	defer cancel()

	vals, err := r.client.HMGet(ctx, secretKey(id), fieldStatus, fieldExpiresAt, fieldHasPassphrase).Result()
	if err != nil {
		return nil, unavailable(err)
	}
	if vals[0] == nil {
		return nil, ErrNotFound
	}

	status, err := models.ParseStatus(vals[0].(string))
	if err != nil {
		return nil, err
	}
	expiresAt, err := parseUnixField(vals[1])
	if err != nil {
		return nil, err
	}

	return &models.Metadata{
		Status:        status,
		ExpiresAt:     expiresAt,
		HasPassphrase: vals[2] == "1",
	}, nil
}

func (r *RedisStore) Transition(ctx context.Context, id string, status models.Status, expiresAt time.Time) error {
	ctx, cancel := r.bound(ctx)
	defer cancel()

	applied, err := transitionScript.Run(ctx, r.client, []string{secretKey(id)},
		string(status), expiresAt.Unix()).Int()
	if err != nil {
		return unavailable(err)
	}
	switch applied {
	case 0:
		return ErrNotFound
	case -1:
		return ErrTerminal
	}
	return nil
}

func (r *RedisStore) IncrementAttempts(ctx context.Context, id string) (int, error) {
	ctx, cancel := r.bound(ctx)
	defer cancel()

	count, err := incrementScript.Run(ctx, r.client, []string{secretKey(id)}).Int()
	if err != nil {
		return 0, unavailable(err)
	}
	if count < 0 {
		return 0, ErrNotFound
	}
	return count, nil
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}

// Helpers

func (r *RedisStore) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, r.timeout)
}

func secretKey(id string) string {
	return "secret:" + id
}

func boolField(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

func unavailable(err error) error {
	if errors.Is(err, redis.Nil) {
		return ErrNotFound
	}
	return fmt.Errorf("%w: %w", ErrUnavailable, err)
}

func recordFromFields(fields map[string]string) (*models.Record, error) {
	status, err := models.ParseStatus(fields[fieldStatus])
	if err != nil {
		return nil, err
	}

	expiresAt, err := parseUnixField(fields[fieldExpiresAt])
	if err != nil {
		return nil, err
	}

	rec := &models.Record{
		Envelope:      fields[fieldEnvelope],
		Status:        status,
		ExpiresAt:     expiresAt,
		HasPassphrase: fields[fieldHasPassphrase] == "1",
	}

	if hash, ok := fields[fieldProofHash]; ok {
		attempts, err := strconv.Atoi(fields[fieldAttempts])
		if err != nil {
			return nil, fmt.Errorf("corrupt attempts counter: %w", err)
		}
		rec.Proof = &models.PassphraseProof{Hash: hash, Attempts: attempts}
	}

	return rec, nil
}

func parseUnixField(v any) (time.Time, error) {
	s, ok := v.(string)
	if !ok {
		return time.Time{}, fmt.Errorf("corrupt expiry field %v", v)
	}
	unix, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("corrupt expiry field: %w", err)
	}
	return time.Unix(unix, 0), nil
}
