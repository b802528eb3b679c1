package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/smarthubultra/identity-service/internal/domain"
	"github.com/smarthubultra/identity-service/internal/observability"
)

// RedisCredentialStore keeps one Redis hash per credential under
// credential:<namespace>:<token> and publishes issued tokens on
// credential-added:<namespace> for live observers.
type RedisCredentialStore struct {
	client redis.UniversalClient
	prefix string
}

// redeemScript is the compare-and-swap core: state check and the
// used flip happen in one Redis round trip, so two concurrent redeems
// of the same token cannot both win.
var redeemScript = redis.NewScript(`
local key = KEYS[1]
if redis.call("EXISTS", key) == 0 then
  return "not-found"
end
if redis.call("HGET", key, "used") == "1" then
  return "already-used"
end
local expires = tonumber(redis.call("HGET", key, "expires_at"))
if expires and expires > 0 and expires < tonumber(ARGV[1]) then
  return "expired"
end
redis.call("HSET", key, "used", "1", "used_at", ARGV[1])
return "ok"
`)

var reserveScript = redis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 1 then
  return 0
end
redis.call("HSET", KEYS[1], "email", ARGV[1], "created_at", ARGV[2], "expires_at", ARGV[3], "used", "0", "meta", ARGV[4])
return 1
`)

func NewRedisCredentialStore(client redis.UniversalClient) *RedisCredentialStore {
	return &RedisCredentialStore{client: client, prefix: "credential"}
}

func (s *RedisCredentialStore) Put(ctx context.Context, namespace string, cred *domain.Credential) error {
	fields, err := credentialFields(cred)
	if err != nil {
		return err
	}
	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, s.key(namespace, cred.Token), fields)
	pipe.Publish(ctx, s.channel(namespace), cred.Token)
	if _, err := pipe.Exec(ctx); err != nil {
		observability.RecordRepositoryOperation(ctx, "credential", "put", "error")
		return fmt.Errorf("put credential: %w", err)
	}
	observability.RecordRepositoryOperation(ctx, "credential", "put", "success")
	return nil
}

func (s *RedisCredentialStore) Get(ctx context.Context, namespace, token string) (*domain.Credential, error) {
	raw, err := s.client.HGetAll(ctx, s.key(namespace, token)).Result()
	if err != nil {
		observability.RecordRepositoryOperation(ctx, "credential", "get", "error")
		return nil, fmt.Errorf("get credential: %w", err)
	}
	if len(raw) == 0 {
		observability.RecordRepositoryOperation(ctx, "credential", "get", "not_found")
		return nil, &CredentialInvalidError{Namespace: namespace, Reason: ReasonNotFound}
	}
	cred, err := credentialFromFields(token, raw)
	if err != nil {
		observability.RecordRepositoryOperation(ctx, "credential", "get", "error")
		return nil, err
	}
	observability.RecordRepositoryOperation(ctx, "credential", "get", "success")
	return cred, nil
}

func (s *RedisCredentialStore) Redeem(ctx context.Context, namespace, token string, now time.Time) (*domain.Credential, error) {
	key := s.key(namespace, token)
	outcome, err := redeemScript.Run(ctx, s.client, []string{key}, now.UnixMilli()).Text()
	if err != nil {
		observability.RecordRepositoryOperation(ctx, "credential", "redeem", "error")
		return nil, fmt.Errorf("redeem credential: %w", err)
	}
	if outcome != "ok" {
		observability.RecordRepositoryOperation(ctx, "credential", "redeem", outcome)
		return nil, &CredentialInvalidError{Namespace: namespace, Reason: outcome}
	}
	raw, err := s.client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("read redeemed credential: %w", err)
	}
	cred, err := credentialFromFields(token, raw)
	if err != nil {
		return nil, err
	}
	observability.RecordRepositoryOperation(ctx, "credential", "redeem", "success")
	return cred, nil
}

func (s *RedisCredentialStore) Reserve(ctx context.Context, namespace string, cred *domain.Credential) (bool, error) {
	meta, err := json.Marshal(cred.Meta)
	if err != nil {
		return false, fmt.Errorf("marshal credential meta: %w", err)
	}
	won, err := reserveScript.Run(ctx, s.client,
		[]string{s.key(namespace, cred.Token)},
		cred.Email,
		strconv.FormatInt(cred.CreatedAt.UnixMilli(), 10),
		strconv.FormatInt(expiryMillis(cred.ExpiresAt), 10),
		string(meta),
	).Int()
	if err != nil {
		observability.RecordRepositoryOperation(ctx, "credential", "reserve", "error")
		return false, fmt.Errorf("reserve credential: %w", err)
	}
	if won == 0 {
		observability.RecordRepositoryOperation(ctx, "credential", "reserve", "taken")
		return false, nil
	}
	_ = s.client.Publish(ctx, s.channel(namespace), cred.Token).Err()
	observability.RecordRepositoryOperation(ctx, "credential", "reserve", "success")
	return true, nil
}

func (s *RedisCredentialStore) Scan(ctx context.Context, namespace string, fn func(cred *domain.Credential) error) error {
	match := s.prefix + ":" + namespace + ":*"
	var cursor uint64
	for {
		keys, next, err := s.client.Scan(ctx, cursor, match, 100).Result()
		if err != nil {
			return fmt.Errorf("scan credentials: %w", err)
		}
		for _, key := range keys {
			raw, err := s.client.HGetAll(ctx, key).Result()
			if err != nil {
				return fmt.Errorf("scan credentials: %w", err)
			}
			if len(raw) == 0 {
				continue
			}
			cred, err := credentialFromFields(key[len(match)-1:], raw)
			if err != nil {
				return err
			}
			if err := fn(cred); err != nil {
				return err
			}
		}
		cursor = next
		if cursor == 0 {
			return nil
		}
	}
}

func (s *RedisCredentialStore) Delete(ctx context.Context, namespace string, tokens ...string) (int64, error) {
	if len(tokens) == 0 {
		return 0, nil
	}
	keys := make([]string, len(tokens))
	for i, token := range tokens {
		keys[i] = s.key(namespace, token)
	}
	removed, err := s.client.Del(ctx, keys...).Result()
	if err != nil {
		observability.RecordRepositoryOperation(ctx, "credential", "delete", "error")
		return 0, fmt.Errorf("delete credentials: %w", err)
	}
	observability.RecordRepositoryOperation(ctx, "credential", "delete", "success")
	return removed, nil
}

func (s *RedisCredentialStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Watch subscribes to the namespace's issuance feed and streams tokens
// until ctx is cancelled.
func (s *RedisCredentialStore) Watch(ctx context.Context, namespace string) (<-chan string, error) {
	sub := s.client.Subscribe(ctx, s.channel(namespace))
	if _, err := sub.Receive(ctx); err != nil {
		return nil, fmt.Errorf("subscribe credential feed: %w", err)
	}
	out := make(chan string)
	go func() {
		defer close(out)
		defer func() { _ = sub.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-sub.Channel():
				if !ok {
					return
				}
				select {
				case out <- msg.Payload:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

func (s *RedisCredentialStore) key(namespace, token string) string {
	return fmt.Sprintf("%s:%s:%s", s.prefix, namespace, token)
}

func (s *RedisCredentialStore) channel(namespace string) string {
	return "credential-added:" + namespace
}

func credentialFields(cred *domain.Credential) (map[string]any, error) {
	meta, err := json.Marshal(cred.Meta)
	if err != nil {
		return nil, fmt.Errorf("marshal credential meta: %w", err)
	}
	fields := map[string]any{
		"email":      cred.Email,
		"created_at": strconv.FormatInt(cred.CreatedAt.UnixMilli(), 10),
		"expires_at": strconv.FormatInt(expiryMillis(cred.ExpiresAt), 10),
		"used":       boolField(cred.Used),
		"meta":       string(meta),
	}
	if cred.UsedAt != nil {
		fields["used_at"] = strconv.FormatInt(cred.UsedAt.UnixMilli(), 10)
	}
	return fields, nil
}

func credentialFromFields(token string, raw map[string]string) (*domain.Credential, error) {
	cred := &domain.Credential{
		Token: token,
		Email: raw["email"],
		Used:  raw["used"] == "1",
	}
	if ms, err := strconv.ParseInt(raw["created_at"], 10, 64); err == nil {
		cred.CreatedAt = time.UnixMilli(ms).UTC()
	}
	if ms, err := strconv.ParseInt(raw["expires_at"], 10, 64); err == nil && ms > 0 {
		cred.ExpiresAt = time.UnixMilli(ms).UTC()
	}
	if v, ok := raw["used_at"]; ok && v != "" {
		if ms, err := strconv.ParseInt(v, 10, 64); err == nil {
			at := time.UnixMilli(ms).UTC()
			cred.UsedAt = &at
		}
	}
	if v, ok := raw["meta"]; ok && v != "" {
		if err := json.Unmarshal([]byte(v), &cred.Meta); err != nil {
			return nil, fmt.Errorf("unmarshal credential meta: %w", err)
		}
	}
	return cred, nil
}

func expiryMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func boolField(v bool) string {
	if v {
		return "1"
	}
	return "0"
}
