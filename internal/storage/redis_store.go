package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/uistack/comp-vs/internal/types"
)

// RedisConfig defines Redis connection settings.
type RedisConfig struct {
	Addr     string
	Username string
	Password string
	Database int
}

type redisStore struct {
	client *redis.Client
	clock  func() time.Time
}

// NewRedisStore initializes a VersionStore backed by Redis.
func NewRedisStore(cfg RedisConfig) (VersionStore, error) {
	addr := cfg.Addr
	if addr == "" {
		addr = "localhost:6379"
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Username: cfg.Username,
		Password: cfg.Password,
		DB:       cfg.Database,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return &redisStore{client: client, clock: time.Now}, nil
}

func (s *redisStore) CreateProject(ctx context.Context, p types.Project) (types.Project, error) {
	if p.ID == "" {
		return types.Project{}, &ValidationError{Message: "project id is required"}
	}
	if p.Name == "" {
		return types.Project{}, &ValidationError{Message: "project name is required"}
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = s.clock().UTC()
	}

	payload, err := json.Marshal(p)
	if err != nil {
		return types.Project{}, err
	}

	ok, err := s.client.SetNX(ctx, projectKey(p.ID), payload, 0).Result()
	if err != nil {
		return types.Project{}, err
	}
	if !ok {
		return types.Project{}, &ConflictError{Resource: "project", Key: p.ID}
	}
	return p, nil
}

func (s *redisStore) GetProject(ctx context.Context, id string) (types.Project, error) {
	bytes, err := s.client.Get(ctx, projectKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return types.Project{}, &NotFoundError{Resource: "project", Key: id}
		}
		return types.Project{}, err
	}

	var p types.Project
	if err := json.Unmarshal(bytes, &p); err != nil {
		return types.Project{}, err
	}
	return p, nil
}

func (s *redisStore) CreateVersion(ctx context.Context, v types.ComponentVersion, audit types.AuditEntry) (types.ComponentVersion, error) {
	if err := validateVersion(v); err != nil {
		return types.ComponentVersion{}, err
	}

	vKey := versionKey(v.ID)
	pairKey := semverKey(v.ComponentKey, v.Version)
	historySet := historyKey(v.ComponentKey)

	for {
		err := s.client.Watch(ctx, func(tx *redis.Tx) error {
			exists, err := tx.Exists(ctx, vKey).Result()
			if err != nil {
				return err
			}
			if exists == 1 {
				return &ConflictError{Resource: "version", Key: v.ID}
			}

			exists, err = tx.Exists(ctx, pairKey).Result()
			if err != nil {
				return err
			}
			if exists == 1 {
				return &ConflictError{Resource: "version", Key: v.ComponentKey + "@" + v.Version}
			}

			payload, err := json.Marshal(v)
			if err != nil {
				return err
			}

			pipe := tx.TxPipeline()
			pipe.Set(ctx, vKey, payload, 0)
			pipe.Set(ctx, pairKey, v.ID, 0)
			pipe.ZAdd(ctx, historySet, redis.Z{Score: float64(v.CreatedAt.UnixNano()), Member: v.ID})
			if err := s.queueAudit(ctx, pipe, v.ID, audit); err != nil {
				return err
			}
			_, err = pipe.Exec(ctx)
			return err
		}, vKey, pairKey)

		if err == nil {
			return v, nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return types.ComponentVersion{}, err
	}
}

func (s *redisStore) GetVersion(ctx context.Context, id string) (types.ComponentVersion, error) {
	return s.getVersion(ctx, s.client, id)
}

func (s *redisStore) UpdateVersion(ctx context.Context, v types.ComponentVersion, audit types.AuditEntry) (types.ComponentVersion, error) {
	if err := validateVersion(v); err != nil {
		return types.ComponentVersion{}, err
	}

	vKey := versionKey(v.ID)

	for {
		err := s.client.Watch(ctx, func(tx *redis.Tx) error {
			exists, err := tx.Exists(ctx, vKey).Result()
			if err != nil {
				return err
			}
			if exists == 0 {
				return &NotFoundError{Resource: "version", Key: v.ID}
			}

			payload, err := json.Marshal(v)
			if err != nil {
				return err
			}

			pipe := tx.TxPipeline()
			pipe.Set(ctx, vKey, payload, 0)
			if err := s.queueAudit(ctx, pipe, v.ID, audit); err != nil {
				return err
			}
			_, err = pipe.Exec(ctx)
			return err
		}, vKey)

		if err == nil {
			return v, nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return types.ComponentVersion{}, err
	}
}

func (s *redisStore) PublishVersion(ctx context.Context, v types.ComponentVersion, audit types.AuditEntry) (types.ComponentVersion, types.ComponentVersion, error) {
	if err := validateVersion(v); err != nil {
		return types.ComponentVersion{}, types.ComponentVersion{}, err
	}

	vKey := versionKey(v.ID)
	curKey := currentKey(v.ComponentKey)

	var demoted types.ComponentVersion

	for {
		demoted = types.ComponentVersion{}

		err := s.client.Watch(ctx, func(tx *redis.Tx) error {
			exists, err := tx.Exists(ctx, vKey).Result()
			if err != nil {
				return err
			}
			if exists == 0 {
				return &NotFoundError{Resource: "version", Key: v.ID}
			}

			prevID, err := tx.Get(ctx, curKey).Result()
			if err != nil && !errors.Is(err, redis.Nil) {
				return err
			}

			pipe := tx.TxPipeline()

			if prevID != "" && prevID != v.ID {
				prev, err := s.getVersion(ctx, tx, prevID)
				if err != nil {
					return err
				}
				prev.Status = types.StatusSuperseded
				prev.UpdatedAt = v.UpdatedAt
				prevPayload, err := json.Marshal(prev)
				if err != nil {
					return err
				}
				pipe.Set(ctx, versionKey(prevID), prevPayload, 0)
				demoted = prev
			}

			payload, err := json.Marshal(v)
			if err != nil {
				return err
			}
			pipe.Set(ctx, vKey, payload, 0)
			pipe.Set(ctx, curKey, v.ID, 0)
			if err := s.queueAudit(ctx, pipe, v.ID, audit); err != nil {
				return err
			}
			_, err = pipe.Exec(ctx)
			return err
		}, vKey, curKey)

		if err == nil {
			return v, demoted, nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return types.ComponentVersion{}, types.ComponentVersion{}, err
	}
}

func (s *redisStore) LatestVersion(ctx context.Context, componentKey string) (types.ComponentVersion, error) {
	ids, err := s.client.ZRevRange(ctx, historyKey(componentKey), 0, 0).Result()
	if err != nil {
		return types.ComponentVersion{}, err
	}
	if len(ids) == 0 {
		return types.ComponentVersion{}, &NotFoundError{Resource: "version", Key: componentKey}
	}
	return s.getVersion(ctx, s.client, ids[0])
}

func (s *redisStore) CurrentPublished(ctx context.Context, componentKey string) (types.ComponentVersion, error) {
	id, err := s.client.Get(ctx, currentKey(componentKey)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return types.ComponentVersion{}, &NotFoundError{Resource: "published version", Key: componentKey}
		}
		return types.ComponentVersion{}, err
	}
	return s.getVersion(ctx, s.client, id)
}

func (s *redisStore) ListVersions(ctx context.Context, opts ListVersionsOptions) []types.ComponentVersion {
	if opts.ComponentKey == "" {
		return []types.ComponentVersion{}
	}

	key := historyKey(opts.ComponentKey)
	end := int64(-1)
	if opts.Limit > 0 {
		end = int64(opts.Limit) - 1
	}

	var (
		ids []string
		err error
	)
	if opts.Descending {
		ids, err = s.client.ZRevRange(ctx, key, 0, end).Result()
	} else {
		ids, err = s.client.ZRange(ctx, key, 0, end).Result()
	}
	if err != nil {
		return []types.ComponentVersion{}
	}

	result := make([]types.ComponentVersion, 0, len(ids))
	for _, id := range ids {
		v, err := s.getVersion(ctx, s.client, id)
		if err != nil {
			continue
		}
		result = append(result, v)
	}
	return result
}

func (s *redisStore) ListAudit(ctx context.Context, versionID string) []types.AuditEntry {
	items, err := s.client.LRange(ctx, auditKey(versionID), 0, -1).Result()
	if err != nil {
		return []types.AuditEntry{}
	}

	result := make([]types.AuditEntry, 0, len(items))
	for _, item := range items {
		var entry types.AuditEntry
		if err := json.Unmarshal([]byte(item), &entry); err != nil {
			continue
		}
		result = append(result, entry)
	}
	return result
}

// getter is satisfied by both *redis.Client and *redis.Tx.
type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func (s *redisStore) getVersion(ctx context.Context, c getter, id string) (types.ComponentVersion, error) {
	bytes, err := c.Get(ctx, versionKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return types.ComponentVersion{}, &NotFoundError{Resource: "version", Key: id}
		}
		return types.ComponentVersion{}, err
	}

	var v types.ComponentVersion
	if err := json.Unmarshal(bytes, &v); err != nil {
		return types.ComponentVersion{}, err
	}
	return v, nil
}

func (s *redisStore) queueAudit(ctx context.Context, pipe redis.Pipeliner, versionID string, audit types.AuditEntry) error {
	if audit.Action == "" {
		return nil
	}
	if audit.ComponentVersionID == "" {
		audit.ComponentVersionID = versionID
	}
	if audit.CreatedAt.IsZero() {
		audit.CreatedAt = s.clock().UTC()
	}
	payload, err := json.Marshal(audit)
	if err != nil {
		return err
	}
	pipe.RPush(ctx, auditKey(versionID), payload)
	return nil
}

func projectKey(id string) string {
	return fmt.Sprintf("project:%s", id)
}

func versionKey(id string) string {
	return fmt.Sprintf("version:%s", id)
}

func semverKey(componentKey, version string) string {
	return fmt.Sprintf("component:semver:%s:%s", componentKey, version)
}

func historyKey(componentKey string) string {
	return fmt.Sprintf("component:versions:%s", componentKey)
}

func currentKey(componentKey string) string {
	return fmt.Sprintf("component:current:%s", componentKey)
}

func auditKey(versionID string) string {
	return fmt.Sprintf("audit:%s", versionID)
}
