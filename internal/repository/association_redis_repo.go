package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/gema-discuss/internal/models"
)

const associationRecordRetries = 3

type stringGetter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

type redisAssociationRepository struct {
	client *redis.Client
	prefix string
	now    func() time.Time
}

// NewRedisAssociationRepository constructs an association store on redis. Claims use SETNX with
// an expiry so abandoned claims lapse on their own.
func NewRedisAssociationRepository(client *redis.Client, prefix string) ClaimingAssociationRepository {
	if prefix == "" {
		prefix = "discuss"
	}
	return &redisAssociationRepository{client: client, prefix: prefix, now: time.Now}
}

func (r *redisAssociationRepository) key(threadID string) string {
	return fmt.Sprintf("%s:thread:%s", r.prefix, threadID)
}

func (r *redisAssociationRepository) FindByThread(ctx context.Context, threadID string) (models.ThreadDiscussion, error) {
	association, err := r.get(ctx, r.client, threadID)
	if err != nil {
		return models.ThreadDiscussion{}, err
	}
	return association, nil
}

func (r *redisAssociationRepository) Claim(ctx context.Context, threadID, claimant string, ttl time.Duration) (bool, error) {
	payload, err := json.Marshal(models.ThreadDiscussion{
		ThreadID:  threadID,
		ClaimedBy: claimant,
		ClaimedAt: r.now().UTC(),
	})
	if err != nil {
		return false, err
	}

	return r.client.SetNX(ctx, r.key(threadID), payload, ttl).Result()
}

func (r *redisAssociationRepository) Release(ctx context.Context, threadID, claimant string) error {
	key := r.key(threadID)
	err := r.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := r.get(ctx, tx, threadID)
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if !current.Pending() || current.ClaimedBy != claimant {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, key)
			return nil
		})
		return err
	}, key)
	if errors.Is(err, redis.TxFailedErr) {
		return nil
	}
	return err
}

func (r *redisAssociationRepository) Record(ctx context.Context, association models.ThreadDiscussion) error {
	if association.ThreadID == "" || association.DiscussionID == "" {
		return errors.New("association requires thread and discussion ids")
	}
	if association.CreatedAt.IsZero() {
		association.CreatedAt = r.now().UTC()
	}
	association.UpdatedAt = association.CreatedAt

	payload, err := json.Marshal(association)
	if err != nil {
		return err
	}

	key := r.key(association.ThreadID)
	record := func(tx *redis.Tx) error {
		current, err := r.get(ctx, tx, association.ThreadID)
		switch {
		case errors.Is(err, ErrNotFound):
		case err != nil:
			return err
		case current.Pending() && current.ClaimedBy != association.ClaimedBy:
			return ErrDuplicateEntry
		case !current.Pending() && current.DiscussionID != association.DiscussionID:
			return ErrDuplicateEntry
		case !current.Pending():
			return nil
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, payload, 0)
			return nil
		})
		return err
	}

	for attempt := 0; attempt < associationRecordRetries; attempt++ {
		err = r.client.Watch(ctx, record, key)
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
	}

	return err
}

func (r *redisAssociationRepository) get(ctx context.Context, cmd stringGetter, threadID string) (models.ThreadDiscussion, error) {
	raw, err := cmd.Get(ctx, r.key(threadID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return models.ThreadDiscussion{}, ErrNotFound
	}
	if err != nil {
		return models.ThreadDiscussion{}, err
	}

	var association models.ThreadDiscussion
	if err := json.Unmarshal(raw, &association); err != nil {
		return models.ThreadDiscussion{}, fmt.Errorf("decode association %s: %w", threadID, err)
	}
	return association, nil
}
