package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/gema-discuss/internal/models"
)

// AssociationRepository stores thread to discussion associations, keyed by thread id.
type AssociationRepository interface {
	FindByThread(ctx context.Context, threadID string) (models.ThreadDiscussion, error)
	Record(ctx context.Context, association models.ThreadDiscussion) error
}

// AssociationClaimer is implemented by stores that can claim a thread with an insert-if-absent write.
type AssociationClaimer interface {
	Claim(ctx context.Context, threadID, claimant string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, threadID, claimant string) error
}

// ClaimingAssociationRepository is an association store that supports claims.
type ClaimingAssociationRepository interface {
	AssociationRepository
	AssociationClaimer
}

type associationRepository struct {
	db  *gorm.DB
	now func() time.Time
}

// NewAssociationRepository constructs an association store backed by GORM. The unique
// thread_id index provides the conditional write used for claims.
func NewAssociationRepository(db *gorm.DB) ClaimingAssociationRepository {
	return &associationRepository{db: db, now: time.Now}
}

func (r *associationRepository) FindByThread(ctx context.Context, threadID string) (models.ThreadDiscussion, error) {
	var association models.ThreadDiscussion
	if err := r.db.WithContext(ctx).Where("thread_id = ?", threadID).First(&association).Error; err != nil {
		return models.ThreadDiscussion{}, translateError(err)
	}
	return association, nil
}

func (r *associationRepository) Claim(ctx context.Context, threadID, claimant string, ttl time.Duration) (bool, error) {
	now := r.now().UTC()
	claim := models.ThreadDiscussion{
		ThreadID:  threadID,
		ClaimedBy: claimant,
		ClaimedAt: now,
	}

	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "thread_id"}}, DoNothing: true}).
		Create(&claim)
	if result.Error != nil {
		return false, result.Error
	}
	if result.RowsAffected == 1 {
		return true, nil
	}

	if ttl <= 0 {
		return false, nil
	}

	// An abandoned claim can be taken over once it is older than ttl.
	result = r.db.WithContext(ctx).
		Model(&models.ThreadDiscussion{}).
		Where("thread_id = ? AND discussion_id = ? AND claimed_at < ?", threadID, "", now.Add(-ttl)).
		Updates(map[string]interface{}{"claimed_by": claimant, "claimed_at": now})
	if result.Error != nil {
		return false, result.Error
	}

	return result.RowsAffected == 1, nil
}

func (r *associationRepository) Release(ctx context.Context, threadID, claimant string) error {
	return r.db.WithContext(ctx).
		Where("thread_id = ? AND claimed_by = ? AND discussion_id = ?", threadID, claimant, "").
		Delete(&models.ThreadDiscussion{}).Error
}

// Record completes a claim held by association.ClaimedBy or inserts a new association.
// Recording the same discussion twice is a no-op; a thread already bound to another
// discussion yields ErrDuplicateEntry.
func (r *associationRepository) Record(ctx context.Context, association models.ThreadDiscussion) error {
	if association.ThreadID == "" || association.DiscussionID == "" {
		return errors.New("association requires thread and discussion ids")
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		claimed := tx.Model(&models.ThreadDiscussion{}).
			Where("thread_id = ? AND discussion_id = ? AND claimed_by = ?", association.ThreadID, "", association.ClaimedBy).
			Updates(map[string]interface{}{
				"discussion_id":  association.DiscussionID,
				"parent_room_id": association.ParentRoomID,
				"room_type":      association.RoomType,
				"slug":           association.Slug,
				"display_name":   association.DisplayName,
				"snapshot":       association.Snapshot,
			})
		if claimed.Error != nil {
			return claimed.Error
		}
		if claimed.RowsAffected == 1 {
			return nil
		}

		var existing models.ThreadDiscussion
		err := tx.Where("thread_id = ?", association.ThreadID).First(&existing).Error
		switch {
		case err == nil:
			if existing.DiscussionID == association.DiscussionID {
				return nil
			}
			return ErrDuplicateEntry
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return err
		}

		association.ID = 0
		if association.ClaimedAt.IsZero() {
			association.ClaimedAt = r.now().UTC()
		}
		return translateError(tx.Create(&association).Error)
	})
}
