package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/gema-discuss/internal/models"
)

// DiscussionParams describes a discussion room to create below a parent room.
type DiscussionParams struct {
	ParentID        string
	Creator         models.User
	DisplayName     string
	Slug            string
	MemberUsernames []string
	OriginThreadID  string
	Metadata        map[string]interface{}
}

// RoomRepository is the room directory and the room mutation primitive of the chat host.
type RoomRepository interface {
	Create(ctx context.Context, room *models.Room, members []models.User) error
	FindByID(ctx context.Context, id string) (models.Room, error)
	FindByName(ctx context.Context, name string) (models.Room, error)
	ListMembers(ctx context.Context, roomID string) ([]models.RoomMember, error)
	IsMember(ctx context.Context, roomID, userID string) (bool, error)
	AddMember(ctx context.Context, roomID string, user models.User) error
	CreateDiscussion(ctx context.Context, params DiscussionParams) (models.Room, error)
}

type roomRepository struct {
	db *gorm.DB
}

// NewRoomRepository constructs a GORM-backed room repository.
func NewRoomRepository(db *gorm.DB) RoomRepository {
	return &roomRepository{db: db}
}

func (r *roomRepository) Create(ctx context.Context, room *models.Room, members []models.User) error {
	if room.ID == "" {
		room.ID = uuid.NewString()
	}
	room.ParentID = ""

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(room).Error; err != nil {
			return translateError(err)
		}
		return addMembers(tx, room.ID, members)
	})
}

func (r *roomRepository) FindByID(ctx context.Context, id string) (models.Room, error) {
	var room models.Room
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&room).Error; err != nil {
		return models.Room{}, translateError(err)
	}
	return room, nil
}

// FindByName resolves a top-level room by its name.
func (r *roomRepository) FindByName(ctx context.Context, name string) (models.Room, error) {
	var room models.Room
	if err := r.db.WithContext(ctx).
		Where("parent_id = ? AND name = ?", "", strings.TrimSpace(name)).
		First(&room).Error; err != nil {
		return models.Room{}, translateError(err)
	}
	return room, nil
}

func (r *roomRepository) ListMembers(ctx context.Context, roomID string) ([]models.RoomMember, error) {
	var members []models.RoomMember
	if err := r.db.WithContext(ctx).
		Where("room_id = ?", roomID).
		Order("created_at ASC").
		Find(&members).Error; err != nil {
		return nil, err
	}
	return members, nil
}

func (r *roomRepository) IsMember(ctx context.Context, roomID, userID string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.RoomMember{}).
		Where("room_id = ? AND user_id = ?", roomID, userID).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// AddMember adds the user to the room. Adding an existing member is a no-op.
func (r *roomRepository) AddMember(ctx context.Context, roomID string, user models.User) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var room models.Room
		if err := tx.Select("id").Where("id = ?", roomID).First(&room).Error; err != nil {
			return translateError(err)
		}
		return addMembers(tx, roomID, []models.User{user})
	})
}

func (r *roomRepository) CreateDiscussion(ctx context.Context, params DiscussionParams) (models.Room, error) {
	var discussion models.Room

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var parent models.Room
		if err := tx.Where("id = ?", params.ParentID).First(&parent).Error; err != nil {
			return translateError(err)
		}

		if parent.IsDiscussion() || parent.IsDirect() {
			return notAllowed("discussions can only be started in channels and private groups")
		}
		if parent.ReadOnly {
			return notAllowed(fmt.Sprintf("room %s is read-only", parent.Label()))
		}
		if strings.TrimSpace(params.Slug) == "" {
			return notAllowed("discussion name is invalid")
		}

		var membership int64
		if err := tx.Model(&models.RoomMember{}).
			Where("room_id = ? AND user_id = ?", parent.ID, params.Creator.ID).
			Count(&membership).Error; err != nil {
			return err
		}
		if membership == 0 {
			return notAllowed("you are not allowed to start a discussion in this room")
		}

		duplicateName := notAllowed(fmt.Sprintf("a discussion named %q already exists in %s", params.DisplayName, parent.Label()))

		var existing int64
		if err := tx.Model(&models.Room{}).
			Where("parent_id = ? AND name = ?", parent.ID, params.Slug).
			Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			return duplicateName
		}

		discussion = models.Room{
			ID:             uuid.NewString(),
			Type:           parent.Type,
			ParentID:       parent.ID,
			Name:           params.Slug,
			DisplayName:    params.DisplayName,
			CreatorID:      params.Creator.ID,
			OriginThreadID: params.OriginThreadID,
		}
		if len(params.Metadata) > 0 {
			discussion.Metadata = datatypes.JSONMap(params.Metadata)
		}

		if err := tx.Create(&discussion).Error; err != nil {
			if errors.Is(translateError(err), ErrDuplicateEntry) {
				return duplicateName
			}
			return err
		}

		members := []models.User{params.Creator}
		if len(params.MemberUsernames) > 0 {
			var seeded []models.User
			if err := tx.Where("username IN ?", params.MemberUsernames).Find(&seeded).Error; err != nil {
				return err
			}
			members = append(members, seeded...)
		}

		return addMembers(tx, discussion.ID, members)
	})
	if err != nil {
		return models.Room{}, err
	}

	return discussion, nil
}

func addMembers(tx *gorm.DB, roomID string, users []models.User) error {
	if len(users) == 0 {
		return nil
	}

	members := make([]models.RoomMember, 0, len(users))
	seen := make(map[string]struct{}, len(users))
	for _, user := range users {
		if user.ID == "" {
			continue
		}
		if _, ok := seen[user.ID]; ok {
			continue
		}
		seen[user.ID] = struct{}{}
		members = append(members, models.RoomMember{RoomID: roomID, UserID: user.ID, Username: user.Username})
	}
	if len(members) == 0 {
		return nil
	}

	return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&members).Error
}
