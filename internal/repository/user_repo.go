package repository

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/gema-discuss/internal/models"
)

// UserRepository resolves chat identities.
type UserRepository interface {
	FindByID(ctx context.Context, id string) (models.User, error)
	FindByUsername(ctx context.Context, username string) (models.User, error)
	FindByUsernames(ctx context.Context, usernames []string) ([]models.User, error)
	EnsureByUsername(ctx context.Context, username, displayName string) (models.User, error)
	Upsert(ctx context.Context, id, username string) error
}

type userRepository struct {
	db *gorm.DB
}

// NewUserRepository constructs a GORM-backed user repository.
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) FindByID(ctx context.Context, id string) (models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&user).Error; err != nil {
		return models.User{}, translateError(err)
	}
	return user, nil
}

func (r *userRepository) FindByUsername(ctx context.Context, username string) (models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("username = ?", strings.TrimSpace(username)).First(&user).Error; err != nil {
		return models.User{}, translateError(err)
	}
	return user, nil
}

func (r *userRepository) FindByUsernames(ctx context.Context, usernames []string) ([]models.User, error) {
	if len(usernames) == 0 {
		return nil, nil
	}

	var users []models.User
	if err := r.db.WithContext(ctx).Where("username IN ?", usernames).Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

// EnsureByUsername returns the user with the given username, creating it when missing.
func (r *userRepository) EnsureByUsername(ctx context.Context, username, displayName string) (models.User, error) {
	username = strings.TrimSpace(username)
	user := models.User{
		ID:          uuid.NewString(),
		Username:    username,
		DisplayName: displayName,
	}

	if err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "username"}}, DoNothing: true}).
		Create(&user).Error; err != nil {
		return models.User{}, err
	}

	return r.FindByUsername(ctx, username)
}

// Upsert records the identity asserted by an access token, refreshing the username when it changed.
func (r *userRepository) Upsert(ctx context.Context, id, username string) error {
	user := models.User{
		ID:          strings.TrimSpace(id),
		Username:    strings.TrimSpace(username),
		DisplayName: strings.TrimSpace(username),
	}

	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"username"}),
		}).
		Create(&user).Error
	return translateError(err)
}
