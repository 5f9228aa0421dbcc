package repo

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/Skotchmaster/storefront/internal/models"
)

func (r *GormRepo) CreateUser(ctx context.Context, u *models.User) error {
	return r.DB.WithContext(ctx).Create(u).Error
}

func (r *GormRepo) UserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := r.DB.WithContext(ctx).Where("id = ?", id).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *GormRepo) UserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := r.DB.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *GormRepo) UserByResetToken(ctx context.Context, token string) (*models.User, error) {
	var user models.User
	if err := r.DB.WithContext(ctx).Where("reset_token = ?", token).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *GormRepo) ListUsers(ctx context.Context) ([]models.User, error) {
	var users []models.User
	if err := r.DB.WithContext(ctx).Order("created_at ASC").Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

func (r *GormRepo) SetResetToken(ctx context.Context, userID uuid.UUID, token string, expiry time.Time) error {
	return r.DB.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", userID).
		Updates(map[string]any{"reset_token": token, "reset_token_expiry": expiry}).Error
}

// ResetPassword stores the new hash and clears the reset token fields.
func (r *GormRepo) ResetPassword(ctx context.Context, userID uuid.UUID, passwordHash string) (*models.User, error) {
	err := r.DB.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", userID).
		Updates(map[string]any{
			"password_hash":      passwordHash,
			"reset_token":        nil,
			"reset_token_expiry": nil,
		}).Error
	if err != nil {
		return nil, err
	}
	return r.UserByID(ctx, userID)
}

func (r *GormRepo) UpdatePermissions(ctx context.Context, userID uuid.UUID, perms models.Permissions) (*models.User, error) {
	if err := r.DB.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", userID).
		Update("permissions", perms).Error; err != nil {
		return nil, err
	}
	return r.UserByID(ctx, userID)
}
