package repo

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Skotchmaster/storefront/internal/models"
)

func (r *GormRepo) Cart(ctx context.Context, userID uuid.UUID) ([]models.CartItem, error) {
	var items []models.CartItem
	err := r.DB.WithContext(ctx).
		Preload("Item").
		Where("user_id = ?", userID).
		Order("created_at ASC").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *GormRepo) CartItemByID(ctx context.Context, id uuid.UUID) (*models.CartItem, error) {
	var ci models.CartItem
	if err := r.DB.WithContext(ctx).Preload("Item").Where("id = ?", id).First(&ci).Error; err != nil {
		return nil, err
	}
	return &ci, nil
}

func (r *GormRepo) CartItemFor(ctx context.Context, userID, itemID uuid.UUID) (*models.CartItem, error) {
	var ci models.CartItem
	err := r.DB.WithContext(ctx).
		Where("user_id = ? AND item_id = ?", userID, itemID).
		First(&ci).Error
	if err != nil {
		return nil, err
	}
	return &ci, nil
}

// IncrementCartItem bumps quantity by one in the store and returns the
// refreshed row.
func (r *GormRepo) IncrementCartItem(ctx context.Context, id uuid.UUID) (*models.CartItem, error) {
	res := r.DB.WithContext(ctx).Model(&models.CartItem{}).
		Where("id = ?", id).
		UpdateColumn("quantity", gorm.Expr("quantity + ?", 1))
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, gorm.ErrRecordNotFound
	}
	return r.CartItemByID(ctx, id)
}

func (r *GormRepo) CreateCartItem(ctx context.Context, ci *models.CartItem) error {
	if err := r.DB.WithContext(ctx).Omit(clause.Associations).Create(ci).Error; err != nil {
		return err
	}
	return r.DB.WithContext(ctx).Preload("Item").Where("id = ?", ci.ID).First(ci).Error
}

func (r *GormRepo) DeleteCartItem(ctx context.Context, id uuid.UUID) error {
	res := r.DB.WithContext(ctx).Where("id = ?", id).Delete(&models.CartItem{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
