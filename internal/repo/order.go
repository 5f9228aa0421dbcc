package repo

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Skotchmaster/storefront/internal/models"
)

// ErrAttemptSettled is returned when a checkout attempt has already left
// the charged state, e.g. because another worker completed it.
var ErrAttemptSettled = errors.New("charge attempt already settled")

func (r *GormRepo) CreateChargeAttempt(ctx context.Context, a *models.ChargeAttempt) error {
	return r.DB.WithContext(ctx).Create(a).Error
}

func (r *GormRepo) ChargeAttemptByID(ctx context.Context, id uuid.UUID) (*models.ChargeAttempt, error) {
	var a models.ChargeAttempt
	if err := r.DB.WithContext(ctx).Where("id = ?", id).First(&a).Error; err != nil {
		return nil, err
	}
	return &a, nil
}

// MarkAttempt moves an attempt from one status to another. It reports
// ErrAttemptSettled when the attempt is no longer in from.
func (r *GormRepo) MarkAttempt(ctx context.Context, id uuid.UUID, from, to models.ChargeStatus, chargeID, reason string) error {
	updates := map[string]any{"status": to}
	if chargeID != "" {
		updates["charge_id"] = chargeID
	}
	if reason != "" {
		updates["error"] = reason
	}
	res := r.DB.WithContext(ctx).Model(&models.ChargeAttempt{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrAttemptSettled
	}
	return nil
}

// AttemptsOlderThan lists attempts in status created before cutoff.
func (r *GormRepo) AttemptsOlderThan(ctx context.Context, status models.ChargeStatus, cutoff time.Time) ([]models.ChargeAttempt, error) {
	var out []models.ChargeAttempt
	err := r.DB.WithContext(ctx).
		Where("status = ? AND created_at < ?", status, cutoff.UTC()).
		Order("created_at ASC").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

// CompleteCheckout writes the order with its lines, takes the purchased
// quantities out of the cart and marks the attempt completed, all in one
// transaction. A cart row is removed only when nothing beyond the paid
// quantity is left on it.
func (r *GormRepo) CompleteCheckout(ctx context.Context, attempt *models.ChargeAttempt, order *models.Order) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(order).Error; err != nil {
			return err
		}

		res := tx.Model(&models.ChargeAttempt{}).
			Where("id = ? AND status = ?", attempt.ID, models.ChargeCharged).
			Updates(map[string]any{"status": models.ChargeCompleted, "order_id": order.ID})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrAttemptSettled
		}

		for _, line := range attempt.Lines {
			if line.CartItemID == "" || line.Quantity == 0 {
				continue
			}
			if err := takeFromCart(tx, attempt.UserID, line.CartItemID, line.Quantity); err != nil {
				return err
			}
		}
		return nil
	})
}

func takeFromCart(tx *gorm.DB, userID uuid.UUID, cartItemID string, qty uint) error {
	res := tx.Where("id = ? AND user_id = ? AND quantity <= ?", cartItemID, userID, qty).
		Delete(&models.CartItem{})
	if res.Error != nil || res.RowsAffected > 0 {
		return res.Error
	}
	return tx.Model(&models.CartItem{}).
		Where("id = ? AND user_id = ? AND quantity > ?", cartItemID, userID, qty).
		UpdateColumn("quantity", gorm.Expr("quantity - ?", qty)).Error
}

func (r *GormRepo) OrderByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var o models.Order
	if err := r.DB.WithContext(ctx).Preload("Items").Where("id = ?", id).First(&o).Error; err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *GormRepo) OrdersForUser(ctx context.Context, userID uuid.UUID) ([]models.Order, error) {
	var orders []models.Order
	err := r.DB.WithContext(ctx).
		Preload("Items").
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&orders).Error
	if err != nil {
		return nil, err
	}
	return orders, nil
}
