package service

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Skotchmaster/storefront/internal/events"
	"github.com/Skotchmaster/storefront/internal/models"
	"github.com/Skotchmaster/storefront/internal/repo"
)

type CartService struct {
	Repo   *repo.GormRepo
	Events events.Publisher
}

// CartFor lists the cart of userID. Only that user or an ADMIN may see it.
func (s *CartService) CartFor(ctx context.Context, userID uuid.UUID) ([]models.CartItem, error) {
	caller, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}
	if caller.ID != userID {
		if err := HasPermission(caller, models.PermissionAdmin); err != nil {
			return nil, err
		}
	}
	items, err := s.Repo.Cart(ctx, userID)
	if err != nil {
		return nil, storeErr(err, "cart")
	}
	return items, nil
}

// AddToCart puts one more of the item in the caller's cart.
func (s *CartService) AddToCart(ctx context.Context, itemID uuid.UUID) (*models.CartItem, error) {
	user, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := s.Repo.ItemByID(ctx, itemID); err != nil {
		return nil, storeErr(err, "item")
	}

	var ci *models.CartItem
	existing, err := s.Repo.CartItemFor(ctx, user.ID, itemID)
	switch {
	case err == nil:
		ci, err = s.Repo.IncrementCartItem(ctx, existing.ID)
	case errors.Is(err, gorm.ErrRecordNotFound):
		ci = &models.CartItem{UserID: user.ID, ItemID: itemID, Quantity: 1}
		err = s.Repo.CreateCartItem(ctx, ci)
	}
	if err != nil {
		return nil, storeErr(err, "cart item")
	}

	publish(ctx, s.Events, events.TopicCarts, events.Event{
		Type:     "cart_item_added",
		EntityID: ci.ID.String(),
		UserID:   user.ID.String(),
		Data:     map[string]any{"item_id": itemID.String(), "quantity": ci.Quantity},
	})
	return ci, nil
}

func (s *CartService) RemoveFromCart(ctx context.Context, cartItemID uuid.UUID) (*models.CartItem, error) {
	user, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}

	ci, err := s.Repo.CartItemByID(ctx, cartItemID)
	if err != nil {
		return nil, storeErr(err, "cart item")
	}
	if ci.UserID != user.ID {
		return nil, ErrForbidden
	}
	if err := s.Repo.DeleteCartItem(ctx, ci.ID); err != nil {
		return nil, storeErr(err, "cart item")
	}

	publish(ctx, s.Events, events.TopicCarts, events.Event{
		Type:     "cart_item_removed",
		EntityID: ci.ID.String(),
		UserID:   user.ID.String(),
		Data:     map[string]any{"item_id": ci.ItemID.String()},
	})
	return ci, nil
}
