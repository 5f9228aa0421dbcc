package repo

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Skotchmaster/storefront/internal/models"
)

// ItemPatch holds the fields of an item update; nil fields are left alone.
type ItemPatch struct {
	Title       *string
	Description *string
	Image       *string
	LargeImage  *string
	Price       *int64
}

type ItemQuery struct {
	SearchTerm string
	OrderBy    string
	Offset     int
	Limit      int
}

var itemOrders = map[string]string{
	"createdAt_ASC":  "created_at ASC",
	"createdAt_DESC": "created_at DESC",
	"price_ASC":      "price ASC",
	"price_DESC":     "price DESC",
	"title_ASC":      "title ASC",
	"title_DESC":     "title DESC",
}

// ValidItemOrder reports whether s is a known orderBy value.
func ValidItemOrder(s string) bool {
	_, ok := itemOrders[s]
	return ok
}

func (r *GormRepo) CreateItem(ctx context.Context, item *models.Item) error {
	return r.DB.WithContext(ctx).Create(item).Error
}

func (r *GormRepo) ItemByID(ctx context.Context, id uuid.UUID) (*models.Item, error) {
	var item models.Item
	if err := r.DB.WithContext(ctx).Where("id = ?", id).First(&item).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

// ItemsByIDs returns the items in the order of ids, skipping ids that no
// longer exist.
func (r *GormRepo) ItemsByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Item, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var found []models.Item
	if err := r.DB.WithContext(ctx).Where("id IN ?", ids).Find(&found).Error; err != nil {
		return nil, err
	}
	byID := make(map[uuid.UUID]models.Item, len(found))
	for _, it := range found {
		byID[it.ID] = it
	}
	items := make([]models.Item, 0, len(found))
	for _, id := range ids {
		if it, ok := byID[id]; ok {
			items = append(items, it)
		}
	}
	return items, nil
}

func (r *GormRepo) UpdateItem(ctx context.Context, id uuid.UUID, patch ItemPatch) (*models.Item, error) {
	var item models.Item
	if err := r.DB.WithContext(ctx).Where("id = ?", id).First(&item).Error; err != nil {
		return nil, err
	}

	if patch.Title != nil {
		item.Title = *patch.Title
	}
	if patch.Description != nil {
		item.Description = *patch.Description
	}
	if patch.Image != nil {
		item.Image = *patch.Image
	}
	if patch.LargeImage != nil {
		item.LargeImage = *patch.LargeImage
	}
	if patch.Price != nil {
		item.Price = *patch.Price
	}

	if err := r.DB.WithContext(ctx).Save(&item).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

// DeleteItem removes the item together with any cart lines pointing at it.
func (r *GormRepo) DeleteItem(ctx context.Context, id uuid.UUID) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("item_id = ?", id).Delete(&models.CartItem{}).Error; err != nil {
			return err
		}
		res := tx.Where("id = ?", id).Delete(&models.Item{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

func (r *GormRepo) filterItems(ctx context.Context, term string) *gorm.DB {
	q := r.DB.WithContext(ctx).Model(&models.Item{})
	if term = strings.TrimSpace(term); term != "" {
		like := "%" + strings.ToLower(term) + "%"
		q = q.Where("LOWER(title) LIKE ? OR LOWER(description) LIKE ?", like, like)
	}
	return q
}

func (r *GormRepo) ListItems(ctx context.Context, q ItemQuery) ([]models.Item, error) {
	order, ok := itemOrders[q.OrderBy]
	if !ok {
		order = "created_at DESC"
	}

	var items []models.Item
	err := r.filterItems(ctx, q.SearchTerm).
		Order(order).
		Order("id ASC").
		Offset(q.Offset).
		Limit(q.Limit).
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *GormRepo) CountItems(ctx context.Context, term string) (int64, error) {
	var total int64
	if err := r.filterItems(ctx, term).Count(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}
