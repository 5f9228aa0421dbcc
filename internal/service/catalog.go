package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/Skotchmaster/storefront/internal/events"
	"github.com/Skotchmaster/storefront/internal/models"
	"github.com/Skotchmaster/storefront/internal/repo"
	"github.com/Skotchmaster/storefront/internal/search"
	"github.com/Skotchmaster/storefront/internal/util"
	"github.com/Skotchmaster/storefront/pkg/logging"
)

type CatalogService struct {
	Repo *repo.GormRepo
	// Index is optional; without it search falls back to the store.
	Index  search.Indexer
	Events events.Publisher
}

type ItemsQuery struct {
	SearchTerm string
	OrderBy    string
	Skip       *int32
	First      *int32
}

type CreateItemInput struct {
	Title       string
	Description string
	Price       int64
	Image       string
	LargeImage  string
}

// Items lists a page of the catalog. A search term goes to the index when
// one is configured; hits come back in orderBy order, or by relevance when
// orderBy is empty.
func (s *CatalogService) Items(ctx context.Context, q ItemsQuery) ([]models.Item, error) {
	if q.OrderBy != "" && !repo.ValidItemOrder(q.OrderBy) {
		return nil, fmt.Errorf("%w: unknown orderBy %q", ErrValidation, q.OrderBy)
	}
	offset, limit := util.Window(q.Skip, q.First)
	term := strings.TrimSpace(q.SearchTerm)

	if term != "" && s.Index != nil {
		ids, _, err := s.Index.Search(ctx, term, q.OrderBy, offset, limit)
		if err == nil {
			items, err := s.Repo.ItemsByIDs(ctx, parseIDs(ids))
			if err != nil {
				return nil, storeErr(err, "items")
			}
			return items, nil
		}
		logging.FromContext(ctx).Warn("search_fallback", "reason", "index query failed", "error", err)
	}

	items, err := s.Repo.ListItems(ctx, repo.ItemQuery{
		SearchTerm: term,
		OrderBy:    q.OrderBy,
		Offset:     offset,
		Limit:      limit,
	})
	if err != nil {
		return nil, storeErr(err, "items")
	}
	return items, nil
}

// ItemsCount is the total behind Items for the same search term.
func (s *CatalogService) ItemsCount(ctx context.Context, searchTerm string) (int64, error) {
	term := strings.TrimSpace(searchTerm)
	if term != "" && s.Index != nil {
		_, total, err := s.Index.Search(ctx, term, "", 0, 0)
		if err == nil {
			return total, nil
		}
		logging.FromContext(ctx).Warn("search_fallback", "reason", "index count failed", "error", err)
	}
	n, err := s.Repo.CountItems(ctx, term)
	if err != nil {
		return 0, storeErr(err, "items")
	}
	return n, nil
}

// Item returns nil without error when the item does not exist.
func (s *CatalogService) Item(ctx context.Context, id uuid.UUID) (*models.Item, error) {
	item, err := s.Repo.ItemByID(ctx, id)
	if err != nil {
		if err = storeErr(err, "item"); isNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return item, nil
}

func (s *CatalogService) CreateItem(ctx context.Context, in CreateItemInput) (*models.Item, error) {
	user, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(in.Title) == "" {
		return nil, fmt.Errorf("%w: title is required", ErrValidation)
	}
	if in.Price < 0 {
		return nil, fmt.Errorf("%w: price must not be negative", ErrValidation)
	}

	item := &models.Item{
		Title:       strings.TrimSpace(in.Title),
		Description: in.Description,
		Price:       in.Price,
		Image:       in.Image,
		LargeImage:  in.LargeImage,
		UserID:      user.ID,
	}
	if err := s.Repo.CreateItem(ctx, item); err != nil {
		return nil, storeErr(err, "item")
	}

	s.reindex(ctx, item)
	publish(ctx, s.Events, events.TopicItems, events.Event{
		Type:     "item_created",
		EntityID: item.ID.String(),
		UserID:   user.ID.String(),
		Data:     map[string]any{"title": item.Title, "price": item.Price},
	})
	return item, nil
}

// UpdateItem applies patch to the item. It does not check ownership.
func (s *CatalogService) UpdateItem(ctx context.Context, id uuid.UUID, patch repo.ItemPatch) (*models.Item, error) {
	if patch.Price != nil && *patch.Price < 0 {
		return nil, fmt.Errorf("%w: price must not be negative", ErrValidation)
	}
	if patch.Title != nil && strings.TrimSpace(*patch.Title) == "" {
		return nil, fmt.Errorf("%w: title must not be empty", ErrValidation)
	}

	item, err := s.Repo.UpdateItem(ctx, id, patch)
	if err != nil {
		return nil, storeErr(err, "item")
	}

	s.reindex(ctx, item)
	publish(ctx, s.Events, events.TopicItems, events.Event{
		Type:     "item_updated",
		EntityID: item.ID.String(),
	})
	return item, nil
}

// DeleteItem is allowed for the owner and for holders of ADMIN or ITEMDELETE.
func (s *CatalogService) DeleteItem(ctx context.Context, id uuid.UUID) (*models.Item, error) {
	user, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}

	item, err := s.Repo.ItemByID(ctx, id)
	if err != nil {
		return nil, storeErr(err, "item")
	}

	owns := item.UserID == user.ID
	if !owns {
		if err := HasPermission(user, models.PermissionAdmin, models.PermissionItemDelete); err != nil {
			return nil, err
		}
	}

	if err := s.Repo.DeleteItem(ctx, id); err != nil {
		return nil, storeErr(err, "item")
	}

	if s.Index != nil {
		if err := s.Index.Delete(ctx, id.String()); err != nil {
			logging.FromContext(ctx).Warn("unindex_failed", "item_id", id, "error", err)
		}
	}
	publish(ctx, s.Events, events.TopicItems, events.Event{
		Type:     "item_deleted",
		EntityID: id.String(),
		UserID:   user.ID.String(),
	})
	return item, nil
}

func (s *CatalogService) reindex(ctx context.Context, item *models.Item) {
	if s.Index == nil {
		return
	}
	err := s.Index.Index(ctx, search.Document{
		ID:          item.ID.String(),
		Title:       item.Title,
		Description: item.Description,
		Price:       item.Price,
		CreatedAt:   item.CreatedAt,
	})
	if err != nil {
		logging.FromContext(ctx).Warn("index_failed", "item_id", item.ID, "error", err)
	}
}

func parseIDs(raw []string) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(raw))
	for _, r := range raw {
		if id, err := uuid.Parse(r); err == nil {
			ids = append(ids, id)
		}
	}
	return ids
}
