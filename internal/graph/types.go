package graph

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	graphql "github.com/graph-gophers/graphql-go"

	"github.com/Skotchmaster/storefront/internal/models"
	"github.com/Skotchmaster/storefront/internal/service"
)

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func timestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// toInt narrows a stored value to GraphQL's 32-bit Int, failing the field
// instead of wrapping.
func toInt[T int64 | uint](field string, v T) (int32, error) {
	if int64(v) > math.MaxInt32 || int64(v) < math.MinInt32 {
		return 0, fmt.Errorf("%s %d is out of range for Int", field, v)
	}
	return int32(v), nil
}

type userResolver struct {
	r *Resolver
	u *models.User
}

func (u *userResolver) ID() graphql.ID { return graphql.ID(u.u.ID.String()) }
func (u *userResolver) Name() string   { return u.u.Name }
func (u *userResolver) Email() string  { return u.u.Email }

func (u *userResolver) Permissions() []string {
	out := make([]string, len(u.u.Permissions))
	for i, p := range u.u.Permissions {
		out[i] = string(p)
	}
	return out
}

func (u *userResolver) Cart(ctx context.Context) ([]*cartItemResolver, error) {
	items, err := u.r.Carts.CartFor(ctx, u.u.ID)
	if err != nil {
		return nil, service.Public(ctx, err)
	}
	out := make([]*cartItemResolver, len(items))
	for i := range items {
		out[i] = &cartItemResolver{ci: &items[i]}
	}
	return out, nil
}

type itemResolver struct {
	it *models.Item
}

func (i *itemResolver) ID() graphql.ID        { return graphql.ID(i.it.ID.String()) }
func (i *itemResolver) Title() string         { return i.it.Title }
func (i *itemResolver) Description() string   { return i.it.Description }
func (i *itemResolver) Image() *string        { return optional(i.it.Image) }
func (i *itemResolver) LargeImage() *string   { return optional(i.it.LargeImage) }
func (i *itemResolver) Price() (int32, error) { return toInt("price", i.it.Price) }
func (i *itemResolver) CreatedAt() string     { return timestamp(i.it.CreatedAt) }

type cartItemResolver struct {
	ci *models.CartItem
}

func (c *cartItemResolver) ID() graphql.ID           { return graphql.ID(c.ci.ID.String()) }
func (c *cartItemResolver) Quantity() (int32, error) { return toInt("quantity", c.ci.Quantity) }

// Item is null when the item was removed from the catalog.
func (c *cartItemResolver) Item() *itemResolver {
	if c.ci.Item.ID == uuid.Nil {
		return nil
	}
	return &itemResolver{it: &c.ci.Item}
}

type orderResolver struct {
	o *models.Order
}

func (o *orderResolver) ID() graphql.ID        { return graphql.ID(o.o.ID.String()) }
func (o *orderResolver) Total() (int32, error) { return toInt("total", o.o.Total) }
func (o *orderResolver) Charge() string        { return o.o.Charge }
func (o *orderResolver) CreatedAt() string     { return timestamp(o.o.CreatedAt) }

func (o *orderResolver) Items() []*orderItemResolver {
	out := make([]*orderItemResolver, len(o.o.Items))
	for i := range o.o.Items {
		out[i] = &orderItemResolver{oi: &o.o.Items[i]}
	}
	return out
}

type orderItemResolver struct {
	oi *models.OrderItem
}

func (o *orderItemResolver) ID() graphql.ID           { return graphql.ID(o.oi.ID.String()) }
func (o *orderItemResolver) Title() string            { return o.oi.Title }
func (o *orderItemResolver) Description() string      { return o.oi.Description }
func (o *orderItemResolver) Image() *string           { return optional(o.oi.Image) }
func (o *orderItemResolver) LargeImage() *string      { return optional(o.oi.LargeImage) }
func (o *orderItemResolver) Price() (int32, error)    { return toInt("price", o.oi.Price) }
func (o *orderItemResolver) Quantity() (int32, error) { return toInt("quantity", o.oi.Quantity) }

type successMessageResolver struct {
	msg string
}

func (s *successMessageResolver) Message() *string { return &s.msg }

type itemConnectionResolver struct {
	count int64
}

func (c *itemConnectionResolver) Aggregate() *aggregateItemResolver {
	return &aggregateItemResolver{count: c.count}
}

type aggregateItemResolver struct {
	count int64
}

func (a *aggregateItemResolver) Count() (int32, error) { return toInt("count", a.count) }
