package graph

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	graphql "github.com/graph-gophers/graphql-go"

	"github.com/Skotchmaster/storefront/internal/repo"
	"github.com/Skotchmaster/storefront/internal/service"
)

// Resolver is the root of both Query and Mutation.
type Resolver struct {
	Accounts *service.AccountService
	Catalog  *service.CatalogService
	Carts    *service.CartService
	Checkout *service.OrderService
}

func parseID(id graphql.ID) (uuid.UUID, error) {
	u, err := uuid.Parse(string(id))
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: invalid id %q", service.ErrValidation, string(id))
	}
	return u, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// Queries

type itemWhereInput struct {
	SearchTerm *string
}

type itemsArgs struct {
	Where   *itemWhereInput
	OrderBy *string
	Skip    *int32
	First   *int32
}

func (r *Resolver) Items(ctx context.Context, args itemsArgs) ([]*itemResolver, error) {
	q := service.ItemsQuery{OrderBy: deref(args.OrderBy), Skip: args.Skip, First: args.First}
	if args.Where != nil {
		q.SearchTerm = deref(args.Where.SearchTerm)
	}
	items, err := r.Catalog.Items(ctx, q)
	if err != nil {
		return nil, service.Public(ctx, err)
	}
	out := make([]*itemResolver, len(items))
	for i := range items {
		out[i] = &itemResolver{it: &items[i]}
	}
	return out, nil
}

func (r *Resolver) Item(ctx context.Context, args struct{ Where struct{ ID graphql.ID } }) (*itemResolver, error) {
	id, err := uuid.Parse(string(args.Where.ID))
	if err != nil {
		return nil, nil
	}
	item, err := r.Catalog.Item(ctx, id)
	if err != nil {
		return nil, service.Public(ctx, err)
	}
	if item == nil {
		return nil, nil
	}
	return &itemResolver{it: item}, nil
}

func (r *Resolver) ItemsConnection(ctx context.Context, args struct{ Where *itemWhereInput }) (*itemConnectionResolver, error) {
	var term string
	if args.Where != nil {
		term = deref(args.Where.SearchTerm)
	}
	n, err := r.Catalog.ItemsCount(ctx, term)
	if err != nil {
		return nil, service.Public(ctx, err)
	}
	return &itemConnectionResolver{count: n}, nil
}

func (r *Resolver) Me(ctx context.Context) *userResolver {
	u := r.Accounts.Me(ctx)
	if u == nil {
		return nil
	}
	return &userResolver{r: r, u: u}
}

func (r *Resolver) Users(ctx context.Context) ([]*userResolver, error) {
	users, err := r.Accounts.Users(ctx)
	if err != nil {
		return nil, service.Public(ctx, err)
	}
	out := make([]*userResolver, len(users))
	for i := range users {
		out[i] = &userResolver{r: r, u: &users[i]}
	}
	return out, nil
}

func (r *Resolver) Order(ctx context.Context, args struct{ ID graphql.ID }) (*orderResolver, error) {
	id, err := parseID(args.ID)
	if err != nil {
		return nil, err
	}
	o, err := r.Checkout.Order(ctx, id)
	if err != nil {
		return nil, service.Public(ctx, err)
	}
	return &orderResolver{o: o}, nil
}

func (r *Resolver) Orders(ctx context.Context) ([]*orderResolver, error) {
	orders, err := r.Checkout.Orders(ctx)
	if err != nil {
		return nil, service.Public(ctx, err)
	}
	out := make([]*orderResolver, len(orders))
	for i := range orders {
		out[i] = &orderResolver{o: &orders[i]}
	}
	return out, nil
}

// Mutations

type createItemArgs struct {
	Title       string
	Description string
	Price       int32
	Image       *string
	LargeImage  *string
}

func (r *Resolver) CreateItem(ctx context.Context, args createItemArgs) (*itemResolver, error) {
	item, err := r.Catalog.CreateItem(ctx, service.CreateItemInput{
		Title:       args.Title,
		Description: args.Description,
		Price:       int64(args.Price),
		Image:       deref(args.Image),
		LargeImage:  deref(args.LargeImage),
	})
	if err != nil {
		return nil, service.Public(ctx, err)
	}
	return &itemResolver{it: item}, nil
}

type updateItemArgs struct {
	ID          graphql.ID
	Title       *string
	Description *string
	Price       *int32
	Image       *string
	LargeImage  *string
}

// UpdateItem never changes the id; it only selects the row.
func (r *Resolver) UpdateItem(ctx context.Context, args updateItemArgs) (*itemResolver, error) {
	id, err := parseID(args.ID)
	if err != nil {
		return nil, err
	}
	patch := repo.ItemPatch{
		Title:       args.Title,
		Description: args.Description,
		Image:       args.Image,
		LargeImage:  args.LargeImage,
	}
	if args.Price != nil {
		p := int64(*args.Price)
		patch.Price = &p
	}
	item, err := r.Catalog.UpdateItem(ctx, id, patch)
	if err != nil {
		return nil, service.Public(ctx, err)
	}
	return &itemResolver{it: item}, nil
}

func (r *Resolver) DeleteItem(ctx context.Context, args struct{ ID graphql.ID }) (*itemResolver, error) {
	id, err := parseID(args.ID)
	if err != nil {
		return nil, err
	}
	item, err := r.Catalog.DeleteItem(ctx, id)
	if err != nil {
		return nil, service.Public(ctx, err)
	}
	return &itemResolver{it: item}, nil
}

func (r *Resolver) Signup(ctx context.Context, args struct{ Email, Password, Name string }) (*userResolver, error) {
	res, err := r.Accounts.Signup(ctx, service.SignupInput{Email: args.Email, Password: args.Password, Name: args.Name})
	if err != nil {
		return nil, service.Public(ctx, err)
	}
	return &userResolver{r: r, u: res.User}, nil
}

func (r *Resolver) Signin(ctx context.Context, args struct{ Email, Password string }) (*userResolver, error) {
	res, err := r.Accounts.Signin(ctx, args.Email, args.Password)
	if err != nil {
		return nil, service.Public(ctx, err)
	}
	return &userResolver{r: r, u: res.User}, nil
}

func (r *Resolver) Signout(ctx context.Context) *successMessageResolver {
	return &successMessageResolver{msg: r.Accounts.Signout(ctx)}
}

func (r *Resolver) RequestReset(ctx context.Context, args struct{ Email string }) (*successMessageResolver, error) {
	msg, err := r.Accounts.RequestReset(ctx, args.Email)
	if err != nil {
		return nil, service.Public(ctx, err)
	}
	return &successMessageResolver{msg: msg}, nil
}

type resetPasswordArgs struct {
	ResetToken      string
	Password        string
	ConfirmPassword string
}

func (r *Resolver) ResetPassword(ctx context.Context, args resetPasswordArgs) (*userResolver, error) {
	res, err := r.Accounts.ResetPassword(ctx, args.ResetToken, args.Password, args.ConfirmPassword)
	if err != nil {
		return nil, service.Public(ctx, err)
	}
	return &userResolver{r: r, u: res.User}, nil
}

type updatePermissionsArgs struct {
	Permissions *[]*string
	UserID      graphql.ID
}

func (r *Resolver) UpdatePermissions(ctx context.Context, args updatePermissionsArgs) (*userResolver, error) {
	id, err := parseID(args.UserID)
	if err != nil {
		return nil, err
	}
	var perms []string
	if args.Permissions != nil {
		for _, p := range *args.Permissions {
			if p != nil {
				perms = append(perms, *p)
			}
		}
	}
	u, err := r.Accounts.UpdatePermissions(ctx, id, perms)
	if err != nil {
		return nil, service.Public(ctx, err)
	}
	return &userResolver{r: r, u: u}, nil
}

func (r *Resolver) AddToCart(ctx context.Context, args struct{ ID graphql.ID }) (*cartItemResolver, error) {
	id, err := parseID(args.ID)
	if err != nil {
		return nil, err
	}
	ci, err := r.Carts.AddToCart(ctx, id)
	if err != nil {
		return nil, service.Public(ctx, err)
	}
	return &cartItemResolver{ci: ci}, nil
}

func (r *Resolver) RemoveFromCart(ctx context.Context, args struct{ ID graphql.ID }) (*cartItemResolver, error) {
	id, err := parseID(args.ID)
	if err != nil {
		return nil, err
	}
	ci, err := r.Carts.RemoveFromCart(ctx, id)
	if err != nil {
		return nil, service.Public(ctx, err)
	}
	return &cartItemResolver{ci: ci}, nil
}

func (r *Resolver) CreateOrder(ctx context.Context, args struct{ Token string }) (*orderResolver, error) {
	o, err := r.Checkout.CreateOrder(ctx, args.Token)
	if err != nil {
		return nil, service.Public(ctx, err)
	}
	return &orderResolver{o: o}, nil
}
