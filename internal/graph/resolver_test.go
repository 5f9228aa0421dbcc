package graph

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	graphql "github.com/graph-gophers/graphql-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/Skotchmaster/storefront/internal/events"
	"github.com/Skotchmaster/storefront/internal/models"
	"github.com/Skotchmaster/storefront/internal/payment"
	"github.com/Skotchmaster/storefront/internal/repo"
	"github.com/Skotchmaster/storefront/internal/service"
	"github.com/Skotchmaster/storefront/internal/session"
	"github.com/Skotchmaster/storefront/pkg/db"
	"github.com/Skotchmaster/storefront/pkg/hash"
	"github.com/Skotchmaster/storefront/pkg/tokens"
)

type okCharger struct{}

func (okCharger) Charge(_ context.Context, req payment.ChargeRequest) (*payment.Charge, error) {
	return &payment.Charge{ID: "ch_graph", Amount: req.Amount, Paid: true}, nil
}

func (okCharger) Lookup(context.Context, string) (*payment.Charge, error) {
	return nil, payment.ErrChargeNotFound
}

type recordingCreds struct{ token string }

func (c *recordingCreds) SetSession(token string, _ time.Time) { c.token = token }
func (c *recordingCreds) ClearSession()                        { c.token = "" }

type harness struct {
	schema *graphql.Schema
	repo   *repo.GormRepo
	issuer *tokens.Issuer
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	gdb, err := db.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close(gdb) })
	r := &repo.GormRepo{DB: gdb}
	require.NoError(t, r.Migrate(context.Background()))

	issuer := tokens.NewIssuer([]byte("secret"))
	pub := events.Nop{}
	schema, err := NewSchema(&Resolver{
		Accounts: &service.AccountService{Repo: r, Hasher: hash.Bcrypt{Cost: bcrypt.MinCost}, Tokens: issuer, Events: pub},
		Catalog:  &service.CatalogService{Repo: r, Events: pub},
		Carts:    &service.CartService{Repo: r, Events: pub},
		Checkout: &service.OrderService{Repo: r, Charger: okCharger{}, Events: pub, Currency: "usd"},
	})
	require.NoError(t, err)
	return &harness{schema: schema, repo: r, issuer: issuer}
}

// exec runs a document as user (nil for anonymous) and decodes data into out.
func (h *harness) exec(t *testing.T, ctx context.Context, user *models.User, query string, vars map[string]any, out any) []string {
	t.Helper()
	if user != nil {
		ctx = session.WithViewer(ctx, session.Viewer{UserID: user.ID, User: user})
	}
	resp := h.schema.Exec(ctx, query, "", vars)
	var msgs []string
	for _, e := range resp.Errors {
		msgs = append(msgs, e.Message)
	}
	if out != nil && len(resp.Data) > 0 {
		require.NoError(t, json.Unmarshal(resp.Data, out))
	}
	return msgs
}

func (h *harness) user(t *testing.T, email string, perms ...models.Permission) *models.User {
	t.Helper()
	if len(perms) == 0 {
		perms = []models.Permission{models.PermissionUser}
	}
	u := &models.User{Name: "n", Email: email, PasswordHash: "x", Permissions: perms}
	require.NoError(t, h.repo.CreateUser(context.Background(), u))
	return u
}

func TestSchema_Parses(t *testing.T) {
	t.Parallel()
	_, err := NewSchema(&Resolver{})
	require.NoError(t, err)
}

func TestSignupSetsCookieAndMe(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	creds := &recordingCreds{}
	ctx := session.WithCredentials(context.Background(), creds)

	var out struct {
		Signup struct {
			ID          string
			Email       string
			Permissions []string
		}
	}
	errs := h.exec(t, ctx, nil, `mutation($email: String!, $password: String!, $name: String!) {
		signup(email: $email, password: $password, name: $name) { id email permissions }
	}`, map[string]any{"email": "New@Example.com", "password": "pw", "name": "New"}, &out)
	require.Empty(t, errs)
	assert.Equal(t, "new@example.com", out.Signup.Email)
	assert.Equal(t, []string{"USER"}, out.Signup.Permissions)
	require.NotEmpty(t, creds.token)

	sub, err := h.issuer.Verify(creds.token)
	require.NoError(t, err)
	assert.Equal(t, out.Signup.ID, sub)

	var me struct{ Me *struct{ Email string } }
	require.Empty(t, h.exec(t, context.Background(), nil, `{ me { email } }`, nil, &me))
	assert.Nil(t, me.Me)
}

func TestItemsAndConnection(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	seller := h.user(t, "seller@example.com")

	for _, title := range []string{"Hat", "Shoes", "Hat Stand"} {
		var created struct{ CreateItem struct{ ID string } }
		errs := h.exec(t, context.Background(), seller,
			`mutation($t: String!) { createItem(title: $t, description: "d", price: 100) { id } }`,
			map[string]any{"t": title}, &created)
		require.Empty(t, errs)
	}

	var out struct {
		Items           []struct{ Title string }
		ItemsConnection struct{ Aggregate struct{ Count int } }
	}
	errs := h.exec(t, context.Background(), nil, `{
		items(where: {searchTerm: "hat"}, orderBy: title_ASC, first: 10) { title }
		itemsConnection(where: {searchTerm: "hat"}) { aggregate { count } }
	}`, nil, &out)
	require.Empty(t, errs)
	require.Len(t, out.Items, 2)
	assert.Equal(t, "Hat", out.Items[0].Title)
	assert.Equal(t, 2, out.ItemsConnection.Aggregate.Count)

	var page struct{ Items []struct{ Title string } }
	require.Empty(t, h.exec(t, context.Background(), nil, `{ items { title } }`, nil, &page))
	assert.Len(t, page.Items, 3)

	var missing struct{ Item *struct{ ID string } }
	require.Empty(t, h.exec(t, context.Background(), nil,
		`{ item(where: {id: "00000000-0000-0000-0000-000000000000"}) { id } }`, nil, &missing))
	assert.Nil(t, missing.Item)
}

func TestCreateItemRequiresLogin(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	errs := h.exec(t, context.Background(), nil,
		`mutation { createItem(title: "x", description: "d", price: 1) { id } }`, nil, nil)
	require.Len(t, errs, 1)
	assert.Equal(t, service.ErrUnauthenticated.Error(), errs[0])
}

func TestCartCheckoutFlow(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	u := h.user(t, "buyer@example.com")
	item := &models.Item{Title: "Mug", Description: "d", Price: 10, UserID: u.ID}
	require.NoError(t, h.repo.CreateItem(context.Background(), item))

	add := `mutation($id: ID!) { addToCart(id: $id) { id quantity item { title } } }`
	var added struct {
		AddToCart struct {
			ID       string
			Quantity int
			Item     struct{ Title string }
		}
	}
	require.Empty(t, h.exec(t, context.Background(), u, add, map[string]any{"id": item.ID.String()}, &added))
	require.Empty(t, h.exec(t, context.Background(), u, add, map[string]any{"id": item.ID.String()}, &added))
	assert.Equal(t, 2, added.AddToCart.Quantity)
	assert.Equal(t, "Mug", added.AddToCart.Item.Title)

	var me struct {
		Me struct {
			Cart []struct{ Quantity int }
		}
	}
	require.Empty(t, h.exec(t, context.Background(), u, `{ me { cart { quantity } } }`, nil, &me))
	require.Len(t, me.Me.Cart, 1)

	var order struct {
		CreateOrder struct {
			ID     string
			Total  int
			Charge string
			Items  []struct {
				Title    string
				Quantity int
			}
		}
	}
	require.Empty(t, h.exec(t, context.Background(), u,
		`mutation { createOrder(token: "tok_visa") { id total charge items { title quantity } } }`, nil, &order))
	assert.Equal(t, 20, order.CreateOrder.Total)
	assert.Equal(t, "ch_graph", order.CreateOrder.Charge)
	require.Len(t, order.CreateOrder.Items, 1)
	assert.Equal(t, 2, order.CreateOrder.Items[0].Quantity)

	var got struct{ Order struct{ ID string } }
	require.Empty(t, h.exec(t, context.Background(), u,
		`query($id: ID!) { order(id: $id) { id } }`, map[string]any{"id": order.CreateOrder.ID}, &got))
	assert.Equal(t, order.CreateOrder.ID, got.Order.ID)
}

func TestUpdatePermissions_NonAdminRejected(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	plain := h.user(t, "plain@example.com")
	admin := h.user(t, "admin@example.com", models.PermissionAdmin)

	mut := `mutation($perms: [Permission], $id: ID!) { updatePermissions(permissions: $perms, userId: $id) { permissions } }`
	vars := map[string]any{"perms": []any{"ADMIN", "ITEMCREATE"}, "id": plain.ID.String()}

	errs := h.exec(t, context.Background(), plain, mut, vars, nil)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], service.ErrForbidden.Error())

	var out struct{ UpdatePermissions struct{ Permissions []string } }
	require.Empty(t, h.exec(t, context.Background(), admin, mut, vars, &out))
	assert.Equal(t, []string{"ADMIN", "ITEMCREATE"}, out.UpdatePermissions.Permissions)
}

func TestSignout(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	creds := &recordingCreds{token: "x"}

	var out struct{ Signout struct{ Message string } }
	require.Empty(t, h.exec(t, session.WithCredentials(context.Background(), creds), nil,
		`mutation { signout { message } }`, nil, &out))
	assert.Equal(t, service.SignoutMessage, out.Signout.Message)
	assert.Empty(t, creds.token)
}

func TestIntFieldsRejectOverflow(t *testing.T) {
	t.Parallel()

	total, err := (&orderResolver{o: &models.Order{Total: 2500}}).Total()
	require.NoError(t, err)
	assert.EqualValues(t, 2500, total)

	_, err = (&orderResolver{o: &models.Order{Total: 1 << 31}}).Total()
	assert.ErrorContains(t, err, "out of range")

	_, err = (&itemResolver{it: &models.Item{Price: -(1 << 32)}}).Price()
	assert.Error(t, err)

	_, err = (&aggregateItemResolver{count: 1 << 40}).Count()
	assert.Error(t, err)
}
