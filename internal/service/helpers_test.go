package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/Skotchmaster/storefront/internal/events"
	"github.com/Skotchmaster/storefront/internal/mail"
	"github.com/Skotchmaster/storefront/internal/models"
	"github.com/Skotchmaster/storefront/internal/payment"
	"github.com/Skotchmaster/storefront/internal/repo"
	"github.com/Skotchmaster/storefront/internal/session"
	"github.com/Skotchmaster/storefront/pkg/db"
	"github.com/Skotchmaster/storefront/pkg/hash"
	"github.com/Skotchmaster/storefront/pkg/tokens"
)

var testSecret = []byte("test-app-secret")

func newTestRepo(t *testing.T) *repo.GormRepo {
	t.Helper()
	gdb, err := db.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close(gdb) })

	r := &repo.GormRepo{DB: gdb}
	require.NoError(t, r.Migrate(context.Background()))
	return r
}

type fakeCharger struct {
	err   error
	calls []payment.ChargeRequest
	// onCharge runs before a successful charge returns.
	onCharge  func()
	byKey     map[string]*payment.Charge
	lookupErr error
}

func (f *fakeCharger) Charge(_ context.Context, req payment.ChargeRequest) (*payment.Charge, error) {
	f.calls = append(f.calls, req)
	if f.err != nil {
		return nil, f.err
	}
	ch := &payment.Charge{ID: "ch_test", Amount: req.Amount, Paid: true}
	f.record(req.IdempotencyKey, ch)
	if f.onCharge != nil {
		f.onCharge()
	}
	return ch, nil
}

func (f *fakeCharger) Lookup(_ context.Context, key string) (*payment.Charge, error) {
	if f.lookupErr != nil {
		return nil, f.lookupErr
	}
	ch, ok := f.byKey[key]
	if !ok {
		return nil, payment.ErrChargeNotFound
	}
	return ch, nil
}

func (f *fakeCharger) record(key string, ch *payment.Charge) {
	if f.byKey == nil {
		f.byKey = map[string]*payment.Charge{}
	}
	f.byKey[key] = ch
}

type fakeMailer struct {
	mu   sync.Mutex
	err  error
	sent []mail.Message
}

func (f *fakeMailer) Send(_ context.Context, m mail.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, m)
	return f.err
}

type fakeCreds struct {
	token   string
	cleared bool
}

func (f *fakeCreds) SetSession(token string, _ time.Time) { f.token = token }
func (f *fakeCreds) ClearSession()                        { f.cleared = true; f.token = "" }

type clock struct{ t time.Time }

func (c *clock) Now() time.Time { return c.t }

type fixture struct {
	repo     *repo.GormRepo
	accounts *AccountService
	catalog  *CatalogService
	carts    *CartService
	orders   *OrderService
	charger  *fakeCharger
	mailer   *fakeMailer
	events   *events.Recorder
	clock    *clock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	r := newTestRepo(t)
	rec := &events.Recorder{}
	ch := &fakeCharger{}
	ml := &fakeMailer{}
	clk := &clock{t: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}

	return &fixture{
		repo: r,
		accounts: &AccountService{
			Repo:        r,
			Hasher:      hash.Bcrypt{Cost: bcrypt.MinCost},
			Tokens:      tokens.NewIssuer(testSecret),
			Mailer:      ml,
			Events:      rec,
			FrontendURL: "http://localhost:7777",
			MailFrom:    "shop@example.com",
			Now:         clk.Now,
		},
		catalog: &CatalogService{Repo: r, Events: rec},
		carts:   &CartService{Repo: r, Events: rec},
		orders:  &OrderService{Repo: r, Charger: ch, Events: rec, Currency: "usd"},
		charger: ch,
		mailer:  ml,
		events:  rec,
		clock:   clk,
	}
}

// user creates a user directly in the store with the given permissions.
func (f *fixture) user(t *testing.T, email string, perms ...models.Permission) *models.User {
	t.Helper()
	if len(perms) == 0 {
		perms = []models.Permission{models.PermissionUser}
	}
	h, err := f.accounts.Hasher.HashPassword("password")
	require.NoError(t, err)
	u := &models.User{Name: "name", Email: email, PasswordHash: h, Permissions: perms}
	require.NoError(t, f.repo.CreateUser(context.Background(), u))
	return u
}

func (f *fixture) item(t *testing.T, owner *models.User, title string, price int64) *models.Item {
	t.Helper()
	it := &models.Item{Title: title, Description: title, Price: price, UserID: owner.ID}
	require.NoError(t, f.repo.CreateItem(context.Background(), it))
	return it
}

func as(u *models.User) context.Context {
	return session.WithViewer(context.Background(), session.Viewer{UserID: u.ID, User: u})
}

var errDeclined = errors.New("card declined")
