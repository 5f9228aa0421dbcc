// Package payment charges a tokenized card source.
package payment

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
)

type ChargeRequest struct {
	Amount         int64
	Currency       string
	Source         string
	IdempotencyKey string
	Description    string
}

type Charge struct {
	ID     string
	Amount int64
	Paid   bool
}

// ErrChargeNotFound is returned by Lookup when the processor has no charge
// for the idempotency key.
var ErrChargeNotFound = errors.New("charge not found")

type Charger interface {
	Charge(ctx context.Context, req ChargeRequest) (*Charge, error)
	// Lookup finds the charge made with idempotencyKey. A paid charge wins
	// over failed ones.
	Lookup(ctx context.Context, idempotencyKey string) (*Charge, error)
}

// keyMetadata is the charge metadata field that carries the idempotency key,
// so a charge can be found again when its response was lost.
const keyMetadata = "idempotency_key"

// Stripe charges through the Stripe Charges API using its own client
// instead of the package-level key.
type Stripe struct {
	api *client.API
}

func NewStripe(secretKey string, backends *stripe.Backends) *Stripe {
	api := &client.API{}
	api.Init(secretKey, backends)
	return &Stripe{api: api}
}

func (s *Stripe) Charge(ctx context.Context, req ChargeRequest) (*Charge, error) {
	if req.Amount <= 0 {
		return nil, errors.New("charge amount must be positive")
	}

	params := &stripe.ChargeParams{
		Amount:   stripe.Int64(req.Amount),
		Currency: stripe.String(req.Currency),
	}
	if req.Description != "" {
		params.Description = stripe.String(req.Description)
	}
	params.Context = ctx
	if err := params.SetSource(req.Source); err != nil {
		return nil, fmt.Errorf("stripe source: %w", err)
	}
	if req.IdempotencyKey != "" {
		params.SetIdempotencyKey(req.IdempotencyKey)
		params.AddMetadata(keyMetadata, req.IdempotencyKey)
	}

	ch, err := s.api.Charges.New(params)
	if err != nil {
		return nil, stripeErr(err)
	}
	if !ch.Paid {
		return nil, fmt.Errorf("stripe: charge %s not paid (%s)", ch.ID, ch.Status)
	}
	return &Charge{ID: ch.ID, Amount: ch.Amount, Paid: true}, nil
}

func (s *Stripe) Lookup(ctx context.Context, idempotencyKey string) (*Charge, error) {
	if idempotencyKey == "" {
		return nil, ErrChargeNotFound
	}
	params := &stripe.ChargeSearchParams{}
	params.Context = ctx
	params.Query = fmt.Sprintf("metadata['%s']:'%s'", keyMetadata, strings.ReplaceAll(idempotencyKey, "'", "\\'"))

	var found *Charge
	it := s.api.Charges.Search(params)
	for it.Next() {
		ch := it.Charge()
		if ch.Paid {
			return &Charge{ID: ch.ID, Amount: ch.Amount, Paid: true}, nil
		}
		if found == nil {
			found = &Charge{ID: ch.ID, Amount: ch.Amount}
		}
	}
	if err := it.Err(); err != nil {
		return nil, stripeErr(err)
	}
	if found == nil {
		return nil, ErrChargeNotFound
	}
	return found, nil
}

func stripeErr(err error) error {
	var serr *stripe.Error
	if errors.As(err, &serr) && serr.Msg != "" {
		return fmt.Errorf("stripe: %s", serr.Msg)
	}
	return fmt.Errorf("stripe: %w", err)
}
