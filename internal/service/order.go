package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Skotchmaster/storefront/internal/events"
	"github.com/Skotchmaster/storefront/internal/metrics"
	"github.com/Skotchmaster/storefront/internal/models"
	"github.com/Skotchmaster/storefront/internal/payment"
	"github.com/Skotchmaster/storefront/internal/repo"
	"github.com/Skotchmaster/storefront/pkg/logging"
)

type OrderService struct {
	Repo     *repo.GormRepo
	Charger  payment.Charger
	Events   events.Publisher
	Metrics  *metrics.Metrics
	Currency string
}

// CreateOrder charges the caller's cart and turns it into an order.
//
// The attempt row is written before the charge so a charge whose order
// could not be written is still on record for the Reconciler.
func (s *OrderService) CreateOrder(ctx context.Context, sourceToken string) (*models.Order, error) {
	user, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}
	l := logging.FromContext(ctx).With("svc", "order.create", "user_id", user.ID)

	if strings.TrimSpace(sourceToken) == "" {
		return nil, fmt.Errorf("%w: payment token is required", ErrValidation)
	}

	cart, err := s.Repo.Cart(ctx, user.ID)
	if err != nil {
		return nil, storeErr(err, "cart")
	}
	if len(cart) == 0 {
		return nil, fmt.Errorf("%w: your cart is empty", ErrValidation)
	}

	lines := make(models.Snapshot, 0, len(cart))
	for _, ci := range cart {
		if ci.Item.ID == uuid.Nil {
			continue
		}
		lines = append(lines, models.LineSnapshot{
			CartItemID:  ci.ID.String(),
			Title:       ci.Item.Title,
			Description: ci.Item.Description,
			Image:       ci.Item.Image,
			LargeImage:  ci.Item.LargeImage,
			Price:       ci.Item.Price,
			Quantity:    ci.Quantity,
		})
	}
	if len(lines) == 0 {
		return nil, fmt.Errorf("%w: your cart is empty", ErrValidation)
	}

	attempt := &models.ChargeAttempt{
		IdempotencyKey: uuid.NewString(),
		UserID:         user.ID,
		Amount:         lines.Total(),
		Currency:       s.currency(),
		Status:         models.ChargePending,
		Lines:          lines,
	}
	if err := s.Repo.CreateChargeAttempt(ctx, attempt); err != nil {
		return nil, storeErr(err, "charge attempt")
	}

	charge, err := s.Charger.Charge(ctx, payment.ChargeRequest{
		Amount:         attempt.Amount,
		Currency:       attempt.Currency,
		Source:         sourceToken,
		IdempotencyKey: attempt.IdempotencyKey,
		Description:    fmt.Sprintf("order for %s", user.Email),
	})
	// Once the processor has been asked, the outcome must be recorded even if
	// the caller has gone away.
	wctx := context.WithoutCancel(ctx)
	if err != nil {
		if ctx.Err() != nil {
			// The charge may or may not have gone through; the Reconciler
			// settles the pending attempt with the processor.
			l.Warn("charge_interrupted", "attempt_id", attempt.ID, "error", err)
			return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
		}
		s.Metrics.ChargeFailed()
		l.Warn("charge_failed", "attempt_id", attempt.ID, "amount", attempt.Amount, "error", err)
		if merr := s.Repo.MarkAttempt(wctx, attempt.ID, models.ChargePending, models.ChargeFailed, "", err.Error()); merr != nil {
			l.Error("mark_attempt_failed", "attempt_id", attempt.ID, "error", merr)
		}
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	s.Metrics.ChargeSucceeded()

	if err := s.Repo.MarkAttempt(wctx, attempt.ID, models.ChargePending, models.ChargeCharged, charge.ID, ""); err != nil {
		l.Error("mark_attempt_charged", "attempt_id", attempt.ID, "charge_id", charge.ID, "error", err)
		return nil, storeErr(err, "charge attempt")
	}
	attempt.Status = models.ChargeCharged
	attempt.ChargeID = charge.ID

	order, err := completeAttempt(wctx, s.Repo, attempt)
	if err != nil {
		l.Error("order_write_failed", "attempt_id", attempt.ID, "charge_id", charge.ID, "error", err)
		return nil, storeErr(err, "order")
	}
	s.Metrics.OrderCreated()

	publish(wctx, s.Events, events.TopicOrders, events.Event{
		Type:     "order_created",
		EntityID: order.ID.String(),
		UserID:   user.ID.String(),
		Data:     map[string]any{"total": order.Total, "charge": order.Charge, "lines": len(order.Items)},
	})
	l.Info("order_created", "order_id", order.ID, "total", order.Total)
	return order, nil
}

// Order is visible to its owner and to ADMIN.
func (s *OrderService) Order(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	user, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}
	order, err := s.Repo.OrderByID(ctx, id)
	if err != nil {
		return nil, storeErr(err, "order")
	}
	if order.UserID != user.ID {
		if err := HasPermission(user, models.PermissionAdmin); err != nil {
			return nil, err
		}
	}
	return order, nil
}

func (s *OrderService) Orders(ctx context.Context) ([]models.Order, error) {
	user, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}
	orders, err := s.Repo.OrdersForUser(ctx, user.ID)
	if err != nil {
		return nil, storeErr(err, "orders")
	}
	return orders, nil
}

func (s *OrderService) currency() string {
	if s.Currency == "" {
		return "usd"
	}
	return s.Currency
}

// completeAttempt writes the order described by a charged attempt.
func completeAttempt(ctx context.Context, r *repo.GormRepo, a *models.ChargeAttempt) (*models.Order, error) {
	order := &models.Order{
		ID:     uuid.New(),
		Total:  a.Amount,
		Charge: a.ChargeID,
		UserID: a.UserID,
		Items:  make([]models.OrderItem, 0, len(a.Lines)),
	}
	for _, line := range a.Lines {
		order.Items = append(order.Items, models.OrderItem{
			UserID:      a.UserID,
			Title:       line.Title,
			Description: line.Description,
			Image:       line.Image,
			LargeImage:  line.LargeImage,
			Price:       line.Price,
			Quantity:    line.Quantity,
		})
	}
	if err := r.CompleteCheckout(ctx, a, order); err != nil {
		return nil, err
	}
	return order, nil
}

// Reconciler finishes checkouts whose charge went through but whose order
// was never written. Attempts with no recorded charge result are settled
// with the processor: a paid charge is rolled forward, a failed one is marked
// failed, and an attempt the processor never saw is abandoned.
type Reconciler struct {
	Repo    *repo.GormRepo
	Charger payment.Charger
	Events  events.Publisher
	Metrics *metrics.Metrics
	Grace   time.Duration
	Now     func() time.Time
}

type ReconcileReport struct {
	Completed int
	Declined  int
	Abandoned int
	Failed    int
}

func (r *Reconciler) Run(ctx context.Context) (ReconcileReport, error) {
	var rep ReconcileReport
	l := logging.FromContext(ctx).With("svc", "order.reconcile")
	cutoff := nowOr(r.Now).Add(-r.Grace)

	pending, err := r.Repo.AttemptsOlderThan(ctx, models.ChargePending, cutoff)
	if err != nil {
		return rep, storeErr(err, "charge attempts")
	}
	for i := range pending {
		r.settlePending(ctx, l, &pending[i], &rep)
	}

	charged, err := r.Repo.AttemptsOlderThan(ctx, models.ChargeCharged, cutoff)
	if err != nil {
		return rep, storeErr(err, "charge attempts")
	}
	for i := range charged {
		r.rollForward(ctx, l, &charged[i], &rep)
	}
	return rep, nil
}

// settlePending asks the processor what became of a pending attempt. A paid
// charge only moves the attempt to charged; the roll-forward pass of the same
// run writes the order.
func (r *Reconciler) settlePending(ctx context.Context, l *slog.Logger, a *models.ChargeAttempt, rep *ReconcileReport) {
	if r.Charger == nil {
		rep.Failed++
		l.Error("settle_skipped", "attempt_id", a.ID, "error", "no charger configured")
		return
	}
	ch, err := r.Charger.Lookup(ctx, a.IdempotencyKey)
	var to models.ChargeStatus
	var chargeID, reason string
	switch {
	case errors.Is(err, payment.ErrChargeNotFound):
		to, reason = models.ChargeAbandoned, "no charge found at the processor"
	case err != nil:
		rep.Failed++
		l.Error("charge_lookup_failed", "attempt_id", a.ID, "error", err)
		return
	case ch.Paid:
		to, chargeID = models.ChargeCharged, ch.ID
	default:
		to, chargeID, reason = models.ChargeFailed, ch.ID, "charge was not paid"
	}

	if err := r.Repo.MarkAttempt(ctx, a.ID, models.ChargePending, to, chargeID, reason); err != nil {
		if !errors.Is(err, repo.ErrAttemptSettled) {
			rep.Failed++
			l.Error("settle_failed", "attempt_id", a.ID, "error", err)
		}
		return
	}
	switch to {
	case models.ChargeAbandoned:
		rep.Abandoned++
		l.Warn("attempt_abandoned", "attempt_id", a.ID, "idempotency_key", a.IdempotencyKey)
	case models.ChargeFailed:
		rep.Declined++
		l.Warn("attempt_declined", "attempt_id", a.ID, "charge_id", chargeID)
	default:
		l.Info("attempt_charged", "attempt_id", a.ID, "charge_id", chargeID)
	}
}

func (r *Reconciler) rollForward(ctx context.Context, l *slog.Logger, a *models.ChargeAttempt, rep *ReconcileReport) {
	order, err := completeAttempt(ctx, r.Repo, a)
	if err != nil {
		if !errors.Is(err, repo.ErrAttemptSettled) {
			rep.Failed++
			l.Error("reconcile_failed", "attempt_id", a.ID, "charge_id", a.ChargeID, "error", err)
		}
		return
	}
	rep.Completed++
	r.Metrics.OrderReconciled()
	publish(ctx, r.Events, events.TopicOrders, events.Event{
		Type:     "order_created",
		EntityID: order.ID.String(),
		UserID:   a.UserID.String(),
		Data:     map[string]any{"total": order.Total, "charge": order.Charge, "reconciled": true},
	})
	l.Info("order_reconciled", "attempt_id", a.ID, "order_id", order.ID)
}
