package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/medistore/medistore-api/internal/core/domain"
	"github.com/medistore/medistore-api/internal/core/ports"
)

var tracer = otel.Tracer("medistore/core/service")

const (
	defaultIdempotencyTTL = 24 * time.Hour
	defaultPendingTTL     = 2 * time.Minute
	checkoutScope         = "checkout"
)

// OrderOptions tunes the order core.
type OrderOptions struct {
	// MaxPageSize caps the limit accepted by every listing.
	MaxPageSize int
	// RestockMode decides what cancellation does to a medicine's status when
	// units are handed back.
	RestockMode domain.RestockMode
	// IdempotencyTTL is how long a checkout idempotency key is remembered
	// once it is bound to an order.
	IdempotencyTTL time.Duration
	// IdempotencyPendingTTL bounds how long an in-flight reservation lives.
	// A key whose binding failed after commit frees up once it expires.
	IdempotencyPendingTTL time.Duration
}

// OrderService implements checkout, the mutation workflows and the listings.
type OrderService struct {
	store  ports.OrderStore
	events ports.EventSink
	idem   ports.IdempotencyStore
	opts   OrderOptions
	logger zerolog.Logger

	now   func() time.Time
	newID func() string
}

// NewOrderService wires the order core. events and idem may be nil.
func NewOrderService(
	store ports.OrderStore,
	events ports.EventSink,
	idem ports.IdempotencyStore,
	opts OrderOptions,
	logger zerolog.Logger,
) *OrderService {
	if events == nil {
		events = discardSink{}
	}
	if opts.IdempotencyTTL <= 0 {
		opts.IdempotencyTTL = defaultIdempotencyTTL
	}
	if opts.IdempotencyPendingTTL <= 0 {
		opts.IdempotencyPendingTTL = defaultPendingTTL
	}
	return &OrderService{
		store:  store,
		events: events,
		idem:   idem,
		opts:   opts,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
		newID:  uuid.NewString,
	}
}

type discardSink struct{}

func (discardSink) Enqueue(domain.OrderEvent) {}

// emit stamps the caller's trace context on event and hands it to the sink.
func (s *OrderService) emit(ctx context.Context, event domain.OrderEvent) {
	carrier := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, carrier)
	if len(carrier) > 0 {
		event.Trace = carrier
	}
	s.events.Enqueue(event)
}

// Checkout validates and prices a cart, then creates the order and reserves
// stock in one transaction.
func (s *OrderService) Checkout(ctx context.Context, actor domain.Identity, in ports.CheckoutInput) (_ *domain.Order, err error) {
	ctx, span := tracer.Start(ctx, "OrderService.Checkout", trace.WithAttributes(attribute.String("customer.id", actor.UserID)))
	defer func() { finishSpan(span, err) }()

	if err := requireRole(actor, "only customer can place order", domain.RoleCustomer, domain.RoleAdmin); err != nil {
		return nil, err
	}

	address := strings.TrimSpace(in.Address)
	if address == "" {
		return nil, domain.ErrAddressRequired
	}
	phone := strings.TrimSpace(in.Phone)
	if phone == "" {
		return nil, domain.ErrPhoneRequired
	}
	lines, err := normalizeItems(in.Items)
	if err != nil {
		return nil, err
	}

	key := strings.TrimSpace(in.IdempotencyKey)
	scope := checkoutScope + ":" + actor.UserID
	if key != "" && s.idem != nil {
		existingID, reserved, ierr := s.idem.Reserve(ctx, scope, key, s.opts.IdempotencyPendingTTL)
		switch {
		case ierr != nil:
			s.logger.Warn().Err(ierr).Str("idempotency_key", key).Msg("idempotency check failed, processing anyway")
			key = ""
		case !reserved && existingID != "":
			s.logger.Info().Str("idempotency_key", key).Str("order_id", existingID).Msg("idempotent replay")
			return s.store.FindOrder(ctx, existingID)
		case !reserved:
			return nil, domain.ErrCheckoutInProgress
		}
	}

	order, err := s.placeOrder(ctx, actor, address, phone, lines)

	if key != "" && s.idem != nil {
		if err != nil {
			if rerr := s.idem.Release(ctx, scope, key); rerr != nil {
				s.logger.Warn().Err(rerr).Str("idempotency_key", key).Msg("failed to release idempotency key")
			}
		} else if cerr := s.idem.Complete(ctx, scope, key, order.ID, s.opts.IdempotencyTTL); cerr != nil {
			s.logger.Warn().Err(cerr).Str("idempotency_key", key).Msg("failed to bind idempotency key")
		}
	}
	return order, err
}

func (s *OrderService) placeOrder(ctx context.Context, actor domain.Identity, address, phone string, lines []cartLine) (*domain.Order, error) {
	qty := lineQuantities(lines)
	ids := sortedIDs(qty)

	// Optimistic pre-check against a snapshot. The conditional decrement
	// inside the transaction is what actually guards the ledger.
	meds, err := s.store.FindMedicines(ctx, ids)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to load medicines for checkout")
		return nil, err
	}
	byID := indexMedicines(meds)
	if len(byID) != len(ids) {
		return nil, domain.ErrInvalidMedicineRef
	}

	now := s.now()
	order := &domain.Order{
		ID:         s.newID(),
		CustomerID: actor.UserID,
		Address:    address,
		Phone:      phone,
		Status:     domain.StatusPlaced,
		CreatedAt:  now,
		UpdatedAt:  now,
		StatusHistory: []domain.StatusHistoryEntry{
			{Status: domain.StatusPlaced, ActorRole: actor.Role, Timestamp: now},
		},
	}
	for _, l := range lines {
		m := byID[l.MedicineID]
		if m.Status != domain.MedicineActive {
			return nil, fmt.Errorf("%w: %s", domain.ErrMedicineUnavailable, m.Name)
		}
		if m.Stock < l.Quantity {
			return nil, fmt.Errorf("%w: %s", domain.ErrInsufficientStock, m.Name)
		}
		order.Items = append(order.Items, domain.OrderItem{
			ID:         s.newID(),
			OrderID:    order.ID,
			MedicineID: m.ID,
			SellerID:   m.SellerID,
			Quantity:   l.Quantity,
			Price:      m.Price,
			Medicine:   summarize(m),
		})
	}
	order.Total = domain.SumItems(order.Items)

	err = s.store.WithinTx(ctx, func(ctx context.Context, tx ports.OrderTx) error {
		if err := tx.InsertOrder(ctx, order); err != nil {
			return err
		}
		for _, id := range ids {
			if err := tx.DecrementStock(ctx, id, qty[id]); err != nil {
				return namedStockError(err, byID[id])
			}
		}
		return tx.MarkOutOfStock(ctx, ids)
	})
	if err != nil {
		s.logFailure(err, "checkout failed", actor, "")
		return nil, err
	}

	s.logger.Info().
		Str("order_id", order.ID).
		Str("customer_id", actor.UserID).
		Str("total", order.Total.StringFixed(2)).
		Int("lines", len(order.Items)).
		Msg("order placed")
	s.emit(ctx, domain.NewOrderEvent(domain.EventOrderPlaced, order, "", actor, now))

	return s.materialize(ctx, order), nil
}

// UpdateOrderItems replaces the item set of a still-placed order, reserving or
// releasing the per-medicine quantity difference and re-pricing every line at
// current catalog prices.
func (s *OrderService) UpdateOrderItems(ctx context.Context, actor domain.Identity, orderID string, items []ports.ItemInput) (_ *domain.Order, err error) {
	ctx, span := tracer.Start(ctx, "OrderService.UpdateOrderItems", trace.WithAttributes(attribute.String("order.id", orderID)))
	defer func() { finishSpan(span, err) }()

	if err := requireRole(actor, "only the order owner can change items", domain.RoleCustomer, domain.RoleAdmin); err != nil {
		return nil, err
	}
	lines, err := normalizeItems(items)
	if err != nil {
		return nil, err
	}

	now := s.now()
	var updated domain.Order
	err = s.store.WithinTx(ctx, func(ctx context.Context, tx ports.OrderTx) error {
		current, err := tx.LockOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if err := ensureOwner(actor, current); err != nil {
			return err
		}
		if current.Status != domain.StatusPlaced {
			return domain.ErrOrderNotEditable
		}

		oldQty := current.Quantities()
		newQty := lineQuantities(lines)
		union := make(map[string]int, len(oldQty)+len(newQty))
		for id := range oldQty {
			union[id] = 0
		}
		for id := range newQty {
			union[id] = 0
		}
		ids := sortedIDs(union)

		meds, err := tx.FindMedicines(ctx, ids)
		if err != nil {
			return err
		}
		byID := indexMedicines(meds)

		for _, l := range lines {
			m, ok := byID[l.MedicineID]
			if !ok {
				return domain.ErrInvalidMedicineRef
			}
			// Every line in the new set carries a positive quantity, so every
			// referenced medicine must still be listed as ACTIVE.
			if m.Status != domain.MedicineActive {
				return fmt.Errorf("%w: %s", domain.ErrMedicineUnavailable, m.Name)
			}
			delta := l.Quantity - oldQty[l.MedicineID]
			if delta > 0 && m.Stock < delta {
				return fmt.Errorf("%w: %s", domain.ErrInsufficientStock, m.Name)
			}
		}

		var reserved []string
		for _, id := range ids {
			delta := newQty[id] - oldQty[id]
			switch {
			case delta > 0:
				if err := tx.DecrementStock(ctx, id, delta); err != nil {
					return namedStockError(err, byID[id])
				}
				reserved = append(reserved, id)
			case delta < 0:
				if err := tx.IncrementStock(ctx, id, -delta, domain.RestockPreserveDisabled); err != nil {
					return err
				}
			}
		}
		if len(reserved) > 0 {
			if err := tx.MarkOutOfStock(ctx, reserved); err != nil {
				return err
			}
		}

		next := make([]domain.OrderItem, 0, len(lines))
		for _, l := range lines {
			m := byID[l.MedicineID]
			next = append(next, domain.OrderItem{
				ID:         s.newID(),
				OrderID:    current.ID,
				MedicineID: m.ID,
				SellerID:   m.SellerID,
				Quantity:   l.Quantity,
				Price:      m.Price,
				Medicine:   summarize(m),
			})
		}
		total := domain.SumItems(next)
		if err := tx.ReplaceItems(ctx, current.ID, next, total, now); err != nil {
			return err
		}

		updated = *current
		updated.Items = next
		updated.Total = total
		updated.UpdatedAt = now
		return nil
	})
	if err != nil {
		s.logFailure(err, "order item update failed", actor, orderID)
		return nil, err
	}

	s.logger.Info().
		Str("order_id", orderID).
		Str("total", updated.Total.StringFixed(2)).
		Int("lines", len(updated.Items)).
		Msg("order items updated")
	s.emit(ctx, domain.NewOrderEvent(domain.EventOrderItemsUpdated, &updated, updated.Status, actor, now))

	return s.materialize(ctx, &updated), nil
}

// CancelOrder cancels an order that has not shipped yet and restores every
// reserved unit.
func (s *OrderService) CancelOrder(ctx context.Context, actor domain.Identity, orderID string) (_ *domain.Order, err error) {
	ctx, span := tracer.Start(ctx, "OrderService.CancelOrder", trace.WithAttributes(attribute.String("order.id", orderID)))
	defer func() { finishSpan(span, err) }()

	if err := requireRole(actor, "only the order owner can cancel", domain.RoleCustomer, domain.RoleAdmin); err != nil {
		return nil, err
	}

	now := s.now()
	var cancelled domain.Order
	var prev domain.OrderStatus
	err = s.store.WithinTx(ctx, func(ctx context.Context, tx ports.OrderTx) error {
		current, err := tx.LockOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if err := ensureOwner(actor, current); err != nil {
			return err
		}
		if current.Status == domain.StatusCancelled {
			return domain.ErrOrderAlreadyCancelled
		}
		if !current.Status.Cancellable() {
			return domain.ErrOrderNotCancellable
		}
		prev = current.Status
		if err := s.cancelWithin(ctx, tx, current, actor, now); err != nil {
			return err
		}
		cancelled = *current
		return nil
	})
	if err != nil {
		s.logFailure(err, "order cancellation failed", actor, orderID)
		return nil, err
	}

	s.logger.Info().Str("order_id", orderID).Str("previous_status", string(prev)).Msg("order cancelled")
	s.emit(ctx, domain.NewOrderEvent(domain.EventOrderCancelled, &cancelled, prev, actor, now))

	return s.materialize(ctx, &cancelled), nil
}

// UpdateOrderStatus is the admin status write. It follows the transition
// table; moving to CANCELLED restores stock exactly like CancelOrder.
func (s *OrderService) UpdateOrderStatus(ctx context.Context, actor domain.Identity, orderID, status string) (_ *domain.Order, err error) {
	ctx, span := tracer.Start(ctx, "OrderService.UpdateOrderStatus", trace.WithAttributes(
		attribute.String("order.id", orderID), attribute.String("order.status", status)))
	defer func() { finishSpan(span, err) }()

	if err := requireRole(actor, "admin only", domain.RoleAdmin); err != nil {
		return nil, err
	}
	next, err := domain.ParseOrderStatus(status)
	if err != nil {
		return nil, err
	}

	return s.applyStatus(ctx, actor, orderID, next, nil)
}

// UpdateOrderStatusBySeller lets a seller move an order containing at least
// one of their lines through PROCESSING, SHIPPED and DELIVERED.
func (s *OrderService) UpdateOrderStatusBySeller(ctx context.Context, actor domain.Identity, orderID, status string) (_ *domain.Order, err error) {
	ctx, span := tracer.Start(ctx, "OrderService.UpdateOrderStatusBySeller", trace.WithAttributes(
		attribute.String("order.id", orderID), attribute.String("order.status", status)))
	defer func() { finishSpan(span, err) }()

	if err := requireRole(actor, "only seller can update order status", domain.RoleSeller, domain.RoleAdmin); err != nil {
		return nil, err
	}
	next, err := domain.ParseOrderStatus(status)
	if err != nil {
		return nil, err
	}
	if actor.Role == domain.RoleSeller && !next.SellerCanSet() {
		return nil, fmt.Errorf("%w: seller cannot set status to %s", domain.ErrForbidden, next)
	}

	return s.applyStatus(ctx, actor, orderID, next, func(current *domain.Order) error {
		if actor.Role == domain.RoleSeller && !current.HasSeller(actor.UserID) {
			return fmt.Errorf("%w: you cannot update this order", domain.ErrForbidden)
		}
		if current.Status.IsTerminal() {
			return domain.ErrOrderClosed
		}
		return nil
	})
}

// applyStatus runs a guarded transition inside a transaction. guard, when
// set, sees the locked order before the transition table is consulted.
func (s *OrderService) applyStatus(
	ctx context.Context,
	actor domain.Identity,
	orderID string,
	next domain.OrderStatus,
	guard func(current *domain.Order) error,
) (*domain.Order, error) {
	now := s.now()
	var result domain.Order
	var prev domain.OrderStatus
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx ports.OrderTx) error {
		current, err := tx.LockOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if guard != nil {
			if err := guard(current); err != nil {
				return err
			}
		}
		if !current.Status.CanTransitionTo(next) {
			return fmt.Errorf("%w (from %s to %s)", domain.ErrInvalidTransition, current.Status, next)
		}
		prev = current.Status

		if next == domain.StatusCancelled {
			if err := s.cancelWithin(ctx, tx, current, actor, now); err != nil {
				return err
			}
		} else {
			entry := domain.StatusHistoryEntry{Status: next, ActorRole: actor.Role, Timestamp: now}
			if err := tx.SetStatus(ctx, current.ID, current.Status, next, entry); err != nil {
				return err
			}
			current.Status = next
			current.UpdatedAt = now
		}
		result = *current
		return nil
	})
	if err != nil {
		s.logFailure(err, "order status update failed", actor, orderID)
		return nil, err
	}

	s.logger.Info().
		Str("order_id", orderID).
		Str("from", string(prev)).
		Str("to", string(next)).
		Str("actor_role", string(actor.Role)).
		Msg("order status updated")

	eventType := domain.EventOrderStatusChanged
	if next == domain.StatusCancelled {
		eventType = domain.EventOrderCancelled
	}
	s.emit(ctx, domain.NewOrderEvent(eventType, &result, prev, actor, now))

	return s.materialize(ctx, &result), nil
}

// cancelWithin flips order to CANCELLED and hands every reserved unit back to
// the ledger. It must run inside the caller's transaction.
func (s *OrderService) cancelWithin(ctx context.Context, tx ports.OrderTx, order *domain.Order, actor domain.Identity, now time.Time) error {
	entry := domain.StatusHistoryEntry{Status: domain.StatusCancelled, ActorRole: actor.Role, Timestamp: now}
	if err := tx.SetStatus(ctx, order.ID, order.Status, domain.StatusCancelled, entry); err != nil {
		return err
	}
	qty := order.Quantities()
	for _, id := range sortedIDs(qty) {
		if err := tx.IncrementStock(ctx, id, qty[id], s.opts.RestockMode); err != nil {
			return err
		}
	}
	order.Status = domain.StatusCancelled
	order.UpdatedAt = now
	return nil
}

// GetSingleOrder returns one order to its owner or an admin.
func (s *OrderService) GetSingleOrder(ctx context.Context, actor domain.Identity, orderID string) (*domain.Order, error) {
	if err := requireIdentity(actor); err != nil {
		return nil, err
	}
	order, err := s.store.FindOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if err := ensureOwner(actor, order); err != nil {
		return nil, err
	}
	return order, nil
}

// materialize reloads a committed order with its projections. The write has
// already succeeded, so a failed reload falls back to the in-memory aggregate.
func (s *OrderService) materialize(ctx context.Context, order *domain.Order) *domain.Order {
	full, err := s.store.FindOrder(ctx, order.ID)
	if err != nil {
		s.logger.Warn().Err(err).Str("order_id", order.ID).Msg("failed to reload committed order")
		return order
	}
	return full
}

func (s *OrderService) logFailure(err error, msg string, actor domain.Identity, orderID string) {
	ev := s.logger.Warn()
	if !isDomainError(err) {
		ev = s.logger.Error()
	}
	ev.Err(err).
		Str("order_id", orderID).
		Str("user_id", actor.UserID).
		Str("role", string(actor.Role)).
		Msg(msg)
}

func requireIdentity(actor domain.Identity) error {
	if strings.TrimSpace(actor.UserID) == "" || !actor.Role.Valid() {
		return domain.ErrMissingIdentity
	}
	return nil
}

func requireRole(actor domain.Identity, reason string, roles ...domain.Role) error {
	if err := requireIdentity(actor); err != nil {
		return err
	}
	if actor.HasRole(roles...) {
		return nil
	}
	return fmt.Errorf("%w: %s", domain.ErrForbidden, reason)
}

// ensureOwner allows admins and the customer who placed the order.
func ensureOwner(actor domain.Identity, order *domain.Order) error {
	if actor.Role == domain.RoleAdmin || order.CustomerID == actor.UserID {
		return nil
	}
	return domain.ErrForbidden
}

// namedStockError attaches the medicine name to a failed conditional decrement.
func namedStockError(err error, m *domain.Medicine) error {
	if errors.Is(err, domain.ErrInsufficientStock) && m != nil {
		return fmt.Errorf("%w: %s", domain.ErrInsufficientStock, m.Name)
	}
	return err
}

func summarize(m *domain.Medicine) *domain.MedicineSummary {
	return &domain.MedicineSummary{
		ID:           m.ID,
		Name:         m.Name,
		Manufacturer: m.Manufacturer,
		Price:        m.Price,
		Status:       m.Status,
	}
}

var errorKinds = []error{
	domain.ErrUnauthorized, domain.ErrForbidden, domain.ErrValidation,
	domain.ErrNotFound, domain.ErrConflict, domain.ErrBusinessRule,
}

// isDomainError reports whether err is an expected, caller-facing failure.
func isDomainError(err error) bool {
	for _, k := range errorKinds {
		if errors.Is(err, k) {
			return true
		}
	}
	return false
}

func finishSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
