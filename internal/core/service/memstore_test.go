package service

import (
	"context"
	"errors"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/medistore/medistore-api/internal/core/domain"
	"github.com/medistore/medistore-api/internal/core/ports"
)

// memStore is an in-memory OrderStore and MedicineRepository. Transactions
// are serialized and roll back by restoring a snapshot.
type memStore struct {
	mu        sync.Mutex
	medicines map[string]*domain.Medicine
	orders    map[string]*domain.Order
	customers map[string]*domain.CustomerSummary

	// failOn makes the named tx operation fail once it is reached.
	failOn string
}

var errInjected = errors.New("injected failure")

func newMemStore() *memStore {
	return &memStore{
		medicines: make(map[string]*domain.Medicine),
		orders:    make(map[string]*domain.Order),
		customers: make(map[string]*domain.CustomerSummary),
	}
}

func cloneMedicine(m *domain.Medicine) *domain.Medicine {
	c := *m
	return &c
}

func cloneOrder(o *domain.Order) *domain.Order {
	c := *o
	c.Items = append([]domain.OrderItem(nil), o.Items...)
	c.StatusHistory = append([]domain.StatusHistoryEntry(nil), o.StatusHistory...)
	return &c
}

func (s *memStore) addMedicine(m *domain.Medicine) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.medicines[m.ID] = cloneMedicine(m)
}

func (s *memStore) medicine(id string) *domain.Medicine {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneMedicine(s.medicines[id])
}

func (s *memStore) orderCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.orders)
}

func (s *memStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx ports.OrderTx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	meds := make(map[string]*domain.Medicine, len(s.medicines))
	for id, m := range s.medicines {
		meds[id] = cloneMedicine(m)
	}
	orders := make(map[string]*domain.Order, len(s.orders))
	for id, o := range s.orders {
		orders[id] = cloneOrder(o)
	}

	if err := fn(ctx, &memTx{s: s}); err != nil {
		s.medicines = meds
		s.orders = orders
		return err
	}
	return nil
}

func (s *memStore) FindMedicines(_ context.Context, ids []string) ([]*domain.Medicine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.findMedicines(ids), nil
}

func (s *memStore) findMedicines(ids []string) []*domain.Medicine {
	var out []*domain.Medicine
	for _, id := range ids {
		if m, ok := s.medicines[id]; ok {
			out = append(out, cloneMedicine(m))
		}
	}
	return out
}

func (s *memStore) FindOrder(_ context.Context, id string) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	c := cloneOrder(o)
	c.Customer = s.customers[o.CustomerID]
	return c, nil
}

func (s *memStore) ListOrders(_ context.Context, f ports.OrderFilter) ([]*domain.Order, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var matched []*domain.Order
	for _, o := range s.orders {
		if f.CustomerID != "" && o.CustomerID != f.CustomerID {
			continue
		}
		if f.Status != "" && o.Status != f.Status {
			continue
		}
		if f.MinTotal != nil && o.Total.LessThan(*f.MinTotal) {
			continue
		}
		if f.MaxTotal != nil && o.Total.GreaterThan(*f.MaxTotal) {
			continue
		}
		if f.Search != "" && !containsAny(f.Search, o.ID, o.Address, o.Phone) {
			continue
		}
		matched = append(matched, cloneOrder(o))
	}
	sortOrders(matched, f.Sort.Field, f.Sort.Desc)
	return window(matched, f.Page.Skip, f.Page.Limit), int64(len(matched)), nil
}

func (s *memStore) ListSellerItems(_ context.Context, f ports.SellerItemFilter) ([]*domain.SellerOrderItem, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var matched []*domain.SellerOrderItem
	for _, o := range s.orders {
		if f.Status != "" && o.Status != f.Status {
			continue
		}
		for _, it := range o.Items {
			if f.SellerID != "" && it.SellerID != f.SellerID {
				continue
			}
			name := ""
			if it.Medicine != nil {
				name = it.Medicine.Name
			}
			if f.Search != "" && !containsAny(f.Search, o.ID, o.Address, o.Phone, name) {
				continue
			}
			matched = append(matched, &domain.SellerOrderItem{
				OrderItem: it,
				Order: domain.SellerOrderHeader{
					ID: o.ID, Status: o.Status, Total: o.Total, Address: o.Address,
					Phone: o.Phone, CreatedAt: o.CreatedAt,
				},
			})
		}
	}
	sort.SliceStable(matched, func(i, j int) bool {
		a, b := matched[i].Order.CreatedAt, matched[j].Order.CreatedAt
		if f.Sort.Desc {
			return a.After(b)
		}
		return a.Before(b)
	})
	return window(matched, f.Page.Skip, f.Page.Limit), int64(len(matched)), nil
}

func (s *memStore) Create(_ context.Context, m *domain.Medicine) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.medicines[m.ID] = cloneMedicine(m)
	return nil
}

func (s *memStore) FindByID(_ context.Context, id string) (*domain.Medicine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.medicines[id]
	if !ok {
		return nil, domain.ErrMedicineNotFound
	}
	return cloneMedicine(m), nil
}

func (s *memStore) Update(_ context.Context, m *domain.Medicine, expectedStock int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.medicines[m.ID]
	if !ok {
		return domain.ErrMedicineNotFound
	}
	if cur.Stock != expectedStock {
		return domain.ErrStockChanged
	}
	s.medicines[m.ID] = cloneMedicine(m)
	return nil
}

func (s *memStore) List(_ context.Context, f ports.MedicineFilter) ([]*domain.Medicine, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var matched []*domain.Medicine
	for _, m := range s.medicines {
		if f.SellerID != "" && m.SellerID != f.SellerID {
			continue
		}
		if f.Status != "" && m.Status != f.Status {
			continue
		}
		if f.Manufacturer != "" && !containsAny(f.Manufacturer, m.Manufacturer) {
			continue
		}
		if f.MinPrice != nil && m.Price.LessThan(*f.MinPrice) {
			continue
		}
		if f.MaxPrice != nil && m.Price.GreaterThan(*f.MaxPrice) {
			continue
		}
		if f.Search != "" && !containsAny(f.Search, m.Name, m.Manufacturer) {
			continue
		}
		matched = append(matched, cloneMedicine(m))
	}
	less := func(a, b *domain.Medicine) bool {
		switch f.Sort.Field {
		case "price":
			return a.Price.LessThan(b.Price)
		case "stock":
			return a.Stock < b.Stock
		case "name":
			return a.Name < b.Name
		default:
			return a.CreatedAt.Before(b.CreatedAt)
		}
	}
	sort.SliceStable(matched, func(i, j int) bool {
		if f.Sort.Desc {
			return less(matched[j], matched[i])
		}
		return less(matched[i], matched[j])
	})
	return window(matched, f.Page.Skip, f.Page.Limit), int64(len(matched)), nil
}

// hasDelivered reports whether customerID received medicineID in a delivered
// order.
func (s *memStore) hasDelivered(customerID, medicineID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range s.orders {
		if o.CustomerID != customerID || o.Status != domain.StatusDelivered {
			continue
		}
		for _, it := range o.Items {
			if it.MedicineID == medicineID {
				return true
			}
		}
	}
	return false
}

type memTx struct {
	s *memStore
}

func (t *memTx) fail(op string) error {
	if t.s.failOn == op {
		return errInjected
	}
	return nil
}

func (t *memTx) FindMedicines(_ context.Context, ids []string) ([]*domain.Medicine, error) {
	return t.s.findMedicines(ids), nil
}

func (t *memTx) LockOrder(_ context.Context, id string) (*domain.Order, error) {
	o, ok := t.s.orders[id]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	return cloneOrder(o), nil
}

func (t *memTx) InsertOrder(_ context.Context, order *domain.Order) error {
	if err := t.fail("InsertOrder"); err != nil {
		return err
	}
	t.s.orders[order.ID] = cloneOrder(order)
	return nil
}

func (t *memTx) ReplaceItems(_ context.Context, orderID string, items []domain.OrderItem, total decimal.Decimal, at time.Time) error {
	if err := t.fail("ReplaceItems"); err != nil {
		return err
	}
	o := t.s.orders[orderID]
	o.Items = append([]domain.OrderItem(nil), items...)
	o.Total = total
	o.UpdatedAt = at
	return nil
}

func (t *memTx) DecrementStock(_ context.Context, id string, qty int) error {
	m, ok := t.s.medicines[id]
	if !ok || m.Status != domain.MedicineActive || m.Stock < qty {
		return domain.ErrInsufficientStock
	}
	m.Stock -= qty
	return nil
}

func (t *memTx) IncrementStock(_ context.Context, id string, qty int, mode domain.RestockMode) error {
	if err := t.fail("IncrementStock"); err != nil {
		return err
	}
	m, ok := t.s.medicines[id]
	if !ok {
		return domain.ErrMedicineNotFound
	}
	m.Stock += qty
	if mode == domain.RestockReactivate || m.Status == domain.MedicineOutOfStock {
		m.Status = domain.MedicineActive
	}
	return nil
}

func (t *memTx) MarkOutOfStock(_ context.Context, ids []string) error {
	if err := t.fail("MarkOutOfStock"); err != nil {
		return err
	}
	for _, id := range ids {
		if m, ok := t.s.medicines[id]; ok && m.Stock == 0 {
			m.Status = domain.MedicineOutOfStock
		}
	}
	return nil
}

func (t *memTx) SetStatus(_ context.Context, orderID string, from, to domain.OrderStatus, entry domain.StatusHistoryEntry) error {
	o, ok := t.s.orders[orderID]
	if !ok {
		return domain.ErrOrderNotFound
	}
	if o.Status != from {
		return domain.ErrConcurrentUpdate
	}
	o.Status = to
	o.UpdatedAt = entry.Timestamp
	o.StatusHistory = append(o.StatusHistory, entry)
	return nil
}

func containsAny(term string, fields ...string) bool {
	term = strings.ToLower(term)
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), term) {
			return true
		}
	}
	return false
}

func sortOrders(orders []*domain.Order, field string, desc bool) {
	less := func(a, b *domain.Order) bool {
		switch field {
		case "total":
			return a.Total.LessThan(b.Total)
		case "status":
			return a.Status < b.Status
		default:
			return a.CreatedAt.Before(b.CreatedAt)
		}
	}
	sort.SliceStable(orders, func(i, j int) bool {
		if desc {
			return less(orders[j], orders[i])
		}
		return less(orders[i], orders[j])
	})
}

func window[T any](items []T, skip, limit int) []T {
	if skip >= len(items) {
		return nil
	}
	end := skip + limit
	if end > len(items) {
		end = len(items)
	}
	return items[skip:end]
}

// memIdempotency is an in-memory IdempotencyStore. It records the TTL each
// key was last written with; expire simulates the TTL running out.
type memIdempotency struct {
	mu          sync.Mutex
	keys        map[string]string
	ttls        map[string]time.Duration
	completeErr error
}

func newMemIdempotency() *memIdempotency {
	return &memIdempotency{keys: make(map[string]string), ttls: make(map[string]time.Duration)}
}

func (m *memIdempotency) Reserve(_ context.Context, scope, key string, ttl time.Duration) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := scope + ":" + key
	if v, ok := m.keys[k]; ok {
		return v, false, nil
	}
	m.keys[k] = ""
	m.ttls[k] = ttl
	return "", true, nil
}

func (m *memIdempotency) Complete(_ context.Context, scope, key, orderID string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.completeErr != nil {
		return m.completeErr
	}
	k := scope + ":" + key
	m.keys[k] = orderID
	m.ttls[k] = ttl
	return nil
}

func (m *memIdempotency) Release(_ context.Context, scope, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.keys, scope+":"+key)
	delete(m.ttls, scope+":"+key)
	return nil
}

func (m *memIdempotency) ttl(scope, key string) time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ttls[scope+":"+key]
}

func (m *memIdempotency) expire(scope, key string) {
	_ = m.Release(context.Background(), scope, key)
}

// recordingSink collects enqueued events.
type recordingSink struct {
	mu     sync.Mutex
	events []domain.OrderEvent
}

func (r *recordingSink) Enqueue(evt domain.OrderEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt)
}

func (r *recordingSink) types() []domain.OrderEventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.OrderEventType, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

// memReviews is an in-memory ReviewRepository backed by the orders of store.
type memReviews struct {
	mu      sync.Mutex
	store   *memStore
	reviews map[string]*domain.Review
}

func newMemReviews(store *memStore) *memReviews {
	return &memReviews{store: store, reviews: make(map[string]*domain.Review)}
}

func (r *memReviews) Create(_ context.Context, rv *domain.Review) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.reviews {
		if existing.MedicineID == rv.MedicineID && existing.CustomerID == rv.CustomerID {
			return domain.ErrDuplicateReview
		}
	}
	c := *rv
	r.reviews[rv.ID] = &c
	return nil
}

func (r *memReviews) FindByID(_ context.Context, id string) (*domain.Review, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rv, ok := r.reviews[id]
	if !ok {
		return nil, domain.ErrReviewNotFound
	}
	c := *rv
	return &c, nil
}

func (r *memReviews) Update(_ context.Context, rv *domain.Review) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.reviews[rv.ID]; !ok {
		return domain.ErrReviewNotFound
	}
	c := *rv
	r.reviews[rv.ID] = &c
	return nil
}

func (r *memReviews) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.reviews[id]; !ok {
		return domain.ErrReviewNotFound
	}
	delete(r.reviews, id)
	return nil
}

func (r *memReviews) List(_ context.Context, f ports.ReviewFilter) ([]*domain.Review, domain.RatingStats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var (
		matched []*domain.Review
		sum     int
	)
	for _, rv := range r.reviews {
		if f.MedicineID != "" && rv.MedicineID != f.MedicineID {
			continue
		}
		if f.CustomerID != "" && rv.CustomerID != f.CustomerID {
			continue
		}
		c := *rv
		matched = append(matched, &c)
		sum += rv.Rating
	}
	sort.SliceStable(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		if f.Sort.Field == "rating" {
			if f.Sort.Desc {
				return a.Rating > b.Rating
			}
			return a.Rating < b.Rating
		}
		if f.Sort.Desc {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.CreatedAt.Before(b.CreatedAt)
	})

	stats := domain.RatingStats{Total: int64(len(matched))}
	if len(matched) > 0 {
		stats.Average = math.Round(float64(sum)/float64(len(matched))*100) / 100
	}
	return window(matched, f.Page.Skip, f.Page.Limit), stats, nil
}

func (r *memReviews) HasDeliveredPurchase(_ context.Context, customerID, medicineID string) (bool, error) {
	return r.store.hasDelivered(customerID, medicineID), nil
}
