package service

import (
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medistore/medistore-api/internal/core/domain"
	"github.com/medistore/medistore-api/internal/core/ports"
)

type reviewFixture struct {
	*fixture
	reviews *memReviews
	rsvc    *ReviewService
}

func newReviewFixture(t *testing.T) *reviewFixture {
	t.Helper()
	f := newFixture(t)
	reviews := newMemReviews(f.store)
	rsvc := NewReviewService(reviews, f.store, zerolog.Nop())

	var tick int64
	base := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	rsvc.now = func() time.Time {
		return base.Add(time.Duration(atomic.AddInt64(&tick, 1)) * time.Minute)
	}
	return &reviewFixture{fixture: f, reviews: reviews, rsvc: rsvc}
}

// deliver checks out items for actor and walks the order to DELIVERED.
func (f *reviewFixture) deliver(t *testing.T, actor domain.Identity, items ...ports.ItemInput) *domain.Order {
	t.Helper()
	order := f.checkout(t, actor, items...)
	for _, s := range []string{"PROCESSING", "SHIPPED", "DELIVERED"} {
		_, err := f.svc.UpdateOrderStatus(f.ctx, admin, order.ID, s)
		require.NoError(t, err)
	}
	return order
}

func TestCreateReview_RequiresDeliveredPurchase(t *testing.T) {
	f := newReviewFixture(t)

	_, err := f.rsvc.Create(f.ctx, customer, ports.CreateReviewInput{MedicineID: "med-a", Rating: 5})
	assert.ErrorIs(t, err, domain.ErrPurchaseRequired)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	order := f.checkout(t, customer, item("med-a", 1))
	_, err = f.svc.UpdateOrderStatus(f.ctx, admin, order.ID, "PROCESSING")
	require.NoError(t, err)
	_, err = f.rsvc.Create(f.ctx, customer, ports.CreateReviewInput{MedicineID: "med-a", Rating: 5})
	assert.ErrorIs(t, err, domain.ErrPurchaseRequired, "an order still in flight does not count")

	f.deliver(t, otherCustomer, item("med-a", 1))
	_, err = f.rsvc.Create(f.ctx, customer, ports.CreateReviewInput{MedicineID: "med-a", Rating: 5})
	assert.ErrorIs(t, err, domain.ErrPurchaseRequired, "another customer's delivery does not count")
}

func TestCreateReview_OncePerMedicine(t *testing.T) {
	f := newReviewFixture(t)
	f.deliver(t, customer, item("med-a", 1), item("med-b", 1))

	comment := "  works fast  "
	r, err := f.rsvc.Create(f.ctx, customer, ports.CreateReviewInput{MedicineID: "med-a", Rating: 4, Comment: &comment})
	require.NoError(t, err)
	assert.Equal(t, "cust-1", r.CustomerID)
	assert.Equal(t, "works fast", r.Comment)

	_, err = f.rsvc.Create(f.ctx, customer, ports.CreateReviewInput{MedicineID: "med-a", Rating: 2})
	assert.ErrorIs(t, err, domain.ErrDuplicateReview)
	assert.ErrorIs(t, err, domain.ErrConflict)

	_, err = f.rsvc.Create(f.ctx, customer, ports.CreateReviewInput{MedicineID: "med-b", Rating: 2})
	assert.NoError(t, err)
}

func TestCreateReview_Rejections(t *testing.T) {
	long := strings.Repeat("é", domain.MaxCommentLength+1)
	cases := []struct {
		name  string
		actor domain.Identity
		input ports.CreateReviewInput
		want  error
	}{
		{"seller cannot review", sellerOne, ports.CreateReviewInput{MedicineID: "med-a", Rating: 3}, domain.ErrForbidden},
		{"missing identity", domain.Identity{}, ports.CreateReviewInput{MedicineID: "med-a", Rating: 3}, domain.ErrUnauthorized},
		{"blank medicine", customer, ports.CreateReviewInput{MedicineID: " ", Rating: 3}, domain.ErrMedicineIDRequired},
		{"rating zero", customer, ports.CreateReviewInput{MedicineID: "med-a", Rating: 0}, domain.ErrInvalidRating},
		{"rating six", customer, ports.CreateReviewInput{MedicineID: "med-a", Rating: 6}, domain.ErrInvalidRating},
		{"comment too long", customer, ports.CreateReviewInput{MedicineID: "med-a", Rating: 3, Comment: &long}, domain.ErrCommentTooLong},
		{"unknown medicine", customer, ports.CreateReviewInput{MedicineID: "nope", Rating: 3}, domain.ErrMedicineNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newReviewFixture(t)
			_, err := f.rsvc.Create(f.ctx, tc.actor, tc.input)
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestUpdateReview_AuthorOrAdmin(t *testing.T) {
	f := newReviewFixture(t)
	f.deliver(t, customer, item("med-a", 1))
	r, err := f.rsvc.Create(f.ctx, customer, ports.CreateReviewInput{MedicineID: "med-a", Rating: 3})
	require.NoError(t, err)

	five := 5
	_, err = f.rsvc.Update(f.ctx, otherCustomer, r.ID, ports.UpdateReviewInput{Rating: &five})
	assert.ErrorIs(t, err, domain.ErrForbidden)

	_, err = f.rsvc.Update(f.ctx, customer, r.ID, ports.UpdateReviewInput{})
	assert.ErrorIs(t, err, domain.ErrEmptyReviewUpdate)

	bad := 9
	_, err = f.rsvc.Update(f.ctx, customer, r.ID, ports.UpdateReviewInput{Rating: &bad})
	assert.ErrorIs(t, err, domain.ErrInvalidRating)

	updated, err := f.rsvc.Update(f.ctx, customer, r.ID, ports.UpdateReviewInput{Rating: &five})
	require.NoError(t, err)
	assert.Equal(t, 5, updated.Rating)
	assert.True(t, updated.UpdatedAt.After(r.UpdatedAt))

	comment := "edited by admin"
	updated, err = f.rsvc.Update(f.ctx, admin, r.ID, ports.UpdateReviewInput{Comment: &comment})
	require.NoError(t, err)
	assert.Equal(t, "edited by admin", updated.Comment)
	assert.Equal(t, 5, updated.Rating)

	_, err = f.rsvc.Update(f.ctx, customer, "missing", ports.UpdateReviewInput{Rating: &five})
	assert.ErrorIs(t, err, domain.ErrReviewNotFound)
}

func TestDeleteReview(t *testing.T) {
	f := newReviewFixture(t)
	f.deliver(t, customer, item("med-a", 1))
	r, err := f.rsvc.Create(f.ctx, customer, ports.CreateReviewInput{MedicineID: "med-a", Rating: 3})
	require.NoError(t, err)

	assert.ErrorIs(t, f.rsvc.Delete(f.ctx, otherCustomer, r.ID), domain.ErrForbidden)
	require.NoError(t, f.rsvc.Delete(f.ctx, customer, r.ID))
	assert.ErrorIs(t, f.rsvc.Delete(f.ctx, customer, r.ID), domain.ErrReviewNotFound)

	// The slot is free again once the review is gone.
	_, err = f.rsvc.Create(f.ctx, customer, ports.CreateReviewInput{MedicineID: "med-a", Rating: 4})
	assert.NoError(t, err)
}

func TestListReviews_StatsAndFilters(t *testing.T) {
	f := newReviewFixture(t)
	f.deliver(t, customer, item("med-a", 1), item("med-b", 1))
	f.deliver(t, otherCustomer, item("med-a", 1))

	_, err := f.rsvc.Create(f.ctx, customer, ports.CreateReviewInput{MedicineID: "med-a", Rating: 5})
	require.NoError(t, err)
	_, err = f.rsvc.Create(f.ctx, otherCustomer, ports.CreateReviewInput{MedicineID: "med-a", Rating: 2})
	require.NoError(t, err)
	_, err = f.rsvc.Create(f.ctx, customer, ports.CreateReviewInput{MedicineID: "med-b", Rating: 4})
	require.NoError(t, err)

	page, err := f.rsvc.List(f.ctx, ports.ListReviewsInput{MedicineID: "med-a", SortBy: "rating", SortOrder: "asc"})
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	assert.Equal(t, 2, page.Items[0].Rating)
	assert.EqualValues(t, 2, page.Rating.Total)
	assert.InDelta(t, 3.5, page.Rating.Average, 0.001)

	page, err = f.rsvc.List(f.ctx, ports.ListReviewsInput{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, page.Items, 1)
	assert.EqualValues(t, 3, page.Meta.Total)
	assert.Equal(t, 3, page.Meta.TotalPages)

	mine, err := f.rsvc.ListMine(f.ctx, customer, ports.ListReviewsInput{})
	require.NoError(t, err)
	assert.Len(t, mine.Items, 2)
	for _, r := range mine.Items {
		assert.Equal(t, "cust-1", r.CustomerID)
	}

	_, err = f.rsvc.List(f.ctx, ports.ListReviewsInput{MedicineID: "nope"})
	assert.ErrorIs(t, err, domain.ErrMedicineNotFound)

	_, err = f.rsvc.ListMine(f.ctx, domain.Identity{}, ports.ListReviewsInput{})
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	empty, err := f.rsvc.List(f.ctx, ports.ListReviewsInput{MedicineID: "med-c"})
	require.NoError(t, err)
	assert.NotNil(t, empty.Items)
	assert.Zero(t, empty.Rating.Average)
}
