//go:build integration

package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/medistore/medistore-api/internal/core/domain"
	"github.com/medistore/medistore-api/internal/core/ports"
	"github.com/medistore/medistore-api/internal/core/service"
)

func migrationsSource() string {
	_, filename, _, _ := runtime.Caller(0)
	root := filepath.Join(filepath.Dir(filename), "..", "..", "..", "..")
	return "file://" + filepath.Join(root, "migrations")
}

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("medistore"),
		tcpostgres.WithUsername("medistore"),
		tcpostgres.WithPassword("medistore"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate postgres container: %v", err)
		}
	})

	url, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	require.NoError(t, Migrate(url, migrationsSource()))

	db, err := Connect(ctx, Config{URL: url, MaxOpenConns: 30})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func seedUser(t *testing.T, repo *UserRepository, id string, role domain.Role) domain.Identity {
	t.Helper()
	now := time.Now().UTC()
	require.NoError(t, repo.Create(context.Background(), &domain.User{
		ID: id, Name: "User " + id, Email: id + "@example.com", PasswordHash: "x",
		Role: role, CreatedAt: now, UpdatedAt: now,
	}))
	return domain.Identity{UserID: id, Role: role}
}

func seedMedicine(t *testing.T, repo *MedicineRepository, id, sellerID, price string, stock int) {
	t.Helper()
	now := time.Now().UTC()
	require.NoError(t, repo.Create(context.Background(), &domain.Medicine{
		ID: id, SellerID: sellerID, Name: "Medicine " + id, Price: decimal.RequireFromString(price),
		Stock: stock, Status: domain.SettleStatus(domain.MedicineActive, "", stock), CreatedAt: now, UpdatedAt: now,
	}))
}

func TestOrderStore_Integration(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()

	users := NewUserRepository(db)
	meds := NewMedicineRepository(db)
	store := NewOrderStore(db)
	svc := service.NewOrderService(store, nil, nil, service.OrderOptions{MaxPageSize: 50}, zerolog.Nop())

	seller := seedUser(t, users, "seller-1", domain.RoleSeller)
	admin := seedUser(t, users, "admin-1", domain.RoleAdmin)
	seedMedicine(t, meds, "m-race", seller.UserID, "3.00", 5)
	seedMedicine(t, meds, "m-a", seller.UserID, "10.50", 10)
	seedMedicine(t, meds, "m-b", seller.UserID, "1.25", 3)

	t.Run("duplicate email is a conflict", func(t *testing.T) {
		now := time.Now().UTC()
		err := users.Create(ctx, &domain.User{ID: "dup", Name: "d", Email: "seller-1@example.com", Role: domain.RoleCustomer, CreatedAt: now, UpdatedAt: now})
		assert.ErrorIs(t, err, domain.ErrUserExists)
	})

	t.Run("concurrent checkouts never oversell", func(t *testing.T) {
		buyers := make([]domain.Identity, 20)
		for i := range buyers {
			buyers[i] = seedUser(t, users, fmt.Sprintf("buyer-%02d", i), domain.RoleCustomer)
		}

		var (
			wg       sync.WaitGroup
			mu       sync.Mutex
			placed   int
			rejected int
		)
		for _, b := range buyers {
			wg.Add(1)
			go func(actor domain.Identity) {
				defer wg.Done()
				_, err := svc.Checkout(ctx, actor, ports.CheckoutInput{
					Address: "1 Main St", Phone: "555",
					Items: []ports.ItemInput{{MedicineID: "m-race", Quantity: 1}},
				})
				mu.Lock()
				defer mu.Unlock()
				switch {
				case err == nil:
					placed++
				case errors.Is(err, domain.ErrConflict), errors.Is(err, domain.ErrBusinessRule):
					rejected++
				default:
					t.Errorf("unexpected error: %v", err)
				}
			}(b)
		}
		wg.Wait()

		assert.Equal(t, 5, placed)
		assert.Equal(t, 15, rejected)

		m, err := meds.FindByID(ctx, "m-race")
		require.NoError(t, err)
		assert.Equal(t, 0, m.Stock)
		assert.Equal(t, domain.MedicineOutOfStock, m.Status)
	})

	customer := seedUser(t, users, "cust-1", domain.RoleCustomer)

	var orderID string
	t.Run("checkout persists items, total and history", func(t *testing.T) {
		order, err := svc.Checkout(ctx, customer, ports.CheckoutInput{
			Address: "42 Elm St", Phone: "555-0100",
			Items: []ports.ItemInput{{MedicineID: "m-a", Quantity: 2}, {MedicineID: "m-b", Quantity: 3}},
		})
		require.NoError(t, err)
		orderID = order.ID

		got, err := store.FindOrder(ctx, orderID)
		require.NoError(t, err)
		assert.True(t, got.Total.Equal(decimal.RequireFromString("24.75")))
		require.Len(t, got.Items, 2)
		assert.Equal(t, "m-a", got.Items[0].MedicineID)
		assert.Equal(t, "Medicine m-a", got.Items[0].Medicine.Name)
		assert.Equal(t, "User cust-1", got.Customer.Name)
		require.Len(t, got.StatusHistory, 1)
		assert.Equal(t, domain.StatusPlaced, got.StatusHistory[0].Status)

		b, err := meds.FindByID(ctx, "m-b")
		require.NoError(t, err)
		assert.Equal(t, 0, b.Stock)
		assert.Equal(t, domain.MedicineOutOfStock, b.Status)
	})

	t.Run("edit releases and reserves the difference", func(t *testing.T) {
		order, err := svc.UpdateOrderItems(ctx, customer, orderID, []ports.ItemInput{
			{MedicineID: "m-a", Quantity: 5},
			{MedicineID: "m-b", Quantity: 1},
		})
		require.NoError(t, err)
		assert.True(t, order.Total.Equal(decimal.RequireFromString("53.75")))

		a, _ := meds.FindByID(ctx, "m-a")
		b, _ := meds.FindByID(ctx, "m-b")
		assert.Equal(t, 5, a.Stock)
		assert.Equal(t, 2, b.Stock)
		assert.Equal(t, domain.MedicineActive, b.Status)
	})

	t.Run("listings filter, search and paginate", func(t *testing.T) {
		page, err := svc.GetAllOrders(ctx, admin, ports.ListOrdersInput{Search: "elm", Limit: 10})
		require.NoError(t, err)
		require.Len(t, page.Items, 1)
		assert.Equal(t, orderID, page.Items[0].ID)

		page, err = svc.GetAllOrders(ctx, admin, ports.ListOrdersInput{Limit: 2, SortBy: "total", SortOrder: "asc"})
		require.NoError(t, err)
		assert.Len(t, page.Items, 2)
		assert.EqualValues(t, 6, page.Meta.Total)
		assert.Equal(t, 3, page.Meta.TotalPages)

		lines, err := svc.GetSellerOrders(ctx, seller, ports.ListSellerOrdersInput{Search: "m-b"})
		require.NoError(t, err)
		require.Len(t, lines.Items, 1)
		assert.Equal(t, orderID, lines.Items[0].Order.ID)
	})

	t.Run("cancel restores stock once", func(t *testing.T) {
		_, err := svc.CancelOrder(ctx, customer, orderID)
		require.NoError(t, err)

		_, err = svc.CancelOrder(ctx, customer, orderID)
		assert.ErrorIs(t, err, domain.ErrOrderAlreadyCancelled)

		a, _ := meds.FindByID(ctx, "m-a")
		b, _ := meds.FindByID(ctx, "m-b")
		assert.Equal(t, 10, a.Stock)
		assert.Equal(t, 3, b.Stock)

		got, err := store.FindOrder(ctx, orderID)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusCancelled, got.Status)
		assert.Len(t, got.StatusHistory, 2)
	})

	t.Run("catalog update is conditional on stock", func(t *testing.T) {
		m, err := meds.FindByID(ctx, "m-a")
		require.NoError(t, err)
		m.Stock = 99
		assert.ErrorIs(t, meds.Update(ctx, m, 1), domain.ErrStockChanged)
		require.NoError(t, meds.Update(ctx, m, 10))
	})
}

func TestCatalogAndReviews_Integration(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()

	users := NewUserRepository(db)
	meds := NewMedicineRepository(db)
	reviews := NewReviewRepository(db)
	orders := service.NewOrderService(NewOrderStore(db), nil, nil, service.OrderOptions{MaxPageSize: 50}, zerolog.Nop())
	catalog := service.NewMedicineService(meds, zerolog.Nop())
	reviewSvc := service.NewReviewService(reviews, meds, zerolog.Nop())

	seller := seedUser(t, users, "seller-1", domain.RoleSeller)
	other := seedUser(t, users, "seller-2", domain.RoleSeller)
	admin := seedUser(t, users, "admin-1", domain.RoleAdmin)
	customer := seedUser(t, users, "cust-1", domain.RoleCustomer)
	stranger := seedUser(t, users, "cust-2", domain.RoleCustomer)
	seedMedicine(t, meds, "m-aspirin", seller.UserID, "4.00", 10)
	seedMedicine(t, meds, "m-ibuprofen", seller.UserID, "7.50", 0)
	seedMedicine(t, meds, "m-zinc", other.UserID, "12.00", 4)

	t.Run("catalog listing filters and sorts", func(t *testing.T) {
		page, err := catalog.List(ctx, ports.ListMedicinesInput{SellerID: seller.UserID, SortBy: "price", SortOrder: "asc"})
		require.NoError(t, err)
		require.Len(t, page.Items, 2)
		assert.Equal(t, "m-aspirin", page.Items[0].ID)
		assert.EqualValues(t, 2, page.Meta.Total)

		page, err = catalog.List(ctx, ports.ListMedicinesInput{Status: "out_of_stock"})
		require.NoError(t, err)
		require.Len(t, page.Items, 1)
		assert.Equal(t, "m-ibuprofen", page.Items[0].ID)

		lo := decimal.RequireFromString("5")
		page, err = catalog.List(ctx, ports.ListMedicinesInput{MinPrice: &lo, Search: "m-zinc", Limit: 1})
		require.NoError(t, err)
		require.Len(t, page.Items, 1)
		assert.Equal(t, "m-zinc", page.Items[0].ID)
	})

	order, err := orders.Checkout(ctx, customer, ports.CheckoutInput{
		Address: "1 Main St", Phone: "555-0101",
		Items: []ports.ItemInput{{MedicineID: "m-aspirin", Quantity: 1}},
	})
	require.NoError(t, err)

	t.Run("review requires a delivered purchase", func(t *testing.T) {
		_, err := reviewSvc.Create(ctx, customer, ports.CreateReviewInput{MedicineID: "m-aspirin", Rating: 5})
		assert.ErrorIs(t, err, domain.ErrPurchaseRequired)

		for _, s := range []string{"PROCESSING", "SHIPPED", "DELIVERED"} {
			_, err := orders.UpdateOrderStatus(ctx, admin, order.ID, s)
			require.NoError(t, err)
		}

		ok, err := reviews.HasDeliveredPurchase(ctx, customer.UserID, "m-aspirin")
		require.NoError(t, err)
		assert.True(t, ok)
		ok, err = reviews.HasDeliveredPurchase(ctx, stranger.UserID, "m-aspirin")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	var reviewID string
	t.Run("one review per customer and medicine", func(t *testing.T) {
		comment := "works fast"
		r, err := reviewSvc.Create(ctx, customer, ports.CreateReviewInput{MedicineID: "m-aspirin", Rating: 4, Comment: &comment})
		require.NoError(t, err)
		reviewID = r.ID

		_, err = reviewSvc.Create(ctx, customer, ports.CreateReviewInput{MedicineID: "m-aspirin", Rating: 1})
		assert.ErrorIs(t, err, domain.ErrDuplicateReview)
	})

	t.Run("listing carries rating stats", func(t *testing.T) {
		page, err := reviewSvc.List(ctx, ports.ListReviewsInput{MedicineID: "m-aspirin"})
		require.NoError(t, err)
		require.Len(t, page.Items, 1)
		assert.Equal(t, "User cust-1", page.Items[0].Customer.Name)
		assert.EqualValues(t, 1, page.Rating.Total)
		assert.InDelta(t, 4.0, page.Rating.Average, 0.001)
	})

	t.Run("only the author or an admin edits", func(t *testing.T) {
		five := 5
		_, err := reviewSvc.Update(ctx, stranger, reviewID, ports.UpdateReviewInput{Rating: &five})
		assert.ErrorIs(t, err, domain.ErrForbidden)

		r, err := reviewSvc.Update(ctx, customer, reviewID, ports.UpdateReviewInput{Rating: &five})
		require.NoError(t, err)
		assert.Equal(t, 5, r.Rating)

		require.NoError(t, reviewSvc.Delete(ctx, admin, reviewID))
		_, err = reviews.FindByID(ctx, reviewID)
		assert.ErrorIs(t, err, domain.ErrReviewNotFound)
	})
}
