package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strconv"

	"golang.org/x/sync/errgroup"

	"github.com/medistore/medistore-api/internal/core/domain"
	"github.com/medistore/medistore-api/internal/core/ports"
)

const reviewColumns = `r.id, r.medicine_id, r.customer_id, r.rating, r.comment, r.created_at, r.updated_at,
	COALESCE(u.name, ''), COALESCE(u.email, '')`

// ReviewRepository implements ports.ReviewRepository.
type ReviewRepository struct {
	db *sql.DB
}

func NewReviewRepository(db *sql.DB) *ReviewRepository {
	return &ReviewRepository{db: db}
}

func (r *ReviewRepository) Create(ctx context.Context, rv *domain.Review) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO reviews (id, medicine_id, customer_id, rating, comment, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, rv.ID, rv.MedicineID, rv.CustomerID, rv.Rating, rv.Comment, rv.CreatedAt, rv.UpdatedAt)
	return translate(err)
}

func (r *ReviewRepository) FindByID(ctx context.Context, id string) (*domain.Review, error) {
	rv, err := scanReview(r.db.QueryRowContext(ctx, `
		SELECT `+reviewColumns+`
		FROM reviews r LEFT JOIN users u ON u.id = r.customer_id
		WHERE r.id = $1
	`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrReviewNotFound
	}
	if err != nil {
		return nil, translate(err)
	}
	return rv, nil
}

func (r *ReviewRepository) Update(ctx context.Context, rv *domain.Review) error {
	n, err := rowsAffected(r.db.ExecContext(ctx, `
		UPDATE reviews SET rating = $2, comment = $3, updated_at = $4 WHERE id = $1
	`, rv.ID, rv.Rating, rv.Comment, rv.UpdatedAt))
	if err != nil {
		return translate(err)
	}
	if n == 0 {
		return domain.ErrReviewNotFound
	}
	return nil
}

func (r *ReviewRepository) Delete(ctx context.Context, id string) error {
	n, err := rowsAffected(r.db.ExecContext(ctx, `DELETE FROM reviews WHERE id = $1`, id))
	if err != nil {
		return translate(err)
	}
	if n == 0 {
		return domain.ErrReviewNotFound
	}
	return nil
}

var reviewSortColumns = map[string]string{
	"createdAt": "r.created_at",
	"rating":    "r.rating",
}

func (r *ReviewRepository) List(ctx context.Context, f ports.ReviewFilter) ([]*domain.Review, domain.RatingStats, error) {
	var w where
	if f.MedicineID != "" {
		w.add("r.medicine_id = " + w.arg(f.MedicineID))
	}
	if f.CustomerID != "" {
		w.add("r.customer_id = " + w.arg(f.CustomerID))
	}

	var (
		out   []*domain.Review
		stats domain.RatingStats
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		args := append(append([]any{}, w.args...), f.Page.Limit, f.Page.Skip)
		rows, err := r.db.QueryContext(gctx, `
			SELECT `+reviewColumns+`
			FROM reviews r LEFT JOIN users u ON u.id = r.customer_id`+w.String()+
			` ORDER BY `+sortClause(reviewSortColumns, "r.id", f.Sort.Field, f.Sort.Desc)+
			` LIMIT $`+strconv.Itoa(len(w.args)+1)+` OFFSET $`+strconv.Itoa(len(w.args)+2), args...)
		if err != nil {
			return translate(err)
		}
		defer func() { _ = rows.Close() }()

		for rows.Next() {
			rv, err := scanReview(rows)
			if err != nil {
				return err
			}
			out = append(out, rv)
		}
		return rows.Err()
	})
	g.Go(func() error {
		return translate(r.db.QueryRowContext(gctx,
			`SELECT COUNT(*), COALESCE(ROUND(AVG(r.rating), 2), 0)::float8 FROM reviews r`+w.String(), w.args...,
		).Scan(&stats.Total, &stats.Average))
	})
	if err := g.Wait(); err != nil {
		return nil, domain.RatingStats{}, err
	}
	return out, stats, nil
}

func (r *ReviewRepository) HasDeliveredPurchase(ctx context.Context, customerID, medicineID string) (bool, error) {
	var ok bool
	err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1
			FROM order_items oi
			JOIN orders o ON o.id = oi.order_id
			WHERE oi.medicine_id = $1 AND o.customer_id = $2 AND o.status = $3
		)
	`, medicineID, customerID, string(domain.StatusDelivered)).Scan(&ok)
	return ok, translate(err)
}

func scanReview(row scanner) (*domain.Review, error) {
	var (
		rv       domain.Review
		customer domain.CustomerSummary
	)
	if err := row.Scan(&rv.ID, &rv.MedicineID, &rv.CustomerID, &rv.Rating, &rv.Comment, &rv.CreatedAt, &rv.UpdatedAt,
		&customer.Name, &customer.Email); err != nil {
		return nil, err
	}
	customer.ID = rv.CustomerID
	rv.Customer = &customer
	return &rv, nil
}
