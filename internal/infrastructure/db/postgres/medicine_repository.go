package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strconv"

	"github.com/lib/pq"
	"golang.org/x/sync/errgroup"

	"github.com/medistore/medistore-api/internal/core/domain"
	"github.com/medistore/medistore-api/internal/core/ports"
)

const medicineColumns = `id, seller_id, name, manufacturer, price, stock, status, created_at, updated_at`

// MedicineRepository implements ports.MedicineRepository.
type MedicineRepository struct {
	db *sql.DB
}

func NewMedicineRepository(db *sql.DB) *MedicineRepository {
	return &MedicineRepository{db: db}
}

func (r *MedicineRepository) Create(ctx context.Context, m *domain.Medicine) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO medicines (`+medicineColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, m.ID, m.SellerID, m.Name, m.Manufacturer, m.Price, m.Stock, m.Status, m.CreatedAt, m.UpdatedAt)
	return translate(err)
}

func (r *MedicineRepository) FindByID(ctx context.Context, id string) (*domain.Medicine, error) {
	m, err := scanMedicine(r.db.QueryRowContext(ctx, `
		SELECT `+medicineColumns+` FROM medicines WHERE id = $1
	`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrMedicineNotFound
	}
	if err != nil {
		return nil, translate(err)
	}
	return m, nil
}

// Update writes the editable fields while the stored stock is still
// expectedStock.
func (r *MedicineRepository) Update(ctx context.Context, m *domain.Medicine, expectedStock int) error {
	n, err := rowsAffected(r.db.ExecContext(ctx, `
		UPDATE medicines
		SET name = $2, manufacturer = $3, price = $4, stock = $5, status = $6, updated_at = $7
		WHERE id = $1 AND stock = $8
	`, m.ID, m.Name, m.Manufacturer, m.Price, m.Stock, m.Status, m.UpdatedAt, expectedStock))
	if err != nil {
		return translate(err)
	}
	if n > 0 {
		return nil
	}

	var exists bool
	if err := r.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM medicines WHERE id = $1)`, m.ID).Scan(&exists); err != nil {
		return translate(err)
	}
	if !exists {
		return domain.ErrMedicineNotFound
	}
	return domain.ErrStockChanged
}

var medicineSortColumns = map[string]string{
	"createdAt": "created_at",
	"price":     "price",
	"stock":     "stock",
	"name":      "name",
}

func (r *MedicineRepository) List(ctx context.Context, f ports.MedicineFilter) ([]*domain.Medicine, int64, error) {
	var w where
	if f.SellerID != "" {
		w.add("seller_id = " + w.arg(f.SellerID))
	}
	if f.Status != "" {
		w.add("status = " + w.arg(string(f.Status)))
	}
	if f.Manufacturer != "" {
		w.search(f.Manufacturer, "manufacturer")
	}
	if f.MinPrice != nil {
		w.add("price >= " + w.arg(*f.MinPrice))
	}
	if f.MaxPrice != nil {
		w.add("price <= " + w.arg(*f.MaxPrice))
	}
	if f.Search != "" {
		w.search(f.Search, "name", "manufacturer")
	}

	var (
		out   []*domain.Medicine
		total int64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		args := append(append([]any{}, w.args...), f.Page.Limit, f.Page.Skip)
		rows, err := r.db.QueryContext(gctx, `SELECT `+medicineColumns+` FROM medicines`+w.String()+
			` ORDER BY `+sortClause(medicineSortColumns, "id", f.Sort.Field, f.Sort.Desc)+
			` LIMIT $`+strconv.Itoa(len(w.args)+1)+` OFFSET $`+strconv.Itoa(len(w.args)+2), args...)
		if err != nil {
			return translate(err)
		}
		defer func() { _ = rows.Close() }()

		for rows.Next() {
			m, err := scanMedicine(rows)
			if err != nil {
				return err
			}
			out = append(out, m)
		}
		return rows.Err()
	})
	g.Go(func() error {
		return translate(r.db.QueryRowContext(gctx, `SELECT COUNT(*) FROM medicines`+w.String(), w.args...).Scan(&total))
	})
	if err := g.Wait(); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func findMedicines(ctx context.Context, q queryer, ids []string) ([]*domain.Medicine, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := q.QueryContext(ctx, `
		SELECT `+medicineColumns+` FROM medicines WHERE id = ANY($1) ORDER BY id
	`, pq.Array(ids))
	if err != nil {
		return nil, translate(err)
	}
	defer func() { _ = rows.Close() }()

	var out []*domain.Medicine
	for rows.Next() {
		m, err := scanMedicine(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanMedicine(row scanner) (*domain.Medicine, error) {
	var m domain.Medicine
	if err := row.Scan(&m.ID, &m.SellerID, &m.Name, &m.Manufacturer, &m.Price, &m.Stock, &m.Status, &m.CreatedAt, &m.UpdatedAt); err != nil {
		return nil, err
	}
	return &m, nil
}
