package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/medistore/medistore-api/internal/core/domain"
	"github.com/medistore/medistore-api/internal/core/ports"
)

// OrderStore implements ports.OrderStore. Every stock write goes through a
// conditional UPDATE, so the row lock taken by the first writer serializes
// concurrent reservations of the same medicine.
type OrderStore struct {
	db *sql.DB
}

func NewOrderStore(db *sql.DB) *OrderStore {
	return &OrderStore{db: db}
}

func (s *OrderStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx ports.OrderTx) error) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return translate(err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(ctx, &orderTx{q: tx}); err != nil {
		return translate(err)
	}
	return translate(tx.Commit())
}

func (s *OrderStore) FindMedicines(ctx context.Context, ids []string) ([]*domain.Medicine, error) {
	return findMedicines(ctx, s.db, ids)
}

func (s *OrderStore) FindOrder(ctx context.Context, id string) (*domain.Order, error) {
	order, err := scanOrder(s.db.QueryRowContext(ctx, `
		SELECT `+orderColumns+`
		FROM orders o LEFT JOIN users u ON u.id = o.customer_id
		WHERE o.id = $1
	`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrOrderNotFound
	}
	if err != nil {
		return nil, translate(err)
	}

	if err := attachItems(ctx, s.db, []*domain.Order{order}); err != nil {
		return nil, err
	}
	if order.StatusHistory, err = loadHistory(ctx, s.db, order.ID); err != nil {
		return nil, err
	}
	return order, nil
}

var orderSortColumns = map[string]string{
	"createdAt": "o.created_at",
	"total":     "o.total",
	"status":    "o.status",
}

func orderBy(field string, desc bool) string {
	return sortClause(orderSortColumns, "o.id", field, desc)
}

// sortClause resolves field against columns, falling back to createdAt, and
// breaks ties on idColumn in the same direction.
func sortClause(columns map[string]string, idColumn, field string, desc bool) string {
	col, ok := columns[field]
	if !ok {
		col = columns["createdAt"]
	}
	dir := "ASC"
	if desc {
		dir = "DESC"
	}
	return col + " " + dir + ", " + idColumn + " " + dir
}

func (s *OrderStore) ListOrders(ctx context.Context, f ports.OrderFilter) ([]*domain.Order, int64, error) {
	var w where
	if f.CustomerID != "" {
		w.add("o.customer_id = " + w.arg(f.CustomerID))
	}
	if f.Status != "" {
		w.add("o.status = " + w.arg(string(f.Status)))
	}
	if f.MinTotal != nil {
		w.add("o.total >= " + w.arg(*f.MinTotal))
	}
	if f.MaxTotal != nil {
		w.add("o.total <= " + w.arg(*f.MaxTotal))
	}
	if f.Search != "" {
		w.search(f.Search, "o.id", "o.address", "o.phone", "u.name", "u.email")
	}

	from := ` FROM orders o LEFT JOIN users u ON u.id = o.customer_id` + w.String()

	var (
		orders []*domain.Order
		total  int64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		args := append(append([]any{}, w.args...), f.Page.Limit, f.Page.Skip)
		rows, err := s.db.QueryContext(gctx, `SELECT `+orderColumns+from+
			` ORDER BY `+orderBy(f.Sort.Field, f.Sort.Desc)+
			` LIMIT $`+strconv.Itoa(len(w.args)+1)+` OFFSET $`+strconv.Itoa(len(w.args)+2), args...)
		if err != nil {
			return translate(err)
		}
		defer func() { _ = rows.Close() }()

		for rows.Next() {
			o, err := scanOrder(rows)
			if err != nil {
				return err
			}
			orders = append(orders, o)
		}
		return rows.Err()
	})
	g.Go(func() error {
		return translate(s.db.QueryRowContext(gctx, `SELECT COUNT(*)`+from, w.args...).Scan(&total))
	})
	if err := g.Wait(); err != nil {
		return nil, 0, err
	}

	if err := attachItems(ctx, s.db, orders); err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

func (s *OrderStore) ListSellerItems(ctx context.Context, f ports.SellerItemFilter) ([]*domain.SellerOrderItem, int64, error) {
	var w where
	if f.SellerID != "" {
		w.add("oi.seller_id = " + w.arg(f.SellerID))
	}
	if f.Status != "" {
		w.add("o.status = " + w.arg(string(f.Status)))
	}
	if f.Search != "" {
		w.search(f.Search, "o.id", "m.name", "o.address", "o.phone", "u.name", "u.email")
	}

	from := `
		FROM order_items oi
		JOIN orders o ON o.id = oi.order_id
		JOIN medicines m ON m.id = oi.medicine_id
		LEFT JOIN users u ON u.id = o.customer_id` + w.String()

	var (
		items []*domain.SellerOrderItem
		total int64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		args := append(append([]any{}, w.args...), f.Page.Limit, f.Page.Skip)
		rows, err := s.db.QueryContext(gctx, `
			SELECT `+itemColumns+`,
			       o.id, o.status, o.total, o.address, o.phone, o.created_at,
			       o.customer_id, COALESCE(u.name, ''), COALESCE(u.email, '')`+from+
			` ORDER BY `+orderBy(f.Sort.Field, f.Sort.Desc)+`, oi.position`+
			` LIMIT $`+strconv.Itoa(len(w.args)+1)+` OFFSET $`+strconv.Itoa(len(w.args)+2), args...)
		if err != nil {
			return translate(err)
		}
		defer func() { _ = rows.Close() }()

		for rows.Next() {
			var (
				it       domain.SellerOrderItem
				med      domain.MedicineSummary
				customer domain.CustomerSummary
			)
			if err := rows.Scan(
				&it.ID, &it.OrderID, &it.MedicineID, &it.SellerID, &it.Quantity, &it.Price,
				&med.Name, &med.Manufacturer, &med.Price, &med.Status,
				&it.Order.ID, &it.Order.Status, &it.Order.Total, &it.Order.Address, &it.Order.Phone, &it.Order.CreatedAt,
				&customer.ID, &customer.Name, &customer.Email,
			); err != nil {
				return err
			}
			med.ID = it.MedicineID
			it.Medicine = &med
			it.Order.Customer = &customer
			items = append(items, &it)
		}
		return rows.Err()
	})
	g.Go(func() error {
		return translate(s.db.QueryRowContext(gctx, `SELECT COUNT(*)`+from, w.args...).Scan(&total))
	})
	if err := g.Wait(); err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// orderTx implements ports.OrderTx on a *sql.Tx.
type orderTx struct {
	q queryer
}

func (t *orderTx) FindMedicines(ctx context.Context, ids []string) ([]*domain.Medicine, error) {
	return findMedicines(ctx, t.q, ids)
}

func (t *orderTx) LockOrder(ctx context.Context, id string) (*domain.Order, error) {
	order, err := scanOrder(t.q.QueryRowContext(ctx, `
		SELECT `+orderColumns+`
		FROM orders o LEFT JOIN users u ON u.id = o.customer_id
		WHERE o.id = $1
		FOR UPDATE OF o
	`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrOrderNotFound
	}
	if err != nil {
		return nil, translate(err)
	}
	if err := attachItems(ctx, t.q, []*domain.Order{order}); err != nil {
		return nil, err
	}
	return order, nil
}

func (t *orderTx) InsertOrder(ctx context.Context, o *domain.Order) error {
	if _, err := t.q.ExecContext(ctx, `
		INSERT INTO orders (id, customer_id, address, phone, total, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, o.ID, o.CustomerID, o.Address, o.Phone, o.Total, o.Status, o.CreatedAt, o.UpdatedAt); err != nil {
		return err
	}
	if err := t.insertItems(ctx, o.ID, o.Items); err != nil {
		return err
	}
	for _, h := range o.StatusHistory {
		if err := t.insertHistory(ctx, o.ID, h); err != nil {
			return err
		}
	}
	return nil
}

func (t *orderTx) ReplaceItems(ctx context.Context, orderID string, items []domain.OrderItem, total decimal.Decimal, at time.Time) error {
	if _, err := t.q.ExecContext(ctx, `DELETE FROM order_items WHERE order_id = $1`, orderID); err != nil {
		return err
	}
	if err := t.insertItems(ctx, orderID, items); err != nil {
		return err
	}
	n, err := rowsAffected(t.q.ExecContext(ctx, `
		UPDATE orders SET total = $2, updated_at = $3 WHERE id = $1
	`, orderID, total, at))
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrOrderNotFound
	}
	return nil
}

func (t *orderTx) DecrementStock(ctx context.Context, medicineID string, qty int) error {
	n, err := rowsAffected(t.q.ExecContext(ctx, `
		UPDATE medicines
		SET stock = stock - $2, updated_at = NOW()
		WHERE id = $1 AND status = 'ACTIVE' AND stock >= $2
	`, medicineID, qty))
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrInsufficientStock
	}
	return nil
}

func (t *orderTx) IncrementStock(ctx context.Context, medicineID string, qty int, mode domain.RestockMode) error {
	n, err := rowsAffected(t.q.ExecContext(ctx, `
		UPDATE medicines
		SET stock = stock + $2,
		    status = CASE WHEN $3::boolean OR status = 'OUT_OF_STOCK' THEN 'ACTIVE' ELSE status END,
		    updated_at = NOW()
		WHERE id = $1
	`, medicineID, qty, mode == domain.RestockReactivate))
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrMedicineNotFound
	}
	return nil
}

func (t *orderTx) MarkOutOfStock(ctx context.Context, medicineIDs []string) error {
	if len(medicineIDs) == 0 {
		return nil
	}
	_, err := t.q.ExecContext(ctx, `
		UPDATE medicines
		SET status = 'OUT_OF_STOCK', updated_at = NOW()
		WHERE id = ANY($1) AND stock = 0 AND status <> 'OUT_OF_STOCK'
	`, pq.Array(medicineIDs))
	return err
}

func (t *orderTx) SetStatus(ctx context.Context, orderID string, from, to domain.OrderStatus, entry domain.StatusHistoryEntry) error {
	n, err := rowsAffected(t.q.ExecContext(ctx, `
		UPDATE orders SET status = $3, updated_at = $4 WHERE id = $1 AND status = $2
	`, orderID, from, to, entry.Timestamp))
	if err != nil {
		return err
	}
	if n == 0 {
		var exists bool
		if err := t.q.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM orders WHERE id = $1)`, orderID).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return domain.ErrOrderNotFound
		}
		return domain.ErrConcurrentUpdate
	}
	return t.insertHistory(ctx, orderID, entry)
}

func (t *orderTx) insertItems(ctx context.Context, orderID string, items []domain.OrderItem) error {
	for i, it := range items {
		if _, err := t.q.ExecContext(ctx, `
			INSERT INTO order_items (id, order_id, medicine_id, seller_id, position, quantity, price)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, it.ID, orderID, it.MedicineID, it.SellerID, i, it.Quantity, it.Price); err != nil {
			return err
		}
	}
	return nil
}

func (t *orderTx) insertHistory(ctx context.Context, orderID string, h domain.StatusHistoryEntry) error {
	_, err := t.q.ExecContext(ctx, `
		INSERT INTO order_status_history (order_id, status, actor_role, created_at)
		VALUES ($1, $2, $3, $4)
	`, orderID, h.Status, h.ActorRole, h.Timestamp)
	return err
}

const orderColumns = `o.id, o.customer_id, o.address, o.phone, o.total, o.status, o.created_at, o.updated_at,
	COALESCE(u.name, ''), COALESCE(u.email, '')`

func scanOrder(row scanner) (*domain.Order, error) {
	var (
		o        domain.Order
		customer domain.CustomerSummary
	)
	if err := row.Scan(&o.ID, &o.CustomerID, &o.Address, &o.Phone, &o.Total, &o.Status, &o.CreatedAt, &o.UpdatedAt,
		&customer.Name, &customer.Email); err != nil {
		return nil, err
	}
	customer.ID = o.CustomerID
	o.Customer = &customer
	o.Items = []domain.OrderItem{}
	return &o, nil
}

const itemColumns = `oi.id, oi.order_id, oi.medicine_id, oi.seller_id, oi.quantity, oi.price,
	m.name, m.manufacturer, m.price, m.status`

// attachItems loads the items of every order in one query.
func attachItems(ctx context.Context, q queryer, orders []*domain.Order) error {
	if len(orders) == 0 {
		return nil
	}
	byID := make(map[string]*domain.Order, len(orders))
	ids := make([]string, 0, len(orders))
	for _, o := range orders {
		byID[o.ID] = o
		ids = append(ids, o.ID)
	}

	rows, err := q.QueryContext(ctx, `
		SELECT `+itemColumns+`
		FROM order_items oi JOIN medicines m ON m.id = oi.medicine_id
		WHERE oi.order_id = ANY($1)
		ORDER BY oi.order_id, oi.position
	`, pq.Array(ids))
	if err != nil {
		return translate(err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var (
			it  domain.OrderItem
			med domain.MedicineSummary
		)
		if err := rows.Scan(&it.ID, &it.OrderID, &it.MedicineID, &it.SellerID, &it.Quantity, &it.Price,
			&med.Name, &med.Manufacturer, &med.Price, &med.Status); err != nil {
			return err
		}
		med.ID = it.MedicineID
		it.Medicine = &med
		if o := byID[it.OrderID]; o != nil {
			o.Items = append(o.Items, it)
		}
	}
	return rows.Err()
}

func loadHistory(ctx context.Context, q queryer, orderID string) ([]domain.StatusHistoryEntry, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT status, actor_role, created_at
		FROM order_status_history
		WHERE order_id = $1
		ORDER BY id
	`, orderID)
	if err != nil {
		return nil, translate(err)
	}
	defer func() { _ = rows.Close() }()

	var out []domain.StatusHistoryEntry
	for rows.Next() {
		var h domain.StatusHistoryEntry
		if err := rows.Scan(&h.Status, &h.ActorRole, &h.Timestamp); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

// where accumulates AND-ed predicates with positional arguments.
type where struct {
	clauses []string
	args    []any
}

// arg registers v and returns its placeholder.
func (w *where) arg(v any) string {
	w.args = append(w.args, v)
	return "$" + strconv.Itoa(len(w.args))
}

func (w *where) add(clause string) {
	w.clauses = append(w.clauses, clause)
}

// search adds a case-insensitive substring match over any of columns.
func (w *where) search(term string, columns ...string) {
	p := w.arg(likePattern(term))
	parts := make([]string, len(columns))
	for i, c := range columns {
		parts[i] = fmt.Sprintf("%s ILIKE %s", c, p)
	}
	w.add("(" + strings.Join(parts, " OR ") + ")")
}

func (w *where) String() string {
	if len(w.clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.clauses, " AND ")
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// likePattern wraps term for a substring match with LIKE metacharacters
// escaped.
func likePattern(term string) string {
	return "%" + likeEscaper.Replace(strings.TrimSpace(term)) + "%"
}
