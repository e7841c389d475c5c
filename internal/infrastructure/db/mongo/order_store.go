package mongo

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readconcern"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"
	"golang.org/x/sync/errgroup"

	"github.com/medistore/medistore-api/internal/core/domain"
	"github.com/medistore/medistore-api/internal/core/ports"
)

// OrderStore implements ports.OrderStore. Conditional $inc filters guard the
// stock ledger; transactions need a replica set.
type OrderStore struct {
	client    *mongo.Client
	orders    *mongo.Collection
	medicines *mongo.Collection
	users     *mongo.Collection
}

func NewOrderStore(client *mongo.Client, db *mongo.Database) *OrderStore {
	return &OrderStore{
		client:    client,
		orders:    db.Collection(collectionOrders),
		medicines: db.Collection(collectionMedicines),
		users:     db.Collection(collectionUsers),
	}
}

func (s *OrderStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx ports.OrderTx) error) error {
	sess, err := s.client.StartSession()
	if err != nil {
		return fmt.Errorf("start session: %w", translate(err))
	}
	defer sess.EndSession(ctx)

	txOpts := options.Transaction().
		SetReadConcern(readconcern.Snapshot()).
		SetWriteConcern(writeconcern.Majority())

	return mongo.WithSession(ctx, sess, func(sc mongo.SessionContext) error {
		if err := sess.StartTransaction(txOpts); err != nil {
			return translate(err)
		}
		if err := fn(sc, &orderTx{s: s}); err != nil {
			_ = sess.AbortTransaction(context.WithoutCancel(sc))
			return translate(err)
		}
		return translate(sess.CommitTransaction(sc))
	})
}

func (s *OrderStore) FindMedicines(ctx context.Context, ids []string) ([]*domain.Medicine, error) {
	return findMedicines(ctx, s.medicines, ids)
}

func (s *OrderStore) FindOrder(ctx context.Context, id string) (*domain.Order, error) {
	var doc orderDoc
	if err := s.orders.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrOrderNotFound
		}
		return nil, fmt.Errorf("find order: %w", translate(err))
	}
	order := doc.toDomain()
	if err := s.refreshSummaries(ctx, []*domain.Order{order}); err != nil {
		return nil, err
	}
	return order, nil
}

func (s *OrderStore) ListOrders(ctx context.Context, f ports.OrderFilter) ([]*domain.Order, int64, error) {
	filter := orderFilter(f)
	findOpts := options.Find().
		SetSort(sortSpec(f.Sort.Field, f.Sort.Desc)).
		SetSkip(int64(f.Page.Skip)).
		SetLimit(int64(f.Page.Limit)).
		SetProjection(bson.M{"status_history": 0})

	var (
		docs  []orderDoc
		total int64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		cur, err := s.orders.Find(gctx, filter, findOpts)
		if err != nil {
			return fmt.Errorf("list orders: %w", translate(err))
		}
		return cur.All(gctx, &docs)
	})
	g.Go(func() error {
		n, err := s.orders.CountDocuments(gctx, filter)
		if err != nil {
			return fmt.Errorf("count orders: %w", translate(err))
		}
		total = n
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, 0, err
	}

	orders := make([]*domain.Order, 0, len(docs))
	for _, d := range docs {
		orders = append(orders, d.toDomain())
	}
	if err := s.refreshSummaries(ctx, orders); err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

func (s *OrderStore) ListSellerItems(ctx context.Context, f ports.SellerItemFilter) ([]*domain.SellerOrderItem, int64, error) {
	cur, err := s.orders.Aggregate(ctx, sellerPipeline(f))
	if err != nil {
		return nil, 0, fmt.Errorf("list seller items: %w", translate(err))
	}

	var result []struct {
		Data  []sellerItemDoc `bson:"data"`
		Total []struct {
			N int64 `bson:"n"`
		} `bson:"total"`
	}
	if err := cur.All(ctx, &result); err != nil {
		return nil, 0, fmt.Errorf("decode seller items: %w", translate(err))
	}
	if len(result) == 0 {
		return nil, 0, nil
	}

	items := make([]*domain.SellerOrderItem, 0, len(result[0].Data))
	for _, d := range result[0].Data {
		items = append(items, d.toDomain())
	}
	var total int64
	if len(result[0].Total) > 0 {
		total = result[0].Total[0].N
	}
	return items, total, nil
}

// refreshSummaries replaces the embedded medicine snapshots with the current
// catalog projection.
func (s *OrderStore) refreshSummaries(ctx context.Context, orders []*domain.Order) error {
	seen := make(map[string]bool)
	var ids []string
	for _, o := range orders {
		for _, it := range o.Items {
			if !seen[it.MedicineID] {
				seen[it.MedicineID] = true
				ids = append(ids, it.MedicineID)
			}
		}
	}
	meds, err := findMedicines(ctx, s.medicines, ids)
	if err != nil {
		return err
	}
	byID := make(map[string]*domain.Medicine, len(meds))
	for _, m := range meds {
		byID[m.ID] = m
	}
	for _, o := range orders {
		for i := range o.Items {
			if m, ok := byID[o.Items[i].MedicineID]; ok {
				o.Items[i].Medicine = &domain.MedicineSummary{
					ID:           m.ID,
					Name:         m.Name,
					Manufacturer: m.Manufacturer,
					Price:        m.Price,
					Status:       m.Status,
				}
			}
		}
	}
	return nil
}

// orderTx implements ports.OrderTx; every call must receive the session
// context handed out by WithinTx.
type orderTx struct {
	s *OrderStore
}

func (t *orderTx) FindMedicines(ctx context.Context, ids []string) ([]*domain.Medicine, error) {
	return findMedicines(ctx, t.s.medicines, ids)
}

// LockOrder bumps lock_version so a concurrent transaction touching the same
// order fails with a write conflict.
func (t *orderTx) LockOrder(ctx context.Context, id string) (*domain.Order, error) {
	var doc orderDoc
	err := t.s.orders.FindOneAndUpdate(ctx,
		bson.M{"_id": id},
		bson.M{"$inc": bson.M{"lock_version": 1}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lock order: %w", err)
	}
	return doc.toDomain(), nil
}

func (t *orderTx) InsertOrder(ctx context.Context, o *domain.Order) error {
	customer := customerDoc{ID: o.CustomerID}
	var u userDoc
	err := t.s.users.FindOne(ctx, bson.M{"_id": o.CustomerID}).Decode(&u)
	switch {
	case err == nil:
		customer.Name, customer.Email = u.Name, u.Email
	case !errors.Is(err, mongo.ErrNoDocuments):
		return fmt.Errorf("load customer: %w", err)
	}

	if _, err := t.s.orders.InsertOne(ctx, newOrderDoc(o, customer)); err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

func (t *orderTx) ReplaceItems(ctx context.Context, orderID string, items []domain.OrderItem, total decimal.Decimal, at time.Time) error {
	res, err := t.s.orders.UpdateOne(ctx,
		bson.M{"_id": orderID},
		bson.M{"$set": bson.M{
			"items":      newItemDocs(items),
			"total":      toDecimal128(total),
			"updated_at": at,
		}},
	)
	if err != nil {
		return fmt.Errorf("replace items: %w", err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrOrderNotFound
	}
	return nil
}

func (t *orderTx) DecrementStock(ctx context.Context, medicineID string, qty int) error {
	res, err := t.s.medicines.UpdateOne(ctx,
		bson.M{"_id": medicineID, "status": string(domain.MedicineActive), "stock": bson.M{"$gte": qty}},
		bson.M{
			"$inc": bson.M{"stock": -qty},
			"$set": bson.M{"updated_at": time.Now().UTC()},
		},
	)
	if err != nil {
		return fmt.Errorf("decrement stock: %w", err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrInsufficientStock
	}
	return nil
}

func (t *orderTx) IncrementStock(ctx context.Context, medicineID string, qty int, mode domain.RestockMode) error {
	now := time.Now().UTC()
	update := bson.M{
		"$inc": bson.M{"stock": qty},
		"$set": bson.M{"updated_at": now},
	}
	if mode == domain.RestockReactivate {
		update["$set"] = bson.M{"updated_at": now, "status": string(domain.MedicineActive)}
	}

	res, err := t.s.medicines.UpdateOne(ctx, bson.M{"_id": medicineID}, update)
	if err != nil {
		return fmt.Errorf("increment stock: %w", err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrMedicineNotFound
	}
	if mode == domain.RestockReactivate {
		return nil
	}

	_, err = t.s.medicines.UpdateOne(ctx,
		bson.M{"_id": medicineID, "status": string(domain.MedicineOutOfStock), "stock": bson.M{"$gt": 0}},
		bson.M{"$set": bson.M{"status": string(domain.MedicineActive)}},
	)
	if err != nil {
		return fmt.Errorf("reactivate medicine: %w", err)
	}
	return nil
}

func (t *orderTx) MarkOutOfStock(ctx context.Context, medicineIDs []string) error {
	if len(medicineIDs) == 0 {
		return nil
	}
	_, err := t.s.medicines.UpdateMany(ctx,
		bson.M{
			"_id":    bson.M{"$in": medicineIDs},
			"stock":  0,
			"status": bson.M{"$ne": string(domain.MedicineOutOfStock)},
		},
		bson.M{"$set": bson.M{"status": string(domain.MedicineOutOfStock), "updated_at": time.Now().UTC()}},
	)
	if err != nil {
		return fmt.Errorf("mark out of stock: %w", err)
	}
	return nil
}

func (t *orderTx) SetStatus(ctx context.Context, orderID string, from, to domain.OrderStatus, entry domain.StatusHistoryEntry) error {
	res, err := t.s.orders.UpdateOne(ctx,
		bson.M{"_id": orderID, "status": string(from)},
		bson.M{
			"$set":  bson.M{"status": string(to), "updated_at": entry.Timestamp},
			"$push": bson.M{"status_history": newHistoryDoc(entry)},
		},
	)
	if err != nil {
		return fmt.Errorf("set status: %w", err)
	}
	if res.MatchedCount > 0 {
		return nil
	}

	n, err := t.s.orders.CountDocuments(ctx, bson.M{"_id": orderID}, options.Count().SetLimit(1))
	if err != nil {
		return fmt.Errorf("set status: %w", err)
	}
	if n == 0 {
		return domain.ErrOrderNotFound
	}
	return domain.ErrConcurrentUpdate
}

var sortFields = map[string]string{
	"createdAt": "created_at",
	"total":     "total",
	"status":    "status",
}

func sortSpec(field string, desc bool) bson.D {
	return sortBy(sortFields, field, desc)
}

// sortBy resolves field against fields, falling back to createdAt, and breaks
// ties on _id in the same direction.
func sortBy(fields map[string]string, field string, desc bool) bson.D {
	f, ok := fields[field]
	if !ok {
		f = fields["createdAt"]
	}
	dir := 1
	if desc {
		dir = -1
	}
	return bson.D{{Key: f, Value: dir}, {Key: "_id", Value: dir}}
}

// searchRegex is a case-insensitive literal substring match.
func searchRegex(term string) bson.M {
	return bson.M{"$regex": regexp.QuoteMeta(strings.TrimSpace(term)), "$options": "i"}
}

func anyOf(term string, fields ...string) bson.A {
	re := searchRegex(term)
	out := make(bson.A, 0, len(fields))
	for _, f := range fields {
		out = append(out, bson.M{f: re})
	}
	return out
}

func orderFilter(f ports.OrderFilter) bson.M {
	filter := bson.M{}
	if f.CustomerID != "" {
		filter["customer_id"] = f.CustomerID
	}
	if f.Status != "" {
		filter["status"] = string(f.Status)
	}
	total := bson.M{}
	if f.MinTotal != nil {
		total["$gte"] = toDecimal128(*f.MinTotal)
	}
	if f.MaxTotal != nil {
		total["$lte"] = toDecimal128(*f.MaxTotal)
	}
	if len(total) > 0 {
		filter["total"] = total
	}
	if f.Search != "" {
		filter["$or"] = anyOf(f.Search, "_id", "address", "phone", "customer.name", "customer.email")
	}
	return filter
}

// sellerPipeline unwinds order items so each seller line is one row, then
// pages and counts in a single round trip.
func sellerPipeline(f ports.SellerItemFilter) mongo.Pipeline {
	pre := bson.M{}
	if f.Status != "" {
		pre["status"] = string(f.Status)
	}
	if f.SellerID != "" {
		pre["items.seller_id"] = f.SellerID
	}

	post := bson.M{}
	if f.SellerID != "" {
		post["items.seller_id"] = f.SellerID
	}
	if f.Search != "" {
		post["$or"] = anyOf(f.Search, "_id", "items.medicine_name", "address", "phone", "customer.name", "customer.email")
	}

	sort := sortSpec(f.Sort.Field, f.Sort.Desc)
	return mongo.Pipeline{
		{{Key: "$match", Value: pre}},
		{{Key: "$unwind", Value: "$items"}},
		{{Key: "$match", Value: post}},
		{{Key: "$facet", Value: bson.M{
			"data": bson.A{
				bson.M{"$sort": sort},
				bson.M{"$skip": f.Page.Skip},
				bson.M{"$limit": f.Page.Limit},
			},
			"total": bson.A{bson.M{"$count": "n"}},
		}}},
	}
}
