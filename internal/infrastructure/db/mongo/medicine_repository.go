package mongo

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"golang.org/x/sync/errgroup"

	"github.com/medistore/medistore-api/internal/core/domain"
	"github.com/medistore/medistore-api/internal/core/ports"
)

// MedicineRepository implements ports.MedicineRepository.
type MedicineRepository struct {
	coll *mongo.Collection
}

func NewMedicineRepository(db *mongo.Database) *MedicineRepository {
	return &MedicineRepository{coll: db.Collection(collectionMedicines)}
}

func (r *MedicineRepository) Create(ctx context.Context, m *domain.Medicine) error {
	if _, err := r.coll.InsertOne(ctx, newMedicineDoc(m)); err != nil {
		return fmt.Errorf("insert medicine: %w", translate(err))
	}
	return nil
}

func (r *MedicineRepository) FindByID(ctx context.Context, id string) (*domain.Medicine, error) {
	var doc medicineDoc
	if err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrMedicineNotFound
		}
		return nil, fmt.Errorf("find medicine: %w", translate(err))
	}
	return doc.toDomain(), nil
}

// Update writes the editable fields while the stored stock is still
// expectedStock.
func (r *MedicineRepository) Update(ctx context.Context, m *domain.Medicine, expectedStock int) error {
	doc := newMedicineDoc(m)
	res, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": m.ID, "stock": expectedStock},
		bson.M{"$set": bson.M{
			"name":         doc.Name,
			"manufacturer": doc.Manufacturer,
			"price":        doc.Price,
			"stock":        doc.Stock,
			"status":       doc.Status,
			"updated_at":   doc.UpdatedAt,
		}},
	)
	if err != nil {
		return fmt.Errorf("update medicine: %w", translate(err))
	}
	if res.MatchedCount > 0 {
		return nil
	}

	n, err := r.coll.CountDocuments(ctx, bson.M{"_id": m.ID}, options.Count().SetLimit(1))
	if err != nil {
		return fmt.Errorf("update medicine: %w", translate(err))
	}
	if n == 0 {
		return domain.ErrMedicineNotFound
	}
	return domain.ErrStockChanged
}

var medicineSortFields = map[string]string{
	"createdAt": "created_at",
	"price":     "price",
	"stock":     "stock",
	"name":      "name",
}

func (r *MedicineRepository) List(ctx context.Context, f ports.MedicineFilter) ([]*domain.Medicine, int64, error) {
	filter := medicineFilter(f)
	findOpts := options.Find().
		SetSort(sortBy(medicineSortFields, f.Sort.Field, f.Sort.Desc)).
		SetSkip(int64(f.Page.Skip)).
		SetLimit(int64(f.Page.Limit))

	var (
		docs  []medicineDoc
		total int64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		cur, err := r.coll.Find(gctx, filter, findOpts)
		if err != nil {
			return fmt.Errorf("list medicines: %w", translate(err))
		}
		return cur.All(gctx, &docs)
	})
	g.Go(func() error {
		n, err := r.coll.CountDocuments(gctx, filter)
		if err != nil {
			return fmt.Errorf("count medicines: %w", translate(err))
		}
		total = n
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, 0, err
	}

	out := make([]*domain.Medicine, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toDomain())
	}
	return out, total, nil
}

func medicineFilter(f ports.MedicineFilter) bson.M {
	filter := bson.M{}
	if f.SellerID != "" {
		filter["seller_id"] = f.SellerID
	}
	if f.Status != "" {
		filter["status"] = string(f.Status)
	}
	if f.Manufacturer != "" {
		filter["manufacturer"] = searchRegex(f.Manufacturer)
	}
	price := bson.M{}
	if f.MinPrice != nil {
		price["$gte"] = toDecimal128(*f.MinPrice)
	}
	if f.MaxPrice != nil {
		price["$lte"] = toDecimal128(*f.MaxPrice)
	}
	if len(price) > 0 {
		filter["price"] = price
	}
	if f.Search != "" {
		filter["$or"] = anyOf(f.Search, "name", "manufacturer")
	}
	return filter
}

func findMedicines(ctx context.Context, coll *mongo.Collection, ids []string) ([]*domain.Medicine, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	cur, err := coll.Find(ctx, bson.M{"_id": bson.M{"$in": ids}}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("find medicines: %w", translate(err))
	}
	var docs []medicineDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode medicines: %w", translate(err))
	}
	out := make([]*domain.Medicine, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toDomain())
	}
	return out, nil
}
