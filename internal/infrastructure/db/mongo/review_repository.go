package mongo

import (
	"context"
	"errors"
	"fmt"
	"math"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"golang.org/x/sync/errgroup"

	"github.com/medistore/medistore-api/internal/core/domain"
	"github.com/medistore/medistore-api/internal/core/ports"
)

// ReviewRepository implements ports.ReviewRepository. The author's name and
// email are copied onto the review when it is written.
type ReviewRepository struct {
	reviews *mongo.Collection
	orders  *mongo.Collection
	users   *mongo.Collection
}

func NewReviewRepository(db *mongo.Database) *ReviewRepository {
	return &ReviewRepository{
		reviews: db.Collection(collectionReviews),
		orders:  db.Collection(collectionOrders),
		users:   db.Collection(collectionUsers),
	}
}

func (r *ReviewRepository) Create(ctx context.Context, rv *domain.Review) error {
	customer := customerDoc{ID: rv.CustomerID}
	var u userDoc
	err := r.users.FindOne(ctx, bson.M{"_id": rv.CustomerID}).Decode(&u)
	switch {
	case err == nil:
		customer.Name, customer.Email = u.Name, u.Email
	case !errors.Is(err, mongo.ErrNoDocuments):
		return fmt.Errorf("load customer: %w", translate(err))
	}

	if _, err := r.reviews.InsertOne(ctx, newReviewDoc(rv, customer)); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domain.ErrDuplicateReview
		}
		return fmt.Errorf("insert review: %w", translate(err))
	}
	return nil
}

func (r *ReviewRepository) FindByID(ctx context.Context, id string) (*domain.Review, error) {
	var doc reviewDoc
	if err := r.reviews.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrReviewNotFound
		}
		return nil, fmt.Errorf("find review: %w", translate(err))
	}
	return doc.toDomain(), nil
}

func (r *ReviewRepository) Update(ctx context.Context, rv *domain.Review) error {
	res, err := r.reviews.UpdateOne(ctx, bson.M{"_id": rv.ID}, bson.M{"$set": bson.M{
		"rating":     rv.Rating,
		"comment":    rv.Comment,
		"updated_at": rv.UpdatedAt,
	}})
	if err != nil {
		return fmt.Errorf("update review: %w", translate(err))
	}
	if res.MatchedCount == 0 {
		return domain.ErrReviewNotFound
	}
	return nil
}

func (r *ReviewRepository) Delete(ctx context.Context, id string) error {
	res, err := r.reviews.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("delete review: %w", translate(err))
	}
	if res.DeletedCount == 0 {
		return domain.ErrReviewNotFound
	}
	return nil
}

var reviewSortFields = map[string]string{
	"createdAt": "created_at",
	"rating":    "rating",
}

func (r *ReviewRepository) List(ctx context.Context, f ports.ReviewFilter) ([]*domain.Review, domain.RatingStats, error) {
	filter := reviewFilter(f)
	findOpts := options.Find().
		SetSort(sortBy(reviewSortFields, f.Sort.Field, f.Sort.Desc)).
		SetSkip(int64(f.Page.Skip)).
		SetLimit(int64(f.Page.Limit))

	var (
		docs  []reviewDoc
		stats domain.RatingStats
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		cur, err := r.reviews.Find(gctx, filter, findOpts)
		if err != nil {
			return fmt.Errorf("list reviews: %w", translate(err))
		}
		return cur.All(gctx, &docs)
	})
	g.Go(func() error {
		cur, err := r.reviews.Aggregate(gctx, mongo.Pipeline{
			{{Key: "$match", Value: filter}},
			{{Key: "$group", Value: bson.M{
				"_id": nil,
				"n":   bson.M{"$sum": 1},
				"avg": bson.M{"$avg": "$rating"},
			}}},
		})
		if err != nil {
			return fmt.Errorf("review stats: %w", translate(err))
		}
		var out []struct {
			N   int64   `bson:"n"`
			Avg float64 `bson:"avg"`
		}
		if err := cur.All(gctx, &out); err != nil {
			return fmt.Errorf("decode review stats: %w", translate(err))
		}
		if len(out) > 0 {
			stats.Total = out[0].N
			stats.Average = math.Round(out[0].Avg*100) / 100
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, domain.RatingStats{}, err
	}

	items := make([]*domain.Review, 0, len(docs))
	for _, d := range docs {
		items = append(items, d.toDomain())
	}
	return items, stats, nil
}

func (r *ReviewRepository) HasDeliveredPurchase(ctx context.Context, customerID, medicineID string) (bool, error) {
	n, err := r.orders.CountDocuments(ctx, bson.M{
		"customer_id":       customerID,
		"status":            string(domain.StatusDelivered),
		"items.medicine_id": medicineID,
	}, options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("purchase lookup: %w", translate(err))
	}
	return n > 0, nil
}

func reviewFilter(f ports.ReviewFilter) bson.M {
	filter := bson.M{}
	if f.MedicineID != "" {
		filter["medicine_id"] = f.MedicineID
	}
	if f.CustomerID != "" {
		filter["customer_id"] = f.CustomerID
	}
	return filter
}
