package service

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/medistore/medistore-api/internal/core/domain"
	"github.com/medistore/medistore-api/internal/core/ports"
	"github.com/medistore/medistore-api/pkg/pagination"
)

var reviewSortFields = []string{"createdAt", "rating"}

// ReviewService lets customers rate medicines they actually received.
type ReviewService struct {
	reviews   ports.ReviewRepository
	medicines ports.MedicineRepository
	logger    zerolog.Logger
	now       func() time.Time
}

func NewReviewService(reviews ports.ReviewRepository, medicines ports.MedicineRepository, logger zerolog.Logger) *ReviewService {
	return &ReviewService{
		reviews:   reviews,
		medicines: medicines,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Create stores a review once the caller has a delivered order containing the
// medicine. A second review of the same medicine is a conflict.
func (s *ReviewService) Create(ctx context.Context, actor domain.Identity, in ports.CreateReviewInput) (*domain.Review, error) {
	if err := requireRole(actor, "only customers can review", domain.RoleCustomer, domain.RoleAdmin); err != nil {
		return nil, err
	}
	medicineID := strings.TrimSpace(in.MedicineID)
	if medicineID == "" {
		return nil, domain.ErrMedicineIDRequired
	}
	if !domain.ValidRating(in.Rating) {
		return nil, domain.ErrInvalidRating
	}
	comment, err := reviewComment(in.Comment)
	if err != nil {
		return nil, err
	}

	if _, err := s.medicines.FindByID(ctx, medicineID); err != nil {
		return nil, err
	}
	ok, err := s.reviews.HasDeliveredPurchase(ctx, actor.UserID, medicineID)
	if err != nil {
		s.logger.Error().Err(err).Str("medicine_id", medicineID).Msg("purchase lookup failed")
		return nil, err
	}
	if !ok {
		return nil, domain.ErrPurchaseRequired
	}

	now := s.now()
	r := &domain.Review{
		ID:         uuid.NewString(),
		MedicineID: medicineID,
		CustomerID: actor.UserID,
		Rating:     in.Rating,
		Comment:    comment,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.reviews.Create(ctx, r); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("review_id", r.ID).
		Str("medicine_id", r.MedicineID).
		Int("rating", r.Rating).
		Msg("review created")
	return r, nil
}

// List is the public listing. A medicine filter must name an existing
// medicine.
func (s *ReviewService) List(ctx context.Context, in ports.ListReviewsInput) (*ports.ReviewPage, error) {
	filter := reviewFilter(in)
	filter.CustomerID = strings.TrimSpace(in.CustomerID)
	if filter.MedicineID != "" {
		if _, err := s.medicines.FindByID(ctx, filter.MedicineID); err != nil {
			return nil, err
		}
	}
	return s.list(ctx, filter)
}

// ListMine lists the caller's own reviews.
func (s *ReviewService) ListMine(ctx context.Context, actor domain.Identity, in ports.ListReviewsInput) (*ports.ReviewPage, error) {
	if err := requireIdentity(actor); err != nil {
		return nil, err
	}
	filter := reviewFilter(in)
	filter.CustomerID = actor.UserID
	return s.list(ctx, filter)
}

// Update changes rating and/or comment. Only the author or an admin may edit.
func (s *ReviewService) Update(ctx context.Context, actor domain.Identity, id string, in ports.UpdateReviewInput) (*domain.Review, error) {
	if err := requireRole(actor, "only customers can edit reviews", domain.RoleCustomer, domain.RoleAdmin); err != nil {
		return nil, err
	}
	if in.Rating == nil && in.Comment == nil {
		return nil, domain.ErrEmptyReviewUpdate
	}

	r, err := s.reviews.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := ensureReviewAuthor(actor, r, "you can update only your review"); err != nil {
		return nil, err
	}

	if in.Rating != nil {
		if !domain.ValidRating(*in.Rating) {
			return nil, domain.ErrInvalidRating
		}
		r.Rating = *in.Rating
	}
	if in.Comment != nil {
		if r.Comment, err = reviewComment(in.Comment); err != nil {
			return nil, err
		}
	}
	r.UpdatedAt = s.now()

	if err := s.reviews.Update(ctx, r); err != nil {
		return nil, err
	}
	s.logger.Info().Str("review_id", r.ID).Int("rating", r.Rating).Msg("review updated")
	return r, nil
}

// Delete removes a review. Only the author or an admin may delete.
func (s *ReviewService) Delete(ctx context.Context, actor domain.Identity, id string) error {
	if err := requireRole(actor, "only customers can delete reviews", domain.RoleCustomer, domain.RoleAdmin); err != nil {
		return err
	}
	r, err := s.reviews.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if err := ensureReviewAuthor(actor, r, "you can delete only your review"); err != nil {
		return err
	}
	if err := s.reviews.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info().Str("review_id", id).Str("actor_id", actor.UserID).Msg("review deleted")
	return nil
}

func (s *ReviewService) list(ctx context.Context, filter ports.ReviewFilter) (*ports.ReviewPage, error) {
	items, stats, err := s.reviews.List(ctx, filter)
	if err != nil {
		s.logger.Error().Err(err).Str("medicine_id", filter.MedicineID).Msg("failed to list reviews")
		return nil, err
	}
	if items == nil {
		items = []*domain.Review{}
	}
	return &ports.ReviewPage{
		Items:  items,
		Meta:   pagination.BuildMeta(filter.Page, stats.Total),
		Rating: stats,
	}, nil
}

func reviewFilter(in ports.ListReviewsInput) ports.ReviewFilter {
	return ports.ReviewFilter{
		MedicineID: strings.TrimSpace(in.MedicineID),
		Sort:       pagination.NewSort(in.SortBy, in.SortOrder, reviewSortFields, defaultSortField),
		Page:       pagination.NewPage(in.Page, in.Limit, pagination.DefaultMaxLimit),
	}
}

func reviewComment(raw *string) (string, error) {
	if raw == nil {
		return "", nil
	}
	c := strings.TrimSpace(*raw)
	if utf8.RuneCountInString(c) > domain.MaxCommentLength {
		return "", domain.ErrCommentTooLong
	}
	return c, nil
}

func ensureReviewAuthor(actor domain.Identity, r *domain.Review, reason string) error {
	if actor.Role == domain.RoleAdmin || r.CustomerID == actor.UserID {
		return nil
	}
	return fmt.Errorf("%w: %s", domain.ErrForbidden, reason)
}
