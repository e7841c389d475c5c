package domain

import "time"

const (
	MinRating        = 1
	MaxRating        = 5
	MaxCommentLength = 500
)

// Review is a customer's rating of a medicine they received in a delivered
// order. A customer holds at most one review per medicine.
type Review struct {
	ID         string           `json:"id"`
	MedicineID string           `json:"medicine_id"`
	CustomerID string           `json:"customer_id"`
	Rating     int              `json:"rating"`
	Comment    string           `json:"comment,omitempty"`
	Customer   *CustomerSummary `json:"customer,omitempty"`
	CreatedAt  time.Time        `json:"created_at"`
	UpdatedAt  time.Time        `json:"updated_at"`
}

// RatingStats aggregates the ratings of every review matching a listing.
type RatingStats struct {
	Total   int64   `json:"total_reviews"`
	Average float64 `json:"average_rating"`
}

// ValidRating reports whether r is within the accepted star range.
func ValidRating(r int) bool {
	return r >= MinRating && r <= MaxRating
}
