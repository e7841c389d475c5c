package mongo

import (
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/medistore/medistore-api/internal/core/domain"
)

type userDoc struct {
	ID           string    `bson:"_id"`
	Name         string    `bson:"name"`
	Email        string    `bson:"email"`
	PasswordHash string    `bson:"password_hash"`
	Role         string    `bson:"role"`
	CreatedAt    time.Time `bson:"created_at"`
	UpdatedAt    time.Time `bson:"updated_at"`
}

func (d userDoc) toDomain() *domain.User {
	return &domain.User{
		ID:           d.ID,
		Name:         d.Name,
		Email:        d.Email,
		PasswordHash: d.PasswordHash,
		Role:         domain.Role(d.Role),
		CreatedAt:    d.CreatedAt.UTC(),
		UpdatedAt:    d.UpdatedAt.UTC(),
	}
}

type medicineDoc struct {
	ID           string               `bson:"_id"`
	SellerID     string               `bson:"seller_id"`
	Name         string               `bson:"name"`
	Manufacturer string               `bson:"manufacturer"`
	Price        primitive.Decimal128 `bson:"price"`
	Stock        int                  `bson:"stock"`
	Status       string               `bson:"status"`
	CreatedAt    time.Time            `bson:"created_at"`
	UpdatedAt    time.Time            `bson:"updated_at"`
}

func newMedicineDoc(m *domain.Medicine) medicineDoc {
	return medicineDoc{
		ID:           m.ID,
		SellerID:     m.SellerID,
		Name:         m.Name,
		Manufacturer: m.Manufacturer,
		Price:        toDecimal128(m.Price),
		Stock:        m.Stock,
		Status:       string(m.Status),
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

func (d medicineDoc) toDomain() *domain.Medicine {
	return &domain.Medicine{
		ID:           d.ID,
		SellerID:     d.SellerID,
		Name:         d.Name,
		Manufacturer: d.Manufacturer,
		Price:        fromDecimal128(d.Price),
		Stock:        d.Stock,
		Status:       domain.MedicineStatus(d.Status),
		CreatedAt:    d.CreatedAt.UTC(),
		UpdatedAt:    d.UpdatedAt.UTC(),
	}
}

type reviewDoc struct {
	ID         string      `bson:"_id"`
	MedicineID string      `bson:"medicine_id"`
	CustomerID string      `bson:"customer_id"`
	Customer   customerDoc `bson:"customer"`
	Rating     int         `bson:"rating"`
	Comment    string      `bson:"comment"`
	CreatedAt  time.Time   `bson:"created_at"`
	UpdatedAt  time.Time   `bson:"updated_at"`
}

func newReviewDoc(r *domain.Review, customer customerDoc) reviewDoc {
	return reviewDoc{
		ID:         r.ID,
		MedicineID: r.MedicineID,
		CustomerID: r.CustomerID,
		Customer:   customer,
		Rating:     r.Rating,
		Comment:    r.Comment,
		CreatedAt:  r.CreatedAt,
		UpdatedAt:  r.UpdatedAt,
	}
}

func (d reviewDoc) toDomain() *domain.Review {
	return &domain.Review{
		ID:         d.ID,
		MedicineID: d.MedicineID,
		CustomerID: d.CustomerID,
		Customer:   &domain.CustomerSummary{ID: d.CustomerID, Name: d.Customer.Name, Email: d.Customer.Email},
		Rating:     d.Rating,
		Comment:    d.Comment,
		CreatedAt:  d.CreatedAt.UTC(),
		UpdatedAt:  d.UpdatedAt.UTC(),
	}
}

type customerDoc struct {
	ID    string `bson:"id"`
	Name  string `bson:"name"`
	Email string `bson:"email"`
}

type itemDoc struct {
	ID           string               `bson:"id"`
	MedicineID   string               `bson:"medicine_id"`
	SellerID     string               `bson:"seller_id"`
	Quantity     int                  `bson:"quantity"`
	Price        primitive.Decimal128 `bson:"price"`
	MedicineName string               `bson:"medicine_name"`
}

type historyDoc struct {
	Status    string    `bson:"status"`
	ActorRole string    `bson:"actor_role"`
	Timestamp time.Time `bson:"timestamp"`
}

type orderDoc struct {
	ID            string               `bson:"_id"`
	CustomerID    string               `bson:"customer_id"`
	Customer      customerDoc          `bson:"customer"`
	Address       string               `bson:"address"`
	Phone         string               `bson:"phone"`
	Total         primitive.Decimal128 `bson:"total"`
	Status        string               `bson:"status"`
	Items         []itemDoc            `bson:"items"`
	StatusHistory []historyDoc         `bson:"status_history"`
	// LockVersion is bumped by LockOrder so concurrent transactions on the
	// same order conflict.
	LockVersion int64     `bson:"lock_version"`
	CreatedAt   time.Time `bson:"created_at"`
	UpdatedAt   time.Time `bson:"updated_at"`
}

func newOrderDoc(o *domain.Order, customer customerDoc) orderDoc {
	history := make([]historyDoc, 0, len(o.StatusHistory))
	for _, h := range o.StatusHistory {
		history = append(history, newHistoryDoc(h))
	}
	return orderDoc{
		ID:            o.ID,
		CustomerID:    o.CustomerID,
		Customer:      customer,
		Address:       o.Address,
		Phone:         o.Phone,
		Total:         toDecimal128(o.Total),
		Status:        string(o.Status),
		Items:         newItemDocs(o.Items),
		StatusHistory: history,
		CreatedAt:     o.CreatedAt,
		UpdatedAt:     o.UpdatedAt,
	}
}

func newItemDocs(items []domain.OrderItem) []itemDoc {
	out := make([]itemDoc, 0, len(items))
	for _, it := range items {
		name := ""
		if it.Medicine != nil {
			name = it.Medicine.Name
		}
		out = append(out, itemDoc{
			ID:           it.ID,
			MedicineID:   it.MedicineID,
			SellerID:     it.SellerID,
			Quantity:     it.Quantity,
			Price:        toDecimal128(it.Price),
			MedicineName: name,
		})
	}
	return out
}

func newHistoryDoc(h domain.StatusHistoryEntry) historyDoc {
	return historyDoc{Status: string(h.Status), ActorRole: string(h.ActorRole), Timestamp: h.Timestamp}
}

func (d orderDoc) toDomain() *domain.Order {
	o := &domain.Order{
		ID:         d.ID,
		CustomerID: d.CustomerID,
		Customer:   &domain.CustomerSummary{ID: d.CustomerID, Name: d.Customer.Name, Email: d.Customer.Email},
		Address:    d.Address,
		Phone:      d.Phone,
		Total:      fromDecimal128(d.Total),
		Status:     domain.OrderStatus(d.Status),
		Items:      make([]domain.OrderItem, 0, len(d.Items)),
		CreatedAt:  d.CreatedAt.UTC(),
		UpdatedAt:  d.UpdatedAt.UTC(),
	}
	for _, it := range d.Items {
		o.Items = append(o.Items, it.toDomain(d.ID))
	}
	for _, h := range d.StatusHistory {
		o.StatusHistory = append(o.StatusHistory, domain.StatusHistoryEntry{
			Status:    domain.OrderStatus(h.Status),
			ActorRole: domain.Role(h.ActorRole),
			Timestamp: h.Timestamp.UTC(),
		})
	}
	return o
}

func (d itemDoc) toDomain(orderID string) domain.OrderItem {
	return domain.OrderItem{
		ID:         d.ID,
		OrderID:    orderID,
		MedicineID: d.MedicineID,
		SellerID:   d.SellerID,
		Quantity:   d.Quantity,
		Price:      fromDecimal128(d.Price),
		Medicine:   &domain.MedicineSummary{ID: d.MedicineID, Name: d.MedicineName},
	}
}

// sellerItemDoc is one row of the unwound seller listing.
type sellerItemDoc struct {
	ID        string               `bson:"_id"`
	Customer  customerDoc          `bson:"customer"`
	Address   string               `bson:"address"`
	Phone     string               `bson:"phone"`
	Total     primitive.Decimal128 `bson:"total"`
	Status    string               `bson:"status"`
	Item      itemDoc              `bson:"items"`
	CreatedAt time.Time            `bson:"created_at"`
}

func (d sellerItemDoc) toDomain() *domain.SellerOrderItem {
	return &domain.SellerOrderItem{
		OrderItem: d.Item.toDomain(d.ID),
		Order: domain.SellerOrderHeader{
			ID:        d.ID,
			Status:    domain.OrderStatus(d.Status),
			Total:     fromDecimal128(d.Total),
			Address:   d.Address,
			Phone:     d.Phone,
			Customer:  &domain.CustomerSummary{ID: d.Customer.ID, Name: d.Customer.Name, Email: d.Customer.Email},
			CreatedAt: d.CreatedAt.UTC(),
		},
	}
}

func toDecimal128(d decimal.Decimal) primitive.Decimal128 {
	v, err := primitive.ParseDecimal128(d.String())
	if err != nil {
		return primitive.NewDecimal128(0, 0)
	}
	return v
}

func fromDecimal128(v primitive.Decimal128) decimal.Decimal {
	d, err := decimal.NewFromString(v.String())
	if err != nil {
		return decimal.Zero
	}
	return d
}
