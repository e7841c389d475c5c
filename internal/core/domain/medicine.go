package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// MedicineStatus is the availability half of the stock ledger.
type MedicineStatus string

const (
	MedicineActive     MedicineStatus = "ACTIVE"
	MedicineOutOfStock MedicineStatus = "OUT_OF_STOCK"
	MedicineDisabled   MedicineStatus = "DISABLED"
)

// Valid reports whether s is a known medicine status.
func (s MedicineStatus) Valid() bool {
	switch s {
	case MedicineActive, MedicineOutOfStock, MedicineDisabled:
		return true
	}
	return false
}

// Medicine carries the stock ledger for one catalog item. Stock and Status are
// only ever changed through conditional writes at the storage boundary.
type Medicine struct {
	ID           string          `json:"id"`
	SellerID     string          `json:"seller_id"`
	Name         string          `json:"name"`
	Manufacturer string          `json:"manufacturer,omitempty"`
	Price        decimal.Decimal `json:"price"`
	Stock        int             `json:"stock"`
	Status       MedicineStatus  `json:"status"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// CanFulfil reports whether qty units can be reserved right now. The answer is
// advisory: the authoritative check is the conditional decrement.
func (m *Medicine) CanFulfil(qty int) bool {
	return m.Status == MedicineActive && m.Stock >= qty
}

// SettleStatus returns the status implied by a stock level, given the status
// requested by the caller (empty = keep current). Zero stock always wins.
func SettleStatus(current, requested MedicineStatus, stock int) MedicineStatus {
	if stock == 0 {
		return MedicineOutOfStock
	}
	if requested != "" {
		return requested
	}
	if current == MedicineOutOfStock {
		return MedicineActive
	}
	return current
}

// RestockMode controls what happens to a medicine's status when reserved units
// are handed back to the ledger.
type RestockMode int

const (
	// RestockReactivate forces the medicine back to ACTIVE, including listings
	// that were DISABLED in the meantime.
	RestockReactivate RestockMode = iota
	// RestockPreserveDisabled only flips OUT_OF_STOCK back to ACTIVE.
	RestockPreserveDisabled
)

// MedicineSummary is the medicine projection embedded in order items.
type MedicineSummary struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Manufacturer string          `json:"manufacturer,omitempty"`
	Price        decimal.Decimal `json:"price"`
	Status       MedicineStatus  `json:"status,omitempty"`
}
