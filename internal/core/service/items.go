package service

import (
	"sort"
	"strings"

	"github.com/medistore/medistore-api/internal/core/domain"
	"github.com/medistore/medistore-api/internal/core/ports"
)

// cartLine is a normalized request line: one per medicine.
type cartLine struct {
	MedicineID string
	Quantity   int
}

// normalizeItems merges duplicate medicine ids by summing their quantities.
// First-seen order is preserved.
func normalizeItems(items []ports.ItemInput) ([]cartLine, error) {
	if len(items) == 0 {
		return nil, domain.ErrEmptyCart
	}

	index := make(map[string]int, len(items))
	lines := make([]cartLine, 0, len(items))
	for _, it := range items {
		id := strings.TrimSpace(it.MedicineID)
		if id == "" {
			return nil, domain.ErrMedicineIDRequired
		}
		if it.Quantity <= 0 {
			return nil, domain.ErrInvalidQuantity
		}
		if i, ok := index[id]; ok {
			lines[i].Quantity += it.Quantity
			continue
		}
		index[id] = len(lines)
		lines = append(lines, cartLine{MedicineID: id, Quantity: it.Quantity})
	}
	return lines, nil
}

// sortedIDs returns the ids of a quantity map in ascending order. Stock rows
// are always written in this order so concurrent transactions lock them
// consistently.
func sortedIDs(qty map[string]int) []string {
	ids := make([]string, 0, len(qty))
	for id := range qty {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func lineQuantities(lines []cartLine) map[string]int {
	q := make(map[string]int, len(lines))
	for _, l := range lines {
		q[l.MedicineID] = l.Quantity
	}
	return q
}

func indexMedicines(meds []*domain.Medicine) map[string]*domain.Medicine {
	byID := make(map[string]*domain.Medicine, len(meds))
	for _, m := range meds {
		byID[m.ID] = m
	}
	return byID
}
