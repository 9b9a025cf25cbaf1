package service

import "github.com/iliyamo/venue-slot-booking/internal/model"

// Tax returns the tax on subtotal for a rate in basis points (1800 = 18%),
// rounded half up to the currency's minor unit.
func Tax(subtotal, basisPoints int64) int64 {
	if basisPoints <= 0 || subtotal <= 0 {
		return 0
	}
	return (subtotal*basisPoints + 5000) / 10000
}

// TotalAmount is the authoritative booking amount: the sum of the slot
// amounts plus tax.
func TotalAmount(slots []model.Slot, basisPoints int64) int64 {
	var subtotal int64
	for _, s := range slots {
		subtotal += s.Amount
	}
	return subtotal + Tax(subtotal, basisPoints)
}
