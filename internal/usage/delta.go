package usage

import "github.com/keystock/keystock-backend/pkg/enums"

// ComputeDelta returns the additional units an edit consumes when a usage
// record's quantity changes from oldQty to newQty. A positive delta takes
// stock, a negative delta gives it back and zero leaves stock untouched.
func ComputeDelta(oldQty, newQty int) int {
	return newQty - oldQty
}

// stockChange converts a usage delta into the signed change applied to the
// accessory quantity.
func stockChange(delta int) int {
	return -delta
}

// movementFor labels the direction a delta moves stock.
func movementFor(delta int) enums.StockMovement {
	switch {
	case delta > 0:
		return enums.StockMovementConsume
	case delta < 0:
		return enums.StockMovementRestore
	default:
		return enums.StockMovementAdjust
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
