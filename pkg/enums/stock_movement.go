package enums

import "fmt"

// StockMovement labels how a ledger operation moved accessory quantity.
type StockMovement string

const (
	StockMovementConsume StockMovement = "consume"
	StockMovementRestore StockMovement = "restore"
	StockMovementAdjust  StockMovement = "adjust"
)

var validStockMovements = []StockMovement{
	StockMovementConsume,
	StockMovementRestore,
	StockMovementAdjust,
}

// IsValid reports whether the value is a known StockMovement.
func (m StockMovement) IsValid() bool {
	for _, candidate := range validStockMovements {
		if candidate == m {
			return true
		}
	}
	return false
}

// ParseStockMovement converts raw input into StockMovement.
func ParseStockMovement(value string) (StockMovement, error) {
	for _, candidate := range validStockMovements {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid stock movement %q", value)
}
