package gacha

import (
	"errors"

	"github.com/shopspring/decimal"
)

var ErrInvalidRate = errors.New("invalid rate; must be in (0,1)")

func validateRate(p decimal.Decimal) error {
	if !p.IsPositive() || p.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return ErrInvalidRate
	}
	return nil
}
