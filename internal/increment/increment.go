// Package increment computes the bid ladder of a listing.
//
// Valid bids sit on the lattice startingPrice + k*increment (k >= 1), where the
// increment is 5% of the starting price rounded up to a whole currency unit.
package increment

import (
	"fmt"
	"iter"

	"bidbazaar/internal/biddingerrors"

	"github.com/shopspring/decimal"
)

// MaxSteps bounds the ladder produced by ValidAmounts.
const MaxSteps = 20

var (
	rate = decimal.New(5, -2)
	two  = decimal.NewFromInt(2)
)

// Increment returns ceil(startingPrice * 0.05). It is always a positive integer.
func Increment(startingPrice decimal.Decimal) (decimal.Decimal, error) {
	if !startingPrice.IsPositive() {
		return decimal.Zero, fmt.Errorf("increment: %w - got %s", biddingerrors.ErrInvalidStartingPrice, startingPrice)
	}
	return startingPrice.Mul(rate).Ceil(), nil
}

// ValidAmounts yields startingPrice+increment, startingPrice+2*increment, ...
// and stops after the first value that reaches 2*currentPrice or after MaxSteps values.
func ValidAmounts(startingPrice, currentPrice decimal.Decimal) (iter.Seq[decimal.Decimal], error) {
	inc, err := Increment(startingPrice)
	if err != nil {
		return nil, err
	}
	ceiling := currentPrice.Mul(two)

	return func(yield func(decimal.Decimal) bool) {
		amount := startingPrice
		for steps := 0; steps < MaxSteps && amount.LessThan(ceiling); steps++ {
			amount = amount.Add(inc)
			if !yield(amount) {
				return
			}
		}
	}, nil
}

// Table collects ValidAmounts for display.
func Table(startingPrice, currentPrice decimal.Decimal) ([]decimal.Decimal, error) {
	seq, err := ValidAmounts(startingPrice, currentPrice)
	if err != nil {
		return nil, err
	}
	amounts := make([]decimal.Decimal, 0, MaxSteps)
	for a := range seq {
		amounts = append(amounts, a)
	}
	return amounts, nil
}

// NextValidBid returns the first ladder value strictly above currentPrice,
// or currentPrice+increment when the ladder never gets there.
func NextValidBid(startingPrice, currentPrice decimal.Decimal) (decimal.Decimal, error) {
	seq, err := ValidAmounts(startingPrice, currentPrice)
	if err != nil {
		return decimal.Zero, err
	}
	for a := range seq {
		if a.GreaterThan(currentPrice) {
			return a, nil
		}
	}
	inc, _ := Increment(startingPrice)
	return currentPrice.Add(inc), nil
}

// OnLattice reports whether amount == startingPrice + k*increment for some k >= 1.
func OnLattice(startingPrice, amount decimal.Decimal) bool {
	inc, err := Increment(startingPrice)
	if err != nil {
		return false
	}
	diff := amount.Sub(startingPrice)
	if !diff.IsPositive() {
		return false
	}
	return diff.Mod(inc).IsZero()
}

// Accepts reports whether amount is a listed ladder value. When the ladder is
// exhausted at or below currentPrice (a price far above the start), any lattice
// value is accepted so the fallback suggestion of NextValidBid stays submittable.
func Accepts(startingPrice, currentPrice, amount decimal.Decimal) (bool, error) {
	seq, err := ValidAmounts(startingPrice, currentPrice)
	if err != nil {
		return false, err
	}
	last := startingPrice
	for a := range seq {
		if a.Equal(amount) {
			return true, nil
		}
		last = a
	}
	if !last.GreaterThan(currentPrice) {
		return OnLattice(startingPrice, amount), nil
	}
	return false, nil
}
