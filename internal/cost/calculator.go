// Package cost holds the financial arithmetic shared by detection and
// reporting. Amounts are decimals end to end.
package cost

import (
	"math"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/sells-group/drylogs/internal/model"
)

var hundred = decimal.NewFromInt(100)

// Overrun describes actual spend against the estimate.
type Overrun struct {
	Estimated decimal.Decimal `json:"estimated"`
	Actual    decimal.Decimal `json:"actual"`
	Amount    decimal.Decimal `json:"amount"`
	// Ratio is Amount / Estimated; 0.32 means 32% over.
	Ratio decimal.Decimal `json:"ratio"`
}

// Percent returns the ratio as a percentage.
func (o Overrun) Percent() decimal.Decimal {
	return o.Ratio.Mul(hundred)
}

// EstimatedTotal returns the recorded estimate, or materials plus labor
// when no total was entered.
func EstimatedTotal(f model.Financial) decimal.Decimal {
	if !f.EstimatedTotal.IsZero() {
		return f.EstimatedTotal
	}
	return f.EstimatedMaterials.Add(f.EstimatedLabor)
}

// ActualTotal returns the recorded actual total, or the sum of the buckets
// when no total was entered.
func ActualTotal(a model.ActualExpenses) decimal.Decimal {
	if !a.Total.IsZero() {
		return a.Total
	}
	return a.Materials.Add(a.Labor).Add(a.Equipment)
}

// ComputeOverrun compares actuals to the estimate. It reports false while
// nothing has been spent or when there is no positive estimate to compare
// against.
func ComputeOverrun(f model.Financial) (Overrun, bool) {
	est := EstimatedTotal(f)
	act := ActualTotal(f.ActualExpenses)
	if act.IsZero() || !est.IsPositive() {
		return Overrun{}, false
	}
	amount := act.Sub(est)
	return Overrun{
		Estimated: est,
		Actual:    act,
		Amount:    amount,
		Ratio:     amount.Div(est),
	}, true
}

// Calculator formats money for people.
type Calculator struct {
	printer *message.Printer
}

// NewCalculator creates a Calculator for the given locale.
func NewCalculator(tag language.Tag) *Calculator {
	return &Calculator{printer: message.NewPrinter(tag)}
}

// Money renders d as dollars with grouping, dropping cents on whole
// amounts: "$5,000", "$6,600.50".
func (c *Calculator) Money(d decimal.Decimal) string {
	if d.Equal(d.Truncate(0)) {
		return c.printer.Sprintf("$%d", d.IntPart())
	}
	f, _ := d.Round(2).Float64()
	return c.printer.Sprintf("$%.2f", f)
}

// SqFt renders an area rounded to whole square feet.
func (c *Calculator) SqFt(v float64) string {
	return c.printer.Sprintf("%d sf", int64(math.Round(v)))
}
