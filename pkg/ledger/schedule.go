package ledger

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/nfcsacco/saccoledger/pkg/models"
)

var (
	hundred = decimal.NewFromInt(100)
	twelve  = decimal.NewFromInt(12)
)

// Installments fall due every 30 days from the start date, not on calendar
// months. Existing schedules were generated this way; keep it.
const installmentPeriodDays = 30

// totalInterest computes the interest charge for the whole term.
//
// Flat: one charge on the full principal over the full term,
// principal * rate * months/12.
//
// Reduce: interest accrues monthly on the principal still outstanding before
// that month's principal installment is subtracted.
func totalInterest(principal, annualRate decimal.Decimal, months int, method models.InterestMethod) decimal.Decimal {
	rate := annualRate.Div(hundred)
	m := decimal.NewFromInt(int64(months))

	if method == models.MethodFlat {
		return principal.Mul(rate).Mul(m).Div(twelve)
	}

	monthlyPrincipal := principal.Div(m)
	remaining := principal
	total := decimal.Zero
	for i := 0; i < months; i++ {
		total = total.Add(remaining.Mul(rate).Div(twelve))
		remaining = remaining.Sub(monthlyPrincipal)
	}
	return total
}

// buildSchedule produces the full installment set for a loan. Principal is
// split evenly across installments for both methods; flat interest is the
// total charge spread evenly, reducing-balance interest is charged on the
// outstanding principal each period. Components are rounded to 2 decimal
// places per entry and AmountDue is their exact sum.
func buildSchedule(principal, annualRate decimal.Decimal, months int, startDate time.Time, method models.InterestMethod) []*models.ScheduleEntry {
	rate := annualRate.Div(hundred)
	m := decimal.NewFromInt(int64(months))
	monthlyPrincipal := principal.Div(m)
	flatInterest := totalInterest(principal, annualRate, months, models.MethodFlat).Div(m)

	entries := make([]*models.ScheduleEntry, 0, months)
	remaining := principal
	for i := 0; i < months; i++ {
		var interest decimal.Decimal
		if method == models.MethodFlat {
			interest = flatInterest
		} else {
			interest = remaining.Mul(rate).Div(twelve)
		}

		p := monthlyPrincipal.Round(2)
		in := interest.Round(2)
		entries = append(entries, &models.ScheduleEntry{
			DueDate:    startDate.AddDate(0, 0, installmentPeriodDays*(i+1)),
			Principal:  p,
			Interest:   in,
			AmountDue:  p.Add(in),
			AmountPaid: decimal.Zero,
			Status:     models.PaymentPending,
		})

		remaining = remaining.Sub(monthlyPrincipal)
	}
	return entries
}
