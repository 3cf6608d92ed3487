package ledger

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nfcsacco/saccoledger/pkg/models"
)

func TestTotalInterestFlat(t *testing.T) {
	tests := []struct {
		name      string
		principal string
		rate      string
		months    int
		want      string
	}{
		{"one year at 10 percent", "12000", "10", 12, "1200"},
		{"two years at 10 percent", "24000", "10", 24, "4800"},
		{"short term", "1200", "5", 4, "20"},
		{"zero rate", "5000", "0", 12, "0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := totalInterest(
				decimal.RequireFromString(tt.principal),
				decimal.RequireFromString(tt.rate),
				tt.months,
				models.MethodFlat,
			)
			assert.True(t, got.Equal(decimal.RequireFromString(tt.want)),
				"want %s, got %s", tt.want, got)
		})
	}
}

func TestTotalInterestReducing(t *testing.T) {
	// 1200 at 5% over 4 months: 5.00 + 3.75 + 2.50 + 1.25.
	got := totalInterest(decimal.NewFromInt(1200), decimal.NewFromInt(5), 4, models.MethodReduce)
	assert.True(t, got.Equal(decimal.RequireFromString("12.5")), "got %s", got)

	// Reducing-balance interest is always below the flat charge for the
	// same terms (when rate > 0 and months > 1).
	flat := totalInterest(decimal.NewFromInt(1200), decimal.NewFromInt(5), 4, models.MethodFlat)
	assert.True(t, got.LessThan(flat))
}

func TestBuildScheduleInvariants(t *testing.T) {
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		name      string
		principal string
		rate      string
		months    int
		method    models.InterestMethod
	}{
		{"flat 12mo", "12000", "10", 12, models.MethodFlat},
		{"flat 24mo", "50000", "10", 24, models.MethodFlat},
		{"flat awkward principal", "10000", "15", 36, models.MethodFlat},
		{"reduce 4mo", "1200", "5", 4, models.MethodReduce},
		{"reduce 24mo", "100000", "10", 24, models.MethodReduce},
		{"reduce indivisible", "9999.99", "13", 18, models.MethodReduce},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			principal := decimal.RequireFromString(tt.principal)
			rate := decimal.RequireFromString(tt.rate)
			entries := buildSchedule(principal, rate, tt.months, start, tt.method)
			require.Len(t, entries, tt.months)

			// 1 cent per installment of rounding tolerance.
			tolerance := decimal.New(int64(tt.months), -2)

			sumPrincipal := decimal.Zero
			sumDue := decimal.Zero
			for i, e := range entries {
				assert.True(t, e.AmountDue.Equal(e.Principal.Add(e.Interest)),
					"entry %d: amount due must be principal+interest", i)
				assert.True(t, e.AmountPaid.IsZero(), "entry %d starts unpaid", i)
				assert.Equal(t, models.PaymentPending, e.Status)
				assert.Equal(t, start.AddDate(0, 0, 30*(i+1)), e.DueDate,
					"entry %d: due dates advance in 30-day periods", i)
				sumPrincipal = sumPrincipal.Add(e.Principal)
				sumDue = sumDue.Add(e.AmountDue)
			}

			assert.True(t, sumPrincipal.Sub(principal).Abs().LessThanOrEqual(tolerance),
				"principal components sum to %s, principal is %s", sumPrincipal, principal)

			totalPayable := principal.Add(totalInterest(principal, rate, tt.months, tt.method)).Round(2)
			assert.True(t, sumDue.Sub(totalPayable).Abs().LessThanOrEqual(tolerance),
				"amounts due sum to %s, total payable is %s", sumDue, totalPayable)
		})
	}
}

func TestBuildScheduleReducingRemainder(t *testing.T) {
	// The outstanding principal after the final installment must be zero:
	// the last reducing-balance interest charge equals one monthly
	// installment's worth of the rate.
	principal := decimal.NewFromInt(100000)
	rate := decimal.NewFromInt(10)
	months := 24
	entries := buildSchedule(principal, rate, months, time.Now(), models.MethodReduce)

	monthly := principal.Div(decimal.NewFromInt(int64(months)))
	lastInterest := monthly.Mul(rate.Div(hundred)).Div(twelve).Round(2)
	assert.True(t, entries[months-1].Interest.Equal(lastInterest),
		"final interest %s, want %s", entries[months-1].Interest, lastInterest)

	// Interest strictly decreases as the balance reduces.
	for i := 1; i < months; i++ {
		assert.True(t, entries[i].Interest.LessThan(entries[i-1].Interest),
			"interest must decrease, entry %d", i)
	}
}

func TestPaymentStatusFor(t *testing.T) {
	due := decimal.RequireFromString("1100")
	assert.Equal(t, models.PaymentPending, models.PaymentStatusFor(decimal.Zero, due))
	assert.Equal(t, models.PaymentPartial, models.PaymentStatusFor(decimal.RequireFromString("400"), due))
	assert.Equal(t, models.PaymentPaid, models.PaymentStatusFor(due, due))
	assert.Equal(t, models.PaymentPaid, models.PaymentStatusFor(decimal.RequireFromString("1200"), due))
}
