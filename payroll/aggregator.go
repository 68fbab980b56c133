/*
Package payroll aggregates attendance records into per-staff pay figures
for a month. The summary is a pure read-time projection: nothing here is
persisted.

PAY MODE RESOLUTION:
  salaryAmount set -> grossPay = salaryAmount, independent of hours
                      (hours still reported for visibility)
  hourlyRate set   -> grossPay = hourlyRate * totalHours
  neither          -> no computed pay: GrossPay/NetPay are nil, which is
                      distinct from a configured $0

DEDUCTIONS:
  Every deduction is computed off the same gross base and then summed;
  they never compound. PERCENT: value * gross / 100. FLAT: value.
  netPay = max(0, gross - sum).

ROUNDING:
  Aggregation keeps full decimal precision throughout. Two-decimal
  rounding happens only at presentation (the DTO layer), so rounding
  error cannot compound across many small entries.
*/
package payroll

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rosterly/attendance-engine/engine"
)

var hundred = decimal.NewFromInt(100)

// Aggregator computes monthly payroll summaries.
type Aggregator struct {
	Store engine.Store
}

func NewAggregator(store engine.Store) *Aggregator {
	return &Aggregator{Store: store}
}

// ComputeSummary returns one PayrollSummary per staff member with any
// attendance record whose event falls inside the month, ordered by user.
func (a *Aggregator) ComputeSummary(ctx context.Context, org engine.OrgID, month time.Month, year int) ([]engine.PayrollSummary, error) {
	if month < time.January || month > time.December {
		return nil, &engine.ValidationError{Field: "month", Reason: "must be 1-12"}
	}

	from, to := engine.MonthBounds(year, month)
	records, err := a.Store.ListAttendanceForPeriod(ctx, org, from, to)
	if err != nil {
		return nil, err
	}

	hoursByUser := make(map[engine.UserID]decimal.Decimal)
	for _, rec := range records {
		hoursByUser[rec.UserID] = hoursByUser[rec.UserID].Add(rec.HoursLogged)
	}

	users := make([]engine.UserID, 0, len(hoursByUser))
	for user := range hoursByUser {
		users = append(users, user)
	}
	sort.Slice(users, func(i, j int) bool { return users[i] < users[j] })

	summaries := make([]engine.PayrollSummary, 0, len(users))
	for _, user := range users {
		summary, err := a.summarize(ctx, org, user, month, year, hoursByUser[user])
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, *summary)
	}
	return summaries, nil
}

func (a *Aggregator) summarize(ctx context.Context, org engine.OrgID, user engine.UserID, month time.Month, year int, totalHours decimal.Decimal) (*engine.PayrollSummary, error) {
	summary := &engine.PayrollSummary{
		UserID:     user,
		Month:      month,
		Year:       year,
		TotalHours: totalHours,
	}

	rate, err := a.Store.GetPayRate(ctx, org, user)
	if err != nil {
		return nil, err
	}

	gross := resolveGross(rate, totalHours)
	if gross == nil {
		// Unpaid is not the same as $0: leave GrossPay and NetPay nil.
		return summary, nil
	}
	summary.GrossPay = gross

	deductions, err := a.Store.ListDeductions(ctx, org, user)
	if err != nil {
		return nil, err
	}

	totalDeducted := decimal.Zero
	for _, d := range deductions {
		amount := deductionAmount(d, *gross)
		totalDeducted = totalDeducted.Add(amount)
		summary.AppliedDeductions = append(summary.AppliedDeductions, engine.AppliedDeduction{
			Name:   d.Name,
			Type:   d.Type,
			Value:  d.Value,
			Amount: amount,
		})
	}

	net := gross.Sub(totalDeducted)
	if net.IsNegative() {
		net = decimal.Zero
	}
	summary.NetPay = &net
	return summary, nil
}

// resolveGross picks the pay mode. Salary wins over hourly when both are
// somehow configured; nil means no pay mode at all.
func resolveGross(rate *engine.PayRateConfig, totalHours decimal.Decimal) *decimal.Decimal {
	if rate == nil {
		return nil
	}
	if rate.SalaryAmount != nil {
		gross := *rate.SalaryAmount
		return &gross
	}
	if rate.HourlyRate != nil {
		gross := rate.HourlyRate.Mul(totalHours)
		return &gross
	}
	return nil
}

// deductionAmount computes one deduction off the shared gross base.
func deductionAmount(d engine.Deduction, gross decimal.Decimal) decimal.Decimal {
	switch d.Type {
	case engine.DeductionPercent:
		return d.Value.Mul(gross).Div(hundred)
	case engine.DeductionFlat:
		return d.Value
	default:
		return decimal.Zero
	}
}
