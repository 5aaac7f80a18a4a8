package quota_test

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/quota-engine/quota"
)

// =============================================================================
// COST EXPRESSION PARSING
// =============================================================================

func TestNormalizeCostPerDay_ProductExpression(t *testing.T) {
	// "0.5*2*3" composes dose x frequency x unit price into 3.00
	got, err := quota.NormalizeCostPerDay("0.5*2*3")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.Equal(decimal.RequireFromString("3.00")) {
		t.Errorf("expected 3.00, got %s", got)
	}
}

func TestNormalizeCostPerDay_PlainNumber(t *testing.T) {
	got, err := quota.NormalizeCostPerDay("5.5")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.Equal(decimal.RequireFromString("5.5")) {
		t.Errorf("expected 5.5, got %s", got)
	}
}

func TestNormalizeCostPerDay_TrimsFactors(t *testing.T) {
	got, err := quota.NormalizeCostPerDay(" 2 * 1.25 ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.Equal(decimal.RequireFromString("2.50")) {
		t.Errorf("expected 2.50, got %s", got)
	}
}

func TestNormalizeCostPerDay_RoundsHalfUp(t *testing.T) {
	// 1.115 -> 1.12, currency-style rounding
	got, err := quota.NormalizeCostPerDay("1.115")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.Equal(decimal.RequireFromString("1.12")) {
		t.Errorf("expected 1.12, got %s", got)
	}
}

func TestNormalizeCostPerDay_RejectsBadInput(t *testing.T) {
	for _, input := range []string{"abc", "-1", "", "1*", "*2", "1**2", "2*-3", "1.2.3"} {
		_, err := quota.NormalizeCostPerDay(input)
		if err == nil {
			t.Errorf("input %q: expected validation error, got none", input)
			continue
		}
		if !errors.Is(err, quota.ErrValidation) {
			t.Errorf("input %q: expected ErrValidation, got %v", input, err)
		}
	}
}

// =============================================================================
// SUGGESTION
// =============================================================================

func TestSuggestCostPerDay_DividesByCalculationPeriod(t *testing.T) {
	price := decimal.RequireFromString("182.00")
	cases := []struct {
		method quota.CalculationMethod
		want   string
	}{
		{quota.CalcDaily, "182.00"},
		{quota.CalcWeekly, "26.00"},
		{quota.CalcTwiceYearly, "1.00"},
	}
	for _, c := range cases {
		drug := quota.Drug{Price: price, CalculationMethod: c.method}
		if got := quota.SuggestCostPerDay(drug); !got.Equal(decimal.RequireFromString(c.want)) {
			t.Errorf("%s: expected %s, got %s", c.method, c.want, got)
		}
	}

	monthly := quota.Drug{Price: decimal.RequireFromString("30.00"), CalculationMethod: quota.CalcMonthly}
	if got := quota.SuggestCostPerDay(monthly); !got.Equal(decimal.RequireFromString("1.00")) {
		t.Errorf("monthly: expected 1.00, got %s", got)
	}
}

func TestSuggestCostPerDay_NoMethodSuggestsZero(t *testing.T) {
	drug := quota.Drug{Price: decimal.RequireFromString("10.00")}
	if got := quota.SuggestCostPerDay(drug); !got.IsZero() {
		t.Errorf("expected zero suggestion, got %s", got)
	}
}

// =============================================================================
// PERIOD COST
// =============================================================================

func TestPeriodCost_FullYear(t *testing.T) {
	// GIVEN: cost 2.00/day, enrollment spanning all of 2025
	// THEN: 2.00 * 365 = 730.00

	cost := decimal.RequireFromString("2.00")
	window := quota.CalendarYear(2025)
	start := date(2025, time.January, 1)
	end := date(2025, time.December, 31)

	got := quota.PeriodCost(cost, start, &end, window, date(2026, time.March, 1))
	if !got.Equal(decimal.RequireFromString("730.00")) {
		t.Errorf("expected 730.00, got %s", got)
	}
}

func TestPeriodCost_ClipsToWindow(t *testing.T) {
	// Enrollment runs Nov 2024 - Jan 31 2025; only the 31 January days fall
	// inside the 2025 window.
	cost := decimal.RequireFromString("1.00")
	start := date(2024, time.November, 1)
	end := date(2025, time.January, 31)

	got := quota.PeriodCost(cost, start, &end, quota.CalendarYear(2025), date(2025, time.June, 1))
	if !got.Equal(decimal.RequireFromString("31.00")) {
		t.Errorf("expected 31.00, got %s", got)
	}
}

func TestPeriodCost_OpenEndedRunsToAsOf(t *testing.T) {
	// No end date: the span runs to the as-of date. Jan 1 - Jan 10 inclusive
	// is 10 days.
	cost := decimal.RequireFromString("3.00")
	start := date(2025, time.January, 1)

	got := quota.PeriodCost(cost, start, nil, quota.CalendarYear(2025), date(2025, time.January, 10))
	if !got.Equal(decimal.RequireFromString("30.00")) {
		t.Errorf("expected 30.00, got %s", got)
	}
}

func TestPeriodCost_NoOverlapIsZero(t *testing.T) {
	cost := decimal.RequireFromString("5.00")
	start := date(2023, time.January, 1)
	end := date(2023, time.June, 30)

	got := quota.PeriodCost(cost, start, &end, quota.CalendarYear(2025), date(2025, time.June, 1))
	if !got.IsZero() {
		t.Errorf("expected zero, got %s", got)
	}
}

// =============================================================================
// SCHEDULE RECONCILIATION
// =============================================================================

func TestReconcileSchedule_DurationDerivesEndDate(t *testing.T) {
	start := date(2025, time.March, 1)
	duration := 30

	end, gotDur, err := quota.ReconcileSchedule(start, &duration, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if end == nil || !end.Equal(date(2025, time.March, 31)) {
		t.Errorf("expected end 2025-03-31, got %v", end)
	}
	if gotDur == nil || *gotDur != 30 {
		t.Errorf("expected duration 30, got %v", gotDur)
	}
}

func TestReconcileSchedule_EndDateDerivesDuration_RoundTripIdempotent(t *testing.T) {
	// GIVEN: A fixed start date
	// WHEN: Setting duration, then feeding the derived end date back in
	// THEN: The same end date and duration come out again (idempotent)

	start := date(2025, time.March, 1)
	duration := 45

	end1, _, err := quota.ReconcileSchedule(start, &duration, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	end2, dur2, err := quota.ReconcileSchedule(start, nil, end1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !end2.Equal(*end1) {
		t.Errorf("round trip changed end date: %s -> %s", end1, end2)
	}
	if *dur2 != duration {
		t.Errorf("round trip changed duration: %d -> %d", duration, *dur2)
	}

	// Apply twice more; still stable.
	end3, dur3, err := quota.ReconcileSchedule(start, dur2, end2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !end3.Equal(*end1) || *dur3 != duration {
		t.Errorf("second round trip drifted: end=%s dur=%d", end3, *dur3)
	}
}

func TestReconcileSchedule_EndBeforeStartRejected(t *testing.T) {
	start := date(2025, time.March, 10)
	end := date(2025, time.March, 1)

	_, _, err := quota.ReconcileSchedule(start, nil, &end)
	if !errors.Is(err, quota.ErrValidation) {
		t.Errorf("expected ErrValidation, got %v", err)
	}
}

func TestReconcileSchedule_NeitherGivenIsOpenEnded(t *testing.T) {
	end, dur, err := quota.ReconcileSchedule(date(2025, time.March, 1), nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if end != nil || dur != nil {
		t.Errorf("expected open-ended schedule, got end=%v dur=%v", end, dur)
	}
}
