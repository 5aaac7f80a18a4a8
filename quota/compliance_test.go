package quota_test

import (
	"testing"
	"time"

	"github.com/warp/quota-engine/quota"
)

func refillEnrollment(active, spub bool, refill *quota.Date) quota.Enrollment {
	return quota.Enrollment{
		PatientID:             1,
		DrugID:                1,
		IsActive:              active,
		SPUB:                  spub,
		PrescriptionStartDate: date(2024, time.January, 1),
		LatestRefillDate:      refill,
	}
}

func datePtr(d quota.Date) *quota.Date { return &d }

func TestClassify_OverdueActiveNonSPUBIsDefaulter(t *testing.T) {
	// GIVEN: An active, non-SPUB enrollment last refilled 300 days ago
	// WHEN: Classifying as of today
	// THEN: Potential defaulter with a red tag

	asOf := date(2025, time.October, 27)
	refill := asOf.AddDays(-300)

	c := quota.Classify(refillEnrollment(true, false, datePtr(refill)), asOf)

	if !c.PotentialDefaulter {
		t.Error("expected potential defaulter")
	}
	if c.Tag != quota.RefillRed {
		t.Errorf("expected red tag, got %s", c.Tag)
	}
	if c.DaysSinceRefill == nil || *c.DaysSinceRefill != 300 {
		t.Errorf("expected 300 days since refill, got %v", c.DaysSinceRefill)
	}
}

func TestClassify_SPUBExemptsDefaulterStatus(t *testing.T) {
	// GIVEN: Two identical enrollments 300 days overdue, one SPUB
	// THEN: The SPUB one is never a defaulter; the other is

	asOf := date(2025, time.October, 27)
	refill := datePtr(asOf.AddDays(-300))

	spub := quota.Classify(refillEnrollment(true, true, refill), asOf)
	if spub.PotentialDefaulter {
		t.Error("SPUB enrollment must not be a defaulter")
	}

	regular := quota.Classify(refillEnrollment(true, false, refill), asOf)
	if !regular.PotentialDefaulter {
		t.Error("non-SPUB enrollment should be a defaulter")
	}
}

func TestClassify_InactiveNeverDefaulter(t *testing.T) {
	// Inactive enrollments are never defaulters regardless of refill age.
	asOf := date(2025, time.October, 27)
	refill := datePtr(asOf.AddDays(-500))

	c := quota.Classify(refillEnrollment(false, false, refill), asOf)
	if c.PotentialDefaulter {
		t.Error("inactive enrollment must not be a defaulter")
	}
	// The recency tag itself still reflects the overdue refill.
	if c.Tag != quota.RefillRed {
		t.Errorf("expected red tag, got %s", c.Tag)
	}
}

func TestClassify_NeverRefilled(t *testing.T) {
	// GIVEN: An active enrollment with no refill recorded
	// THEN: Flagged "never", nil days, NOT a defaulter

	c := quota.Classify(refillEnrollment(true, false, nil), date(2025, time.June, 1))

	if c.PotentialDefaulter {
		t.Error("never-refilled enrollment is not a defaulter")
	}
	if c.DaysSinceRefill != nil {
		t.Errorf("expected nil days since refill, got %d", *c.DaysSinceRefill)
	}
	if c.Tag != quota.RefillNever {
		t.Errorf("expected never tag, got %s", c.Tag)
	}
}

func TestClassify_TagCutPoints(t *testing.T) {
	// Exactly 180 days is not yet a defaulter; 181 is.
	// Exactly 90 days is green; 91 is orange.
	asOf := date(2025, time.December, 31)

	cases := []struct {
		daysAgo   int
		wantTag   quota.RefillTag
		defaulter bool
	}{
		{90, quota.RefillGreen, false},
		{91, quota.RefillOrange, false},
		{180, quota.RefillOrange, false},
		{181, quota.RefillRed, true},
	}
	for _, c := range cases {
		got := quota.Classify(refillEnrollment(true, false, datePtr(asOf.AddDays(-c.daysAgo))), asOf)
		if got.Tag != c.wantTag {
			t.Errorf("%d days ago: expected tag %s, got %s", c.daysAgo, c.wantTag, got.Tag)
		}
		if got.PotentialDefaulter != c.defaulter {
			t.Errorf("%d days ago: expected defaulter=%v", c.daysAgo, c.defaulter)
		}
	}
}
