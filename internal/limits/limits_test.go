package limits

import (
	"errors"
	"reflect"
	"strings"
	"testing"
)

func TestIsFreeUsageBoundaries(t *testing.T) {
	tests := []struct {
		name string
		u    Usage
		want bool
	}{
		{name: "small", u: Usage{ResumeChars: 50, JDChars: 50, TotalChars: 100}, want: true},
		{name: "exactly at limits", u: Usage{ResumeChars: 1000, JDChars: 1500, TotalChars: 2500}, want: true},
		{name: "resume over", u: Usage{ResumeChars: 1001, JDChars: 10, TotalChars: 1011}, want: false},
		{name: "jd over", u: Usage{ResumeChars: 10, JDChars: 1501, TotalChars: 1511}, want: false},
		{name: "total over", u: Usage{ResumeChars: 1000, JDChars: 1500, TotalChars: 2501}, want: false},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			if got := IsFreeUsage(tt.u); got != tt.want {
				t.Fatalf("IsFreeUsage(%+v) = %v, want %v", tt.u, got, tt.want)
			}
		})
	}
}

func TestIsFreeUsageGrid(t *testing.T) {
	for r := 0; r <= 1000; r += 125 {
		for j := 0; j <= 1500; j += 125 {
			if !IsFreeUsage(Measure(strings.Repeat("r", r), strings.Repeat("j", j))) {
				t.Fatalf("expected free usage for r=%d j=%d", r, j)
			}
		}
	}
}

func TestMeasureCountsCodePoints(t *testing.T) {
	u := Measure("résumé", "日本語")
	if u.ResumeChars != 6 || u.JDChars != 3 || u.TotalChars != 9 {
		t.Fatalf("unexpected usage %+v", u)
	}
}

func TestValidateListsExactlyViolatedDimensions(t *testing.T) {
	tests := []struct {
		name string
		u    Usage
		tier Tier
		want []Dimension
	}{
		{name: "free ok", u: Usage{ResumeChars: 1000, JDChars: 1500, TotalChars: 2500}, tier: TierFree},
		{name: "free resume", u: Usage{ResumeChars: 1001, JDChars: 0, TotalChars: 1001}, tier: TierFree, want: []Dimension{DimensionResume}},
		{name: "free jd and total", u: Usage{ResumeChars: 1000, JDChars: 1501, TotalChars: 2501}, tier: TierFree, want: []Dimension{DimensionJD, DimensionTotal}},
		{name: "paid ok", u: Usage{ResumeChars: 3000, JDChars: 5000, TotalChars: 8000}, tier: TierPaid},
		{name: "paid all", u: Usage{ResumeChars: 3001, JDChars: 5001, TotalChars: 8002}, tier: TierPaid, want: []Dimension{DimensionResume, DimensionJD, DimensionTotal}},
		{name: "paid total only", u: Usage{ResumeChars: 3000, JDChars: 5000, TotalChars: 8001}, tier: TierPaid, want: []Dimension{DimensionTotal}},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.u, tt.tier)
			if len(tt.want) == 0 {
				if err != nil {
					t.Fatalf("expected no error, got %v", err)
				}
				return
			}
			var exceeded *ExceededError
			if !errors.As(err, &exceeded) {
				t.Fatalf("expected *ExceededError, got %v", err)
			}
			if !reflect.DeepEqual(exceeded.Violations, tt.want) {
				t.Fatalf("violations = %v, want %v", exceeded.Violations, tt.want)
			}
			if len(exceeded.Messages) != len(tt.want) {
				t.Fatalf("expected %d messages, got %d", len(tt.want), len(exceeded.Messages))
			}
			if exceeded.Limits != ForTier(tt.tier) {
				t.Fatalf("unexpected limits table %+v", exceeded.Limits)
			}
			if exceeded.Current != tt.u {
				t.Fatalf("unexpected current usage %+v", exceeded.Current)
			}
		})
	}
}

func TestClassify(t *testing.T) {
	d, err := Classify(strings.Repeat("a", 50), strings.Repeat("b", 50), TierFree)
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if d.NeedsCredit {
		t.Fatalf("expected free request")
	}

	d, err = Classify(strings.Repeat("a", 2000), strings.Repeat("b", 2000), TierPaid)
	if err != nil {
		t.Fatalf("Classify paid: %v", err)
	}
	if !d.NeedsCredit {
		t.Fatalf("expected credit to be required")
	}
	if d.Limits != PaidLimits {
		t.Fatalf("expected paid limits, got %+v", d.Limits)
	}

	if _, err := Classify(strings.Repeat("a", 2000), strings.Repeat("b", 2000), TierFree); err == nil {
		t.Fatalf("expected anonymous oversize request to be rejected")
	}
}

func TestExceededErrorDetails(t *testing.T) {
	err := Validate(Usage{ResumeChars: 1200, JDChars: 10, TotalChars: 1210}, TierFree)
	var exceeded *ExceededError
	if !errors.As(err, &exceeded) {
		t.Fatalf("expected *ExceededError")
	}
	details := exceeded.Details()
	for _, key := range []string{"message", "errors", "limits", "current"} {
		if _, ok := details[key]; !ok {
			t.Fatalf("missing details key %s", key)
		}
	}
	if !strings.Contains(exceeded.Error(), "Resume too long: 1200/1000") {
		t.Fatalf("unexpected message %q", exceeded.Error())
	}
}
