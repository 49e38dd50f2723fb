package credits

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidPlan is returned for unknown plan types or custom amounts at or
// below the largest preset.
var ErrInvalidPlan = errors.New("invalid plan")

const (
	PlanBasic    = "basic"
	PlanStandard = "standard"
	PlanPro      = "pro"
	PlanCustom   = "custom"

	// CustomCentsPerCredit prices custom purchases.
	CustomCentsPerCredit = 60
	// CustomMinExclusive is the credit count a custom purchase must exceed.
	CustomMinExclusive = 25
)

// Plan is a purchasable credit bundle. Prices are in US cents.
type Plan struct {
	Type        string `json:"plan_type"`
	Label       string `json:"label"`
	Credits     int    `json:"credits"`
	AmountCents int    `json:"amount_cents"`
}

var presets = []Plan{
	{Type: PlanBasic, Label: "Basic Plan", Credits: 5, AmountCents: 399},
	{Type: PlanStandard, Label: "Standard Plan", Credits: 10, AmountCents: 699},
	{Type: PlanPro, Label: "Pro Plan", Credits: 25, AmountCents: 1499},
}

// Plans lists the preset bundles in display order.
func Plans() []Plan {
	return append([]Plan(nil), presets...)
}

// PlanFor resolves a checkout request into a priced plan.
func PlanFor(planType string, customCredits int) (Plan, error) {
	planType = strings.ToLower(strings.TrimSpace(planType))
	if planType == PlanCustom {
		if customCredits <= CustomMinExclusive {
			return Plan{}, fmt.Errorf("%w: custom plans need more than %d credits", ErrInvalidPlan, CustomMinExclusive)
		}
		return Plan{
			Type:        PlanCustom,
			Label:       fmt.Sprintf("Custom Plan (%d credits)", customCredits),
			Credits:     customCredits,
			AmountCents: customCredits * CustomCentsPerCredit,
		}, nil
	}
	for _, p := range presets {
		if p.Type == planType {
			return p, nil
		}
	}
	return Plan{}, fmt.Errorf("%w: unknown plan type %q", ErrInvalidPlan, planType)
}
