package adapters

import (
	"testing"

	"github.com/adcp/salesagent/internal/pricing"
	"github.com/stretchr/testify/assert"
)

func TestNormalizePricingModel(t *testing.T) {
	tests := []struct {
		caps Capabilities
		in   pricing.Model
		want pricing.Model
	}{
		{tritonCapabilities, pricing.CPC, pricing.CPM},
		{tritonCapabilities, pricing.CPM, pricing.CPM},
		{kevelCapabilities, pricing.FlatRate, pricing.FlatRate},
		{kevelCapabilities, pricing.VCPM, pricing.CPM},
		{gamCapabilities, pricing.CPCV, pricing.CPM},
		{mockCapabilities, pricing.CPV, pricing.CPV},
	}
	for _, tt := range tests {
		if got := NormalizePricingModel(tt.caps, tt.in); got != tt.want {
			t.Errorf("NormalizePricingModel(%v, %q) = %q, want %q", tt.caps.PricingModels, tt.in, got, tt.want)
		}
	}
}

func TestFilterTargeting(t *testing.T) {
	overlay := map[string]any{
		TargetGeoCountry: []string{"US"},
		TargetAge:        "25-34",
		TargetGender:     "f",
		"made_up":        true,
	}

	kept, dropped := FilterTargeting(broadstreetCapabilities, overlay)
	assert.Equal(t, map[string]any{TargetGeoCountry: []string{"US"}}, kept)
	assert.Equal(t, []string{TargetAge, TargetGender, "made_up"}, dropped)

	kept, dropped = FilterTargeting(broadstreetCapabilities, nil)
	assert.Nil(t, kept)
	assert.Nil(t, dropped)
}

func TestTargetingCapabilitiesListsEveryDimension(t *testing.T) {
	b := base{caps: tritonCapabilities}
	m := b.TargetingCapabilities()
	assert.Len(t, m, len(allTargeting))
	assert.True(t, m[TargetGeoMetro])
	assert.False(t, m[TargetKeyValue])
}

func TestIsPackageAction(t *testing.T) {
	assert.True(t, IsPackageAction(ActionUpdatePackageBudget))
	assert.True(t, IsPackageAction(ActionPausePackage))
	assert.False(t, IsPackageAction(ActionActivateOrder))
	assert.False(t, IsValidAction("delete_everything"))
}
