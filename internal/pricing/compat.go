// Package pricing maps abstract AdCP pricing models onto the line-item types and
// cost types of ad servers with native line-item typing.
package pricing

import (
	"sort"
	"strings"

	"github.com/adcp/salesagent/internal/errs"
)

// Model is the rate basis agreed between buyer and seller.
type Model string

const (
	CPM      Model = "cpm"
	VCPM     Model = "vcpm"
	CPC      Model = "cpc"
	FlatRate Model = "flat_rate"
	CPCV     Model = "cpcv"
	CPP      Model = "cpp"
	CPV      Model = "cpv"
)

var AllModels = []Model{CPM, VCPM, CPC, FlatRate, CPCV, CPP, CPV}

func (m Model) Valid() bool {
	for _, v := range AllModels {
		if v == m {
			return true
		}
	}
	return false
}

// ParseModel accepts any casing; an empty string defaults to cpm.
func ParseModel(s string) (Model, error) {
	if s == "" {
		return CPM, nil
	}
	m := Model(strings.ToLower(strings.TrimSpace(s)))
	if !m.Valid() {
		return "", errs.Validationf("unknown_pricing_model", "unknown pricing model %q", s)
	}
	return m, nil
}

type CostType string

const (
	CostCPM  CostType = "CPM"
	CostVCPM CostType = "VCPM"
	CostCPC  CostType = "CPC"
	CostCPD  CostType = "CPD"
)

type LineItemType string

const (
	Standard      LineItemType = "STANDARD"
	Sponsorship   LineItemType = "SPONSORSHIP"
	Network       LineItemType = "NETWORK"
	PricePriority LineItemType = "PRICE_PRIORITY"
	Bulk          LineItemType = "BULK"
	House         LineItemType = "HOUSE"
)

var AllLineItemTypes = []LineItemType{Standard, Sponsorship, Network, PricePriority, Bulk, House}

var costTypes = map[Model]CostType{
	CPM:      CostCPM,
	VCPM:     CostVCPM,
	CPC:      CostCPC,
	FlatRate: CostCPD,
}

// Matrix lists the cost types each line-item type accepts.
type Matrix map[LineItemType]map[CostType]bool

var compatibility = Matrix{
	Standard:      {CostCPM: true, CostCPC: true, CostVCPM: true},
	Sponsorship:   {CostCPM: true, CostCPC: true, CostCPD: true},
	Network:       {CostCPM: true, CostCPC: true, CostCPD: true},
	PricePriority: {CostCPM: true, CostCPC: true},
	Bulk:          {CostCPM: true},
	House:         {CostCPM: true},
}

var defaultPriorities = map[LineItemType]int{
	Sponsorship:   4,
	Standard:      8,
	PricePriority: 12,
	Bulk:          12,
	Network:       16,
	House:         16,
}

const fallbackPriority = 8

// CostTypeFor returns the platform cost type for m. Models without a cost type
// are rejected rather than substituted.
func CostTypeFor(m Model) (CostType, error) {
	ct, ok := costTypes[m]
	if !ok {
		return "", errs.Validationf("unsupported_pricing_model",
			"pricing model %q is not supported by this ad server (supported: %s)", m, joinModels(SupportedModels()))
	}
	return ct, nil
}

// SupportedModels lists the models that resolve to a cost type.
func SupportedModels() []Model {
	out := make([]Model, 0, len(costTypes))
	for _, m := range AllModels {
		if _, ok := costTypes[m]; ok {
			out = append(out, m)
		}
	}
	return out
}

func IsCompatible(t LineItemType, m Model) bool {
	ct, ok := costTypes[m]
	if !ok {
		return false
	}
	return compatibility[t][ct]
}

// CompatibleLineItemTypes returns the line-item types accepting m, sorted by name.
func CompatibleLineItemTypes(m Model) []LineItemType {
	var out []LineItemType
	for _, t := range AllLineItemTypes {
		if IsCompatible(t, m) {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// SelectLineItemType picks the line-item type for a package. An explicit
// override wins, then pricing-model constraints, then delivery type, then the
// PRICE_PRIORITY default.
func SelectLineItemType(m Model, guaranteed bool, override LineItemType) (LineItemType, error) {
	if _, err := CostTypeFor(m); err != nil {
		return "", err
	}

	if override != "" {
		if !IsCompatible(override, m) {
			return "", errs.Validationf("incompatible_line_item_type",
				"pricing model %q is not compatible with line item type %q; compatible types: %s",
				m, override, joinTypes(CompatibleLineItemTypes(m)))
		}
		return override, nil
	}

	switch {
	case m == FlatRate:
		return Sponsorship, nil
	case m == VCPM:
		return Standard, nil
	case guaranteed:
		return Standard, nil
	default:
		return PricePriority, nil
	}
}

// DefaultPriority returns the scheduling priority for t; lower delivers first.
func DefaultPriority(t LineItemType) int {
	if p, ok := defaultPriorities[t]; ok {
		return p
	}
	return fallbackPriority
}

func joinTypes(ts []LineItemType) string {
	parts := make([]string, len(ts))
	for i, t := range ts {
		parts[i] = string(t)
	}
	return strings.Join(parts, ", ")
}

func joinModels(ms []Model) string {
	parts := make([]string, len(ms))
	for i, m := range ms {
		parts[i] = string(m)
	}
	return strings.Join(parts, ", ")
}
