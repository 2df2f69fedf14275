package fines

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// RuleUsage counts how often a rule was used.
type RuleUsage struct {
	RuleID        RuleID `json:"rule_id"`
	ViolationType string `json:"violation_type"`
	Count         int    `json:"count"`
}

// Statistics summarizes the calculation history.
type Statistics struct {
	TotalCalculations     int             `json:"total_calculations"`
	CalculationsToday     int             `json:"calculations_today"`
	AverageAmount         decimal.Decimal `json:"average_amount"`
	MostUsedRules         []RuleUsage     `json:"most_used_rules"`
	CalculationsByType    map[string]int  `json:"calculations_by_type"`
	CalculationsByUser    map[string]int  `json:"calculations_by_user"`
	TotalFinesIssued      int             `json:"total_fines_issued"`
	TotalAmountCalculated decimal.Decimal `json:"total_amount_calculated"`
}

// MostUsedLimit caps the MostUsedRules list.
const MostUsedLimit = 5

// ComputeStatistics aggregates entries. "Today" is the UTC calendar day of now.
// A fine counts as issued once its calculation is approved.
func ComputeStatistics(entries []CalculationHistoryEntry, now time.Time) Statistics {
	stats := Statistics{
		TotalCalculations:     len(entries),
		AverageAmount:         decimal.Zero,
		MostUsedRules:         []RuleUsage{},
		CalculationsByType:    make(map[string]int),
		CalculationsByUser:    make(map[string]int),
		TotalAmountCalculated: decimal.Zero,
	}

	y, m, d := now.UTC().Date()
	usage := make(map[RuleID]*RuleUsage)

	for _, e := range entries {
		ey, em, ed := e.CalculatedAt.UTC().Date()
		if ey == y && em == m && ed == d {
			stats.CalculationsToday++
		}
		if e.Approved {
			stats.TotalFinesIssued++
		}
		stats.TotalAmountCalculated = stats.TotalAmountCalculated.Add(e.Result.FinalAmount)
		stats.CalculationsByType[e.Input.ViolationType]++
		stats.CalculationsByUser[e.CalculatedBy]++

		u, ok := usage[e.RuleID]
		if !ok {
			u = &RuleUsage{RuleID: e.RuleID, ViolationType: e.Input.ViolationType}
			usage[e.RuleID] = u
		}
		u.Count++
	}

	if len(entries) > 0 {
		stats.AverageAmount = stats.TotalAmountCalculated.Div(decimal.NewFromInt(int64(len(entries)))).Round(2)
	}

	for _, u := range usage {
		stats.MostUsedRules = append(stats.MostUsedRules, *u)
	}
	sort.Slice(stats.MostUsedRules, func(i, j int) bool {
		a, b := stats.MostUsedRules[i], stats.MostUsedRules[j]
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		return a.RuleID < b.RuleID
	})
	if len(stats.MostUsedRules) > MostUsedLimit {
		stats.MostUsedRules = stats.MostUsedRules[:MostUsedLimit]
	}
	return stats
}
