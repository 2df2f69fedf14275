package access

import "context"

// CaseStatistics counts cases by status and priority.
type CaseStatistics struct {
	Total        int                `json:"total"`
	Pending      int                `json:"pending"`
	InProgress   int                `json:"in_progress"`
	Completed    int                `json:"completed"`
	HighPriority int                `json:"high_priority"`
	ByStatus     map[CaseStatus]int `json:"by_status"`
	ByPriority   map[Priority]int   `json:"by_priority"`
}

// SummarizeCases aggregates the given cases.
func SummarizeCases(cases []Case) CaseStatistics {
	stats := CaseStatistics{
		Total:      len(cases),
		ByStatus:   make(map[CaseStatus]int),
		ByPriority: make(map[Priority]int),
	}
	for _, c := range cases {
		stats.ByStatus[c.Status]++
		stats.ByPriority[c.Priority]++
		switch c.Status {
		case StatusPending:
			stats.Pending++
		case StatusInProgress:
			stats.InProgress++
		case StatusCompleted:
			stats.Completed++
		}
		if c.Priority.IsHigh() {
			stats.HighPriority++
		}
	}
	return stats
}

// Dashboard is the per-user landing summary.
type Dashboard struct {
	UserID           string         `json:"user_id"`
	Tier             string         `json:"tier"`
	TotalCases       int            `json:"total_cases"`
	SubordinateCases int            `json:"subordinate_cases"`
	Statistics       CaseStatistics `json:"statistics"`
}

// Dashboard counts the cases userID sees at tier. Status and priority counts
// come from the case repository and stay empty when none is configured.
func (ctl *Controller) Dashboard(ctx context.Context, userID string, tier Tier) (Dashboard, error) {
	visible, err := ctl.CasesForUser(ctx, userID, tier)
	if err != nil {
		return Dashboard{}, err
	}
	subordinate, err := ctl.SubordinateCases(ctx, userID)
	if err != nil {
		return Dashboard{}, err
	}

	var cases []Case
	if ctl.Cases != nil {
		for _, id := range visible {
			c, err := ctl.Cases.GetCase(ctx, id)
			if IsNotFound(err) {
				continue
			}
			if err != nil {
				return Dashboard{}, err
			}
			cases = append(cases, c)
		}
	}

	return Dashboard{
		UserID:           userID,
		Tier:             tier.String(),
		TotalCases:       len(visible),
		SubordinateCases: len(subordinate),
		Statistics:       SummarizeCases(cases),
	}, nil
}
