package helpers

import (
	"sort"

	"github.com/doeshing/hookgate/internal/domain"
)

// RuleStatistic is the number of audit entries a rule matched.
type RuleStatistic struct {
	Rule  string
	Count int
}

// AuditSummary aggregates a window of audit entries.
type AuditSummary struct {
	Total    int
	Outcomes map[domain.Outcome]int
	Rules    map[string]int
	Sessions int
	Notes    int
}

// SummarizeEntries counts outcomes, rule matches and sessions.
func SummarizeEntries(entries []domain.LogEntry) AuditSummary {
	summary := AuditSummary{
		Total:    len(entries),
		Outcomes: make(map[domain.Outcome]int),
		Rules:    make(map[string]int),
	}
	sessions := make(map[string]struct{})
	for _, entry := range entries {
		summary.Outcomes[entry.Outcome]++
		for _, name := range entry.MatchedRules {
			summary.Rules[name]++
		}
		if entry.SessionID != "" {
			sessions[entry.SessionID] = struct{}{}
		}
		summary.Notes += len(entry.Notes)
	}
	summary.Sessions = len(sessions)
	return summary
}

// CalculateTopRules returns the top N most frequently matched rules.
// If limit is 0 or negative, returns all rules
func CalculateTopRules(frequency map[string]int, limit int) []RuleStatistic {
	stats := convertFrequencyMapToStatistics(frequency)
	sortStatisticsByFrequency(stats)

	if shouldLimitResults(limit, len(stats)) {
		return stats[:limit]
	}
	return stats
}

func convertFrequencyMapToStatistics(frequency map[string]int) []RuleStatistic {
	stats := make([]RuleStatistic, 0, len(frequency))
	for rule, count := range frequency {
		stats = append(stats, RuleStatistic{Rule: rule, Count: count})
	}
	return stats
}

// sortStatisticsByFrequency sorts by count (descending) then by rule name (ascending)
func sortStatisticsByFrequency(stats []RuleStatistic) {
	sort.Slice(stats, func(i, j int) bool {
		if stats[i].Count == stats[j].Count {
			return stats[i].Rule < stats[j].Rule
		}
		return stats[i].Count > stats[j].Count
	})
}

func shouldLimitResults(limit int, actualLength int) bool {
	return limit > 0 && actualLength > limit
}

// CalculateRate returns part as a percentage of total.
func CalculateRate(part int, total int) float64 {
	if total == 0 {
		return 0.0
	}
	return float64(part) / float64(total) * 100.0
}
