package ingest

import (
	"sort"
	"strings"

	"github.com/david/volunteermd/internal/models"
)

// containsFold reports whether s contains the already lower-cased needle.
func containsFold(s, needle string) bool {
	return strings.Contains(strings.ToLower(s), needle)
}

// distinctSorted collects the non-empty values of field across items.
func distinctSorted(items []models.Opportunity, field func(models.Opportunity) string) []string {
	seen := make(map[string]struct{})
	out := []string{}
	for _, item := range items {
		v := field(item)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

func cloneOpportunities(items []models.Opportunity) []models.Opportunity {
	out := make([]models.Opportunity, len(items))
	copy(out, items)
	return out
}
