package ingest

import (
	"context"
	"strings"

	"github.com/david/volunteermd/internal/models"
)

// Filter narrows the opportunity list. Empty fields place no constraint.
type Filter struct {
	Location       string
	Subject        string
	TimeCommitment string
	Search         string
}

func (f Filter) IsZero() bool {
	return f.Location == "" && f.Subject == "" && f.TimeCommitment == "" && f.Search == ""
}

// Match reports whether o satisfies every constraint of f. Dimension values
// compare exactly; Search is a case-insensitive substring of any searchable
// field.
func (f Filter) Match(o models.Opportunity) bool {
	return f.matcher()(o)
}

func (f Filter) matcher() func(models.Opportunity) bool {
	search := strings.ToLower(strings.TrimSpace(f.Search))
	return func(o models.Opportunity) bool {
		if f.Location != "" && o.Location != f.Location {
			return false
		}
		if f.Subject != "" && o.Subject != f.Subject {
			return false
		}
		if f.TimeCommitment != "" && o.TimeCommitment != f.TimeCommitment {
			return false
		}
		if search == "" {
			return true
		}
		for _, field := range []string{
			o.Title,
			o.Description,
			o.Location,
			o.Subject,
			o.TimeCommitment,
			o.Organization,
			strings.Join(o.Requirements, " "),
		} {
			if containsFold(field, search) {
				return true
			}
		}
		return false
	}
}

// Filter returns the cached opportunities matching f, in list order.
func (c *Cache) Filter(ctx context.Context, f Filter) ([]models.Opportunity, error) {
	items, err := c.Opportunities(ctx, false)
	if err != nil {
		return nil, err
	}
	match := f.matcher()
	out := []models.Opportunity{}
	for _, item := range items {
		if match(item) {
			out = append(out, item)
		}
	}
	return out, nil
}

// FilterOptions lists the distinct values a client can filter on.
type FilterOptions struct {
	Locations []string `json:"locations"`
	Subjects  []string `json:"subjects"`
	Times     []string `json:"times"`
}

func (c *Cache) FilterOptions(ctx context.Context) (FilterOptions, error) {
	items, err := c.Opportunities(ctx, false)
	if err != nil {
		return FilterOptions{}, err
	}
	return FilterOptions{
		Locations: distinctSorted(items, func(o models.Opportunity) string { return o.Location }),
		Subjects:  distinctSorted(items, func(o models.Opportunity) string { return o.Subject }),
		Times:     distinctSorted(items, func(o models.Opportunity) string { return o.TimeCommitment }),
	}, nil
}
