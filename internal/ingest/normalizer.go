package ingest

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"regexp"
	"strings"

	"github.com/david/volunteermd/internal/models"
)

// Column synonyms in priority order. Keys match lower-cased headers.
var (
	titleColumns        = []string{"title", "opportunity", "opportunity title", "name"}
	descriptionColumns  = []string{"description", "desc", "details"}
	locationColumns     = []string{"location", "city", "city/region"}
	timeColumns         = []string{"time", "time commitment", "commitment", "schedule"}
	subjectColumns      = []string{"subject", "category", "focus area"}
	linkColumns         = []string{"link", "url", "application link"}
	organizationColumns = []string{"organization", "hospital", "org", "partner"}
	logoColumns         = []string{"orglogourl", "logo", "image"}
	requirementColumns  = []string{"requirements", "req", "requirements (semicolon-separated)"}
)

var requirementSeparators = regexp.MustCompile(`[;\n,]`)

// NormalizeRow maps a raw CSV row onto an Opportunity. It reports false for
// rows without a title or without an absolute http(s) link.
func NormalizeRow(row map[string]string, src Source) (models.Opportunity, bool) {
	title := coalesce(row, titleColumns)
	link := coalesce(row, linkColumns)
	if title == "" || !isHTTPURL(link) {
		return models.Opportunity{}, false
	}

	organization := coalesce(row, organizationColumns)
	location := coalesce(row, locationColumns)

	return models.Opportunity{
		ID:             MakeID(src.Key, title, organization, location, link),
		Title:          title,
		Description:    coalesce(row, descriptionColumns),
		Location:       location,
		TimeCommitment: coalesce(row, timeColumns),
		Subject:        coalesce(row, subjectColumns),
		Link:           link,
		Requirements:   splitRequirements(coalesce(row, requirementColumns)),
		Organization:   organization,
		OrgLogo:        coalesce(row, logoColumns),
		SourceKey:      src.Key,
		SourceName:     src.Name,
	}, true
}

// MakeID derives a stable 12 character id from the given parts.
func MakeID(parts ...string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(strings.Join(parts, "|"))))
	return hex.EncodeToString(sum[:])[:12]
}

// coalesce returns the first non-empty trimmed value among keys.
func coalesce(row map[string]string, keys []string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(row[k]); v != "" {
			return v
		}
	}
	return ""
}

func splitRequirements(s string) []string {
	out := []string{}
	if strings.TrimSpace(s) == "" {
		return out
	}
	for _, part := range requirementSeparators.Split(s, -1) {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func isHTTPURL(raw string) bool {
	if raw == "" {
		return false
	}
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
