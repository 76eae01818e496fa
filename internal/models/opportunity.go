package models

// Opportunity is a normalized volunteer listing. String fields are never
// null: an absent value is the empty string.
type Opportunity struct {
	ID             string   `json:"id"`
	Title          string   `json:"title"`
	Description    string   `json:"description"`
	Location       string   `json:"location"`
	TimeCommitment string   `json:"timeCommitment"`
	Subject        string   `json:"subject"`
	Link           string   `json:"link"`
	Requirements   []string `json:"requirements"`
	Organization   string   `json:"organization"`
	OrgLogo        string   `json:"orgLogo"`
	SourceKey      string   `json:"sourceKey"`
	SourceName     string   `json:"sourceName"`
}
