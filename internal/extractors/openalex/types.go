package openalex

// Author is the subset of the OpenAlex author object the extractor reads.
// See https://docs.openalex.org/api-entities/authors/author-object
type Author struct {
	ID           string        `json:"id"`
	DisplayName  string        `json:"display_name"`
	ORCID        string        `json:"orcid,omitempty"`
	WorksCount   *int          `json:"works_count"`
	CitedByCount *int          `json:"cited_by_count"`
	SummaryStats *SummaryStats `json:"summary_stats"`
}

// SummaryStats holds the author's citation indices.
type SummaryStats struct {
	HIndex   *int `json:"h_index"`
	I10Index *int `json:"i10_index"`
}
