package semanticscholar

// Author is the Graph API author object restricted to authorFields.
type Author struct {
	AuthorID      string `json:"authorId"`
	Name          string `json:"name"`
	URL           string `json:"url"`
	HIndex        *int   `json:"hIndex"`
	CitationCount *int   `json:"citationCount"`
	PaperCount    *int   `json:"paperCount"`
}

// ErrorResponse is the body of a Graph API error.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}
