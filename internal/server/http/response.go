package httpserver

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/helixir/scientometrics-service/internal/domain"
)

// refreshRequest is the JSON body of POST /metrics/refresh.
type refreshRequest struct {
	RequestedSources sourceList `json:"requested_sources" validate:"max=16,dive,required,max=64"`
}

// sourceList accepts either a single source name or a list of names.
type sourceList []string

// UnmarshalJSON implements json.Unmarshaler.
func (l *sourceList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*l = nil
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var one string
		if err := json.Unmarshal(data, &one); err != nil {
			return err
		}
		if strings.TrimSpace(one) == "" {
			*l = nil
			return nil
		}
		*l = sourceList{one}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return fmt.Errorf("requested_sources must be a string or a list of strings")
	}
	*l = many
	return nil
}

// statusRequest is the JSON body of PUT /metrics/{source}/status.
type statusRequest struct {
	Status string `json:"status" validate:"required,oneof=pending ok error"`
}

type sourcesResponse struct {
	Sources        []string `json:"sources"`
	ShowOnUserPage bool     `json:"show_on_user_page"`
}

type metricsResponse struct {
	UserRef string                                 `json:"user"`
	Metrics map[domain.Source]*domain.MetricRecord `json:"metrics"`
}

type refreshResponse struct {
	UserRef string                           `json:"user"`
	Results map[domain.Source]domain.Metrics `json:"results"`
}

type deleteResponse struct {
	UserRef string `json:"user"`
	Deleted int64  `json:"deleted"`
}

type authorIDsResponse struct {
	UserID    string            `json:"user_id"`
	UserName  string            `json:"user_name,omitempty"`
	AuthorIDs map[string]string `json:"author_ids"`
}

// authorIDKeys converts identifiers to their profile keys.
func authorIDKeys(ids domain.AuthorIdentifiers) map[string]string {
	out := make(map[string]string, len(ids))
	for src, id := range ids {
		out[src.AuthorIDKey()] = id
	}
	return out
}
