package api

import (
	"strings"

	"github.com/snapgraph/snapgraph/pkg/services"
)

// maxNameLength bounds a person name accepted over the API.
const maxNameLength = 120

// ParseRequest is the body of POST /chat/parse.
type ParseRequest struct {
	Query string `json:"query"`
}

// Validate checks the parse request.
func (r *ParseRequest) Validate() error {
	if strings.TrimSpace(r.Query) == "" {
		return services.NewValidationError("query", "query is required")
	}
	return nil
}

// QueryRequest is the body of POST /chat/query.
type QueryRequest struct {
	PersonA string `json:"personA"`
	PersonB string `json:"personB"`
}

// Validate checks both names are present, distinct and of sane length.
func (r *QueryRequest) Validate() error {
	r.PersonA = strings.TrimSpace(r.PersonA)
	r.PersonB = strings.TrimSpace(r.PersonB)

	if r.PersonA == "" {
		return services.NewValidationError("personA", "personA is required")
	}
	if r.PersonB == "" {
		return services.NewValidationError("personB", "personB is required")
	}
	if len(r.PersonA) > maxNameLength {
		return services.NewValidationError("personA", "name is too long")
	}
	if len(r.PersonB) > maxNameLength {
		return services.NewValidationError("personB", "name is too long")
	}
	if strings.EqualFold(r.PersonA, r.PersonB) {
		return services.NewValidationError("personB", "personA and personB must differ")
	}
	return nil
}
