package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// SearchIn renders an OData search.in clause over an array field, using the
// pipe delimiter so values containing commas survive intact.
func SearchIn(field string, values []string) string {
	cleaned := make([]string, 0, len(values))
	for _, value := range values {
		value = strings.TrimSpace(strings.ReplaceAll(value, "'", "''"))
		if value != "" {
			cleaned = append(cleaned, value)
		}
	}
	return fmt.Sprintf("search.in(%s, '%s', '|')", field, strings.Join(cleaned, "|"))
}

// AndFilters joins non-empty OData filter clauses with "and".
func AndFilters(clauses ...string) string {
	parts := make([]string, 0, len(clauses))
	for _, clause := range clauses {
		if strings.TrimSpace(clause) != "" {
			parts = append(parts, clause)
		}
	}
	return strings.Join(parts, " and ")
}

// FacetQuery asks the search index for facet counts without returning
// documents; Top is always forced to zero.
type FacetQuery struct {
	Filter string
	Facets []string
	Count  int
}

// FacetValue is one aggregated attribute value with its matching product count.
type FacetValue struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

type searchRequest struct {
	Filter string   `json:"filter,omitempty"`
	Facets []string `json:"facets"`
	Top    int      `json:"top"`
}

type searchResponse struct {
	Facets map[string][]FacetValue `json:"facets"`
}

const defaultFacetCount = 50

// SearchFacets runs a facet-only search and returns the aggregation per facet
// field.
func (c *Client) SearchFacets(ctx context.Context, query FacetQuery) (map[string][]FacetValue, error) {
	if len(query.Facets) == 0 {
		return nil, errors.New("catalog: facet query requires facets")
	}

	count := query.Count
	if count <= 0 {
		count = defaultFacetCount
	}
	facets := make([]string, 0, len(query.Facets))
	for _, facet := range query.Facets {
		facet = strings.TrimSpace(facet)
		if facet == "" {
			continue
		}
		if !strings.Contains(facet, ",count:") {
			facet = fmt.Sprintf("%s,count:%d", facet, count)
		}
		facets = append(facets, facet)
	}

	req, err := c.newJSONRequest(ctx, http.MethodPost, "/search", searchRequest{
		Filter: query.Filter,
		Facets: facets,
		Top:    0,
	})
	if err != nil {
		return nil, err
	}
	resp, err := c.do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.errorFromResponse(resp)
	}

	var payload searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("catalog: decode facets: %w", err)
	}

	out := make(map[string][]FacetValue, len(payload.Facets))
	for field, values := range payload.Facets {
		// Facet keys may echo the ,count suffix; strip it for callers.
		if idx := strings.Index(field, ",count:"); idx >= 0 {
			field = field[:idx]
		}
		out[field] = values
	}
	return out, nil
}
