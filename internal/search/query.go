package search

import (
	"context"
	"fmt"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"
)

// Params configures a search.
type Params struct {
	Query string

	// Filters
	Classification string
	Tags           []string // any of
	MinYear        int
	MaxYear        int

	Limit  int
	Offset int

	SortBy    string // "relevance", "title", "author", "year", "recent"
	SortOrder string // "asc", "desc"

	IncludeFacets bool
}

// DefaultParams returns the defaults used by the API.
func DefaultParams() Params {
	return Params{
		Limit:     20,
		SortBy:    "relevance",
		SortOrder: "desc",
	}
}

// Result is one page of hits.
type Result struct {
	Query  string `json:"query"`
	Total  uint64 `json:"total"`
	TookMs int64  `json:"took_ms"`
	Hits   []Hit  `json:"hits"`
	Facets Facets `json:"facets,omitzero"`
}

// Hit is a matching book.
type Hit struct {
	ID            string            `json:"id"`
	Score         float64           `json:"score"`
	Title         string            `json:"title"`
	Author        string            `json:"author,omitempty"`
	ISBN          string            `json:"isbn,omitempty"`
	PublisherName string            `json:"publisher_name,omitempty"`
	Year          int               `json:"year,omitempty"`
	Highlights    map[string]string `json:"highlights,omitempty"`
}

// Facets holds counts for the keyword fields.
type Facets struct {
	Classifications []FacetCount `json:"classifications,omitempty"`
	Tags            []FacetCount `json:"tags,omitempty"`
}

// FacetCount is a facet value and how many hits carry it.
type FacetCount struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// Search runs a query against the index.
func (s *Index) Search(ctx context.Context, params Params) (*Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if params.Limit <= 0 {
		params.Limit = DefaultParams().Limit
	}

	req := bleve.NewSearchRequestOptions(buildQuery(params), params.Limit, params.Offset, false)
	addSorting(req, params)
	if params.IncludeFacets {
		req.AddFacet("classification", bleve.NewFacetRequest("classification", 20))
		req.AddFacet("tags", bleve.NewFacetRequest("tags", 20))
	}
	req.Highlight = bleve.NewHighlight()
	req.Highlight.AddField("title")
	req.Highlight.AddField("author")
	req.Fields = []string{"title", "author", "isbn", "publisher_name", "year"}

	res, err := s.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("execute search: %w", err)
	}

	out := &Result{
		Query:  params.Query,
		Total:  res.Total,
		TookMs: res.Took.Milliseconds(),
		Hits:   make([]Hit, 0, len(res.Hits)),
	}
	for _, h := range res.Hits {
		hit := Hit{ID: h.ID, Score: h.Score}
		hit.Title, _ = h.Fields["title"].(string)
		hit.Author, _ = h.Fields["author"].(string)
		hit.ISBN, _ = h.Fields["isbn"].(string)
		hit.PublisherName, _ = h.Fields["publisher_name"].(string)
		if y, ok := h.Fields["year"].(float64); ok {
			hit.Year = int(y)
		}
		if len(h.Fragments) > 0 {
			hit.Highlights = make(map[string]string, len(h.Fragments))
			for field, fragments := range h.Fragments {
				if len(fragments) > 0 {
					hit.Highlights[field] = fragments[0]
				}
			}
		}
		out.Hits = append(out.Hits, hit)
	}

	if params.IncludeFacets {
		out.Facets = Facets{
			Classifications: facetCounts(res, "classification"),
			Tags:            facetCounts(res, "tags"),
		}
	}
	return out, nil
}

// buildQuery combines the text query (any field) with the filters (all).
func buildQuery(params Params) query.Query {
	var queries []query.Query

	if q := strings.TrimSpace(params.Query); q != "" {
		titleMatch := bleve.NewMatchQuery(q)
		titleMatch.SetField("title")
		titleMatch.SetBoost(3.0)

		authorMatch := bleve.NewMatchQuery(q)
		authorMatch.SetField("author")
		authorMatch.SetBoost(2.0)

		publisherMatch := bleve.NewMatchQuery(q)
		publisherMatch.SetField("publisher_name")

		// Codes are keywords; only the exact code matches.
		isbnTerm := bleve.NewTermQuery(q)
		isbnTerm.SetField("isbn")
		isbnTerm.SetBoost(5.0)

		codeTerm := bleve.NewTermQuery(q)
		codeTerm.SetField("other_code")
		codeTerm.SetBoost(4.0)

		fuzzy := bleve.NewFuzzyQuery(strings.ToLower(q))
		fuzzy.SetFuzziness(1)
		fuzzy.SetField("title")
		fuzzy.SetBoost(0.8)

		text := []query.Query{titleMatch, authorMatch, publisherMatch, isbnTerm, codeTerm, fuzzy}
		if len(q) >= 2 {
			prefix := bleve.NewPrefixQuery(strings.ToLower(q))
			prefix.SetField("title")
			prefix.SetBoost(0.5)
			text = append(text, prefix)
		}
		queries = append(queries, bleve.NewDisjunctionQuery(text...))
	}

	if params.Classification != "" {
		tq := bleve.NewTermQuery(params.Classification)
		tq.SetField("classification")
		queries = append(queries, tq)
	}

	if len(params.Tags) > 0 {
		tagQueries := make([]query.Query, len(params.Tags))
		for i, tag := range params.Tags {
			tq := bleve.NewTermQuery(tag)
			tq.SetField("tags")
			tagQueries[i] = tq
		}
		queries = append(queries, bleve.NewDisjunctionQuery(tagQueries...))
	}

	if params.MinYear > 0 || params.MaxYear > 0 {
		var lo, hi *float64
		if params.MinYear > 0 {
			v := float64(params.MinYear)
			lo = &v
		}
		if params.MaxYear > 0 {
			v := float64(params.MaxYear)
			hi = &v
		}
		inclusive := true
		rq := bleve.NewNumericRangeInclusiveQuery(lo, hi, &inclusive, &inclusive)
		rq.SetField("year")
		queries = append(queries, rq)
	}

	switch len(queries) {
	case 0:
		return bleve.NewMatchAllQuery()
	case 1:
		return queries[0]
	default:
		return bleve.NewConjunctionQuery(queries...)
	}
}

func addSorting(req *bleve.SearchRequest, params Params) {
	desc := params.SortOrder == "desc"
	order := func(fields ...string) []string {
		if !desc {
			return fields
		}
		out := make([]string, len(fields))
		for i, f := range fields {
			out[i] = "-" + f
		}
		return out
	}

	switch params.SortBy {
	case "title":
		req.SortBy(order("title"))
	case "author":
		req.SortBy(order("author", "title"))
	case "year":
		req.SortBy(order("year", "title"))
	case "recent":
		req.SortBy(order("updated_at"))
	default:
		req.SortBy([]string{"-_score"})
	}
}

func facetCounts(res *bleve.SearchResult, name string) []FacetCount {
	facet, ok := res.Facets[name]
	if !ok || facet.Terms == nil {
		return nil
	}
	var out []FacetCount
	for _, term := range facet.Terms.Terms() {
		out = append(out, FacetCount{Value: term.Term, Count: term.Count})
	}
	return out
}
