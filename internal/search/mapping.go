package search

import (
	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/simple"
	"github.com/blevesearch/bleve/v2/analysis/lang/en"
	"github.com/blevesearch/bleve/v2/mapping"
)

// buildIndexMapping creates the mapping for book documents.
//
// Titles and authors use English stemming, publishers the simple analyzer.
// Codes, classification and tags are keywords for exact filtering.
func buildIndexMapping() mapping.IndexMapping {
	indexMapping := bleve.NewIndexMapping()
	indexMapping.DefaultAnalyzer = en.AnalyzerName

	docMapping := bleve.NewDocumentMapping()

	text := func(field, analyzer string, vectors bool) {
		fm := bleve.NewTextFieldMapping()
		fm.Analyzer = analyzer
		fm.Store = true
		fm.IncludeTermVectors = vectors
		docMapping.AddFieldMappingsAt(field, fm)
	}
	number := func(field string) {
		fm := bleve.NewNumericFieldMapping()
		fm.Store = true
		docMapping.AddFieldMappingsAt(field, fm)
	}

	text("title", en.AnalyzerName, true)
	text("author", en.AnalyzerName, true)
	text("publisher_name", simple.Name, false)

	text("id", keyword.Name, false)
	text("isbn", keyword.Name, false)
	text("other_code", keyword.Name, false)
	text("classification", keyword.Name, false)
	text("tags", keyword.Name, false)

	number("year")
	number("updated_at")

	indexMapping.AddDocumentMapping("_default", docMapping)
	return indexMapping
}
