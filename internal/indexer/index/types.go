// Package index defines the documents, requests and hits that flow between
// the pipeline, the stores and the query engine.
package index

import (
	"github.com/Adithya-Monish-Kumar-K/hugin/internal/indexer/tokenizer"
)

// IndexDocument identifies one indexed item. It is never mutated; indexing
// the same DocID again adds entries alongside the earlier ones.
type IndexDocument struct {
	Owner       string `json:"owner"`
	NamespaceID string `json:"namespaceId"`
	DocID       string `json:"docId"`
	DocName     string `json:"docName"`
	URI         string `json:"uri"`
}

// DocumentWithTokens is the unit of work handed to a Sink.
type DocumentWithTokens struct {
	Doc    IndexDocument
	Tokens []tokenizer.Token
}

// SearchRequest asks for one exact term across an allow-list of namespaces.
type SearchRequest struct {
	Namespaces []string `json:"namespaces"`
	Query      string   `json:"query"`
}

// SearchHit is one docId found under a term in a namespace.
type SearchHit struct {
	DocID       string `json:"docId"`
	NamespaceID string `json:"namespaceId"`
	Token       string `json:"token"`
}

// SearchHits is ordered by the request's namespace order, then by insertion
// order within a namespace.
type SearchHits []SearchHit

// DocIDs flattens hits into their docIds, keeping order and duplicates.
func (h SearchHits) DocIDs() []string {
	ids := make([]string, len(h))
	for i, hit := range h {
		ids[i] = hit.DocID
	}
	return ids
}
