package index

import "context"

// Sink accepts committed batches of tokenized documents. The online store,
// the in-memory store and the bulk collector all implement it.
type Sink interface {
	InsertBatch(ctx context.Context, docs []DocumentWithTokens) error
}

// Querier answers SearchRequests.
type Querier interface {
	Query(ctx context.Context, req SearchRequest) (SearchHits, error)
}

// Store is a Sink that can also be queried.
type Store interface {
	Sink
	Querier
}
