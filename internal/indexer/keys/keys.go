// Package keys defines the on-disk key schema of the inverted index.
//
// A key is namespace + "|" + token and its value is a ","-joined list of
// docIds. Keys compare as unsigned bytes, which keeps every namespace in its
// own contiguous range.
package keys

import (
	"bytes"
	"fmt"
	"sort"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/hugin/internal/indexer/index"
	apperrors "github.com/Adithya-Monish-Kumar-K/hugin/pkg/errors"
)

const (
	// Delimiter separates namespace from token inside a key.
	Delimiter = '|'
	// ValueDelimiter separates docIds inside a value.
	ValueDelimiter = ','
)

// Encode builds the key for token in namespace. Nothing is escaped.
func Encode(token, namespace string) []byte {
	key := make([]byte, 0, len(namespace)+1+len(token))
	key = append(key, namespace...)
	key = append(key, Delimiter)
	key = append(key, token...)
	return key
}

// Decode splits key at its first delimiter.
func Decode(key []byte) (namespace, token string, ok bool) {
	i := bytes.IndexByte(key, Delimiter)
	if i < 0 {
		return "", "", false
	}
	return string(key[:i]), string(key[i+1:]), true
}

// Compare orders keys as unsigned byte strings.
func Compare(a, b []byte) int {
	return bytes.Compare(a, b)
}

// Validate rejects identifiers that would corrupt key or value boundaries.
// Tokens are not checked: once the namespace is delimiter-free the first
// '|' always ends it. An empty docId is rejected because values drop empty
// segments, so it could never be read back.
func Validate(namespace, docID string) error {
	if err := ValidateNamespace(namespace); err != nil {
		return err
	}
	if docID == "" {
		return fmt.Errorf("empty doc id in namespace %q: %w", namespace, apperrors.ErrInvalidInput)
	}
	if strings.IndexByte(docID, ValueDelimiter) >= 0 {
		return fmt.Errorf("doc id %q: %w", docID, apperrors.ErrDelimiterCollision)
	}
	return nil
}

// ValidateNamespace rejects an empty namespace or one containing Delimiter.
func ValidateNamespace(namespace string) error {
	if namespace == "" {
		return fmt.Errorf("empty namespace: %w", apperrors.ErrInvalidInput)
	}
	if strings.IndexByte(namespace, Delimiter) >= 0 {
		return fmt.Errorf("namespace %q: %w", namespace, apperrors.ErrDelimiterCollision)
	}
	return nil
}

// SplitValue breaks a stored value into docIds. Empty segments are dropped.
func SplitValue(value []byte) []string {
	if len(value) == 0 {
		return nil
	}
	parts := strings.Split(string(value), string(ValueDelimiter))
	ids := parts[:0]
	for _, p := range parts {
		if p != "" {
			ids = append(ids, p)
		}
	}
	return ids
}

// InsertionToken is one key/value pair appended to a store.
type InsertionToken struct {
	Key   []byte
	Value []byte
}

// FromDocument derives one InsertionToken per token of d.
func FromDocument(d index.DocumentWithTokens) []InsertionToken {
	out := make([]InsertionToken, 0, len(d.Tokens))
	docID := []byte(d.Doc.DocID)
	for _, tok := range d.Tokens {
		out = append(out, InsertionToken{
			Key:   Encode(tok.Value, d.Doc.NamespaceID),
			Value: docID,
		})
	}
	return out
}

// PrepareBatch flattens docs into InsertionTokens sorted ascending by key.
// The sort is stable, so equal keys keep document order.
func PrepareBatch(docs []index.DocumentWithTokens) []InsertionToken {
	n := 0
	for _, d := range docs {
		n += len(d.Tokens)
	}
	out := make([]InsertionToken, 0, n)
	for _, d := range docs {
		out = append(out, FromDocument(d)...)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return Compare(out[i].Key, out[j].Key) < 0
	})
	return out
}

// ValidateBatch checks every document in docs.
func ValidateBatch(docs []index.DocumentWithTokens) error {
	for _, d := range docs {
		if err := Validate(d.Doc.NamespaceID, d.Doc.DocID); err != nil {
			return err
		}
	}
	return nil
}
