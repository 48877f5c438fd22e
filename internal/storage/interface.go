package storage

import "context"

// DocumentStore is the external collaborator that keeps uploaded receipt
// files. The core hands it raw bytes and stores only the returned reference
// URL; retrieval and retention are the store's problem.
type DocumentStore interface {
	// Store persists the file contents under a caller-chosen key and returns
	// a stable reference URL.
	Store(ctx context.Context, key string, contents []byte) (string, error)

	// Delete removes a stored file. Missing files are not an error.
	Delete(ctx context.Context, key string) error
}
