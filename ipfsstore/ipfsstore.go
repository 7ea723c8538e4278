// Package ipfsstore models the IPFS content store as a typed interface at
// its boundary with the observer; the content store itself is an external
// collaborator this package never implements. Content is addressed by CID
// (github.com/ipfs/go-cid).
package ipfsstore

import (
	"context"

	"github.com/ipfs/go-cid"
)

// ResultKind discriminates the five outcomes a read against the content
// store can produce.
type ResultKind int

const (
	// Found indicates the payload was retrieved successfully.
	Found ResultKind = iota
	// NotFound indicates the store has no object for that CID.
	NotFound
	// Timeout indicates the store did not respond before the deadline.
	Timeout
	// TooLarge indicates the object exceeds the configured size limit.
	TooLarge
	// NotAFile indicates the CID resolves to a directory or other
	// non-file DAG node.
	NotAFile
)

// ReadResult is the outcome of a Store.Read call.
type ReadResult struct {
	Kind    ResultKind
	Payload []byte
}

// Store is the content-addressed read/write interface the observer's
// anchor-file handling depends on. It is a separate microservice in
// production; this package only sketches the interface and a deterministic
// in-memory fake for tests.
type Store interface {
	Read(ctx context.Context, id cid.Cid, maxSizeBytes int) ReadResult
	Write(ctx context.Context, payload []byte) (cid.Cid, error)
}
