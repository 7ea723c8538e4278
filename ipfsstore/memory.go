package ipfsstore

import (
	"context"
	"sync"

	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"
)

// MemoryStore is a deterministic, process-local Store used by tests in
// place of the real IPFS microservice. Timeout/TooLarge/NotAFile are
// simulated explicitly via MarkTimeout/MarkTooLarge/MarkNotAFile so
// tests can exercise those branches without a real DAG.
type MemoryStore struct {
	mu        sync.Mutex
	objects   map[string][]byte
	tooLarge  map[string]bool
	notAFile  map[string]bool
	timeout   map[string]bool
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		objects:  make(map[string][]byte),
		tooLarge: make(map[string]bool),
		notAFile: make(map[string]bool),
		timeout:  make(map[string]bool),
	}
}

// Write stores payload under its SHA2-256 multihash CID and returns it.
func (s *MemoryStore) Write(_ context.Context, payload []byte) (cid.Cid, error) {
	mh, err := multihash.Sum(payload, multihash.SHA2_256, -1)
	if err != nil {
		return cid.Undef, err
	}
	c := cid.NewCidV1(cid.Raw, mh)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[c.String()] = payload
	return c, nil
}

// Read returns the stored payload for id, or NotFound if it was never
// written (or a simulated failure mode if one was marked via
// MarkTooLarge/MarkNotAFile/MarkTimeout).
func (s *MemoryStore) Read(_ context.Context, id cid.Cid, maxSizeBytes int) ReadResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := id.String()
	if s.timeout[key] {
		return ReadResult{Kind: Timeout}
	}
	if s.notAFile[key] {
		return ReadResult{Kind: NotAFile}
	}

	payload, ok := s.objects[key]
	if !ok {
		return ReadResult{Kind: NotFound}
	}
	if s.tooLarge[key] || (maxSizeBytes > 0 && len(payload) > maxSizeBytes) {
		return ReadResult{Kind: TooLarge}
	}
	return ReadResult{Kind: Found, Payload: payload}
}

// MarkTooLarge makes subsequent reads of id report TooLarge regardless of
// the actual stored size.
func (s *MemoryStore) MarkTooLarge(id cid.Cid) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tooLarge[id.String()] = true
}

// MarkNotAFile makes subsequent reads of id report NotAFile.
func (s *MemoryStore) MarkNotAFile(id cid.Cid) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notAFile[id.String()] = true
}

// MarkTimeout makes subsequent reads of id report Timeout.
func (s *MemoryStore) MarkTimeout(id cid.Cid) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.timeout[id.String()] = true
}
