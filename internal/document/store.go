package document

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"

	"github.com/grachmannico95/invoice-proof/internal/domain"
)

// Store keeps invoice source documents addressed by the hex sha256 of
// their contents. Putting the same bytes twice is a no-op.
type Store interface {
	Put(ctx context.Context, contents []byte, contentType string) (string, error)
	Get(ctx context.Context, hash string) ([]byte, error)
}

func Hash(contents []byte) string {
	sum := sha256.Sum256(contents)
	return hex.EncodeToString(sum[:])
}

type MemoryStore struct {
	mu   sync.RWMutex
	docs map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{docs: make(map[string][]byte)}
}

func (s *MemoryStore) Put(ctx context.Context, contents []byte, contentType string) (string, error) {
	if len(contents) == 0 {
		return "", domain.NewError(domain.KindMalformedInput, "document is empty")
	}

	hash := Hash(contents)

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.docs[hash]; !ok {
		s.docs[hash] = append([]byte(nil), contents...)
	}
	return hash, nil
}

func (s *MemoryStore) Get(ctx context.Context, hash string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.docs[hash]
	if !ok {
		return nil, domain.Errorf(domain.KindNotFound, "document %s", hash)
	}
	return append([]byte(nil), doc...), nil
}
