package idempotency

import (
	"context"
	"sync"

	"github.com/ayo6706/treasury-governance/internal/repository"
	"github.com/jackc/pgx/v5"
)

// MemoryKeys is an in-process KeyStore for deployments without Postgres. Reserved
// and finalized keys live until the process exits.
type MemoryKeys struct {
	mu   sync.Mutex
	rows map[string]repository.IdempotencyKeyRow
}

func NewMemoryKeys() *MemoryKeys {
	return &MemoryKeys{rows: make(map[string]repository.IdempotencyKeyRow)}
}

func (m *MemoryKeys) GetIdempotencyKey(_ context.Context, key string) (repository.IdempotencyKeyRow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[key]
	if !ok {
		return repository.IdempotencyKeyRow{}, pgx.ErrNoRows
	}
	return row, nil
}

func (m *MemoryKeys) ReserveIdempotencyKey(_ context.Context, key, hash, method, path string) (repository.IdempotencyKeyRow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[key]; ok {
		return repository.IdempotencyKeyRow{}, pgx.ErrNoRows
	}
	row := repository.IdempotencyKeyRow{IdempotencyKey: key, RequestHash: hash, Method: method, Path: path, InProgress: true}
	m.rows[key] = row
	return row, nil
}

func (m *MemoryKeys) FinalizeIdempotencyKey(_ context.Context, key, hash string, status int32, body []byte, contentType string) (repository.IdempotencyKeyRow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[key]
	if !ok || row.RequestHash != hash || !row.InProgress {
		return repository.IdempotencyKeyRow{}, pgx.ErrNoRows
	}
	row.ResponseStatus, row.ResponseBody, row.ContentType, row.InProgress = status, body, contentType, false
	m.rows[key] = row
	return row, nil
}

func (m *MemoryKeys) ReleaseIdempotencyKey(_ context.Context, key, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if row, ok := m.rows[key]; ok && row.RequestHash == hash && row.InProgress {
		delete(m.rows, key)
	}
	return nil
}
