package repository

import (
	"context"
	"sync"

	"github.com/akudrin/ipkeeper/internal/models"
)

// MemoryStore keeps records in process memory. Used when no database DSN is
// configured, and as the store in tests.
type MemoryStore struct {
	mu      sync.RWMutex
	records []models.AddressRecord
	nextID  int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{nextID: 1}
}

func (m *MemoryStore) Exists(ctx context.Context, ownerID, value string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, rec := range m.records {
		if rec.UserID == ownerID && (rec.IPAddress == value || rec.CIDR == value) {
			return true, nil
		}
	}
	return false, nil
}

func (m *MemoryStore) Insert(ctx context.Context, ownerID, value string, isCIDR bool) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, rec := range m.records {
		if rec.UserID == ownerID && (rec.IPAddress == value || rec.CIDR == value) {
			return 0, ErrDuplicate
		}
	}

	rec := models.AddressRecord{
		ID:     m.nextID,
		UserID: ownerID,
	}
	if isCIDR {
		rec.CIDR = value
	} else {
		rec.IPAddress = value
	}

	m.nextID++
	m.records = append(m.records, rec)
	return rec.ID, nil
}

func (m *MemoryStore) DeleteByValue(ctx context.Context, ownerID, value string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var deleted int64
	kept := m.records[:0]
	for _, rec := range m.records {
		if rec.UserID == ownerID && (rec.IPAddress == value || rec.CIDR == value) {
			deleted++
			continue
		}
		kept = append(kept, rec)
	}
	m.records = kept
	return deleted, nil
}

func (m *MemoryStore) Page(ctx context.Context, offset, limit int) ([]models.AddressRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if offset < 0 || offset >= len(m.records) {
		return []models.AddressRecord{}, nil
	}

	end := offset + limit
	if end > len(m.records) {
		end = len(m.records)
	}

	page := make([]models.AddressRecord, end-offset)
	copy(page, m.records[offset:end])
	return page, nil
}

func (m *MemoryStore) ScanAll(ctx context.Context) ([]models.AddressRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	all := make([]models.AddressRecord, len(m.records))
	copy(all, m.records)
	return all, nil
}

func (m *MemoryStore) Count(ctx context.Context) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return int64(len(m.records)), nil
}

func (m *MemoryStore) Ping(ctx context.Context) error {
	return nil
}

func (m *MemoryStore) Close() error {
	return nil
}
