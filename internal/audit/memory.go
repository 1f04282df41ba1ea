package audit

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/paroquia-cms/paroquia-cms/internal/shared"
)

// MemoryLog keeps audit entries in process. It records like
// shared.AuditLogger and reads like PGRepository.
type MemoryLog struct {
	mu      sync.RWMutex
	entries []TimelineRow
	now     func() time.Time
}

// NewMemoryLog returns an empty log. nil now uses time.Now.
func NewMemoryLog(now func() time.Time) *MemoryLog {
	if now == nil {
		now = time.Now
	}
	return &MemoryLog{now: now}
}

// Record implements shared.AuditRecorder.
func (l *MemoryLog) Record(_ context.Context, entry shared.AuditLog) error {
	if entry.Action == "" || entry.Entity == "" || entry.EntityID == "" {
		return errors.New("audit log requires action/entity/entity_id")
	}
	at := entry.At
	if at.IsZero() {
		at = l.now()
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, TimelineRow{
		At:       at,
		ActorID:  entry.ActorID,
		Action:   entry.Action,
		Entity:   entry.Entity,
		EntityID: entry.EntityID,
		Meta:     entry.Meta,
	})
	return nil
}

// Window implements Repository.
func (l *MemoryLog) Window(_ context.Context, filters TimelineFilters, limit, offset int) ([]TimelineRow, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := []TimelineRow{}
	skipped := 0
	for i := len(l.entries) - 1; i >= 0; i-- {
		row := l.entries[i]
		if !filters.matches(row) {
			continue
		}
		if skipped < offset {
			skipped++
			continue
		}
		out = append(out, row)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

var (
	_ shared.AuditRecorder = (*MemoryLog)(nil)
	_ Repository           = (*MemoryLog)(nil)
)
