package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	apperrors "github.com/growth-engine/internal/errors"
	"github.com/growth-engine/internal/models"
	"github.com/growth-engine/internal/types"
)

// MemoryProspectStore is a process-local ProspectStore
type MemoryProspectStore struct {
	mu        sync.RWMutex
	prospects map[string]*models.Prospect
	seq       int64
}

// NewMemoryProspectStore creates an empty store
func NewMemoryProspectStore() *MemoryProspectStore {
	return &MemoryProspectStore{prospects: make(map[string]*models.Prospect)}
}

// InsertIfAbsent implements ProspectStore
func (s *MemoryProspectStore) InsertIfAbsent(ctx context.Context, p *models.Prospect) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.prospects[p.UserID]; ok {
		return false, nil
	}
	s.seq++
	p.Seq = s.seq
	cp := *p
	s.prospects[p.UserID] = &cp
	return true, nil
}

// Get implements ProspectStore
func (s *MemoryProspectStore) Get(ctx context.Context, userID string) (*models.Prospect, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.prospects[userID]
	if !ok {
		return nil, apperrors.NewContentNotFoundError("prospect", userID)
	}
	cp := *p
	return &cp, nil
}

// NextQueued implements ProspectStore
func (s *MemoryProspectStore) NextQueued(ctx context.Context) (*models.Prospect, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var next *models.Prospect
	for _, p := range s.prospects {
		if p.Status != types.ProspectQueued {
			continue
		}
		if next == nil || p.FetchedAt.Before(next.FetchedAt) ||
			(p.FetchedAt.Equal(next.FetchedAt) && p.Seq < next.Seq) {
			next = p
		}
	}
	if next == nil {
		return nil, nil
	}
	cp := *next
	return &cp, nil
}

// UpdateProfile implements ProspectStore
func (s *MemoryProspectStore) UpdateProfile(ctx context.Context, p *models.Prospect) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.prospects[p.UserID]
	if !ok {
		return apperrors.NewContentNotFoundError("prospect", p.UserID)
	}
	stored.Username = p.Username
	stored.FullName = p.FullName
	stored.AvatarURL = p.AvatarURL
	stored.IsPrivate = p.IsPrivate
	stored.IsVerified = p.IsVerified
	stored.PostCount = p.PostCount
	stored.FollowerCount = p.FollowerCount
	stored.FollowingCount = p.FollowingCount
	return nil
}

// UpdateStatus implements ProspectStore
func (s *MemoryProspectStore) UpdateStatus(ctx context.Context, userID string, status types.ProspectStatus, reason *string, engagedAt *time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.prospects[userID]
	if !ok {
		return apperrors.NewContentNotFoundError("prospect", userID)
	}
	stored.Status = status
	stored.StatusReason = reason
	if engagedAt != nil {
		t := *engagedAt
		stored.EngagedAt = &t
	}
	return nil
}

// Stats implements ProspectStore
func (s *MemoryProspectStore) Stats(ctx context.Context) (models.QueueStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var stats models.QueueStats
	for _, p := range s.prospects {
		stats.Add(p.Status, 1)
	}
	return stats, nil
}

// MemoryActionLog is a process-local ActionLogStore
type MemoryActionLog struct {
	mu      sync.RWMutex
	entries []models.ActionLogEntry
}

// NewMemoryActionLog creates an empty log
func NewMemoryActionLog() *MemoryActionLog {
	return &MemoryActionLog{}
}

// Append implements ActionLogStore
func (l *MemoryActionLog) Append(ctx context.Context, e *models.ActionLogEntry) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, *e)
	return nil
}

// Query implements ActionLogStore
func (l *MemoryActionLog) Query(ctx context.Context, q models.ActionLogQuery) ([]models.ActionLogEntry, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var out []models.ActionLogEntry
	for _, e := range l.entries {
		if q.TargetID != "" && e.TargetID != q.TargetID {
			continue
		}
		if q.Action != "" && e.Action != q.Action {
			continue
		}
		if q.SuccessOnly && !e.Success {
			continue
		}
		if !q.Since.IsZero() && e.Timestamp.Before(q.Since) {
			continue
		}
		out = append(out, e)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

var (
	_ ProspectStore  = (*MemoryProspectStore)(nil)
	_ ActionLogStore = (*MemoryActionLog)(nil)
)
