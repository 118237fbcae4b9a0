package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/bid2build/bid2build/internal/domain"
)

// memoryState is the data behind the in-memory Store. It is cloned for each transaction.
type memoryState struct {
	users    map[string]domain.User
	profiles map[string]domain.Profile
	docs     map[string]domain.Document
	resets   map[string]domain.PasswordResetToken
}

func newMemoryState() *memoryState {
	return &memoryState{
		users:    make(map[string]domain.User),
		profiles: make(map[string]domain.Profile),
		docs:     make(map[string]domain.Document),
		resets:   make(map[string]domain.PasswordResetToken),
	}
}

func (s *memoryState) clone() *memoryState {
	c := newMemoryState()
	for k, v := range s.users {
		c.users[k] = v
	}
	for k, v := range s.profiles {
		attrs := make(map[string]string, len(v.Attributes))
		for ak, av := range v.Attributes {
			attrs[ak] = av
		}
		v.Attributes = attrs
		c.profiles[k] = v
	}
	for k, v := range s.docs {
		c.docs[k] = v
	}
	for k, v := range s.resets {
		c.resets[k] = v
	}
	return c
}

// MemoryStore is a Store kept in process memory, used when no database is configured and in tests.
type MemoryStore struct {
	mu    sync.Mutex
	state *memoryState
}

// NewMemoryStore returns an empty in-memory Store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{state: newMemoryState()}
}

func (m *MemoryStore) Repos() Repositories {
	return memoryRepositories(&lockedState{mu: &m.mu, get: func() *memoryState { return m.state }})
}

// RunInTx applies fn to a private copy of the data and publishes it only when fn succeeds.
func (m *MemoryStore) RunInTx(_ context.Context, fn func(repos Repositories) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	staged := m.state.clone()
	if err := fn(memoryRepositories(&lockedState{get: func() *memoryState { return staged }})); err != nil {
		return err
	}
	m.state = staged
	return nil
}

// lockedState resolves the state a repository call works on. mu is nil inside a transaction,
// where the store lock is already held.
type lockedState struct {
	mu  *sync.Mutex
	get func() *memoryState
}

func (l *lockedState) with(fn func(s *memoryState) error) error {
	if l.mu != nil {
		l.mu.Lock()
		defer l.mu.Unlock()
	}
	return fn(l.get())
}

func memoryRepositories(l *lockedState) Repositories {
	return Repositories{
		Users:          &memoryUsers{l},
		Profiles:       &memoryProfiles{l},
		Documents:      &memoryDocuments{l},
		PasswordResets: &memoryResets{l},
	}
}

type memoryUsers struct{ *lockedState }

func (r *memoryUsers) Create(_ context.Context, user *domain.User) error {
	return r.with(func(s *memoryState) error {
		for _, existing := range s.users {
			if strings.EqualFold(existing.Email, user.Email) {
				return ErrDuplicateEmail
			}
		}
		if user.ID == "" {
			user.ID = uuid.NewString()
		}
		now := time.Now().UTC()
		user.CreatedAt, user.UpdatedAt = now, now
		s.users[user.ID] = *user
		return nil
	})
}

func (r *memoryUsers) Update(_ context.Context, user *domain.User) error {
	return r.with(func(s *memoryState) error {
		existing, ok := s.users[user.ID]
		if !ok {
			return pgx.ErrNoRows
		}
		existing.FirstName = user.FirstName
		existing.LastName = user.LastName
		existing.Phone = user.Phone
		existing.PasswordHash = user.PasswordHash
		existing.Status = user.Status
		existing.UpdatedAt = time.Now().UTC()
		s.users[user.ID] = existing
		*user = existing
		return nil
	})
}

func (r *memoryUsers) UpdateStatus(_ context.Context, id string, status domain.UserStatus) error {
	return r.with(func(s *memoryState) error {
		existing, ok := s.users[id]
		if !ok {
			return pgx.ErrNoRows
		}
		existing.Status = status
		existing.UpdatedAt = time.Now().UTC()
		s.users[id] = existing
		return nil
	})
}

func (r *memoryUsers) GetByID(_ context.Context, id string) (*domain.User, error) {
	var out *domain.User
	err := r.with(func(s *memoryState) error {
		user, ok := s.users[id]
		if !ok {
			return pgx.ErrNoRows
		}
		out = &user
		return nil
	})
	return out, err
}

// GetForUpdate needs no row lock: transactions already run one at a time.
func (r *memoryUsers) GetForUpdate(ctx context.Context, id string) (*domain.User, error) {
	return r.GetByID(ctx, id)
}

func (r *memoryUsers) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	var out *domain.User
	err := r.with(func(s *memoryState) error {
		for _, user := range s.users {
			if strings.EqualFold(user.Email, email) {
				u := user
				out = &u
				return nil
			}
		}
		return pgx.ErrNoRows
	})
	return out, err
}

type memoryProfiles struct{ *lockedState }

func (r *memoryProfiles) Create(_ context.Context, profile *domain.Profile) error {
	return r.with(func(s *memoryState) error {
		if _, ok := s.users[profile.UserID]; !ok {
			return pgx.ErrNoRows
		}
		profile.CreatedAt = time.Now().UTC()
		s.profiles[profile.UserID] = *profile
		return nil
	})
}

func (r *memoryProfiles) GetByUserID(_ context.Context, userID string) (*domain.Profile, error) {
	var out *domain.Profile
	err := r.with(func(s *memoryState) error {
		profile, ok := s.profiles[userID]
		if !ok {
			return pgx.ErrNoRows
		}
		out = &profile
		return nil
	})
	return out, err
}

type memoryDocuments struct{ *lockedState }

func (r *memoryDocuments) Create(_ context.Context, doc *domain.Document) error {
	return r.with(func(s *memoryState) error {
		if _, ok := s.users[doc.UserID]; !ok {
			return pgx.ErrNoRows
		}
		if doc.Status == "" {
			doc.Status = domain.DocumentStatusPending
		}
		doc.ID = uuid.NewString()
		doc.CreatedAt = time.Now().UTC()
		s.docs[doc.ID] = *doc
		return nil
	})
}

func (r *memoryDocuments) GetByID(_ context.Context, id string) (*domain.Document, error) {
	var out *domain.Document
	err := r.with(func(s *memoryState) error {
		doc, ok := s.docs[id]
		if !ok {
			return pgx.ErrNoRows
		}
		out = &doc
		return nil
	})
	return out, err
}

func (r *memoryDocuments) ListByUser(_ context.Context, userID string) ([]domain.Document, error) {
	return r.filter(func(d domain.Document) bool { return d.UserID == userID }, 0, 0)
}

func (r *memoryDocuments) ListByStatus(_ context.Context, status domain.DocumentStatus, limit, offset int) ([]domain.Document, error) {
	return r.filter(func(d domain.Document) bool { return d.Status == status }, limit, offset)
}

func (r *memoryDocuments) filter(keep func(domain.Document) bool, limit, offset int) ([]domain.Document, error) {
	var out []domain.Document
	err := r.with(func(s *memoryState) error {
		for _, doc := range s.docs {
			if keep(doc) {
				out = append(out, doc)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	if offset > 0 {
		if offset >= len(out) {
			return nil, err
		}
		out = out[offset:]
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, err
}

func (r *memoryDocuments) UpdateReview(_ context.Context, doc *domain.Document) error {
	return r.with(func(s *memoryState) error {
		existing, ok := s.docs[doc.ID]
		if !ok || existing.Status != domain.DocumentStatusPending {
			return ErrAlreadyReviewed
		}
		existing.Status = doc.Status
		existing.ReviewerID = doc.ReviewerID
		existing.ReviewNote = doc.ReviewNote
		existing.ReviewedAt = doc.ReviewedAt
		s.docs[doc.ID] = existing
		return nil
	})
}

type memoryResets struct{ *lockedState }

func (r *memoryResets) Create(_ context.Context, token *domain.PasswordResetToken) error {
	return r.with(func(s *memoryState) error {
		token.ID = uuid.NewString()
		token.CreatedAt = time.Now().UTC()
		s.resets[token.Token] = *token
		return nil
	})
}

func (r *memoryResets) GetByToken(_ context.Context, tokenStr string) (*domain.PasswordResetToken, error) {
	var out *domain.PasswordResetToken
	err := r.with(func(s *memoryState) error {
		token, ok := s.resets[tokenStr]
		if !ok {
			return pgx.ErrNoRows
		}
		out = &token
		return nil
	})
	return out, err
}

func (r *memoryResets) MarkUsed(_ context.Context, id string) error {
	return r.with(func(s *memoryState) error {
		for key, token := range s.resets {
			if token.ID == id && token.UsedAt == nil {
				now := time.Now().UTC()
				token.UsedAt = &now
				s.resets[key] = token
			}
		}
		return nil
	})
}
