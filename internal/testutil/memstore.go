package testutil

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/credittrack/credittrack/internal/model"
	"github.com/credittrack/credittrack/internal/repository"
)

// MemoryStore is an in-memory credential and credit store with the same
// error contract as repository.Repository.
type MemoryStore struct {
	mu      sync.Mutex
	users   map[int64]*model.User
	credits map[int64]*model.Credit
	nextUID int64
	nextCID int64
	clock   time.Time

	// FailWith, when set, is returned by every method.
	FailWith error
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:   make(map[int64]*model.User),
		credits: make(map[int64]*model.Credit),
		clock:   time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC),
	}
}

// tick returns strictly increasing creation times so ordering is deterministic.
func (s *MemoryStore) tick() time.Time {
	s.clock = s.clock.Add(time.Second)
	return s.clock
}

// CreateUser stores a copy of user and assigns its ID.
func (s *MemoryStore) CreateUser(_ context.Context, user *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWith != nil {
		return s.FailWith
	}

	for _, u := range s.users {
		if u.Email == user.Email {
			return repository.ErrEmailExists
		}
	}
	s.nextUID++
	user.ID = s.nextUID
	user.CreatedAt = s.tick()
	cp := *user
	s.users[user.ID] = &cp
	return nil
}

// GetUserByID returns a copy of the user.
func (s *MemoryStore) GetUserByID(_ context.Context, id int64) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWith != nil {
		return nil, s.FailWith
	}

	u, ok := s.users[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

// GetUserByEmail returns a copy of the user with email.
func (s *MemoryStore) GetUserByEmail(_ context.Context, email string) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWith != nil {
		return nil, s.FailWith
	}

	for _, u := range s.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repository.ErrUserNotFound
}

// UpdateUserPassword replaces the stored hash.
func (s *MemoryStore) UpdateUserPassword(_ context.Context, id int64, passwordHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWith != nil {
		return s.FailWith
	}

	u, ok := s.users[id]
	if !ok {
		return repository.ErrUserNotFound
	}
	u.PasswordHash = passwordHash
	return nil
}

// DeleteUser removes a user. Only tests need this.
func (s *MemoryStore) DeleteUser(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.users, id)
}

// CreateCredit stores a copy of credit and assigns its ID and creation time.
func (s *MemoryStore) CreateCredit(_ context.Context, credit *model.Credit) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWith != nil {
		return s.FailWith
	}

	if _, ok := s.users[credit.UserID]; !ok {
		return repository.ErrOwnerNotFound
	}
	s.nextCID++
	credit.ID = s.nextCID
	credit.CreatedAt = s.tick()
	cp := *credit
	s.credits[credit.ID] = &cp
	return nil
}

// GetCreditByID returns a copy of the credit.
func (s *MemoryStore) GetCreditByID(_ context.Context, id int64) (*model.Credit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWith != nil {
		return nil, s.FailWith
	}

	c, ok := s.credits[id]
	if !ok {
		return nil, repository.ErrCreditNotFound
	}
	cp := *c
	return &cp, nil
}

// ListCredits mirrors the SQL listing: filter, order by created_at DESC, id DESC, then slice.
func (s *MemoryStore) ListCredits(_ context.Context, filter model.CreditFilter, limit, offset int) ([]*model.Credit, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWith != nil {
		return nil, 0, s.FailWith
	}

	needle := strings.ToLower(filter.Commercial)
	matched := make([]*model.Credit, 0, len(s.credits))
	for _, c := range s.credits {
		if filter.ClientID != "" && c.ClientID != filter.ClientID {
			continue
		}
		if needle != "" && !strings.Contains(strings.ToLower(c.Commercial), needle) {
			continue
		}
		cp := *c
		matched = append(matched, &cp)
	}
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID > matched[j].ID
	})

	total := int64(len(matched))
	if offset >= len(matched) {
		return []*model.Credit{}, total, nil
	}
	end := offset + limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[offset:end], total, nil
}

// UpdateCredit overwrites the mutable fields of an existing credit.
func (s *MemoryStore) UpdateCredit(_ context.Context, credit *model.Credit) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWith != nil {
		return s.FailWith
	}

	existing, ok := s.credits[credit.ID]
	if !ok {
		return repository.ErrCreditNotFound
	}
	cp := *credit
	cp.CreatedAt = existing.CreatedAt
	cp.UserID = existing.UserID
	s.credits[credit.ID] = &cp
	return nil
}

// DeleteCredit removes a credit.
func (s *MemoryStore) DeleteCredit(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWith != nil {
		return s.FailWith
	}

	if _, ok := s.credits[id]; !ok {
		return repository.ErrCreditNotFound
	}
	delete(s.credits, id)
	return nil
}

// DistinctCreditValues returns sorted distinct non-empty values.
func (s *MemoryStore) DistinctCreditValues(_ context.Context) (*model.CreditDistinct, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWith != nil {
		return nil, s.FailWith
	}

	names, ids, commercials := map[string]struct{}{}, map[string]struct{}{}, map[string]struct{}{}
	for _, c := range s.credits {
		names[c.ClientName] = struct{}{}
		ids[c.ClientID] = struct{}{}
		commercials[c.Commercial] = struct{}{}
	}
	return &model.CreditDistinct{
		ClientNames: sortedKeys(names),
		ClientIDs:   sortedKeys(ids),
		Commercials: sortedKeys(commercials),
	}, nil
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		if k != "" {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}
