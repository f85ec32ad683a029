package store

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/example/rbacauth/internal/models"
)

// Memory is a mutex-guarded map store. Every read returns a copy so
// callers can never alter stored state without going through the store.
type Memory struct {
	mu         sync.Mutex
	users      map[string]*models.User
	byEmail    map[string]string
	byUID      map[string]string
	tokens     map[string][]models.RefreshToken
	challenges map[string]*models.Challenge
	roles      map[string]*models.Role
	modules    map[string]*models.Module
	defaults   map[string]string
	visitors   map[string]*models.Visitor
}

func NewMemory() *Memory {
	return &Memory{
		users:      map[string]*models.User{},
		byEmail:    map[string]string{},
		byUID:      map[string]string{},
		tokens:     map[string][]models.RefreshToken{},
		challenges: map[string]*models.Challenge{},
		roles:      map[string]*models.Role{},
		modules:    map[string]*models.Module{},
		defaults:   map[string]string{},
		visitors:   map[string]*models.Visitor{},
	}
}

func (m *Memory) Ping(context.Context) error { return nil }
func (m *Memory) Close() error               { return nil }

func copyUser(u *models.User) *models.User {
	c := *u
	c.Visitors = slices.Clone(u.Visitors)
	return &c
}

func (m *Memory) CreateUser(_ context.Context, u *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[u.ID]; ok {
		return ErrConflict
	}
	if _, ok := m.byEmail[u.Email]; ok {
		return ErrConflict
	}
	m.users[u.ID] = copyUser(u)
	m.byEmail[u.Email] = u.ID
	m.byUID[u.UID] = u.ID
	return nil
}

func (m *Memory) UpdateUser(_ context.Context, u *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	old, ok := m.users[u.ID]
	if !ok {
		return ErrNotFound
	}
	if id, taken := m.byEmail[u.Email]; taken && id != u.ID {
		return ErrConflict
	}
	delete(m.byEmail, old.Email)
	delete(m.byUID, old.UID)
	m.users[u.ID] = copyUser(u)
	m.byEmail[u.Email] = u.ID
	m.byUID[u.UID] = u.ID
	return nil
}

func (m *Memory) GetUserByID(_ context.Context, id string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.userLocked(id)
}

func (m *Memory) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.userLocked(m.byEmail[email])
}

func (m *Memory) GetUserByUID(_ context.Context, uid string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.userLocked(m.byUID[uid])
}

func (m *Memory) userLocked(id string) (*models.User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyUser(u), nil
}

func (m *Memory) AddRefreshToken(_ context.Context, userID string, t models.RefreshToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens[userID] = append(m.tokens[userID], t)
	return nil
}

func (m *Memory) FindRefreshToken(_ context.Context, userID, token string) (*models.RefreshToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.tokens[userID] {
		if t.Token == token {
			return &t, nil
		}
	}
	return nil, ErrNotFound
}

func (m *Memory) RemoveRefreshToken(_ context.Context, userID, token string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.removeTokenLocked(userID, token, time.Time{}), nil
}

// removeTokenLocked drops the matching record. A non-zero now also
// requires the record to be unexpired.
func (m *Memory) removeTokenLocked(userID, token string, now time.Time) bool {
	list := m.tokens[userID]
	for i, t := range list {
		if t.Token != token {
			continue
		}
		if !now.IsZero() && !t.Valid(now) {
			return false
		}
		m.tokens[userID] = slices.Delete(list, i, i+1)
		return true
	}
	return false
}

func (m *Memory) RotateRefreshToken(_ context.Context, userID, old string, next models.RefreshToken, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.removeTokenLocked(userID, old, now) {
		return ErrNotFound
	}
	m.tokens[userID] = append(m.tokens[userID], next)
	return nil
}

func (m *Memory) DeleteExpiredRefreshTokens(_ context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for userID, list := range m.tokens {
		kept := list[:0]
		for _, t := range list {
			if t.Valid(now) {
				kept = append(kept, t)
			} else {
				n++
			}
		}
		m.tokens[userID] = kept
	}
	return n, nil
}

func (m *Memory) ReplaceChallenge(_ context.Context, c *models.Challenge) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, existing := range m.challenges {
		if existing.Email == c.Email {
			delete(m.challenges, id)
		}
	}
	cp := *c
	m.challenges[c.ID] = &cp
	return nil
}

func (m *Memory) GetChallenge(_ context.Context, id string) (*models.Challenge, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.challenges[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *Memory) IncrementChallengeAttempts(_ context.Context, id string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.challenges[id]
	if !ok {
		return 0, ErrNotFound
	}
	c.Attempts++
	return c.Attempts, nil
}

func (m *Memory) ConsumeChallenge(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.challenges[id]; !ok {
		return ErrNotFound
	}
	delete(m.challenges, id)
	return nil
}

func (m *Memory) DeleteChallenge(_ context.Context, email, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.challenges[id]
	if !ok || c.Email != email {
		return ErrNotFound
	}
	delete(m.challenges, id)
	return nil
}

func (m *Memory) DeleteExpiredChallenges(_ context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, c := range m.challenges {
		if now.After(c.ExpiresAt) {
			delete(m.challenges, id)
			n++
		}
	}
	return n, nil
}

func (m *Memory) CreateRole(_ context.Context, r *models.Role) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.roles {
		if existing.ID == r.ID || existing.Name == r.Name {
			return ErrConflict
		}
	}
	cp := *r
	cp.Permissions = slices.Clone(r.Permissions)
	m.roles[r.ID] = &cp
	return nil
}

func (m *Memory) GetRole(_ context.Context, id string) (*models.Role, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.roles[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *r
	cp.Permissions = slices.Clone(r.Permissions)
	return &cp, nil
}

func (m *Memory) CreateModule(_ context.Context, mod *models.Module) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.modules {
		if existing.ID == mod.ID || existing.Slug == mod.Slug {
			return ErrConflict
		}
	}
	cp := *mod
	m.modules[mod.ID] = &cp
	return nil
}

func (m *Memory) GetModule(_ context.Context, id string) (*models.Module, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	mod, ok := m.modules[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *mod
	return &cp, nil
}

// DeleteModule exists for tests exercising dangling permission references.
func (m *Memory) DeleteModule(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.modules, id)
}

// DeleteRole exists for tests exercising users whose role vanished.
func (m *Memory) DeleteRole(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.roles, id)
}

func (m *Memory) GetDefault(_ context.Context, category string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.defaults[category]
	if !ok {
		return "", ErrNotFound
	}
	return id, nil
}

func (m *Memory) SetDefault(_ context.Context, category, refID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.defaults[category] = refID
	return nil
}

func (m *Memory) GetVisitor(_ context.Context, id string) (*models.Visitor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.visitors[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *v
	return &cp, nil
}

func (m *Memory) TouchVisitor(_ context.Context, fingerprint, device string, now time.Time) (*models.Visitor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, v := range m.visitors {
		if v.Fingerprint == fingerprint && v.Device == device {
			v.Impression++
			v.LastSeen = now
			cp := *v
			return &cp, nil
		}
	}
	v := &models.Visitor{
		ID:          uuid.NewString(),
		Fingerprint: fingerprint,
		Device:      device,
		Impression:  1,
		FirstSeen:   now,
		LastSeen:    now,
	}
	m.visitors[v.ID] = v
	cp := *v
	return &cp, nil
}
