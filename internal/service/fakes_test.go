package service

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/auth-service/internal/domain"
)

// In-memory fakes mirroring the repositories' transactional semantics,
// shared state included: the token fake reaches into the user fake the
// same way the SQL transaction spans both tables.

type fakeUserRepo struct {
	mu     sync.Mutex
	nextID int
	users  map[string]*domain.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[string]*domain.User)}
}

func (r *fakeUserRepo) Create(_ context.Context, user *domain.User, _ []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	user.ID = "user-" + strconv.Itoa(r.nextID)
	user.CreatedAt = time.Now().UTC()
	user.UpdatedAt = user.CreatedAt
	clone := *user
	r.users[user.ID] = &clone
	return nil
}

func (r *fakeUserRepo) GetByID(_ context.Context, id string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	clone := *user
	return &clone, nil
}

func (r *fakeUserRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, user := range r.users {
		if user.Email == email {
			clone := *user
			return &clone, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *fakeUserRepo) UpdatePassword(_ context.Context, id, hash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return pgx.ErrNoRows
	}
	user.PasswordHash = hash
	return nil
}

func (r *fakeUserRepo) RegisterFailedLogin(_ context.Context, id string, threshold int) (int, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok || user.Locked {
		return threshold, true, nil
	}
	user.FailedLogins++
	if user.FailedLogins >= threshold {
		user.Locked = true
	}
	return user.FailedLogins, user.Locked, nil
}

func (r *fakeUserRepo) Unlock(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return pgx.ErrNoRows
	}
	user.Locked = false
	user.FailedLogins = 0
	return nil
}

// mustGet reads current stored state for assertions.
func (r *fakeUserRepo) mustGet(id string) domain.User {
	r.mu.Lock()
	defer r.mu.Unlock()
	return *r.users[id]
}

type fakeTokenRepo struct {
	mu     sync.Mutex
	nextID int
	users  *fakeUserRepo
	tokens map[string]*domain.IssuedToken

	recordLoginErr error
}

func newFakeTokenRepo(users *fakeUserRepo) *fakeTokenRepo {
	return &fakeTokenRepo{users: users, tokens: make(map[string]*domain.IssuedToken)}
}

func (r *fakeTokenRepo) insertLocked(t *domain.IssuedToken) {
	r.nextID++
	t.ID = "token-" + strconv.Itoa(r.nextID)
	t.CreatedAt = time.Now().UTC()
	clone := *t
	r.tokens[t.Token] = &clone
}

func (r *fakeTokenRepo) RecordLogin(_ context.Context, userID string, access, refresh *domain.IssuedToken, loginAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.recordLoginErr != nil {
		return r.recordLoginErr
	}

	r.users.mu.Lock()
	user, ok := r.users.users[userID]
	if ok {
		user.FailedLogins = 0
		user.LastLoginAt = &loginAt
	}
	r.users.mu.Unlock()
	if !ok {
		return pgx.ErrNoRows
	}

	r.insertLocked(access)
	r.insertLocked(refresh)
	return nil
}

func (r *fakeTokenRepo) RotateRefresh(_ context.Context, spentToken string, access, refresh *domain.IssuedToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	spent, ok := r.tokens[spentToken]
	if !ok || spent.Revoked {
		return pgx.ErrNoRows
	}
	spent.Revoked = true
	spent.Expired = true
	r.insertLocked(access)
	r.insertLocked(refresh)
	return nil
}

func (r *fakeTokenRepo) GetByToken(_ context.Context, token string) (*domain.IssuedToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tokens[token]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	clone := *t
	return &clone, nil
}

func (r *fakeTokenRepo) Revoke(_ context.Context, token string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tokens[token]
	if !ok || t.Revoked {
		return false, nil
	}
	t.Revoked = true
	t.Expired = true
	return true, nil
}

func (r *fakeTokenRepo) DeleteExpired(_ context.Context, before time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var deleted int64
	for key, t := range r.tokens {
		if t.ExpiresAt.Before(before) {
			delete(r.tokens, key)
			deleted++
		}
	}
	return deleted, nil
}

func (r *fakeTokenRepo) mustGet(token string) domain.IssuedToken {
	r.mu.Lock()
	defer r.mu.Unlock()
	return *r.tokens[token]
}

func (r *fakeTokenRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.tokens)
}

type fakeResetRepo struct {
	mu     sync.Mutex
	nextID int
	users  *fakeUserRepo
	tokens map[string]*domain.PasswordResetToken
}

func newFakeResetRepo(users *fakeUserRepo) *fakeResetRepo {
	return &fakeResetRepo{users: users, tokens: make(map[string]*domain.PasswordResetToken)}
}

func (r *fakeResetRepo) Create(_ context.Context, token *domain.PasswordResetToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	token.ID = "reset-" + strconv.Itoa(r.nextID)
	token.CreatedAt = time.Now().UTC()
	clone := *token
	r.tokens[token.Token] = &clone
	return nil
}

func (r *fakeResetRepo) GetLiveByToken(_ context.Context, tokenStr string, now time.Time) (*domain.PasswordResetToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tokens[tokenStr]
	if !ok || t.UsedAt != nil || !now.Before(t.ExpiresAt) {
		return nil, pgx.ErrNoRows
	}
	clone := *t
	return &clone, nil
}

func (r *fakeResetRepo) invalidateOutstandingLocked(userID string, now time.Time) int64 {
	var n int64
	for _, t := range r.tokens {
		if t.UserID == userID && t.UsedAt == nil {
			used := now
			t.UsedAt = &used
			n++
		}
	}
	return n
}

func (r *fakeResetRepo) InvalidateOutstanding(_ context.Context, userID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.invalidateOutstandingLocked(userID, time.Now().UTC()), nil
}

func (r *fakeResetRepo) Consume(_ context.Context, token *domain.PasswordResetToken, newHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.tokens[token.Token]
	if !ok || stored.UsedAt != nil {
		return pgx.ErrNoRows
	}

	r.users.mu.Lock()
	user, userOK := r.users.users[token.UserID]
	if userOK {
		user.PasswordHash = newHash
		user.FailedLogins = 0
		user.Locked = false
	}
	r.users.mu.Unlock()
	if !userOK {
		return pgx.ErrNoRows
	}

	now := time.Now().UTC()
	stored.UsedAt = &now
	r.invalidateOutstandingLocked(token.UserID, now)
	return nil
}

func (r *fakeResetRepo) DeleteLapsed(_ context.Context, before time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var deleted int64
	for key, t := range r.tokens {
		if t.UsedAt != nil || t.ExpiresAt.Before(before) {
			delete(r.tokens, key)
			deleted++
		}
	}
	return deleted, nil
}
