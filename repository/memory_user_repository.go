// file: repository/memory_user_repository.go

package repository

import (
	"go-auth-api/model"
	"strings"
	"sync"
	"time"
)

// MemoryUserRepository is an in-process implementation of IUserRepository.
// It is only correct for a single-process deployment; multi-process
// deployments must use the PostgreSQL-backed UserRepository. The mutex
// serializes the compare-then-write of RotateRefreshToken, giving the same
// atomicity guarantee the SQL conditional update provides.
type MemoryUserRepository struct {
	mu      sync.Mutex
	byID    map[string]*model.User
	byEmail map[string]string
}

func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{
		byID:    make(map[string]*model.User),
		byEmail: make(map[string]string),
	}
}

func (r *MemoryUserRepository) CreateUser(user *model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	email := strings.ToLower(user.Email)
	if _, exists := r.byEmail[email]; exists {
		return ErrDuplicateEmail
	}

	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now

	stored := *user
	r.byID[user.ID] = &stored
	r.byEmail[email] = user.ID
	return nil
}

func (r *MemoryUserRepository) GetUserByEmail(email string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id, ok := r.byEmail[strings.ToLower(email)]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *r.byID[id]
	return &copied, nil
}

func (r *MemoryUserRepository) GetUserByID(id string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *user
	copied.Password = ""
	copied.RefreshToken = ""
	return &copied, nil
}

func (r *MemoryUserRepository) UpdateRefreshToken(userID, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.byID[userID]
	if !ok {
		return ErrNotFound
	}
	user.RefreshToken = token
	user.UpdatedAt = time.Now()
	return nil
}

func (r *MemoryUserRepository) RotateRefreshToken(userID, oldToken, newToken string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.byID[userID]
	if !ok || user.RefreshToken != oldToken {
		return false, nil
	}
	user.RefreshToken = newToken
	user.UpdatedAt = time.Now()
	return true, nil
}

func (r *MemoryUserRepository) ClearRefreshToken(userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if user, ok := r.byID[userID]; ok {
		user.RefreshToken = ""
		user.UpdatedAt = time.Now()
	}
	return nil
}
