package repository

import (
	"database/sql"
	"errors"
	"go-auth-api/logger"
	"go-auth-api/model"

	"github.com/lib/pq"
	"github.com/sirupsen/logrus"
)

var (
	// ErrNotFound is returned when no user matches the lookup key.
	ErrNotFound = errors.New("user not found")
	// ErrDuplicateEmail is returned when the unique email constraint is violated.
	ErrDuplicateEmail = errors.New("email already registered")
)

// IUserRepository defines the contract for the credential store. The refresh
// token operations are the session-rotation primitives: RotateRefreshToken is
// an atomic compare-and-swap so that two concurrent refresh calls for the same
// account can never both succeed.
type IUserRepository interface {
	CreateUser(user *model.User) error
	GetUserByEmail(email string) (*model.User, error)
	// GetUserByID loads the account without its password hash and refresh
	// token. Used on every authenticated request.
	GetUserByID(id string) (*model.User, error)
	// UpdateRefreshToken unconditionally replaces the stored refresh token.
	UpdateRefreshToken(userID, token string) error
	// RotateRefreshToken sets the stored token to newToken only if it
	// currently equals oldToken. Returns false when the stored value has
	// changed in the meantime (revoked or already rotated).
	RotateRefreshToken(userID, oldToken, newToken string) (bool, error)
	// ClearRefreshToken ends the session. Idempotent.
	ClearRefreshToken(userID string) error
}

// UserRepository implements IUserRepository on top of PostgreSQL.
type UserRepository struct {
	DB *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{DB: db}
}

const uniqueViolation = "23505"

func (r *UserRepository) CreateUser(user *model.User) error {
	log := logger.Log.WithFields(logrus.Fields{
		"user_id": user.ID,
		"email":   user.Email,
	})
	log.Info("Executing query to create a new user")

	query := `INSERT INTO users (id, email, password, display_name, refresh_token)
		VALUES ($1, $2, $3, $4, NULLIF($5, '')) RETURNING created_at, updated_at`
	err := r.DB.QueryRow(query, user.ID, user.Email, user.Password, user.DisplayName, user.RefreshToken).
		Scan(&user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return ErrDuplicateEmail
		}
		log.WithError(err).Error("Failed to execute create user query")
		return err
	}
	return nil
}

func (r *UserRepository) GetUserByEmail(email string) (*model.User, error) {
	user := &model.User{}
	var refreshToken sql.NullString
	query := `SELECT id, email, password, display_name, refresh_token, created_at, updated_at
		FROM users WHERE email = $1`
	err := r.DB.QueryRow(query, email).Scan(
		&user.ID, &user.Email, &user.Password, &user.DisplayName,
		&refreshToken, &user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		logger.Log.WithError(err).Error("Failed to execute get user by email query")
		return nil, err
	}
	user.RefreshToken = refreshToken.String
	return user, nil
}

func (r *UserRepository) GetUserByID(id string) (*model.User, error) {
	user := &model.User{}
	query := `SELECT id, email, display_name, created_at, updated_at FROM users WHERE id = $1`
	err := r.DB.QueryRow(query, id).Scan(
		&user.ID, &user.Email, &user.DisplayName, &user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		logger.Log.WithField("user_id", id).WithError(err).Error("Failed to execute get user by id query")
		return nil, err
	}
	return user, nil
}

func (r *UserRepository) UpdateRefreshToken(userID, token string) error {
	log := logger.Log.WithField("user_id", userID)
	log.Info("Executing query to store a new refresh token")

	query := `UPDATE users SET refresh_token = $2, updated_at = now() WHERE id = $1`
	result, err := r.DB.Exec(query, userID, token)
	if err != nil {
		log.WithError(err).Error("Failed to execute update refresh token query")
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// RotateRefreshToken relies on the database to perform the compare-then-write
// as a single statement, which is what makes concurrent refresh calls safe.
func (r *UserRepository) RotateRefreshToken(userID, oldToken, newToken string) (bool, error) {
	log := logger.Log.WithField("user_id", userID)
	log.Info("Executing conditional refresh token rotation")

	query := `UPDATE users SET refresh_token = $3, updated_at = now()
		WHERE id = $1 AND refresh_token = $2`
	result, err := r.DB.Exec(query, userID, oldToken, newToken)
	if err != nil {
		log.WithError(err).Error("Failed to execute rotate refresh token query")
		return false, err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows == 1, nil
}

func (r *UserRepository) ClearRefreshToken(userID string) error {
	log := logger.Log.WithField("user_id", userID)
	log.Info("Executing query to clear refresh token")

	query := `UPDATE users SET refresh_token = NULL, updated_at = now() WHERE id = $1`
	if _, err := r.DB.Exec(query, userID); err != nil {
		log.WithError(err).Error("Failed to execute clear refresh token query")
		return err
	}
	return nil
}
