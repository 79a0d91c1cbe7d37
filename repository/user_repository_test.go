// file: repository/user_repository_test.go

package repository

import (
	"database/sql"
	"go-auth-api/config"
	"go-auth-api/logger"
	"go-auth-api/model"
	"os"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
)

func TestMain(m *testing.M) {
	config.LoadConfig("../")
	logger.Init(config.AppConfig.Server.Environment)
	os.Exit(m.Run())
}

func newMockRepo(t *testing.T) (*UserRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewUserRepository(db), mock
}

func TestUserRepository_CreateUser(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		now := time.Now()

		mock.ExpectQuery(`INSERT INTO users`).
			WithArgs("u1", "a@x.com", "hashed", "a", "").
			WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))

		user := &model.User{ID: "u1", Email: "a@x.com", Password: "hashed", DisplayName: "a"}
		err := repo.CreateUser(user)

		assert.NoError(t, err)
		assert.Equal(t, now, user.CreatedAt)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("duplicate email", func(t *testing.T) {
		repo, mock := newMockRepo(t)

		mock.ExpectQuery(`INSERT INTO users`).
			WillReturnError(&pq.Error{Code: "23505"})

		err := repo.CreateUser(&model.User{ID: "u2", Email: "a@x.com", Password: "hashed"})
		assert.ErrorIs(t, err, ErrDuplicateEmail)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestUserRepository_GetUserByID(t *testing.T) {
	t.Run("projection excludes credentials", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		now := time.Now()

		mock.ExpectQuery(`SELECT id, email, display_name, created_at, updated_at FROM users`).
			WithArgs("u1").
			WillReturnRows(sqlmock.NewRows([]string{"id", "email", "display_name", "created_at", "updated_at"}).
				AddRow("u1", "a@x.com", "a", now, now))

		user, err := repo.GetUserByID("u1")
		assert.NoError(t, err)
		assert.Empty(t, user.Password)
		assert.Empty(t, user.RefreshToken)
		assert.Equal(t, "a@x.com", user.Email)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("not found", func(t *testing.T) {
		repo, mock := newMockRepo(t)

		mock.ExpectQuery(`SELECT id, email, display_name, created_at, updated_at FROM users`).
			WithArgs("missing").
			WillReturnError(sql.ErrNoRows)

		_, err := repo.GetUserByID("missing")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestUserRepository_RotateRefreshToken(t *testing.T) {
	t.Run("stored token matches", func(t *testing.T) {
		repo, mock := newMockRepo(t)

		mock.ExpectExec(`UPDATE users SET refresh_token`).
			WithArgs("u1", "old-token", "new-token").
			WillReturnResult(sqlmock.NewResult(0, 1))

		rotated, err := repo.RotateRefreshToken("u1", "old-token", "new-token")
		assert.NoError(t, err)
		assert.True(t, rotated)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("stored token already changed", func(t *testing.T) {
		repo, mock := newMockRepo(t)

		mock.ExpectExec(`UPDATE users SET refresh_token`).
			WithArgs("u1", "stale-token", "new-token").
			WillReturnResult(sqlmock.NewResult(0, 0))

		rotated, err := repo.RotateRefreshToken("u1", "stale-token", "new-token")
		assert.NoError(t, err)
		assert.False(t, rotated)
	})
}

func TestUserRepository_ClearRefreshToken(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec(`UPDATE users SET refresh_token = NULL`).
		WithArgs("u1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	assert.NoError(t, repo.ClearRefreshToken("u1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}
