package repository

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db, mock
}

func userRows(id, email string) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows([]string{"id", "email", "name", "role", "password", "created_at", "updated_at"}).
		AddRow(id, email, "Test User", "user", "$2b$10$hash", now, now)
}

func TestUserRepo_GetByID(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewUserRepo(db)

	mock.ExpectQuery("SELECT id,email,name,role,password,created_at,updated_at FROM users WHERE id=? LIMIT 1").
		WithArgs("usr_1").
		WillReturnRows(userRows("usr_1", "a@b.c"))

	u, err := repo.GetByID(context.Background(), "usr_1")
	require.NoError(t, err)
	assert.Equal(t, "usr_1", u.ID)
	assert.Equal(t, "a@b.c", u.Email)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepo_GetByID_NotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewUserRepo(db)

	mock.ExpectQuery("SELECT id,email,name,role,password,created_at,updated_at FROM users WHERE id=? LIMIT 1").
		WithArgs("usr_missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByID(context.Background(), "usr_missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUserRepo_GetByEmail_NormalizesInput(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewUserRepo(db)

	mock.ExpectQuery("SELECT id,email,name,role,password,created_at,updated_at FROM users WHERE email=? LIMIT 1").
		WithArgs("a@b.c").
		WillReturnRows(userRows("usr_1", "a@b.c"))

	u, err := repo.GetByEmail(context.Background(), "  A@B.C ")
	require.NoError(t, err)
	assert.Equal(t, "usr_1", u.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepo_Create_DuplicateEmail(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewUserRepo(db)

	mock.ExpectExec("INSERT INTO users (id, email, name, role, password) VALUES (?,?,?,?,?)").
		WithArgs(sqlmock.AnyArg(), "a@b.c", "Test", "user", sqlmock.AnyArg()).
		WillReturnError(errors.New("Error 1062 (23000): Duplicate entry 'a@b.c'"))

	_, err := repo.Create(context.Background(), "a@b.c", "pw", "Test", "user", 4)
	assert.ErrorIs(t, err, ErrEmailExists)
}

func TestUserRepo_Delete_CascadesSessions(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewUserRepo(db)

	// Sessions must go before the user row.
	mock.ExpectExec("DELETE FROM sessions WHERE user_id=?").
		WithArgs("usr_1").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec("DELETE FROM users WHERE id=?").
		WithArgs("usr_1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Delete(context.Background(), "usr_1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepo_Update_BuildsOnlyRequestedFields(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewUserRepo(db)

	name := "New Name"
	mock.ExpectExec("UPDATE users SET name=? WHERE id=?").
		WithArgs("New Name", "usr_1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Update(context.Background(), "usr_1", UserUpdate{Name: &name}))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepo_Update_NoFieldsIsNoop(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewUserRepo(db)

	require.NoError(t, repo.Update(context.Background(), "usr_1", UserUpdate{}))
	assert.NoError(t, mock.ExpectationsWereMet())
}
