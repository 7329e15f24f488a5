package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sos-dispatch-api/internal/models"
)

var userRowColumns = []string{"id", "name", "email", "phone", "role", "verified", "available", "rating", "location", "created_at", "updated_at"}

func TestUserRepositoryFindByID(t *testing.T) {
	db, mock, cleanup := newHelpRequestRepoMock(t)
	defer cleanup()

	repo := NewUserRepository(db)
	rows := sqlmock.NewRows(userRowColumns).
		AddRow("vol-1", "Rina", "rina@example.com", "0812", "VOLUNTEER", true, nil, 4.5, nil, time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, name, email")).
		WithArgs("vol-1").
		WillReturnRows(rows)

	user, err := repo.FindByID(context.Background(), "vol-1")
	require.NoError(t, err)
	require.Equal(t, models.RoleVolunteer, user.Role)
	require.Nil(t, user.Available)
	require.True(t, user.IsAvailable())
	require.NotNil(t, user.Rating)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepositoryListVerifiedAvailable(t *testing.T) {
	db, mock, cleanup := newHelpRequestRepoMock(t)
	defer cleanup()

	repo := NewUserRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM users WHERE role = ? AND verified = ? AND (available IS NULL OR available = ?)")).
		WithArgs(models.RoleVolunteer, true, true).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("vol-a").AddRow("vol-b"))

	ids, err := repo.ListVerifiedAvailable(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"vol-a", "vol-b"}, ids)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepositoryCreateAndUpdates(t *testing.T) {
	db, mock, cleanup := newHelpRequestRepoMock(t)
	defer cleanup()

	repo := NewUserRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO users")).WillReturnResult(sqlmock.NewResult(1, 1))
	user := &models.User{Name: "Budi", Email: "budi@example.com", Role: models.RoleRequester, Verified: true}
	require.NoError(t, repo.Create(context.Background(), user))
	require.NotEmpty(t, user.ID)
	require.False(t, user.CreatedAt.IsZero())

	now := time.Now().UTC()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET verified = ?")).
		WithArgs(true, now, user.ID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.SetVerified(context.Background(), user.ID, true, now))

	mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET available = ?")).
		WithArgs(false, now, "missing").
		WillReturnResult(sqlmock.NewResult(0, 0))
	err := repo.SetAvailability(context.Background(), "missing", false, now)
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepositoryListByRole(t *testing.T) {
	db, mock, cleanup := newHelpRequestRepoMock(t)
	defer cleanup()

	repo := NewUserRepository(db)
	role := models.RoleAdmin
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, name, email")).
		WithArgs(role).
		WillReturnRows(sqlmock.NewRows(userRowColumns).
			AddRow("adm-1", "Admin", "admin@example.com", "", "ADMIN", true, nil, nil, nil, time.Now(), time.Now()))

	users, err := repo.List(context.Background(), models.UserFilter{Role: &role})
	require.NoError(t, err)
	require.Len(t, users, 1)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newHelpRequestRepoMock(t)
	defer cleanup()

	repo := NewAuditRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO audit_logs")).WillReturnResult(sqlmock.NewResult(1, 1))
	entry := &models.AuditLog{Action: models.AuditActionHelpRequestAccept, Resource: "help_request"}
	require.NoError(t, repo.CreateAuditLog(context.Background(), entry))
	require.NotEmpty(t, entry.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}
