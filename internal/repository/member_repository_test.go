package repository_test

import (
	"context"
	"testing"
	"time"

	"taskflow/internal/model"
	"taskflow/internal/repository"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)

	dialector := postgres.New(postgres.Config{
		DSN:                  "sqlmock_db_0",
		DriverName:           "postgres",
		Conn:                 db,
		PreferSimpleProtocol: true,
	})

	gormDB, err := gorm.Open(dialector, &gorm.Config{})
	assert.NoError(t, err)

	return gormDB, mock
}

var memberColumns = []string{"id", "company_id", "role", "email", "full_name", "hashed_password", "created_at"}

func TestMemberRepository_Create(t *testing.T) {
	// Arrange
	gormDB, mock := setupMockDB(t)
	repo := repository.NewMemberRepository(gormDB)

	memberID := uuid.New()
	member := &model.Member{
		ID:             memberID,
		Email:          "test@example.com",
		HashedPassword: "hashed_password",
		FullName:       "Test User",
		Role:           model.RoleUser,
	}

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO "members"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(memberID.String()))
	mock.ExpectCommit()

	// Act
	err := repo.Create(context.Background(), member)

	// Assert
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMemberRepository_FindByEmail_Found(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := repository.NewMemberRepository(gormDB)

	memberID := uuid.New()
	companyID := uuid.New()
	email := "test@example.com"

	mock.ExpectQuery(`SELECT \* FROM "members" WHERE email = \$1`).
		WillReturnRows(sqlmock.NewRows(memberColumns).
			AddRow(memberID.String(), companyID.String(), "company_admin", email, "Test User", "hashed_password", time.Now()))

	member, err := repo.FindByEmail(context.Background(), email)

	assert.NoError(t, err)
	if assert.NotNil(t, member) {
		assert.Equal(t, memberID, member.ID)
		assert.Equal(t, model.RoleCompanyAdmin, member.Role)
		assert.Equal(t, companyID, *member.CompanyID)
		assert.Equal(t, "Test User", member.FullName)
	}
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMemberRepository_FindByEmail_NotFound(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := repository.NewMemberRepository(gormDB)

	mock.ExpectQuery(`SELECT \* FROM "members" WHERE email = \$1`).
		WillReturnRows(sqlmock.NewRows(memberColumns))

	member, err := repo.FindByEmail(context.Background(), "nonexistent@example.com")

	assert.NoError(t, err)
	assert.Nil(t, member)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMemberRepository_FindByEmail_Error(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := repository.NewMemberRepository(gormDB)

	mock.ExpectQuery(`SELECT \* FROM "members" WHERE email = \$1`).
		WillReturnError(assert.AnError)

	member, err := repo.FindByEmail(context.Background(), "test@example.com")

	assert.Error(t, err)
	assert.Nil(t, member)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMemberRepository_GetByID_NotFound(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := repository.NewMemberRepository(gormDB)

	mock.ExpectQuery(`SELECT \* FROM "members" WHERE id = \$1`).
		WillReturnRows(sqlmock.NewRows(memberColumns))

	member, err := repo.GetByID(context.Background(), uuid.New())

	assert.ErrorIs(t, err, repository.ErrMemberNotFound)
	assert.Nil(t, member)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMemberRepository_UpdateRole_Missing(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := repository.NewMemberRepository(gormDB)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "members" SET "role"=\$1 WHERE id = \$2`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	err := repo.UpdateRole(context.Background(), uuid.New(), model.RoleCompanyAdmin)

	assert.ErrorIs(t, err, repository.ErrMemberNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMemberRepository_List_CompanyViewHidesSystemAdmins(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := repository.NewMemberRepository(gormDB)
	companyID := uuid.New()

	mock.ExpectQuery(`SELECT \* FROM "members" WHERE company_id = \$1 AND role <> \$2 ORDER BY full_name`).
		WithArgs(companyID, model.RoleSystemAdmin).
		WillReturnRows(sqlmock.NewRows(memberColumns).
			AddRow(uuid.NewString(), companyID.String(), "user", "a@example.com", "Ann", "x", time.Now()))

	members, err := repo.List(context.Background(), repository.MemberFilter{CompanyID: &companyID, ExcludeSystemAdmin: true})

	assert.NoError(t, err)
	assert.Len(t, members, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}
