package repository_test

import (
	"context"
	"testing"

	"taskflow/internal/repository"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestProjectRepository_DeleteCascade(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := repository.NewProjectRepository(gormDB)

	projectID := uuid.New()
	t1, t2 := uuid.New(), uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT .*id.* FROM "tasks" WHERE project_id = \$1`).
		WithArgs(projectID).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(t1.String()).AddRow(t2.String()))
	mock.ExpectExec(`DELETE FROM "tasks" WHERE project_id = \$1`).
		WithArgs(projectID).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(`DELETE FROM "projects" WHERE id = \$1`).
		WithArgs(projectID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	ids, err := repo.DeleteCascade(context.Background(), projectID)

	assert.NoError(t, err)
	assert.ElementsMatch(t, []uuid.UUID{t1, t2}, ids)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProjectRepository_DeleteCascade_Missing(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := repository.NewProjectRepository(gormDB)

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM "tasks" WHERE project_id`).WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectExec(`DELETE FROM "tasks"`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`DELETE FROM "projects"`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	_, err := repo.DeleteCascade(context.Background(), uuid.New())

	assert.ErrorIs(t, err, repository.ErrProjectNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
