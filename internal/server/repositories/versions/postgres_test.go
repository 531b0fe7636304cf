package versions

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/rdkeeper/internal/common"
	"github.com/dmitrijs2005/rdkeeper/internal/server/models"
	"github.com/jackc/pgx/v5/pgconn"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewPostgresRepository(db), mock, db
}

var versionCols = []string{"id", "file_id", "version_num", "version_id", "digest", "size", "creator", "created_at"}

func TestInsert_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	ts := time.Unix(10, 0)
	mock.ExpectExec(`INSERT\s+INTO\s+file_versions`).
		WithArgs("id1", "f1", int64(1), "tok", "dg", int64(3), "u1", ts).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Insert(context.Background(), &models.FileVersion{
		ID: "id1", FileID: "f1", VersionNum: 1, VersionID: "tok", Digest: "dg", Size: 3, Creator: "u1", Created: ts,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestInsert_UniqueViolationIsConflict(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`INSERT\s+INTO\s+file_versions`).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "file_versions_file_id_version_num_key"})

	err := repo.Insert(context.Background(), &models.FileVersion{FileID: "f1", VersionNum: 2})
	if !errors.Is(err, common.ErrVersionConflict) {
		t.Fatalf("want ErrVersionConflict, got %v", err)
	}
}

func TestInsert_OtherErrorIsWrapped(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`INSERT\s+INTO\s+file_versions`).WillReturnError(errors.New("boom"))

	err := repo.Insert(context.Background(), &models.FileVersion{FileID: "f1", VersionNum: 2})
	if err == nil || errors.Is(err, common.ErrVersionConflict) {
		t.Fatalf("want plain db error, got %v", err)
	}
}

func TestMaxVersion(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`^SELECT COALESCE\(MAX\(version_num\), 0\) FROM file_versions WHERE file_id=\$1$`).
		WithArgs("f1").
		WillReturnRows(sqlmock.NewRows([]string{"max"}).AddRow(int64(4)))

	n, err := repo.MaxVersion(context.Background(), "f1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 4 {
		t.Fatalf("want 4, got %d", n)
	}
}

func TestGet_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`FROM file_versions WHERE file_id=\$1 AND version_num=\$2`).
		WithArgs("f1", int64(9)).
		WillReturnError(sql.ErrNoRows)

	if _, err := repo.Get(context.Background(), "f1", 9); !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("want ErrorNotFound, got %v", err)
	}
}

func TestList_Ordered(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	ts := time.Unix(5, 0)
	rows := sqlmock.NewRows(versionCols).
		AddRow("a", "f1", int64(1), "t1", "d1", int64(1), "u1", ts).
		AddRow("b", "f1", int64(2), "t2", "d2", int64(2), "u2", ts)
	mock.ExpectQuery(`(?s)FROM file_versions WHERE file_id=\$1 ORDER BY version_num OFFSET \$2 LIMIT \$3`).
		WithArgs("f1", 0, 20).
		WillReturnRows(rows)

	got, err := repo.List(context.Background(), "f1", 0, 20)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 || got[0].VersionNum != 1 || got[1].VersionID != "t2" {
		t.Fatalf("unexpected versions: %+v", got)
	}
}

func TestList_EmptyIsNotNil(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`FROM file_versions`).WillReturnRows(sqlmock.NewRows(versionCols))

	got, err := repo.List(context.Background(), "f1", 0, 20)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Fatalf("want empty slice, got %#v", got)
	}
}

func TestDeleteByFile(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`^DELETE FROM file_versions WHERE file_id=\$1$`).
		WithArgs("f1").
		WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := repo.DeleteByFile(context.Background(), "f1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 3 {
		t.Fatalf("want 3, got %d", n)
	}
}
