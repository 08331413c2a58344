package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetReplyOnlyOnce(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewEnquiryRepository(db)

	repliedAt := time.Now().UTC()
	mock.ExpectExec("UPDATE enquiries SET reply").
		WithArgs("Collection starts in June.", "o1", repliedAt, "e1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.SetReply(context.Background(), "e1", "Collection starts in June.", "o1", repliedAt))

	// A second reply finds no unreplied row.
	mock.ExpectExec("UPDATE enquiries SET reply").
		WillReturnResult(sqlmock.NewResult(0, 0))
	err := repo.SetReply(context.Background(), "e1", "Again.", "m1", repliedAt)
	assert.ErrorIs(t, err, sql.ErrNoRows)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateContentRepliedEnquiry(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewEnquiryRepository(db)

	mock.ExpectExec("UPDATE enquiries SET content").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateContent(context.Background(), "e1", "Edited", time.Now().UTC())
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteEnquiryMissing(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewEnquiryRepository(db)

	mock.ExpectExec("DELETE FROM enquiries").
		WithArgs("missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Delete(context.Background(), "missing")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}
