package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/and161185/skillmarket/internal/errs"
	"github.com/and161185/skillmarket/internal/model"
	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/require"
)

const (
	lockSQL    = `SELECT id FROM items WHERE slug=\$1 AND published FOR UPDATE`
	deleteSQL  = `DELETE FROM item_likes WHERE user_id=\$1 AND item_id=\$2`
	insertSQL  = `INSERT INTO item_likes \(user_id, item_id\) VALUES \(\$1, \$2\)`
	recountSQL = `UPDATE items SET likes = \(SELECT count\(\*\) FROM item_likes WHERE item_id=\$1\) WHERE id=\$1 RETURNING likes`
)

func TestItemRepo_Create(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewItemRepo(db)
	ctx := context.Background()
	now := time.Now()

	it := &model.Item{
		ID:          uuid.Must(uuid.NewV4()),
		Slug:        "pdf-tools",
		Name:        "PDF tools",
		Description: "Split and merge PDFs",
		AuthorID:    uuid.Must(uuid.NewV4()),
		Category:    "documents",
		Tags:        []string{"pdf", "merge"},
		Version:     "1.0.0",
	}
	args := []any{it.ID, it.Slug, it.Name, it.Description, it.AuthorID, it.Category, it.Tags, it.Version, it.Readme, it.RepoURL}

	mock.ExpectQuery(`INSERT INTO items \(id, slug, name, description, author_id, category, tags, version, readme, repo_url\)`).
		WithArgs(args...).
		WillReturnRows(pgxmock.NewRows([]string{"downloads", "likes", "published", "created_at", "updated_at"}).
			AddRow(int64(0), int64(0), true, now, now))
	require.NoError(t, r.Create(ctx, it))
	require.True(t, it.Published)
	require.Equal(t, now, it.CreatedAt)

	mock.ExpectQuery(`INSERT INTO items`).
		WithArgs(args...).
		WillReturnError(&pgconn.PgError{Code: "23505"})
	require.ErrorIs(t, r.Create(ctx, it), errs.ErrAlreadyExists)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestItemRepo_GetBySlug(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewItemRepo(db)
	ctx := context.Background()
	now := time.Now()
	id, author := uuid.Must(uuid.NewV4()), uuid.Must(uuid.NewV4())

	cols := []string{
		"id", "slug", "name", "description", "author_id", "username",
		"category", "tags", "version", "readme", "repo_url",
		"downloads", "likes", "published", "created_at", "updated_at",
	}
	mock.ExpectQuery(`SELECT .+ FROM items i JOIN users u ON u.id = i.author_id WHERE i.slug=\$1 AND i.published`).
		WithArgs("pdf-tools").
		WillReturnRows(pgxmock.NewRows(cols).AddRow(
			id, "pdf-tools", "PDF tools", "desc", author, "alice",
			"documents", []string{"pdf"}, "1.0.0", "", "",
			int64(12), int64(3), true, now, now,
		))
	it, err := r.GetBySlug(ctx, "pdf-tools")
	require.NoError(t, err)
	require.Equal(t, "alice", it.AuthorUsername)
	require.Equal(t, int64(3), it.Likes)
	require.Equal(t, []string{"pdf"}, it.Tags)

	mock.ExpectQuery(`SELECT .+ FROM items i`).
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)
	_, err = r.GetBySlug(ctx, "missing")
	require.ErrorIs(t, err, errs.ErrNotFound)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestItemRepo_IncrementDownloads(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewItemRepo(db)
	ctx := context.Background()

	mock.ExpectExec(`UPDATE items SET downloads = downloads \+ 1 WHERE slug=\$1`).
		WithArgs("pdf-tools").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	require.NoError(t, r.IncrementDownloads(ctx, "pdf-tools"))

	mock.ExpectExec(`UPDATE items SET downloads`).
		WithArgs("gone").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	require.ErrorIs(t, r.IncrementDownloads(ctx, "gone"), errs.ErrNotFound)

	boom := errors.New("db down")
	mock.ExpectExec(`UPDATE items SET downloads`).
		WithArgs("x").
		WillReturnError(boom)
	require.ErrorIs(t, r.IncrementDownloads(ctx, "x"), boom)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestItemRepo_ToggleLike_LikeThenUnlike(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewItemRepo(db)
	ctx := context.Background()
	userID, itemID := uuid.Must(uuid.NewV4()), uuid.Must(uuid.NewV4())

	// first toggle: no relation -> insert, counter 0 -> 1
	mock.ExpectBegin()
	mock.ExpectQuery(lockSQL).WithArgs("pdf-tools").
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(itemID))
	mock.ExpectExec(deleteSQL).WithArgs(userID, itemID).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectExec(insertSQL).WithArgs(userID, itemID).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectQuery(recountSQL).WithArgs(itemID).
		WillReturnRows(pgxmock.NewRows([]string{"likes"}).AddRow(int64(1)))
	mock.ExpectCommit()

	st, err := r.ToggleLike(ctx, userID, "pdf-tools")
	require.NoError(t, err)
	require.Equal(t, model.LikeState{Liked: true, Likes: 1}, st)

	// second toggle: relation exists -> delete, counter 1 -> 0
	mock.ExpectBegin()
	mock.ExpectQuery(lockSQL).WithArgs("pdf-tools").
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(itemID))
	mock.ExpectExec(deleteSQL).WithArgs(userID, itemID).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectQuery(recountSQL).WithArgs(itemID).
		WillReturnRows(pgxmock.NewRows([]string{"likes"}).AddRow(int64(0)))
	mock.ExpectCommit()

	st, err = r.ToggleLike(ctx, userID, "pdf-tools")
	require.NoError(t, err)
	require.Equal(t, model.LikeState{Liked: false, Likes: 0}, st)

	require.NoError(t, mock.ExpectationsWereMet())
}

// Missing and unpublished items are both invisible to the lock query.
func TestItemRepo_ToggleLike_ItemNotFound(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewItemRepo(db)

	mock.ExpectBegin()
	mock.ExpectQuery(lockSQL).WithArgs("missing").WillReturnError(pgx.ErrNoRows)
	mock.ExpectRollback()

	_, err := r.ToggleLike(context.Background(), uuid.Must(uuid.NewV4()), "missing")
	require.ErrorIs(t, err, errs.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestItemRepo_ToggleLike_StoreFailureRollsBack(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewItemRepo(db)
	userID, itemID := uuid.Must(uuid.NewV4()), uuid.Must(uuid.NewV4())
	boom := errors.New("connection lost")

	mock.ExpectBegin()
	mock.ExpectQuery(lockSQL).WithArgs("pdf-tools").
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(itemID))
	mock.ExpectExec(deleteSQL).WithArgs(userID, itemID).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectExec(insertSQL).WithArgs(userID, itemID).WillReturnError(boom)
	mock.ExpectRollback()

	_, err := r.ToggleLike(context.Background(), userID, "pdf-tools")
	require.ErrorIs(t, err, boom)
	require.NotErrorIs(t, err, errs.ErrConflict)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestItemRepo_ToggleLike_UniqueViolationIsConflict(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewItemRepo(db)
	userID, itemID := uuid.Must(uuid.NewV4()), uuid.Must(uuid.NewV4())

	mock.ExpectBegin()
	mock.ExpectQuery(lockSQL).WithArgs("pdf-tools").
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(itemID))
	mock.ExpectExec(deleteSQL).WithArgs(userID, itemID).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectExec(insertSQL).WithArgs(userID, itemID).
		WillReturnError(&pgconn.PgError{Code: "23505"})
	mock.ExpectRollback()

	_, err := r.ToggleLike(context.Background(), userID, "pdf-tools")
	require.ErrorIs(t, err, errs.ErrConflict)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestItemRepo_ToggleLike_CommitFailure(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewItemRepo(db)
	userID, itemID := uuid.Must(uuid.NewV4()), uuid.Must(uuid.NewV4())

	mock.ExpectBegin()
	mock.ExpectQuery(lockSQL).WithArgs("pdf-tools").
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(itemID))
	mock.ExpectExec(deleteSQL).WithArgs(userID, itemID).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectQuery(recountSQL).WithArgs(itemID).
		WillReturnRows(pgxmock.NewRows([]string{"likes"}).AddRow(int64(4)))
	mock.ExpectCommit().WillReturnError(errors.New("serialization failure"))

	st, err := r.ToggleLike(context.Background(), userID, "pdf-tools")
	require.Error(t, err)
	require.Equal(t, model.LikeState{}, st)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestItemRepo_ToggleLike_BeginFailure(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewItemRepo(db)

	mock.ExpectBegin().WillReturnError(errors.New("pool exhausted"))
	_, err := r.ToggleLike(context.Background(), uuid.Must(uuid.NewV4()), "pdf-tools")
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
