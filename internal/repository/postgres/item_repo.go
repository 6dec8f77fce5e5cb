package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/and161185/skillmarket/internal/errs"
	"github.com/and161185/skillmarket/internal/model"
	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"
)

// ItemRepo implements ItemRepository using PostgreSQL.
type ItemRepo struct{ db *DB }

// NewItemRepo constructs an item repository.
func NewItemRepo(db *DB) *ItemRepo { return &ItemRepo{db: db} }

// Create inserts a new item and fills server-side defaults.
func (r *ItemRepo) Create(ctx context.Context, it *model.Item) error {
	const q = `
INSERT INTO items (id, slug, name, description, author_id, category, tags, version, readme, repo_url)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
RETURNING downloads, likes, published, created_at, updated_at`
	err := r.db.Pool.QueryRow(ctx, q,
		it.ID, it.Slug, it.Name, it.Description, it.AuthorID,
		it.Category, it.Tags, it.Version, it.Readme, it.RepoURL,
	).Scan(&it.Downloads, &it.Likes, &it.Published, &it.CreatedAt, &it.UpdatedAt)
	if isUniqueViolation(err) {
		return errs.ErrAlreadyExists
	}
	return err
}

// GetBySlug returns a published item with its author's username.
func (r *ItemRepo) GetBySlug(ctx context.Context, slug string) (*model.Item, error) {
	const q = `
SELECT i.id, i.slug, i.name, i.description, i.author_id, u.username,
       i.category, i.tags, i.version, i.readme, i.repo_url,
       i.downloads, i.likes, i.published, i.created_at, i.updated_at
FROM items i
JOIN users u ON u.id = i.author_id
WHERE i.slug=$1 AND i.published`
	var it model.Item
	err := r.db.Pool.QueryRow(ctx, q, slug).Scan(
		&it.ID, &it.Slug, &it.Name, &it.Description, &it.AuthorID, &it.AuthorUsername,
		&it.Category, &it.Tags, &it.Version, &it.Readme, &it.RepoURL,
		&it.Downloads, &it.Likes, &it.Published, &it.CreatedAt, &it.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	return &it, nil
}

// IncrementDownloads bumps the download counter by one.
func (r *ItemRepo) IncrementDownloads(ctx context.Context, slug string) error {
	const q = `UPDATE items SET downloads = downloads + 1 WHERE slug=$1`
	tag, err := r.db.Pool.Exec(ctx, q, slug)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

// ToggleLike flips the like relation of (userID, item) inside one transaction.
//
// The item row is locked first. The relation is deleted if present and
// inserted otherwise. items.likes is recomputed from item_likes before commit.
func (r *ItemRepo) ToggleLike(ctx context.Context, userID uuid.UUID, slug string) (state model.LikeState, err error) {
	const (
		lock    = `SELECT id FROM items WHERE slug=$1 AND published FOR UPDATE`
		del     = `DELETE FROM item_likes WHERE user_id=$1 AND item_id=$2`
		ins     = `INSERT INTO item_likes (user_id, item_id) VALUES ($1, $2)`
		recount = `
UPDATE items
SET likes = (SELECT count(*) FROM item_likes WHERE item_id=$1)
WHERE id=$1
RETURNING likes`
	)

	err = r.db.inTx(ctx, func(tx pgx.Tx) error {
		var itemID uuid.UUID
		if err := tx.QueryRow(ctx, lock, slug).Scan(&itemID); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return errs.ErrNotFound
			}
			return err
		}

		tag, err := tx.Exec(ctx, del, userID, itemID)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			if _, err := tx.Exec(ctx, ins, userID, itemID); err != nil {
				if isUniqueViolation(err) {
					// only reachable if a writer bypassed the row lock
					return fmt.Errorf("like relation: %w", errs.ErrConflict)
				}
				return err
			}
			state.Liked = true
		}

		return tx.QueryRow(ctx, recount, itemID).Scan(&state.Likes)
	})
	if err != nil {
		return model.LikeState{}, err
	}
	return state, nil
}
