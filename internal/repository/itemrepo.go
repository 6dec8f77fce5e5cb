package repository

import (
	"context"

	"github.com/and161185/skillmarket/internal/model"
	"github.com/gofrs/uuid/v5"
)

// ItemRepository provides access to catalog items and their like relations.
type ItemRepository interface {
	// Create inserts a new item; returns errs.ErrAlreadyExists when the slug is taken.
	Create(ctx context.Context, it *model.Item) error

	// GetBySlug returns a published item together with its author's username.
	GetBySlug(ctx context.Context, slug string) (*model.Item, error)

	// IncrementDownloads bumps the download counter of an item.
	IncrementDownloads(ctx context.Context, slug string) error

	// ToggleLike flips the (user, item) like relation and returns the new state.
	// The relation write and the counter update happen in one transaction.
	ToggleLike(ctx context.Context, userID uuid.UUID, slug string) (model.LikeState, error)
}
