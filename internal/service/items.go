package service

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/skillmarket/internal/errs"
	"github.com/and161185/skillmarket/internal/model"
	"github.com/and161185/skillmarket/internal/repository"
)

const (
	maxSlugLen     = 64
	maxTags        = 16
	defaultVersion = "1.0.0"
)

var slugRe = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

// DownloadScheduler queues a download-count increment outside the request path.
type DownloadScheduler interface {
	Schedule(slug string) bool
}

// ItemService defines operations over catalog items.
type ItemService interface {
	// Create stores a new item authored by authorID.
	Create(ctx context.Context, authorID uuid.UUID, in model.NewItem) (*model.Item, error)
	// Get returns a published item and schedules a download-count increment.
	Get(ctx context.Context, slug string) (*model.Item, error)
	// ToggleLike flips the caller's like on an item.
	ToggleLike(ctx context.Context, userID uuid.UUID, slug string) (model.LikeState, error)
}

type ItemServiceImpl struct {
	repo      repository.ItemRepository
	downloads DownloadScheduler
}

// NewItemService constructs ItemService. downloads may be nil to disable counting.
func NewItemService(repo repository.ItemRepository, downloads DownloadScheduler) *ItemServiceImpl {
	return &ItemServiceImpl{repo: repo, downloads: downloads}
}

// ValidSlug reports whether s is a lower-case, dash-separated slug.
func ValidSlug(s string) bool {
	return len(s) <= maxSlugLen && slugRe.MatchString(s)
}

// Create validates input and delegates to the repository.
// Validation rules:
// - name, slug, description, category not empty
// - slug matches ValidSlug
// - at most maxTags tags
func (s *ItemServiceImpl) Create(ctx context.Context, authorID uuid.UUID, in model.NewItem) (*model.Item, error) {
	if authorID == uuid.Nil {
		return nil, fmt.Errorf("%w: empty authorID", errs.ErrValidation)
	}
	in.Name = strings.TrimSpace(in.Name)
	in.Description = strings.TrimSpace(in.Description)
	in.Category = strings.TrimSpace(in.Category)
	if in.Name == "" || in.Slug == "" || in.Description == "" || in.Category == "" {
		return nil, fmt.Errorf("%w: name, slug, description, and category are required", errs.ErrValidation)
	}
	if !ValidSlug(in.Slug) {
		return nil, fmt.Errorf("%w: bad slug %q", errs.ErrValidation, in.Slug)
	}
	if len(in.Tags) > maxTags {
		return nil, fmt.Errorf("%w: too many tags (%d > %d)", errs.ErrValidation, len(in.Tags), maxTags)
	}
	if in.Tags == nil {
		in.Tags = []string{}
	}
	if in.Version == "" {
		in.Version = defaultVersion
	}

	id, err := uuid.NewV4()
	if err != nil {
		return nil, err
	}
	it := &model.Item{
		ID:          id,
		Slug:        in.Slug,
		Name:        in.Name,
		Description: in.Description,
		AuthorID:    authorID,
		Category:    in.Category,
		Tags:        in.Tags,
		Version:     in.Version,
		Readme:      in.Readme,
		RepoURL:     in.RepoURL,
	}
	if err := s.repo.Create(ctx, it); err != nil {
		return nil, err
	}
	return it, nil
}

// Get fetches a published item by slug.
func (s *ItemServiceImpl) Get(ctx context.Context, slug string) (*model.Item, error) {
	if !ValidSlug(slug) {
		return nil, errs.ErrNotFound
	}
	it, err := s.repo.GetBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	if s.downloads != nil {
		s.downloads.Schedule(slug)
	}
	return it, nil
}

// ToggleLike flips the like relation for (userID, slug).
func (s *ItemServiceImpl) ToggleLike(ctx context.Context, userID uuid.UUID, slug string) (model.LikeState, error) {
	if userID == uuid.Nil {
		return model.LikeState{}, fmt.Errorf("%w: empty userID", errs.ErrValidation)
	}
	if !ValidSlug(slug) {
		return model.LikeState{}, errs.ErrNotFound
	}
	return s.repo.ToggleLike(ctx, userID, slug)
}
