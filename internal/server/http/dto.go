package httpserver

import (
	"strings"
	"time"

	"github.com/and161185/skillmarket/internal/model"
)

type registerRequest struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Username string `json:"username" validate:"required,max=64"`
	Password string `json:"password" validate:"required,max=1024"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// normalizer is implemented by requests that clean input before validation.
type normalizer interface {
	normalize()
}

func (r *registerRequest) normalize() {
	r.Email = strings.TrimSpace(r.Email)
	r.Username = strings.TrimSpace(r.Username)
}

func (r *loginRequest) normalize() { r.Email = strings.TrimSpace(r.Email) }

type createItemRequest struct {
	Name        string   `json:"name" validate:"required,max=120"`
	Slug        string   `json:"slug" validate:"required,max=64"`
	Description string   `json:"description" validate:"required,max=1000"`
	Category    string   `json:"category" validate:"required,max=64"`
	Tags        []string `json:"tags" validate:"max=16,dive,required,max=32"`
	Version     string   `json:"version" validate:"omitempty,max=32"`
	Readme      string   `json:"readme" validate:"omitempty,max=65536"`
	RepoURL     string   `json:"repoUrl" validate:"omitempty,url,max=512"`
}

func (r createItemRequest) toModel() model.NewItem {
	return model.NewItem{
		Name:        r.Name,
		Slug:        r.Slug,
		Description: r.Description,
		Category:    r.Category,
		Tags:        r.Tags,
		Version:     r.Version,
		Readme:      r.Readme,
		RepoURL:     r.RepoURL,
	}
}

type userResponse struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	Username    string    `json:"username"`
	DisplayName string    `json:"displayName,omitempty"`
	AvatarURL   string    `json:"avatarUrl,omitempty"`
	Bio         string    `json:"bio,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

func toUserResponse(u model.User) userResponse {
	return userResponse{
		ID:          u.ID.String(),
		Email:       u.Email,
		Username:    u.Username,
		DisplayName: u.DisplayName,
		AvatarURL:   u.AvatarURL,
		Bio:         u.Bio,
		CreatedAt:   u.CreatedAt,
	}
}

type authResponse struct {
	User      userResponse `json:"user"`
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expiresAt"`
}

type itemResponse struct {
	ID             string    `json:"id"`
	Slug           string    `json:"slug"`
	Name           string    `json:"name"`
	Description    string    `json:"description"`
	AuthorID       string    `json:"authorId"`
	AuthorUsername string    `json:"authorUsername,omitempty"`
	Category       string    `json:"category"`
	Tags           []string  `json:"tags"`
	Version        string    `json:"version"`
	Readme         string    `json:"readme,omitempty"`
	RepoURL        string    `json:"repoUrl,omitempty"`
	Downloads      int64     `json:"downloads"`
	Likes          int64     `json:"likes"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

func toItemResponse(it model.Item) itemResponse {
	tags := it.Tags
	if tags == nil {
		tags = []string{}
	}
	return itemResponse{
		ID:             it.ID.String(),
		Slug:           it.Slug,
		Name:           it.Name,
		Description:    it.Description,
		AuthorID:       it.AuthorID.String(),
		AuthorUsername: it.AuthorUsername,
		Category:       it.Category,
		Tags:           tags,
		Version:        it.Version,
		Readme:         it.Readme,
		RepoURL:        it.RepoURL,
		Downloads:      it.Downloads,
		Likes:          it.Likes,
		CreatedAt:      it.CreatedAt,
		UpdatedAt:      it.UpdatedAt,
	}
}

type likeResponse struct {
	Liked bool  `json:"liked"`
	Likes int64 `json:"likes"`
}
