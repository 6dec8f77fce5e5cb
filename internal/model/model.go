// Package model defines domain entities used by services and repositories.
package model

import (
	"time"

	"github.com/gofrs/uuid/v5"
)

// Tokens collects an issued access token and its expiry.
type Tokens struct {
	AccessToken string
	ExpiresAt   time.Time // access token expiry (for diagnostics)
}

// Identity is the authenticated principal carried by a verified bearer token.
type Identity struct {
	UserID   uuid.UUID
	Email    string
	Username string
}

// User represents an account. PasswordHash is an opaque credential record, never the password.
type User struct {
	ID           uuid.UUID // PK
	Email        string    // unique, stored lower-cased
	Username     string    // unique
	PasswordHash string
	DisplayName  string
	AvatarURL    string
	Bio          string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Identity returns the token subject for the user.
func (u User) Identity() Identity {
	return Identity{UserID: u.ID, Email: u.Email, Username: u.Username}
}

// Item is a catalog entry that users can like and download.
type Item struct {
	ID             uuid.UUID
	Slug           string // unique, URL-safe
	Name           string
	Description    string
	AuthorID       uuid.UUID // FK -> users.id
	AuthorUsername string    // joined on read, empty on create
	Category       string
	Tags           []string
	Version        string
	Readme         string
	RepoURL        string
	Downloads      int64
	Likes          int64 // always equals the number of like relations for the item
	Published      bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// NewItem is a create intent coming from an authenticated author.
type NewItem struct {
	Name        string
	Slug        string
	Description string
	Category    string
	Tags        []string
	Version     string
	Readme      string
	RepoURL     string
}

// LikeState is the result of a like toggle.
type LikeState struct {
	Liked bool
	Likes int64 // counter value after the toggle
}
