package httpserver

import (
	"context"
	"testing"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/skillmarket/internal/model"
)

func TestWithIdentity_And_IdentityFromCtx(t *testing.T) {
	t.Parallel()

	if id, ok := IdentityFromCtx(context.Background()); ok || id != (model.Identity{}) {
		t.Fatalf("expected no identity in empty ctx")
	}

	want := model.Identity{UserID: uuid.Must(uuid.NewV4()), Email: "a@example.com", Username: "a"}
	ctx := WithIdentity(context.Background(), want)

	got, ok := IdentityFromCtx(ctx)
	if !ok {
		t.Fatalf("expected identity in ctx")
	}
	if got != want {
		t.Fatalf("mismatch: got %+v, want %+v", got, want)
	}

	bad := context.WithValue(context.Background(), identityKey, "not-an-identity")
	if id, ok := IdentityFromCtx(bad); ok || id != (model.Identity{}) {
		t.Fatalf("expected miss on wrong typed value")
	}
}
