package profiles

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"streamvault/internal/database"
	"streamvault/models"
)

func setupProfilesService(t *testing.T) (*Service, *database.DB) {
	t.Helper()

	dir := t.TempDir()
	db, err := database.NewDB(database.Config{DatabasePath: filepath.Join(dir, "test.db")})
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	return NewService(db), db
}

func TestCreate_ValidatesName(t *testing.T) {
	svc, _ := setupProfilesService(t)
	ctx := context.Background()

	if _, err := svc.Create(ctx, "   ", false, 0); err == nil {
		t.Fatal("expected error for blank profile name")
	}

	p, err := svc.Create(ctx, "  Living Room  ", false, 120)
	if err != nil {
		t.Fatalf("failed to create profile: %v", err)
	}
	if p.ID == 0 {
		t.Fatal("expected profile ID to be assigned")
	}
	if p.Name != "Living Room" {
		t.Fatalf("expected trimmed name, got %q", p.Name)
	}
}

func TestCreate_EnforcesProfileCap(t *testing.T) {
	svc, _ := setupProfilesService(t)
	ctx := context.Background()

	for i := 0; i < maxProfiles; i++ {
		if _, err := svc.Create(ctx, fmt.Sprintf("Profile %d", i), false, i*30); err != nil {
			t.Fatalf("failed to create profile %d: %v", i, err)
		}
	}

	if _, err := svc.Create(ctx, "One Too Many", false, 0); err == nil {
		t.Fatal("expected error when exceeding profile cap")
	}
}

func TestToggleFavorite(t *testing.T) {
	svc, _ := setupProfilesService(t)
	ctx := context.Background()

	p, err := svc.Create(ctx, "Alex", false, 200)
	if err != nil {
		t.Fatalf("failed to create profile: %v", err)
	}

	on, err := svc.ToggleFavorite(ctx, p.ID, models.MediaTypeMovie, 42)
	if err != nil {
		t.Fatalf("failed to toggle favorite: %v", err)
	}
	if !on {
		t.Fatal("expected first toggle to add the favorite")
	}

	favs, err := svc.Favorites(ctx, p.ID)
	if err != nil {
		t.Fatalf("failed to list favorites: %v", err)
	}
	if len(favs) != 1 || favs[0].MediaID != 42 {
		t.Fatalf("expected one favorite for media 42, got %+v", favs)
	}

	on, err = svc.ToggleFavorite(ctx, p.ID, models.MediaTypeMovie, 42)
	if err != nil {
		t.Fatalf("failed to toggle favorite off: %v", err)
	}
	if on {
		t.Fatal("expected second toggle to remove the favorite")
	}

	favs, err = svc.Favorites(ctx, p.ID)
	if err != nil {
		t.Fatalf("failed to list favorites: %v", err)
	}
	if len(favs) != 0 {
		t.Fatalf("expected no favorites after removal, got %d", len(favs))
	}
}

func TestDelete_RemovesProfile(t *testing.T) {
	svc, _ := setupProfilesService(t)
	ctx := context.Background()

	p, err := svc.Create(ctx, "Temp", true, 0)
	if err != nil {
		t.Fatalf("failed to create profile: %v", err)
	}

	if err := svc.Delete(ctx, p.ID); err != nil {
		t.Fatalf("failed to delete profile: %v", err)
	}

	got, err := svc.Get(ctx, p.ID)
	if err != nil {
		t.Fatalf("unexpected error fetching deleted profile: %v", err)
	}
	if got != nil {
		t.Fatal("expected nil for deleted profile")
	}
}
