package mongo

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/024globalconnect/portal/internal/core/domain"
)

func testRepository(t *testing.T) *AccountRepository {
	t.Helper()
	uri := os.Getenv("MONGO_URI")
	if uri == "" {
		t.Skip("MONGO_URI not set")
	}

	ctx := context.Background()
	client, db, err := Connect(ctx, Config{URI: uri, Database: "portal_test_" + uuid.NewString()[:8]})
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() {
		_ = db.Drop(ctx)
		_ = client.Disconnect(ctx)
	})

	repo := NewAccountRepository(db)
	if err := repo.EnsureIndexes(ctx); err != nil {
		t.Fatalf("indexes: %v", err)
	}
	return repo
}

func TestAccountRepository_CreateAndFind(t *testing.T) {
	repo := testRepository(t)
	ctx := context.Background()

	created, err := repo.Create(ctx, &domain.Account{
		Username:     "njeri",
		Email:        "njeri@example.com",
		Role:         domain.RoleVendor,
		PasswordHash: "hash",
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.ID == "" {
		t.Fatalf("expected an id")
	}

	for name, find := range map[string]func() (*domain.Account, error){
		"id":       func() (*domain.Account, error) { return repo.FindByID(ctx, created.ID) },
		"username": func() (*domain.Account, error) { return repo.FindByUsername(ctx, "njeri") },
		"email":    func() (*domain.Account, error) { return repo.FindByEmail(ctx, "njeri@example.com") },
	} {
		got, err := find()
		if err != nil || got.ID != created.ID || got.Role != domain.RoleVendor {
			t.Fatalf("find by %s: %+v %v", name, got, err)
		}
	}

	if _, err := repo.Create(ctx, &domain.Account{Username: "njeri", Email: "other@example.com"}); !errors.Is(err, domain.ErrUserExists) {
		t.Fatalf("expected ErrUserExists, got %v", err)
	}
	if _, err := repo.FindByID(ctx, "not-an-object-id"); !errors.Is(err, domain.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestAccountRepository_Update(t *testing.T) {
	repo := testRepository(t)
	ctx := context.Background()

	created, err := repo.Create(ctx, &domain.Account{Username: "baraka", Email: "baraka@example.com"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	created.IsActive = true
	created.City = "Nyeri"
	if err := repo.Update(ctx, created); err != nil {
		t.Fatalf("update: %v", err)
	}

	got, _ := repo.FindByID(ctx, created.ID)
	if !got.IsActive || got.City != "Nyeri" {
		t.Fatalf("update not stored: %+v", got)
	}
}
