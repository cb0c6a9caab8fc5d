package session

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/kirillkom/eteeap-applicant-client/internal/core/domain"
)

func TestFileStoreLifecycle(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "session.json")
	store, err := NewFileStore(path)
	if err != nil {
		t.Fatalf("NewFileStore() error = %v", err)
	}

	if _, err := store.Load(context.Background()); !domain.IsKind(err, domain.ErrNoSession) {
		t.Fatalf("expected ErrNoSession before login, got %v", err)
	}

	want := domain.Session{Role: domain.RoleApplicant, ApplicantID: "7", Email: "ana@example.com"}
	if err := store.Save(context.Background(), want); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat session file: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Fatalf("expected 0600 permissions, got %v", info.Mode().Perm())
	}

	got, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got != want {
		t.Fatalf("Load() = %+v, want %+v", got, want)
	}

	if err := store.Clear(context.Background()); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	if err := store.Clear(context.Background()); err != nil {
		t.Fatalf("second Clear() error = %v", err)
	}
	if _, err := store.Load(context.Background()); !domain.IsKind(err, domain.ErrNoSession) {
		t.Fatalf("expected ErrNoSession after logout, got %v", err)
	}
}

func TestSaveRejectsAnonymousSession(t *testing.T) {
	store := NewMemoryStore()
	err := store.Save(context.Background(), domain.Session{Role: domain.RoleApplicant})
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestMemoryStoreLifecycle(t *testing.T) {
	store := NewMemoryStore()
	sess := domain.Session{Role: domain.RoleProgramAdmin, IsAdmin: true}
	if err := store.Save(context.Background(), sess); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	got, err := store.Load(context.Background())
	if err != nil || got != sess {
		t.Fatalf("Load() = %+v, %v", got, err)
	}
	_ = store.Clear(context.Background())
	if _, err := store.Load(context.Background()); !domain.IsKind(err, domain.ErrNoSession) {
		t.Fatalf("expected ErrNoSession, got %v", err)
	}
}

func redisForTest(t *testing.T) *redis.Client {
	t.Helper()
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = client.Close() })
	if err := client.Ping(context.Background()).Err(); err != nil {
		t.Skipf("redis unavailable: %v", err)
	}
	return client
}

func TestRedisSubmissionLockIsExclusive(t *testing.T) {
	client := redisForTest(t)
	lock := NewRedisSubmissionLock(client, 2*time.Second)
	applicantID := "test-" + t.Name()

	release, ok, err := lock.Acquire(context.Background(), applicantID)
	if err != nil || !ok {
		t.Fatalf("first Acquire() = %v, %v", ok, err)
	}
	if _, ok, err := lock.Acquire(context.Background(), applicantID); err != nil || ok {
		t.Fatalf("expected second Acquire() to fail, got %v, %v", ok, err)
	}
	release()
	release2, ok, err := lock.Acquire(context.Background(), applicantID)
	if err != nil || !ok {
		t.Fatalf("Acquire() after release = %v, %v", ok, err)
	}
	release2()
}

func TestRedisStoreLifecycle(t *testing.T) {
	client := redisForTest(t)
	store := NewRedisStore(client, "test-"+t.Name(), time.Minute)
	sess := domain.Session{Role: domain.RoleApplicant, ApplicantID: "7"}

	if err := store.Save(context.Background(), sess); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	got, err := store.Load(context.Background())
	if err != nil || got != sess {
		t.Fatalf("Load() = %+v, %v", got, err)
	}
	if err := store.Clear(context.Background()); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	if _, err := store.Load(context.Background()); !domain.IsKind(err, domain.ErrNoSession) {
		t.Fatalf("expected ErrNoSession, got %v", err)
	}
}
