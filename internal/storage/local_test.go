package storage

import (
	"context"
	"errors"
	"os"
	"testing"
)

func TestLocal_WriteReadDelete(t *testing.T) {
	ctx := context.Background()
	store, err := NewLocal(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocal failed: %v", err)
	}

	if err := WriteFile(ctx, store, "detections/match_alice.jpg", []byte("jpeg-bytes")); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	ok, err := store.Exists(ctx, "detections/match_alice.jpg")
	if err != nil || !ok {
		t.Fatalf("expected file to exist, ok=%v err=%v", ok, err)
	}

	data, err := ReadFile(ctx, store, "/detections/match_alice.jpg")
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if string(data) != "jpeg-bytes" {
		t.Errorf("unexpected content %q", data)
	}

	if err := store.Delete(ctx, "detections/match_alice.jpg"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if err := store.Delete(ctx, "detections/match_alice.jpg"); err != nil {
		t.Errorf("second Delete should be idempotent, got %v", err)
	}

	_, err = ReadFile(ctx, store, "detections/match_alice.jpg")
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected ErrNotExist, got %v", err)
	}
}

func TestLocal_RejectsTraversal(t *testing.T) {
	ctx := context.Background()
	store, err := NewLocal(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocal failed: %v", err)
	}

	for _, path := range []string{"../secret", "a/../../b", ""} {
		if _, err := store.Read(ctx, path); !errors.Is(err, ErrInvalidPath) {
			t.Errorf("Read(%q) error = %v, want ErrInvalidPath", path, err)
		}
		if _, err := store.Write(ctx, path); !errors.Is(err, ErrInvalidPath) {
			t.Errorf("Write(%q) error = %v, want ErrInvalidPath", path, err)
		}
	}
}
