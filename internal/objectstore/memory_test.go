package objectstore_test

import (
	"context"
	"errors"
	"testing"

	"github.com/andrevros/imovelsync/internal/objectstore"
)

func TestMemStore(t *testing.T) {
	ctx := context.Background()
	m := objectstore.NewMemStore()

	url, err := m.Put(ctx, "listings/482/001.jpg", []byte("photo"), "image/jpeg")
	if err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if url != "mem://listings/482/001.jpg" {
		t.Errorf("unexpected url %q", url)
	}

	data, err := m.Get(ctx, "listings/482/001.jpg")
	if err != nil || string(data) != "photo" {
		t.Errorf("Get returned %q, %v", data, err)
	}
	if ct := m.ContentType("listings/482/001.jpg"); ct != "image/jpeg" {
		t.Errorf("content type wrong: %q", ct)
	}

	if _, err := m.Get(ctx, "listings/482/002.jpg"); !errors.Is(err, objectstore.ErrObjectNotFound) {
		t.Errorf("expected ErrObjectNotFound, got %v", err)
	}

	m.Put(ctx, "listings/482/002.jpg", []byte("x"), "image/jpeg")
	m.Put(ctx, "listings/483/001.jpg", []byte("y"), "image/jpeg")

	keys, err := m.List(ctx, "listings/482/")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(keys) != 2 || keys[0] != "listings/482/001.jpg" {
		t.Errorf("List wrong: %v", keys)
	}

	if err := m.Delete(ctx, "listings/482/001.jpg"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if m.Len() != 2 {
		t.Errorf("expected 2 objects after delete, got %d", m.Len())
	}
}

func TestPhotoKeyLayout(t *testing.T) {
	if got := objectstore.PhotoKey("listings", 482, 3); got != "listings/482/003.jpg" {
		t.Errorf("PhotoKey wrong: %q", got)
	}
	if got := objectstore.ThumbnailKey("listings", 482); got != "listings/482/thumb.jpg" {
		t.Errorf("ThumbnailKey wrong: %q", got)
	}
}
