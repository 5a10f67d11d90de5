package agenthost

import (
	"context"
	"errors"
	"testing"
)

func TestReferenceHostCreateDeleteCreateRoundTrip(t *testing.T) {
	h := NewReferenceHost()
	ctx := context.Background()

	if err := h.Create(ctx, "a1", []byte("init"), []byte("src")); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := h.Create(ctx, "a1", nil, nil); err == nil {
		t.Fatal("expected AlreadyExistsError on duplicate create")
	} else if !errors.As(err, new(*AlreadyExistsError)) {
		t.Fatalf("expected AlreadyExistsError, got %v", err)
	}

	if err := h.Delete(ctx, "a1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := h.Create(ctx, "a1", []byte("init2"), []byte("src2")); err != nil {
		t.Fatalf("Create after delete: %v", err)
	}
}

func TestReferenceHostDeleteUnknownIsNotFound(t *testing.T) {
	h := NewReferenceHost()
	err := h.Delete(context.Background(), "missing")
	if !errors.As(err, new(*NotFoundError)) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
}

func TestReferenceHostCloneYieldsDistinctID(t *testing.T) {
	h := NewReferenceHost()
	ctx := context.Background()
	h.Create(ctx, "a1", []byte("init"), []byte("src"))

	newID, err := h.Clone(ctx, "a1")
	if err != nil {
		t.Fatalf("Clone: %v", err)
	}
	if newID == "a1" {
		t.Fatal("clone must yield a distinct id")
	}

	ids, err := h.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	found := map[string]bool{}
	for _, id := range ids {
		found[id] = true
	}
	if !found["a1"] || !found[newID] {
		t.Fatalf("List() = %v, want both a1 and %s", ids, newID)
	}
}

func TestReferenceHostReplyAndMemory(t *testing.T) {
	h := NewReferenceHost()
	ctx := context.Background()
	h.Create(ctx, "a1", nil, nil)

	out, err := h.Reply(ctx, "a1", []byte("hello"))
	if err != nil {
		t.Fatalf("Reply: %v", err)
	}
	if string(out) != "hello" {
		t.Fatalf("Reply() = %q, want echo of input", out)
	}

	mem, err := h.Memory(ctx, "a1")
	if err != nil {
		t.Fatalf("Memory: %v", err)
	}
	if string(mem) != "hello" {
		t.Fatalf("Memory() = %q, want %q", mem, "hello")
	}
}

func TestReferenceHostDeleteAllViaRepeatedDelete(t *testing.T) {
	h := NewReferenceHost()
	ctx := context.Background()
	h.Create(ctx, "a1", nil, nil)
	h.Create(ctx, "a2", nil, nil)

	ids, _ := h.List(ctx)
	for _, id := range ids {
		if err := h.Delete(ctx, id); err != nil {
			t.Fatalf("Delete(%s): %v", id, err)
		}
	}

	remaining, err := h.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(remaining) != 0 {
		t.Fatalf("List() = %v, want empty after deleting all", remaining)
	}
}
