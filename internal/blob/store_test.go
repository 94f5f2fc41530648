package blob

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"strings"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *FSStore {
	t.Helper()
	store, err := NewFSStore(t.TempDir(), "raw", "http://localhost:8080")
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	return store
}

func TestFSStorePutOpenDelete(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	data := []byte("pdf bytes here")
	info, err := store.Put(ctx, "abc_labs.pdf", bytes.NewReader(data), "application/pdf")
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if info.Size != int64(len(data)) {
		t.Errorf("size = %d, want %d", info.Size, len(data))
	}
	if info.URI != "http://localhost:8080/files/abc_labs.pdf" {
		t.Errorf("uri = %q", info.URI)
	}

	rc, _, err := store.Open(ctx, "abc_labs.pdf")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	got, _ := io.ReadAll(rc)
	rc.Close()
	if !bytes.Equal(got, data) {
		t.Errorf("read back %q, want %q", got, data)
	}

	exists, err := store.Exists(ctx, "abc_labs.pdf")
	if err != nil || !exists {
		t.Errorf("exists = %v, %v", exists, err)
	}

	if err := store.Delete(ctx, "abc_labs.pdf"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, _, err := store.Open(ctx, "abc_labs.pdf"); !errors.Is(err, ErrNotFound) {
		t.Errorf("open after delete: %v, want ErrNotFound", err)
	}
	if err := store.Delete(ctx, "abc_labs.pdf"); !errors.Is(err, ErrNotFound) {
		t.Errorf("double delete: %v, want ErrNotFound", err)
	}
}

func TestFSStoreRejectsPathTraversal(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	bad := []string{"../escape", "a/b", ".hidden", ""}
	for _, name := range bad {
		if _, err := store.Put(ctx, name, strings.NewReader("x"), ""); err == nil {
			t.Errorf("Put(%q) accepted", name)
		}
		if _, _, err := store.Open(ctx, name); err == nil {
			t.Errorf("Open(%q) accepted", name)
		}
	}
}

func TestFSStoreList(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for _, name := range []string{"one.pdf", "two.pdf"} {
		if _, err := store.Put(ctx, name, strings.NewReader("x"), ""); err != nil {
			t.Fatalf("put %s: %v", name, err)
		}
	}

	infos, err := store.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(infos) != 2 {
		t.Errorf("list = %d entries, want 2", len(infos))
	}
}

func TestMakeBlobNameSanitizes(t *testing.T) {
	name := MakeBlobName("my labs (final)!.pdf")
	if strings.ContainsAny(name, " ()!") {
		t.Errorf("unsafe characters survived: %q", name)
	}
	if !strings.HasSuffix(name, ".pdf") {
		t.Errorf("extension lost: %q", name)
	}

	// Names must be unique across calls for the same file.
	if MakeBlobName("a.pdf") == MakeBlobName("a.pdf") {
		t.Error("two names for the same file collided")
	}
}

func TestSignerRoundTrip(t *testing.T) {
	signer := NewSigner("secret", time.Hour)

	url, err := signer.SignedURL("http://localhost:8080/files/abc.pdf", "abc.pdf", "user-1")
	if err != nil {
		t.Fatalf("signed url: %v", err)
	}
	if !strings.Contains(url, "?token=") {
		t.Errorf("url %q missing token parameter", url)
	}

	token, err := signer.Sign("abc.pdf", "user-1")
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	claims, err := signer.Verify(token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.BlobName != "abc.pdf" {
		t.Errorf("blob name = %q", claims.BlobName)
	}
	if claims.UserID != "user-1" {
		t.Errorf("user id = %q", claims.UserID)
	}
}

func TestSignerRejectsExpiredToken(t *testing.T) {
	signer := NewSigner("secret", -time.Minute)

	token, err := signer.Sign("abc.pdf", "user-1")
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := signer.Verify(token); err == nil {
		t.Fatal("expired token accepted")
	}
}

func TestSignerRejectsWrongSecret(t *testing.T) {
	token, err := NewSigner("secret-a", time.Hour).Sign("abc.pdf", "")
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := NewSigner("secret-b", time.Hour).Verify(token); err == nil {
		t.Fatal("token signed with another secret accepted")
	}
}

func TestBlobNameFromURI(t *testing.T) {
	cases := []struct {
		uri  string
		want string
	}{
		{"http://localhost:8080/files/abc_labs.pdf", "abc_labs.pdf"},
		{"http://localhost:8080/files/abc.pdf?token=xyz", "abc.pdf"},
		{"abc.pdf", "abc.pdf"},
	}
	for _, c := range cases {
		if got := BlobNameFromURI(c.uri); got != c.want {
			t.Errorf("BlobNameFromURI(%q) = %q, want %q", c.uri, got, c.want)
		}
	}
}

func TestFSStorePutChecksum(t *testing.T) {
	store := newTestStore(t)

	data := []byte("checksummed content")
	info, err := store.Put(context.Background(), "sum.pdf", bytes.NewReader(data), "application/pdf")
	if err != nil {
		t.Fatalf("put: %v", err)
	}

	want := sha256.Sum256(data)
	if info.Checksum != hex.EncodeToString(want[:]) {
		t.Errorf("checksum = %q, want %q", info.Checksum, hex.EncodeToString(want[:]))
	}
}
