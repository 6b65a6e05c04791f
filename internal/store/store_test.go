package store

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "out"), "png")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return s
}

func TestDigest(t *testing.T) {
	// sha256("abc")
	want := "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"
	if got := Digest([]byte("abc")); got != want {
		t.Fatalf("Digest = %s, want %s", got, want)
	}
	if !ValidDigest(want) {
		t.Fatal("ValidDigest rejected a digest")
	}
	for _, bad := range []string{"", "abc", strings.ToUpper(want), want[:63] + "g"} {
		if ValidDigest(bad) {
			t.Fatalf("ValidDigest(%q) = true", bad)
		}
	}
}

func TestPutAndHas(t *testing.T) {
	s := testStore(t)
	d := Digest([]byte("input"))

	has, err := s.Has(d)
	if err != nil {
		t.Fatalf("Has: %v", err)
	}
	if has {
		t.Fatal("expected Has to return false before Put")
	}

	if err := s.Put(d, func(w io.Writer) error {
		_, err := io.WriteString(w, "payload")
		return err
	}); err != nil {
		t.Fatalf("Put: %v", err)
	}

	has, err = s.Has(d)
	if err != nil || !has {
		t.Fatalf("Has after Put = %v, %v; want true", has, err)
	}
	data, err := os.ReadFile(filepath.Join(s.Dir(), d+".png"))
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if string(data) != "payload" {
		t.Fatalf("output = %q, want payload", data)
	}
}

func TestPutFailureLeavesNothing(t *testing.T) {
	s := testStore(t)
	d := Digest([]byte("broken"))

	boom := errors.New("boom")
	err := s.Put(d, func(w io.Writer) error {
		io.WriteString(w, "partial")
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Put err = %v, want boom", err)
	}

	entries, _ := os.ReadDir(s.Dir())
	if len(entries) != 0 {
		t.Fatalf("expected empty dir after failed Put, found %d entries", len(entries))
	}
}

func TestOpenNotWritable(t *testing.T) {
	file := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(file, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Open(filepath.Join(file, "out"), "png"); err == nil {
		t.Fatal("expected error opening a store below a regular file")
	}
}

func TestListAndFind(t *testing.T) {
	s := testStore(t)
	d1, d2 := Digest([]byte("one")), Digest([]byte("two"))
	for _, d := range []string{d1, d2} {
		if err := s.Put(d, func(w io.Writer) error {
			_, err := io.WriteString(w, "xx")
			return err
		}); err != nil {
			t.Fatalf("Put: %v", err)
		}
	}
	os.WriteFile(filepath.Join(s.Dir(), "notes.txt"), []byte("ignored"), 0o644)
	os.WriteFile(filepath.Join(s.Dir(), ".snapcrop-abc-1.tmp"), []byte("ignored"), 0o644)

	entries, err := List(s.Dir())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("List returned %d entries, want 2", len(entries))
	}
	for _, e := range entries {
		if e.Ext != "png" || e.Size != 2 {
			t.Fatalf("entry %+v", e)
		}
	}

	path, ok := Find(s.Dir(), d1)
	if !ok || path != s.Path(d1) {
		t.Fatalf("Find = %q, %v; want %q", path, ok, s.Path(d1))
	}
	if _, ok := Find(s.Dir(), Digest([]byte("three"))); ok {
		t.Fatal("Find returned a missing digest")
	}
	if _, ok := Find(s.Dir(), "../etc"); ok {
		t.Fatal("Find accepted an invalid digest")
	}
}

func TestPutLeavesOnlyFinalFile(t *testing.T) {
	s := testStore(t)
	d := Digest([]byte("final"))
	if err := s.Put(d, func(w io.Writer) error {
		_, err := io.WriteString(w, "encoded")
		return err
	}); err != nil {
		t.Fatalf("Put: %v", err)
	}

	entries, err := os.ReadDir(s.Dir())
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 1 || entries[0].Name() != s.Name(d) {
		t.Fatalf("dir holds %v, want only %s", entries, s.Name(d))
	}
	info, err := entries[0].Info()
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Size() != int64(len("encoded")) {
		t.Fatalf("size = %d, want %d", info.Size(), len("encoded"))
	}
	if perm := info.Mode().Perm(); perm != 0o644 {
		t.Fatalf("mode = %o, want 644", perm)
	}
}

func TestHasIgnoresEmptyFile(t *testing.T) {
	s := testStore(t)
	d := Digest([]byte("torn"))
	if err := os.WriteFile(s.Path(d), nil, 0o644); err != nil {
		t.Fatal(err)
	}

	has, err := s.Has(d)
	if err != nil {
		t.Fatalf("Has: %v", err)
	}
	if has {
		t.Fatal("Has = true for a zero-length output")
	}

	if err := s.Put(d, func(w io.Writer) error {
		_, err := io.WriteString(w, "repaired")
		return err
	}); err != nil {
		t.Fatalf("Put over empty file: %v", err)
	}
	if has, _ := s.Has(d); !has {
		t.Fatal("Has = false after Put")
	}
	data, _ := os.ReadFile(s.Path(d))
	if string(data) != "repaired" {
		t.Fatalf("output = %q, want repaired", data)
	}
}
