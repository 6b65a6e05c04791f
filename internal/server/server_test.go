package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Jesssullivan/snapcrop/internal/catalog"
	"github.com/Jesssullivan/snapcrop/internal/store"
	"github.com/rs/zerolog"
)

func testSetup(t *testing.T) (*catalog.DB, string) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := catalog.Open(dbPath)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	outDir := filepath.Join(t.TempDir(), "out")
	os.MkdirAll(outDir, 0o755)

	return db, outDir
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest("GET", path, nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestHealthEndpoint(t *testing.T) {
	db, outDir := testSetup(t)
	os.WriteFile(filepath.Join(outDir, store.Digest([]byte("a"))+".png"), make([]byte, 1024), 0o644)
	os.WriteFile(filepath.Join(outDir, "notes.txt"), []byte("ignored"), 0o644)
	db.Record(context.Background(), &catalog.Record{RunID: "r1", Path: "a.png", Digest: store.Digest([]byte("a")), Outcome: catalog.OutcomeWritten})

	w := get(t, New(outDir, db, zerolog.Nop()), "/api/health")
	if w.Code != http.StatusOK {
		t.Fatalf("health returned %d, want 200", w.Code)
	}

	var resp healthResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode health: %v", err)
	}
	if resp.Status != "ok" {
		t.Fatalf("status = %q, want ok", resp.Status)
	}
	if resp.Files != 1 {
		t.Fatalf("files = %d, want 1", resp.Files)
	}
	if resp.Journal == nil || resp.Journal.Written != 1 || resp.Journal.Runs != 1 {
		t.Fatalf("journal = %+v", resp.Journal)
	}
	if resp.Records != 1 {
		t.Fatalf("records = %d, want 1", resp.Records)
	}
}

func TestHealthWithoutJournal(t *testing.T) {
	_, outDir := testSetup(t)
	w := get(t, New(outDir, nil, zerolog.Nop()), "/api/health")
	if w.Code != http.StatusOK {
		t.Fatalf("health returned %d, want 200", w.Code)
	}
	if strings.Contains(w.Body.String(), "journal") {
		t.Fatalf("unexpected journal field: %s", w.Body.String())
	}
}

func TestImageEndpoint(t *testing.T) {
	db, outDir := testSetup(t)
	digest := store.Digest([]byte("source"))
	payload := []byte("fake-webp-bytes")
	os.WriteFile(filepath.Join(outDir, digest+".webp"), payload, 0o644)

	w := get(t, New(outDir, db, zerolog.Nop()), "/api/image/"+digest)
	if w.Code != http.StatusOK {
		t.Fatalf("image returned %d, want 200", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "image/webp" {
		t.Fatalf("Content-Type = %q, want image/webp", ct)
	}
	if w.Body.String() != string(payload) {
		t.Fatalf("body = %q", w.Body.String())
	}
}

func TestImageEndpoint_NotFound(t *testing.T) {
	db, outDir := testSetup(t)
	w := get(t, New(outDir, db, zerolog.Nop()), "/api/image/"+store.Digest([]byte("missing")))
	if w.Code != http.StatusNotFound {
		t.Fatalf("missing image returned %d, want 404", w.Code)
	}
}

func TestImageEndpoint_InvalidDigest(t *testing.T) {
	db, outDir := testSetup(t)
	h := New(outDir, db, zerolog.Nop())
	for _, d := range []string{"abc", strings.Repeat("Z", store.DigestLen), "g" + strings.Repeat("0", store.DigestLen-1)} {
		if w := get(t, h, "/api/image/"+d); w.Code != http.StatusBadRequest {
			t.Errorf("%q returned %d, want 400", d, w.Code)
		}
	}
}

func TestRecordEndpoint(t *testing.T) {
	db, outDir := testSetup(t)
	digest := store.Digest([]byte("x"))
	ctx := context.Background()
	db.Record(ctx, &catalog.Record{RunID: "r1", Path: "x.png", Digest: digest, Outcome: catalog.OutcomeWritten, Candidate: "512x512", Width: 512, Height: 512})
	db.Record(ctx, &catalog.Record{RunID: "r2", Path: "x.png", Digest: digest, Outcome: catalog.OutcomeSkipped})

	w := get(t, New(outDir, db, zerolog.Nop()), "/api/record/"+digest)
	if w.Code != http.StatusOK {
		t.Fatalf("record returned %d, want 200", w.Code)
	}
	var rec catalog.Record
	if err := json.Unmarshal(w.Body.Bytes(), &rec); err != nil {
		t.Fatalf("decode record: %v", err)
	}
	if rec.RunID != "r2" || rec.Outcome != catalog.OutcomeSkipped {
		t.Fatalf("record = %+v, want latest (r2 skipped)", rec)
	}
}

func TestRecordEndpoint_NotFound(t *testing.T) {
	db, outDir := testSetup(t)
	digest := store.Digest([]byte("none"))

	if w := get(t, New(outDir, db, zerolog.Nop()), "/api/record/"+digest); w.Code != http.StatusNotFound {
		t.Fatalf("unknown digest returned %d, want 404", w.Code)
	}
	if w := get(t, New(outDir, nil, zerolog.Nop()), "/api/record/"+digest); w.Code != http.StatusNotFound {
		t.Fatalf("no journal returned %d, want 404", w.Code)
	}
}
