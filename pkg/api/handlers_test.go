package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"medialib/pkg/library"
	"medialib/pkg/manager"
)

func openTestLibrary(t *testing.T, name string) *library.Library {
	t.Helper()
	root := t.TempDir()
	dbPath := filepath.Join(t.TempDir(), name+".db")

	lib, err := library.Open(library.Config{
		Name:               name,
		Root:               root,
		DBPath:             dbPath,
		IdleWriteInterval:  time.Hour,
		FileUpdateDebounce: time.Millisecond,
	})
	if err != nil {
		t.Fatalf("Open(%s): %v", name, err)
	}
	t.Cleanup(func() { lib.Shutdown() })
	return lib
}

func writeTestFile(t *testing.T, root, name string, data []byte) string {
	t.Helper()
	p := filepath.Join(root, name)
	if err := os.WriteFile(p, data, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return p
}

func newTestServer(t *testing.T, libs ...*library.Library) *Server {
	t.Helper()
	mgr := manager.New(libs, 0, nil)
	return NewServer(mgr, "http://example.com", 50, "", nil)
}

func doRequest(t *testing.T, handler http.Handler, method, target string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("Marshal: %v", err)
		}
		reader = bytes.NewReader(encoded)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, target, reader)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestHandleIllustReturnsFile(t *testing.T) {
	lib := openTestLibrary(t, "alpha")
	writeTestFile(t, lib.Root(), "photo.jpg", []byte("not actually a jpeg"))
	if err := lib.Refresh(lib.Root(), true, nil); err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	server := newTestServer(t, lib)
	rec := doRequest(t, server.Handler(), http.MethodPost, "/illust/file:/alpha/photo.jpg", nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp illustEnvelope
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if !resp.Success || resp.Illust == nil {
		t.Fatalf("expected successful illust, got %+v", resp)
	}
	if resp.Illust.ID != "file:/alpha/photo.jpg" {
		t.Fatalf("unexpected id: %s", resp.Illust.ID)
	}
}

func TestHandleIllustUnknownLibrary(t *testing.T) {
	server := newTestServer(t)
	rec := doRequest(t, server.Handler(), http.MethodPost, "/illust/file:/missing/photo.jpg", nil)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp errorEnvelope
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if resp.Success {
		t.Fatalf("expected success=false, got %+v", resp)
	}
}

func TestHandleIllustMalformedID(t *testing.T) {
	server := newTestServer(t)
	rec := doRequest(t, server.Handler(), http.MethodPost, "/illust/not-an-id", nil)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestHandleListRootListsMountpoints(t *testing.T) {
	alpha := openTestLibrary(t, "alpha")
	zeta := openTestLibrary(t, "zeta")

	server := newTestServer(t, alpha, zeta)
	rec := doRequest(t, server.Handler(), http.MethodPost, "/list/folder:/", map[string]interface{}{})

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp listEnvelope
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if len(resp.Results) != 2 {
		t.Fatalf("expected 2 mountpoints, got %d: %+v", len(resp.Results), resp.Results)
	}
	if resp.Results[0].ID != "folder:/alpha" || resp.Results[1].ID != "folder:/zeta" {
		t.Fatalf("expected sorted mountpoints, got %+v", resp.Results)
	}
}

func TestHandleListDirectoryChildren(t *testing.T) {
	lib := openTestLibrary(t, "alpha")
	writeTestFile(t, lib.Root(), "a.mp4", []byte("aaa"))
	writeTestFile(t, lib.Root(), "b.mp4", []byte("bbb"))
	if err := lib.Refresh(lib.Root(), true, nil); err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	server := newTestServer(t, lib)
	rec := doRequest(t, server.Handler(), http.MethodPost, "/list/folder:/alpha", map[string]interface{}{
		"limit": 10,
	})

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp listEnvelope
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if len(resp.Results) != 2 {
		t.Fatalf("expected 2 children, got %d: %+v", len(resp.Results), resp.Results)
	}
}

func TestBookmarkAddAndDelete(t *testing.T) {
	lib := openTestLibrary(t, "alpha")
	writeTestFile(t, lib.Root(), "photo.jpg", []byte("photo"))
	if err := lib.Refresh(lib.Root(), true, nil); err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	server := newTestServer(t, lib)
	handler := server.Handler()

	addRec := doRequest(t, handler, http.MethodPost, "/bookmark/add/file:/alpha/photo.jpg", map[string]interface{}{
		"tags": []string{"favorite"},
	})
	if addRec.Code != http.StatusOK {
		t.Fatalf("expected 200 on add, got %d: %s", addRec.Code, addRec.Body.String())
	}
	var addResp bookmarkAddEnvelope
	if err := json.Unmarshal(addRec.Body.Bytes(), &addResp); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if addResp.Bookmark == nil || len(addResp.Bookmark.Tags) != 1 || addResp.Bookmark.Tags[0] != "favorite" {
		t.Fatalf("unexpected bookmark: %+v", addResp.Bookmark)
	}

	tagsRec := doRequest(t, handler, http.MethodPost, "/bookmark/tags", nil)
	var tagsResp tagsEnvelope
	if err := json.Unmarshal(tagsRec.Body.Bytes(), &tagsResp); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if tagsResp.Tags["favorite"] != 1 {
		t.Fatalf("expected favorite tag count 1, got %+v", tagsResp.Tags)
	}

	deleteRec := doRequest(t, handler, http.MethodPost, "/bookmark/delete/file:/alpha/photo.jpg", nil)
	if deleteRec.Code != http.StatusOK {
		t.Fatalf("expected 200 on delete, got %d: %s", deleteRec.Code, deleteRec.Body.String())
	}

	tagsRec2 := doRequest(t, handler, http.MethodPost, "/bookmark/tags", nil)
	var tagsResp2 tagsEnvelope
	if err := json.Unmarshal(tagsRec2.Body.Bytes(), &tagsResp2); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if len(tagsResp2.Tags) != 0 {
		t.Fatalf("expected no bookmark tags after delete, got %+v", tagsResp2.Tags)
	}
}

func TestHandleViewReportsUnsupportedOffWindows(t *testing.T) {
	lib := openTestLibrary(t, "alpha")
	writeTestFile(t, lib.Root(), "photo.jpg", []byte("photo"))
	if err := lib.Refresh(lib.Root(), true, nil); err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	server := newTestServer(t, lib)
	rec := doRequest(t, server.Handler(), http.MethodPost, "/view/file:/alpha/photo.jpg", nil)

	// On non-Windows platforms Reveal reports backend-unavailable; this
	// test only runs as part of this module's own non-Windows dev loop.
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestHandlerRequiresAuthenticationWhenConfigured(t *testing.T) {
	mgr := manager.New(nil, 0, nil)
	server := NewServer(mgr, "http://example.com", 50, "secret-token", nil)
	handler := server.Handler()

	unauthenticated := doRequest(t, handler, http.MethodPost, "/bookmark/tags", nil)
	if unauthenticated.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without credentials, got %d", unauthenticated.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/bookmark/tags", bytes.NewReader(nil))
	req.SetBasicAuth("secret-token", "")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 with correct token, got %d: %s", rec.Code, rec.Body.String())
	}
}
