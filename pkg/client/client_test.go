package client

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ramy-dje/madar-dashboard-sub000/pkg/models"
	"github.com/ramy-dje/madar-dashboard-sub000/pkg/protocol"
	"github.com/ramy-dje/madar-dashboard-sub000/pkg/retry"
)

func testClient(handler http.Handler) (*Client, *httptest.Server) {
	ts := httptest.NewServer(handler)
	c := New(Config{
		BaseURL: ts.URL,
		Token:   "tok-123",
		RetryConfig: retry.Config{
			MaxAttempts: 3,
			InitialWait: time.Millisecond,
			MaxWait:     time.Millisecond,
		},
	})
	return c, ts
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func TestBrowse_QueryAndPasswordHeader(t *testing.T) {
	var gotQuery, gotPassword, gotAuth, gotPath string
	c, ts := testClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		gotPassword = r.Header.Get(protocol.FolderPasswordHeader)
		gotAuth = r.Header.Get("Authorization")
		writeJSON(w, http.StatusOK, models.BrowseResult{
			Folders:    []models.Folder{{ID: "d1", Name: "Docs"}},
			Files:      []models.File{{ID: "f1", Name: "a.txt"}},
			Pagination: models.Pagination{Page: 1, Size: 20, TotalItems: 2, TotalPages: 1},
		})
	}))
	defer ts.Close()

	res, err := c.Browse(context.Background(), protocol.BrowseQuery{
		ParentID:  "F1",
		Search:    "rep",
		FileTypes: []string{"pdf", "png"},
		Page:      2,
		Size:      20,
	}, "longpass1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotPath != "/v1/folders/browse" {
		t.Errorf("expected /v1/folders/browse, got %s", gotPath)
	}
	for _, want := range []string{"parentId=F1", "search=rep", "fileType=pdf%2Cpng", "page=2", "size=20"} {
		if !strings.Contains(gotQuery, want) {
			t.Errorf("query %q missing %q", gotQuery, want)
		}
	}
	if gotPassword != "longpass1" {
		t.Errorf("expected password header, got %q", gotPassword)
	}
	if gotAuth != "Bearer tok-123" {
		t.Errorf("expected bearer token, got %q", gotAuth)
	}
	if len(res.Folders) != 1 || len(res.Files) != 1 {
		t.Errorf("unexpected listing: %+v", res)
	}
}

func TestBrowse_NoPasswordHeaderWhenEmpty(t *testing.T) {
	present := false
	c, ts := testClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, present = r.Header[http.CanonicalHeaderKey(protocol.FolderPasswordHeader)]
		writeJSON(w, http.StatusOK, models.BrowseResult{})
	}))
	defer ts.Close()

	if _, err := c.Browse(context.Background(), protocol.BrowseQuery{}, ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if present {
		t.Error("password header should not be sent")
	}
}

func TestBrowse_PasswordRequiredNotRetried(t *testing.T) {
	var attempts atomic.Int32
	c, ts := testClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		writeJSON(w, http.StatusForbidden, protocol.ErrorResponse{
			Message:    protocol.MsgPasswordRequired,
			Error:      "Forbidden",
			StatusCode: 403,
		})
	}))
	defer ts.Close()

	_, err := c.Browse(context.Background(), protocol.BrowseQuery{ParentID: "F1"}, "")
	if !IsPasswordRequired(err) {
		t.Fatalf("expected password required, got %v", err)
	}
	if IsInvalidPassword(err) {
		t.Error("should not match invalid password")
	}
	if n := attempts.Load(); n != 1 {
		t.Errorf("expected 1 attempt, got %d", n)
	}
}

func TestBrowse_InvalidPassword(t *testing.T) {
	c, ts := testClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusForbidden, protocol.ErrorResponse{Message: protocol.MsgInvalidPassword})
	}))
	defer ts.Close()

	_, err := c.Browse(context.Background(), protocol.BrowseQuery{ParentID: "F1"}, "wrong1234")
	if !IsInvalidPassword(err) {
		t.Fatalf("expected invalid password, got %v", err)
	}
}

func TestBrowse_ServerError_Retry(t *testing.T) {
	var attempts atomic.Int32
	c, ts := testClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, models.BrowseResult{Files: []models.File{{ID: "f1"}}})
	}))
	defer ts.Close()

	res, err := c.Browse(context.Background(), protocol.BrowseQuery{}, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Files) != 1 {
		t.Errorf("expected 1 file, got %d", len(res.Files))
	}
	if n := attempts.Load(); n != 3 {
		t.Errorf("expected 3 attempts, got %d", n)
	}
}

func TestBrowse_RetriesExhausted(t *testing.T) {
	var attempts atomic.Int32
	c, ts := testClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer ts.Close()

	_, err := c.Browse(context.Background(), protocol.BrowseQuery{ParentID: "gone"}, "")
	if !IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
	if n := attempts.Load(); n != 3 {
		t.Errorf("expected 3 attempts, got %d", n)
	}
}

func TestForbidden_OtherMessageNotRetried(t *testing.T) {
	var attempts atomic.Int32
	c, ts := testClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		writeJSON(w, http.StatusForbidden, map[string]string{"message": "You cannot view this folder."})
	}))
	defer ts.Close()

	_, err := c.Breadcrumbs(context.Background(), "F1", "")
	if !IsForbidden(err) {
		t.Fatalf("expected forbidden, got %v", err)
	}
	if IsPasswordRequired(err) || IsInvalidPassword(err) {
		t.Error("generic 403 must not match the password messages")
	}
	ae, _ := AsAPIError(err)
	if ae.Message != "You cannot view this folder." {
		t.Errorf("unexpected message %q", ae.Message)
	}
	if n := attempts.Load(); n != 1 {
		t.Errorf("expected 1 attempt, got %d", n)
	}
}

func TestMutation_NotRetried(t *testing.T) {
	var attempts atomic.Int32
	c, ts := testClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer ts.Close()

	if err := c.DeleteFile(context.Background(), "f1"); err == nil {
		t.Fatal("expected error")
	}
	if n := attempts.Load(); n != 1 {
		t.Errorf("expected 1 attempt, got %d", n)
	}
}

func TestErrorMessageList(t *testing.T) {
	c, ts := testClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{
			"message": []string{"name should not be empty", "accessPassword too short"},
			"error":   "Bad Request",
		})
	}))
	defer ts.Close()

	_, err := c.CreateFolder(context.Background(), protocol.CreateFolderRequest{})
	ae, ok := AsAPIError(err)
	if !ok {
		t.Fatalf("expected APIError, got %T: %v", err, err)
	}
	if ae.Message != "name should not be empty; accessPassword too short" {
		t.Errorf("unexpected message %q", ae.Message)
	}
}

func TestUpdateFile_MoveBody(t *testing.T) {
	var body map[string]interface{}
	var method, path string
	c, ts := testClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method, path = r.Method, r.URL.Path
		json.NewDecoder(r.Body).Decode(&body)
		writeJSON(w, http.StatusOK, models.File{ID: "f1", FolderID: "d9"})
	}))
	defer ts.Close()

	target := "d9"
	f, err := c.UpdateFile(context.Background(), "f1", protocol.UpdateFileRequest{TargetFolderID: &target})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if method != http.MethodPatch || path != "/v1/files/f1" {
		t.Errorf("unexpected request %s %s", method, path)
	}
	if body["targetFolderId"] != "d9" {
		t.Errorf("expected targetFolderId d9, got %v", body)
	}
	if _, ok := body["name"]; ok {
		t.Error("unset fields must be omitted")
	}
	if f.FolderID != "d9" {
		t.Errorf("expected folder d9, got %s", f.FolderID)
	}
}

func TestUploadFiles_Multipart(t *testing.T) {
	var folderID, sharedWith string
	var names, contents []string
	c, ts := testClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
		}
		folderID = r.FormValue("folderId")
		sharedWith = r.FormValue("sharedWith")
		for _, fh := range r.MultipartForm.File["files"] {
			names = append(names, fh.Filename)
			f, _ := fh.Open()
			data, _ := io.ReadAll(f)
			f.Close()
			contents = append(contents, string(data))
		}
		writeJSON(w, http.StatusCreated, protocol.UploadResponse{Files: []models.File{{ID: "n1"}, {ID: "n2"}}})
	}))
	defer ts.Close()

	files, err := c.UploadFiles(context.Background(), protocol.UploadRequest{
		FolderID: "d1",
		Files: []protocol.UploadFile{
			{Name: "a.txt", Content: strings.NewReader("alpha")},
			{Name: "b.txt", Content: strings.NewReader("beta")},
		},
		SharedWith: []models.SharedPrincipal{{PrincipalID: "u1", PrincipalType: models.PrincipalTypeUser, Permission: models.PermRead}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(files) != 2 {
		t.Errorf("expected 2 files, got %d", len(files))
	}
	if folderID != "d1" {
		t.Errorf("expected folderId d1, got %q", folderID)
	}
	if strings.Join(names, ",") != "a.txt,b.txt" || strings.Join(contents, ",") != "alpha,beta" {
		t.Errorf("unexpected parts %v %v", names, contents)
	}
	var grants []models.SharedPrincipal
	if err := json.Unmarshal([]byte(sharedWith), &grants); err != nil || len(grants) != 1 || grants[0].PrincipalID != "u1" {
		t.Errorf("unexpected sharedWith %q", sharedWith)
	}
}

func TestShare_DefaultsPrincipalType(t *testing.T) {
	var got protocol.ShareRequest
	var path string
	c, ts := testClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusCreated)
	}))
	defer ts.Close()

	err := c.Share(context.Background(), models.KindFolder, "d1", protocol.ShareRequest{
		PrincipalID: "u1",
		Permission:  models.PermWrite,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if path != "/v1/folders/d1/share" {
		t.Errorf("unexpected path %s", path)
	}
	if got.PrincipalType != models.PrincipalTypeUser || got.Permission != models.PermWrite {
		t.Errorf("unexpected body %+v", got)
	}
}

func TestUnshareRole_Path(t *testing.T) {
	var method, path string
	c, ts := testClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method, path = r.Method, r.URL.Path
		w.WriteHeader(http.StatusNoContent)
	}))
	defer ts.Close()

	if err := c.UnshareRole(context.Background(), models.KindFile, "f1", "r7"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if method != http.MethodDelete || path != "/v1/files/f1/share-roles/r7" {
		t.Errorf("unexpected request %s %s", method, path)
	}
}

func TestCheckFolderPassword(t *testing.T) {
	c, ts := testClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req protocol.CheckPasswordRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.Password != "longpass1" {
			writeJSON(w, http.StatusForbidden, protocol.ErrorResponse{Message: protocol.MsgInvalidPassword})
			return
		}
		writeJSON(w, http.StatusOK, protocol.CheckPasswordResponse{Valid: true})
	}))
	defer ts.Close()

	ok, err := c.CheckFolderPassword(context.Background(), "F1", "longpass1")
	if err != nil || !ok {
		t.Errorf("expected valid, got %v %v", ok, err)
	}
	ok, err = c.CheckFolderPassword(context.Background(), "F1", "wrong1234")
	if err != nil || ok {
		t.Errorf("expected invalid without error, got %v %v", ok, err)
	}
}

func TestFetchURL_NoBearerToken(t *testing.T) {
	var gotAuth string
	c, ts := testClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte("content"))
	}))
	defer ts.Close()

	rc, _, err := c.FetchURL(context.Background(), ts.URL+"/blob/abc?sig=1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer rc.Close()
	data, _ := io.ReadAll(rc)
	if string(data) != "content" {
		t.Errorf("expected content, got %q", data)
	}
	if gotAuth != "" {
		t.Errorf("bearer token leaked to signed url: %q", gotAuth)
	}
}
