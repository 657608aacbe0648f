package fakeapi

import (
	"encoding/json"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/julienschmidt/httprouter"

	"github.com/ramy-dje/madar-dashboard-sub000/pkg/models"
	"github.com/ramy-dje/madar-dashboard-sub000/pkg/protocol"
)

const maxUploadMemory = 32 << 20

// AddFile seeds a file with its content.
func (s *Server) AddFile(f models.File, content []byte) models.File {
	s.mu.Lock()
	defer s.mu.Unlock()

	if f.ID == "" {
		f.ID = newID()
	}
	if f.CreatedAt.IsZero() {
		f.CreatedAt = s.now()
	}
	if f.UpdatedAt.IsZero() {
		f.UpdatedAt = f.CreatedAt
	}
	if f.Type == "" {
		f.Type = fileType(f.Name)
	}
	f.Size = int64(len(content))
	s.files[f.ID] = &fileRecord{file: f, content: content}
	return viewFile(f)
}

// File returns a file as the API would list it.
func (s *Server) File(id string) (models.File, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.files[id]
	if !ok {
		return models.File{}, false
	}
	return viewFile(rec.file), true
}

func viewFile(f models.File) models.File {
	f.SharedWith = append([]models.SharedPrincipal{}, f.SharedWith...)
	f.SharedWithRoles = append([]models.SharedRole{}, f.SharedWithRoles...)
	return f
}

func fileType(name string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
}

func (s *Server) handleFileAction(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	if ps.ByName("id") == "upload-multiple" {
		s.handleUpload(w, r)
		return
	}
	s.sendError(w, http.StatusNotFound, "Cannot POST "+r.URL.Path)
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		s.sendValidationError(w, "invalid multipart body")
		return
	}
	folderID := r.FormValue("folderId")

	var sharedWith []models.SharedPrincipal
	if raw := r.FormValue("sharedWith"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &sharedWith); err != nil {
			s.sendValidationError(w, "sharedWith must be a JSON array")
			return
		}
	}
	var sharedWithRoles []models.SharedRole
	if raw := r.FormValue("sharedWithRoles"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &sharedWithRoles); err != nil {
			s.sendValidationError(w, "sharedWithRoles must be a JSON array")
			return
		}
	}

	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		s.sendValidationError(w, "files should not be empty")
		return
	}

	type upload struct {
		file    models.File
		content []byte
	}
	uploads := make([]upload, 0, len(headers))
	for _, fh := range headers {
		part, err := fh.Open()
		if err != nil {
			s.sendError(w, http.StatusBadRequest, err.Error())
			return
		}
		content, err := io.ReadAll(part)
		part.Close()
		if err != nil {
			s.sendError(w, http.StatusBadRequest, err.Error())
			return
		}
		uploads = append(uploads, upload{
			file: models.File{
				Name:            fh.Filename,
				MimeType:        fh.Header.Get("Content-Type"),
				Type:            fileType(fh.Filename),
				Size:            int64(len(content)),
				FolderID:        folderID,
				SharedWith:      sharedWith,
				SharedWithRoles: sharedWithRoles,
			},
			content: content,
		})
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if folderID != models.RootFolderID {
		if _, ok := s.folders[folderID]; !ok {
			s.sendError(w, http.StatusNotFound, "Folder not found")
			return
		}
	}

	resp := protocol.UploadResponse{Files: make([]models.File, 0, len(uploads))}
	now := s.now()
	for _, u := range uploads {
		u.file.ID = newID()
		u.file.CreatedAt = now
		u.file.UpdatedAt = now
		s.files[u.file.ID] = &fileRecord{file: u.file, content: u.content}
		resp.Files = append(resp.Files, viewFile(u.file))
	}
	s.sendJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleUpdateFile(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var req protocol.UpdateFileRequest
	if !s.decode(w, r, &req) {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.files[ps.ByName("id")]
	if !ok {
		s.sendError(w, http.StatusNotFound, "File not found")
		return
	}
	if req.TargetFolderID != nil && *req.TargetFolderID != models.RootFolderID {
		if _, ok := s.folders[*req.TargetFolderID]; !ok {
			s.sendError(w, http.StatusNotFound, "Target folder not found")
			return
		}
	}
	if req.Name != nil && strings.TrimSpace(*req.Name) == "" {
		s.sendValidationError(w, "name should not be empty")
		return
	}

	if req.Name != nil {
		rec.file.Name = strings.TrimSpace(*req.Name)
	}
	if req.Alt != nil {
		rec.file.Alt = *req.Alt
	}
	if req.TargetFolderID != nil {
		rec.file.FolderID = *req.TargetFolderID
	}
	rec.file.UpdatedAt = s.now()
	s.sendJSON(w, http.StatusOK, viewFile(rec.file))
}

func (s *Server) handleDeleteFile(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := ps.ByName("id")
	if _, ok := s.files[id]; !ok {
		s.sendError(w, http.StatusNotFound, "File not found")
		return
	}
	delete(s.files, id)
	s.sendJSON(w, http.StatusOK, map[string]string{"message": "File deleted"})
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := ps.ByName("id")
	if _, ok := s.files[id]; !ok {
		s.sendError(w, http.StatusNotFound, "File not found")
		return
	}
	sig := newID()
	s.blobs[sig] = id
	s.sendJSON(w, http.StatusOK, protocol.DownloadResponse{
		URL:       "http://" + r.Host + "/blobs/" + sig,
		ExpiresIn: 300,
	})
}

func (s *Server) handleBlob(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	if r.Header.Get("Authorization") != "" {
		s.sendError(w, http.StatusBadRequest, "Signed URLs do not accept an Authorization header")
		return
	}

	s.mu.Lock()
	rec, ok := s.files[s.blobs[ps.ByName("sig")]]
	var content []byte
	if ok {
		content = rec.content
	}
	s.mu.Unlock()

	if !ok {
		s.sendError(w, http.StatusNotFound, "Blob not found")
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Length", strconv.Itoa(len(content)))
	w.Write(content)
}
