package fakeapi

import (
	"math"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/julienschmidt/httprouter"

	"github.com/ramy-dje/madar-dashboard-sub000/pkg/models"
	"github.com/ramy-dje/madar-dashboard-sub000/pkg/protocol"
)

const defaultPageSize = 20

// AddFolder seeds a folder. A non-empty password makes it protected. Missing ids and timestamps
// are filled in.
func (s *Server) AddFolder(f models.Folder, password string) models.Folder {
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
	if password != "" {
		f.Accessibility = models.AccessProtected
	} else if f.Accessibility == "" {
		f.Accessibility = models.AccessPublic
	}
	s.folders[f.ID] = &folderRecord{folder: f, password: password}
	return s.viewFolderLocked(s.folders[f.ID])
}

// Folder returns a folder as the API would list it.
func (s *Server) Folder(id string) (models.Folder, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.folders[id]
	if !ok {
		return models.Folder{}, false
	}
	return s.viewFolderLocked(rec), true
}

// FolderPassword returns the access password stored for a folder.
func (s *Server) FolderPassword(id string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec, ok := s.folders[id]; ok {
		return rec.password
	}
	return ""
}

func (s *Server) viewFolderLocked(rec *folderRecord) models.Folder {
	f := rec.folder
	f.Ancestors = s.ancestorsLocked(f.ParentID)
	f.FileCount, f.TotalSize = 0, 0
	for _, file := range s.files {
		if file.file.FolderID == f.ID && !file.file.Deleted {
			f.FileCount++
			f.TotalSize += file.file.Size
		}
	}
	f.SharedWith = append([]models.SharedPrincipal{}, f.SharedWith...)
	f.SharedWithRoles = append([]models.SharedRole{}, f.SharedWithRoles...)
	return f
}

// ancestorsLocked returns the ids from the root down to and including parentID.
func (s *Server) ancestorsLocked(parentID string) []string {
	var chain []string
	for id := parentID; id != models.RootFolderID; {
		rec, ok := s.folders[id]
		if !ok || len(chain) > len(s.folders) {
			break
		}
		chain = append([]string{id}, chain...)
		id = rec.folder.ParentID
	}
	return chain
}

// authorizeLocked enforces the folder password on a request. It writes the 403 itself.
func (s *Server) authorizeLocked(w http.ResponseWriter, r *http.Request, rec *folderRecord) bool {
	if !rec.folder.Protected() {
		return true
	}
	got := r.Header.Get(protocol.FolderPasswordHeader)
	switch {
	case got == "":
		s.sendError(w, http.StatusForbidden, protocol.MsgPasswordRequired)
		return false
	case got != rec.password:
		s.sendError(w, http.StatusForbidden, protocol.MsgInvalidPassword)
		return false
	}
	return true
}

func (s *Server) handleListFolders(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	s.mu.Lock()
	defer s.mu.Unlock()

	folders := make([]models.Folder, 0, len(s.folders))
	for _, rec := range s.folders {
		folders = append(folders, s.viewFolderLocked(rec))
	}
	sort.Slice(folders, func(i, j int) bool { return folders[i].Name < folders[j].Name })
	s.sendJSON(w, http.StatusOK, protocol.FolderListResponse{Folders: folders})
}

func (s *Server) handleFolder(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	if ps.ByName("id") == "browse" {
		s.handleBrowse(w, r)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.folders[ps.ByName("id")]
	if !ok {
		s.sendError(w, http.StatusNotFound, "Folder not found")
		return
	}
	s.sendJSON(w, http.StatusOK, s.viewFolderLocked(rec))
}

func (s *Server) handleBrowse(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	parentID := q.Get("parentId")

	s.mu.Lock()
	defer s.mu.Unlock()

	if parentID != models.RootFolderID {
		rec, ok := s.folders[parentID]
		if !ok {
			s.sendError(w, http.StatusNotFound, "Folder not found")
			return
		}
		if !s.authorizeLocked(w, r, rec) {
			return
		}
	}

	search := strings.ToLower(strings.TrimSpace(q.Get("search")))
	itemType := protocol.ItemType(q.Get("itemType"))
	var fileTypes []string
	if ft := q.Get("fileType"); ft != "" {
		fileTypes = strings.Split(ft, ",")
	}
	start, end := dateRange(q.Get("startDate"), q.Get("endDate"))

	matches := func(name string, created time.Time) bool {
		if search != "" && !strings.Contains(strings.ToLower(name), search) {
			return false
		}
		if !start.IsZero() && created.Before(start) {
			return false
		}
		if !end.IsZero() && !created.Before(end) {
			return false
		}
		return true
	}

	folders := []models.Folder{}
	if itemType != protocol.ItemsFiles {
		for _, rec := range s.folders {
			if rec.folder.ParentID == parentID && matches(rec.folder.Name, rec.folder.CreatedAt) {
				folders = append(folders, s.viewFolderLocked(rec))
			}
		}
	}
	files := []models.File{}
	if itemType != protocol.ItemsFolders {
		for _, rec := range s.files {
			f := rec.file
			if f.FolderID != parentID || f.Deleted || !matches(f.Name, f.CreatedAt) {
				continue
			}
			if len(fileTypes) > 0 && !containsType(fileTypes, f) {
				continue
			}
			files = append(files, viewFile(f))
		}
	}

	sortBy, desc := q.Get("sortBy"), q.Get("sortOrder") == string(protocol.SortDesc)
	sort.SliceStable(folders, func(i, j int) bool {
		return less(sortBy, desc, folders[i].Name, folders[j].Name,
			folders[i].CreatedAt, folders[j].CreatedAt, folders[i].TotalSize, folders[j].TotalSize)
	})
	sort.SliceStable(files, func(i, j int) bool {
		return less(sortBy, desc, files[i].Name, files[j].Name,
			files[i].CreatedAt, files[j].CreatedAt, files[i].Size, files[j].Size)
	})

	page := atoiDefault(q.Get("page"), 1)
	size := atoiDefault(q.Get("size"), defaultPageSize)
	total := len(folders) + len(files)
	totalPages := int(math.Ceil(float64(total) / float64(size)))

	result := models.BrowseResult{
		Folders: []models.Folder{},
		Files:   []models.File{},
		Pagination: models.Pagination{
			Page:       page,
			Size:       size,
			TotalItems: total,
			TotalPages: totalPages,
			HasMore:    page < totalPages,
		},
	}
	// Folders come before files across page boundaries.
	from, to := (page-1)*size, page*size
	for i := from; i < to && i < total; i++ {
		if i < len(folders) {
			result.Folders = append(result.Folders, folders[i])
		} else {
			result.Files = append(result.Files, files[i-len(folders)])
		}
	}
	s.sendJSON(w, http.StatusOK, result)
}

func (s *Server) handleBreadcrumbs(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.folders[ps.ByName("id")]
	if !ok {
		s.sendError(w, http.StatusNotFound, "Folder not found")
		return
	}
	if !s.authorizeLocked(w, r, rec) {
		return
	}

	crumbs := []models.Breadcrumb{}
	for _, id := range s.ancestorsLocked(rec.folder.ID) {
		crumbs = append(crumbs, models.Breadcrumb{ID: id, Name: s.folders[id].folder.Name})
	}
	s.sendJSON(w, http.StatusOK, protocol.BreadcrumbsResponse{Breadcrumbs: crumbs})
}

func (s *Server) handleCreateFolder(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req protocol.CreateFolderRequest
	if !s.decode(w, r, &req) {
		return
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		s.sendValidationError(w, "name should not be empty")
		return
	}
	if req.Accessibility == "" {
		req.Accessibility = models.AccessPublic
	}
	if req.Accessibility == models.AccessProtected && req.AccessPassword == "" {
		s.sendValidationError(w, "accessPassword is required for protected folders")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if req.ParentID != models.RootFolderID {
		if _, ok := s.folders[req.ParentID]; !ok {
			s.sendError(w, http.StatusNotFound, "Parent folder not found")
			return
		}
	}

	now := s.now()
	rec := &folderRecord{
		folder: models.Folder{
			ID:              newID(),
			Name:            name,
			Note:            req.Note,
			Accessibility:   req.Accessibility,
			ParentID:        req.ParentID,
			SharedWith:      req.SharedWith,
			SharedWithRoles: req.SharedWithRoles,
			CreatedAt:       now,
			UpdatedAt:       now,
		},
	}
	if req.Accessibility == models.AccessProtected {
		rec.password = req.AccessPassword
	}
	s.folders[rec.folder.ID] = rec
	s.sendJSON(w, http.StatusCreated, s.viewFolderLocked(rec))
}

func (s *Server) handleUpdateFolder(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var req protocol.UpdateFolderRequest
	if !s.decode(w, r, &req) {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.folders[ps.ByName("id")]
	if !ok {
		s.sendError(w, http.StatusNotFound, "Folder not found")
		return
	}

	if req.ParentID != nil {
		target := *req.ParentID
		if target != models.RootFolderID {
			if _, ok := s.folders[target]; !ok {
				s.sendError(w, http.StatusNotFound, "Target folder not found")
				return
			}
		}
		for _, id := range s.ancestorsLocked(target) {
			if id == rec.folder.ID {
				s.sendValidationError(w, "cannot move a folder into itself or its descendants")
				return
			}
		}
	}
	if req.Name != nil && strings.TrimSpace(*req.Name) == "" {
		s.sendValidationError(w, "name should not be empty")
		return
	}
	if req.Accessibility != nil && *req.Accessibility == models.AccessProtected &&
		rec.password == "" && (req.AccessPassword == nil || *req.AccessPassword == "") {
		s.sendValidationError(w, "accessPassword is required for protected folders")
		return
	}

	if req.Name != nil {
		rec.folder.Name = strings.TrimSpace(*req.Name)
	}
	if req.Note != nil {
		rec.folder.Note = *req.Note
	}
	if req.Accessibility != nil {
		rec.folder.Accessibility = *req.Accessibility
		if *req.Accessibility == models.AccessPublic {
			rec.password = ""
		}
	}
	if req.AccessPassword != nil && rec.folder.Protected() {
		rec.password = *req.AccessPassword
	}
	if req.ParentID != nil {
		rec.folder.ParentID = *req.ParentID
	}
	rec.folder.UpdatedAt = s.now()
	s.sendJSON(w, http.StatusOK, s.viewFolderLocked(rec))
}

func (s *Server) handleDeleteFolder(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := ps.ByName("id")
	if _, ok := s.folders[id]; !ok {
		s.sendError(w, http.StatusNotFound, "Folder not found")
		return
	}
	s.deleteFolderLocked(id)
	s.sendJSON(w, http.StatusOK, map[string]string{"message": "Folder deleted"})
}

func (s *Server) deleteFolderLocked(id string) {
	for childID, child := range s.folders {
		if child.folder.ParentID == id {
			s.deleteFolderLocked(childID)
		}
	}
	for fileID, file := range s.files {
		if file.file.FolderID == id {
			delete(s.files, fileID)
		}
	}
	delete(s.folders, id)
}

func (s *Server) handleCheckPassword(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var req protocol.CheckPasswordRequest
	if !s.decode(w, r, &req) {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.folders[ps.ByName("id")]
	if !ok {
		s.sendError(w, http.StatusNotFound, "Folder not found")
		return
	}
	if rec.folder.Protected() && req.Password != rec.password {
		s.sendError(w, http.StatusForbidden, protocol.MsgInvalidPassword)
		return
	}
	s.sendJSON(w, http.StatusOK, protocol.CheckPasswordResponse{Valid: true})
}

func dateRange(startStr, endStr string) (start, end time.Time) {
	if t, err := time.Parse(protocol.DateLayout, startStr); err == nil {
		start = t
	}
	if t, err := time.Parse(protocol.DateLayout, endStr); err == nil {
		end = t.AddDate(0, 0, 1)
	}
	return start, end
}

func containsType(types []string, f models.File) bool {
	for _, t := range types {
		if strings.EqualFold(t, f.Type) || strings.EqualFold(t, f.MimeType) {
			return true
		}
	}
	return false
}

func less(sortBy string, desc bool, nameA, nameB string, createdA, createdB time.Time, sizeA, sizeB int64) bool {
	var lt, gt bool
	switch sortBy {
	case "createdAt":
		lt, gt = createdA.Before(createdB), createdA.After(createdB)
	case "size":
		lt, gt = sizeA < sizeB, sizeA > sizeB
	default:
		a, b := strings.ToLower(nameA), strings.ToLower(nameB)
		lt, gt = a < b, a > b
	}
	if desc {
		return gt
	}
	return lt
}

func atoiDefault(s string, def int) int {
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return def
	}
	return n
}
