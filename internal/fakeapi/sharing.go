package fakeapi

import (
	"net/http"

	"github.com/julienschmidt/httprouter"

	"github.com/ramy-dje/madar-dashboard-sub000/pkg/models"
	"github.com/ramy-dje/madar-dashboard-sub000/pkg/protocol"
)

// grants points at the two grant tables of one entity.
type grants struct {
	users *[]models.SharedPrincipal
	roles *[]models.SharedRole
}

type shareHandle func(w http.ResponseWriter, r *http.Request, ps httprouter.Params, g grants)

// shareHandler resolves the entity and holds the lock for the whole handler.
func (s *Server) shareHandler(kind models.EntityKind, h shareHandle) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		s.mu.Lock()
		defer s.mu.Unlock()

		id := ps.ByName("id")
		var g grants
		switch kind {
		case models.KindFolder:
			rec, ok := s.folders[id]
			if !ok {
				s.sendError(w, http.StatusNotFound, "Folder not found")
				return
			}
			g = grants{users: &rec.folder.SharedWith, roles: &rec.folder.SharedWithRoles}
		default:
			rec, ok := s.files[id]
			if !ok {
				s.sendError(w, http.StatusNotFound, "File not found")
				return
			}
			g = grants{users: &rec.file.SharedWith, roles: &rec.file.SharedWithRoles}
		}
		h(w, r, ps, g)
	}
}

func (s *Server) handleListShares(w http.ResponseWriter, r *http.Request, _ httprouter.Params, g grants) {
	s.sendJSON(w, http.StatusOK, protocol.SharesResponse{
		SharedWith: append([]models.SharedPrincipal{}, *g.users...),
	})
}

func (s *Server) handleShare(w http.ResponseWriter, r *http.Request, _ httprouter.Params, g grants) {
	var req protocol.ShareRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.PrincipalID == "" {
		s.sendValidationError(w, "principalId should not be empty")
		return
	}
	if req.PrincipalType != models.PrincipalTypeUser {
		s.sendValidationError(w, "principalType must be one of the following values: "+models.PrincipalTypeUser)
		return
	}
	if !req.Permission.Valid() {
		s.sendValidationError(w, "permission must be one of the following values: read, write, admin")
		return
	}

	for i := range *g.users {
		if (*g.users)[i].PrincipalID == req.PrincipalID {
			(*g.users)[i].Permission = req.Permission
			s.sendJSON(w, http.StatusOK, protocol.SharesResponse{SharedWith: *g.users})
			return
		}
	}
	*g.users = append(*g.users, models.SharedPrincipal{
		PrincipalID:   req.PrincipalID,
		PrincipalType: req.PrincipalType,
		Permission:    req.Permission,
	})
	s.sendJSON(w, http.StatusCreated, protocol.SharesResponse{SharedWith: *g.users})
}

func (s *Server) handleUpdateShare(w http.ResponseWriter, r *http.Request, ps httprouter.Params, g grants) {
	var req protocol.UpdatePermissionRequest
	if !s.decode(w, r, &req) {
		return
	}
	if !req.Permission.Valid() {
		s.sendValidationError(w, "permission must be one of the following values: read, write, admin")
		return
	}
	for i := range *g.users {
		if (*g.users)[i].PrincipalID == ps.ByName("principalId") {
			(*g.users)[i].Permission = req.Permission
			s.sendJSON(w, http.StatusOK, protocol.SharesResponse{SharedWith: *g.users})
			return
		}
	}
	s.sendError(w, http.StatusNotFound, "Share not found")
}

func (s *Server) handleUnshare(w http.ResponseWriter, r *http.Request, ps httprouter.Params, g grants) {
	for i, p := range *g.users {
		if p.PrincipalID == ps.ByName("principalId") {
			*g.users = append((*g.users)[:i], (*g.users)[i+1:]...)
			w.WriteHeader(http.StatusNoContent)
			return
		}
	}
	s.sendError(w, http.StatusNotFound, "Share not found")
}

func (s *Server) handleListRoleShares(w http.ResponseWriter, r *http.Request, _ httprouter.Params, g grants) {
	s.sendJSON(w, http.StatusOK, protocol.RoleSharesResponse{
		SharedWithRoles: append([]models.SharedRole{}, *g.roles...),
	})
}

func (s *Server) handleShareRole(w http.ResponseWriter, r *http.Request, _ httprouter.Params, g grants) {
	var req protocol.ShareRoleRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.RoleID == "" {
		s.sendValidationError(w, "roleId should not be empty")
		return
	}
	if !req.Permission.Valid() {
		s.sendValidationError(w, "permission must be one of the following values: read, write, admin")
		return
	}

	for i := range *g.roles {
		if (*g.roles)[i].RoleID == req.RoleID {
			(*g.roles)[i].Permission = req.Permission
			s.sendJSON(w, http.StatusOK, protocol.RoleSharesResponse{SharedWithRoles: *g.roles})
			return
		}
	}
	*g.roles = append(*g.roles, models.SharedRole{RoleID: req.RoleID, Permission: req.Permission})
	s.sendJSON(w, http.StatusCreated, protocol.RoleSharesResponse{SharedWithRoles: *g.roles})
}

func (s *Server) handleUpdateRoleShare(w http.ResponseWriter, r *http.Request, ps httprouter.Params, g grants) {
	var req protocol.UpdatePermissionRequest
	if !s.decode(w, r, &req) {
		return
	}
	if !req.Permission.Valid() {
		s.sendValidationError(w, "permission must be one of the following values: read, write, admin")
		return
	}
	for i := range *g.roles {
		if (*g.roles)[i].RoleID == ps.ByName("roleId") {
			(*g.roles)[i].Permission = req.Permission
			s.sendJSON(w, http.StatusOK, protocol.RoleSharesResponse{SharedWithRoles: *g.roles})
			return
		}
	}
	s.sendError(w, http.StatusNotFound, "Role share not found")
}

func (s *Server) handleUnshareRole(w http.ResponseWriter, r *http.Request, ps httprouter.Params, g grants) {
	for i, role := range *g.roles {
		if role.RoleID == ps.ByName("roleId") {
			*g.roles = append((*g.roles)[:i], (*g.roles)[i+1:]...)
			w.WriteHeader(http.StatusNoContent)
			return
		}
	}
	s.sendError(w, http.StatusNotFound, "Role share not found")
}
