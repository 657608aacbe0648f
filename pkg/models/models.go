// Package models contains the file manager entities shared by the client and its layers.
package models

import "time"

// RootFolderID identifies the top of the folder hierarchy.
const RootFolderID = ""

// Accessibility is the visibility mode of a folder.
type Accessibility string

const (
	AccessPublic    Accessibility = "public"
	AccessProtected Accessibility = "protected"
)

// Permission is the level granted to a principal or a role.
type Permission string

const (
	PermRead  Permission = "read"
	PermWrite Permission = "write"
	PermAdmin Permission = "admin"
)

// permissionRank orders permission levels: admin > write > read.
var permissionRank = map[Permission]int{
	PermRead:  1,
	PermWrite: 2,
	PermAdmin: 3,
}

// Valid reports whether p is a known permission level.
func (p Permission) Valid() bool {
	_, ok := permissionRank[p]
	return ok
}

// Satisfies reports whether p grants at least required.
func (p Permission) Satisfies(required Permission) bool {
	return permissionRank[p] >= permissionRank[required] && permissionRank[required] > 0
}

// EntityKind distinguishes files from folders in mixed selections and cache keys.
type EntityKind string

const (
	KindFile   EntityKind = "file"
	KindFolder EntityKind = "folder"
)

// Resource is the REST collection name for the kind.
func (k EntityKind) Resource() string {
	if k == KindFolder {
		return "folders"
	}
	return "files"
}

// PrincipalTypeUser is the only principal type the backend accepts for user grants.
const PrincipalTypeUser = "HotelUser"

// SharedPrincipal is a capability grant from a file or folder to a user.
type SharedPrincipal struct {
	PrincipalID   string     `json:"principalId"`
	PrincipalType string     `json:"principalType"`
	Permission    Permission `json:"permission"`
	Name          string     `json:"name,omitempty"`
	Email         string     `json:"email,omitempty"`
}

// SharedRole is a capability grant to a role. Name and Color are denormalized by the server.
type SharedRole struct {
	RoleID     string     `json:"roleId"`
	Permission Permission `json:"permission"`
	Name       string     `json:"name,omitempty"`
	Color      string     `json:"color,omitempty"`
}

// File is a stored file as listed by the backend.
type File struct {
	ID              string            `json:"id"`
	Name            string            `json:"name"`
	MimeType        string            `json:"mimeType"`
	Type            string            `json:"type"`
	Size            int64             `json:"size"`
	FolderID        string            `json:"folderId,omitempty"`
	Alt             string            `json:"alt,omitempty"`
	URL             string            `json:"url,omitempty"`
	Deleted         bool              `json:"isDeleted"`
	SharedWith      []SharedPrincipal `json:"sharedWith"`
	SharedWithRoles []SharedRole      `json:"sharedWithRoles"`
	CreatedAt       time.Time         `json:"createdAt"`
	UpdatedAt       time.Time         `json:"updatedAt"`
}

// Folder is a folder as listed by the backend. The access password is write-only and never
// part of this type.
type Folder struct {
	ID              string            `json:"id"`
	Name            string            `json:"name"`
	Note            string            `json:"note,omitempty"`
	Accessibility   Accessibility     `json:"accessibility"`
	ParentID        string            `json:"parentId,omitempty"`
	Ancestors       []string          `json:"ancestors,omitempty"`
	FileCount       int64             `json:"fileCount"`
	TotalSize       int64             `json:"totalSize"`
	SharedWith      []SharedPrincipal `json:"sharedWith"`
	SharedWithRoles []SharedRole      `json:"sharedWithRoles"`
	CreatedAt       time.Time         `json:"createdAt"`
	UpdatedAt       time.Time         `json:"updatedAt"`
}

// Protected reports whether entering the folder requires a password.
func (f Folder) Protected() bool {
	return f.Accessibility == AccessProtected
}

// Pagination describes one page of a browse listing. Page is 1-based.
type Pagination struct {
	Page       int  `json:"page"`
	Size       int  `json:"size"`
	TotalItems int  `json:"totalItems"`
	TotalPages int  `json:"totalPages"`
	HasMore    bool `json:"hasMore"`
}

// BrowseResult is one page of the combined folder and file listing of a parent folder.
type BrowseResult struct {
	Folders    []Folder   `json:"folders"`
	Files      []File     `json:"files"`
	Pagination Pagination `json:"pagination"`
}

// Breadcrumb is one element of a folder's ancestor chain.
type Breadcrumb struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}
