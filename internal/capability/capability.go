// Package capability defines the file manager's permission vocabulary and the policy that
// evaluates it. The backend still enforces authorization; the policy only decides which actions
// the client offers.
package capability

import (
	"fmt"
	"sort"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// Capability is one permission string.
type Capability string

const (
	FoldersRead   Capability = "folders:read"
	FoldersCreate Capability = "folders:create"
	FoldersUpdate Capability = "folders:update"
	FoldersDelete Capability = "folders:delete"
	FoldersShare  Capability = "folders:share"

	FilesRead     Capability = "files:read"
	FilesUpload   Capability = "files:upload"
	FilesUpdate   Capability = "files:update"
	FilesDelete   Capability = "files:delete"
	FilesDownload Capability = "files:download"
	FilesShare    Capability = "files:share"
)

// All lists every known capability.
var All = []Capability{
	FoldersRead, FoldersCreate, FoldersUpdate, FoldersDelete, FoldersShare,
	FilesRead, FilesUpload, FilesUpdate, FilesDelete, FilesDownload, FilesShare,
}

// Parse validates a capability string.
func Parse(s string) (Capability, error) {
	c := Capability(strings.TrimSpace(s))
	for _, known := range All {
		if c == known {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown capability %q", s)
}

// Set is a set of capabilities.
type Set map[Capability]struct{}

// NewSet builds a set.
func NewSet(caps ...Capability) Set {
	s := make(Set, len(caps))
	for _, c := range caps {
		s[c] = struct{}{}
	}
	return s
}

// Has reports whether c is in the set.
func (s Set) Has(c Capability) bool {
	_, ok := s[c]
	return ok
}

// Contains reports whether every capability of required is in s.
func (s Set) Contains(required Set) bool {
	for c := range required {
		if !s.Has(c) {
			return false
		}
	}
	return true
}

// Sorted returns the capabilities in lexical order.
func (s Set) Sorted() []Capability {
	out := make([]Capability, 0, len(s))
	for c := range s {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Policy decides whether the current user holds a set of capabilities.
type Policy interface {
	HasCapabilities(required Set) bool
}

// AllowAll grants everything.
type AllowAll struct{}

// HasCapabilities always returns true.
func (AllowAll) HasCapabilities(Set) bool { return true }

// Static grants a fixed set.
type Static struct {
	Granted Set
}

// HasCapabilities reports whether every required capability was granted.
func (p Static) HasCapabilities(required Set) bool {
	return p.Granted.Contains(required)
}

// Claims is the part of the access token the policy reads.
type Claims struct {
	Role        string   `json:"role,omitempty"`
	Permissions []string `json:"permissions,omitempty"`
	jwt.RegisteredClaims
}

// FromToken builds a policy from the claims of an access token. The signature is not verified
// here; the backend verifies it on every request. An "admin" role grants everything; otherwise
// the "permissions" claim lists the capabilities, and unknown entries are ignored.
func FromToken(token string) (Policy, error) {
	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, fmt.Errorf("parse access token: %w", err)
	}
	if claims.Role == "admin" {
		return AllowAll{}, nil
	}

	granted := NewSet()
	for _, p := range claims.Permissions {
		if c, err := Parse(p); err == nil {
			granted[c] = struct{}{}
		}
	}
	return Static{Granted: granted}, nil
}
