package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"

	"github.com/ramy-dje/madar-dashboard-sub000/internal/browse"
	"github.com/ramy-dje/madar-dashboard-sub000/internal/notify"
	"github.com/ramy-dje/madar-dashboard-sub000/internal/sharing"
	"github.com/ramy-dje/madar-dashboard-sub000/internal/view"
	"github.com/ramy-dje/madar-dashboard-sub000/pkg/models"
)

const gridColumns = 4

var toastStyles = map[string]lipgloss.Style{
	notify.LevelSuccess: lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
	notify.LevelInfo:    lipgloss.NewStyle().Foreground(lipgloss.Color("39")),
	notify.LevelError:   lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true),
}

// toastPrinter writes toasts to stderr as they are published.
type toastPrinter struct{}

func (toastPrinter) Publish(t notify.Toast) {
	fmt.Fprintln(os.Stderr, renderToast(t))
}

func printToasts(ch <-chan notify.Toast) {
	for t := range ch {
		fmt.Fprintln(os.Stderr, renderToast(t))
	}
}

func renderToast(t notify.Toast) string {
	style, ok := toastStyles[t.Level]
	if !ok {
		return t.String()
	}
	return style.Render(t.String())
}

// entry is the machine-readable form of one listing row.
type entry struct {
	Kind      string    `json:"kind" yaml:"kind"`
	ID        string    `json:"id" yaml:"id"`
	Name      string    `json:"name" yaml:"name"`
	Protected bool      `json:"protected,omitempty" yaml:"protected,omitempty"`
	Type      string    `json:"type,omitempty" yaml:"type,omitempty"`
	Size      int64     `json:"size" yaml:"size"`
	HumanSize string    `json:"humanSize" yaml:"human_size"`
	Files     int64     `json:"files,omitempty" yaml:"files,omitempty"`
	Users     int       `json:"sharedUsers" yaml:"shared_users"`
	Roles     int       `json:"sharedRoles" yaml:"shared_roles"`
	Selected  bool      `json:"selected,omitempty" yaml:"selected,omitempty"`
	CreatedAt time.Time `json:"createdAt" yaml:"created_at"`
}

type listingOutput struct {
	Path    string  `json:"path" yaml:"path"`
	HasMore bool    `json:"hasMore" yaml:"has_more"`
	Items   []entry `json:"items" yaml:"items"`
}

func entries(l *browse.Listing, sel view.Selected) []entry {
	out := make([]entry, 0, len(l.Folders())+len(l.Files()))
	for _, f := range l.Folders() {
		out = append(out, entry{
			Kind:      string(models.KindFolder),
			ID:        f.ID,
			Name:      f.Name,
			Protected: f.Protected(),
			Size:      f.TotalSize,
			HumanSize: humanize.Bytes(uint64(f.TotalSize)),
			Files:     f.FileCount,
			Users:     len(f.SharedWith),
			Roles:     len(f.SharedWithRoles),
			Selected:  sel.FolderSelected(f.ID),
			CreatedAt: f.CreatedAt,
		})
	}
	for _, f := range l.Files() {
		out = append(out, entry{
			Kind:      string(models.KindFile),
			ID:        f.ID,
			Name:      f.Name,
			Type:      f.Type,
			Size:      f.Size,
			HumanSize: humanize.Bytes(uint64(f.Size)),
			Users:     len(f.SharedWith),
			Roles:     len(f.SharedWithRoles),
			Selected:  sel.FileSelected(f.ID),
			CreatedAt: f.CreatedAt,
		})
	}
	return out
}

// printListing renders a listing in the requested format.
func printListing(w io.Writer, format string, crumbs []models.Breadcrumb, l *browse.Listing, sel view.Selected) error {
	if l == nil {
		return fmt.Errorf("folder is not loaded")
	}
	switch format {
	case "json", "yaml":
		return encode(w, format, listingOutput{
			Path:    view.Breadcrumbs(crumbs),
			HasMore: l.HasMore(),
			Items:   entries(l, sel),
		})
	case "grid":
		fmt.Fprintln(w, view.Breadcrumbs(crumbs))
		fmt.Fprintln(w, view.Grid(l, sel, gridColumns))
	default:
		fmt.Fprintln(w, view.Breadcrumbs(crumbs))
		if err := view.Table(w, l, sel); err != nil {
			return err
		}
	}
	if l.HasMore() {
		last := l.Last()
		fmt.Fprintf(w, "(%d of %d items, more available)\n", len(l.Folders())+len(l.Files()), last.TotalItems)
	}
	return nil
}

type grantsOutput struct {
	Users []models.SharedPrincipal `json:"users" yaml:"users"`
	Roles []models.SharedRole      `json:"roles" yaml:"roles"`
}

func printGrants(w io.Writer, format string, g sharing.Grants) error {
	if format == "json" || format == "yaml" {
		return encode(w, format, grantsOutput{Users: g.Users, Roles: g.Roles})
	}
	if len(g.Users) == 0 && len(g.Roles) == 0 {
		fmt.Fprintln(w, "Not shared")
		return nil
	}
	for _, u := range g.Users {
		name := u.Name
		if name == "" {
			name = u.PrincipalID
		}
		fmt.Fprintf(w, "user  %-24s %-6s %s\n", name, u.Permission, u.Email)
	}
	for _, r := range g.Roles {
		name := r.Name
		if name == "" {
			name = r.RoleID
		}
		fmt.Fprintf(w, "role  %-24s %s\n", name, r.Permission)
	}
	return nil
}

func encode(w io.Writer, format string, v interface{}) error {
	if format == "yaml" {
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(v)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
