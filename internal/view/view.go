// Package view renders folder listings for the terminal: a table view and a grid view over the
// same data, plus the capability-filtered action bar.
package view

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/ramy-dje/madar-dashboard-sub000/pkg/models"
)

// Items is a listing to render.
type Items interface {
	Folders() []models.Folder
	Files() []models.File
}

// Selected reports which items are selected.
type Selected interface {
	FileSelected(id string) bool
	FolderSelected(id string) bool
}

const (
	markSelected  = "[x]"
	markFree      = "[ ]"
	markProtected = "locked"
)

// Table writes one row per folder then per file.
func Table(w io.Writer, items Items, sel Selected) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "\tKIND\tNAME\tACCESS\tSIZE\tSHARED\tCREATED\tID")

	for _, f := range items.Folders() {
		access := ""
		if f.Protected() {
			access = markProtected
		}
		fmt.Fprintf(tw, "%s\tfolder\t%s/\t%s\t%s\t%s\t%s\t%s\n",
			mark(sel != nil && sel.FolderSelected(f.ID)),
			f.Name,
			access,
			folderSize(f),
			shareCounts(len(f.SharedWith), len(f.SharedWithRoles)),
			date(f.CreatedAt.IsZero(), f.CreatedAt.Format("2006-01-02")),
			f.ID,
		)
	}
	for _, f := range items.Files() {
		fmt.Fprintf(tw, "%s\tfile\t%s\t\t%s\t%s\t%s\t%s\n",
			mark(sel != nil && sel.FileSelected(f.ID)),
			f.Name,
			humanize.Bytes(uint64(f.Size)),
			shareCounts(len(f.SharedWith), len(f.SharedWithRoles)),
			date(f.CreatedAt.IsZero(), f.CreatedAt.Format("2006-01-02")),
			f.ID,
		)
	}
	return tw.Flush()
}

var (
	cellStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1).
			Width(22)
	selectedCellStyle = cellStyle.BorderForeground(lipgloss.Color("#50FA7B"))
	folderNameStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#BD93F9"))
	infoStyle         = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
)

// Grid renders the listing as bordered cards, columns per row.
func Grid(items Items, sel Selected, columns int) string {
	if columns <= 0 {
		columns = 4
	}

	var cells []string
	for _, f := range items.Folders() {
		name := f.Name
		if f.Protected() {
			name += " *"
		}
		info := fmt.Sprintf("%d files, %s", f.FileCount, humanize.Bytes(uint64(f.TotalSize)))
		cells = append(cells, card(folderNameStyle.Render(truncate(name, 18)), info,
			sel != nil && sel.FolderSelected(f.ID)))
	}
	for _, f := range items.Files() {
		info := humanize.Bytes(uint64(f.Size))
		if f.Type != "" {
			info = f.Type + ", " + info
		}
		cells = append(cells, card(truncate(f.Name, 18), info, sel != nil && sel.FileSelected(f.ID)))
	}
	if len(cells) == 0 {
		return infoStyle.Render("(empty folder)")
	}

	var rows []string
	for i := 0; i < len(cells); i += columns {
		end := i + columns
		if end > len(cells) {
			end = len(cells)
		}
		rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top, cells[i:end]...))
	}
	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}

// Breadcrumbs renders an ancestor chain as a path.
func Breadcrumbs(crumbs []models.Breadcrumb) string {
	parts := []string{"/"}
	for _, c := range crumbs {
		parts = append(parts, c.Name+"/")
	}
	return strings.Join(parts, "")
}

func card(title, info string, selected bool) string {
	style := cellStyle
	if selected {
		style = selectedCellStyle
	}
	return style.Render(lipgloss.JoinVertical(lipgloss.Left, title, infoStyle.Render(info)))
}

func mark(selected bool) string {
	if selected {
		return markSelected
	}
	return markFree
}

func folderSize(f models.Folder) string {
	if f.FileCount == 0 && f.TotalSize == 0 {
		return "-"
	}
	return humanize.Bytes(uint64(f.TotalSize))
}

func shareCounts(users, roles int) string {
	if users == 0 && roles == 0 {
		return "-"
	}
	return fmt.Sprintf("%du/%dr", users, roles)
}

func date(zero bool, formatted string) string {
	if zero {
		return "-"
	}
	return formatted
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "~"
}
