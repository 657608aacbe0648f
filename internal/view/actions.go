package view

import (
	"strings"

	"github.com/ramy-dje/madar-dashboard-sub000/internal/capability"
	"github.com/ramy-dje/madar-dashboard-sub000/internal/store"
)

// Action is one entry of the action bar.
type Action struct {
	Name  string
	Label string
}

// Actions returns the actions the policy allows for the current selection.
func Actions(policy capability.Policy, sel store.Selection) []Action {
	var out []Action
	add := func(name, label string, required ...capability.Capability) {
		if policy.HasCapabilities(capability.NewSet(required...)) {
			out = append(out, Action{Name: name, Label: label})
		}
	}

	add("mkdir", "New folder", capability.FoldersCreate)
	add("upload", "Upload", capability.FilesUpload)

	if sel.Empty() {
		return out
	}

	add("mv", "Move", selectionCaps(sel, capability.FilesUpdate, capability.FoldersUpdate)...)
	add("rm", "Delete", selectionCaps(sel, capability.FilesDelete, capability.FoldersDelete)...)

	if sel.Len() == 1 {
		if len(sel.Files) == 1 {
			add("download", "Download", capability.FilesDownload)
			add("share", "Share", capability.FilesShare)
		} else {
			add("edit", "Edit folder", capability.FoldersUpdate)
			add("share", "Share", capability.FoldersShare)
		}
	}
	return out
}

// ActionBar renders the actions on one line.
func ActionBar(actions []Action) string {
	labels := make([]string, 0, len(actions))
	for _, a := range actions {
		labels = append(labels, "["+a.Name+"] "+a.Label)
	}
	return infoStyle.Render(strings.Join(labels, "  "))
}

func selectionCaps(sel store.Selection, forFiles, forFolders capability.Capability) []capability.Capability {
	var caps []capability.Capability
	if len(sel.Files) > 0 {
		caps = append(caps, forFiles)
	}
	if len(sel.Folders) > 0 {
		caps = append(caps, forFolders)
	}
	return caps
}
