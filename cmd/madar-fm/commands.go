package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"golang.org/x/term"

	"github.com/ramy-dje/madar-dashboard-sub000/internal/browse"
	"github.com/ramy-dje/madar-dashboard-sub000/internal/filemanager"
	"github.com/ramy-dje/madar-dashboard-sub000/internal/mutation"
	"github.com/ramy-dje/madar-dashboard-sub000/internal/store"
	"github.com/ramy-dje/madar-dashboard-sub000/internal/view"
	"github.com/ramy-dje/madar-dashboard-sub000/pkg/models"
	"github.com/ramy-dje/madar-dashboard-sub000/pkg/protocol"
)

const maxPasswordAttempts = 3

// usageError carries the usage line of a command invoked with bad arguments.
type usageError string

func (e usageError) Error() string { return string(e) }

// item is a file or folder of the current listing.
type item struct {
	kind   models.EntityKind
	folder models.Folder
	file   models.File
}

func (it item) id() string {
	if it.kind == models.KindFolder {
		return it.folder.ID
	}
	return it.file.ID
}

func (it item) name() string {
	if it.kind == models.KindFolder {
		return it.folder.Name
	}
	return it.file.Name
}

// enter opens a folder, prompting for its password when it is protected.
func (a *app) enter(ctx context.Context, folderID string) error {
	return a.unlock(ctx, a.session.OpenByID(ctx, folderID))
}

// unlock answers password challenges until the folder opens, the user enters nothing, or the
// attempts run out.
func (a *app) unlock(ctx context.Context, err error) error {
	for attempt := 0; errors.Is(err, filemanager.ErrPasswordNeeded) && attempt < maxPasswordAttempts; attempt++ {
		dlg := a.session.PasswordDialog()
		if !dlg.Open {
			return err
		}
		prompt := "Folder password: "
		if dlg.IsRetry {
			prompt = "Incorrect, try again: "
		}
		password, perr := a.readPassword(prompt)
		if perr != nil {
			return perr
		}
		if password == "" {
			if cerr := a.session.ClosePasswordDialog(); cerr != nil {
				return err
			}
			return fmt.Errorf("cancelled: %w", err)
		}
		err = a.session.SubmitPassword(ctx, password)
	}
	return err
}

// readPassword reads a line without echo from a terminal, or a plain line otherwise.
func (a *app) readPassword(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	if a.tty {
		b, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		return string(b), nil
	}
	line, err := a.in.ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("read password: %w", err)
	}
	return strings.TrimSpace(line), nil
}

// loadAll fetches the remaining pages of the current listing.
func (a *app) loadAll(ctx context.Context) error {
	for {
		l := a.session.Listing()
		if l == nil || !l.HasMore() {
			return nil
		}
		if err := a.session.LoadMore(ctx); err != nil {
			return err
		}
		if next := a.session.Listing(); next == nil || len(next.Pages) == len(l.Pages) {
			return nil
		}
	}
}

// lookup finds an item of the current listing by id or exact name.
func (a *app) lookup(ref string) (item, bool) {
	l := a.session.Listing()
	if l == nil {
		return item{}, false
	}
	for _, f := range l.Folders() {
		if f.ID == ref || f.Name == ref {
			return item{kind: models.KindFolder, folder: f}, true
		}
	}
	for _, f := range l.Files() {
		if f.ID == ref || f.Name == ref {
			return item{kind: models.KindFile, file: f}, true
		}
	}
	return item{}, false
}

// selectRefs replaces the selection with the referenced items of the current listing.
func (a *app) selectRefs(refs []string) error {
	st := a.session.Store()
	st.ClearSelection()
	for _, ref := range refs {
		it, ok := a.lookup(ref)
		if !ok {
			return fmt.Errorf("%s: not found in this folder", ref)
		}
		if it.kind == models.KindFolder {
			st.ToggleFolder(it.id(), true)
		} else {
			st.ToggleFile(it.id(), true)
		}
	}
	return nil
}

func (a *app) printOutcome(verb string, out mutation.Outcome) {
	fmt.Printf("%s %d items\n", verb, len(out.Succeeded))
	for _, f := range out.Failed {
		fmt.Fprintf(os.Stderr, "  failed %s %s: %v\n", f.Item.Kind, f.Item.ID, f.Err)
	}
}

func (a *app) cmdList(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("ls", flag.ContinueOnError)
	all := fs.Bool("all", false, "Load every page")
	search := fs.String("search", "", "Only names containing this text")
	only := fs.String("only", "", "Only files or folders")
	types := fs.String("type", "", "File types, comma separated (pdf,png)")
	sortBy := fs.String("sort", "", "Sort by name, createdAt or size")
	desc := fs.Bool("desc", false, "Sort descending")
	if err := fs.Parse(args); err != nil {
		return usageError("ls [-all] [-search text] [-only files|folders] [-type pdf,png] [-sort field] [-desc] [folderID]")
	}

	if err := a.enter(ctx, fs.Arg(0)); err != nil {
		return err
	}

	f := browse.Filters{Search: *search, ItemType: protocol.ItemType(*only), SortBy: *sortBy}
	if *types != "" {
		f.FileTypes = strings.Split(*types, ",")
	}
	if *desc {
		f.SortOrder = protocol.SortDesc
	}
	if f.Search != "" || f.ItemType != "" || len(f.FileTypes) > 0 || f.SortBy != "" || *desc {
		if err := a.session.SetFilters(ctx, f); err != nil {
			return err
		}
	}
	if *all {
		if err := a.loadAll(ctx); err != nil {
			return err
		}
	}
	return printListing(os.Stdout, a.out, a.session.Breadcrumbs(), a.session.Listing(), a.session.Store())
}

func (a *app) cmdCrumbs(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return usageError("crumbs <folderID>")
	}
	if err := a.enter(ctx, args[0]); err != nil {
		return err
	}
	crumbs := a.session.Breadcrumbs()
	if a.out == "json" || a.out == "yaml" {
		return encode(os.Stdout, a.out, crumbs)
	}
	fmt.Println(view.Breadcrumbs(crumbs))
	return nil
}

func (a *app) cmdMkdir(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("mkdir", flag.ContinueOnError)
	parent := fs.String("in", "", "Parent folder id (default: root)")
	note := fs.String("note", "", "Folder note")
	protected := fs.Bool("protected", false, "Protect the folder with a password")
	if err := fs.Parse(args); err != nil || fs.NArg() != 1 {
		return usageError("mkdir [-in folderID] [-note text] [-protected] <name>")
	}

	if err := a.enter(ctx, *parent); err != nil {
		return err
	}
	if _, err := a.session.OpenCreateFolder(); err != nil {
		return err
	}

	name := fs.Arg(0)
	patch := store.FolderDraftPatch{Name: &name, Note: note}
	if *protected {
		password, err := a.newPassword()
		if err != nil {
			return err
		}
		acc := models.AccessProtected
		patch.Accessibility = &acc
		patch.Password = &password
	}

	folder, err := a.session.SubmitFolderDialog(ctx, patch)
	if err != nil {
		return err
	}
	if a.out == "json" || a.out == "yaml" {
		return encode(os.Stdout, a.out, folder)
	}
	fmt.Printf("Created folder %s (%s)\n", folder.Name, folder.ID)
	return nil
}

// newPassword prompts for a folder password twice.
func (a *app) newPassword() (string, error) {
	password, err := a.readPassword(fmt.Sprintf("New folder password (min %d chars): ", mutation.MinPasswordLength))
	if err != nil {
		return "", err
	}
	confirm, err := a.readPassword("Repeat password: ")
	if err != nil {
		return "", err
	}
	if password != confirm {
		return "", errors.New("passwords do not match")
	}
	return password, nil
}

func (a *app) cmdRemove(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("rm", flag.ContinueOnError)
	in := fs.String("in", "", "Folder holding the items (default: root)")
	if err := fs.Parse(args); err != nil || fs.NArg() == 0 {
		return usageError("rm [-in folderID] <id|name>...")
	}

	if err := a.enter(ctx, *in); err != nil {
		return err
	}
	if err := a.loadAll(ctx); err != nil {
		return err
	}
	if err := a.selectRefs(fs.Args()); err != nil {
		return err
	}
	out, err := a.session.DeleteSelected(ctx)
	a.printOutcome("Deleted", out)
	return err
}

func (a *app) cmdMove(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("mv", flag.ContinueOnError)
	in := fs.String("in", "", "Folder holding the items (default: root)")
	to := fs.String("to", "", "Target folder id (empty for root)")
	if err := fs.Parse(args); err != nil || fs.NArg() == 0 {
		return usageError("mv [-in folderID] -to <targetID> <id|name>...")
	}

	if err := a.enter(ctx, *in); err != nil {
		return err
	}
	if err := a.loadAll(ctx); err != nil {
		return err
	}
	if err := a.selectRefs(fs.Args()); err != nil {
		return err
	}

	_, candidates, err := a.session.OpenMoveDialog(ctx)
	if err != nil {
		return err
	}
	if *to != models.RootFolderID && !containsFolder(candidates, *to) {
		a.session.Store().CloseMoveDialog()
		return fmt.Errorf("%s is not a valid target", *to)
	}

	out, err := a.session.MoveSelected(ctx, *to)
	a.printOutcome("Moved", out)
	return err
}

func containsFolder(folders []models.Folder, id string) bool {
	for _, f := range folders {
		if f.ID == id {
			return true
		}
	}
	return false
}

func (a *app) cmdUpload(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("upload", flag.ContinueOnError)
	in := fs.String("in", "", "Target folder id (default: root)")
	if err := fs.Parse(args); err != nil || fs.NArg() == 0 {
		return usageError("upload [-in folderID] <path>...")
	}

	if err := a.enter(ctx, *in); err != nil {
		return err
	}
	return a.upload(ctx, fs.Args())
}

func (a *app) upload(ctx context.Context, paths []string) error {
	files := make([]protocol.UploadFile, 0, len(paths))
	for _, p := range paths {
		f, err := os.Open(p)
		if err != nil {
			return err
		}
		defer f.Close()
		files = append(files, protocol.UploadFile{Name: filepath.Base(p), Content: f})
	}

	uploaded, err := a.session.Upload(ctx, files)
	if err != nil {
		return err
	}
	for _, f := range uploaded {
		fmt.Printf("Uploaded %s (%s) -> %s\n", f.Name, humanize.Bytes(uint64(f.Size)), f.ID)
	}
	return nil
}

func (a *app) cmdDownload(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("download", flag.ContinueOnError)
	in := fs.String("in", "", "Folder holding the file (default: root)")
	if err := fs.Parse(args); err != nil || fs.NArg() != 1 {
		return usageError("download [-in folderID] <fileID|name>")
	}

	if err := a.enter(ctx, *in); err != nil {
		return err
	}
	if err := a.loadAll(ctx); err != nil {
		return err
	}
	return a.download(ctx, fs.Arg(0))
}

func (a *app) download(ctx context.Context, ref string) error {
	it, ok := a.lookup(ref)
	if !ok || it.kind != models.KindFile {
		return fmt.Errorf("%s: no such file in this folder", ref)
	}
	res, err := a.session.Download(ctx, it.file)
	if err != nil {
		return err
	}
	fmt.Printf("Saved %s (%s) to %s\n", it.file.Name, humanize.Bytes(uint64(res.Bytes)), res.Location)
	return nil
}

const sharesUsage = "shares <file|folder> <id> [grant <user|role> <principalID> <read|write|admin> | revoke <user|role> <principalID>]"

func (a *app) cmdShares(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return usageError(sharesUsage)
	}
	kind, err := parseKind(args[0])
	if err != nil {
		return err
	}
	return a.shares(ctx, kind, args[1], args[2:])
}

// shares lists the grants of an item, or changes one when an action follows.
func (a *app) shares(ctx context.Context, kind models.EntityKind, id string, args []string) error {
	if len(args) > 0 {
		if err := a.changeGrant(ctx, kind, id, args); err != nil {
			return err
		}
	}
	g, err := a.session.Grants(ctx, kind, id)
	if err != nil {
		return err
	}
	return printGrants(os.Stdout, a.out, g)
}

func (a *app) changeGrant(ctx context.Context, kind models.EntityKind, id string, args []string) error {
	if len(args) < 3 {
		return usageError(sharesUsage)
	}
	action, principal, principalID := args[0], args[1], args[2]

	switch action {
	case "grant":
		if len(args) != 4 {
			return usageError(sharesUsage)
		}
		perm := models.Permission(args[3])
		if principal == "role" {
			return a.session.ShareWithRole(ctx, kind, id, principalID, perm)
		}
		return a.session.ShareWithUser(ctx, kind, id, principalID, perm)
	case "update":
		if len(args) != 4 {
			return usageError(sharesUsage)
		}
		perm := models.Permission(args[3])
		if principal == "role" {
			return a.session.UpdateRoleShare(ctx, kind, id, principalID, perm)
		}
		return a.session.UpdateUserShare(ctx, kind, id, principalID, perm)
	case "revoke":
		if principal == "role" {
			return a.session.UnshareRole(ctx, kind, id, principalID)
		}
		return a.session.UnshareUser(ctx, kind, id, principalID)
	}
	return usageError(sharesUsage)
}

func parseKind(s string) (models.EntityKind, error) {
	switch models.EntityKind(s) {
	case models.KindFile, models.KindFolder:
		return models.EntityKind(s), nil
	}
	return "", fmt.Errorf("unknown item kind %q (want file or folder)", s)
}
