package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/ramy-dje/madar-dashboard-sub000/internal/browse"
	"github.com/ramy-dje/madar-dashboard-sub000/internal/store"
	"github.com/ramy-dje/madar-dashboard-sub000/internal/view"
	"github.com/ramy-dje/madar-dashboard-sub000/pkg/models"
	"github.com/ramy-dje/madar-dashboard-sub000/pkg/protocol"
)

const shellHelp = `Commands (items are referenced by name or id):
  ls                         Show the current folder
  cd <folder|..|/>           Enter a folder
  more                       Load the next page
  refresh                    Reload the current folder
  find <text>                Filter by name (find with no text clears it)
  only <files|folders|all>   Filter by kind
  type <pdf,png|all>         Filter files by type
  sort <name|createdAt|size> [desc]
  sel <item>...              Select items
  unsel <item>...            Unselect items
  selall | clear             Select everything shown | clear the selection
  actions                    Show what can be done with the selection
  rm                         Delete the selection
  mv <folder id|/>           Move the selection
  targets                    List folders the selection can move into
  mkdir [-p] <name>          Create a folder; -p protects it with a password
  rename <item> <new name>   Rename a file or folder
  lock <folder>              Protect a folder with a password
  unlock <folder>            Make a protected folder public
  upload <path>...           Upload local files here
  get <file>                 Download a file
  shares <item> [grant|update <user|role> <id> <perm> | revoke <user|role> <id>]
  view <table|grid|json|yaml>
  stats                      Browse cache statistics
  help | exit`

// runShell reads commands until EOF or exit. The session, and with it every folder password
// entered, lives until the shell returns.
func (a *app) runShell(ctx context.Context) error {
	if err := a.unlock(ctx, a.session.OpenRoot(ctx)); err != nil {
		return err
	}
	a.show()

	for {
		fmt.Fprintf(os.Stderr, "%s> ", view.Breadcrumbs(a.session.Breadcrumbs()))
		line, err := a.in.ReadString('\n')
		if err != nil && line == "" {
			if errors.Is(err, io.EOF) {
				fmt.Fprintln(os.Stderr)
				return nil
			}
			return err
		}
		if ctx.Err() != nil {
			return nil
		}

		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		if fields[0] == "exit" || fields[0] == "quit" {
			return nil
		}
		if err := a.dispatch(ctx, fields[0], fields[1:]); err != nil {
			var ue usageError
			if errors.As(err, &ue) {
				fmt.Fprintf(os.Stderr, "usage: %s\n", ue)
				continue
			}
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
	}
}

func (a *app) dispatch(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "ls", "l":
		a.show()
	case "cd":
		return a.shellCd(ctx, args)
	case "more":
		if err := a.unlock(ctx, a.session.LoadMore(ctx)); err != nil {
			return err
		}
		a.show()
	case "refresh":
		if err := a.unlock(ctx, a.session.Refresh(ctx)); err != nil {
			return err
		}
		a.show()
	case "find", "only", "type", "sort":
		return a.shellFilter(ctx, cmd, args)
	case "sel", "unsel":
		return a.shellSelect(cmd == "sel", args)
	case "selall":
		a.session.SelectAll(true)
		a.show()
	case "clear":
		a.session.Store().ClearSelection()
	case "actions":
		fmt.Println(view.ActionBar(a.session.Actions()))
	case "rm":
		if a.session.Store().Selection().Empty() {
			return errors.New("nothing selected")
		}
		out, err := a.session.DeleteSelected(ctx)
		a.printOutcome("Deleted", out)
		return err
	case "mv":
		return a.shellMove(ctx, args)
	case "targets":
		folders, err := a.session.MoveCandidates(ctx)
		if err != nil {
			return err
		}
		for _, f := range folders {
			fmt.Printf("%s  %s\n", f.ID, f.Name)
		}
	case "mkdir":
		return a.shellMkdir(ctx, args)
	case "rename":
		return a.shellRename(ctx, args)
	case "lock", "unlock":
		return a.shellAccess(ctx, cmd == "lock", args)
	case "upload":
		if len(args) == 0 {
			return usageError("upload <path>...")
		}
		return a.upload(ctx, args)
	case "get":
		if len(args) != 1 {
			return usageError("get <file>")
		}
		return a.download(ctx, args[0])
	case "shares":
		if len(args) == 0 {
			return usageError("shares <item> [grant|update|revoke ...]")
		}
		it, ok := a.lookup(args[0])
		if !ok {
			return fmt.Errorf("%s: not found in this folder", args[0])
		}
		return a.shares(ctx, it.kind, it.id(), args[1:])
	case "view":
		if len(args) != 1 {
			return usageError("view <table|grid|json|yaml>")
		}
		switch args[0] {
		case "table", "grid", "json", "yaml":
			a.out = args[0]
			a.show()
		default:
			return usageError("view <table|grid|json|yaml>")
		}
	case "stats":
		st := a.session.CacheStats()
		fmt.Printf("Cached listings: %d\nHits:            %s\nMisses:          %s\n",
			st.Entries, humanize.Comma(int64(st.Hits)), humanize.Comma(int64(st.Misses)))
	case "pwd":
		fmt.Println(view.Breadcrumbs(a.session.Breadcrumbs()))
	case "help", "?":
		fmt.Println(shellHelp)
	default:
		return fmt.Errorf("unknown command %q, try help", cmd)
	}
	return nil
}

func (a *app) show() {
	if filtersActive(a.session.Filters()) {
		fmt.Fprintln(os.Stderr, "(filtered, find/only/type with no value or all to reset)")
	}
	if err := printListing(os.Stdout, a.out, a.session.Breadcrumbs(), a.session.Listing(), a.session.Store()); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
	}
}

func (a *app) shellCd(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return usageError("cd <folder|..|/>")
	}
	var err error
	switch ref := args[0]; ref {
	case "/":
		err = a.session.OpenRoot(ctx)
	case "..":
		err = a.session.Up(ctx)
	default:
		it, ok := a.lookup(ref)
		switch {
		case ok && it.kind == models.KindFolder:
			err = a.session.Open(ctx, it.folder)
		case ok:
			return fmt.Errorf("%s is a file", it.name())
		default:
			err = a.session.OpenByID(ctx, ref)
		}
	}
	if err := a.unlock(ctx, err); err != nil {
		return err
	}
	a.show()
	return nil
}

func (a *app) shellFilter(ctx context.Context, cmd string, args []string) error {
	f := a.session.Filters()
	switch cmd {
	case "find":
		f.Search = strings.Join(args, " ")
	case "only":
		if len(args) != 1 {
			return usageError("only <files|folders|all>")
		}
		f.ItemType = protocol.ItemType(args[0])
		if f.ItemType == protocol.ItemsAll {
			f.ItemType = ""
		}
	case "type":
		if len(args) != 1 {
			return usageError("type <pdf,png|all>")
		}
		f.FileTypes = nil
		if args[0] != "all" {
			f.FileTypes = strings.Split(args[0], ",")
		}
	case "sort":
		if len(args) == 0 {
			return usageError("sort <name|createdAt|size> [desc]")
		}
		f.SortBy, f.SortOrder = args[0], protocol.SortAsc
		if len(args) > 1 && args[1] == "desc" {
			f.SortOrder = protocol.SortDesc
		}
	}
	if err := a.unlock(ctx, a.session.SetFilters(ctx, f)); err != nil {
		return err
	}
	a.show()
	return nil
}

func (a *app) shellSelect(selected bool, refs []string) error {
	if len(refs) == 0 {
		return usageError("sel <item>...")
	}
	st := a.session.Store()
	for _, ref := range refs {
		it, ok := a.lookup(ref)
		if !ok {
			return fmt.Errorf("%s: not found in this folder", ref)
		}
		if it.kind == models.KindFolder {
			st.ToggleFolder(it.id(), selected)
		} else {
			st.ToggleFile(it.id(), selected)
		}
	}
	fmt.Printf("%d selected\n", st.Selection().Len())
	return nil
}

func (a *app) shellMove(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return usageError("mv <folder id|/>")
	}
	target := args[0]
	if target == "/" {
		target = models.RootFolderID
	}
	if a.session.Store().Selection().Empty() {
		return errors.New("nothing selected")
	}

	_, candidates, err := a.session.OpenMoveDialog(ctx)
	if err != nil {
		return err
	}
	if target != models.RootFolderID && !containsFolder(candidates, target) {
		a.session.Store().CloseMoveDialog()
		return fmt.Errorf("%s is not a valid target, see targets", target)
	}
	out, err := a.session.MoveSelected(ctx, target)
	a.printOutcome("Moved", out)
	return err
}

func (a *app) shellMkdir(ctx context.Context, args []string) error {
	protect := len(args) > 0 && args[0] == "-p"
	if protect {
		args = args[1:]
	}
	if len(args) == 0 {
		return usageError("mkdir [-p] <name>")
	}
	if _, err := a.session.OpenCreateFolder(); err != nil {
		return err
	}

	name := strings.Join(args, " ")
	patch := store.FolderDraftPatch{Name: &name}
	if protect {
		password, err := a.newPassword()
		if err != nil {
			a.session.CancelFolderDialog()
			return err
		}
		acc := models.AccessProtected
		patch.Accessibility, patch.Password = &acc, &password
	}
	return a.submitFolder(ctx, patch)
}

func (a *app) shellRename(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return usageError("rename <item> <new name>")
	}
	it, ok := a.lookup(args[0])
	if !ok {
		return fmt.Errorf("%s: not found in this folder", args[0])
	}
	name := strings.Join(args[1:], " ")

	if it.kind == models.KindFile {
		_, err := a.session.RenameFile(ctx, it.id(), name)
		return err
	}
	if _, err := a.session.OpenEditFolder(it.folder); err != nil {
		return err
	}
	return a.submitFolder(ctx, store.FolderDraftPatch{Name: &name})
}

func (a *app) shellAccess(ctx context.Context, protect bool, args []string) error {
	if len(args) != 1 {
		return usageError("lock|unlock <folder>")
	}
	it, ok := a.lookup(args[0])
	if !ok || it.kind != models.KindFolder {
		return fmt.Errorf("%s: no such folder here", args[0])
	}
	if _, err := a.session.OpenEditFolder(it.folder); err != nil {
		return err
	}

	acc := models.AccessPublic
	patch := store.FolderDraftPatch{Accessibility: &acc}
	if protect {
		password, err := a.newPassword()
		if err != nil {
			a.session.CancelFolderDialog()
			return err
		}
		acc = models.AccessProtected
		patch.Password = &password
	}
	return a.submitFolder(ctx, patch)
}

// submitFolder submits the folder dialog. A rejected draft cancels it; the shell has no form to
// correct it in.
func (a *app) submitFolder(ctx context.Context, patch store.FolderDraftPatch) error {
	if _, err := a.session.SubmitFolderDialog(ctx, patch); err != nil {
		a.session.CancelFolderDialog()
		return err
	}
	a.show()
	return nil
}

// filtersActive reports whether the listing is narrowed.
func filtersActive(f browse.Filters) bool {
	return f.Search != "" || f.ItemType != "" || len(f.FileTypes) > 0
}
