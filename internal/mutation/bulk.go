package mutation

import (
	"context"
	"errors"
	"fmt"

	"github.com/ramy-dje/madar-dashboard-sub000/internal/logging"
	"github.com/ramy-dje/madar-dashboard-sub000/internal/metrics"
	"github.com/ramy-dje/madar-dashboard-sub000/pkg/models"
	"github.com/ramy-dje/madar-dashboard-sub000/pkg/protocol"
)

// ErrPartialFailure matches every BulkError.
var ErrPartialFailure = errors.New("some items failed")

// Item identifies one constituent of a bulk operation.
type Item struct {
	Kind models.EntityKind
	ID   string
}

// Failure is an item whose call failed.
type Failure struct {
	Item Item
	Err  error
}

// Outcome folds the per-item results of a bulk operation.
type Outcome struct {
	Succeeded []Item
	Failed    []Failure
}

// OK reports whether every item succeeded.
func (o Outcome) OK() bool {
	return len(o.Failed) == 0
}

// FailedIDs returns the ids of the failed items.
func (o Outcome) FailedIDs() []string {
	ids := make([]string, 0, len(o.Failed))
	for _, f := range o.Failed {
		ids = append(ids, f.Item.ID)
	}
	return ids
}

// BulkError reports a bulk operation where at least one item failed. Items that succeeded are
// not rolled back.
type BulkError struct {
	Op      string
	Outcome Outcome
}

func (e *BulkError) Error() string {
	total := len(e.Outcome.Succeeded) + len(e.Outcome.Failed)
	return fmt.Sprintf("%s: %d of %d items failed", e.Op, len(e.Outcome.Failed), total)
}

// Is makes errors.Is(err, ErrPartialFailure) hold.
func (e *BulkError) Is(target error) bool {
	return target == ErrPartialFailure
}

// MoveInput moves a mixed batch of files and folders into one target folder.
type MoveInput struct {
	Files          []ItemRef
	Folders        []ItemRef
	TargetFolderID string
}

// Move patches every file with the target folder, then every folder with the new parent. Calls
// run one at a time and all of them are attempted even after a failure. The source folders of
// moved items and the target are invalidated afterwards.
func (m *Mutator) Move(ctx context.Context, in MoveInput) (Outcome, error) {
	if len(in.Files)+len(in.Folders) == 0 {
		return Outcome{}, &ValidationError{Fields: map[string]string{"items": "nothing selected"}}
	}

	target := in.TargetFolderID
	var out Outcome
	touched := []string{}

	for _, ref := range in.Files {
		_, err := m.api.UpdateFile(ctx, ref.ID, protocol.UpdateFileRequest{TargetFolderID: &target})
		if m.fold(&out, "move", Item{Kind: models.KindFile, ID: ref.ID}, err) {
			touched = append(touched, ref.FolderID)
		}
	}
	for _, ref := range in.Folders {
		_, err := m.api.UpdateFolder(ctx, ref.ID, protocol.UpdateFolderRequest{ParentID: &target})
		if m.fold(&out, "move", Item{Kind: models.KindFolder, ID: ref.ID}, err) {
			touched = append(touched, ref.FolderID)
		}
	}

	if len(out.Succeeded) > 0 {
		m.invalidateFolders(append(touched, target)...)
	}
	return out, m.finish("move", out)
}

// DeleteMany deletes every file, then every folder, one call at a time. All items are attempted
// even after a failure.
func (m *Mutator) DeleteMany(ctx context.Context, files, folders []ItemRef) (Outcome, error) {
	if len(files)+len(folders) == 0 {
		return Outcome{}, &ValidationError{Fields: map[string]string{"items": "nothing selected"}}
	}

	var out Outcome
	touched := []string{}

	for _, ref := range files {
		if m.fold(&out, "delete", Item{Kind: models.KindFile, ID: ref.ID}, m.api.DeleteFile(ctx, ref.ID)) {
			touched = append(touched, ref.FolderID)
			m.invalidateSharing(models.KindFile, ref.ID)
		}
	}
	for _, ref := range folders {
		if m.fold(&out, "delete", Item{Kind: models.KindFolder, ID: ref.ID}, m.api.DeleteFolder(ctx, ref.ID)) {
			touched = append(touched, ref.FolderID, ref.ID)
			m.invalidateSharing(models.KindFolder, ref.ID)
		}
	}

	m.invalidateFolders(touched...)
	return out, m.finish("delete", out)
}

// fold records one item result and reports whether it succeeded.
func (m *Mutator) fold(out *Outcome, op string, item Item, err error) bool {
	metrics.RecordBulkItem(op, err == nil)
	if err != nil {
		out.Failed = append(out.Failed, Failure{Item: item, Err: err})
		logging.Warn("bulk item failed",
			logging.String("op", op),
			logging.String("kind", string(item.Kind)),
			logging.String("id", item.ID),
			logging.Err(err),
		)
		return false
	}
	out.Succeeded = append(out.Succeeded, item)
	return true
}

func (m *Mutator) finish(op string, out Outcome) error {
	metrics.RecordMutation(op, out.OK())
	if out.OK() {
		return nil
	}
	return &BulkError{Op: op, Outcome: out}
}
