// Package download fetches file content through a signed URL and saves it client-side.
package download

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ramy-dje/madar-dashboard-sub000/internal/logging"
	"github.com/ramy-dje/madar-dashboard-sub000/internal/metrics"
	"github.com/ramy-dje/madar-dashboard-sub000/pkg/models"
	"github.com/ramy-dje/madar-dashboard-sub000/pkg/protocol"
)

// Source resolves and opens signed download URLs.
type Source interface {
	DownloadURL(ctx context.Context, fileID string) (*protocol.DownloadResponse, error)
	FetchURL(ctx context.Context, signedURL string) (io.ReadCloser, int64, error)
}

// Sink stores downloaded content.
type Sink interface {
	Name() string
	// Save stores r under name and returns where it ended up. size is -1 when unknown.
	Save(ctx context.Context, name string, r io.Reader, size int64) (string, int64, error)
}

// Result describes a saved download.
type Result struct {
	FileID   string
	Location string
	Bytes    int64
}

// Downloader ties a source to a sink.
type Downloader struct {
	src  Source
	sink Sink
}

// New creates a downloader.
func New(src Source, sink Sink) *Downloader {
	return &Downloader{src: src, sink: sink}
}

// Download requests a signed URL for file, fetches it and saves the content under the file name.
func (d *Downloader) Download(ctx context.Context, file models.File) (Result, error) {
	signed, err := d.src.DownloadURL(ctx, file.ID)
	if err != nil {
		metrics.RecordDownload(d.sink.Name(), 0, false)
		return Result{}, fmt.Errorf("resolve download url for %s: %w", file.ID, err)
	}

	body, size, err := d.src.FetchURL(ctx, signed.URL)
	if err != nil {
		metrics.RecordDownload(d.sink.Name(), 0, false)
		return Result{}, fmt.Errorf("fetch %s: %w", file.ID, err)
	}
	defer body.Close()

	name := safeName(file)
	location, written, err := d.sink.Save(ctx, name, body, size)
	if err != nil {
		metrics.RecordDownload(d.sink.Name(), 0, false)
		return Result{}, fmt.Errorf("save %s: %w", name, err)
	}

	metrics.RecordDownload(d.sink.Name(), written, true)
	logging.Info("file downloaded",
		logging.String("file_id", file.ID),
		logging.String("sink", d.sink.Name()),
		logging.String("location", location),
		logging.Int64("bytes", written),
	)
	return Result{FileID: file.ID, Location: location, Bytes: written}, nil
}

// safeName keeps only the base name so a server-supplied name cannot escape the target.
func safeName(file models.File) string {
	name := filepath.Base(strings.ReplaceAll(file.Name, "\\", "/"))
	if name == "." || name == "/" || name == ".." || name == "" {
		return file.ID
	}
	return name
}

// LocalSink writes into a directory.
type LocalSink struct {
	Dir string
}

// Name returns "local".
func (s LocalSink) Name() string { return "local" }

// Save writes r to Dir/name through a temp file and an atomic rename.
func (s LocalSink) Save(ctx context.Context, name string, r io.Reader, size int64) (string, int64, error) {
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return "", 0, fmt.Errorf("create download dir: %w", err)
	}

	localPath := filepath.Join(s.Dir, name)
	tempPath := localPath + ".tmp"

	f, err := os.Create(tempPath)
	if err != nil {
		return "", 0, fmt.Errorf("create temp file: %w", err)
	}

	written, err := io.Copy(f, r)
	f.Close()
	if err != nil {
		os.Remove(tempPath)
		return "", 0, fmt.Errorf("write content: %w", err)
	}
	if size >= 0 && written != size {
		os.Remove(tempPath)
		return "", 0, fmt.Errorf("short download: got %d of %d bytes", written, size)
	}

	if err := os.Rename(tempPath, localPath); err != nil {
		os.Remove(tempPath)
		return "", 0, fmt.Errorf("rename temp file: %w", err)
	}
	return localPath, written, nil
}
