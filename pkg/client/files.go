package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"path/filepath"
	"time"

	"github.com/ramy-dje/madar-dashboard-sub000/internal/logging"
	"github.com/ramy-dje/madar-dashboard-sub000/internal/metrics"
	"github.com/ramy-dje/madar-dashboard-sub000/pkg/models"
	"github.com/ramy-dje/madar-dashboard-sub000/pkg/protocol"
)

// UploadFiles uploads one or more files into a folder in a single multipart request.
// The body is streamed, so the file readers are consumed while the request is in flight.
func (c *Client) UploadFiles(ctx context.Context, req protocol.UploadRequest) ([]models.File, error) {
	if len(req.Files) == 0 {
		return nil, fmt.Errorf("upload: no files")
	}

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		pw.CloseWithError(writeUpload(mw, req))
	}()

	var resp protocol.UploadResponse
	err := c.mutate(ctx, request{
		method:      http.MethodPost,
		path:        "/files/upload-multiple",
		route:       "/files/upload-multiple",
		body:        pr,
		contentType: mw.FormDataContentType(),
	}, &resp)
	pr.Close()
	if err != nil {
		return nil, err
	}
	return resp.Files, nil
}

func writeUpload(mw *multipart.Writer, req protocol.UploadRequest) error {
	if req.FolderID != models.RootFolderID {
		if err := mw.WriteField("folderId", req.FolderID); err != nil {
			return err
		}
	}

	for _, f := range req.Files {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="files"; filename=%q`, filepath.Base(f.Name)))
		contentType := mime.TypeByExtension(filepath.Ext(f.Name))
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		h.Set("Content-Type", contentType)

		part, err := mw.CreatePart(h)
		if err != nil {
			return err
		}
		if _, err := io.Copy(part, f.Content); err != nil {
			return fmt.Errorf("upload %s: %w", f.Name, err)
		}
	}

	if len(req.SharedWith) > 0 {
		data, err := json.Marshal(req.SharedWith)
		if err != nil {
			return err
		}
		if err := mw.WriteField("sharedWith", string(data)); err != nil {
			return err
		}
	}
	if len(req.SharedWithRoles) > 0 {
		data, err := json.Marshal(req.SharedWithRoles)
		if err != nil {
			return err
		}
		if err := mw.WriteField("sharedWithRoles", string(data)); err != nil {
			return err
		}
	}
	return mw.Close()
}

// UpdateFile patches a file: rename, move (TargetFolderID) or alt text.
func (c *Client) UpdateFile(ctx context.Context, fileID string, req protocol.UpdateFileRequest) (*models.File, error) {
	r, err := jsonRequest(http.MethodPatch, "/files/"+escape(fileID), "/files/:id", req)
	if err != nil {
		return nil, err
	}
	var file models.File
	if err := c.mutate(ctx, r, &file); err != nil {
		return nil, err
	}
	return &file, nil
}

// DeleteFile deletes a file.
func (c *Client) DeleteFile(ctx context.Context, fileID string) error {
	return c.mutate(ctx, request{
		method: http.MethodDelete,
		path:   "/files/" + escape(fileID),
		route:  "/files/:id",
	}, nil)
}

// DownloadURL returns a short-lived signed URL for the file content.
func (c *Client) DownloadURL(ctx context.Context, fileID string) (*protocol.DownloadResponse, error) {
	var resp protocol.DownloadResponse
	err := c.query(ctx, request{
		method: http.MethodGet,
		path:   "/files/" + escape(fileID) + "/download",
		route:  "/files/:id/download",
	}, &resp)
	if err != nil {
		return nil, err
	}
	if resp.URL == "" {
		return nil, fmt.Errorf("download %s: server returned no url", fileID)
	}
	return &resp, nil
}

// FetchURL opens a signed URL. The bearer token is not sent. The caller closes the body.
// The returned size is -1 when the server does not report it.
func (c *Client) FetchURL(ctx context.Context, signedURL string) (io.ReadCloser, int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, signedURL, nil)
	if err != nil {
		return nil, 0, err
	}

	start := time.Now()
	resp, err := c.blobClient.Do(req)
	if err != nil {
		metrics.RecordAPIRequest(http.MethodGet, "signed-url", 0, time.Since(start))
		return nil, 0, err
	}
	metrics.RecordAPIRequest(http.MethodGet, "signed-url", resp.StatusCode, time.Since(start))
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		logging.Debug("signed url fetch failed", logging.Int("status", resp.StatusCode))
		return nil, 0, &APIError{StatusCode: resp.StatusCode, Method: http.MethodGet, Path: "signed-url"}
	}
	return resp.Body, resp.ContentLength, nil
}
