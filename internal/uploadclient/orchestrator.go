package uploadclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
)

// Result aggregates record outcomes across all uploaded files.
type Result struct {
	Files        int
	TotalCount   int
	SuccessCount int
	FailureCount int
}

// Fully reports whether every record in every file was stored.
func (r *Result) Fully() bool {
	return r.FailureCount == 0 && r.SuccessCount == r.TotalCount
}

// Uploader drives one or more file uploads sequentially. Files run one
// at a time so the server load stays bounded and the progress bar stays
// a single coherent percentage; file N+1 does not start until file N's
// stream reached a terminal event.
type Uploader struct {
	BaseURL string
	APIKey  string
	Client  *http.Client
	Tokens  *TokenHolder

	// OnInvalidate, if set, runs after every file succeeded so cached
	// views of the record collection get dropped.
	OnInvalidate func()
}

func NewUploader(baseURL, apiKey string, tokens *TokenHolder) *Uploader {
	return &Uploader{
		BaseURL: baseURL,
		APIKey:  apiKey,
		Client:  http.DefaultClient,
		Tokens:  tokens,
	}
}

// Upload pushes the given files in order, reporting overall progress in
// [0,100] through onProgress. On a per-file fatal error the remaining
// files are not attempted and the error is returned; the Result still
// carries the counts accumulated so far.
func (u *Uploader) Upload(ctx context.Context, paths []string, onProgress func(percent int)) (*Result, error) {
	if len(paths) == 0 {
		return nil, fmt.Errorf("no files to upload")
	}

	result := &Result{Files: len(paths)}
	report := func(pct int) {
		if onProgress != nil {
			onProgress(pct)
		}
	}
	report(0)

	for i, path := range paths {
		filePct := 0
		fileErr := u.uploadOne(ctx, path, Events{
			OnProgress: func(processed, total, _, _ int, _ string) {
				if total > 0 {
					filePct = processed * 100 / total
				}
				report((i*100 + filePct) / len(paths))
			},
			OnComplete: func(totalCount, successCount, failureCount int, _ string) {
				result.TotalCount += totalCount
				result.SuccessCount += successCount
				result.FailureCount += failureCount
				report((i + 1) * 100 / len(paths))
			},
			OnError: func(message string) {
				// surfaced through uploadOne's return
			},
		})
		if fileErr != nil {
			return result, fmt.Errorf("upload %s: %w", filepath.Base(path), fileErr)
		}
	}

	report(100)
	if u.OnInvalidate != nil {
		u.OnInvalidate()
	}
	return result, nil
}

// uploadOne posts a single file and consumes its progress stream. A 403
// means the anti-forgery token went stale: refresh it and retry once.
func (u *Uploader) uploadOne(ctx context.Context, path string, ev Events) error {
	var streamErr string
	wrapped := ev
	wrapped.OnError = func(message string) {
		streamErr = message
		if ev.OnError != nil {
			ev.OnError(message)
		}
	}

	resp, err := u.post(ctx, path)
	if err != nil {
		return err
	}
	if resp.StatusCode == http.StatusForbidden {
		resp.Body.Close()
		u.Tokens.Invalidate()
		resp, err = u.post(ctx, path)
		if err != nil {
			return err
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return fmt.Errorf("session expired, re-authentication required")
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("server rejected upload: %s", readErrorBody(resp.Body, resp.StatusCode))
	}

	if err := Consume(resp.Body, wrapped); err != nil {
		return err
	}
	if streamErr != "" {
		return fmt.Errorf("upload failed: %s", streamErr)
	}
	return nil
}

func (u *Uploader) post(ctx context.Context, path string) (*http.Response, error) {
	token, err := u.Tokens.Get(ctx)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer file.Close()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(part, file); err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.BaseURL+"/upload", &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+u.APIKey)
	req.Header.Set("X-CSRF-Token", token)

	client := u.Client
	if client == nil {
		client = http.DefaultClient
	}
	return client.Do(req)
}

func readErrorBody(r io.Reader, status int) string {
	body, err := io.ReadAll(io.LimitReader(r, 4096))
	if err != nil || len(body) == 0 {
		return fmt.Sprintf("status %d", status)
	}
	var parsed struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Error != "" {
		return fmt.Sprintf("%s (status %d)", parsed.Error, status)
	}
	return fmt.Sprintf("status %d", status)
}
