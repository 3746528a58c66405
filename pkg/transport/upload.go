package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
)

// UploadResult is the content descriptor returned by the upload endpoint.
type UploadResult struct {
	URL      string `json:"url"`
	Filename string `json:"filename"`
	Size     *int64 `json:"size"`
	MimeType string `json:"mimeType"`
}

// Upload submits file content as multipart form data (field "file") to the
// upload endpoint. The backend's descriptor is returned as-is; filling in
// missing fields from local file metadata is the caller's job.
func (c *Client) Upload(ctx context.Context, filename, mimeType string, content io.Reader) (*UploadResult, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	hdr := make(textproto.MIMEHeader)
	hdr.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, escapeQuotes(filename)))
	if mimeType != "" {
		hdr.Set("Content-Type", mimeType)
	}
	part, err := w.CreatePart(hdr)
	if err != nil {
		return nil, fmt.Errorf("build multipart body: %w", err)
	}
	if _, err := io.Copy(part, content); err != nil {
		return nil, fmt.Errorf("read file content: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("finish multipart body: %w", err)
	}

	var res UploadResult
	if err := c.doJSON(ctx, http.MethodPost, "/uploads/", buf.Bytes(), w.FormDataContentType(), &res); err != nil {
		return nil, err
	}
	if res.URL == "" {
		return nil, &APIError{Status: http.StatusOK, Message: "upload response missing url"}
	}
	return &res, nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string { return quoteEscaper.Replace(s) }
