package session

import (
	"context"
	"io"
	"time"

	"github.com/google/uuid"

	"hubsync/pkg/logger"
	"hubsync/pkg/models"
	"hubsync/pkg/telemetry"
)

// File is the local attachment handed to UploadAttachment. Size below zero
// means unknown.
type File struct {
	Name     string
	Size     int64
	MimeType string
	Content  io.Reader
}

// UploadAttachment uploads one file and returns the attachment descriptor
// to embed in a subsequent SendMessage. Progress is tracked in an upload
// record keyed by a fresh correlation id so observers can follow the
// uploading/done/error transitions; missing fields in the backend response
// are filled from the local file metadata.
func (st *Store) UploadAttachment(ctx context.Context, file File) (*models.AttachmentInput, error) {
	if file.Content == nil {
		return nil, ErrNoFile
	}

	id := uuid.NewString()
	st.setUpload(id, &UploadRecord{
		ID:        id,
		Filename:  file.Name,
		Status:    models.UploadStatusUploading,
		UpdatedAt: time.Now().UTC(),
	})

	res, err := st.api.Upload(ctx, file.Name, file.MimeType, file.Content)
	if err != nil {
		st.setUpload(id, &UploadRecord{
			ID:        id,
			Filename:  file.Name,
			Status:    models.UploadStatusError,
			Error:     err.Error(),
			UpdatedAt: time.Now().UTC(),
		})
		telemetry.Uploads.WithLabelValues("error").Inc()
		logger.Error("upload_failed", "file", file.Name, "error", err)
		return nil, err
	}

	att := &models.AttachmentInput{
		URL:      res.URL,
		Filename: res.Filename,
		Size:     res.Size,
		MimeType: res.MimeType,
	}
	if att.Filename == "" {
		att.Filename = file.Name
	}
	if att.Size == nil && file.Size >= 0 {
		size := file.Size
		att.Size = &size
	}
	if att.MimeType == "" {
		att.MimeType = file.MimeType
	}
	if att.MimeType == "" {
		att.MimeType = "application/octet-stream"
	}

	st.setUpload(id, &UploadRecord{
		ID:        id,
		Filename:  att.Filename,
		Status:    models.UploadStatusDone,
		Result:    res,
		UpdatedAt: time.Now().UTC(),
	})
	telemetry.Uploads.WithLabelValues("ok").Inc()
	logger.Debug("upload_done", "file", att.Filename, "url", att.URL)
	return att, nil
}

func (st *Store) setUpload(id string, rec *UploadRecord) {
	st.mu.Lock()
	st.uploads[id] = rec
	st.mu.Unlock()
	st.notify("")
}

// SweepUploads drops terminal (done or error) upload records last touched
// before the cutoff and reports how many were removed. In-flight records
// are never touched.
func (st *Store) SweepUploads(olderThan time.Duration) int {
	cutoff := time.Now().UTC().Add(-olderThan)
	st.mu.Lock()
	removed := 0
	for id, rec := range st.uploads {
		if rec.Status == models.UploadStatusUploading {
			continue
		}
		if rec.UpdatedAt.Before(cutoff) {
			delete(st.uploads, id)
			removed++
		}
	}
	st.mu.Unlock()

	if removed > 0 {
		telemetry.UploadRecordsSwept.Add(float64(removed))
		st.notify("")
	}
	return removed
}
