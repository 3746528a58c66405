package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"hubsync/pkg/models"
)

func TestUploadAttachmentFillsMissingFieldsLocally(t *testing.T) {
	st, _ := newTestStore(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/uploads/" {
			t.Errorf("path = %s", r.URL.Path)
		}
		f, hdr, err := r.FormFile("file")
		if err != nil {
			t.Fatalf("form field file: %v", err)
		}
		defer f.Close()
		if hdr.Filename != "notes.txt" {
			t.Errorf("filename = %s", hdr.Filename)
		}
		body, _ := io.ReadAll(f)
		if string(body) != "hello" {
			t.Errorf("content = %q", body)
		}
		// Backend answers with the URL only.
		fmt.Fprint(w, `{"url":"https://cdn.example.com/notes.txt"}`)
	}))

	att, err := st.UploadAttachment(context.Background(), File{
		Name:     "notes.txt",
		Size:     5,
		MimeType: "text/plain",
		Content:  strings.NewReader("hello"),
	})
	if err != nil {
		t.Fatalf("UploadAttachment: %v", err)
	}
	if att.URL != "https://cdn.example.com/notes.txt" {
		t.Errorf("url = %s", att.URL)
	}
	if att.Filename != "notes.txt" {
		t.Errorf("filename fallback missing: %s", att.Filename)
	}
	if att.Size == nil || *att.Size != 5 {
		t.Errorf("size fallback missing: %v", att.Size)
	}
	if att.MimeType != "text/plain" {
		t.Errorf("mime fallback missing: %s", att.MimeType)
	}

	recs := st.Uploads()
	if len(recs) != 1 || recs[0].Status != models.UploadStatusDone {
		t.Fatalf("upload record = %+v", recs)
	}
}

func TestUploadAttachmentBackendFieldsWin(t *testing.T) {
	st, _ := newTestStore(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"url":"https://cdn.example.com/x","filename":"renamed.bin","size":99,"mimeType":"application/x-thing"}`)
	}))

	att, err := st.UploadAttachment(context.Background(), File{
		Name:     "orig.bin",
		Size:     5,
		MimeType: "application/octet-stream",
		Content:  strings.NewReader("xxxxx"),
	})
	if err != nil {
		t.Fatalf("UploadAttachment: %v", err)
	}
	if att.Filename != "renamed.bin" || att.Size == nil || *att.Size != 99 || att.MimeType != "application/x-thing" {
		t.Errorf("backend descriptor not preferred: %+v", att)
	}
}

func TestUploadAttachmentNoFile(t *testing.T) {
	st, _ := newTestStore(t, http.HandlerFunc(http.NotFound))
	if _, err := st.UploadAttachment(context.Background(), File{Name: "x"}); !errors.Is(err, ErrNoFile) {
		t.Fatalf("err = %v, want ErrNoFile", err)
	}
}

func TestUploadAttachmentFailureRecorded(t *testing.T) {
	st, _ := newTestStore(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusRequestEntityTooLarge)
		fmt.Fprint(w, `{"detail":"too large"}`)
	}))

	_, err := st.UploadAttachment(context.Background(), File{
		Name:    "big.bin",
		Size:    5,
		Content: strings.NewReader("xxxxx"),
	})
	if err == nil {
		t.Fatal("expected error")
	}
	recs := st.Uploads()
	if len(recs) != 1 {
		t.Fatalf("got %d records", len(recs))
	}
	if recs[0].Status != models.UploadStatusError || !strings.Contains(recs[0].Error, "too large") {
		t.Errorf("record = %+v", recs[0])
	}
}

func TestUploadThenSendRoundTripsDescriptor(t *testing.T) {
	st, _ := newTestStore(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/uploads/" {
			fmt.Fprint(w, `{"url":"u","filename":"f","size":10,"mimeType":"image/png"}`)
			return
		}
		// Echo the posted attachments back on the created message.
		var body struct {
			Text        string            `json:"text"`
			Attachments []json.RawMessage `json:"attachments"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatal(err)
		}
		atts := make([]string, 0, len(body.Attachments))
		for _, a := range body.Attachments {
			atts = append(atts, string(a))
		}
		fmt.Fprintf(w, `{"id":"m1","text":%q,"timestamp":"2026-01-01T10:00:00Z","attachments":[%s]}`,
			body.Text, strings.Join(atts, ","))
	}))

	desc, err := st.UploadAttachment(context.Background(), File{
		Name: "ignored.png", Size: 3, MimeType: "image/jpeg",
		Content: strings.NewReader("png"),
	})
	if err != nil {
		t.Fatalf("UploadAttachment: %v", err)
	}

	msg, err := st.SendMessage(context.Background(), "g1", "hi", []models.AttachmentInput{*desc})
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if len(msg.Attachments) != 1 {
		t.Fatalf("attachments = %d", len(msg.Attachments))
	}
	att := msg.Attachments[0]
	if att.URL != "u" || att.Filename != "f" || att.Size == nil || *att.Size != 10 || att.MimeType != "image/png" {
		t.Errorf("descriptor did not round-trip: %+v", att)
	}
}

func TestSweepUploadsKeepsInFlight(t *testing.T) {
	st, _ := newTestStore(t, http.HandlerFunc(http.NotFound))
	old := time.Now().UTC().Add(-2 * time.Hour)
	st.setUpload("a", &UploadRecord{ID: "a", Status: models.UploadStatusDone, UpdatedAt: old})
	st.setUpload("b", &UploadRecord{ID: "b", Status: models.UploadStatusError, UpdatedAt: old})
	st.setUpload("c", &UploadRecord{ID: "c", Status: models.UploadStatusUploading, UpdatedAt: old})
	st.setUpload("d", &UploadRecord{ID: "d", Status: models.UploadStatusDone, UpdatedAt: time.Now().UTC()})

	if n := st.SweepUploads(time.Hour); n != 2 {
		t.Fatalf("swept %d records, want 2", n)
	}
	left := map[string]bool{}
	for _, r := range st.Uploads() {
		left[r.ID] = true
	}
	if !left["c"] || !left["d"] || left["a"] || left["b"] {
		t.Errorf("remaining records = %v", left)
	}
}
