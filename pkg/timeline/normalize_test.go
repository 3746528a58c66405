package timeline

import (
	"encoding/json"
	"testing"
	"time"

	"hubsync/pkg/models"
)

func decodeRaws(t *testing.T, payload string) []Raw {
	t.Helper()
	var raws []Raw
	if err := json.Unmarshal([]byte(payload), &raws); err != nil {
		t.Fatalf("decode raws: %v", err)
	}
	return raws
}

func TestNormalizeDefaults(t *testing.T) {
	raws := decodeRaws(t, `[{"id": 7}]`)
	got := Normalize(raws)
	if len(got) != 1 {
		t.Fatalf("expected 1 message, got %d", len(got))
	}
	m := got[0]
	if m.ID != "7" {
		t.Fatalf("numeric id must coerce to string, got %q", m.ID)
	}
	if m.Timestamp.IsZero() {
		t.Fatalf("missing timestamp must default to now")
	}
	if m.Author.Name != models.AuthorUnknown {
		t.Fatalf("missing author name must default to %q, got %q", models.AuthorUnknown, m.Author.Name)
	}
	if m.Attachments == nil || len(m.Attachments) != 0 {
		t.Fatalf("missing attachments must become empty list, got %v", m.Attachments)
	}
	if m.Moderation.Status != models.ModerationApproved {
		t.Fatalf("missing moderation must default to approved, got %q", m.Moderation.Status)
	}
}

func TestNormalizeDiscardsEntriesWithoutID(t *testing.T) {
	raws := decodeRaws(t, `[{"text":"no id"},{"id":null,"text":"null id"},{"id":"keep"}]`)
	got := Normalize(raws)
	if len(got) != 1 || got[0].ID != "keep" {
		t.Fatalf("entries without id must be discarded, got %v", got)
	}
}

func TestNormalizeTimestampFallbacks(t *testing.T) {
	raws := decodeRaws(t, `[
		{"id":"a","timestamp":"2025-03-01T10:00:00Z"},
		{"id":"b","created_at":"2025-03-01T11:00:00Z"},
		{"id":"c","createdAt":"2025-03-01T12:00:00Z"}
	]`)
	got := Normalize(raws)
	want := []time.Time{
		time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC),
		time.Date(2025, 3, 1, 11, 0, 0, 0, time.UTC),
		time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	for i, w := range want {
		if !got[i].Timestamp.Equal(w) {
			t.Fatalf("message %d: timestamp %v, want %v", i, got[i].Timestamp, w)
		}
	}
}

func TestNormalizeAuthorVariants(t *testing.T) {
	raws := decodeRaws(t, `[
		{"id":"a","author":{"id":12,"name":"Ada"}},
		{"id":"b","author":"bare name"},
		{"id":"c","author":{"id":"u9"}}
	]`)
	got := Normalize(raws)
	if got[0].Author.ID != "12" || got[0].Author.Name != "Ada" {
		t.Fatalf("object author: %+v", got[0].Author)
	}
	if got[1].Author.Name != "bare name" {
		t.Fatalf("string author: %+v", got[1].Author)
	}
	if got[2].Author.ID != "u9" || got[2].Author.Name != models.AuthorUnknown {
		t.Fatalf("nameless author: %+v", got[2].Author)
	}
}

func TestNormalizeAttachmentFallbacks(t *testing.T) {
	raws := decodeRaws(t, `[{
		"id":"m1",
		"attachments":[
			{"file_url":"https://cdn/x","file_size":42,"mime_type":"image/png"},
			{"id":"att2","url":"https://cdn/y","filename":"notes.txt"}
		]
	}]`)
	got := Normalize(raws)
	atts := got[0].Attachments
	if len(atts) != 2 {
		t.Fatalf("expected 2 attachments, got %d", len(atts))
	}
	if atts[0].ID != "m1-0" {
		t.Fatalf("missing attachment id must synthesize from message id, got %q", atts[0].ID)
	}
	if atts[0].URL != "https://cdn/x" || atts[0].MimeType != "image/png" {
		t.Fatalf("snake_case fields must map: %+v", atts[0])
	}
	if atts[0].Size == nil || *atts[0].Size != 42 {
		t.Fatalf("file_size must map to size: %+v", atts[0])
	}
	if atts[0].Filename != "Attachment 1" {
		t.Fatalf("missing filename fallback, got %q", atts[0].Filename)
	}
	if atts[1].ID != "att2" || atts[1].Filename != "notes.txt" {
		t.Fatalf("explicit fields must pass through: %+v", atts[1])
	}
	if atts[1].MimeType != "application/octet-stream" {
		t.Fatalf("missing mime fallback, got %q", atts[1].MimeType)
	}
}

func TestNormalizeDeletionAndModeration(t *testing.T) {
	raws := decodeRaws(t, `[{
		"id":"m1",
		"isDeleted":true,
		"deletedAt":"2025-03-01T10:00:00Z",
		"deletedBy":3,
		"moderation":{"status":"rejected","note":"spam","moderated_at":"2025-03-01T09:00:00Z","moderated_by":"mod"}
	}]`)
	got := Normalize(raws)
	m := got[0]
	if !m.IsDeleted || m.DeletedAt == nil || m.DeletedBy != "3" {
		t.Fatalf("deletion fields: %+v", m)
	}
	if m.Moderation.Status != models.ModerationRejected || m.Moderation.Note != "spam" {
		t.Fatalf("moderation fields: %+v", m.Moderation)
	}
	if m.Moderation.ModeratedAt == nil || m.Moderation.ModeratedBy != "mod" {
		t.Fatalf("snake_case moderation fields must map: %+v", m.Moderation)
	}
}
