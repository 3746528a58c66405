package timeline

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"hubsync/pkg/models"
)

// Raw is the loose wire form of a message as delivered by the history
// endpoint, the send endpoint and push frames. Backends disagree on field
// spelling (snake_case vs camelCase) and on scalar types (numeric vs string
// ids), so every ambiguous field is captured here and settled in Normalize.
type Raw struct {
	ID          json.RawMessage `json:"id"`
	Text        string          `json:"text"`
	Timestamp   string          `json:"timestamp"`
	CreatedAt   string          `json:"created_at"`
	CreatedAtCC string          `json:"createdAt"`
	Author      json.RawMessage `json:"author"`
	Attachments []RawAttachment `json:"attachments"`
	IsDeleted   bool            `json:"isDeleted"`
	DeletedAt   string          `json:"deletedAt"`
	DeletedBy   json.RawMessage `json:"deletedBy"`
	Moderation  *RawModeration  `json:"moderation"`
}

type RawAttachment struct {
	ID       json.RawMessage `json:"id"`
	URL      string          `json:"url"`
	FileURL  string          `json:"file_url"`
	Filename string          `json:"filename"`
	Size     *int64          `json:"size"`
	FileSize *int64          `json:"file_size"`
	MimeType string          `json:"mimeType"`
	MimeSC   string          `json:"mime_type"`
}

type RawModeration struct {
	Status        string          `json:"status"`
	Note          string          `json:"note"`
	ModeratedAt   string          `json:"moderatedAt"`
	ModeratedAtSC string          `json:"moderated_at"`
	ModeratedBy   json.RawMessage `json:"moderatedBy"`
	ModeratedBySC json.RawMessage `json:"moderated_by"`
}

// Normalize converts raw wire messages into canonical ones, filling the
// documented defaults: missing timestamps become the current instant,
// missing author names become "Unknown", missing attachment lists become
// empty, missing moderation status becomes "approved". Entries without an
// id are discarded.
func Normalize(raws []Raw) []models.Message {
	out := make([]models.Message, 0, len(raws))
	for i := range raws {
		if m, ok := normalizeOne(&raws[i]); ok {
			out = append(out, m)
		}
	}
	return out
}

func normalizeOne(r *Raw) (models.Message, bool) {
	id := scalarString(r.ID)
	if id == "" {
		return models.Message{}, false
	}

	ts := parseTime(firstNonEmpty(r.Timestamp, r.CreatedAt, r.CreatedAtCC))
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	m := models.Message{
		ID:          id,
		Text:        r.Text,
		Timestamp:   ts,
		Author:      normalizeAuthor(r.Author),
		Attachments: normalizeAttachments(id, r.Attachments),
		IsDeleted:   r.IsDeleted,
		DeletedBy:   scalarString(r.DeletedBy),
		Moderation:  normalizeModeration(r.Moderation),
	}
	if t := parseTime(r.DeletedAt); !t.IsZero() {
		m.DeletedAt = &t
	}
	return m, true
}

func normalizeAuthor(raw json.RawMessage) models.Author {
	a := models.Author{Name: models.AuthorUnknown}
	if len(raw) == 0 || string(raw) == "null" {
		return a
	}
	// Either an object {id, name} or a bare display string.
	var obj struct {
		ID   json.RawMessage `json:"id"`
		Name string          `json:"name"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		a.ID = scalarString(obj.ID)
		if obj.Name != "" {
			a.Name = obj.Name
		}
		return a
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil && s != "" {
		a.Name = s
	}
	return a
}

func normalizeAttachments(msgID string, raws []RawAttachment) []models.Attachment {
	out := make([]models.Attachment, 0, len(raws))
	for i, ra := range raws {
		att := models.Attachment{
			ID:       scalarString(ra.ID),
			URL:      firstNonEmpty(ra.FileURL, ra.URL),
			Filename: ra.Filename,
			MimeType: firstNonEmpty(ra.MimeSC, ra.MimeType),
		}
		if att.ID == "" {
			att.ID = fmt.Sprintf("%s-%d", msgID, i)
		}
		if att.Filename == "" {
			att.Filename = fmt.Sprintf("Attachment %d", i+1)
		}
		if att.MimeType == "" {
			att.MimeType = "application/octet-stream"
		}
		if ra.FileSize != nil {
			att.Size = ra.FileSize
		} else {
			att.Size = ra.Size
		}
		out = append(out, att)
	}
	return out
}

func normalizeModeration(r *RawModeration) models.Moderation {
	m := models.Moderation{Status: models.ModerationApproved}
	if r == nil {
		return m
	}
	if r.Status != "" {
		m.Status = r.Status
	}
	m.Note = r.Note
	if t := parseTime(firstNonEmpty(r.ModeratedAt, r.ModeratedAtSC)); !t.IsZero() {
		m.ModeratedAt = &t
	}
	m.ModeratedBy = firstNonEmpty(scalarString(r.ModeratedBy), scalarString(r.ModeratedBySC))
	return m
}

// scalarString renders a JSON scalar (string or number) as its string form.
// Objects, arrays and null yield "".
func scalarString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "null" {
		return ""
	}
	if s[0] == '"' {
		var v string
		if err := json.Unmarshal(raw, &v); err != nil {
			return ""
		}
		return v
	}
	if s[0] == '{' || s[0] == '[' {
		return ""
	}
	return s
}

var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

func parseTime(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
