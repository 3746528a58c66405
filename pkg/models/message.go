package models

import "time"

// Moderation status values attached to a message.
const (
	ModerationApproved = "approved"
	ModerationPending  = "pending"
	ModerationRejected = "rejected"
)

// AuthorUnknown is the sentinel display name used when the backend omits
// the author name.
const AuthorUnknown = "Unknown"

type Author struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name"`
}

type Attachment struct {
	ID       string `json:"id"`
	URL      string `json:"url"`
	Filename string `json:"filename"`
	// Size in bytes; nil when the backend did not report one.
	Size     *int64 `json:"size"`
	MimeType string `json:"mimeType"`
}

type Moderation struct {
	Status      string     `json:"status"`
	Note        string     `json:"note,omitempty"`
	ModeratedAt *time.Time `json:"moderatedAt,omitempty"`
	ModeratedBy string     `json:"moderatedBy,omitempty"`
}

// Message is one entry of a group timeline. Identity is ID; uniqueness is
// enforced per group by the timeline merge.
type Message struct {
	ID          string       `json:"id"`
	Text        string       `json:"text"`
	Timestamp   time.Time    `json:"timestamp"`
	Author      Author       `json:"author"`
	Attachments []Attachment `json:"attachments"`
	IsDeleted   bool         `json:"isDeleted"`
	DeletedAt   *time.Time   `json:"deletedAt,omitempty"`
	DeletedBy   string       `json:"deletedBy,omitempty"`
	Moderation  Moderation   `json:"moderation"`
}

// AttachmentInput is the descriptor sent with an outgoing message; it is
// what UploadAttachment returns and what the send endpoint expects.
type AttachmentInput struct {
	URL      string `json:"url"`
	Filename string `json:"filename"`
	Size     *int64 `json:"size"`
	MimeType string `json:"mimeType"`
}
