package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"hubsync/pkg/models"
	"hubsync/pkg/timeline"
)

// HistoryPage is one page of past messages, newest-first or oldest-first as
// the backend chooses; ordering is settled by the timeline merge.
type HistoryPage struct {
	Messages []timeline.Raw `json:"messages"`
	HasMore  bool           `json:"hasMore"`
}

// History fetches up to limit messages for a group, optionally only those
// older than the opaque before cursor.
func (c *Client) History(ctx context.Context, groupID string, limit int, before string) (*HistoryPage, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if before != "" {
		q.Set("before", before)
	}
	path := "/groups/" + url.PathEscape(groupID) + "/messages"
	if enc := q.Encode(); enc != "" {
		path += "?" + enc
	}

	var page HistoryPage
	if err := c.doJSON(ctx, http.MethodGet, path, nil, "", &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// SendBody is the outgoing message payload for the send endpoint.
type SendBody struct {
	Text        string                   `json:"text"`
	Attachments []models.AttachmentInput `json:"attachments"`
}

// SendMessage posts a new message to a group and returns the created
// message as the backend rendered it. Attachments with no mime type are
// sent as application/octet-stream.
func (c *Client) SendMessage(ctx context.Context, groupID string, body SendBody) (*timeline.Raw, error) {
	atts := make([]models.AttachmentInput, len(body.Attachments))
	for i, a := range body.Attachments {
		if a.MimeType == "" {
			a.MimeType = "application/octet-stream"
		}
		atts[i] = a
	}
	body.Attachments = atts
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal message: %w", err)
	}
	path := "/groups/" + url.PathEscape(groupID) + "/messages"

	var created timeline.Raw
	if err := c.doJSON(ctx, http.MethodPost, path, payload, "application/json", &created); err != nil {
		return nil, err
	}
	return &created, nil
}
