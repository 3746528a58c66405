package session

import (
	"context"
	"fmt"

	"hubsync/pkg/logger"
	"hubsync/pkg/models"
	"hubsync/pkg/telemetry"
	"hubsync/pkg/timeline"
	"hubsync/pkg/transport"
)

// SendMessage posts a message to the group and append-merges the backend's
// rendering of it into the timeline. At most one send per group is in
// flight; a second call while one is pending fails with ErrSendBusy without
// touching the network. Nothing is inserted optimistically: the timeline
// only ever reflects what the backend confirmed.
func (st *Store) SendMessage(ctx context.Context, groupID, text string, attachments []models.AttachmentInput) (*models.Message, error) {
	if groupID == "" {
		return nil, ErrMissingGroup
	}

	st.mu.Lock()
	s := st.ensureLocked(groupID)
	if s.sending {
		st.mu.Unlock()
		telemetry.Sends.WithLabelValues("busy").Inc()
		return nil, ErrSendBusy
	}
	s.sending = true
	st.mu.Unlock()
	st.notify(groupID)

	defer func() {
		st.mu.Lock()
		s.sending = false
		st.mu.Unlock()
		st.notify(groupID)
	}()

	created, err := st.api.SendMessage(ctx, groupID, transport.SendBody{
		Text:        text,
		Attachments: attachments,
	})
	if err != nil {
		telemetry.Sends.WithLabelValues("error").Inc()
		logger.Error("send_failed", "group", groupID, "error", err)
		return nil, err
	}

	msgs := timeline.Normalize([]timeline.Raw{*created})
	if len(msgs) == 0 {
		telemetry.Sends.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("send response missing message id")
	}

	st.mu.Lock()
	s.timeline = timeline.Merge(s.timeline, msgs, timeline.Append)
	st.mu.Unlock()
	st.notify(groupID)

	telemetry.Sends.WithLabelValues("ok").Inc()
	telemetry.Merges.WithLabelValues(string(timeline.Append)).Inc()
	logger.Debug("message_sent", "group", groupID, "id", msgs[0].ID)
	out := msgs[0]
	return &out, nil
}
