package session

import (
	"context"

	"hubsync/pkg/logger"
	"hubsync/pkg/models"
	"hubsync/pkg/telemetry"
	"hubsync/pkg/timeline"
)

// FetchOptions shapes one history request. Zero value means the newest
// page at the configured size, replacing the current timeline.
type FetchOptions struct {
	// Before is the pagination cursor; messages strictly older than it are
	// returned. Empty fetches the newest page.
	Before string
	// Limit caps the page size; zero uses the configured default.
	Limit int
	// Append merges the page into the existing timeline instead of
	// replacing it. Used when walking backwards through history.
	Append bool
}

// FetchMessages loads one page of history for the group and merges it into
// the session timeline. While a fetch for the group is in flight further
// calls return the current timeline without issuing a request. The push
// channel is (re)ensured as a side effect so a read always implies a
// subscription.
func (st *Store) FetchMessages(ctx context.Context, groupID string, opts FetchOptions) ([]models.Message, error) {
	if groupID == "" {
		return nil, ErrMissingGroup
	}
	st.Connect(groupID)

	st.mu.Lock()
	s := st.ensureLocked(groupID)
	if s.loading {
		cached := append([]models.Message{}, s.timeline...)
		st.mu.Unlock()
		telemetry.HistoryFetches.WithLabelValues("deduped").Inc()
		return cached, nil
	}
	s.loading = true
	s.lastErr = nil
	st.mu.Unlock()
	st.notify(groupID)

	limit := opts.Limit
	if limit <= 0 {
		limit = st.pageSize
	}

	page, err := st.api.History(ctx, groupID, limit, opts.Before)
	if err != nil {
		st.mu.Lock()
		s.loading = false
		s.lastErr = err
		st.mu.Unlock()
		st.notify(groupID)
		telemetry.HistoryFetches.WithLabelValues("error").Inc()
		logger.Error("history_fetch_failed", "group", groupID, "error", err)
		return nil, err
	}

	incoming := timeline.Normalize(page.Messages)
	mode := timeline.Replace
	if opts.Append {
		// Older pages land before what we already hold; the merge sort
		// settles the final order.
		mode = timeline.Prepend
	}

	st.mu.Lock()
	s.timeline = timeline.Merge(s.timeline, incoming, mode)
	s.hasMore = page.HasMore
	s.loading = false
	merged := append([]models.Message{}, s.timeline...)
	st.mu.Unlock()
	st.notify(groupID)

	telemetry.HistoryFetches.WithLabelValues("ok").Inc()
	telemetry.Merges.WithLabelValues(string(mode)).Inc()
	logger.Debug("history_fetched", "group", groupID, "page", len(incoming), "total", len(merged), "has_more", page.HasMore)
	return merged, nil
}

// HasMore reports whether older history remains beyond the oldest loaded
// message for the group.
func (st *Store) HasMore(groupID string) bool {
	st.mu.Lock()
	defer st.mu.Unlock()
	if s := st.groups[groupID]; s != nil {
		return s.hasMore
	}
	return false
}
