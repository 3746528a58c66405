package observe

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"hubsync/pkg/models"
	"hubsync/pkg/session"
	"hubsync/pkg/utils"
)

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	ver := s.version
	if ver == "" {
		ver = "dev"
	}
	_ = utils.JSONWrite(w, http.StatusOK, map[string]string{"status": "ok", "version": ver})
}

func (s *Server) listGroups(w http.ResponseWriter, r *http.Request) {
	_ = utils.JSONWrite(w, http.StatusOK, map[string]any{"groups": s.store.Groups()})
}

func (s *Server) groupMessages(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if id == "" {
		utils.JSONError(w, http.StatusBadRequest, "group id missing")
		return
	}
	snap := s.store.Snapshot(id)
	msgs := snap.Messages
	// Optional tail limit: the newest n messages.
	if limStr := r.URL.Query().Get("limit"); limStr != "" {
		if lim, err := strconv.Atoi(limStr); err == nil && lim >= 0 && lim < len(msgs) {
			msgs = msgs[len(msgs)-lim:]
		}
	}
	_ = utils.JSONWrite(w, http.StatusOK, struct {
		Group    string           `json:"group"`
		Messages []models.Message `json:"messages"`
		HasMore  bool             `json:"hasMore"`
	}{Group: id, Messages: msgs, HasMore: snap.HasMore})
}

func (s *Server) groupStatus(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if id == "" {
		utils.JSONError(w, http.StatusBadRequest, "group id missing")
		return
	}
	snap := s.store.Snapshot(id)
	_ = utils.JSONWrite(w, http.StatusOK, struct {
		Group     string                 `json:"group"`
		State     models.ConnState       `json:"connectionState"`
		Live      bool                   `json:"live"`
		Loading   bool                   `json:"loading"`
		Sending   bool                   `json:"sending"`
		HasMore   bool                   `json:"hasMore"`
		Messages  int                    `json:"messageCount"`
		LastError string                 `json:"lastError,omitempty"`
		Uploads   []session.UploadRecord `json:"uploads"`
	}{
		Group:     id,
		State:     snap.ConnState,
		Live:      snap.ConnState.Live(),
		Loading:   snap.Loading,
		Sending:   snap.Sending,
		HasMore:   snap.HasMore,
		Messages:  len(snap.Messages),
		LastError: snap.LastError,
		Uploads:   s.store.Uploads(),
	})
}
