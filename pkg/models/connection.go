package models

// ConnState tracks the push-channel lifecycle for one group. Exactly one
// value applies to a group at any time.
type ConnState string

const (
	ConnIdle       ConnState = "idle"
	ConnConnecting ConnState = "connecting"
	ConnOpen       ConnState = "open"
	ConnClosed     ConnState = "closed"
	ConnError      ConnState = "error"
)

// Live reports whether a connection attempt is underway or established;
// Connect is a no-op while Live holds.
func (s ConnState) Live() bool {
	return s == ConnConnecting || s == ConnOpen
}

// Push frame types recognized by the connection manager. Anything else is
// dropped silently for forward compatibility.
const (
	FrameConnectionEstablished = "connection.established"
	FrameError                 = "error"
	FrameMessageCreated        = "message.created"
	FrameMessageUpdated        = "message.updated"
	FrameMessageDeleted        = "message.deleted"
)

// Upload record states kept in the per-group upload map.
const (
	UploadStatusUploading = "uploading"
	UploadStatusDone      = "done"
	UploadStatusError     = "error"
)
