package push

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

var (
	errMissingGroup = errors.New("missing group identifier")
	errMissingToken = errors.New("missing access token")
)

// BuildSocketURL derives the push-channel address for a group. The scheme
// maps http->ws and https->wss; an explicit ws/wss base passes through, and
// anything else defaults to ws. When the address is derived from the API
// base (no dedicated ws base) a trailing /api path segment is stripped.
func BuildSocketURL(apiBase, wsBase, groupID, token string) (string, error) {
	if groupID == "" {
		return "", errMissingGroup
	}
	if token == "" {
		return "", errMissingToken
	}

	base := wsBase
	fromAPI := false
	if base == "" {
		base = apiBase
		fromAPI = true
	}
	u, err := url.Parse(strings.TrimRight(base, "/"))
	if err != nil || u.Host == "" {
		return "", fmt.Errorf("invalid push base address %q", base)
	}

	scheme := u.Scheme
	switch scheme {
	case "http":
		scheme = "ws"
	case "https":
		scheme = "wss"
	case "ws", "wss":
	default:
		scheme = "ws"
	}

	pathBase := strings.TrimRight(u.Path, "/")
	if fromAPI {
		pathBase = strings.TrimSuffix(pathBase, "/api")
	}

	return fmt.Sprintf("%s://%s%s/ws/chat/groups/%s/?token=%s",
		scheme, u.Host, pathBase, url.PathEscape(groupID), url.QueryEscape(token)), nil
}
