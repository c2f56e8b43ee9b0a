package session

import "errors"

var (
	ErrConnectionFailed  = errors.New("connection to media server failed")
	ErrAttachFailed      = errors.New("plugin attach rejected")
	ErrNegotiationFailed = errors.New("media negotiation failed")
	ErrRoomUnavailable   = errors.New("invalid or expired room")
)
