package session

// Status is the externally observable session state. It drives the UI only;
// no transition logic reads it back.
type Status int

const (
	StatusInitializing Status = iota
	StatusFetchingRoomInfo
	StatusConnectingToServer
	StatusAttachingPlugin
	StatusReadyToJoin
	StatusWaitingForHost
	StatusSharingActive
	StatusWatchingStream
	StatusConnectionFailed
	StatusRoomDestroyed
	StatusCleanedUp
)

func (s Status) String() string {
	switch s {
	case StatusInitializing:
		return "Initializing"
	case StatusFetchingRoomInfo:
		return "Fetching room info"
	case StatusConnectingToServer:
		return "Connecting to server"
	case StatusAttachingPlugin:
		return "Attaching plugin"
	case StatusReadyToJoin:
		return "Ready to join"
	case StatusWaitingForHost:
		return "Waiting for host"
	case StatusSharingActive:
		return "Sharing active"
	case StatusWatchingStream:
		return "Watching stream"
	case StatusConnectionFailed:
		return "Connection failed"
	case StatusRoomDestroyed:
		return "Room destroyed"
	case StatusCleanedUp:
		return "Cleaned up"
	default:
		return "Unknown"
	}
}

// NoticeLevel classifies user-facing notifications.
type NoticeLevel int

const (
	NoticeInfo NoticeLevel = iota
	NoticeWarning
	NoticeError
)

// Notice is a short-lived, auto-dismissing notification surfaced to the UI.
type Notice struct {
	Level   NoticeLevel
	Message string
}
