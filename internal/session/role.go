package session

// Role is the participant role for the lifetime of one session. It is
// resolved once and never changes, even if the stored token is cleared later.
type Role string

const (
	RoleHost   Role = "host"
	RoleViewer Role = "viewer"
)

// ResolveRole determines the session role from the two reinforcing signals:
// an explicit role argument and local possession of the room's host token.
func ResolveRole(explicit string, hasHostToken bool) Role {
	if explicit == string(RoleHost) || hasHostToken {
		return RoleHost
	}
	return RoleViewer
}

// Display is the participant name announced to the relay room.
func (r Role) Display() string {
	if r == RoleHost {
		return "Host"
	}
	return "Viewer"
}
