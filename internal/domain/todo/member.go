package todo

// Roles a user may hold on a list.
const (
	RoleOwner  = "owner"
	RoleEditor = "editor"
	RoleViewer = "viewer"
)

// ValidRole reports whether r is a known membership role.
func ValidRole(r string) bool {
	switch r {
	case RoleOwner, RoleEditor, RoleViewer:
		return true
	}
	return false
}

// RoleCanEdit reports whether the role grants mutation rights.
func RoleCanEdit(r string) bool {
	return r == RoleOwner || r == RoleEditor
}

// Member is an access grant of one user on one list. (ListID, UserID) is
// unique; the list owner has a row with RoleOwner.
type Member struct {
	ListID    string `json:"list_id"`
	UserID    string `json:"user_id"`
	Role      string `json:"role"`
	CreatedAt string `json:"created_at,omitempty"`
}
