package todo

// List is a todo list row. Soft-deleted rows keep their ID but are invisible
// to every read path.
type List struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	OwnerID   string `json:"owner_id"`
	IsDeleted bool   `json:"is_deleted,omitempty"`
	CreatedAt string `json:"created_at,omitempty"`
	UpdatedAt string `json:"updated_at,omitempty"`
}

// ListPatch carries a partial list update. Nil fields are left untouched.
type ListPatch struct {
	Name      *string `json:"name,omitempty"`
	UpdatedAt string  `json:"updated_at,omitempty"`
}

// ListState is a full materialized list as held in the L1 cache and returned
// by snapshot loads. Rev mirrors the last revision minted by Redis.
type ListState struct {
	ListID   string          `json:"list_id"`
	ListName string          `json:"list_name"`
	OwnerID  string          `json:"owner_id"`
	Rev      float64         `json:"rev"`
	Items    map[string]Item `json:"items"`
}

// Clone returns a deep copy; the items map is never shared.
func (s ListState) Clone() ListState {
	items := make(map[string]Item, len(s.Items))
	for id, it := range s.Items {
		items[id] = it
	}
	s.Items = items
	return s
}
