package todo

// Status values an item moves through.
const (
	StatusNotStarted = "not_started"
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
)

// ValidStatus reports whether s is a known item status.
func ValidStatus(s string) bool {
	switch s {
	case StatusNotStarted, StatusInProgress, StatusCompleted:
		return true
	}
	return false
}

// Item is a single todo entry. The JSON encoding is the wire format shared by
// the L2 items map, Pub/Sub messages, and WebSocket fan-out.
type Item struct {
	ID          string  `json:"id"`
	ListID      string  `json:"list_id"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Status      string  `json:"status"`
	Done        bool    `json:"done"`
	DueDate     *string `json:"due_date"`
	MediaURL    *string `json:"media_url"`
	CreatedAt   string  `json:"created_at"`
	UpdatedAt   string  `json:"updated_at"`
}

// ItemPatch carries a partial item update. Nil fields are left untouched.
type ItemPatch struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
	Status      *string `json:"status,omitempty"`
	Done        *bool   `json:"done,omitempty"`
	DueDate     *string `json:"due_date,omitempty"`
	MediaURL    *string `json:"media_url,omitempty"`
	UpdatedAt   string  `json:"updated_at,omitempty"`
}

// Merge returns a copy of it with the non-nil patch fields applied.
func (it Item) Merge(p ItemPatch) Item {
	if p.Name != nil {
		it.Name = *p.Name
	}
	if p.Description != nil {
		it.Description = *p.Description
	}
	if p.Status != nil {
		it.Status = *p.Status
	}
	if p.Done != nil {
		it.Done = *p.Done
	}
	if p.DueDate != nil {
		it.DueDate = p.DueDate
	}
	if p.MediaURL != nil {
		it.MediaURL = p.MediaURL
	}
	if p.UpdatedAt != "" {
		it.UpdatedAt = p.UpdatedAt
	}
	return it
}
