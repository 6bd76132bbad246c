package ws

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/syncboard/collab-server/internal/domain/todo"
)

// Frame is the wire envelope: an event name plus its JSON payload.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

func encodeFrame(event string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", event, err)
	}
	return json.Marshal(Frame{Event: event, Data: data})
}

// errorPayload is the body of error/action_error/permission_error/auth_error.
type errorPayload struct {
	Message string `json:"message"`
}

// --- inbound payloads ---

type AddItemPayload struct {
	ListID      string  `json:"list_id"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Status      string  `json:"status"`
	Done        bool    `json:"done"`
	DueDate     *string `json:"due_date"`
	MediaURL    *string `json:"media_url"`
}

func (p *AddItemPayload) Validate() error {
	if p.ListID == "" {
		return errors.New("list_id is required")
	}
	if n := len(p.Name); n < 1 || n > 255 {
		return errors.New("name must be 1-255 characters")
	}
	if len(p.Description) > 2000 {
		return errors.New("description must be at most 2000 characters")
	}
	if p.Status == "" {
		p.Status = todo.StatusNotStarted
	}
	if !todo.ValidStatus(p.Status) {
		return fmt.Errorf("invalid status %q", p.Status)
	}
	return nil
}

type UpdateItemPayload struct {
	ListID      string  `json:"list_id"`
	ItemID      string  `json:"item_id"`
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Status      *string `json:"status"`
	Done        *bool   `json:"done"`
	DueDate     *string `json:"due_date"`
	MediaURL    *string `json:"media_url"`
	Rev         float64 `json:"rev"` // client's last-known list revision
}

func (p *UpdateItemPayload) Validate() error {
	if p.ListID == "" {
		return errors.New("list_id is required")
	}
	if p.ItemID == "" {
		return errors.New("item_id is required")
	}
	if p.Name != nil && (len(*p.Name) < 1 || len(*p.Name) > 255) {
		return errors.New("name must be 1-255 characters")
	}
	if p.Description != nil && len(*p.Description) > 2000 {
		return errors.New("description must be at most 2000 characters")
	}
	if p.Status != nil && !todo.ValidStatus(*p.Status) {
		return fmt.Errorf("invalid status %q", *p.Status)
	}
	return nil
}

// Patch maps the optional fields onto an item patch.
func (p *UpdateItemPayload) Patch() todo.ItemPatch {
	return todo.ItemPatch{
		Name:        p.Name,
		Description: p.Description,
		Status:      p.Status,
		Done:        p.Done,
		DueDate:     p.DueDate,
		MediaURL:    p.MediaURL,
	}
}

type DeleteItemPayload struct {
	ListID string `json:"list_id"`
	ItemID string `json:"item_id"`
}

func (p *DeleteItemPayload) Validate() error {
	if p.ListID == "" {
		return errors.New("list_id is required")
	}
	if p.ItemID == "" {
		return errors.New("item_id is required")
	}
	return nil
}

type CreateListPayload struct {
	ListName string `json:"list_name"`
}

func (p *CreateListPayload) Validate() error { return nil }

type JoinListPayload struct {
	ListID string `json:"list_id"`
}

func (p *JoinListPayload) Validate() error {
	if p.ListID == "" {
		return errors.New("list_id is required")
	}
	return nil
}

type ShareListPayload struct {
	ListID       string `json:"list_id"`
	OwnerUserID  string `json:"owner_user_id"`
	SharedUserID string `json:"shared_user_id"`
	Role         string `json:"role"`
}

func (p *ShareListPayload) Validate() error {
	if p.ListID == "" {
		return errors.New("list_id is required")
	}
	if p.SharedUserID == "" {
		return errors.New("shared_user_id is required")
	}
	if !todo.ValidRole(p.Role) {
		return fmt.Errorf("invalid role %q", p.Role)
	}
	return nil
}
