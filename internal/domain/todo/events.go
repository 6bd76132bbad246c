package todo

import "encoding/json"

// WebSocket event names, shared with the browser client.
const (
	// Inbound (client → server).
	EventJoin       = "join"
	EventJoinList   = "join_list"
	EventCreateList = "create_list"
	EventAddItem    = "add_item"
	EventUpdateItem = "update_item"
	EventDeleteItem = "delete_item"
	EventShareList  = "share_list"

	// Outbound (server → client).
	EventListSnapshot      = "list_snapshot"
	EventListSynced        = "list_synced"
	EventListCreated       = "list_created"
	EventListShareSuccess  = "list_share_success"
	EventListSharedWithYou = "list_shared_with_you"

	// Fan-out, also the Pub/Sub message types.
	EventItemAdded   = "item_added"
	EventItemUpdated = "item_updated"
	EventItemDeleted = "item_deleted"

	// Errors.
	EventError           = "error"
	EventActionError     = "action_error"
	EventPermissionError = "permission_error"
	EventAuthError       = "auth_error"
)

// Event is the message published on the todo:updates channel by the mutation
// scripts and replayed to WebSocket rooms verbatim.
type Event struct {
	Type   string  `json:"type"`
	ListID string  `json:"list_id"`
	Rev    float64 `json:"rev"`
	Item   *Item   `json:"item,omitempty"`
	ItemID string  `json:"item_id,omitempty"`
}

// DecodeEvent parses a raw Pub/Sub payload.
func DecodeEvent(raw []byte) (Event, error) {
	var ev Event
	if err := json.Unmarshal(raw, &ev); err != nil {
		return Event{}, err
	}
	return ev, nil
}

// UserRoom names the personal room that receives user-targeted notifications
// such as list_shared_with_you. List rooms are named by the bare list ID.
func UserRoom(userID string) string { return "user_" + userID }
