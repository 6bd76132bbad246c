package ws

import (
	"context"
	"encoding/json"

	"github.com/syncboard/collab-server/internal/domain/todo"
	"github.com/syncboard/collab-server/internal/service"
)

// Services bundles what the event handlers call into.
type Services struct {
	Items       *service.ItemService
	Lists       *service.ListService
	Permissions *service.PermissionService
}

// validated is implemented by every inbound payload.
type validated interface {
	Validate() error
}

// decode parses and validates an inbound payload. Failures reach the socket
// as an error event with the validation message.
func decode[P validated](d *Dispatcher, sid string, data []byte, p P) bool {
	if err := json.Unmarshal(data, p); err != nil {
		d.hub.ToSocket(sid, todo.EventError, errorPayload{Message: "Malformed payload"})
		return false
	}
	if err := p.Validate(); err != nil {
		d.hub.ToSocket(sid, todo.EventError, errorPayload{Message: err.Error()})
		return false
	}
	return true
}

// RegisterHandlers wires the event routes onto the dispatcher.
func RegisterHandlers(d *Dispatcher, svc Services) {
	d.Handle(todo.EventJoin, func(ctx context.Context, sid, userID string, _ []byte) error {
		_, err := svc.Lists.JoinAllListRooms(ctx, sid, userID)
		return err
	})

	d.Handle(todo.EventJoinList, func(ctx context.Context, sid, userID string, data []byte) error {
		var p JoinListPayload
		if !decode(d, sid, data, &p) {
			return nil
		}
		if err := svc.Permissions.RequireViewPermission(ctx, p.ListID, userID); err != nil {
			return err
		}
		return svc.Lists.JoinListRoom(ctx, sid, p.ListID)
	})

	d.Handle(todo.EventCreateList, func(ctx context.Context, sid, userID string, data []byte) error {
		var p CreateListPayload
		if !decode(d, sid, data, &p) {
			return nil
		}
		_, err := svc.Lists.CreateList(ctx, sid, userID, p.ListName)
		return err
	})

	d.Handle(todo.EventAddItem, func(ctx context.Context, sid, userID string, data []byte) error {
		var p AddItemPayload
		if !decode(d, sid, data, &p) {
			return nil
		}
		if err := svc.Permissions.RequireEditPermission(ctx, p.ListID, userID); err != nil {
			return err
		}
		_, err := svc.Items.AddItem(ctx, userID, service.AddItemInput{
			ListID:      p.ListID,
			Name:        p.Name,
			Description: p.Description,
			Status:      p.Status,
			Done:        p.Done,
			DueDate:     p.DueDate,
			MediaURL:    p.MediaURL,
		})
		return err
	})

	d.Handle(todo.EventUpdateItem, func(ctx context.Context, sid, userID string, data []byte) error {
		var p UpdateItemPayload
		if !decode(d, sid, data, &p) {
			return nil
		}
		if err := svc.Permissions.RequireEditPermission(ctx, p.ListID, userID); err != nil {
			return err
		}
		return svc.Items.UpdateItem(ctx, sid, userID, service.UpdateItemInput{
			ListID:    p.ListID,
			ItemID:    p.ItemID,
			Patch:     p.Patch(),
			ClientRev: p.Rev,
		})
	})

	d.Handle(todo.EventDeleteItem, func(ctx context.Context, sid, userID string, data []byte) error {
		var p DeleteItemPayload
		if !decode(d, sid, data, &p) {
			return nil
		}
		if err := svc.Permissions.RequireEditPermission(ctx, p.ListID, userID); err != nil {
			return err
		}
		return svc.Items.DeleteItem(ctx, userID, p.ListID, p.ItemID)
	})

	d.Handle(todo.EventShareList, func(ctx context.Context, sid, userID string, data []byte) error {
		var p ShareListPayload
		if !decode(d, sid, data, &p) {
			return nil
		}
		return svc.Lists.ShareList(ctx, sid, userID, p.ListID, p.SharedUserID, p.Role)
	})
}
