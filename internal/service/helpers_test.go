package service

import (
	"context"
	"sync"

	"github.com/syncboard/collab-server/internal/domain/todo"
)

// fakeCoordinator is an in-memory stand-in for the engine coordinator. Every
// mutation bumps the revision by one.
type fakeCoordinator struct {
	mu    sync.Mutex
	lists map[string]*todo.ListState
	calls []string
}

func newFakeCoordinator() *fakeCoordinator {
	return &fakeCoordinator{lists: make(map[string]*todo.ListState)}
}

func (f *fakeCoordinator) seed(listID string, rev float64, items map[string]todo.Item) {
	if items == nil {
		items = map[string]todo.Item{}
	}
	f.lists[listID] = &todo.ListState{ListID: listID, Rev: rev, Items: items}
}

func (f *fakeCoordinator) record(call string) {
	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.mu.Unlock()
}

func (f *fakeCoordinator) LoadList(_ context.Context, listID string) (todo.ListState, error) {
	st, ok := f.lists[listID]
	if !ok {
		return todo.ListState{}, todo.ErrListNotFound
	}
	return *st, nil
}

func (f *fakeCoordinator) GetItem(_ context.Context, listID, itemID string) (*todo.Item, float64, error) {
	st, ok := f.lists[listID]
	if !ok {
		return nil, 0, todo.ErrListNotFound
	}
	if it, ok := st.Items[itemID]; ok {
		return &it, st.Rev, nil
	}
	return nil, st.Rev, nil
}

func (f *fakeCoordinator) AddItem(_ context.Context, listID, itemID string, item todo.Item) (float64, error) {
	f.record("add:" + itemID)
	st, ok := f.lists[listID]
	if !ok {
		return 0, todo.ErrListNotFound
	}
	st.Items[itemID] = item
	st.Rev++
	return st.Rev, nil
}

func (f *fakeCoordinator) UpdateItem(_ context.Context, listID, itemID string, item todo.Item) (float64, error) {
	f.record("update:" + itemID)
	st, ok := f.lists[listID]
	if !ok {
		return 0, todo.ErrListNotFound
	}
	if _, ok := st.Items[itemID]; !ok {
		return 0, todo.ErrItemNotFound
	}
	st.Items[itemID] = item
	st.Rev++
	return st.Rev, nil
}

func (f *fakeCoordinator) DeleteItem(_ context.Context, listID, itemID string) (float64, error) {
	f.record("delete:" + itemID)
	st, ok := f.lists[listID]
	if !ok {
		return 0, todo.ErrListNotFound
	}
	if _, ok := st.Items[itemID]; !ok {
		return 0, todo.ErrItemNotFound
	}
	delete(st.Items, itemID)
	st.Rev++
	return st.Rev, nil
}

func (f *fakeCoordinator) InitList(_ context.Context, listID, name, ownerID string) (float64, error) {
	f.record("init:" + listID)
	f.lists[listID] = &todo.ListState{
		ListID: listID, ListName: name, OwnerID: ownerID, Rev: 1,
		Items: map[string]todo.Item{},
	}
	return 1, nil
}

// fakeEmitter records socket emissions.
type emission struct {
	target string // sid or room
	event  string
	data   any
}

type fakeEmitter struct {
	mu      sync.Mutex
	sockets []emission
	rooms   []emission
	joins   []string // "sid room"
}

func (f *fakeEmitter) ToSocket(sid, event string, payload any) {
	f.mu.Lock()
	f.sockets = append(f.sockets, emission{target: sid, event: event, data: payload})
	f.mu.Unlock()
}

func (f *fakeEmitter) ToRoom(room, event string, payload any) {
	f.mu.Lock()
	f.rooms = append(f.rooms, emission{target: room, event: event, data: payload})
	f.mu.Unlock()
}

func (f *fakeEmitter) Join(sid, room string) {
	f.mu.Lock()
	f.joins = append(f.joins, sid+" "+room)
	f.mu.Unlock()
}

func (f *fakeEmitter) socketEvents(sid string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, e := range f.sockets {
		if e.target == sid {
			out = append(out, e.event)
		}
	}
	return out
}

func (f *fakeEmitter) roomEvents(room string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, e := range f.rooms {
		if e.target == room {
			out = append(out, e.event)
		}
	}
	return out
}

// fakeQueue records write-behind enqueues.
type queued struct {
	op   string
	data any
}

type fakeQueue struct {
	mu    sync.Mutex
	tasks []queued
}

func (f *fakeQueue) Enqueue(op string, data any) {
	f.mu.Lock()
	f.tasks = append(f.tasks, queued{op: op, data: data})
	f.mu.Unlock()
}

func (f *fakeQueue) ops() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, t := range f.tasks {
		out = append(out, t.op)
	}
	return out
}

// fakeMembers backs the permission service.
type fakeMembers struct {
	grants map[string]string // listID+"/"+userID -> role
}

func (f *fakeMembers) GetMember(_ context.Context, listID, userID string) (*todo.Member, error) {
	role, ok := f.grants[listID+"/"+userID]
	if !ok {
		return nil, nil
	}
	return &todo.Member{ListID: listID, UserID: userID, Role: role}, nil
}

// fakeListStore backs the list service reads.
type fakeListStore struct {
	lists  map[string]todo.List
	owned  map[string][]todo.List
	shared map[string][]todo.List
}

func (f *fakeListStore) GetList(_ context.Context, listID string) (todo.List, error) {
	l, ok := f.lists[listID]
	if !ok {
		return todo.List{}, todo.ErrListNotFound
	}
	return l, nil
}

func (f *fakeListStore) AccessibleLists(_ context.Context, userID string) ([]todo.List, []todo.List, error) {
	return f.owned[userID], f.shared[userID], nil
}
