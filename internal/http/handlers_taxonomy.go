package http

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"ricevute/internal/core"
	"ricevute/internal/dialog"
	"ricevute/internal/taxonomy"
)

// containerPayload is the wire form of a container key.
type containerPayload struct {
	Kind    string `json:"kind"` // "group" or "ungrouped"
	GroupID int64  `json:"group_id,omitempty"`
}

func containerToPayload(key core.ContainerKey) containerPayload {
	if id, ok := key.GroupID(); ok {
		return containerPayload{Kind: "group", GroupID: id}
	}
	return containerPayload{Kind: "ungrouped"}
}

func (p containerPayload) toKey() (core.ContainerKey, error) {
	switch p.Kind {
	case "group":
		if p.GroupID <= 0 {
			return core.ContainerKey{}, fmt.Errorf("invalid group id %d", p.GroupID)
		}
		return core.GroupKey(p.GroupID), nil
	case "ungrouped", "":
		return core.Ungrouped, nil
	default:
		return core.ContainerKey{}, fmt.Errorf("unknown container kind %q", p.Kind)
	}
}

type itemPayload struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	DisplayOrder int    `json:"display_order"`
}

type groupPayload struct {
	ID           int64         `json:"id"`
	Name         string        `json:"name"`
	DisplayOrder int           `json:"display_order"`
	Items        []itemPayload `json:"items"`
}

type taxonomyPayload struct {
	Groups    []groupPayload `json:"groups"`
	Ungrouped []itemPayload  `json:"ungrouped"`
	Dirty     bool           `json:"dirty"`
	DragState string         `json:"drag_state"`
}

func itemsToPayload(items []core.Item) []itemPayload {
	out := make([]itemPayload, 0, len(items))
	for _, it := range items {
		out = append(out, itemPayload{ID: it.ID, Name: it.Name, DisplayOrder: it.DisplayOrder})
	}
	return out
}

func viewToPayload(view taxonomy.View, dirty bool, drag taxonomy.DragState) taxonomyPayload {
	p := taxonomyPayload{
		Groups:    make([]groupPayload, 0, len(view.Groups)),
		Ungrouped: itemsToPayload(view.ByContainer[core.Ungrouped]),
		Dirty:     dirty,
		DragState: drag.String(),
	}
	for _, g := range view.Groups {
		p.Groups = append(p.Groups, groupPayload{
			ID:           g.ID,
			Name:         g.Name,
			DisplayOrder: g.DisplayOrder,
			Items:        itemsToPayload(view.ByContainer[core.GroupKey(g.ID)]),
		})
	}
	return p
}

// statusForError maps service errors onto HTTP statuses.
func statusForError(err error) int {
	switch {
	case errors.Is(err, core.ErrEmptyName),
		errors.Is(err, core.ErrNameTooLong),
		errors.Is(err, core.ErrInvalidAmount),
		errors.Is(err, core.ErrEmptyDescription),
		errors.Is(err, core.ErrUnknownType):
		return http.StatusBadRequest
	case strings.Contains(err.Error(), "not found"):
		return http.StatusNotFound
	case strings.Contains(err.Error(), "invalid month"):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) handleTaxonomy(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, viewToPayload(s.session.View(), s.session.Dirty(), s.session.DragState()))
}

func (s *Server) handleCreateGroup(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req struct {
		Name string `json:"name"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	g, err := s.session.CreateGroup(r.Context(), sanitizeInput(req.Name))
	if err != nil {
		writeError(w, statusForError(err), err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, groupPayload{ID: g.ID, Name: g.Name, DisplayOrder: g.DisplayOrder, Items: []itemPayload{}})
}

func (s *Server) handleRenameGroup(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req struct {
		ID   int64  `json:"id"`
		Name string `json:"name"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.session.RenameGroup(r.Context(), req.ID, sanitizeInput(req.Name)); err != nil {
		writeError(w, statusForError(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "renamed"})
}

// handleDeleteGroup opens a confirmation dialog instead of deleting right
// away. The delete runs when the dialog is confirmed via /api/confirm.
func (s *Server) handleDeleteGroup(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req struct {
		ID int64 `json:"id"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	name, ok := s.groupName(req.ID)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("group %d not found", req.ID))
		return
	}
	id := req.ID
	s.requestConfirmation(w,
		fmt.Sprintf("Eliminare il gruppo %q? I suoi tipi diventeranno senza gruppo.", name),
		func(ctx context.Context) error {
			return s.session.DeleteGroup(ctx, id)
		})
}

func (s *Server) handleCreateItem(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req struct {
		Name      string           `json:"name"`
		Container containerPayload `json:"container"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	key, err := req.Container.toKey()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	it, err := s.session.CreateItem(r.Context(), sanitizeInput(req.Name), key)
	if err != nil {
		writeError(w, statusForError(err), err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, struct {
		itemPayload
		Container containerPayload `json:"container"`
	}{
		itemPayload: itemPayload{ID: it.ID, Name: it.Name, DisplayOrder: it.DisplayOrder},
		Container:   containerToPayload(it.Container),
	})
}

func (s *Server) handleRenameItem(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req struct {
		ID   int64  `json:"id"`
		Name string `json:"name"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.session.RenameItem(r.Context(), req.ID, sanitizeInput(req.Name)); err != nil {
		writeError(w, statusForError(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "renamed"})
}

func (s *Server) handleDeleteItem(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req struct {
		ID int64 `json:"id"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	name, ok := s.itemName(req.ID)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("item %d not found", req.ID))
		return
	}
	id := req.ID
	s.requestConfirmation(w,
		fmt.Sprintf("Eliminare il tipo %q?", name),
		func(ctx context.Context) error {
			return s.session.DeleteItem(ctx, id)
		})
}

func (s *Server) handleDragStart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req nodeRefPayload
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	ref, err := req.toNodeRef()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.session.BeginDrag(ref); err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"drag_state": s.session.DragState().String()})
}

// dropTargetPayload is the wire form of a resolved hover highlight.
type dropTargetPayload struct {
	Container containerPayload `json:"container"`
	Index     int              `json:"index"`
	GroupSlot int              `json:"group_slot"`
}

func (s *Server) handleDragHover(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req nodeRefPayload
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	ref, err := req.toNodeRef()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	target, valid, err := s.session.HoverDrag(ref)
	if err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	resp := struct {
		Valid  bool               `json:"valid"`
		Target *dropTargetPayload `json:"target,omitempty"`
	}{Valid: valid}
	if valid {
		resp.Target = &dropTargetPayload{
			Container: containerToPayload(target.Container),
			Index:     target.Index,
			GroupSlot: target.GroupSlot,
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleDragDrop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	moved, err := s.session.Drop()
	if err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Moved bool `json:"moved"`
		Dirty bool `json:"dirty"`
	}{Moved: moved, Dirty: s.session.Dirty()})
}

func (s *Server) handleDragCancel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	s.session.CancelDrag()
	writeJSON(w, http.StatusOK, map[string]string{"drag_state": s.session.DragState().String()})
}

func (s *Server) handleSave(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	res, err := s.session.Save(r.Context())
	if err != nil {
		slog.ErrorContext(r.Context(), "Taxonomy save failed", "error", err)
		writeError(w, http.StatusBadGateway, "save failed, changes kept locally")
		return
	}
	s.accessLog.LogTaxonomySaved(r.Context(), res.GroupsUpdated, res.ItemsUpdated, len(res.Errors))
	writeJSON(w, http.StatusOK, struct {
		taxonomy.SaveResult
		Dirty bool `json:"dirty"`
	}{SaveResult: res, Dirty: s.session.Dirty()})
}

func (s *Server) handleDiscard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if err := s.session.Discard(r.Context()); err != nil {
		writeError(w, http.StatusBadGateway, "discard failed")
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Dirty bool `json:"dirty"`
	}{Dirty: s.session.Dirty()})
}

// requestConfirmation opens a dialog for a destructive action and parks the
// action until /api/confirm resolves the token.
func (s *Server) requestConfirmation(w http.ResponseWriter, prompt string, run func(context.Context) error) {
	pending := s.dialogs.Request(prompt)
	s.confirmMu.Lock()
	s.pendingConfirm[pending.Token] = confirmAction{pending: pending, run: run, created: time.Now()}
	s.confirmMu.Unlock()
	writeJSON(w, http.StatusAccepted, struct {
		Token  string `json:"token"`
		Prompt string `json:"prompt"`
	}{Token: pending.Token, Prompt: pending.Prompt})
}

func (s *Server) handleConfirm(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req struct {
		Token     string `json:"token"`
		Confirmed bool   `json:"confirmed"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.dialogs.Resolve(req.Token, req.Confirmed); err != nil {
		writeError(w, http.StatusNotFound, "unknown or already resolved dialog")
		return
	}
	s.confirmMu.Lock()
	action, ok := s.pendingConfirm[req.Token]
	delete(s.pendingConfirm, req.Token)
	s.confirmMu.Unlock()
	if !ok {
		writeError(w, http.StatusNotFound, "unknown or already resolved dialog")
		return
	}

	// The parked action acts on the answer the broker delivered for this
	// token, consumed from the pending handle rather than re-read from the
	// request body.
	confirmed, err := dialog.Await(r.Context(), action.pending)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "dialog resolution lost")
		return
	}
	if !confirmed {
		writeJSON(w, http.StatusOK, map[string]string{"status": "declined"})
		return
	}
	if err := action.run(r.Context()); err != nil {
		writeError(w, statusForError(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "confirmed"})
}

func (s *Server) groupName(id int64) (string, bool) {
	for _, g := range s.session.View().Groups {
		if g.ID == id {
			return g.Name, true
		}
	}
	return "", false
}

func (s *Server) itemName(id int64) (string, bool) {
	view := s.session.View()
	for _, items := range view.ByContainer {
		for _, it := range items {
			if it.ID == id {
				return it.Name, true
			}
		}
	}
	return "", false
}
