package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"ricevute/internal/backend/memory"
	"ricevute/internal/services"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()

	store := memory.NewSeeded(map[string][]string{
		"Casa":      {"Bollette", "Mutuo"},
		"Trasporti": {"Benzina"},
	}, []string{"Varie"})

	session, err := services.NewTaxonomySession(context.Background(), store, nil)
	if err != nil {
		t.Fatalf("new taxonomy session: %v", err)
	}
	srv := NewServer(":0", session, services.NewReceiptService(store), 5*time.Minute)
	t.Cleanup(srv.Stop)
	return srv
}

func doJSON(t *testing.T, srv *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, req)
	return rec
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(dst); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func getTaxonomy(t *testing.T, srv *Server) taxonomyPayload {
	t.Helper()
	rec := doJSON(t, srv, http.MethodGet, "/api/taxonomy", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /api/taxonomy status = %d, want 200", rec.Code)
	}
	var p taxonomyPayload
	decodeResponse(t, rec, &p)
	return p
}

func TestGetTaxonomy(t *testing.T) {
	srv := newTestServer(t)

	p := getTaxonomy(t, srv)
	if len(p.Groups) != 2 {
		t.Fatalf("groups = %d, want 2", len(p.Groups))
	}
	if p.Groups[0].Name != "Casa" || p.Groups[1].Name != "Trasporti" {
		t.Errorf("group order = %q, %q; want Casa, Trasporti", p.Groups[0].Name, p.Groups[1].Name)
	}
	if got := len(p.Groups[0].Items); got != 2 {
		t.Errorf("Casa items = %d, want 2", got)
	}
	if len(p.Ungrouped) != 1 || p.Ungrouped[0].Name != "Varie" {
		t.Errorf("ungrouped = %+v, want [Varie]", p.Ungrouped)
	}
	if p.Dirty {
		t.Error("fresh session reports dirty")
	}
	if p.DragState != "idle" {
		t.Errorf("drag_state = %q, want idle", p.DragState)
	}
}

func TestCreateAndRenameGroup(t *testing.T) {
	srv := newTestServer(t)

	rec := doJSON(t, srv, http.MethodPost, "/api/groups", map[string]string{"name": "Svago"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create group status = %d, want 201: %s", rec.Code, rec.Body.String())
	}
	var created groupPayload
	decodeResponse(t, rec, &created)
	if created.Name != "Svago" || created.DisplayOrder != 2 {
		t.Errorf("created = %+v, want Svago at order 2", created)
	}

	rec = doJSON(t, srv, http.MethodPost, "/api/groups/rename", map[string]any{"id": created.ID, "name": "Tempo libero"})
	if rec.Code != http.StatusOK {
		t.Fatalf("rename group status = %d, want 200: %s", rec.Code, rec.Body.String())
	}

	p := getTaxonomy(t, srv)
	if p.Groups[2].Name != "Tempo libero" {
		t.Errorf("renamed group = %q, want Tempo libero", p.Groups[2].Name)
	}
	if p.Dirty {
		t.Error("write-through edits must not leave the session dirty")
	}
}

func TestCreateGroupRejectsEmptyName(t *testing.T) {
	srv := newTestServer(t)

	rec := doJSON(t, srv, http.MethodPost, "/api/groups", map[string]string{"name": "   "})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestCreateItemInGroupAndUngrouped(t *testing.T) {
	srv := newTestServer(t)

	p := getTaxonomy(t, srv)
	casaID := p.Groups[0].ID

	rec := doJSON(t, srv, http.MethodPost, "/api/items", map[string]any{
		"name":      "Condominio",
		"container": map[string]any{"kind": "group", "group_id": casaID},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create item status = %d, want 201: %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, srv, http.MethodPost, "/api/items", map[string]any{
		"name":      "Imprevisti",
		"container": map[string]any{"kind": "ungrouped"},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create ungrouped item status = %d, want 201: %s", rec.Code, rec.Body.String())
	}

	p = getTaxonomy(t, srv)
	if got := len(p.Groups[0].Items); got != 3 {
		t.Errorf("Casa items = %d, want 3", got)
	}
	if got := len(p.Ungrouped); got != 2 {
		t.Errorf("ungrouped items = %d, want 2", got)
	}
	// New items append at the end of their container
	if last := p.Groups[0].Items[2]; last.Name != "Condominio" || last.DisplayOrder != 2 {
		t.Errorf("appended item = %+v, want Condominio at order 2", last)
	}
}

func TestCreateItemInMissingGroup(t *testing.T) {
	srv := newTestServer(t)

	rec := doJSON(t, srv, http.MethodPost, "/api/items", map[string]any{
		"name":      "Fantasma",
		"container": map[string]any{"kind": "group", "group_id": 999},
	})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404: %s", rec.Code, rec.Body.String())
	}
}

func TestDragReorderSaveFlow(t *testing.T) {
	srv := newTestServer(t)

	p := getTaxonomy(t, srv)
	casaID, trasportiID := p.Groups[0].ID, p.Groups[1].ID

	rec := doJSON(t, srv, http.MethodPost, "/api/drag/start", map[string]any{"kind": "group", "id": casaID})
	if rec.Code != http.StatusOK {
		t.Fatalf("drag start status = %d: %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, srv, http.MethodPost, "/api/drag/hover", map[string]any{"kind": "group", "id": trasportiID})
	if rec.Code != http.StatusOK {
		t.Fatalf("drag hover status = %d: %s", rec.Code, rec.Body.String())
	}
	var hover struct {
		Valid  bool               `json:"valid"`
		Target *dropTargetPayload `json:"target"`
	}
	decodeResponse(t, rec, &hover)
	if !hover.Valid || hover.Target == nil {
		t.Fatalf("hover over group header should be a valid target: %+v", hover)
	}
	if hover.Target.GroupSlot != 1 {
		t.Errorf("group slot = %d, want 1", hover.Target.GroupSlot)
	}

	rec = doJSON(t, srv, http.MethodPost, "/api/drag/drop", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("drop status = %d: %s", rec.Code, rec.Body.String())
	}
	var drop struct {
		Moved bool `json:"moved"`
		Dirty bool `json:"dirty"`
	}
	decodeResponse(t, rec, &drop)
	if !drop.Moved || !drop.Dirty {
		t.Fatalf("drop = %+v, want moved and dirty", drop)
	}

	p = getTaxonomy(t, srv)
	if p.Groups[0].Name != "Trasporti" || p.Groups[1].Name != "Casa" {
		t.Fatalf("local order = %q, %q; want Trasporti, Casa", p.Groups[0].Name, p.Groups[1].Name)
	}

	rec = doJSON(t, srv, http.MethodPost, "/api/taxonomy/save", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("save status = %d: %s", rec.Code, rec.Body.String())
	}
	var save struct {
		GroupsUpdated int  `json:"groups_updated"`
		ItemsUpdated  int  `json:"items_updated"`
		Dirty         bool `json:"dirty"`
	}
	decodeResponse(t, rec, &save)
	if save.GroupsUpdated != 2 || save.ItemsUpdated != 0 {
		t.Errorf("save counters = %d groups, %d items; want 2, 0", save.GroupsUpdated, save.ItemsUpdated)
	}
	if save.Dirty {
		t.Error("session still dirty after full save")
	}
}

func TestDragCancelLeavesOrderIntact(t *testing.T) {
	srv := newTestServer(t)

	p := getTaxonomy(t, srv)
	rec := doJSON(t, srv, http.MethodPost, "/api/drag/start", map[string]any{"kind": "item", "id": p.Groups[0].Items[0].ID})
	if rec.Code != http.StatusOK {
		t.Fatalf("drag start status = %d: %s", rec.Code, rec.Body.String())
	}
	rec = doJSON(t, srv, http.MethodPost, "/api/drag/hover", map[string]any{"kind": "ungrouped_zone"})
	if rec.Code != http.StatusOK {
		t.Fatalf("hover status = %d: %s", rec.Code, rec.Body.String())
	}
	rec = doJSON(t, srv, http.MethodPost, "/api/drag/cancel", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("cancel status = %d: %s", rec.Code, rec.Body.String())
	}

	after := getTaxonomy(t, srv)
	if after.Dirty {
		t.Error("cancelled gesture left the session dirty")
	}
	if after.Groups[0].Items[0].Name != p.Groups[0].Items[0].Name {
		t.Error("cancelled gesture changed item order")
	}
}

func TestDragStartWhileDragging(t *testing.T) {
	srv := newTestServer(t)

	p := getTaxonomy(t, srv)
	start := map[string]any{"kind": "group", "id": p.Groups[0].ID}
	if rec := doJSON(t, srv, http.MethodPost, "/api/drag/start", start); rec.Code != http.StatusOK {
		t.Fatalf("first drag start status = %d", rec.Code)
	}
	if rec := doJSON(t, srv, http.MethodPost, "/api/drag/start", start); rec.Code != http.StatusConflict {
		t.Fatalf("second drag start status = %d, want 409", rec.Code)
	}
}

func TestDiscardDropsPendingReorder(t *testing.T) {
	srv := newTestServer(t)

	p := getTaxonomy(t, srv)
	doJSON(t, srv, http.MethodPost, "/api/drag/start", map[string]any{"kind": "group", "id": p.Groups[0].ID})
	doJSON(t, srv, http.MethodPost, "/api/drag/hover", map[string]any{"kind": "group", "id": p.Groups[1].ID})
	doJSON(t, srv, http.MethodPost, "/api/drag/drop", nil)

	rec := doJSON(t, srv, http.MethodPost, "/api/taxonomy/discard", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("discard status = %d: %s", rec.Code, rec.Body.String())
	}

	after := getTaxonomy(t, srv)
	if after.Dirty {
		t.Error("session dirty after discard")
	}
	if after.Groups[0].Name != "Casa" {
		t.Errorf("first group = %q after discard, want Casa", after.Groups[0].Name)
	}
}

func TestDeleteGroupRequiresConfirmation(t *testing.T) {
	srv := newTestServer(t)

	p := getTaxonomy(t, srv)
	casaID := p.Groups[0].ID

	rec := doJSON(t, srv, http.MethodPost, "/api/groups/delete", map[string]any{"id": casaID})
	if rec.Code != http.StatusAccepted {
		t.Fatalf("delete status = %d, want 202: %s", rec.Code, rec.Body.String())
	}
	var dlg struct {
		Token  string `json:"token"`
		Prompt string `json:"prompt"`
	}
	decodeResponse(t, rec, &dlg)
	if dlg.Token == "" || dlg.Prompt == "" {
		t.Fatalf("dialog = %+v, want token and prompt", dlg)
	}

	// Nothing happens until the dialog is confirmed
	if mid := getTaxonomy(t, srv); len(mid.Groups) != 2 {
		t.Fatalf("groups = %d before confirmation, want 2", len(mid.Groups))
	}

	rec = doJSON(t, srv, http.MethodPost, "/api/confirm", map[string]any{"token": dlg.Token, "confirmed": true})
	if rec.Code != http.StatusOK {
		t.Fatalf("confirm status = %d: %s", rec.Code, rec.Body.String())
	}

	after := getTaxonomy(t, srv)
	if len(after.Groups) != 1 {
		t.Fatalf("groups = %d after confirmation, want 1", len(after.Groups))
	}
	// Casa's items fall back into the ungrouped bucket after Varie
	wantUngrouped := []string{"Varie", "Bollette", "Mutuo"}
	if len(after.Ungrouped) != len(wantUngrouped) {
		t.Fatalf("ungrouped = %d items, want %d", len(after.Ungrouped), len(wantUngrouped))
	}
	for i, name := range wantUngrouped {
		if after.Ungrouped[i].Name != name {
			t.Errorf("ungrouped[%d] = %q, want %q", i, after.Ungrouped[i].Name, name)
		}
	}
}

func TestDeclinedDialogLeavesDataIntact(t *testing.T) {
	srv := newTestServer(t)

	p := getTaxonomy(t, srv)
	rec := doJSON(t, srv, http.MethodPost, "/api/items/delete", map[string]any{"id": p.Ungrouped[0].ID})
	if rec.Code != http.StatusAccepted {
		t.Fatalf("delete status = %d, want 202", rec.Code)
	}
	var dlg struct {
		Token string `json:"token"`
	}
	decodeResponse(t, rec, &dlg)

	rec = doJSON(t, srv, http.MethodPost, "/api/confirm", map[string]any{"token": dlg.Token, "confirmed": false})
	if rec.Code != http.StatusOK {
		t.Fatalf("decline status = %d: %s", rec.Code, rec.Body.String())
	}

	if after := getTaxonomy(t, srv); len(after.Ungrouped) != 1 {
		t.Errorf("ungrouped = %d items after decline, want 1", len(after.Ungrouped))
	}

	// The token is spent either way
	rec = doJSON(t, srv, http.MethodPost, "/api/confirm", map[string]any{"token": dlg.Token, "confirmed": true})
	if rec.Code != http.StatusNotFound {
		t.Errorf("reused token status = %d, want 404", rec.Code)
	}
}

func TestConfirmUnknownToken(t *testing.T) {
	srv := newTestServer(t)

	rec := doJSON(t, srv, http.MethodPost, "/api/confirm", map[string]any{"token": "dlg_missing", "confirmed": true})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestReceiptLifecycle(t *testing.T) {
	srv := newTestServer(t)

	p := getTaxonomy(t, srv)
	typeID := p.Ungrouped[0].ID

	rec := doJSON(t, srv, http.MethodPost, "/api/receipts", map[string]any{
		"date":        "2026-03-14",
		"description": "Spesa settimanale",
		"amount":      "42,50",
		"type_id":     typeID,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create receipt status = %d: %s", rec.Code, rec.Body.String())
	}
	var created receiptPayload
	decodeResponse(t, rec, &created)
	if created.AmountCents != 4250 {
		t.Errorf("amount_cents = %d, want 4250", created.AmountCents)
	}

	rec = doJSON(t, srv, http.MethodGet, "/api/receipts?year=2026&month=3", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list receipts status = %d: %s", rec.Code, rec.Body.String())
	}
	var list struct {
		Year     int              `json:"year"`
		Month    int              `json:"month"`
		Receipts []receiptPayload `json:"receipts"`
	}
	decodeResponse(t, rec, &list)
	if len(list.Receipts) != 1 || list.Receipts[0].Description != "Spesa settimanale" {
		t.Fatalf("receipts = %+v, want one Spesa settimanale", list.Receipts)
	}

	rec = doJSON(t, srv, http.MethodGet, "/api/receipts/overview?year=2026&month=3", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("overview status = %d: %s", rec.Code, rec.Body.String())
	}
	var overview struct {
		TotalCents int64 `json:"total_cents"`
		ByType     []struct {
			Name        string `json:"name"`
			AmountCents int64  `json:"amount_cents"`
		} `json:"by_type"`
	}
	decodeResponse(t, rec, &overview)
	if overview.TotalCents != 4250 {
		t.Errorf("total_cents = %d, want 4250", overview.TotalCents)
	}
	if len(overview.ByType) != 1 || overview.ByType[0].Name != "Varie" {
		t.Errorf("by_type = %+v, want [Varie]", overview.ByType)
	}

	// Deleting goes through the confirmation dialog and invalidates the caches
	rec = doJSON(t, srv, http.MethodPost, "/api/receipts/delete?year=2026&month=3", map[string]any{"id": created.ID})
	if rec.Code != http.StatusAccepted {
		t.Fatalf("delete receipt status = %d, want 202", rec.Code)
	}
	var dlg struct {
		Token string `json:"token"`
	}
	decodeResponse(t, rec, &dlg)
	rec = doJSON(t, srv, http.MethodPost, "/api/confirm", map[string]any{"token": dlg.Token, "confirmed": true})
	if rec.Code != http.StatusOK {
		t.Fatalf("confirm status = %d: %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, srv, http.MethodGet, "/api/receipts?year=2026&month=3", nil)
	decodeResponse(t, rec, &list)
	if len(list.Receipts) != 0 {
		t.Errorf("receipts after delete = %d, want 0", len(list.Receipts))
	}
}

func TestCreateReceiptValidation(t *testing.T) {
	srv := newTestServer(t)

	tests := []struct {
		name string
		body map[string]any
	}{
		{"bad date", map[string]any{"date": "14/03/2026", "description": "x", "amount": "10", "type_id": int64(1)}},
		{"bad amount", map[string]any{"date": "2026-03-14", "description": "x", "amount": "-5", "type_id": int64(1)}},
		{"empty description", map[string]any{"date": "2026-03-14", "description": "  ", "amount": "10", "type_id": int64(1)}},
		{"unknown type", map[string]any{"date": "2026-03-14", "description": "x", "amount": "10", "type_id": int64(999)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doJSON(t, srv, http.MethodPost, "/api/receipts", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400: %s", rec.Code, rec.Body.String())
			}
		})
	}
}

func TestListReceiptsInvalidMonth(t *testing.T) {
	srv := newTestServer(t)

	rec := doJSON(t, srv, http.MethodGet, "/api/receipts?year=2026&month=13", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400: %s", rec.Code, rec.Body.String())
	}
}

func TestMethodNotAllowed(t *testing.T) {
	srv := newTestServer(t)

	rec := doJSON(t, srv, http.MethodDelete, "/api/taxonomy", nil)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", rec.Code)
	}
}

func TestHealthEndpoints(t *testing.T) {
	srv := newTestServer(t)

	for _, path := range []string{"/healthz", "/readyz"} {
		rec := doJSON(t, srv, http.MethodGet, path, nil)
		if rec.Code != http.StatusOK {
			t.Errorf("GET %s status = %d, want 200", path, rec.Code)
		}
	}
}
