package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"ricevute/internal/core"
)

type receiptPayload struct {
	ID          int64   `json:"id"`
	Date        string  `json:"date"` // YYYY-MM-DD
	Description string  `json:"description"`
	Amount      float64 `json:"amount"`
	AmountCents int64   `json:"amount_cents"`
	TypeID      int64   `json:"type_id"`
}

func receiptToPayload(rc core.Receipt) receiptPayload {
	return receiptPayload{
		ID:          rc.ID,
		Date:        rc.Date.Format("2006-01-02"),
		Description: rc.Description,
		Amount:      rc.Amount.Euros(),
		AmountCents: rc.Amount.Cents,
		TypeID:      rc.TypeID,
	}
}

func monthKey(prefix string, year, month int) string {
	return fmt.Sprintf("%s:%04d-%02d", prefix, year, month)
}

func (s *Server) invalidateMonth(year, month int) {
	s.receiptsCache.Delete(monthKey("receipts", year, month))
	s.overviewCache.Delete(monthKey("overview", year, month))
}

// handleReceipts lists receipts for a month on GET and captures a new receipt
// on POST.
func (s *Server) handleReceipts(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.listReceipts(w, r)
	case http.MethodPost:
		s.createReceipt(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) listReceipts(w http.ResponseWriter, r *http.Request) {
	year, month := parseYearMonth(r)
	key := monthKey("receipts", year, month)

	receipts, ok := s.receiptsCache.Get(key)
	if !ok {
		var err error
		receipts, err = s.receipts.ListReceipts(r.Context(), year, month)
		if err != nil {
			writeError(w, statusForError(err), err.Error())
			return
		}
		s.receiptsCache.Set(key, receipts)
	}

	payload := make([]receiptPayload, 0, len(receipts))
	for _, rc := range receipts {
		payload = append(payload, receiptToPayload(rc))
	}
	writeJSON(w, http.StatusOK, struct {
		Year     int              `json:"year"`
		Month    int              `json:"month"`
		Receipts []receiptPayload `json:"receipts"`
	}{Year: year, Month: month, Receipts: payload})
}

func (s *Server) createReceipt(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Date        string `json:"date"`
		Description string `json:"description"`
		Amount      string `json:"amount"` // decimal string, "12.34" or "12,34"
		TypeID      int64  `json:"type_id"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	date, err := parseDate(req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid date, expected YYYY-MM-DD")
		return
	}
	cents, err := core.ParseDecimalToCents(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid amount")
		return
	}
	created, err := s.receipts.CreateReceipt(r.Context(), core.Receipt{
		Date:        date,
		Description: sanitizeInput(req.Description),
		Amount:      core.Money{Cents: cents},
		TypeID:      req.TypeID,
	})
	if err != nil {
		writeError(w, statusForError(err), err.Error())
		return
	}
	s.invalidateMonth(created.Date.Year(), int(created.Date.Month()))
	writeJSON(w, http.StatusCreated, receiptToPayload(created))
}

// handleDeleteReceipt opens a confirmation dialog; the delete runs once
// confirmed. The year/month query parameters scope the cache invalidation.
func (s *Server) handleDeleteReceipt(w http.ResponseWriter, r *http.Request) {
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
	id := req.ID
	year, month := parseYearMonth(r)
	s.requestConfirmation(w,
		"Eliminare la ricevuta selezionata?",
		func(ctx context.Context) error {
			if err := s.receipts.DeleteReceipt(ctx, id); err != nil {
				return err
			}
			s.invalidateMonth(year, month)
			return nil
		})
}

func (s *Server) handleMonthOverview(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	year, month := parseYearMonth(r)
	key := monthKey("overview", year, month)

	overview, ok := s.overviewCache.Get(key)
	if !ok {
		var err error
		overview, err = s.receipts.MonthOverview(r.Context(), year, month)
		if err != nil {
			writeError(w, statusForError(err), err.Error())
			return
		}
		s.overviewCache.Set(key, overview)
	}

	type typeAmountPayload struct {
		Name        string  `json:"name"`
		Amount      float64 `json:"amount"`
		AmountCents int64   `json:"amount_cents"`
	}
	byType := make([]typeAmountPayload, 0, len(overview.ByType))
	for _, ta := range overview.ByType {
		byType = append(byType, typeAmountPayload{Name: ta.Name, Amount: ta.Amount.Euros(), AmountCents: ta.Amount.Cents})
	}
	writeJSON(w, http.StatusOK, struct {
		Year        int                 `json:"year"`
		Month       int                 `json:"month"`
		Total       float64             `json:"total"`
		TotalCents  int64               `json:"total_cents"`
		ByType      []typeAmountPayload `json:"by_type"`
		GeneratedAt string              `json:"generated_at"`
	}{
		Year:        overview.Year,
		Month:       overview.Month,
		Total:       overview.Total.Euros(),
		TotalCents:  overview.Total.Cents,
		ByType:      byType,
		GeneratedAt: time.Now().UTC().Format(time.RFC3339),
	})
}
