package services

import (
	"context"
	"testing"

	"ricevute/internal/backend/memory"
	"ricevute/internal/core"
)

func TestCreateAndListReceipts(t *testing.T) {
	store := seeded()
	svc := NewReceiptService(store)
	ctx := context.Background()

	items, _ := store.ListItems(ctx)
	receiptType := items[0]

	saved, err := svc.CreateReceipt(ctx, core.Receipt{
		Date:        core.NewDate(2026, 8, 3),
		Description: "bolletta luce",
		Amount:      core.Money{Cents: 4550},
		TypeID:      receiptType.ID,
	})
	if err != nil {
		t.Fatalf("create receipt: %v", err)
	}
	if saved.ID == 0 {
		t.Fatal("expected a real receipt id")
	}

	august, err := svc.ListReceipts(ctx, 2026, 8)
	if err != nil {
		t.Fatalf("list receipts: %v", err)
	}
	if len(august) != 1 || august[0].Description != "bolletta luce" {
		t.Fatalf("unexpected receipts: %+v", august)
	}

	overview, err := svc.MonthOverview(ctx, 2026, 8)
	if err != nil {
		t.Fatalf("month overview: %v", err)
	}
	if overview.Total.Cents != 4550 || len(overview.ByType) != 1 {
		t.Fatalf("unexpected overview: %+v", overview)
	}

	if err := svc.DeleteReceipt(ctx, saved.ID); err != nil {
		t.Fatalf("delete receipt: %v", err)
	}
}

func TestCreateReceiptValidation(t *testing.T) {
	svc := NewReceiptService(memory.New())
	ctx := context.Background()

	tests := []struct {
		name    string
		receipt core.Receipt
	}{
		{"zero date", core.Receipt{Description: "x", Amount: core.Money{Cents: 100}, TypeID: 1}},
		{"empty description", core.Receipt{Date: core.NewDate(2026, 8, 1), Amount: core.Money{Cents: 100}, TypeID: 1}},
		{"zero amount", core.Receipt{Date: core.NewDate(2026, 8, 1), Description: "x", TypeID: 1}},
		{"missing type", core.Receipt{Date: core.NewDate(2026, 8, 1), Description: "x", Amount: core.Money{Cents: 100}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.CreateReceipt(ctx, tt.receipt); err == nil {
				t.Fatal("expected a validation error")
			}
		})
	}
}

func TestListReceiptsInvalidMonth(t *testing.T) {
	svc := NewReceiptService(memory.New())
	if _, err := svc.ListReceipts(context.Background(), 2026, 13); err == nil {
		t.Fatal("expected an error for month 13")
	}
	if _, err := svc.MonthOverview(context.Background(), 2026, 0); err == nil {
		t.Fatal("expected an error for month 0")
	}
}
