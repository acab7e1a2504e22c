package memory

import (
	"context"
	"testing"

	"finboard/internal/core"
	"finboard/internal/sheets"
)

func entry(id string) sheets.LedgerEntry {
	return sheets.LedgerEntry{
		Date:          core.NewDate(2025, 1, 2),
		Category:      "Food",
		Amount:        core.MustParseMoney("3.20"),
		Kind:          sheets.KindExpense,
		TransactionID: id,
	}
}

func TestLedgerAppend(t *testing.T) {
	l := New()
	ctx := context.Background()

	ref, err := l.Append(ctx, entry("t1"))
	if err != nil || ref != "mem:1" {
		t.Fatalf("Append = %q, %v", ref, err)
	}
	if _, err := l.Append(ctx, sheets.LedgerEntry{Kind: sheets.KindExpense}); err == nil {
		t.Error("invalid entry should be rejected")
	}

	l.FailNext(1)
	if _, err := l.Append(ctx, entry("t2")); err == nil {
		t.Error("expected injected failure")
	}
	if ref, err := l.Append(ctx, entry("t2")); err != nil || ref != "mem:2" {
		t.Errorf("Append after failure = %q, %v", ref, err)
	}

	got := l.Entries()
	if len(got) != 2 || got[1].TransactionID != "t2" {
		t.Errorf("entries = %+v", got)
	}
}
