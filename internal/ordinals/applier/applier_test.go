package applier

import (
	"context"
	"testing"
	"time"

	"github.com/rawblock/ordinals-index/internal/ordinals/model"
)

func addr(s string) *string { return &s }

// TestScenario1RevealTransferRetransfer exercises spec §8 scenario 1.
func TestScenario1RevealTransferRetransfer(t *testing.T) {
	ledger := newMemLedger()
	ctx := context.Background()
	const sat = int64(257418248345364)

	reveal := model.RevealEvent{
		Inscription: model.Inscription{
			InscriptionID: "I0", OrdinalNumber: sat, Number: 0, ClassicNumber: 0,
			BlockHeight: 775617, BlockHash: "h775617", TxID: "tx0", TxIndex: 0,
			Address: addr("A"), MimeType: "text/plain", ContentType: "text/plain",
			Timestamp: time.Unix(1, 0),
		},
		GenesisLoc: model.Location{
			OrdinalNumber: sat, BlockHeight: 775617, TxIndex: 0, TxID: "tx0", BlockHash: "h775617",
			Address: addr("A"), Output: "tx0:0", TransferType: model.TransferTypeTransferred, Timestamp: time.Unix(1, 0),
		},
	}
	if err := ApplyReveal(ctx, ledger, reveal); err != nil {
		t.Fatalf("reveal: %v", err)
	}

	transferToB := model.TransferEvent{
		OrdinalNumber: sat, FromBlockHeight: 775617, FromTxIndex: 0, BlockTransferIndex: 0,
		Location: model.Location{
			OrdinalNumber: sat, BlockHeight: 775618, TxIndex: 30, TxID: "tx30", BlockHash: "h775618",
			Address: addr("B"), Output: "tx30:0", TransferType: model.TransferTypeTransferred, Timestamp: time.Unix(2, 0),
		},
	}
	if err := ApplyTransfer(ctx, ledger, transferToB); err != nil {
		t.Fatalf("transfer to B: %v", err)
	}

	transferToC := model.TransferEvent{
		OrdinalNumber: sat, FromBlockHeight: 775618, FromTxIndex: 30, BlockTransferIndex: 1,
		Location: model.Location{
			OrdinalNumber: sat, BlockHeight: 775618, TxIndex: 42, TxID: "tx42", BlockHash: "h775618",
			Address: addr("C"), Output: "tx42:0", TransferType: model.TransferTypeTransferred, Timestamp: time.Unix(3, 0),
		},
	}
	if err := ApplyTransfer(ctx, ledger, transferToC); err != nil {
		t.Fatalf("transfer to C: %v", err)
	}

	cur := ledger.currentLocations[sat]
	if cur.Address == nil || *cur.Address != "C" {
		t.Fatalf("current location address = %v, want C", cur.Address)
	}
	if len(ledger.locations) != 3 {
		t.Fatalf("expected 3 location rows (genesis+2 transfers), got %d", len(ledger.locations))
	}
	blockTransfers := 0
	for key := range ledger.locations {
		_ = key
	}
	for _, loc := range ledger.locations {
		if loc.BlockHeight == 775618 {
			blockTransfers++
		}
	}
	if blockTransfers != 2 {
		t.Errorf("expected 2 locations at block 775618, got %d", blockTransfers)
	}

	// Round-trip: rollback both transfers then the reveal returns the
	// ledger to its pre-apply state.
	if err := RollbackTransfer(ctx, ledger, transferToC); err != nil {
		t.Fatalf("rollback C: %v", err)
	}
	if err := RollbackTransfer(ctx, ledger, transferToB); err != nil {
		t.Fatalf("rollback B: %v", err)
	}
	cur = ledger.currentLocations[sat]
	if cur.Address == nil || *cur.Address != "A" {
		t.Fatalf("after rollback current location = %v, want A", cur.Address)
	}
	if err := RollbackReveal(ctx, ledger, reveal); err != nil {
		t.Fatalf("rollback reveal: %v", err)
	}
	if len(ledger.inscriptions) != 0 || len(ledger.locations) != 0 || len(ledger.currentLocations) != 0 {
		t.Errorf("expected empty ledger after full rollback, got inscriptions=%d locations=%d current=%d",
			len(ledger.inscriptions), len(ledger.locations), len(ledger.currentLocations))
	}
}

// TestScenario2ReinscriptionSharesLocation exercises spec §8 scenario 2.
func TestScenario2ReinscriptionSharesLocation(t *testing.T) {
	ledger := newMemLedger()
	ctx := context.Background()
	const sat = int64(999)

	revealA := model.RevealEvent{
		Inscription: model.Inscription{
			InscriptionID: "Ia", OrdinalNumber: sat, Number: -7, ClassicNumber: -7,
			BlockHeight: 775617, TxIndex: 0, TxID: "txa", BlockHash: "h1", Address: addr("A"),
			MimeType: "text/plain", ContentType: "text/plain", Timestamp: time.Unix(1, 0),
		},
		GenesisLoc: model.Location{
			OrdinalNumber: sat, BlockHeight: 775617, TxIndex: 0, TxID: "txa", BlockHash: "h1",
			Address: addr("A"), Output: "txa:0", TransferType: model.TransferTypeTransferred, Timestamp: time.Unix(1, 0),
		},
	}
	if err := ApplyReveal(ctx, ledger, revealA); err != nil {
		t.Fatalf("reveal Ia: %v", err)
	}

	// Second inscription on the SAME sat, in a later block: the reinscribe
	// also constitutes a transfer of the sat.
	moveEvent := model.TransferEvent{
		OrdinalNumber: sat, FromBlockHeight: 775617, FromTxIndex: 0, BlockTransferIndex: 0,
		Location: model.Location{
			OrdinalNumber: sat, BlockHeight: 775618, TxIndex: 0, TxID: "txb", BlockHash: "h2",
			Address: addr("A"), Output: "txb:0", TransferType: model.TransferTypeTransferred, Timestamp: time.Unix(2, 0),
		},
	}

	revealB := model.RevealEvent{
		Inscription: model.Inscription{
			InscriptionID: "Ib", OrdinalNumber: sat, Number: -1, ClassicNumber: -1,
			BlockHeight: 775618, TxIndex: 0, TxID: "txb", BlockHash: "h2", Address: addr("A"),
			MimeType: "text/plain", ContentType: "text/plain", Timestamp: time.Unix(2, 0),
		},
		GenesisLoc: moveEvent.Location,
	}
	// The sat-move transfer is applied against the inscriptions that sit on
	// the sat BEFORE this block's reveal (just Ia); Ib's reveal itself
	// establishes its own (identical) location afterward.
	if err := ApplyTransfer(ctx, ledger, moveEvent); err != nil {
		t.Fatalf("apply sat move: %v", err)
	}
	if err := ApplyReveal(ctx, ledger, revealB); err != nil {
		t.Fatalf("reveal Ib: %v", err)
	}

	cur := ledger.currentLocations[sat]
	if cur.Output != "txb:0" {
		t.Fatalf("current location output = %q, want txb:0 (Ib's genesis output)", cur.Output)
	}

	ids, _ := ledger.InscriptionIDsOnSat(ctx, sat)
	if len(ids) != 2 {
		t.Fatalf("expected 2 inscriptions on sat, got %d", len(ids))
	}

	var transfersForA, transfersForB int
	for _, tr := range ledger.transfers {
		switch tr.InscriptionID {
		case "Ia":
			transfersForA++
		case "Ib":
			transfersForB++
		}
	}
	if transfersForA != 1 {
		t.Errorf("Ia transfer rows = %d, want 1 (the post-genesis sat move)", transfersForA)
	}
	if transfersForB != 0 {
		t.Errorf("Ib transfer rows = %d, want 0 (its genesis location is not a transfer)", transfersForB)
	}
}

func TestApplyRevealRejectsDuplicate(t *testing.T) {
	ledger := newMemLedger()
	ctx := context.Background()
	reveal := model.RevealEvent{
		Inscription: model.Inscription{InscriptionID: "dup", OrdinalNumber: 1, MimeType: "text/plain", Address: addr("A"), Timestamp: time.Unix(1, 0)},
		GenesisLoc:  model.Location{OrdinalNumber: 1, Output: "tx:0", TransferType: model.TransferTypeTransferred, Timestamp: time.Unix(1, 0)},
	}
	if err := ApplyReveal(ctx, ledger, reveal); err != nil {
		t.Fatalf("first reveal: %v", err)
	}
	err := ApplyReveal(ctx, ledger, reveal)
	if err == nil {
		t.Fatal("expected error on duplicate reveal")
	}
}

func TestFindRecursionRefs(t *testing.T) {
	content := []byte(`<img src="/content/abcd1234abcd1234abcd1234abcd1234abcd1234abcd1234abcd1234abcd1234i0">`)
	refs := FindRecursionRefs(content)
	if len(refs) != 1 || refs[0] != "abcd1234abcd1234abcd1234abcd1234abcd1234abcd1234abcd1234abcd1234i0" {
		t.Errorf("unexpected refs: %v", refs)
	}
}
