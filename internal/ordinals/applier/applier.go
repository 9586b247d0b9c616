// Package applier implements the ordinals event applier (C2): the reveal
// and transfer effects from spec §4.2, plus their exact inverses for
// rollback. Like the brc20 interpreter, it is built against a narrow
// Ledger seam so the effect ordering can be unit-tested without a real
// Postgres instance.
package applier

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/rawblock/ordinals-index/internal/ordinals/model"
	"github.com/rawblock/ordinals-index/internal/satoshi"
)

// ErrDuplicateInscription is fatal per spec §7 kind 2: a reveal for an
// inscription id that already exists indicates upstream duplication or a
// replay without a preceding rollback.
var ErrDuplicateInscription = fmt.Errorf("applier: inscription already exists")

// Counter names used with Ledger.IncrCounter. Keys are counter-specific:
// mime type string, rarity string, "blessed"/"cursed", an address, or
// "recursive"/"non_recursive".
const (
	CounterMimeType  = "mime_type"
	CounterRarity    = "sat_rarity"
	CounterType      = "type"
	CounterAddress   = "address"
	CounterGenesis   = "genesis_address"
	CounterRecursive = "recursive"
)

const (
	keyBlessed        = "blessed"
	keyCursed         = "cursed"
	keyRecursive      = "recursive"
	keyNonRecursive   = "non_recursive"
)

// Ledger is the persistence seam C2 writes through. Production is backed
// by internal/db.OrdinalsStore; tests use an in-memory fake.
type Ledger interface {
	UpsertSatoshi(ctx context.Context, sat model.Satoshi) error
	GetInscription(ctx context.Context, inscriptionID string) (*model.Inscription, error)
	InsertInscription(ctx context.Context, insc model.Inscription) error
	DeleteInscription(ctx context.Context, inscriptionID string) error
	InsertParents(ctx context.Context, inscriptionID string, parentIDs []string) error
	InsertRecursions(ctx context.Context, inscriptionID string, refIDs []string) error

	InsertLocation(ctx context.Context, loc model.Location) error
	DeleteLocation(ctx context.Context, ordinalNumber, blockHeight, txIndex int64) error
	LatestLocationBefore(ctx context.Context, ordinalNumber, blockHeight, txIndex int64) (*model.Location, error)
	SetCurrentLocation(ctx context.Context, loc model.CurrentLocation) error
	DeleteCurrentLocation(ctx context.Context, ordinalNumber int64) error

	AppendInscriptionTransfer(ctx context.Context, t model.InscriptionTransfer) error
	DeleteInscriptionTransfer(ctx context.Context, inscriptionID string, blockHeight, txIndex int64) error
	InscriptionIDsOnSat(ctx context.Context, ordinalNumber int64) ([]string, error)

	IncrCounter(ctx context.Context, name, key string, delta int64) error
	IncrCountsByBlock(ctx context.Context, blockHeight int64, blockHash string, timestamp time.Time, delta int64) error
}

// recursionRef matches /content/<inscription_id>i<n> references anywhere in
// an inscription's content bytes. Recursion discovery is purely syntactic
// per spec §4.2 effect 6; the referenced inscription need not exist.
var recursionRef = regexp.MustCompile(`/content/([0-9a-f]{64}i[0-9]+)`)

// FindRecursionRefs returns the distinct inscription ids referenced via
// /content/ links in content.
func FindRecursionRefs(content []byte) []string {
	matches := recursionRef.FindAllSubmatch(content, -1)
	if len(matches) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(matches))
	var refs []string
	for _, m := range matches {
		id := string(m[1])
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		refs = append(refs, id)
	}
	return refs
}

// ApplyReveal applies an inscription-reveal event, in the effect order
// spec §4.2 mandates.
func ApplyReveal(ctx context.Context, l Ledger, ev model.RevealEvent) error {
	if existing, err := l.GetInscription(ctx, ev.Inscription.InscriptionID); err != nil {
		return fmt.Errorf("applier: check existing inscription: %w", err)
	} else if existing != nil {
		return fmt.Errorf("%w: %s", ErrDuplicateInscription, ev.Inscription.InscriptionID)
	}

	derived, err := satoshi.Derive(ev.Inscription.OrdinalNumber)
	if err != nil {
		return fmt.Errorf("applier: derive satoshi: %w", err)
	}
	sat := model.Satoshi{
		OrdinalNumber:  ev.Inscription.OrdinalNumber,
		Rarity:         string(derived.Rarity),
		CoinbaseHeight: derived.CoinbaseHeight,
	}
	if err := l.UpsertSatoshi(ctx, sat); err != nil {
		return fmt.Errorf("applier: upsert satoshi: %w", err)
	}

	refs := FindRecursionRefs(ev.Inscription.Content)
	insc := ev.Inscription
	insc.Recursive = len(refs) > 0
	if err := l.InsertInscription(ctx, insc); err != nil {
		return fmt.Errorf("applier: insert inscription: %w", err)
	}

	if err := l.InsertLocation(ctx, ev.GenesisLoc); err != nil {
		return fmt.Errorf("applier: insert genesis location: %w", err)
	}
	if err := l.SetCurrentLocation(ctx, toCurrentLocation(ev.GenesisLoc)); err != nil {
		return fmt.Errorf("applier: set current location: %w", err)
	}

	if err := bumpCounters(ctx, l, insc, 1); err != nil {
		return err
	}
	if err := l.IncrCounter(ctx, CounterRarity, sat.Rarity, 1); err != nil {
		return fmt.Errorf("applier: counter sat_rarity: %w", err)
	}
	if err := l.IncrCountsByBlock(ctx, ev.Inscription.BlockHeight, ev.Inscription.BlockHash, ev.Inscription.Timestamp, 1); err != nil {
		return fmt.Errorf("applier: counts_by_block: %w", err)
	}

	if len(ev.ParentRefs) > 0 {
		if err := l.InsertParents(ctx, insc.InscriptionID, ev.ParentRefs); err != nil {
			return fmt.Errorf("applier: insert parents: %w", err)
		}
	}
	if len(refs) > 0 {
		if err := l.InsertRecursions(ctx, insc.InscriptionID, refs); err != nil {
			return fmt.Errorf("applier: insert recursions: %w", err)
		}
	}
	return nil
}

// RollbackReveal is the inverse of ApplyReveal, except that the satoshis
// row written by UpsertSatoshi is left in place.
func RollbackReveal(ctx context.Context, l Ledger, ev model.RevealEvent) error {
	refs := FindRecursionRefs(ev.Inscription.Content)
	insc := ev.Inscription
	insc.Recursive = len(refs) > 0

	derived, err := satoshi.Derive(ev.Inscription.OrdinalNumber)
	if err != nil {
		return fmt.Errorf("applier: derive satoshi: %w", err)
	}

	if err := bumpCounters(ctx, l, insc, -1); err != nil {
		return err
	}
	if err := l.IncrCounter(ctx, CounterRarity, string(derived.Rarity), -1); err != nil {
		return fmt.Errorf("applier: counter sat_rarity: %w", err)
	}
	if err := l.IncrCountsByBlock(ctx, ev.Inscription.BlockHeight, ev.Inscription.BlockHash, ev.Inscription.Timestamp, -1); err != nil {
		return fmt.Errorf("applier: counts_by_block: %w", err)
	}
	if err := l.DeleteCurrentLocation(ctx, ev.Inscription.OrdinalNumber); err != nil {
		return fmt.Errorf("applier: delete current location: %w", err)
	}
	if err := l.DeleteLocation(ctx, ev.GenesisLoc.OrdinalNumber, ev.GenesisLoc.BlockHeight, ev.GenesisLoc.TxIndex); err != nil {
		return fmt.Errorf("applier: delete genesis location: %w", err)
	}
	if err := l.DeleteInscription(ctx, ev.Inscription.InscriptionID); err != nil {
		return fmt.Errorf("applier: delete inscription: %w", err)
	}
	return nil
}

// ApplyTransfer applies an inscription-transfer event. Per spec §4.2
// effect 4, every inscription currently sitting on the sat (reinscriptions
// included) moves with it, so one log row per inscription is appended.
func ApplyTransfer(ctx context.Context, l Ledger, ev model.TransferEvent) error {
	if err := l.InsertLocation(ctx, ev.Location); err != nil {
		return fmt.Errorf("applier: insert transfer location: %w", err)
	}
	if err := l.SetCurrentLocation(ctx, toCurrentLocation(ev.Location)); err != nil {
		return fmt.Errorf("applier: overwrite current location: %w", err)
	}

	ids, err := l.InscriptionIDsOnSat(ctx, ev.OrdinalNumber)
	if err != nil {
		return fmt.Errorf("applier: list inscriptions on sat: %w", err)
	}
	for _, id := range ids {
		insc, err := l.GetInscription(ctx, id)
		if err != nil {
			return fmt.Errorf("applier: load inscription %s: %w", id, err)
		}
		transfer := model.InscriptionTransfer{
			InscriptionID:      id,
			Number:             insc.Number,
			OrdinalNumber:      ev.OrdinalNumber,
			BlockHeight:        ev.Location.BlockHeight,
			TxIndex:            ev.Location.TxIndex,
			FromBlockHeight:    ev.FromBlockHeight,
			FromTxIndex:        ev.FromTxIndex,
			BlockTransferIndex: ev.BlockTransferIndex,
		}
		if err := l.AppendInscriptionTransfer(ctx, transfer); err != nil {
			return fmt.Errorf("applier: append inscription transfer for %s: %w", id, err)
		}
	}
	return nil
}

// RollbackTransfer is the exact inverse of ApplyTransfer: the sat's
// current_locations row is restored to whatever locations row preceded
// this one in (block_height, tx_index) order.
func RollbackTransfer(ctx context.Context, l Ledger, ev model.TransferEvent) error {
	ids, err := l.InscriptionIDsOnSat(ctx, ev.OrdinalNumber)
	if err != nil {
		return fmt.Errorf("applier: list inscriptions on sat: %w", err)
	}
	for _, id := range ids {
		if err := l.DeleteInscriptionTransfer(ctx, id, ev.Location.BlockHeight, ev.Location.TxIndex); err != nil {
			return fmt.Errorf("applier: delete inscription transfer for %s: %w", id, err)
		}
	}
	if err := l.DeleteLocation(ctx, ev.OrdinalNumber, ev.Location.BlockHeight, ev.Location.TxIndex); err != nil {
		return fmt.Errorf("applier: delete transfer location: %w", err)
	}
	prior, err := l.LatestLocationBefore(ctx, ev.OrdinalNumber, ev.Location.BlockHeight, ev.Location.TxIndex)
	if err != nil {
		return fmt.Errorf("applier: find prior location: %w", err)
	}
	if prior == nil {
		return fmt.Errorf("applier: rollback transfer left sat %d with no prior location", ev.OrdinalNumber)
	}
	if err := l.SetCurrentLocation(ctx, toCurrentLocation(*prior)); err != nil {
		return fmt.Errorf("applier: restore current location: %w", err)
	}
	return nil
}

func toCurrentLocation(loc model.Location) model.CurrentLocation {
	return model.CurrentLocation{
		OrdinalNumber: loc.OrdinalNumber,
		BlockHeight:   loc.BlockHeight,
		TxIndex:       loc.TxIndex,
		TxID:          loc.TxID,
		BlockHash:     loc.BlockHash,
		Address:       loc.Address,
		Output:        loc.Output,
		Offset:        loc.Offset,
		Value:         loc.Value,
		TransferType:  loc.TransferType,
		Timestamp:     loc.Timestamp,
	}
}

func bumpCounters(ctx context.Context, l Ledger, insc model.Inscription, delta int64) error {
	if err := l.IncrCounter(ctx, CounterMimeType, insc.MimeType, delta); err != nil {
		return fmt.Errorf("applier: counter mime_type: %w", err)
	}
	typeKey := keyCursed
	if insc.Blessed() {
		typeKey = keyBlessed
	}
	if err := l.IncrCounter(ctx, CounterType, typeKey, delta); err != nil {
		return fmt.Errorf("applier: counter type: %w", err)
	}
	if insc.Address != nil {
		if err := l.IncrCounter(ctx, CounterAddress, *insc.Address, delta); err != nil {
			return fmt.Errorf("applier: counter address: %w", err)
		}
		if err := l.IncrCounter(ctx, CounterGenesis, *insc.Address, delta); err != nil {
			return fmt.Errorf("applier: counter genesis_address: %w", err)
		}
	}
	recKey := keyNonRecursive
	if insc.Recursive {
		recKey = keyRecursive
	}
	if err := l.IncrCounter(ctx, CounterRecursive, recKey, delta); err != nil {
		return fmt.Errorf("applier: counter recursive: %w", err)
	}
	return nil
}
