package interpreter

import (
	"context"
	"fmt"

	"github.com/rawblock/ordinals-index/internal/brc20/decimal"
	"github.com/rawblock/ordinals-index/internal/brc20/model"
)

// memLedger is an in-memory Ledger used to test the interpreter without a
// database, mirroring the teacher's preference for direct, dependency-light
// unit tests over container-backed integration tests.
type memLedger struct {
	tokens    map[string]model.Token
	balances  map[string]model.Balance
	pending   map[string]model.PendingTransfer
	ops       map[string]model.Op
	opOrder   []string
	snapshots []model.BalanceSnapshot
}

func newMemLedger() *memLedger {
	return &memLedger{
		tokens:   map[string]model.Token{},
		balances: map[string]model.Balance{},
		pending:  map[string]model.PendingTransfer{},
		ops:      map[string]model.Op{},
	}
}

func balKey(ticker, address string) string { return ticker + "/" + address }
func opKey(inscriptionID string, operation model.Operation) string {
	return inscriptionID + "/" + string(operation)
}

func (m *memLedger) GetToken(ctx context.Context, ticker string) (*model.Token, error) {
	t, ok := m.tokens[ticker]
	if !ok {
		return nil, nil
	}
	return &t, nil
}

func (m *memLedger) PutToken(ctx context.Context, t model.Token) error {
	m.tokens[t.TickerFolded] = t
	return nil
}

func (m *memLedger) DeleteToken(ctx context.Context, ticker string) error {
	delete(m.tokens, ticker)
	return nil
}

func (m *memLedger) CreditMint(ctx context.Context, ticker string, delta decimal.Amount) error {
	t, ok := m.tokens[ticker]
	if !ok {
		return fmt.Errorf("no such token %s", ticker)
	}
	t.MintedSupply = t.MintedSupply.Add(delta)
	m.tokens[ticker] = t
	return nil
}

func (m *memLedger) IncrTxCount(ctx context.Context, ticker string, delta int64) error {
	t, ok := m.tokens[ticker]
	if !ok {
		return fmt.Errorf("no such token %s", ticker)
	}
	t.TxCount += delta
	m.tokens[ticker] = t
	return nil
}

func (m *memLedger) GetBalance(ctx context.Context, ticker, address string) (model.Balance, error) {
	b, ok := m.balances[balKey(ticker, address)]
	if !ok {
		decimals := 0
		if t, ok := m.tokens[ticker]; ok {
			decimals = t.Decimals
		}
		return model.Balance{Ticker: ticker, Address: address, Avail: decimal.Zero(decimals), Trans: decimal.Zero(decimals)}, nil
	}
	return b, nil
}

func (m *memLedger) PutBalance(ctx context.Context, b model.Balance) error {
	m.balances[balKey(b.Ticker, b.Address)] = b
	return nil
}

func (m *memLedger) AppendOp(ctx context.Context, op model.Op) error {
	k := opKey(op.InscriptionID, op.Operation)
	m.ops[k] = op
	m.opOrder = append(m.opOrder, k)
	return nil
}

func (m *memLedger) GetOp(ctx context.Context, inscriptionID string, operation model.Operation) (*model.Op, error) {
	op, ok := m.ops[opKey(inscriptionID, operation)]
	if !ok {
		return nil, nil
	}
	return &op, nil
}

func (m *memLedger) DeleteOp(ctx context.Context, inscriptionID string, operation model.Operation) error {
	delete(m.ops, opKey(inscriptionID, operation))
	return nil
}

func (m *memLedger) PutBalanceSnapshot(ctx context.Context, s model.BalanceSnapshot) error {
	m.snapshots = append(m.snapshots, s)
	return nil
}

func (m *memLedger) GetPendingTransfer(ctx context.Context, inscriptionID string) (*model.PendingTransfer, error) {
	p, ok := m.pending[inscriptionID]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (m *memLedger) PutPendingTransfer(ctx context.Context, p model.PendingTransfer) error {
	m.pending[p.InscriptionID] = p
	return nil
}

func (m *memLedger) DeletePendingTransfer(ctx context.Context, inscriptionID string) error {
	delete(m.pending, inscriptionID)
	return nil
}
