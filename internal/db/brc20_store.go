package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/rawblock/ordinals-index/internal/brc20/decimal"
	"github.com/rawblock/ordinals-index/internal/brc20/model"
)

// Brc20Store implements internal/brc20/interpreter.Ledger against the
// `brc20` schema. Amounts are stored as NUMERIC via their decimal string
// display form and re-parsed with the token's known decimals on read,
// since decimal.Amount's scale is not itself persisted per-row.
type Brc20Store struct {
	q querier
}

// Brc20StoreTx scopes a Brc20Store to a single block's transaction.
func Brc20StoreTx(tx pgx.Tx) *Brc20Store {
	return &Brc20Store{q: txQuerier{tx: tx}}
}

func (s *Brc20Store) GetToken(ctx context.Context, tickerFolded string) (*model.Token, error) {
	row := s.q.QueryRow(ctx, `
		SELECT ticker_folded, display_ticker, inscription_id, inscription_number, block_height,
		       block_hash, tx_id, tx_index, address, max_supply, mint_limit, decimals, self_mint,
		       minted_supply, tx_count, timestamp
		FROM brc20.tokens WHERE ticker_folded = $1`, tickerFolded)

	var tok model.Token
	var maxStr, limitStr, mintedStr string
	err := row.Scan(&tok.TickerFolded, &tok.DisplayTicker, &tok.InscriptionID, &tok.InscriptionNumber,
		&tok.BlockHeight, &tok.BlockHash, &tok.TxID, &tok.TxIndex, &tok.Address, &maxStr, &limitStr,
		&tok.Decimals, &tok.SelfMint, &mintedStr, &tok.TxCount, &tok.Timestamp)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get token %s: %w", tickerFolded, err)
	}
	if tok.Max, err = decimal.FromDecimalString(maxStr, tok.Decimals); err != nil {
		return nil, err
	}
	if tok.Limit, err = decimal.FromDecimalString(limitStr, tok.Decimals); err != nil {
		return nil, err
	}
	if tok.MintedSupply, err = decimal.FromDecimalString(mintedStr, tok.Decimals); err != nil {
		return nil, err
	}
	return &tok, nil
}

func (s *Brc20Store) PutToken(ctx context.Context, t model.Token) error {
	_, err := s.q.Exec(ctx, `
		INSERT INTO brc20.tokens (
			ticker_folded, display_ticker, inscription_id, inscription_number, block_height,
			block_hash, tx_id, tx_index, address, max_supply, mint_limit, decimals, self_mint,
			minted_supply, tx_count, timestamp
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10::numeric,$11::numeric,$12,$13,$14::numeric,$15,$16)
		ON CONFLICT (ticker_folded) DO UPDATE SET
			minted_supply = EXCLUDED.minted_supply, tx_count = EXCLUDED.tx_count`,
		t.TickerFolded, t.DisplayTicker, t.InscriptionID, t.InscriptionNumber, t.BlockHeight,
		t.BlockHash, t.TxID, t.TxIndex, t.Address, t.Max.Display(), t.Limit.Display(), t.Decimals,
		t.SelfMint, t.MintedSupply.Display(), t.TxCount, t.Timestamp)
	return err
}

func (s *Brc20Store) DeleteToken(ctx context.Context, tickerFolded string) error {
	_, err := s.q.Exec(ctx, `DELETE FROM brc20.tokens WHERE ticker_folded = $1`, tickerFolded)
	return err
}

// ListTokens returns a page of deployed tokens ordered by deploy sequence,
// newest first -- backing GET /brc-20/tokens.
func (s *Brc20Store) ListTokens(ctx context.Context, limit, offset int) ([]model.Token, int64, error) {
	var total int64
	if err := s.q.QueryRow(ctx, `SELECT COUNT(*) FROM brc20.tokens`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count tokens: %w", err)
	}

	lim, off := clampPage(limit, offset)
	rows, err := s.q.Query(ctx, `
		SELECT ticker_folded, display_ticker, inscription_id, inscription_number, block_height,
		       block_hash, tx_id, tx_index, address, max_supply, mint_limit, decimals, self_mint,
		       minted_supply, tx_count, timestamp
		FROM brc20.tokens ORDER BY block_height DESC, tx_index DESC LIMIT $1 OFFSET $2`, lim, off)
	if err != nil {
		return nil, 0, fmt.Errorf("list tokens: %w", err)
	}
	defer rows.Close()

	var out []model.Token
	for rows.Next() {
		tok, err := scanTokenRow(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *tok)
	}
	return out, total, rows.Err()
}

func scanTokenRow(rows pgx.Rows) (*model.Token, error) {
	var tok model.Token
	var maxStr, limitStr, mintedStr string
	if err := rows.Scan(&tok.TickerFolded, &tok.DisplayTicker, &tok.InscriptionID, &tok.InscriptionNumber,
		&tok.BlockHeight, &tok.BlockHash, &tok.TxID, &tok.TxIndex, &tok.Address, &maxStr, &limitStr,
		&tok.Decimals, &tok.SelfMint, &mintedStr, &tok.TxCount, &tok.Timestamp); err != nil {
		return nil, fmt.Errorf("scan token row: %w", err)
	}
	var err error
	if tok.Max, err = decimal.FromDecimalString(maxStr, tok.Decimals); err != nil {
		return nil, err
	}
	if tok.Limit, err = decimal.FromDecimalString(limitStr, tok.Decimals); err != nil {
		return nil, err
	}
	if tok.MintedSupply, err = decimal.FromDecimalString(mintedStr, tok.Decimals); err != nil {
		return nil, err
	}
	return &tok, nil
}

// clampPage mirrors internal/db's pageBounds for the brc20 schema's
// read-query methods.
func clampPage(limit, offset int) (int, int) {
	if limit <= 0 || limit > 200 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// TokenHolder is one row of a token's balance distribution.
type TokenHolder struct {
	Address string
	Balance model.Balance
}

// ListHolders returns a token's holders ordered by descending total
// balance -- backing GET /brc-20/tokens/{ticker}/holders.
func (s *Brc20Store) ListHolders(ctx context.Context, tickerFolded string, limit, offset int) ([]TokenHolder, int64, error) {
	tok, err := s.GetToken(ctx, tickerFolded)
	if err != nil {
		return nil, 0, err
	}
	if tok == nil {
		return nil, 0, nil
	}

	var total int64
	if err := s.q.QueryRow(ctx, `SELECT COUNT(*) FROM brc20.balances WHERE ticker_folded = $1`, tickerFolded).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count holders %s: %w", tickerFolded, err)
	}

	lim, off := clampPage(limit, offset)
	rows, err := s.q.Query(ctx, `
		SELECT address, avail, trans FROM brc20.balances
		WHERE ticker_folded = $1
		ORDER BY (avail + trans) DESC
		LIMIT $2 OFFSET $3`, tickerFolded, lim, off)
	if err != nil {
		return nil, 0, fmt.Errorf("list holders %s: %w", tickerFolded, err)
	}
	defer rows.Close()

	var out []TokenHolder
	for rows.Next() {
		var addr, availStr, transStr string
		if err := rows.Scan(&addr, &availStr, &transStr); err != nil {
			return nil, 0, fmt.Errorf("scan holder row: %w", err)
		}
		avail, err := decimal.FromDecimalString(availStr, tok.Decimals)
		if err != nil {
			return nil, 0, err
		}
		trans, err := decimal.FromDecimalString(transStr, tok.Decimals)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, TokenHolder{Address: addr, Balance: model.Balance{Ticker: tickerFolded, Address: addr, Avail: avail, Trans: trans}})
	}
	return out, total, rows.Err()
}

// ListActivity returns a page of the append-only op log across all tokens,
// optionally narrowed to one ticker, newest first -- backing
// GET /brc-20/activity.
func (s *Brc20Store) ListActivity(ctx context.Context, tickerFolded string, limit, offset int) ([]model.Op, int64, error) {
	where := "WHERE 1=1"
	args := []any{}
	if tickerFolded != "" {
		args = append(args, tickerFolded)
		where += fmt.Sprintf(" AND ticker_folded = $%d", len(args))
	}

	var total int64
	if err := s.q.QueryRow(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM brc20.ops %s`, where), args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count activity: %w", err)
	}

	lim, off := clampPage(limit, offset)
	args = append(args, lim, off)
	listSQL := fmt.Sprintf(`
		SELECT ticker_folded, operation, inscription_id, inscription_number, ordinal_number,
		       block_height, block_hash, tx_id, tx_index, intra_tx_order, output, offset_sats,
		       timestamp, address, to_address, amount
		FROM brc20.ops %s
		ORDER BY block_height DESC, tx_index DESC, intra_tx_order DESC
		LIMIT $%d OFFSET $%d`, where, len(args)-1, len(args))
	rows, err := s.q.Query(ctx, listSQL, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list activity: %w", err)
	}
	defer rows.Close()

	var out []model.Op
	for rows.Next() {
		var op model.Op
		var amountStr string
		if err := rows.Scan(&op.Ticker, &op.Operation, &op.InscriptionID, &op.InscriptionNumber, &op.OrdinalNumber,
			&op.BlockHeight, &op.BlockHash, &op.TxID, &op.TxIndex, &op.IntraTxOrder, &op.Output, &op.Offset,
			&op.Timestamp, &op.Address, &op.ToAddress, &amountStr); err != nil {
			return nil, 0, fmt.Errorf("scan op row: %w", err)
		}
		tok, err := s.GetToken(ctx, op.Ticker)
		if err != nil {
			return nil, 0, err
		}
		decimals := 18
		if tok != nil {
			decimals = tok.Decimals
		}
		if op.Amount, err = decimal.FromDecimalString(amountStr, decimals); err != nil {
			return nil, 0, err
		}
		out = append(out, op)
	}
	return out, total, rows.Err()
}

// ListBalancesForAddress returns every token balance held by one address,
// skipping zero balances -- backing GET /brc-20/balances/{address}.
func (s *Brc20Store) ListBalancesForAddress(ctx context.Context, address string, limit, offset int) ([]model.Balance, int64, error) {
	var total int64
	if err := s.q.QueryRow(ctx, `SELECT COUNT(*) FROM brc20.balances WHERE address = $1 AND (avail + trans) > 0`, address).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count balances for %s: %w", address, err)
	}

	lim, off := clampPage(limit, offset)
	rows, err := s.q.Query(ctx, `
		SELECT ticker_folded, avail, trans FROM brc20.balances
		WHERE address = $1 AND (avail + trans) > 0
		ORDER BY ticker_folded ASC
		LIMIT $2 OFFSET $3`, address, lim, off)
	if err != nil {
		return nil, 0, fmt.Errorf("list balances for %s: %w", address, err)
	}
	defer rows.Close()

	var out []model.Balance
	for rows.Next() {
		var ticker, availStr, transStr string
		if err := rows.Scan(&ticker, &availStr, &transStr); err != nil {
			return nil, 0, fmt.Errorf("scan balance row: %w", err)
		}
		tok, err := s.GetToken(ctx, ticker)
		if err != nil {
			return nil, 0, err
		}
		decimals := 18
		if tok != nil {
			decimals = tok.Decimals
		}
		avail, err := decimal.FromDecimalString(availStr, decimals)
		if err != nil {
			return nil, 0, err
		}
		trans, err := decimal.FromDecimalString(transStr, decimals)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, model.Balance{Ticker: ticker, Address: address, Avail: avail, Trans: trans})
	}
	return out, total, rows.Err()
}

func (s *Brc20Store) CreditMint(ctx context.Context, tickerFolded string, mintedDelta decimal.Amount) error {
	_, err := s.q.Exec(ctx, `
		UPDATE brc20.tokens SET minted_supply = minted_supply + $1::numeric WHERE ticker_folded = $2`,
		mintedDelta.Display(), tickerFolded)
	return err
}

func (s *Brc20Store) IncrTxCount(ctx context.Context, tickerFolded string, delta int64) error {
	_, err := s.q.Exec(ctx, `UPDATE brc20.tokens SET tx_count = tx_count + $1 WHERE ticker_folded = $2`, delta, tickerFolded)
	return err
}

func (s *Brc20Store) GetBalance(ctx context.Context, tickerFolded, address string) (model.Balance, error) {
	tok, err := s.GetToken(ctx, tickerFolded)
	if err != nil {
		return model.Balance{}, err
	}
	if tok == nil {
		return model.Balance{}, fmt.Errorf("get balance: unknown ticker %s", tickerFolded)
	}
	row := s.q.QueryRow(ctx, `SELECT avail, trans FROM brc20.balances WHERE ticker_folded = $1 AND address = $2`, tickerFolded, address)
	var availStr, transStr string
	err = row.Scan(&availStr, &transStr)
	if err == pgx.ErrNoRows {
		return model.Balance{Ticker: tickerFolded, Address: address, Avail: decimal.Zero(tok.Decimals), Trans: decimal.Zero(tok.Decimals)}, nil
	}
	if err != nil {
		return model.Balance{}, fmt.Errorf("get balance %s/%s: %w", tickerFolded, address, err)
	}
	avail, err := decimal.FromDecimalString(availStr, tok.Decimals)
	if err != nil {
		return model.Balance{}, err
	}
	trans, err := decimal.FromDecimalString(transStr, tok.Decimals)
	if err != nil {
		return model.Balance{}, err
	}
	return model.Balance{Ticker: tickerFolded, Address: address, Avail: avail, Trans: trans}, nil
}

func (s *Brc20Store) PutBalance(ctx context.Context, b model.Balance) error {
	_, err := s.q.Exec(ctx, `
		INSERT INTO brc20.balances (ticker_folded, address, avail, trans)
		VALUES ($1, $2, $3::numeric, $4::numeric)
		ON CONFLICT (ticker_folded, address) DO UPDATE SET avail = EXCLUDED.avail, trans = EXCLUDED.trans`,
		b.Ticker, b.Address, b.Avail.Display(), b.Trans.Display())
	if err != nil {
		return err
	}
	return s.checkBalanceNonNegative(ctx, b.Ticker, b.Address)
}

// checkBalanceNonNegative enforces the commit-boundary invariant from
// spec §4.3/§8: avail, trans, and total must all be >= 0.
func (s *Brc20Store) checkBalanceNonNegative(ctx context.Context, ticker, address string) error {
	var avail, trans, total float64
	err := s.q.QueryRow(ctx, `SELECT avail, trans, total FROM brc20.balances WHERE ticker_folded = $1 AND address = $2`, ticker, address).
		Scan(&avail, &trans, &total)
	if err != nil {
		return err
	}
	if avail < 0 || trans < 0 || total < 0 {
		return fmt.Errorf("%w: balance %s/%s went negative (avail=%v trans=%v total=%v)", ErrInvariantViolation, ticker, address, avail, trans, total)
	}
	return nil
}

func (s *Brc20Store) AppendOp(ctx context.Context, op model.Op) error {
	_, err := s.q.Exec(ctx, `
		INSERT INTO brc20.ops (
			ticker_folded, operation, inscription_id, inscription_number, ordinal_number,
			block_height, block_hash, tx_id, tx_index, intra_tx_order, output, offset_sats,
			timestamp, address, to_address, amount
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16::numeric)`,
		op.Ticker, op.Operation, op.InscriptionID, op.InscriptionNumber, op.OrdinalNumber,
		op.BlockHeight, op.BlockHash, op.TxID, op.TxIndex, op.IntraTxOrder, op.Output, op.Offset,
		op.Timestamp, op.Address, op.ToAddress, op.Amount.Display())
	return err
}

// GetOp looks up a previously logged operation by its natural key, used by
// rollback to recover the exact (possibly clamped) amount that was applied
// so the reverse mutation is exact, not a re-derivation from the original
// wire request.
func (s *Brc20Store) GetOp(ctx context.Context, inscriptionID string, operation model.Operation) (*model.Op, error) {
	row := s.q.QueryRow(ctx, `
		SELECT ticker_folded, operation, inscription_id, inscription_number, ordinal_number,
		       block_height, block_hash, tx_id, tx_index, intra_tx_order, output, offset_sats,
		       timestamp, address, to_address, amount
		FROM brc20.ops WHERE inscription_id = $1 AND operation = $2`, inscriptionID, operation)
	var op model.Op
	var amountStr string
	err := row.Scan(&op.Ticker, &op.Operation, &op.InscriptionID, &op.InscriptionNumber, &op.OrdinalNumber,
		&op.BlockHeight, &op.BlockHash, &op.TxID, &op.TxIndex, &op.IntraTxOrder, &op.Output, &op.Offset,
		&op.Timestamp, &op.Address, &op.ToAddress, &amountStr)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get op %s/%s: %w", inscriptionID, operation, err)
	}
	tok, err := s.GetToken(ctx, op.Ticker)
	if err != nil {
		return nil, err
	}
	if tok == nil {
		return nil, fmt.Errorf("get op %s/%s: token %s no longer exists", inscriptionID, operation, op.Ticker)
	}
	if op.Amount, err = decimal.FromDecimalString(amountStr, tok.Decimals); err != nil {
		return nil, err
	}
	return &op, nil
}

func (s *Brc20Store) DeleteOp(ctx context.Context, inscriptionID string, operation model.Operation) error {
	_, err := s.q.Exec(ctx, `DELETE FROM brc20.ops WHERE inscription_id = $1 AND operation = $2`, inscriptionID, operation)
	return err
}

func (s *Brc20Store) PutBalanceSnapshot(ctx context.Context, snap model.BalanceSnapshot) error {
	_, err := s.q.Exec(ctx, `
		INSERT INTO brc20.balances_history (ticker_folded, address, block_height, avail, trans)
		VALUES ($1,$2,$3,$4::numeric,$5::numeric)
		ON CONFLICT (ticker_folded, address, block_height) DO UPDATE SET avail = EXCLUDED.avail, trans = EXCLUDED.trans`,
		snap.Ticker, snap.Address, snap.BlockHeight, snap.Avail.Display(), snap.Trans.Display())
	return err
}

func (s *Brc20Store) GetPendingTransfer(ctx context.Context, inscriptionID string) (*model.PendingTransfer, error) {
	tok, err := s.pendingToken(ctx, inscriptionID)
	if err != nil || tok == nil {
		return nil, err
	}
	row := s.q.QueryRow(ctx, `SELECT inscription_id, ticker_folded, amount, owner_address FROM brc20.pending_transfers WHERE inscription_id = $1`, inscriptionID)
	var p model.PendingTransfer
	var amountStr string
	if err := row.Scan(&p.InscriptionID, &p.Ticker, &amountStr, &p.OwnerAddress); err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get pending transfer %s: %w", inscriptionID, err)
	}
	if p.Amount, err = decimal.FromDecimalString(amountStr, tok.Decimals); err != nil {
		return nil, err
	}
	return &p, nil
}

// pendingToken resolves the token a pending transfer row belongs to, so its
// amount can be parsed at the right decimals scale.
func (s *Brc20Store) pendingToken(ctx context.Context, inscriptionID string) (*model.Token, error) {
	var ticker string
	err := s.q.QueryRow(ctx, `SELECT ticker_folded FROM brc20.pending_transfers WHERE inscription_id = $1`, inscriptionID).Scan(&ticker)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return s.GetToken(ctx, ticker)
}

func (s *Brc20Store) PutPendingTransfer(ctx context.Context, p model.PendingTransfer) error {
	_, err := s.q.Exec(ctx, `
		INSERT INTO brc20.pending_transfers (inscription_id, ticker_folded, amount, owner_address)
		VALUES ($1, $2, $3::numeric, $4)
		ON CONFLICT (inscription_id) DO UPDATE SET amount = EXCLUDED.amount, owner_address = EXCLUDED.owner_address`,
		p.InscriptionID, p.Ticker, p.Amount.Display(), p.OwnerAddress)
	return err
}

func (s *Brc20Store) DeletePendingTransfer(ctx context.Context, inscriptionID string) error {
	_, err := s.q.Exec(ctx, `DELETE FROM brc20.pending_transfers WHERE inscription_id = $1`, inscriptionID)
	return err
}
