package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rawblock/ordinals-index/internal/ordinals/model"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx, letting
// OrdinalsStore/Brc20Store run either directly against the pool (reads) or
// scoped to the reorg controller's per-block transaction (writes).
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconnCommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// pgconnCommandTag avoids importing pgconn just for the Exec return type;
// both *pgxpool.Pool and pgx.Tx return pgconn.CommandTag, which satisfies
// this alias structurally is not possible in Go, so querier is implemented
// via the adapter types below instead of asserted directly.
type pgconnCommandTag = interface{}

// poolQuerier and txQuerier adapt the concrete pgx types to querier,
// since pgconn.CommandTag (a struct) can't be hidden behind a plain
// interface{} return type and still satisfy Go's structural typing.
type poolQuerier struct{ pool *pgxpool.Pool }

func (p poolQuerier) Exec(ctx context.Context, sql string, args ...any) (pgconnCommandTag, error) {
	return p.pool.Exec(ctx, sql, args...)
}
func (p poolQuerier) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return p.pool.Query(ctx, sql, args...)
}
func (p poolQuerier) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return p.pool.QueryRow(ctx, sql, args...)
}

type txQuerier struct{ tx pgx.Tx }

func (t txQuerier) Exec(ctx context.Context, sql string, args ...any) (pgconnCommandTag, error) {
	return t.tx.Exec(ctx, sql, args...)
}
func (t txQuerier) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return t.tx.Query(ctx, sql, args...)
}
func (t txQuerier) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return t.tx.QueryRow(ctx, sql, args...)
}

// OrdinalsStore implements internal/ordinals/applier.Ledger plus the read
// paths the query layer (C6) needs, against the `ordinals` schema.
type OrdinalsStore struct {
	q querier
}

// OrdinalsStoreTx scopes an OrdinalsStore to a single block's transaction.
func OrdinalsStoreTx(tx pgx.Tx) *OrdinalsStore {
	return &OrdinalsStore{q: txQuerier{tx: tx}}
}

func (s *OrdinalsStore) UpsertSatoshi(ctx context.Context, sat model.Satoshi) error {
	_, err := s.q.Exec(ctx, `
		INSERT INTO ordinals.satoshis (ordinal_number, rarity, coinbase_height)
		VALUES ($1, $2, $3)
		ON CONFLICT (ordinal_number) DO NOTHING`,
		sat.OrdinalNumber, sat.Rarity, sat.CoinbaseHeight)
	return err
}

func (s *OrdinalsStore) GetInscription(ctx context.Context, inscriptionID string) (*model.Inscription, error) {
	row := s.q.QueryRow(ctx, `
		SELECT inscription_id, ordinal_number, number, classic_number, block_height, block_hash,
		       tx_id, tx_index, address, mime_type, content_type, content_length, fee,
		       curse_type, input_index, pointer, metadata, metaprotocol, delegate, timestamp, charms
		FROM ordinals.inscriptions WHERE inscription_id = $1`, inscriptionID)
	return scanInscription(row)
}

// GetInscriptionByNumber resolves an inscription by its signed sequential
// number (classic_number for negative/cursed lookups is not distinguished
// here; callers distinguish by sign per spec §3).
func (s *OrdinalsStore) GetInscriptionByNumber(ctx context.Context, number int64) (*model.Inscription, error) {
	row := s.q.QueryRow(ctx, `
		SELECT inscription_id, ordinal_number, number, classic_number, block_height, block_hash,
		       tx_id, tx_index, address, mime_type, content_type, content_length, fee,
		       curse_type, input_index, pointer, metadata, metaprotocol, delegate, timestamp, charms
		FROM ordinals.inscriptions WHERE number = $1`, number)
	return scanInscription(row)
}

func scanInscription(row pgx.Row) (*model.Inscription, error) {
	var insc model.Inscription
	var charms int16
	err := row.Scan(&insc.InscriptionID, &insc.OrdinalNumber, &insc.Number, &insc.ClassicNumber,
		&insc.BlockHeight, &insc.BlockHash, &insc.TxID, &insc.TxIndex, &insc.Address, &insc.MimeType,
		&insc.ContentType, &insc.ContentLength, &insc.Fee, &insc.CurseType, &insc.InputIndex,
		&insc.Pointer, &insc.Metadata, &insc.Metaprotocol, &insc.Delegate, &insc.Timestamp, &charms)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan inscription: %w", err)
	}
	insc.Charms = model.Charms(charms)
	return &insc, nil
}

// InscriptionFilter narrows ListInscriptions; zero values are unfiltered.
type InscriptionFilter struct {
	Address    string
	MimeType   string
	Rarity     string
	Limit      int
	Offset     int
}

// ListInscriptions returns a page of inscriptions ordered by genesis
// sequence (block_height, tx_index), newest first, plus the total row
// count matching the filter -- backing GET /v1/inscriptions (spec §6).
func (s *OrdinalsStore) ListInscriptions(ctx context.Context, f InscriptionFilter) ([]model.Inscription, int64, error) {
	where := "WHERE 1=1"
	args := []any{}
	if f.Address != "" {
		args = append(args, f.Address)
		where += fmt.Sprintf(" AND i.address = $%d", len(args))
	}
	if f.MimeType != "" {
		args = append(args, f.MimeType)
		where += fmt.Sprintf(" AND i.mime_type = $%d", len(args))
	}
	if f.Rarity != "" {
		args = append(args, f.Rarity)
		where += fmt.Sprintf(" AND s.rarity = $%d", len(args))
	}

	var total int64
	countSQL := fmt.Sprintf(`
		SELECT COUNT(*) FROM ordinals.inscriptions i
		LEFT JOIN ordinals.satoshis s ON s.ordinal_number = i.ordinal_number %s`, where)
	if err := s.q.QueryRow(ctx, countSQL, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count inscriptions: %w", err)
	}

	limit, offset := pageBounds(f.Limit, f.Offset)
	args = append(args, limit, offset)
	listSQL := fmt.Sprintf(`
		SELECT i.inscription_id, i.ordinal_number, i.number, i.classic_number, i.block_height,
		       i.block_hash, i.tx_id, i.tx_index, i.address, i.mime_type, i.content_type,
		       i.content_length, i.fee, i.curse_type, i.input_index, i.pointer, i.metadata,
		       i.metaprotocol, i.delegate, i.timestamp, i.charms
		FROM ordinals.inscriptions i
		LEFT JOIN ordinals.satoshis s ON s.ordinal_number = i.ordinal_number %s
		ORDER BY i.block_height DESC, i.tx_index DESC
		LIMIT $%d OFFSET $%d`, where, len(args)-1, len(args))
	rows, err := s.q.Query(ctx, listSQL, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list inscriptions: %w", err)
	}
	defer rows.Close()

	var out []model.Inscription
	for rows.Next() {
		var insc model.Inscription
		var charms int16
		if err := rows.Scan(&insc.InscriptionID, &insc.OrdinalNumber, &insc.Number, &insc.ClassicNumber,
			&insc.BlockHeight, &insc.BlockHash, &insc.TxID, &insc.TxIndex, &insc.Address, &insc.MimeType,
			&insc.ContentType, &insc.ContentLength, &insc.Fee, &insc.CurseType, &insc.InputIndex,
			&insc.Pointer, &insc.Metadata, &insc.Metaprotocol, &insc.Delegate, &insc.Timestamp, &charms); err != nil {
			return nil, 0, fmt.Errorf("scan inscription row: %w", err)
		}
		insc.Charms = model.Charms(charms)
		out = append(out, insc)
	}
	return out, total, rows.Err()
}

// pageBounds clamps limit/offset to sane defaults (spec §6 pagination).
func pageBounds(limit, offset int) (int, int) {
	if limit <= 0 || limit > 200 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func (s *OrdinalsStore) InsertInscription(ctx context.Context, insc model.Inscription) error {
	_, err := s.q.Exec(ctx, `
		INSERT INTO ordinals.inscriptions (
			inscription_id, ordinal_number, number, classic_number, block_height, block_hash,
			tx_id, tx_index, address, mime_type, content_type, content_length, content, fee,
			curse_type, input_index, pointer, metadata, metaprotocol, delegate, charms, timestamp
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22)`,
		insc.InscriptionID, insc.OrdinalNumber, insc.Number, insc.ClassicNumber, insc.BlockHeight,
		insc.BlockHash, insc.TxID, insc.TxIndex, insc.Address, insc.MimeType, insc.ContentType,
		insc.ContentLength, insc.Content, insc.Fee, insc.CurseType, insc.InputIndex, insc.Pointer, insc.Metadata,
		insc.Metaprotocol, insc.Delegate, int16(insc.Charms), insc.Timestamp)
	if err != nil {
		return fmt.Errorf("insert inscription %s: %w", insc.InscriptionID, err)
	}
	return nil
}

// GetInscriptionContent returns the raw inscribed content bytes and its
// content-type, or (nil, "", nil) if the inscription has no content row --
// backing GET /v1/inscriptions/{id}/content (spec §6).
func (s *OrdinalsStore) GetInscriptionContent(ctx context.Context, inscriptionID string) ([]byte, string, error) {
	row := s.q.QueryRow(ctx, `SELECT content, content_type FROM ordinals.inscriptions WHERE inscription_id = $1`, inscriptionID)
	var content []byte
	var contentType string
	err := row.Scan(&content, &contentType)
	if err == pgx.ErrNoRows {
		return nil, "", nil
	}
	if err != nil {
		return nil, "", fmt.Errorf("get inscription content %s: %w", inscriptionID, err)
	}
	return content, contentType, nil
}

func (s *OrdinalsStore) DeleteInscription(ctx context.Context, inscriptionID string) error {
	_, err := s.q.Exec(ctx, `DELETE FROM ordinals.inscriptions WHERE inscription_id = $1`, inscriptionID)
	return err
}

func (s *OrdinalsStore) InsertParents(ctx context.Context, inscriptionID string, parentIDs []string) error {
	for _, parentID := range parentIDs {
		_, err := s.q.Exec(ctx, `
			INSERT INTO ordinals.inscription_parents (inscription_id, parent_inscription_id)
			VALUES ($1, $2) ON CONFLICT DO NOTHING`, inscriptionID, parentID)
		if err != nil {
			return fmt.Errorf("insert parent ref %s -> %s: %w", inscriptionID, parentID, err)
		}
	}
	return nil
}

func (s *OrdinalsStore) InsertRecursions(ctx context.Context, inscriptionID string, refIDs []string) error {
	for _, refID := range refIDs {
		_, err := s.q.Exec(ctx, `
			INSERT INTO ordinals.inscription_recursions (inscription_id, ref_inscription_id)
			VALUES ($1, $2) ON CONFLICT DO NOTHING`, inscriptionID, refID)
		if err != nil {
			return fmt.Errorf("insert recursion ref %s -> %s: %w", inscriptionID, refID, err)
		}
	}
	return nil
}

func (s *OrdinalsStore) InsertLocation(ctx context.Context, loc model.Location) error {
	_, err := s.q.Exec(ctx, `
		INSERT INTO ordinals.locations (
			ordinal_number, block_height, tx_index, tx_id, block_hash, address, output,
			offset_sats, prev_output, prev_offset, value_sats, transfer_type, timestamp
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
		ON CONFLICT (ordinal_number, block_height, tx_index) DO NOTHING`,
		loc.OrdinalNumber, loc.BlockHeight, loc.TxIndex, loc.TxID, loc.BlockHash, loc.Address,
		loc.Output, loc.Offset, loc.PrevOutput, loc.PrevOffset, loc.Value, loc.TransferType, loc.Timestamp)
	return err
}

func (s *OrdinalsStore) DeleteLocation(ctx context.Context, ordinalNumber, blockHeight, txIndex int64) error {
	_, err := s.q.Exec(ctx, `
		DELETE FROM ordinals.locations WHERE ordinal_number = $1 AND block_height = $2 AND tx_index = $3`,
		ordinalNumber, blockHeight, txIndex)
	return err
}

func (s *OrdinalsStore) LatestLocationBefore(ctx context.Context, ordinalNumber, blockHeight, txIndex int64) (*model.Location, error) {
	row := s.q.QueryRow(ctx, `
		SELECT ordinal_number, block_height, tx_index, tx_id, block_hash, address, output,
		       offset_sats, prev_output, prev_offset, value_sats, transfer_type, timestamp
		FROM ordinals.locations
		WHERE ordinal_number = $1 AND (block_height, tx_index) < ($2, $3)
		ORDER BY block_height DESC, tx_index DESC
		LIMIT 1`, ordinalNumber, blockHeight, txIndex)
	var loc model.Location
	err := row.Scan(&loc.OrdinalNumber, &loc.BlockHeight, &loc.TxIndex, &loc.TxID, &loc.BlockHash,
		&loc.Address, &loc.Output, &loc.Offset, &loc.PrevOutput, &loc.PrevOffset, &loc.Value,
		&loc.TransferType, &loc.Timestamp)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest location before (%d,%d) for sat %d: %w", blockHeight, txIndex, ordinalNumber, err)
	}
	return &loc, nil
}

func (s *OrdinalsStore) SetCurrentLocation(ctx context.Context, loc model.CurrentLocation) error {
	_, err := s.q.Exec(ctx, `
		INSERT INTO ordinals.current_locations (
			ordinal_number, block_height, tx_index, tx_id, block_hash, address, output,
			offset_sats, value_sats, transfer_type, timestamp
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		ON CONFLICT (ordinal_number) DO UPDATE SET
			block_height = EXCLUDED.block_height, tx_index = EXCLUDED.tx_index,
			tx_id = EXCLUDED.tx_id, block_hash = EXCLUDED.block_hash, address = EXCLUDED.address,
			output = EXCLUDED.output, offset_sats = EXCLUDED.offset_sats, value_sats = EXCLUDED.value_sats,
			transfer_type = EXCLUDED.transfer_type, timestamp = EXCLUDED.timestamp`,
		loc.OrdinalNumber, loc.BlockHeight, loc.TxIndex, loc.TxID, loc.BlockHash, loc.Address,
		loc.Output, loc.Offset, loc.Value, loc.TransferType, loc.Timestamp)
	return err
}

func (s *OrdinalsStore) DeleteCurrentLocation(ctx context.Context, ordinalNumber int64) error {
	_, err := s.q.Exec(ctx, `DELETE FROM ordinals.current_locations WHERE ordinal_number = $1`, ordinalNumber)
	return err
}

// GetCurrentLocation returns the live (sat, block, tx, address) projection,
// or nil if the sat has never carried an inscription -- backing
// GET /v1/sats/{ordinal} and the inscription "location" field.
func (s *OrdinalsStore) GetCurrentLocation(ctx context.Context, ordinalNumber int64) (*model.CurrentLocation, error) {
	row := s.q.QueryRow(ctx, `
		SELECT ordinal_number, block_height, tx_index, tx_id, block_hash, address, output,
		       offset_sats, value_sats, transfer_type, timestamp
		FROM ordinals.current_locations WHERE ordinal_number = $1`, ordinalNumber)
	var loc model.CurrentLocation
	err := row.Scan(&loc.OrdinalNumber, &loc.BlockHeight, &loc.TxIndex, &loc.TxID, &loc.BlockHash,
		&loc.Address, &loc.Output, &loc.Offset, &loc.Value, &loc.TransferType, &loc.Timestamp)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get current location for sat %d: %w", ordinalNumber, err)
	}
	return &loc, nil
}

// InscriptionsOnSat lists every inscription currently residing on a sat
// (reinscriptions included), newest genesis first -- backing
// GET /v1/sats/{ordinal}/inscriptions.
func (s *OrdinalsStore) InscriptionsOnSat(ctx context.Context, ordinalNumber int64) ([]model.Inscription, error) {
	rows, err := s.q.Query(ctx, `
		SELECT inscription_id, ordinal_number, number, classic_number, block_height, block_hash,
		       tx_id, tx_index, address, mime_type, content_type, content_length, fee,
		       curse_type, input_index, pointer, metadata, metaprotocol, delegate, timestamp, charms
		FROM ordinals.inscriptions WHERE ordinal_number = $1 ORDER BY block_height DESC, tx_index DESC`, ordinalNumber)
	if err != nil {
		return nil, fmt.Errorf("inscriptions on sat %d: %w", ordinalNumber, err)
	}
	defer rows.Close()
	var out []model.Inscription
	for rows.Next() {
		insc, err := scanInscriptionRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *insc)
	}
	return out, rows.Err()
}

func scanInscriptionRows(rows pgx.Rows) (*model.Inscription, error) {
	var insc model.Inscription
	var charms int16
	if err := rows.Scan(&insc.InscriptionID, &insc.OrdinalNumber, &insc.Number, &insc.ClassicNumber,
		&insc.BlockHeight, &insc.BlockHash, &insc.TxID, &insc.TxIndex, &insc.Address, &insc.MimeType,
		&insc.ContentType, &insc.ContentLength, &insc.Fee, &insc.CurseType, &insc.InputIndex,
		&insc.Pointer, &insc.Metadata, &insc.Metaprotocol, &insc.Delegate, &insc.Timestamp, &charms); err != nil {
		return nil, fmt.Errorf("scan inscription row: %w", err)
	}
	insc.Charms = model.Charms(charms)
	return &insc, nil
}

// ListInscriptionTransfers returns the append-only transfer log for one
// inscription, oldest first -- backing GET /v1/inscriptions/{id}/transfers.
func (s *OrdinalsStore) ListInscriptionTransfers(ctx context.Context, inscriptionID string) ([]model.InscriptionTransfer, error) {
	rows, err := s.q.Query(ctx, `
		SELECT inscription_id, number, ordinal_number, block_height, tx_index,
		       from_block_height, from_tx_index, block_transfer_index
		FROM ordinals.inscription_transfers
		WHERE inscription_id = $1
		ORDER BY block_height ASC, tx_index ASC`, inscriptionID)
	if err != nil {
		return nil, fmt.Errorf("list transfers for %s: %w", inscriptionID, err)
	}
	defer rows.Close()
	var out []model.InscriptionTransfer
	for rows.Next() {
		var t model.InscriptionTransfer
		if err := rows.Scan(&t.InscriptionID, &t.Number, &t.OrdinalNumber, &t.BlockHeight, &t.TxIndex,
			&t.FromBlockHeight, &t.FromTxIndex, &t.BlockTransferIndex); err != nil {
			return nil, fmt.Errorf("scan transfer row: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// ListTransfersByHeight returns every transfer that landed in one block,
// ordered by the block-local transfer sequence -- backing
// GET /v1/inscriptions/transfers?block={height}.
func (s *OrdinalsStore) ListTransfersByHeight(ctx context.Context, height int64) ([]model.InscriptionTransfer, error) {
	rows, err := s.q.Query(ctx, `
		SELECT inscription_id, number, ordinal_number, block_height, tx_index,
		       from_block_height, from_tx_index, block_transfer_index
		FROM ordinals.inscription_transfers
		WHERE block_height = $1
		ORDER BY block_transfer_index ASC`, height)
	if err != nil {
		return nil, fmt.Errorf("list transfers for block %d: %w", height, err)
	}
	defer rows.Close()
	var out []model.InscriptionTransfer
	for rows.Next() {
		var t model.InscriptionTransfer
		if err := rows.Scan(&t.InscriptionID, &t.Number, &t.OrdinalNumber, &t.BlockHeight, &t.TxIndex,
			&t.FromBlockHeight, &t.FromTxIndex, &t.BlockTransferIndex); err != nil {
			return nil, fmt.Errorf("scan transfer row: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// ListTransfersByHash resolves a block hash to a height via counts_by_block
// and delegates to ListTransfersByHeight -- backing the
// ?block={hash} form of the same endpoint.
func (s *OrdinalsStore) ListTransfersByHash(ctx context.Context, hash string) ([]model.InscriptionTransfer, error) {
	var height int64
	err := s.q.QueryRow(ctx, `SELECT block_height FROM ordinals.counts_by_block WHERE block_hash = $1`, hash).Scan(&height)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("resolve block hash %s: %w", hash, err)
	}
	return s.ListTransfersByHeight(ctx, height)
}

// ListCountsByBlock returns a page of the denormalised per-block counts,
// optionally bounded by [fromHeight, toHeight] (either may be zero to
// leave that bound open) -- backing GET /v1/stats/inscriptions.
func (s *OrdinalsStore) ListCountsByBlock(ctx context.Context, fromHeight, toHeight int64, limit, offset int) ([]model.CountsByBlock, int64, error) {
	where := "WHERE 1=1"
	args := []any{}
	if fromHeight > 0 {
		args = append(args, fromHeight)
		where += fmt.Sprintf(" AND block_height >= $%d", len(args))
	}
	if toHeight > 0 {
		args = append(args, toHeight)
		where += fmt.Sprintf(" AND block_height <= $%d", len(args))
	}

	var total int64
	countSQL := fmt.Sprintf(`SELECT COUNT(*) FROM ordinals.counts_by_block %s`, where)
	if err := s.q.QueryRow(ctx, countSQL, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count counts_by_block: %w", err)
	}

	lim, off := pageBounds(limit, offset)
	args = append(args, lim, off)
	listSQL := fmt.Sprintf(`
		SELECT block_height, inscription_count, inscription_count_accum, block_hash, timestamp
		FROM ordinals.counts_by_block %s
		ORDER BY block_height DESC
		LIMIT $%d OFFSET $%d`, where, len(args)-1, len(args))
	rows, err := s.q.Query(ctx, listSQL, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list counts_by_block: %w", err)
	}
	defer rows.Close()
	var out []model.CountsByBlock
	for rows.Next() {
		var c model.CountsByBlock
		if err := rows.Scan(&c.BlockHeight, &c.InscriptionCount, &c.InscriptionCountAccum, &c.BlockHash, &c.Timestamp); err != nil {
			return nil, 0, fmt.Errorf("scan counts_by_block row: %w", err)
		}
		out = append(out, c)
	}
	return out, total, rows.Err()
}

// CounterTotals returns every key and count for one counter family
// (counts_by_mime_type, counts_by_sat_rarity, counts_by_type, ...),
// backing the breakdown maps in GET /v1/stats/inscriptions.
func (s *OrdinalsStore) CounterTotals(ctx context.Context, counterName string) (map[string]int64, error) {
	rows, err := s.q.Query(ctx, `SELECT key, count FROM ordinals.counters WHERE counter_name = $1`, counterName)
	if err != nil {
		return nil, fmt.Errorf("counter totals %s: %w", counterName, err)
	}
	defer rows.Close()
	out := make(map[string]int64)
	for rows.Next() {
		var key string
		var count int64
		if err := rows.Scan(&key, &count); err != nil {
			return nil, fmt.Errorf("scan counter row: %w", err)
		}
		out[key] = count
	}
	return out, rows.Err()
}

// TotalInscriptions returns |inscriptions|, the figure every counter family
// in CounterTotals must sum to per spec §8's universal invariant.
func (s *OrdinalsStore) TotalInscriptions(ctx context.Context) (int64, error) {
	var total int64
	err := s.q.QueryRow(ctx, `SELECT COUNT(*) FROM ordinals.inscriptions`).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("total inscriptions: %w", err)
	}
	return total, nil
}

// MaxBlessedNumber and MinCursedNumber report the tip of each numbering
// line -- backing the status surface (C9). Cursed numbers run negative and
// decrease monotonically, so the "max" cursed inscription is the one with
// the most negative number.
func (s *OrdinalsStore) MaxBlessedNumber(ctx context.Context) (int64, error) {
	var n int64
	err := s.q.QueryRow(ctx, `SELECT COALESCE(MAX(classic_number), -1) FROM ordinals.inscriptions WHERE classic_number >= 0`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("max blessed number: %w", err)
	}
	return n, nil
}

func (s *OrdinalsStore) MinCursedNumber(ctx context.Context) (int64, error) {
	var n int64
	err := s.q.QueryRow(ctx, `SELECT COALESCE(MIN(number), 0) FROM ordinals.inscriptions WHERE number < 0`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("min cursed number: %w", err)
	}
	return n, nil
}

func (s *OrdinalsStore) AppendInscriptionTransfer(ctx context.Context, t model.InscriptionTransfer) error {
	_, err := s.q.Exec(ctx, `
		INSERT INTO ordinals.inscription_transfers (
			inscription_id, number, ordinal_number, block_height, tx_index,
			from_block_height, from_tx_index, block_transfer_index
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		ON CONFLICT (inscription_id, block_height, tx_index) DO NOTHING`,
		t.InscriptionID, t.Number, t.OrdinalNumber, t.BlockHeight, t.TxIndex,
		t.FromBlockHeight, t.FromTxIndex, t.BlockTransferIndex)
	return err
}

func (s *OrdinalsStore) DeleteInscriptionTransfer(ctx context.Context, inscriptionID string, blockHeight, txIndex int64) error {
	_, err := s.q.Exec(ctx, `
		DELETE FROM ordinals.inscription_transfers
		WHERE inscription_id = $1 AND block_height = $2 AND tx_index = $3`,
		inscriptionID, blockHeight, txIndex)
	return err
}

func (s *OrdinalsStore) InscriptionIDsOnSat(ctx context.Context, ordinalNumber int64) ([]string, error) {
	rows, err := s.q.Query(ctx, `SELECT inscription_id FROM ordinals.inscriptions WHERE ordinal_number = $1`, ordinalNumber)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *OrdinalsStore) IncrCounter(ctx context.Context, name, key string, delta int64) error {
	_, err := s.q.Exec(ctx, `
		INSERT INTO ordinals.counters (counter_name, key, count)
		VALUES ($1, $2, $3)
		ON CONFLICT (counter_name, key) DO UPDATE SET count = ordinals.counters.count + EXCLUDED.count`,
		name, key, delta)
	if err != nil {
		return err
	}
	return s.checkCounterNonNegative(ctx, name, key)
}

// checkCounterNonNegative enforces spec §4.1's "derived counts never
// decrement below zero" invariant; a negative result is fatal.
func (s *OrdinalsStore) checkCounterNonNegative(ctx context.Context, name, key string) error {
	var count int64
	err := s.q.QueryRow(ctx, `SELECT count FROM ordinals.counters WHERE counter_name = $1 AND key = $2`, name, key).Scan(&count)
	if err != nil {
		return err
	}
	if count < 0 {
		return fmt.Errorf("%w: counter %s/%s went negative (%d)", ErrInvariantViolation, name, key, count)
	}
	return nil
}

func (s *OrdinalsStore) IncrCountsByBlock(ctx context.Context, blockHeight int64, blockHash string, timestamp time.Time, delta int64) error {
	_, err := s.q.Exec(ctx, `
		INSERT INTO ordinals.counts_by_block (block_height, inscription_count, inscription_count_accum, block_hash, timestamp)
		VALUES ($1, $2, $2, $3, $4)
		ON CONFLICT (block_height) DO UPDATE SET
			inscription_count = ordinals.counts_by_block.inscription_count + EXCLUDED.inscription_count,
			block_hash = EXCLUDED.block_hash, timestamp = EXCLUDED.timestamp`,
		blockHeight, delta, blockHash, timestamp)
	if err != nil {
		return err
	}
	return s.refreshAccum(ctx, blockHeight)
}

// refreshAccum recomputes the running total up to and including
// blockHeight, keeping inscription_count_accum monotone non-decreasing
// (spec §8 universal invariant).
func (s *OrdinalsStore) refreshAccum(ctx context.Context, blockHeight int64) error {
	_, err := s.q.Exec(ctx, `
		UPDATE ordinals.counts_by_block SET inscription_count_accum = sub.running
		FROM (
			SELECT block_height, SUM(inscription_count) OVER (ORDER BY block_height) AS running
			FROM ordinals.counts_by_block
		) AS sub
		WHERE ordinals.counts_by_block.block_height = sub.block_height AND sub.block_height >= $1 - 1`,
		blockHeight)
	return err
}

// ErrInvariantViolation is fatal per spec §7 kind 4.
var ErrInvariantViolation = fmt.Errorf("db: invariant violation")
