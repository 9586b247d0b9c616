package applier

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/rawblock/ordinals-index/internal/ordinals/model"
)

type memLedger struct {
	satoshis         map[int64]model.Satoshi
	inscriptions     map[string]model.Inscription
	locations        map[string]model.Location // key: ordinal|height|txindex
	currentLocations map[int64]model.CurrentLocation
	transfers        []model.InscriptionTransfer
	counters         map[string]int64
	countsByBlock    map[int64]model.CountsByBlock
}

func newMemLedger() *memLedger {
	return &memLedger{
		satoshis:         make(map[int64]model.Satoshi),
		inscriptions:     make(map[string]model.Inscription),
		locations:        make(map[string]model.Location),
		currentLocations: make(map[int64]model.CurrentLocation),
		counters:         make(map[string]int64),
		countsByBlock:    make(map[int64]model.CountsByBlock),
	}
}

func locKey(ordinal, height, txIndex int64) string {
	return stringKey(ordinal, height, txIndex)
}

func stringKey(parts ...int64) string {
	s := ""
	for i, p := range parts {
		if i > 0 {
			s += "|"
		}
		s += itoa(p)
	}
	return s
}

func itoa(n int64) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

func (m *memLedger) UpsertSatoshi(ctx context.Context, sat model.Satoshi) error {
	if _, ok := m.satoshis[sat.OrdinalNumber]; !ok {
		m.satoshis[sat.OrdinalNumber] = sat
	}
	return nil
}

func (m *memLedger) GetInscription(ctx context.Context, id string) (*model.Inscription, error) {
	insc, ok := m.inscriptions[id]
	if !ok {
		return nil, nil
	}
	return &insc, nil
}

func (m *memLedger) InsertInscription(ctx context.Context, insc model.Inscription) error {
	if _, ok := m.inscriptions[insc.InscriptionID]; ok {
		return errors.New("already exists")
	}
	m.inscriptions[insc.InscriptionID] = insc
	return nil
}

func (m *memLedger) DeleteInscription(ctx context.Context, id string) error {
	delete(m.inscriptions, id)
	return nil
}

func (m *memLedger) InsertParents(ctx context.Context, id string, parentIDs []string) error { return nil }
func (m *memLedger) InsertRecursions(ctx context.Context, id string, refIDs []string) error  { return nil }

func (m *memLedger) InsertLocation(ctx context.Context, loc model.Location) error {
	m.locations[locKey(loc.OrdinalNumber, loc.BlockHeight, loc.TxIndex)] = loc
	return nil
}

func (m *memLedger) DeleteLocation(ctx context.Context, ordinalNumber, blockHeight, txIndex int64) error {
	delete(m.locations, locKey(ordinalNumber, blockHeight, txIndex))
	return nil
}

func (m *memLedger) LatestLocationBefore(ctx context.Context, ordinalNumber, blockHeight, txIndex int64) (*model.Location, error) {
	var candidates []model.Location
	for _, loc := range m.locations {
		if loc.OrdinalNumber != ordinalNumber {
			continue
		}
		if loc.BlockHeight > blockHeight || (loc.BlockHeight == blockHeight && loc.TxIndex >= txIndex) {
			continue
		}
		candidates = append(candidates, loc)
	}
	if len(candidates) == 0 {
		return nil, nil
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].BlockHeight != candidates[j].BlockHeight {
			return candidates[i].BlockHeight > candidates[j].BlockHeight
		}
		return candidates[i].TxIndex > candidates[j].TxIndex
	})
	return &candidates[0], nil
}

func (m *memLedger) SetCurrentLocation(ctx context.Context, loc model.CurrentLocation) error {
	m.currentLocations[loc.OrdinalNumber] = loc
	return nil
}

func (m *memLedger) DeleteCurrentLocation(ctx context.Context, ordinalNumber int64) error {
	delete(m.currentLocations, ordinalNumber)
	return nil
}

func (m *memLedger) AppendInscriptionTransfer(ctx context.Context, t model.InscriptionTransfer) error {
	m.transfers = append(m.transfers, t)
	return nil
}

func (m *memLedger) DeleteInscriptionTransfer(ctx context.Context, inscriptionID string, blockHeight, txIndex int64) error {
	out := m.transfers[:0]
	for _, t := range m.transfers {
		if t.InscriptionID == inscriptionID && t.BlockHeight == blockHeight && t.TxIndex == txIndex {
			continue
		}
		out = append(out, t)
	}
	m.transfers = out
	return nil
}

func (m *memLedger) InscriptionIDsOnSat(ctx context.Context, ordinalNumber int64) ([]string, error) {
	var ids []string
	for id, insc := range m.inscriptions {
		if insc.OrdinalNumber == ordinalNumber {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (m *memLedger) IncrCounter(ctx context.Context, name, key string, delta int64) error {
	m.counters[name+"|"+key] += delta
	return nil
}

func (m *memLedger) IncrCountsByBlock(ctx context.Context, blockHeight int64, blockHash string, timestamp time.Time, delta int64) error {
	c := m.countsByBlock[blockHeight]
	c.BlockHeight = blockHeight
	c.BlockHash = blockHash
	c.Timestamp = timestamp
	c.InscriptionCount += delta
	c.InscriptionCountAccum += delta
	m.countsByBlock[blockHeight] = c
	return nil
}
