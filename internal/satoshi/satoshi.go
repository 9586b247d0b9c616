// Package satoshi implements the pure, deterministic derivations over an
// ordinal number: rarity, coinbase height, cycle/epoch/period, and the
// human-readable decimal/degree/percentile/name representations.
//
// Every function here is a pure computation over its inputs — no I/O, no
// shared state — so the package is exhaustively covered by table-driven
// tests rather than integration tests.
package satoshi

import (
	"errors"
	"fmt"
	"math/big"
	"strings"
)

// MaxOrdinal is the highest valid ordinal number: the total number of sats
// the subsidy schedule ever issues (2,099,999,997,690,000), minus one.
const MaxOrdinal = 2_099_999_997_689_999

// SubsidyHalvingInterval is the number of blocks between subsidy halvings.
const SubsidyHalvingInterval = 210_000

// DifficultyAdjustmentInterval is the number of blocks in a difficulty period.
const DifficultyAdjustmentInterval = 2_016

// BlocksPerCycle is the number of blocks in one cycle (six halving epochs).
const BlocksPerCycle = SubsidyHalvingInterval * 6

// ErrInvalidSatRange is returned when an ordinal number falls outside
// [0, MaxOrdinal].
var ErrInvalidSatRange = errors.New("ordinal number out of range")

// Rarity is the sat rarity classification from spec §4.5.
type Rarity string

const (
	RarityCommon    Rarity = "common"
	RarityUncommon  Rarity = "uncommon"
	RarityRare      Rarity = "rare"
	RarityEpic      Rarity = "epic"
	RarityLegendary Rarity = "legendary"
	RarityMythic    Rarity = "mythic"
)

// Sat holds every derivation for a single ordinal number.
type Sat struct {
	Number         int64  `json:"number"`
	CoinbaseHeight int64  `json:"coinbaseHeight"`
	Epoch          int64  `json:"epoch"`
	Period         int64  `json:"period"`
	Cycle          int64  `json:"cycle"`
	Offset         int64  `json:"offset"`
	Rarity         Rarity `json:"rarity"`
	Decimal        string `json:"decimal"`
	Degree         string `json:"degree"`
	Percentile     string `json:"percentile"`
	Name           string `json:"name"`
}

// subsidyAt returns the block subsidy, in sats, for the given epoch.
// Epoch 0 = 5,000,000,000; it halves every epoch until it reaches zero.
func subsidyAt(epoch int64) int64 {
	if epoch >= 64 {
		return 0
	}
	return 5_000_000_000 >> uint(epoch)
}

// blockStartingSat returns the ordinal number of the first sat mined in
// the coinbase transaction of the given block height.
func blockStartingSat(height int64) int64 {
	var start int64
	epoch := height / SubsidyHalvingInterval
	// Sum whole epochs before the one containing `height`.
	for e := int64(0); e < epoch; e++ {
		start += SubsidyHalvingInterval * subsidyAt(e)
	}
	remaining := height % SubsidyHalvingInterval
	start += remaining * subsidyAt(epoch)
	return start
}

// Derive computes every field of Sat for the given ordinal number.
func Derive(number int64) (Sat, error) {
	if number < 0 || number > MaxOrdinal {
		return Sat{}, fmt.Errorf("%w: %d", ErrInvalidSatRange, number)
	}

	height := coinbaseHeight(number)
	epoch := height / SubsidyHalvingInterval
	period := height / DifficultyAdjustmentInterval
	cycle := epoch / 6

	blockStart := blockStartingSat(height)
	offset := number - blockStart

	return Sat{
		Number:         number,
		CoinbaseHeight: height,
		Epoch:          epoch,
		Period:         period,
		Cycle:          cycle,
		Offset:         offset,
		Rarity:         rarityOf(number, height, epoch, period, offset),
		Decimal:        fmt.Sprintf("%d.%d", height, offset),
		Degree:         degreeOf(cycle, epoch, period, height, offset),
		Percentile:     percentileOf(number),
		Name:           nameOf(number),
	}, nil
}

// coinbaseHeight returns the block height that first minted `number`.
func coinbaseHeight(number int64) int64 {
	epoch, epochStart, epochSats := int64(0), int64(0), int64(0)
	for {
		subsidy := subsidyAt(epoch)
		epochSats = subsidy * SubsidyHalvingInterval
		if subsidy == 0 || epochStart+epochSats > number {
			break
		}
		epochStart += epochSats
		epoch++
	}
	subsidy := subsidyAt(epoch)
	if subsidy == 0 {
		// Beyond the last halving: every remaining block has zero subsidy,
		// so the sat is pinned to the first block of the epoch.
		return epoch * SubsidyHalvingInterval
	}
	within := (number - epochStart) / subsidy
	return epoch*SubsidyHalvingInterval + within
}

func rarityOf(number, height, epoch, period, offset int64) Rarity {
	switch {
	case number == 0:
		return RarityMythic
	case offset == 0 && height%BlocksPerCycle == 0:
		return RarityLegendary
	case offset == 0 && height%SubsidyHalvingInterval == 0:
		return RarityEpic
	case offset == 0 && height%DifficultyAdjustmentInterval == 0:
		return RarityRare
	case offset == 0:
		return RarityUncommon
	default:
		return RarityCommon
	}
}

func degreeOf(cycle, epoch, period, height, offset int64) string {
	epochBlockInCycle := height - cycle*BlocksPerCycle
	periodBlockInEpoch := height % DifficultyAdjustmentInterval
	return fmt.Sprintf("%d°%d′%d″%d‴", cycle, epochBlockInCycle, periodBlockInEpoch, offset)
}

// percentileOf formats the ordinal's position in the total supply as a
// percentage with 17 significant digits, matching spec §4.5/§8 scenario 6.
func percentileOf(number int64) string {
	num := new(big.Float).SetPrec(200).SetInt64(number)
	num.Mul(num, big.NewFloat(100))
	denom := new(big.Float).SetPrec(200).SetInt64(MaxOrdinal)
	pct := new(big.Float).SetPrec(200).Quo(num, denom)
	return pct.Text('f', 17) + "%"
}

// base26Alphabet is used by nameOf; it only ever uses the low 26 letters.
const base26Alphabet = "abcdefghijklmnopqrstuvwxyz"

// nameOf encodes MaxOrdinal-number in base 26 (a-z), matching the
// upstream ord naming scheme: higher ordinal numbers get shorter names.
func nameOf(number int64) string {
	n := MaxOrdinal - number
	if n == 0 {
		return string(base26Alphabet[0])
	}
	var b strings.Builder
	// This is a bijective base-26 system (no digit "zero"): each position
	// contributes a letter from a-z and then the value is reduced by one
	// before dividing, so "a" is never dropped from interior positions.
	for n >= 0 {
		b.WriteByte(base26Alphabet[n%26])
		n = n/26 - 1
		if n < 0 {
			break
		}
	}
	// Reverse.
	s := []byte(b.String())
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
	return string(s)
}
