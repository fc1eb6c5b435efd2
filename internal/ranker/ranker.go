// Package ranker implements the total-order comparator over participant
// states and the tie-aware rank-assignment and pagination rules of spec §4.2.
package ranker

import (
	"sort"

	"standings-replay-engine/internal/apierrors"
	"standings-replay-engine/internal/standings"
)

// Compare is the total order over participant states: higher totalPoints
// first, tie-broken by lower totalPenalty, tie-broken by smaller lastAcTime
// (null treated as +infinity). Returns <0 if a ranks before b, >0 if after,
// 0 if tied.
func Compare(a, b *standings.ParticipantState) int {
	if a.TotalPoints != b.TotalPoints {
		if a.TotalPoints > b.TotalPoints {
			return -1
		}
		return 1
	}
	if a.TotalPenalty != b.TotalPenalty {
		if a.TotalPenalty < b.TotalPenalty {
			return -1
		}
		return 1
	}
	aAc, bAc := lastAcOrInfinity(a), lastAcOrInfinity(b)
	if aAc != bAc {
		if aAc < bAc {
			return -1
		}
		return 1
	}
	return 0
}

const infinity = int(^uint(0) >> 1)

func lastAcOrInfinity(p *standings.ParticipantState) int {
	if p.LastAcTime == nil {
		return infinity
	}
	return *p.LastAcTime
}

// Ranked pairs a participant state with its assigned rank.
type Ranked struct {
	State *standings.ParticipantState
	Rank  int
}

// SortAndRank sorts participants by Compare and assigns standard competition
// ranks (1, 2, 2, 4, ...): the walk assigns S[0].rank = 1, and for i >= 1,
// ties with the predecessor inherit its rank, otherwise the rank is i+1.
func SortAndRank(participants []*standings.ParticipantState) []Ranked {
	sorted := make([]*standings.ParticipantState, len(participants))
	copy(sorted, participants)
	sort.SliceStable(sorted, func(i, j int) bool {
		return Compare(sorted[i], sorted[j]) < 0
	})

	out := make([]Ranked, len(sorted))
	for i, s := range sorted {
		rank := i + 1
		if i > 0 && Compare(sorted[i-1], s) == 0 {
			rank = out[i-1].Rank
		}
		out[i] = Ranked{State: s, Rank: rank}
	}
	return out
}

// Paginate slices a ranked, sorted sequence to [rankFrom, rankTo] (both
// 1-indexed, inclusive). rankTo <= 0 means "to end". It preserves the sorted
// order and assigned ranks without renumbering.
func Paginate(ranked []Ranked, rankFrom, rankTo int) ([]Ranked, error) {
	if rankFrom < 1 {
		return nil, apierrors.NewInputWrap(apierrors.TagInvalidRankRange, apierrors.ErrInvalidRank, "rankFrom must be >= 1, got %d", rankFrom)
	}
	if rankTo > 0 && rankTo < rankFrom {
		return nil, apierrors.NewInputWrap(apierrors.TagInvalidRankRange, apierrors.ErrInvalidRank, "rankTo (%d) must be >= rankFrom (%d)", rankTo, rankFrom)
	}

	total := len(ranked)
	start := rankFrom - 1
	if start >= total {
		return []Ranked{}, nil
	}
	end := total
	if rankTo > 0 && rankTo < end {
		end = rankTo
	}
	out := make([]Ranked, end-start)
	copy(out, ranked[start:end])
	return out, nil
}
