package transfer

import "github.com/dvloznov/ledger-consolidator/internal/domain"

// Pair is an accepted outbound/inbound couple.
type Pair struct {
	Out *domain.Transaction
	In  *domain.Transaction
}

// AcceptFunc reports whether two legs may form a transfer pair.
type AcceptFunc func(out, in *domain.Transaction) bool

// Matcher assigns outbound legs to inbound legs. Each leg appears in at most
// one returned pair.
type Matcher interface {
	Match(outbound, inbound []*domain.Transaction, accept AcceptFunc) []Pair
}

// Greedy pairs each outbound leg, in order, with the first unconsumed inbound
// leg that is accepted. It is not a globally optimal assignment: when several
// inbound legs qualify, the earliest scanned one wins even if a later one is a
// closer fit.
type Greedy struct{}

func (Greedy) Match(outbound, inbound []*domain.Transaction, accept AcceptFunc) []Pair {
	var pairs []Pair
	consumed := make([]bool, len(inbound))

	for _, out := range outbound {
		for j, in := range inbound {
			if consumed[j] {
				continue
			}
			if accept(out, in) {
				consumed[j] = true
				pairs = append(pairs, Pair{Out: out, In: in})
				break
			}
		}
	}
	return pairs
}
