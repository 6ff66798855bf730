// Package transfer finds money moved by the owner between their own accounts
// at different institutions and labels both legs "Internal Transfer".
package transfer

import (
	"strings"

	"github.com/dvloznov/ledger-consolidator/internal/config"
	"github.com/dvloznov/ledger-consolidator/internal/domain"
	"github.com/shopspring/decimal"
)

// Identity is the account owner as it appears in statement text.
type Identity struct {
	Name       string
	NationalID string
}

// Params are the matching tolerances.
type Params struct {
	ValueTolerance  decimal.Decimal
	DayWindow       int
	GenericPatterns []string
}

// DefaultParams returns a 0.01 tolerance, a 3 day window and the stock
// generic transfer phrases.
func DefaultParams() Params {
	return Params{
		ValueTolerance:  decimal.New(1, -2),
		DayWindow:       3,
		GenericPatterns: config.DefaultGenericTransferPatterns,
	}
}

// Result describes what a detection pass changed.
type Result struct {
	SelfIdentified int // phase 1 relabels
	PairsMatched   int // phase 2 accepted pairs
	Demoted        int // phase 3 rows returned to PIX Sent/Received
	Relabeled      int // distinct rows set to Internal Transfer by phase 1 or 2
	Final          int // rows labelled Internal Transfer after phase 3

	PairIDs      [][2]string // phase 2 pairs as (outbound ID, inbound ID)
	RelabeledIDs []string
	DemotedIDs   []string
}

// Detector runs the three detection phases over a ledger.
type Detector struct {
	name    string
	id      string
	params  Params
	generic []string
	matcher Matcher
}

// NewDetector returns a detector using the greedy matcher.
func NewDetector(identity Identity, params Params) *Detector {
	return NewDetectorWithMatcher(identity, params, Greedy{})
}

// NewDetectorWithMatcher returns a detector using the given pair matcher.
func NewDetectorWithMatcher(identity Identity, params Params, m Matcher) *Detector {
	generic := make([]string, 0, len(params.GenericPatterns))
	for _, p := range params.GenericPatterns {
		if p = strings.ToUpper(strings.TrimSpace(p)); p != "" {
			generic = append(generic, p)
		}
	}
	return &Detector{
		name:    strings.ToUpper(strings.TrimSpace(identity.Name)),
		id:      strings.ToUpper(strings.TrimSpace(identity.NationalID)),
		params:  params,
		generic: generic,
		matcher: m,
	}
}

// NewDetectorFromConfig builds a greedy detector from configuration.
func NewDetectorFromConfig(cfg *config.Config) *Detector {
	return NewDetector(
		Identity{Name: cfg.User.Name, NationalID: cfg.User.NationalID},
		Params{
			ValueTolerance:  cfg.Processing.ValueTolerance,
			DayWindow:       cfg.Processing.DayWindowDays,
			GenericPatterns: cfg.Processing.GenericTransferPatterns,
		},
	)
}

// Detect relabels internal transfers in place. Rows must already carry a
// CategoryAuto. Ledger order decides ties.
func (d *Detector) Detect(ledger []*domain.Transaction) Result {
	var res Result
	relabeled := make(map[*domain.Transaction]bool)

	// Phase 1: the statement names the owner as counterparty.
	for _, tx := range ledger {
		if tx.CategoryAuto != domain.CategoryPIXSent && tx.CategoryAuto != domain.CategoryPIXReceived {
			continue
		}
		if d.namesOwner(tx.Description) || d.namesOwner(tx.Type) {
			tx.CategoryAuto = domain.CategoryInternalTransfer
			relabeled[tx] = true
			res.SelfIdentified++
		}
	}

	// Phase 2: cross-institution pairing.
	var outbound, inbound []*domain.Transaction
	for _, tx := range ledger {
		if !tx.CategoryAuto.IsTransferCandidate() {
			continue
		}
		switch {
		case tx.IsOutflow():
			outbound = append(outbound, tx)
		case tx.IsInflow():
			inbound = append(inbound, tx)
		}
	}

	for _, p := range d.matcher.Match(outbound, inbound, d.acceptPair) {
		p.Out.CategoryAuto = domain.CategoryInternalTransfer
		p.In.CategoryAuto = domain.CategoryInternalTransfer
		relabeled[p.Out] = true
		relabeled[p.In] = true
		res.PairsMatched++
		res.PairIDs = append(res.PairIDs, [2]string{p.Out.ID, p.In.ID})
	}

	for _, tx := range ledger {
		if relabeled[tx] {
			res.RelabeledIDs = append(res.RelabeledIDs, tx.ID)
		}
	}
	res.Relabeled = len(res.RelabeledIDs)

	// Phase 3: every remaining internal transfer needs a counterpart.
	var internal []*domain.Transaction
	for _, tx := range ledger {
		if tx.CategoryAuto == domain.CategoryInternalTransfer {
			internal = append(internal, tx)
		}
	}

	paired := make(map[*domain.Transaction]bool, len(internal))
	for _, a := range internal {
		if paired[a] {
			continue
		}
		for _, b := range internal {
			if b == a || paired[b] {
				continue
			}
			if d.counterparts(a, b) {
				paired[a] = true
				paired[b] = true
				break
			}
		}
	}

	for _, tx := range internal {
		if paired[tx] {
			continue
		}
		if tx.IsInflow() {
			tx.CategoryAuto = domain.CategoryPIXReceived
		} else {
			tx.CategoryAuto = domain.CategoryPIXSent
		}
		res.Demoted++
		res.DemotedIDs = append(res.DemotedIDs, tx.ID)
	}
	res.Final = len(internal) - res.Demoted

	return res
}

func (d *Detector) acceptPair(out, in *domain.Transaction) bool {
	if out.Institution == in.Institution {
		return false
	}
	if !d.withinTolerance(out.Amount, in.Amount) || !d.withinWindow(out, in) {
		return false
	}

	outText := out.CounterpartyText()
	inText := in.CounterpartyText()
	outOwner := d.hasOwnerEvidence(outText)
	inOwner := d.hasOwnerEvidence(inText)

	return (outOwner && (inOwner || d.isGeneric(inText))) ||
		(inOwner && (outOwner || d.isGeneric(outText)))
}

func (d *Detector) counterparts(a, b *domain.Transaction) bool {
	oppositeSign := (a.IsInflow() && b.IsOutflow()) || (a.IsOutflow() && b.IsInflow())
	return oppositeSign &&
		a.Institution != b.Institution &&
		d.withinTolerance(a.Amount, b.Amount) &&
		d.withinWindow(a, b)
}

func (d *Detector) withinTolerance(a, b decimal.Decimal) bool {
	return a.Abs().Sub(b.Abs()).Abs().LessThanOrEqual(d.params.ValueTolerance)
}

func (d *Detector) withinWindow(a, b *domain.Transaction) bool {
	days := b.AccountingDate.DaysSince(a.AccountingDate)
	if days < 0 {
		days = -days
	}
	return days <= d.params.DayWindow
}

// namesOwner matches a single raw field, case-insensitively.
func (d *Detector) namesOwner(field string) bool {
	return d.hasOwnerEvidence(strings.ToUpper(field))
}

// hasOwnerEvidence expects upper-cased text.
func (d *Detector) hasOwnerEvidence(text string) bool {
	if d.name != "" && strings.Contains(text, d.name) {
		return true
	}
	return d.id != "" && strings.Contains(text, d.id)
}

func (d *Detector) isGeneric(text string) bool {
	for _, p := range d.generic {
		if strings.Contains(text, p) {
			return true
		}
	}
	return false
}
