package classify

import (
	"regexp"

	"github.com/vietddude/domainwatch/internal/core/domain"
)

// RuleKind tags the variant of a Rule node.
type RuleKind string

const (
	// Leaf predicates.
	KindHeaderPresent     RuleKind = "headerPresent"
	KindHeaderEquals      RuleKind = "headerEquals"
	KindMXSuffix          RuleKind = "mxSuffix"
	KindMXRegex           RuleKind = "mxRegex"
	KindNSSuffix          RuleKind = "nsSuffix"
	KindNSRegex           RuleKind = "nsRegex"
	KindIssuerIncludes    RuleKind = "issuerIncludes"
	KindIssuerEquals      RuleKind = "issuerEquals"
	KindRegistrarIncludes RuleKind = "registrarIncludes"

	// Combinators.
	KindAll RuleKind = "all"
	KindAny RuleKind = "any"
	KindNot RuleKind = "not"
)

// Rule is a compiled predicate tree over domain signals. It is a tagged
// union: Kind selects the variant and only that variant's fields are set.
// Regex patterns are compiled once when the catalog loads, never per match.
type Rule struct {
	Kind RuleKind

	// Leaf fields.
	Name    string         // headerPresent, headerEquals
	Value   string         // headerEquals, issuerEquals
	Suffix  string         // mxSuffix, nsSuffix
	Substr  string         // issuerIncludes, registrarIncludes
	Pattern *regexp.Regexp // mxRegex, nsRegex

	// Combinator fields.
	Rules []*Rule // all, any
	Rule  *Rule   // not
}

// Entry binds a provider to the rule that recognizes it. Entry order within
// a category is the authoritative tie-break: first match wins.
type Entry struct {
	Provider domain.ProviderRef
	Rule     *Rule
}

// Classify scans entries in stored order and returns the first provider
// whose rule matches the signals, or nil when nothing matches. It never
// fails: "no match" is a valid terminal result.
func Classify(entries []Entry, sig domain.Signals) *domain.ProviderRef {
	for i := range entries {
		if Evaluate(entries[i].Rule, sig) {
			ref := entries[i].Provider
			return &ref
		}
	}
	return nil
}
