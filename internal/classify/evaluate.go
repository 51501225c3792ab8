package classify

import (
	"strings"

	"github.com/vietddude/domainwatch/internal/core/domain"
)

// Evaluate runs a compiled rule against a set of signals. It is pure and
// total: a nil or unrecognized rule evaluates to false rather than failing.
// all/any short-circuit on the first deciding operand.
func Evaluate(r *Rule, sig domain.Signals) bool {
	if r == nil {
		return false
	}

	switch r.Kind {
	case KindHeaderPresent:
		_, ok := sig.Header(r.Name)
		return ok

	case KindHeaderEquals:
		v, ok := sig.Header(r.Name)
		return ok && strings.EqualFold(v, r.Value)

	case KindMXSuffix:
		return anyHostMatches(sig.RecordsOfType("MX"), func(h string) bool {
			return hasLabelSuffix(h, r.Suffix)
		})

	case KindMXRegex:
		return anyHostMatches(sig.RecordsOfType("MX"), r.Pattern.MatchString)

	case KindNSSuffix:
		return anyHostMatches(sig.RecordsOfType("NS"), func(h string) bool {
			return hasLabelSuffix(h, r.Suffix)
		})

	case KindNSRegex:
		return anyHostMatches(sig.RecordsOfType("NS"), r.Pattern.MatchString)

	case KindIssuerIncludes:
		return containsFold(sig.CertIssuer, r.Substr)

	case KindIssuerEquals:
		return sig.CertIssuer != "" && strings.EqualFold(sig.CertIssuer, r.Value)

	case KindRegistrarIncludes:
		return containsFold(sig.Registrar, r.Substr)

	case KindAll:
		for _, sub := range r.Rules {
			if !Evaluate(sub, sig) {
				return false
			}
		}
		return len(r.Rules) > 0

	case KindAny:
		for _, sub := range r.Rules {
			if Evaluate(sub, sig) {
				return true
			}
		}
		return false

	case KindNot:
		return !Evaluate(r.Rule, sig)
	}

	return false
}

func anyHostMatches(hosts []string, match func(string) bool) bool {
	for _, h := range hosts {
		if match(normalizeHost(h)) {
			return true
		}
	}
	return false
}

// hasLabelSuffix reports whether host ends with suffix on a label boundary:
// "ns1.cloudflare.com" matches "cloudflare.com", "notcloudflare.com" does not.
func hasLabelSuffix(host, suffix string) bool {
	host = normalizeHost(host)
	suffix = normalizeHost(suffix)
	if host == "" || suffix == "" {
		return false
	}
	if host == suffix {
		return true
	}
	return strings.HasSuffix(host, "."+suffix)
}

func normalizeHost(h string) string {
	return strings.ToLower(strings.TrimSuffix(strings.TrimSpace(h), "."))
}

func containsFold(s, substr string) bool {
	if s == "" || substr == "" {
		return false
	}
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
