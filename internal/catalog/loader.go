package catalog

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/vietddude/domainwatch/internal/classify"
	"github.com/vietddude/domainwatch/internal/core/domain"
)

// rawDocument is the on-the-wire catalog shape: category name to ordered
// provider entry list.
type rawDocument map[string][]rawEntry

type rawEntry struct {
	ID     string   `json:"id"`
	Name   string   `json:"name"`
	Domain string   `json:"domain"`
	Rule   *rawRule `json:"rule"`
}

type rawRule struct {
	Type string `json:"type"`

	Name    string `json:"name,omitempty"`
	Value   string `json:"value,omitempty"`
	Suffix  string `json:"suffix,omitempty"`
	Substr  string `json:"substr,omitempty"`
	Pattern string `json:"pattern,omitempty"`
	Flags   string `json:"flags,omitempty"`

	Rules []*rawRule `json:"rules,omitempty"`
	Rule  *rawRule   `json:"rule,omitempty"`
}

// Parse validates a raw catalog document and compiles it into an immutable
// snapshot. Any invalid entry rejects the whole document: the store keeps
// serving the previous snapshot.
func Parse(raw []byte, now time.Time) (*Snapshot, error) {
	var doc rawDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("catalog: malformed document: %w", err)
	}

	entries := make(map[domain.Category][]classify.Entry, len(doc))
	for name, rawEntries := range doc {
		cat := domain.Category(name)
		if !cat.Valid() {
			return nil, fmt.Errorf("catalog: unknown category %q", name)
		}

		compiled := make([]classify.Entry, 0, len(rawEntries))
		for i, re := range rawEntries {
			entry, err := compileEntry(cat, i, re)
			if err != nil {
				return nil, err
			}
			compiled = append(compiled, entry)
		}
		entries[cat] = compiled
	}

	sum := sha256.Sum256(raw)
	return &Snapshot{
		Version:  hex.EncodeToString(sum[:8]),
		LoadedAt: now,
		entries:  entries,
	}, nil
}

func compileEntry(cat domain.Category, idx int, re rawEntry) (classify.Entry, error) {
	fail := func(field, reason string) (classify.Entry, error) {
		return classify.Entry{}, &ValidationError{Category: cat, Entry: idx, Field: field, Reason: reason}
	}

	if re.ID == "" {
		return fail("id", "must not be empty")
	}
	if re.Name == "" {
		return fail("name", "must not be empty")
	}
	if re.Rule == nil {
		return fail("rule", "must be present")
	}

	rule, err := compileRule(re.Rule, "rule")
	if err != nil {
		var rerr *ruleError
		if errors.As(err, &rerr) {
			return fail(rerr.field, rerr.reason)
		}
		return fail("rule", err.Error())
	}

	return classify.Entry{
		Provider: domain.ProviderRef{ID: re.ID, Name: re.Name, Domain: re.Domain},
		Rule:     rule,
	}, nil
}

// ruleError carries the JSON path of the offending rule field so the entry
// compiler can surface it with (category, entry, field) precision.
type ruleError struct {
	field  string
	reason string
}

func (e *ruleError) Error() string { return fmt.Sprintf("%s: %s", e.field, e.reason) }

func compileRule(r *rawRule, path string) (*classify.Rule, error) {
	if r == nil {
		return nil, &ruleError{field: path, reason: "rule must not be null"}
	}

	switch classify.RuleKind(r.Type) {
	case classify.KindHeaderPresent:
		if r.Name == "" {
			return nil, &ruleError{field: path + ".name", reason: "must not be empty"}
		}
		return &classify.Rule{Kind: classify.KindHeaderPresent, Name: r.Name}, nil

	case classify.KindHeaderEquals:
		if r.Name == "" {
			return nil, &ruleError{field: path + ".name", reason: "must not be empty"}
		}
		return &classify.Rule{Kind: classify.KindHeaderEquals, Name: r.Name, Value: r.Value}, nil

	case classify.KindMXSuffix, classify.KindNSSuffix:
		if r.Suffix == "" {
			return nil, &ruleError{field: path + ".suffix", reason: "must not be empty"}
		}
		return &classify.Rule{Kind: classify.RuleKind(r.Type), Suffix: r.Suffix}, nil

	case classify.KindMXRegex, classify.KindNSRegex:
		pattern, err := compilePattern(r.Pattern, r.Flags)
		if err != nil {
			return nil, &ruleError{field: path + ".pattern", reason: err.Error()}
		}
		return &classify.Rule{Kind: classify.RuleKind(r.Type), Pattern: pattern}, nil

	case classify.KindIssuerIncludes, classify.KindRegistrarIncludes:
		if r.Substr == "" {
			return nil, &ruleError{field: path + ".substr", reason: "must not be empty"}
		}
		return &classify.Rule{Kind: classify.RuleKind(r.Type), Substr: r.Substr}, nil

	case classify.KindIssuerEquals:
		if r.Value == "" {
			return nil, &ruleError{field: path + ".value", reason: "must not be empty"}
		}
		return &classify.Rule{Kind: classify.KindIssuerEquals, Value: r.Value}, nil

	case classify.KindAll, classify.KindAny:
		if len(r.Rules) == 0 {
			return nil, &ruleError{field: path + ".rules", reason: "must not be empty"}
		}
		subs := make([]*classify.Rule, 0, len(r.Rules))
		for i, sub := range r.Rules {
			compiled, err := compileRule(sub, fmt.Sprintf("%s.rules[%d]", path, i))
			if err != nil {
				return nil, err
			}
			subs = append(subs, compiled)
		}
		return &classify.Rule{Kind: classify.RuleKind(r.Type), Rules: subs}, nil

	case classify.KindNot:
		sub, err := compileRule(r.Rule, path+".rule")
		if err != nil {
			return nil, err
		}
		return &classify.Rule{Kind: classify.KindNot, Rule: sub}, nil
	}

	return nil, &ruleError{field: path + ".type", reason: fmt.Sprintf("unknown rule type %q", r.Type)}
}

// compilePattern compiles a catalog regex once, honoring the "i" flag. Only
// case-insensitivity is supported; anything else is a validation error.
func compilePattern(pattern, flags string) (*regexp.Regexp, error) {
	if pattern == "" {
		return nil, fmt.Errorf("must not be empty")
	}
	for _, f := range flags {
		if f != 'i' {
			return nil, fmt.Errorf("unsupported regex flag %q", string(f))
		}
	}
	if flags != "" {
		pattern = "(?i)" + pattern
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid regex: %v", err)
	}
	return re, nil
}
