// Package ttl computes cache-expiry timestamps per data section. Every
// function is pure: output depends only on the explicit arguments and the
// configured windows, and invalid hints fall back to section defaults.
package ttl

import (
	"time"

	"github.com/vietddude/domainwatch/internal/core/domain"
)

// Windows holds the tunable freshness windows per section.
type Windows struct {
	// Registration data is refreshed on the default window until the
	// domain's own expiration date comes within RenewalThreshold, at which
	// point the aggressive window takes over.
	RegistrationDefault    time.Duration `yaml:"registration_default"`
	RegistrationAggressive time.Duration `yaml:"registration_aggressive"`
	RenewalThreshold       time.Duration `yaml:"renewal_threshold"`

	// Certificate checks slide with the cert's own expiry: never past
	// validTo − CertSafetyBuffer, never more often than CertMinInterval.
	CertNormal       time.Duration `yaml:"cert_normal"`
	CertSafetyBuffer time.Duration `yaml:"cert_safety_buffer"`
	CertMinInterval  time.Duration `yaml:"cert_min_interval"`

	// DNS honors the upstream record TTL clamped into [DNSDefault, DNSCeiling].
	DNSDefault time.Duration `yaml:"dns_default"`
	DNSCeiling time.Duration `yaml:"dns_ceiling"`

	// Fixed windows.
	Headers time.Duration `yaml:"headers"`
	SEO     time.Duration `yaml:"seo"`
}

// DefaultWindows returns the production tuning.
func DefaultWindows() Windows {
	return Windows{
		RegistrationDefault:    7 * 24 * time.Hour,
		RegistrationAggressive: 12 * time.Hour,
		RenewalThreshold:       30 * 24 * time.Hour,

		CertNormal:       24 * time.Hour,
		CertSafetyBuffer: 48 * time.Hour,
		CertMinInterval:  time.Hour,

		DNSDefault: time.Hour,
		DNSCeiling: 24 * time.Hour,

		Headers: 24 * time.Hour,
		SEO:     7 * 24 * time.Hour,
	}
}

// normalize fills any zero or negative window from the defaults so a
// partially specified config never produces a degenerate policy.
func (w Windows) normalize() Windows {
	d := DefaultWindows()
	pick := func(v, def time.Duration) time.Duration {
		if v <= 0 {
			return def
		}
		return v
	}
	w.RegistrationDefault = pick(w.RegistrationDefault, d.RegistrationDefault)
	w.RegistrationAggressive = pick(w.RegistrationAggressive, d.RegistrationAggressive)
	w.RenewalThreshold = pick(w.RenewalThreshold, d.RenewalThreshold)
	w.CertNormal = pick(w.CertNormal, d.CertNormal)
	w.CertSafetyBuffer = pick(w.CertSafetyBuffer, d.CertSafetyBuffer)
	w.CertMinInterval = pick(w.CertMinInterval, d.CertMinInterval)
	w.DNSDefault = pick(w.DNSDefault, d.DNSDefault)
	w.DNSCeiling = pick(w.DNSCeiling, d.DNSCeiling)
	w.Headers = pick(w.Headers, d.Headers)
	w.SEO = pick(w.SEO, d.SEO)
	if w.DNSCeiling < w.DNSDefault {
		w.DNSCeiling = w.DNSDefault
	}
	return w
}

// Policy computes expiry timestamps from a fixed set of windows.
type Policy struct {
	w Windows
}

// NewPolicy builds a policy, filling unset windows from defaults.
func NewPolicy(w Windows) Policy {
	return Policy{w: w.normalize()}
}

// Hint carries the optional per-section freshness hints extracted from
// fetched data. Zero values mean "unknown".
type Hint struct {
	DomainExpiry time.Time
	CertValidTo  time.Time
	RecordTTL    time.Duration
}

// ForRegistration returns when registration data expires. Once the domain's
// own expiration date is within the renewal threshold, the short aggressive
// window applies so an imminent renewal (or lapse) is picked up quickly.
func (p Policy) ForRegistration(now, domainExpiry time.Time) time.Time {
	if !domainExpiry.IsZero() && domainExpiry.Sub(now) <= p.w.RenewalThreshold {
		return now.Add(p.w.RegistrationAggressive)
	}
	return now.Add(p.w.RegistrationDefault)
}

// ForCertificates returns when certificate data expires: the normal window,
// capped so the next check lands before validTo − safetyBuffer, and floored
// at the minimum check interval.
func (p Policy) ForCertificates(now, validTo time.Time) time.Time {
	expiry := now.Add(p.w.CertNormal)
	if !validTo.IsZero() {
		if bound := validTo.Add(-p.w.CertSafetyBuffer); bound.Before(expiry) {
			expiry = bound
		}
	}
	if floor := now.Add(p.w.CertMinInterval); expiry.Before(floor) {
		expiry = floor
	}
	return expiry
}

// ForDNS returns when DNS data expires, honoring the upstream record TTL
// clamped into [default, ceiling]. An absent or invalid TTL falls back to
// the default window.
func (p Policy) ForDNS(now time.Time, recordTTL time.Duration) time.Time {
	window := p.w.DNSDefault
	if recordTTL > 0 {
		window = min(max(recordTTL, p.w.DNSDefault), p.w.DNSCeiling)
	}
	return now.Add(window)
}

// ForHeaders returns when header/hosting data expires.
func (p Policy) ForHeaders(now time.Time) time.Time {
	return now.Add(p.w.Headers)
}

// ForSEO returns when SEO data expires.
func (p Policy) ForSEO(now time.Time) time.Time {
	return now.Add(p.w.SEO)
}

// ForSection dispatches to the section's policy function. Unknown sections
// use the headers window.
func (p Policy) ForSection(section domain.Section, now time.Time, hint Hint) time.Time {
	switch section {
	case domain.SectionRegistration:
		return p.ForRegistration(now, hint.DomainExpiry)
	case domain.SectionCertificates:
		return p.ForCertificates(now, hint.CertValidTo)
	case domain.SectionDNS:
		return p.ForDNS(now, hint.RecordTTL)
	case domain.SectionSEO:
		return p.ForSEO(now)
	default:
		return p.ForHeaders(now)
	}
}
