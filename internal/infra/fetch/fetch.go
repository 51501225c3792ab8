// Package fetch defines the contract with the upstream WHOIS/DNS/TLS/HTTP
// fetchers. The fetchers themselves live in a separate service; this package
// only shapes what they return and how their failures are classified.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/vietddude/domainwatch/internal/core/domain"
)

// SectionData is one section's raw observations plus the freshness hints
// the TTL policy consumes.
type SectionData struct {
	Signals domain.Signals

	// Hints, zero when unknown.
	DomainExpiry time.Time
	CertValidTo  time.Time
	RecordTTL    time.Duration
}

// Fetcher performs one authoritative lookup of a domain section.
//
// Expected, permanent failures (domain does not exist, no records of the
// requested type) come back as *fetch.Error. Anything else is treated as
// transient infrastructure trouble and retried by the Retrying wrapper.
type Fetcher interface {
	Fetch(ctx context.Context, domainName string, section domain.Section) (*SectionData, error)
}

// Error codes for permanent fetch failures.
const (
	CodeNXDomain    = "nxdomain"
	CodeNoRecords   = "no_records"
	CodeUnsupported = "unsupported_section"
)

// Error is a typed, permanent fetch failure. It is a terminal result for
// the caller, not something retries can fix.
type Error struct {
	Code    string
	Section domain.Section
}

func (e *Error) Error() string {
	return fmt.Sprintf("fetch %s failed: %s", e.Section, e.Code)
}

// IsPermanent reports whether err is a typed permanent fetch failure.
func IsPermanent(err error) bool {
	var fe *Error
	return errors.As(err, &fe)
}
