package domain

import "strings"

// Header is a single HTTP response header observed on a domain.
// Order is preserved from the upstream fetcher.
type Header struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// DNSRecord is a single DNS record observed for a domain.
type DNSRecord struct {
	Type     string `json:"type"`
	Name     string `json:"name"`
	Value    string `json:"value"`
	TTL      uint32 `json:"ttl"`
	Priority int    `json:"priority,omitempty"`
}

// Signals is the raw evidence gathered about a domain, as delivered by the
// upstream fetchers. All matching against signals is case-insensitive.
type Signals struct {
	Headers    []Header    `json:"headers,omitempty"`
	DNSRecords []DNSRecord `json:"dns_records,omitempty"`
	CertIssuer string      `json:"cert_issuer,omitempty"`
	Registrar  string      `json:"registrar,omitempty"`
}

// Header returns the value of the first header with the given name
// (case-insensitive) and whether it was present.
func (s Signals) Header(name string) (string, bool) {
	for _, h := range s.Headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value, true
		}
	}
	return "", false
}

// RecordsOfType returns the values of all DNS records of the given type
// (case-insensitive), in observed order.
func (s Signals) RecordsOfType(typ string) []string {
	var out []string
	for _, r := range s.DNSRecords {
		if strings.EqualFold(r.Type, typ) {
			out = append(out, r.Value)
		}
	}
	return out
}

// Merge overlays other on top of s, field by field. Non-empty fields in
// other win; used when combining per-section signal refreshes into one view.
func (s Signals) Merge(other Signals) Signals {
	out := s
	if len(other.Headers) > 0 {
		out.Headers = other.Headers
	}
	if len(other.DNSRecords) > 0 {
		out.DNSRecords = other.DNSRecords
	}
	if other.CertIssuer != "" {
		out.CertIssuer = other.CertIssuer
	}
	if other.Registrar != "" {
		out.Registrar = other.Registrar
	}
	return out
}
