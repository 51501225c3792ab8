package domain

import "testing"

func TestTaskKeyRoundTrip(t *testing.T) {
	key := TaskKey("Example.COM", SectionDNS)
	if key != "example.com:dns" {
		t.Errorf("TaskKey = %q, want lowercased domain", key)
	}

	name, section, err := ParseTaskKey(key)
	if err != nil {
		t.Fatalf("ParseTaskKey: %v", err)
	}
	if name != "example.com" || section != SectionDNS {
		t.Errorf("ParseTaskKey = (%q, %q)", name, section)
	}
}

func TestParseTaskKey_Malformed(t *testing.T) {
	for _, key := range []string{
		"",
		"example.com",
		"example.com:",
		":dns",
		"example.com:bogus",
	} {
		if _, _, err := ParseTaskKey(key); err == nil {
			t.Errorf("ParseTaskKey(%q) accepted a malformed key", key)
		}
	}
}

func TestSignalsHeaderLookup(t *testing.T) {
	sig := Signals{Headers: []Header{
		{Name: "Server", Value: "cloudflare"},
		{Name: "CF-Ray", Value: "abc123"},
	}}

	if v, ok := sig.Header("cf-ray"); !ok || v != "abc123" {
		t.Errorf("Header(cf-ray) = (%q, %v), want case-insensitive hit", v, ok)
	}
	if _, ok := sig.Header("x-powered-by"); ok {
		t.Error("Header matched an absent name")
	}
}

func TestSignalsMerge(t *testing.T) {
	base := Signals{
		Registrar:  "Old Registrar",
		CertIssuer: "Old CA",
		DNSRecords: []DNSRecord{{Type: "NS", Value: "ns1.old.net"}},
	}
	overlay := Signals{
		Registrar:  "New Registrar",
		DNSRecords: []DNSRecord{{Type: "NS", Value: "ns1.new.net"}},
	}

	merged := base.Merge(overlay)
	if merged.Registrar != "New Registrar" {
		t.Errorf("registrar = %q, overlay should win", merged.Registrar)
	}
	if merged.CertIssuer != "Old CA" {
		t.Errorf("cert issuer = %q, empty overlay field should not clear it", merged.CertIssuer)
	}
	if len(merged.DNSRecords) != 1 || merged.DNSRecords[0].Value != "ns1.new.net" {
		t.Errorf("dns records = %+v", merged.DNSRecords)
	}
}
