package domain

// Category identifies a provider category a domain can be classified under.
type Category string

const (
	CategoryHosting   Category = "hosting"
	CategoryDNS       Category = "dns"
	CategoryEmail     Category = "email"
	CategoryCA        Category = "ca"
	CategoryRegistrar Category = "registrar"
)

// Categories lists every known category in a stable order.
var Categories = []Category{
	CategoryHosting,
	CategoryDNS,
	CategoryEmail,
	CategoryCA,
	CategoryRegistrar,
}

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	switch c {
	case CategoryHosting, CategoryDNS, CategoryEmail, CategoryCA, CategoryRegistrar:
		return true
	}
	return false
}

// Section identifies a refreshable slice of data about a domain. Each
// section has its own freshness policy and revalidation cadence.
type Section string

const (
	SectionRegistration Section = "registration"
	SectionCertificates Section = "certificates"
	SectionDNS          Section = "dns"
	SectionHeaders      Section = "headers"
	SectionSEO          Section = "seo"
)

// Sections lists every known section in a stable order.
var Sections = []Section{
	SectionRegistration,
	SectionCertificates,
	SectionDNS,
	SectionHeaders,
	SectionSEO,
}

// Valid reports whether s is a known section.
func (s Section) Valid() bool {
	switch s {
	case SectionRegistration, SectionCertificates, SectionDNS, SectionHeaders, SectionSEO:
		return true
	}
	return false
}

// SectionCategories maps a section to the provider categories whose
// classification depends on that section's signals.
var SectionCategories = map[Section][]Category{
	SectionRegistration: {CategoryRegistrar},
	SectionCertificates: {CategoryCA},
	SectionDNS:          {CategoryDNS, CategoryEmail},
	SectionHeaders:      {CategoryHosting},
	SectionSEO:          {},
}
