package domain

// Identity is the authenticated caller context handed to the core by the
// external transport/identity collaborators. It carries the organization label
// and any signed certificate attributes; the core never reads ambient global
// identity state. Role resolution tests purely against this value and is
// side-effect-free.
type Identity struct {
	// ID is the enrollment identifier of the caller, embedded verbatim into
	// audit entries and the asset creator field.
	ID string
	// Org is the organization label asserted by the identity infrastructure.
	Org string
	// Attributes holds signed, tamper-evident certificate attributes. The
	// attribute-based evaluator reads the configured role attribute from here.
	Attributes map[string]string
}

// Attribute returns the named signed attribute, or "" when absent.
func (i Identity) Attribute(key string) string {
	if i.Attributes == nil {
		return ""
	}
	return i.Attributes[key]
}
