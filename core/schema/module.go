package schema

// Module is one entity definition compiled by the system.
type Module struct {
	// SingularName is the canonical singular identifier (e.g., "category").
	SingularName string `yaml:"singularName,omitempty" json:"singularName"`

	// PluralName is the canonical plural identifier (e.g., "categories").
	// It never equals SingularName.
	PluralName string `yaml:"pluralName,omitempty" json:"pluralName"`

	// Attributes are the module fields in declaration order.
	Attributes []Attribute `yaml:"attributes" json:"attributes"`

	// Auth designates two of this module's attributes as login credentials.
	Auth *Auth `yaml:"auth,omitempty" json:"auth,omitempty"`
}

// Auth names the identifier and secret attributes of an authenticable module.
type Auth struct {
	Identifier string `yaml:"identifier" json:"identifier"`
	Password   string `yaml:"password" json:"password"`
}

// IsAuth reports whether the module carries a complete auth designation.
func (m Module) IsAuth() bool {
	return m.Auth != nil && m.Auth.Identifier != "" && m.Auth.Password != ""
}

// Attribute returns the top-level attribute with the given name.
func (m Module) Attribute(name string) (Attribute, bool) {
	for _, a := range m.Attributes {
		if a.Name == name {
			return a, true
		}
	}
	return Attribute{}, false
}

// Batch is the ordered set of modules compiled together in one run.
type Batch []Module

// Names returns every singular and plural module name in the batch.
func (b Batch) Names() []string {
	names := make([]string, 0, len(b)*2)
	for _, m := range b {
		if m.SingularName == "" || m.PluralName == "" {
			continue
		}
		names = append(names, m.SingularName, m.PluralName)
	}
	return names
}

// Lookup finds a module by its singular or plural name.
func (b Batch) Lookup(name string) (Module, bool) {
	for _, m := range b {
		if m.SingularName == name || m.PluralName == name {
			return m, true
		}
	}
	return Module{}, false
}

// Clone returns a deep copy of the batch.
func (b Batch) Clone() Batch {
	if b == nil {
		return nil
	}
	out := make(Batch, len(b))
	for i, m := range b {
		out[i] = m
		out[i].Attributes = cloneAttributes(m.Attributes)
		if m.Auth != nil {
			auth := *m.Auth
			out[i].Auth = &auth
		}
	}
	return out
}
