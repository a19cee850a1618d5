// Package symbols builds a snapshot of the exported interface-like and
// class-like declarations in a TypeScript workspace.
//
// An Index is produced per invocation and never cached; callers own it
// exclusively. Declarations that are neither named nor default exports are
// left out because generated tests cannot import them.
package symbols

// Kind distinguishes interface-shaped from class-shaped symbols.
type Kind string

const (
	KindInterface Kind = "interface"
	KindClass     Kind = "class"
)

// Member is one entry of a symbol's body. For interfaces Type holds the
// annotation text (property type or method signature); for classes only Name
// is set.
type Member struct {
	Name     string `json:"name" yaml:"name"`
	Type     string `json:"type,omitempty" yaml:"type,omitempty"`
	Optional bool   `json:"optional,omitempty" yaml:"optional,omitempty"`
}

// Descriptor describes one exported symbol.
type Descriptor struct {
	Kind            Kind     `json:"kind" yaml:"kind"`
	Name            string   `json:"name" yaml:"name"`
	FilePath        string   `json:"file" yaml:"file"`
	Members         []Member `json:"members,omitempty" yaml:"members,omitempty"`
	IsDefaultExport bool     `json:"default_export" yaml:"default_export"`
	IsNamedExport   bool     `json:"named_export" yaml:"named_export"`
}

// Exported reports whether the symbol can be imported at all.
func (d Descriptor) Exported() bool {
	return d.IsDefaultExport || d.IsNamedExport
}

// MemberNames returns member names in declaration order.
func (d Descriptor) MemberNames() []string {
	names := make([]string, 0, len(d.Members))
	for _, m := range d.Members {
		names = append(names, m.Name)
	}
	return names
}

// Index is the result of one indexing pass.
type Index struct {
	Interfaces []Descriptor `json:"interfaces" yaml:"interfaces"`
	Classes    []Descriptor `json:"classes" yaml:"classes"`
	// Files is the number of source files visited.
	Files int `json:"files" yaml:"files"`
	// Fingerprint is an xxhash digest over the visited paths and contents.
	Fingerprint string `json:"fingerprint" yaml:"fingerprint"`
}

// Len returns the total number of symbols.
func (idx *Index) Len() int {
	if idx == nil {
		return 0
	}
	return len(idx.Interfaces) + len(idx.Classes)
}
