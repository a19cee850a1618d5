package symbols

import (
	"context"
	"fmt"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

// fileScan accumulates declarations and export facts for one file. Export
// clauses (`export { Foo }`, `export default Foo;`) may appear before or
// after the declaration they refer to, so flags are applied at the end.
type fileScan struct {
	path     string
	src      []byte
	decls    []Descriptor
	named    map[string]bool
	defaults map[string]bool
}

// ExtractFile parses one TypeScript or TSX source and returns its exported
// interfaces and classes in source order. The parser is created per call, so
// ExtractFile is safe for concurrent use.
func ExtractFile(ctx context.Context, path string, src []byte) ([]Descriptor, error) {
	parser := sitter.NewParser()
	defer parser.Close()

	if strings.HasSuffix(path, ".tsx") {
		parser.SetLanguage(tsx.GetLanguage())
	} else {
		parser.SetLanguage(typescript.GetLanguage())
	}

	tree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	defer tree.Close()

	scan := &fileScan{
		path:     path,
		src:      src,
		named:    make(map[string]bool),
		defaults: make(map[string]bool),
	}

	root := tree.RootNode()
	for i := 0; i < int(root.ChildCount()); i++ {
		child := root.Child(i)
		switch child.Type() {
		case "export_statement":
			scan.exportStatement(child)
		default:
			scan.declare(child, false, false)
		}
	}

	return scan.exported(), nil
}

func (s *fileScan) text(n *sitter.Node) string {
	return n.Content(s.src)
}

// declare records n if it is an interface or class declaration.
func (s *fileScan) declare(n *sitter.Node, named, isDefault bool) {
	var desc *Descriptor
	switch n.Type() {
	case "interface_declaration":
		desc = s.interfaceDecl(n)
	case "class_declaration", "abstract_class_declaration", "class":
		desc = s.classDecl(n)
	}
	if desc == nil {
		return
	}
	desc.IsNamedExport = named
	desc.IsDefaultExport = isDefault
	s.decls = append(s.decls, *desc)
}

func (s *fileScan) exportStatement(n *sitter.Node) {
	isDefault := false
	for i := 0; i < int(n.ChildCount()); i++ {
		child := n.Child(i)
		switch child.Type() {
		case "default":
			isDefault = true
		case "interface_declaration", "class_declaration", "abstract_class_declaration", "class":
			s.declare(child, !isDefault, isDefault)
		case "export_clause":
			s.exportClause(child)
		case "identifier":
			if isDefault {
				s.defaults[s.text(child)] = true
			}
		}
	}
}

// exportClause handles `export { A, B as default }`. Aliased named exports
// are skipped because the importable name no longer matches the symbol.
func (s *fileScan) exportClause(n *sitter.Node) {
	for i := 0; i < int(n.ChildCount()); i++ {
		spec := n.Child(i)
		if spec.Type() != "export_specifier" {
			continue
		}
		var names []string
		for j := 0; j < int(spec.ChildCount()); j++ {
			part := spec.Child(j)
			if part.Type() == "identifier" || part.Type() == "type_identifier" || part.Type() == "default" {
				names = append(names, s.text(part))
			}
		}
		switch {
		case len(names) == 1:
			s.named[names[0]] = true
		case len(names) == 2 && names[1] == "default":
			s.defaults[names[0]] = true
		}
	}
}

func (s *fileScan) exported() []Descriptor {
	var out []Descriptor
	for _, desc := range s.decls {
		if s.named[desc.Name] {
			desc.IsNamedExport = true
		}
		if s.defaults[desc.Name] {
			desc.IsDefaultExport = true
		}
		if !desc.Exported() {
			continue
		}
		out = append(out, desc)
	}
	return out
}

func (s *fileScan) interfaceDecl(n *sitter.Node) *Descriptor {
	desc := &Descriptor{Kind: KindInterface, FilePath: s.path}
	var body *sitter.Node
	for i := 0; i < int(n.ChildCount()); i++ {
		child := n.Child(i)
		switch child.Type() {
		case "type_identifier":
			desc.Name = s.text(child)
		case "interface_body", "object_type":
			body = child
		}
	}
	if desc.Name == "" {
		return nil
	}
	if body != nil {
		desc.Members = s.interfaceMembers(body)
	}
	return desc
}

func (s *fileScan) interfaceMembers(body *sitter.Node) []Member {
	var members []Member
	for i := 0; i < int(body.ChildCount()); i++ {
		child := body.Child(i)
		switch child.Type() {
		case "property_signature":
			if m, ok := s.propertySignature(child); ok {
				members = append(members, m)
			}
		case "method_signature":
			if m, ok := s.methodSignature(child); ok {
				members = append(members, m)
			}
		}
	}
	return members
}

func (s *fileScan) propertySignature(n *sitter.Node) (Member, bool) {
	var m Member
	for i := 0; i < int(n.ChildCount()); i++ {
		child := n.Child(i)
		switch child.Type() {
		case "property_identifier":
			m.Name = s.text(child)
		case "?":
			m.Optional = true
		case "type_annotation":
			m.Type = s.typeAnnotation(child)
		}
	}
	if m.Type == "" {
		m.Type = "any"
	}
	return m, m.Name != ""
}

func (s *fileScan) methodSignature(n *sitter.Node) (Member, bool) {
	var (
		m      Member
		params string
		ret    = "void"
	)
	for i := 0; i < int(n.ChildCount()); i++ {
		child := n.Child(i)
		switch child.Type() {
		case "property_identifier":
			m.Name = s.text(child)
		case "?":
			m.Optional = true
		case "formal_parameters":
			params = s.text(child)
		case "type_annotation":
			ret = s.typeAnnotation(child)
		}
	}
	if params == "" {
		params = "()"
	}
	m.Type = params + " => " + ret
	return m, m.Name != ""
}

// typeAnnotation returns the type text after the leading colon.
func (s *fileScan) typeAnnotation(n *sitter.Node) string {
	for i := 0; i < int(n.ChildCount()); i++ {
		child := n.Child(i)
		if child.Type() != ":" {
			return strings.TrimSpace(s.text(child))
		}
	}
	return ""
}

func (s *fileScan) classDecl(n *sitter.Node) *Descriptor {
	desc := &Descriptor{Kind: KindClass, FilePath: s.path}
	var body *sitter.Node
	for i := 0; i < int(n.ChildCount()); i++ {
		child := n.Child(i)
		switch child.Type() {
		case "type_identifier", "identifier":
			if desc.Name == "" {
				desc.Name = s.text(child)
			}
		case "class_body":
			body = child
		}
	}
	if desc.Name == "" {
		desc.Name = "Anonymous"
	}
	if body != nil {
		desc.Members = s.classMethods(body)
	}
	return desc
}

func (s *fileScan) classMethods(body *sitter.Node) []Member {
	var members []Member
	for i := 0; i < int(body.ChildCount()); i++ {
		child := body.Child(i)
		if child.Type() != "method_definition" && child.Type() != "abstract_method_signature" {
			continue
		}
		for j := 0; j < int(child.ChildCount()); j++ {
			part := child.Child(j)
			if part.Type() != "property_identifier" && part.Type() != "private_property_identifier" {
				continue
			}
			if name := s.text(part); name != "constructor" {
				members = append(members, Member{Name: name})
			}
			break
		}
	}
	return members
}
