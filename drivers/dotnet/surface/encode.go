package surface

import (
	"io"

	"gopkg.in/yaml.v3"
)

type dump struct {
	Assembly string     `yaml:"assembly"`
	Target   string     `yaml:"target,omitempty"`
	Types    []typeDump `yaml:"types"`
}

type typeDump struct {
	Type        string      `yaml:"type"`
	Kind        Kind        `yaml:"kind"`
	Declaration Declaration `yaml:"declaration,omitempty"`
	Members     *MemberSet  `yaml:"members,omitempty"`
}

// WriteYAML writes the surface as a YAML document with types in signature
// order.
func (s *Surface) WriteYAML(w io.Writer, target string) error {
	d := dump{Assembly: s.AssemblyName, Target: target, Types: make([]typeDump, 0, len(s.Types))}
	for _, sig := range s.Sorted() {
		t := s.Types[sig]
		td := typeDump{Type: sig.String(), Kind: t.Kind(), Declaration: t.Decl}
		if t.Members.Len() > 0 {
			members := t.Members
			members.Sort()
			td.Members = &members
		}
		d.Types = append(d.Types, td)
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(d); err != nil {
		return err
	}
	return enc.Close()
}
