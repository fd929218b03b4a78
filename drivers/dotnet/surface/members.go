package surface

import "sort"

type memberKey struct {
	name   string
	params int
}

// MemberSet holds a type's exported members. Members are de-duplicated per
// kind by name and parameter count, so overloads with different arity are
// kept while re-visits of the same member are dropped.
type MemberSet struct {
	Events     []Member `json:"events,omitempty" yaml:"events,omitempty"`
	Fields     []Member `json:"fields,omitempty" yaml:"fields,omitempty"`
	Methods    []Member `json:"methods,omitempty" yaml:"methods,omitempty"`
	Properties []Member `json:"properties,omitempty" yaml:"properties,omitempty"`

	seen map[MemberKind]map[memberKey]bool
}

// Add records m under kind and reports whether it was new.
func (ms *MemberSet) Add(kind MemberKind, m Member) bool {
	if ms.seen == nil {
		ms.seen = make(map[MemberKind]map[memberKey]bool)
	}
	if ms.seen[kind] == nil {
		ms.seen[kind] = make(map[memberKey]bool)
	}
	key := memberKey{name: m.Name, params: m.Parameters}
	if ms.seen[kind][key] {
		return false
	}
	ms.seen[kind][key] = true

	switch kind {
	case MemberEvent:
		ms.Events = append(ms.Events, m)
	case MemberField:
		ms.Fields = append(ms.Fields, m)
	case MemberMethod:
		ms.Methods = append(ms.Methods, m)
	case MemberProperty:
		ms.Properties = append(ms.Properties, m)
	default:
		delete(ms.seen[kind], key)
		return false
	}
	return true
}

// Len returns the total number of members.
func (ms *MemberSet) Len() int {
	return len(ms.Events) + len(ms.Fields) + len(ms.Methods) + len(ms.Properties)
}

// Sort orders every member list by name, then parameter count.
func (ms *MemberSet) Sort() {
	for _, list := range [][]Member{ms.Events, ms.Fields, ms.Methods, ms.Properties} {
		sort.Slice(list, func(i, j int) bool {
			if list[i].Name != list[j].Name {
				return list[i].Name < list[j].Name
			}
			return list[i].Parameters < list[j].Parameters
		})
	}
}

// Sorted returns the surface's signatures ordered by their rendered form.
func (s *Surface) Sorted() []Signature {
	sigs := make([]Signature, 0, len(s.Types))
	for sig := range s.Types {
		sigs = append(sigs, sig)
	}
	sort.Slice(sigs, func(i, j int) bool { return sigs[i].String() < sigs[j].String() })
	return sigs
}
