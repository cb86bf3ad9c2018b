package domain

// Tag is a shared label identified by name.
type Tag struct {
	Name  string `json:"name"`
	State State  `json:"state"`
}

// Logbook is a shared collection identified by name.
type Logbook struct {
	Name  string `json:"name"`
	Owner string `json:"owner"`
	State State  `json:"state"`
}

// Attribute belongs to exactly one Property and is keyed by name within it.
type Attribute struct {
	Name  string `json:"name"`
	Value string `json:"value"`
	State State  `json:"state"`
}

// Property is a named set of attributes shared across log entries.
type Property struct {
	Name       string      `json:"name"`
	Owner      string      `json:"owner"`
	State      State       `json:"state"`
	Attributes []Attribute `json:"attributes"`
}

func NewTag(name string) Tag {
	return Tag{Name: name, State: StateActive}
}

func NewLogbook(name, owner string) Logbook {
	return Logbook{Name: name, Owner: owner, State: StateActive}
}

// Deactivate returns the inactive copy of the tag.
func (t Tag) Deactivate() Tag {
	t.State = StateInactive
	return t
}

// Deactivate returns the inactive copy of the logbook.
func (l Logbook) Deactivate() Logbook {
	l.State = StateInactive
	return l
}

// Deactivate returns the inactive copy of the property. Attributes keep their own state.
func (p Property) Deactivate() Property {
	p = p.Clone()
	p.State = StateInactive
	return p
}

// Clone returns a copy that shares no attribute storage with p.
func (p Property) Clone() Property {
	if p.Attributes != nil {
		attrs := make([]Attribute, len(p.Attributes))
		copy(attrs, p.Attributes)
		p.Attributes = attrs
	}
	return p
}

// Normalize fills default states and collapses attributes with the same name,
// keeping the position of the first and the content of the last occurrence.
func (p Property) Normalize() Property {
	p.State = p.State.Normalize()
	if len(p.Attributes) == 0 {
		return p
	}
	index := make(map[string]int, len(p.Attributes))
	attrs := make([]Attribute, 0, len(p.Attributes))
	for _, a := range p.Attributes {
		a.State = a.State.Normalize()
		if i, ok := index[a.Name]; ok {
			attrs[i] = a
			continue
		}
		index[a.Name] = len(attrs)
		attrs = append(attrs, a)
	}
	p.Attributes = attrs
	return p
}

// Attribute looks up an attribute by name.
func (p Property) Attribute(name string) (Attribute, bool) {
	for _, a := range p.Attributes {
		if a.Name == name {
			return a, true
		}
	}
	return Attribute{}, false
}

// DeactivateAttribute returns a copy with the named attribute flipped to Inactive.
// The attribute stays in the set. The second result reports whether it was present.
func (p Property) DeactivateAttribute(name string) (Property, bool) {
	p = p.Clone()
	for i := range p.Attributes {
		if p.Attributes[i].Name == name {
			p.Attributes[i].State = StateInactive
			return p, true
		}
	}
	return p, false
}
