package codegen

import (
	"fmt"
	"sort"
)

// goReservedNames are method names that cannot become Go identifiers on the
// generated struct: language keywords plus the struct's own field names.
var goReservedNames = map[string]bool{
	"break": true, "case": true, "chan": true, "const": true, "continue": true,
	"default": true, "defer": true, "else": true, "fallthrough": true,
	"for": true, "func": true, "go": true, "goto": true, "if": true,
	"import": true, "interface": true, "map": true, "package": true,
	"range": true, "return": true, "select": true, "struct": true,
	"switch": true, "type": true, "var": true,

	"ctx": true, "display": true, "transaction": true, "receiver": true, "impl": true,
}

// MethodSpec describes one compiled method of a template class. Params
// excludes the receiver; DefaultSlots holds the expression-registry slot of
// each parameter's default value, -1 for required parameters.
type MethodSpec struct {
	Name         string
	Params       []string
	DefaultSlots []int
	// Virtual records that a subclass overrides the method. Dispatch is
	// always late-bound; the flag is descriptor metadata for embedders.
	Virtual bool
}

// NumRequired returns the count of parameters without defaults.
func (m *MethodSpec) NumRequired() int {
	n := 0
	for _, s := range m.DefaultSlots {
		if s < 0 {
			n++
		}
	}
	return n
}

// ParamIndex returns the position of the named parameter, or -1.
func (m *MethodSpec) ParamIndex(name string) int {
	for i, p := range m.Params {
		if p == name {
			return i
		}
	}
	return -1
}

// ClassDefinition describes one template class: its Go type name, its
// superclass, and its method table. Definitions are built by a registration
// pass before any method body is generated, so forward references within a
// class resolve.
type ClassDefinition struct {
	Name    string
	Super   *ClassDefinition
	methods map[string]*MethodSpec
}

func NewClassDefinition(name string, super *ClassDefinition) *ClassDefinition {
	return &ClassDefinition{
		Name:    name,
		Super:   super,
		methods: make(map[string]*MethodSpec),
	}
}

// Methods returns the class's own methods, sorted by name. Inherited methods
// are not included; callers walk Super for the full table.
func (c *ClassDefinition) Methods() []*MethodSpec {
	out := make([]*MethodSpec, 0, len(c.methods))
	for _, m := range c.methods {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Lookup resolves a method through the superclass chain.
func (c *ClassDefinition) Lookup(name string) *MethodSpec {
	for d := c; d != nil; d = d.Super {
		if m, ok := d.methods[name]; ok {
			return m
		}
	}
	return nil
}

// AddMethod registers a method. Overrides must keep the signature of the
// overridden method; the inherited spec is marked virtual.
func (c *ClassDefinition) AddMethod(name string, params []string, defaultSlots []int) (*MethodSpec, error) {
	if goReservedNames[name] {
		return nil, fmt.Errorf("method name %q is reserved", name)
	}
	if _, ok := c.methods[name]; ok {
		return nil, fmt.Errorf("method %s redefined in class %s", name, c.Name)
	}
	if c.Super != nil {
		if inherited := c.Super.Lookup(name); inherited != nil {
			if len(params) != len(inherited.Params) {
				return nil, fmt.Errorf(
					"method %s of %s takes %d parameters; the inherited method takes %d",
					name, c.Name, len(params), len(inherited.Params))
			}
			for i := range params {
				if (defaultSlots[i] < 0) != (inherited.DefaultSlots[i] < 0) {
					return nil, fmt.Errorf(
						"method %s of %s changes which parameters are defaulted",
						name, c.Name)
				}
			}
			inherited.Virtual = true
		}
	}
	m := &MethodSpec{Name: name, Params: params, DefaultSlots: defaultSlots}
	c.methods[name] = m
	return m, nil
}
