package builder

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/stencil-lang/stencil/codegen"
)

// cborEncMode holds CBOR encoding options with canonical mode for
// deterministic encoding.
var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("builder: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// ClassDescriptor is the wire form of one compiled template class: enough
// for an embedder to construct calls into the generated unit without
// recompiling the template.
type ClassDescriptor struct {
	Name    string             `cbor:"name"`
	Super   string             `cbor:"super,omitempty"`
	Methods []MethodDescriptor `cbor:"methods"`
}

// MethodDescriptor describes one method of a class descriptor. Defaulted
// reports per parameter whether a default value exists; the default's slot
// index is unit-internal and not part of the wire form.
type MethodDescriptor struct {
	Name      string   `cbor:"name"`
	Params    []string `cbor:"params,omitempty"`
	Defaulted []bool   `cbor:"defaulted,omitempty"`
	Virtual   bool     `cbor:"virtual,omitempty"`
}

// DescriptorFor builds the wire descriptor of a compiled class definition.
func DescriptorFor(def *codegen.ClassDefinition) *ClassDescriptor {
	d := &ClassDescriptor{Name: def.Name}
	if def.Super != nil {
		d.Super = def.Super.Name
	}
	for _, m := range def.Methods() {
		md := MethodDescriptor{
			Name:    m.Name,
			Params:  m.Params,
			Virtual: m.Virtual,
		}
		for _, slot := range m.DefaultSlots {
			md.Defaulted = append(md.Defaulted, slot >= 0)
		}
		d.Methods = append(d.Methods, md)
	}
	return d
}

// MarshalDescriptor serializes a ClassDescriptor to canonical CBOR bytes.
func MarshalDescriptor(d *ClassDescriptor) ([]byte, error) {
	return cborEncMode.Marshal(d)
}

// UnmarshalDescriptor deserializes a ClassDescriptor from CBOR bytes.
func UnmarshalDescriptor(data []byte) (*ClassDescriptor, error) {
	var d ClassDescriptor
	if err := cbor.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("builder: unmarshal descriptor: %w", err)
	}
	return &d, nil
}
