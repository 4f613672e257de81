package codegen

import (
	"bytes"
	"fmt"
	"strings"
	"unicode"

	"github.com/dave/jennifer/jen"
	"golang.org/x/tools/imports"

	"github.com/stencil-lang/stencil/compiler"
)

// Unit accumulates the compiled classes of one project into a single
// generated Go file. All classes share one set of registries, so literals,
// paths and imports intern once across the whole unit.
type Unit struct {
	pkg     string
	gen     *Generator
	decls   []jen.Code
	classes map[string]*ClassDefinition
}

func NewUnit(pkg string) *Unit {
	lits := NewLiteralRegistry()
	return &Unit{
		pkg: pkg,
		gen: NewGenerator(
			lits,
			NewPathRegistry(lits),
			NewImportRegistry(lits),
			NewExpressionRegistry(),
		),
		classes: make(map[string]*ClassDefinition),
	}
}

// Class returns the definition compiled for a template name, if any.
func (u *Unit) Class(templateName string) *ClassDefinition {
	return u.classes[templateName]
}

// VariadicPaths switches dotted-path lowering from per-path resolver
// functions to the runtime's generic variadic resolver. Takes effect for
// classes added afterwards.
func (u *Unit) VariadicPaths(on bool) { u.gen.variadic = on }

// MaxNativeInt sets the largest magnitude an integer literal may have and
// still construct through the native int path.
func (u *Unit) MaxNativeInt(v int64) { u.gen.Literals.MaxNative = v }

// AddClass compiles one normalized module into the unit under its dotted
// template name. A superclass named by the module must already have been
// added; callers compile in dependency order.
func (u *Unit) AddClass(templateName string, mod *compiler.Module) (*ClassDefinition, error) {
	var cls *compiler.ClassDef
	for _, stmt := range mod.Body {
		switch s := stmt.(type) {
		case *compiler.ImportStmt:
			for _, alias := range s.Names {
				bound := alias.As
				if bound == "" {
					bound = alias.Name
				}
				u.gen.Imports.Bind(bound, alias.Name, "")
			}
		case *compiler.ImportFromStmt:
			for _, alias := range s.Names {
				bound := alias.As
				if bound == "" {
					bound = alias.Name
				}
				u.gen.Imports.Bind(bound, s.Module, alias.Name)
			}
		case *compiler.ClassDef:
			if cls != nil {
				return nil, structural(s.Pos, "module %s holds more than one class", templateName)
			}
			cls = s
		default:
			return nil, structural(stmt.Position(), "unexpected top-level statement in %s", templateName)
		}
	}
	if cls == nil {
		return nil, structural(compiler.Position{}, "module %s holds no class", templateName)
	}

	var super *ClassDefinition
	switch len(cls.Bases) {
	case 0:
	case 1:
		base, ok := cls.Bases[0].(*compiler.NameExpr)
		if !ok {
			return nil, structural(cls.Pos, "superclass of %s is not a name", templateName)
		}
		super = u.classes[base.Name]
		if super == nil {
			return nil, fmt.Errorf("codegen: superclass %s of %s is not compiled", base.Name, templateName)
		}
	default:
		return nil, unsupported(cls.Pos, "multiple inheritance")
	}

	def := NewClassDefinition(GoClassName(templateName), super)
	for _, stmt := range cls.Body {
		if fn, ok := stmt.(*compiler.FuncDef); ok {
			if err := u.gen.RegisterMethod(def, fn); err != nil {
				return nil, err
			}
		}
	}
	code, err := u.gen.Class(cls, def)
	if err != nil {
		return nil, err
	}
	u.decls = append(u.decls, code...)
	u.classes[templateName] = def
	return def, nil
}

// Source renders the unit and formats it through the imports processor.
func (u *Unit) Source() (string, error) {
	f := jen.NewFile(u.pkg)
	f.HeaderComment("Code generated by stencilc. DO NOT EDIT.")

	f.Var().Id("initialized").Bool()
	f.Comment("// InitTemplates resolves the unit's constants and imports against ctx. Call")
	f.Comment("// it once before rendering; repeated calls are no-ops.")
	f.Func().Id("InitTemplates").
		Params(jen.Id("ctx").Op("*").Qual(runtimePkg, "Context")).
		Error().
		Block(
			jen.If(jen.Id("initialized")).Block(jen.Return(jen.Nil())),
			jen.Id("initLiterals").Call(),
			jen.If(jen.Id("initImports").Call(jen.Id("ctx")).Op("<").Lit(0).
				Op("||").
				Id("initExpressions").Call(jen.Id("ctx")).Op("<").Lit(0)).Block(
				jen.Return(jen.Id("ctx").Dot("Pending").Call()),
			),
			jen.Id("initialized").Op("=").True(),
			jen.Return(jen.Nil()),
		)

	u.gen.Literals.Emit(f)
	u.gen.Imports.Emit(f)
	u.gen.Expressions.Emit(f)
	u.gen.Paths.Emit(f)
	for _, d := range u.decls {
		f.Add(d)
	}

	var buf bytes.Buffer
	if err := f.Render(&buf); err != nil {
		return "", fmt.Errorf("codegen: render: %w", err)
	}
	formatted, err := imports.Process("templates.go", buf.Bytes(), &imports.Options{
		Comments:  true,
		TabIndent: true,
		TabWidth:  8,
	})
	if err != nil {
		return "", fmt.Errorf("codegen: format: %w", err)
	}
	return string(formatted), nil
}

// GoClassName derives the exported Go type name for a dotted template name:
// "base.layout" becomes "BaseLayout".
func GoClassName(templateName string) string {
	var b strings.Builder
	upper := true
	for _, r := range templateName {
		switch {
		case r == '.' || r == '_' || r == '-':
			upper = true
		case upper:
			b.WriteRune(unicode.ToUpper(r))
			upper = false
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
