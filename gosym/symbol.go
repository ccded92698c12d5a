package gosym

import (
	"go/types"

	"github.com/teranos/autojson/symtab"
)

// Symbol is a package-level named type
type Symbol struct {
	obj  *types.TypeName
	kind symtab.Kind
}

var _ symtab.Symbol = (*Symbol)(nil)

func newSymbol(obj *types.TypeName) *Symbol {
	return &Symbol{obj: obj, kind: kindOf(obj)}
}

func (s *Symbol) Kind() symtab.Kind { return s.kind }
func (s *Symbol) Name() string      { return s.obj.Name() }

// Namespace is the import path of the declaring package
func (s *Symbol) Namespace() string {
	if s.obj.Pkg() == nil {
		return ""
	}
	return s.obj.Pkg().Path()
}

func (s *Symbol) QualifiedName() string { return qualifiedName(s.obj) }

// Nested is always empty: Go has no package-level nested type declarations
func (s *Symbol) Nested() []symtab.Symbol { return nil }

// Object exposes the underlying type checker object
func (s *Symbol) Object() *types.TypeName { return s.obj }

// PackageName is the name of the declaring package
func (s *Symbol) PackageName() string {
	if s.obj.Pkg() == nil {
		return ""
	}
	return s.obj.Pkg().Name()
}

func qualifiedName(obj *types.TypeName) string {
	if obj.Pkg() == nil {
		return obj.Name()
	}
	return obj.Pkg().Path() + "." + obj.Name()
}

func kindOf(obj *types.TypeName) symtab.Kind {
	named, ok := obj.Type().(*types.Named)
	if !ok || named.TypeParams().Len() > 0 {
		return symtab.KindOther
	}
	switch named.Underlying().(type) {
	case *types.Struct:
		return symtab.KindStruct
	case *types.Interface:
		return symtab.KindInterface
	case *types.Signature:
		return symtab.KindDelegate
	case *types.Basic:
		return symtab.KindEnum
	default:
		return symtab.KindOther
	}
}

// namedOf strips pointers and aliases from an embedded field type
func namedOf(t types.Type) (*types.Named, bool) {
	t = types.Unalias(t)
	if ptr, ok := t.(*types.Pointer); ok {
		t = types.Unalias(ptr.Elem())
	}
	named, ok := t.(*types.Named)
	return named, ok
}

func sameTypeName(a, b *types.TypeName) bool {
	return qualifiedName(a) == qualifiedName(b)
}
