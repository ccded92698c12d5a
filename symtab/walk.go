package symtab

import "iter"

// walkItem is one pending stack entry: either a namespace or a type
type walkItem struct {
	ns  Namespace
	sym Symbol
}

// Walk lazily yields every type declared under root, depth first.
//
// A namespace yields its own types (each followed by its nested types)
// before descending into child namespaces. The walk keeps an explicit stack,
// so deeply nested namespace trees do not grow the call stack.
func Walk(root Namespace) iter.Seq[Symbol] {
	return func(yield func(Symbol) bool) {
		if root == nil {
			return
		}
		stack := []walkItem{{ns: root}}
		for len(stack) > 0 {
			item := stack[len(stack)-1]
			stack = stack[:len(stack)-1]

			if item.sym != nil {
				if !yield(item.sym) {
					return
				}
				stack = pushSymbols(stack, item.sym.Nested())
				continue
			}

			children := item.ns.Namespaces()
			for i := len(children) - 1; i >= 0; i-- {
				stack = append(stack, walkItem{ns: children[i]})
			}
			stack = pushSymbols(stack, item.ns.Types())
		}
	}
}

// pushSymbols pushes syms in reverse so they pop in declaration order
func pushSymbols(stack []walkItem, syms []Symbol) []walkItem {
	for i := len(syms) - 1; i >= 0; i-- {
		stack = append(stack, walkItem{sym: syms[i]})
	}
	return stack
}
