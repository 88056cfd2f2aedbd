// Package mangle implements spec §4.2 NameMangler: a pure function of
// (base, type-args, method-type-args) producing the canonical mangled
// name, plus its (partial, primitive-only) inverse.
package mangle

import (
	"strings"

	"github.com/tmlang/tmlc/internal/diag"
	"github.com/tmlang/tmlc/internal/sema"
)

const sep = "__"

// Type recursively mangles a single sema.Type into its canonical token.
// Pointer/reference prefixes use ptr_/mutptr_/ref_/mutref_ per spec §3.
func Type(t sema.Type) string {
	switch v := t.(type) {
	case *sema.Primitive:
		return string(v.Kind)
	case *sema.Named:
		if len(v.TypeArgs) == 0 {
			return v.Base
		}
		args := make([]string, len(v.TypeArgs))
		for i, a := range v.TypeArgs {
			args[i] = Type(a)
		}
		return v.Base + sep + strings.Join(args, sep)
	case *sema.Ptr:
		if v.IsMut {
			return "mutptr_" + Type(v.Inner)
		}
		return "ptr_" + Type(v.Inner)
	case *sema.Ref:
		if v.IsMut {
			return "mutref_" + Type(v.Inner)
		}
		return "ref_" + Type(v.Inner)
	case *sema.Tuple:
		elems := make([]string, len(v.Elements))
		for i, e := range v.Elements {
			elems[i] = Type(e)
		}
		return "Tuple" + sep + strings.Join(elems, sep)
	case *sema.Generic:
		// Should never reach emission (see sema.Type invariant); mangled
		// defensively so a stray placeholder still produces a stable,
		// if diagnostic-worthy, string rather than panicking.
		return "Generic_" + v.Param
	default:
		return "unknown"
	}
}

// Instantiation produces the canonical `Base__Arg1__Arg2` mangled name
// for a generic struct/enum/function instantiation. Generic parameters
// and method-level type arguments both flow through here, in the
// deterministic order the caller supplies (declaration order, then
// method-level args appended, per spec §4.2).
func Instantiation(base string, typeArgs []sema.Type) string {
	if len(typeArgs) == 0 {
		return base
	}
	parts := make([]string, len(typeArgs))
	for i, a := range typeArgs {
		parts[i] = Type(a)
	}
	return base + sep + strings.Join(parts, sep)
}

// Method mangles a method on a (possibly already-mangled) receiver type
// name, appending method-level generic type arguments with the same
// convention as Instantiation.
func Method(mangledReceiver, methodName string, methodTypeArgs []sema.Type) string {
	name := mangledReceiver + sep + methodName
	if len(methodTypeArgs) == 0 {
		return name
	}
	parts := make([]string, len(methodTypeArgs))
	for i, a := range methodTypeArgs {
		parts[i] = Type(a)
	}
	return name + sep + strings.Join(parts, sep)
}

var primPrefixes = []string{"mutptr_", "ptr_", "mutref_", "ref_"}

// Demangle parses a mangled name back into (base, type-args) for the
// single-base, N-flat-primitive-argument case spec property 3 covers:
// "For all type-name N and primitive args A*, demangle(mangle(N, A*)) =
// (N, A*)". It splits the name on the separator, then reads each argument
// token by stripping pointer/reference prefixes before matching a
// primitive token — this only
// recovers correctly for primitive args (see spec §9 Open Questions on
// the `__`-splitting hazard for nested generic args).
func Demangle(mangled string) (base string, args []sema.Type, err *diag.CodegenError) {
	parts := strings.Split(mangled, sep)
	if len(parts) == 0 || parts[0] == "" {
		return "", nil, diag.New(diag.MalformedMangledName, "empty mangled name")
	}
	base = parts[0]
	for _, p := range parts[1:] {
		t, perr := demangleOneToken(p)
		if perr != nil {
			return "", nil, perr
		}
		args = append(args, t)
	}
	return base, args, nil
}

// DemangleSingleParam recovers a single-parameter instantiation's type
// argument by treating the entire remainder after the base as one type,
// per spec §4.2 ("For a single-parameter context, the remainder after
// the base is one type (do not split on __)"). The remainder may itself
// be a nested mangled name (e.g. `ptr_Node__I32`), which is returned
// unparsed as the raw mangled string — the
// caller is expected to already know the declared type parameter's
// shape from the generic declaration, not to re-derive it from the name.
func DemangleSingleParam(mangled, base string) (string, *diag.CodegenError) {
	prefix := base + sep
	if !strings.HasPrefix(mangled, prefix) {
		return "", diag.New(diag.MalformedMangledName, "mangled name %q does not start with base %q", mangled, base)
	}
	return strings.TrimPrefix(mangled, prefix), nil
}

func demangleOneToken(tok string) (sema.Type, *diag.CodegenError) {
	for _, prefix := range primPrefixes {
		if strings.HasPrefix(tok, prefix) {
			inner := strings.TrimPrefix(tok, prefix)
			innerType, err := demangleOneToken(inner)
			if err != nil {
				return nil, err
			}
			switch prefix {
			case "mutptr_":
				return &sema.Ptr{IsMut: true, Inner: innerType}, nil
			case "ptr_":
				return &sema.Ptr{Inner: innerType}, nil
			case "mutref_":
				return &sema.Ref{IsMut: true, Inner: innerType}, nil
			case "ref_":
				return &sema.Ref{Inner: innerType}, nil
			}
		}
	}
	if kind, ok := sema.IsPrimitiveKind(tok); ok {
		return &sema.Primitive{Kind: kind}, nil
	}
	if tok == "" {
		return nil, diag.New(diag.MalformedMangledName, "empty type token")
	}
	return &sema.Named{Base: tok}, nil
}

// Bracketed renders the spec §9 Open-Questions alternative form
// `Base(Arg1)(Arg2)`, which is unambiguous to re-parse regardless of
// nesting because `(` / `)` never appear inside a single type token.
func Bracketed(base string, typeArgs []sema.Type) string {
	var b strings.Builder
	b.WriteString(base)
	for _, a := range typeArgs {
		b.WriteByte('(')
		b.WriteString(bracketedType(a))
		b.WriteByte(')')
	}
	return b.String()
}

func bracketedType(t sema.Type) string {
	switch v := t.(type) {
	case *sema.Primitive:
		return string(v.Kind)
	case *sema.Named:
		return Bracketed(v.Base, v.TypeArgs)
	case *sema.Ptr:
		if v.IsMut {
			return "mutptr_" + bracketedType(v.Inner)
		}
		return "ptr_" + bracketedType(v.Inner)
	case *sema.Ref:
		if v.IsMut {
			return "mutref_" + bracketedType(v.Inner)
		}
		return "ref_" + bracketedType(v.Inner)
	default:
		return Type(t)
	}
}

// ParseBracketed is the unambiguous inverse of Bracketed: it recovers
// the base name and each parenthesized argument as a raw string (the
// caller resolves each argument against the registry; this function
// only has to solve the separator-nesting problem, not type resolution).
func ParseBracketed(s string) (base string, args []string, err *diag.CodegenError) {
	open := strings.IndexByte(s, '(')
	if open == -1 {
		return s, nil, nil
	}
	base = s[:open]
	depth := 0
	start := -1
	for i := open; i < len(s); i++ {
		switch s[i] {
		case '(':
			if depth == 0 {
				start = i + 1
			}
			depth++
		case ')':
			depth--
			if depth == 0 {
				args = append(args, s[start:i])
			} else if depth < 0 {
				return "", nil, diag.New(diag.MalformedMangledName, "unbalanced parentheses in %q", s)
			}
		}
	}
	if depth != 0 {
		return "", nil, diag.New(diag.MalformedMangledName, "unbalanced parentheses in %q", s)
	}
	return base, args, nil
}
