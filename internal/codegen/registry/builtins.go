package registry

import "github.com/tmlang/tmlc/internal/sema"

// registerBuiltins performs the deterministic, startup-once registrations
// from spec §4.1: built-in enums, behaviors, numeric-type impls, and the
// I/O, string, math, memory, atomic, sync, and async intrinsic families.
func registerBuiltins(r *Registry) {
	registerBuiltinEnums(r)
	registerBuiltinBehaviors(r)
	registerNumericImpls(r)
	registerIOIntrinsics(r)
	registerStringIntrinsics(r)
	registerMathIntrinsics(r)
	registerMemoryIntrinsics(r)
	registerAtomicIntrinsics(r)
	registerSyncIntrinsics(r)
	registerAsyncIntrinsics(r)
}

func prim(k sema.PrimitiveKind) sema.Type { return &sema.Primitive{Kind: k} }

func registerBuiltinEnums(r *Registry) {
	r.RegisterEnum(&sema.EnumDef{
		Name: "Ordering",
		Variants: []sema.Variant{
			{Name: "Less"}, {Name: "Equal"}, {Name: "Greater"},
		},
	})
	r.RegisterEnum(&sema.EnumDef{
		Name:       "Maybe",
		TypeParams: []sema.TypeParam{{Name: "T"}},
		Variants: []sema.Variant{
			{Name: "Just", Fields: sema.VariantFields{Tuple: []sema.Type{&sema.Generic{Param: "T"}}}},
			{Name: "Nothing"},
		},
	})
	r.RegisterEnum(&sema.EnumDef{
		Name:       "Outcome",
		TypeParams: []sema.TypeParam{{Name: "T"}, {Name: "E"}},
		Variants: []sema.Variant{
			{Name: "Ok", Fields: sema.VariantFields{Tuple: []sema.Type{&sema.Generic{Param: "T"}}}},
			{Name: "Err", Fields: sema.VariantFields{Tuple: []sema.Type{&sema.Generic{Param: "E"}}}},
		},
	})
	r.RegisterEnum(&sema.EnumDef{
		Name:       "Poll",
		TypeParams: []sema.TypeParam{{Name: "T"}},
		Variants: []sema.Variant{
			{Name: "Ready", Fields: sema.VariantFields{Tuple: []sema.Type{&sema.Generic{Param: "T"}}}},
			{Name: "Pending"},
		},
	})
}

func registerBuiltinBehaviors(r *Registry) {
	r.RegisterBehavior(&sema.BehaviorDef{
		Name:            "Future",
		AssociatedTypes: []string{"Output"},
		Methods: []sema.MethodSig{
			{Name: "poll", Params: []sema.Field{{Name: "this", Type: &sema.Ref{IsMut: true, Inner: &sema.Generic{Param: "Self"}}}, {Name: "ctx", Type: &sema.Named{Base: "Context"}}},
				Return: &sema.Named{Base: "Poll", TypeArgs: []sema.Type{&sema.Generic{Param: "Self::Output"}}}},
		},
	})
	r.RegisterBehavior(&sema.BehaviorDef{
		Name: "Drop",
		Methods: []sema.MethodSig{
			{Name: "drop", Params: []sema.Field{{Name: "this", Type: &sema.Ref{IsMut: true, Inner: &sema.Generic{Param: "Self"}}}}, Return: prim(sema.Unit)},
		},
	})
}

// numericBehaviors are implemented by every integer/float kind.
var numericBehaviors = []string{"Eq", "Ord", "Hash", "Display", "Debug", "Default", "Duplicate", "Numeric"}

func registerNumericImpls(r *Registry) {
	numericKinds := []sema.PrimitiveKind{
		sema.I8, sema.I16, sema.I32, sema.I64, sema.I128,
		sema.U8, sema.U16, sema.U32, sema.U64, sema.U128,
		sema.F32, sema.F64,
	}
	for _, k := range numericKinds {
		for _, b := range numericBehaviors {
			r.RegisterImpl(string(k), b)
		}
	}
	// Bool: Eq/Ord/Hash/Display/Debug/Default/Duplicate, no Numeric.
	for _, b := range []string{"Eq", "Ord", "Hash", "Display", "Debug", "Default", "Duplicate"} {
		r.RegisterImpl(string(sema.Bool), b)
	}
	// Char: same subset as Bool.
	for _, b := range []string{"Eq", "Ord", "Hash", "Display", "Debug", "Default", "Duplicate"} {
		r.RegisterImpl(string(sema.Char), b)
	}
	// Str: no Default (spec §4.1 documents this exception explicitly).
	for _, b := range []string{"Eq", "Ord", "Hash", "Display", "Debug", "Duplicate"} {
		r.RegisterImpl(string(sema.Str), b)
	}
}

func registerIOIntrinsics(r *Registry) {
	r.RegisterBuiltinFunc(FuncSig{Name: "print", Params: []sema.Type{prim(sema.Str)}, Return: prim(sema.Unit)})
	r.RegisterBuiltinFunc(FuncSig{Name: "println", Params: []sema.Type{prim(sema.Str)}, Return: prim(sema.Unit)})
	r.RegisterBuiltinFunc(FuncSig{Name: "panic", Params: []sema.Type{prim(sema.Str)}, Return: prim(sema.Never)})
	r.RegisterBuiltinFunc(FuncSig{Name: "assert", Params: []sema.Type{prim(sema.Bool)}, Return: prim(sema.Unit)})

	for _, k := range []sema.PrimitiveKind{sema.I32, sema.I64, sema.F64, sema.Bool, sema.Str, sema.Char} {
		r.RegisterBuiltinFunc(FuncSig{Name: "assert_eq", Params: []sema.Type{prim(k), prim(k)}, Return: prim(sema.Unit)})
		r.RegisterBuiltinFunc(FuncSig{Name: "assert_ne", Params: []sema.Type{prim(k), prim(k)}, Return: prim(sema.Unit)})
	}
}

func registerStringIntrinsics(r *Registry) {
	str, boolT, i32, char := prim(sema.Str), prim(sema.Bool), prim(sema.I32), prim(sema.Char)
	simple := []struct {
		name   string
		params []sema.Type
		ret    sema.Type
	}{
		{"str_len", []sema.Type{str}, i32},
		{"str_eq", []sema.Type{str, str}, boolT},
		{"str_hash", []sema.Type{str}, prim(sema.U64)},
		{"str_concat", []sema.Type{str, str}, str},
		{"str_substring", []sema.Type{str, i32, i32}, str},
		{"str_contains", []sema.Type{str, str}, boolT},
		{"str_starts_with", []sema.Type{str, str}, boolT},
		{"str_ends_with", []sema.Type{str, str}, boolT},
		{"str_to_upper", []sema.Type{str}, str},
		{"str_to_lower", []sema.Type{str}, str},
		{"str_trim", []sema.Type{str}, str},
		{"str_char_at", []sema.Type{str, i32}, char},
		{"char_is_digit", []sema.Type{char}, boolT},
		{"char_is_alpha", []sema.Type{char}, boolT},
		{"char_is_alphanumeric", []sema.Type{char}, boolT},
		{"char_is_whitespace", []sema.Type{char}, boolT},
		{"char_is_upper", []sema.Type{char}, boolT},
		{"char_is_lower", []sema.Type{char}, boolT},
		{"char_to_digit", []sema.Type{char}, i32},
		{"char_from_digit", []sema.Type{i32}, char},
		{"char_code", []sema.Type{char}, i32},
		{"char_from_code", []sema.Type{i32}, char},
		{"sb_new", nil, &sema.Named{Base: "StringBuilder"}},
		{"sb_append", []sema.Type{&sema.Named{Base: "StringBuilder"}, str}, prim(sema.Unit)},
		{"sb_to_string", []sema.Type{&sema.Named{Base: "StringBuilder"}}, str},
	}
	for _, s := range simple {
		r.RegisterBuiltinFunc(FuncSig{Name: s.name, Params: s.params, Return: s.ret})
	}
}

func registerMathIntrinsics(r *Registry) {
	f64, i32, i64 := prim(sema.F64), prim(sema.I32), prim(sema.I64)
	unaryF64 := []string{"sqrt", "abs", "floor", "ceil", "round"}
	for _, name := range unaryF64 {
		r.RegisterBuiltinFunc(FuncSig{Name: name, Params: []sema.Type{f64}, Return: f64})
	}
	r.RegisterBuiltinFunc(FuncSig{Name: "pow", Params: []sema.Type{f64, f64}, Return: f64})
	r.RegisterBuiltinFunc(FuncSig{Name: "int_to_float", Params: []sema.Type{i64}, Return: f64})
	r.RegisterBuiltinFunc(FuncSig{Name: "float_to_int", Params: []sema.Type{f64}, Return: i64})
	r.RegisterBuiltinFunc(FuncSig{Name: "black_box", Params: []sema.Type{i32}, Return: i32})
}

func registerMemoryIntrinsics(r *Registry) {
	ptr := &sema.Ptr{Inner: prim(sema.U8)}
	mutPtr := &sema.Ptr{IsMut: true, Inner: prim(sema.U8)}
	u64, i32, boolT := prim(sema.U64), prim(sema.I32), prim(sema.Bool)
	r.RegisterBuiltinFunc(FuncSig{Name: "mem_alloc", Params: []sema.Type{u64}, Return: mutPtr})
	r.RegisterBuiltinFunc(FuncSig{Name: "mem_alloc_zeroed", Params: []sema.Type{u64}, Return: mutPtr})
	r.RegisterBuiltinFunc(FuncSig{Name: "mem_realloc", Params: []sema.Type{mutPtr, u64}, Return: mutPtr})
	r.RegisterBuiltinFunc(FuncSig{Name: "mem_free", Params: []sema.Type{mutPtr}, Return: prim(sema.Unit)})
	r.RegisterBuiltinFunc(FuncSig{Name: "mem_copy", Params: []sema.Type{mutPtr, ptr, u64}, Return: prim(sema.Unit)})
	r.RegisterBuiltinFunc(FuncSig{Name: "mem_move", Params: []sema.Type{mutPtr, ptr, u64}, Return: prim(sema.Unit)})
	r.RegisterBuiltinFunc(FuncSig{Name: "mem_set", Params: []sema.Type{mutPtr, i32, u64}, Return: prim(sema.Unit)})
	r.RegisterBuiltinFunc(FuncSig{Name: "mem_zero", Params: []sema.Type{mutPtr, u64}, Return: prim(sema.Unit)})
	r.RegisterBuiltinFunc(FuncSig{Name: "mem_compare", Params: []sema.Type{ptr, ptr, u64}, Return: i32})
	r.RegisterBuiltinFunc(FuncSig{Name: "mem_eq", Params: []sema.Type{ptr, ptr, u64}, Return: boolT})
}

func registerAtomicIntrinsics(r *Registry) {
	i64, mutPtrI64 := prim(sema.I64), &sema.Ptr{IsMut: true, Inner: prim(sema.I64)}
	r.RegisterBuiltinFunc(FuncSig{Name: "atomic_load", Params: []sema.Type{mutPtrI64}, Return: i64})
	r.RegisterBuiltinFunc(FuncSig{Name: "atomic_store", Params: []sema.Type{mutPtrI64, i64}, Return: prim(sema.Unit)})
	for _, name := range []string{"atomic_add", "atomic_sub", "atomic_exchange", "atomic_and", "atomic_or", "atomic_xor"} {
		r.RegisterBuiltinFunc(FuncSig{Name: name, Params: []sema.Type{mutPtrI64, i64}, Return: i64})
	}
	r.RegisterBuiltinFunc(FuncSig{Name: "atomic_cas", Params: []sema.Type{mutPtrI64, i64, i64}, Return: prim(sema.Bool)})
	r.RegisterBuiltinFunc(FuncSig{Name: "atomic_cas_val", Params: []sema.Type{mutPtrI64, i64, i64}, Return: i64})
	for _, name := range []string{"fence", "fence_acquire", "fence_release"} {
		r.RegisterBuiltinFunc(FuncSig{Name: name, Return: prim(sema.Unit)})
	}
}

func registerSyncIntrinsics(r *Registry) {
	mutPtrI32 := &sema.Ptr{IsMut: true, Inner: prim(sema.I32)}
	r.RegisterBuiltinFunc(FuncSig{Name: "spin_lock", Params: []sema.Type{mutPtrI32}, Return: prim(sema.Unit)})
	r.RegisterBuiltinFunc(FuncSig{Name: "spin_unlock", Params: []sema.Type{mutPtrI32}, Return: prim(sema.Unit)})
	r.RegisterBuiltinFunc(FuncSig{Name: "spin_trylock", Params: []sema.Type{mutPtrI32}, Return: prim(sema.Bool)})
}

func registerAsyncIntrinsics(r *Registry) {
	for _, k := range []sema.PrimitiveKind{sema.I32, sema.I64, sema.F64, sema.Bool, sema.Unit} {
		r.RegisterBuiltinFunc(FuncSig{
			Name:   "block_on",
			Params: []sema.Type{&sema.Named{Base: "Poll", TypeArgs: []sema.Type{prim(k)}}},
			Return: prim(k),
		})
	}
}
