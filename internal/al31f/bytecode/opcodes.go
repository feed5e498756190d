// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.
//
// The ProbeChain is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

// Package bytecode implements the AL31F instruction enumeration and the
// immutable CompiledProgram module described in spec.md §4.3 and §6.1/§6.2.
//
// The instruction categories mirror spec.md §4.3's table; unlike the
// teacher's flat `[opcode:8][a:8][b:8][c:8]` register file, operands here
// are typed per-instruction (frame-relative slot indices, code addresses,
// pool handles) since the VM operates on tagged Values rather than raw
// uint64 registers.
package bytecode

// Opcode is the discriminant of an Instruction.
type Opcode uint16

const (
	// ---- Arithmetic, specialized (assume operand type; no checks) --------
	OpAddInt Opcode = iota
	OpSubInt
	OpMulInt
	OpDivInt
	OpModInt
	OpAddFloat
	OpSubFloat
	OpMulFloat
	OpDivFloat
	OpNegInt
	OpNegFloat

	// ---- Arithmetic, generic (dispatch on runtime tag) --------------------
	OpAddAny
	OpSubAny
	OpMulAny
	OpDivAny
	OpModAny

	// ---- Comparison --------------------------------------------------------
	OpEqInt
	OpEqFloat
	OpEqChar
	OpEqBool
	OpEqRef
	OpEqAny
	OpLtInt
	OpLtFloat
	OpLtAny
	OpGeInt
	OpGeFloat
	OpGeAny

	// ---- Bitwise/logical ----------------------------------------------------
	OpBAndInt
	OpBOrInt
	OpBXorInt
	OpShlInt
	OpShrInt
	OpNotBool
	OpBAndAny
	OpNotAny

	// ---- Casts ---------------------------------------------------------------
	OpCastFloatInt
	OpCastIntFloat
	OpCastAnyChar
	OpCastAnyInt
	OpCastIntChar // unimplemented; spec.md §9 leaves its semantics unspecified

	// ---- Constant loading ------------------------------------------------
	OpMakeIntConst
	OpLoadConst
	OpSaveConst

	// ---- Null --------------------------------------------------------------
	OpIsNull
	OpNullCheck

	// ---- Type check ----------------------------------------------------------
	OpTypeCheck

	// ---- Calls -----------------------------------------------------------
	OpCall
	OpCallTyck
	OpCallPtr
	OpCallPtrTyck
	OpCallOverload
	OpFFICallTyck
	OpFFICallRtlc
	OpFFICall
	OpFFICallAsync
	OpFFICallAsyncTyck
	OpAwait

	// ---- Returns -----------------------------------------------------------
	OpReturnNothing
	OpReturnOne
	OpReturn

	// ---- Control flow --------------------------------------------------------
	OpJump
	OpJumpIfTrue
	OpJumpIfFalse

	// ---- Exceptions ----------------------------------------------------------
	OpRaise

	// ---- Object/container ------------------------------------------------
	OpCreateObject
	OpCreateContainer
	OpVecPush
	OpVecIndex
	OpVecPop
	OpVecLen
	OpObjectGet
	OpObjectPut
	OpStrConcat

	opcodeCount
)

type opcodeInfo struct {
	name     string
	operands int
}

var opcodeTable = [opcodeCount]opcodeInfo{
	OpAddInt:   {"ADD_INT", 3},
	OpSubInt:   {"SUB_INT", 3},
	OpMulInt:   {"MUL_INT", 3},
	OpDivInt:   {"DIV_INT", 3},
	OpModInt:   {"MOD_INT", 3},
	OpAddFloat: {"ADD_FLOAT", 3},
	OpSubFloat: {"SUB_FLOAT", 3},
	OpMulFloat: {"MUL_FLOAT", 3},
	OpDivFloat: {"DIV_FLOAT", 3},
	OpNegInt:   {"NEG_INT", 2},
	OpNegFloat: {"NEG_FLOAT", 2},

	OpAddAny: {"ADD_ANY", 3},
	OpSubAny: {"SUB_ANY", 3},
	OpMulAny: {"MUL_ANY", 3},
	OpDivAny: {"DIV_ANY", 3},
	OpModAny: {"MOD_ANY", 3},

	OpEqInt:   {"EQ_INT", 3},
	OpEqFloat: {"EQ_FLOAT", 3},
	OpEqChar:  {"EQ_CHAR", 3},
	OpEqBool:  {"EQ_BOOL", 3},
	OpEqRef:   {"EQ_REF", 3},
	OpEqAny:   {"EQ_ANY", 3},
	OpLtInt:   {"LT_INT", 3},
	OpLtFloat: {"LT_FLOAT", 3},
	OpLtAny:   {"LT_ANY", 3},
	OpGeInt:   {"GE_INT", 3},
	OpGeFloat: {"GE_FLOAT", 3},
	OpGeAny:   {"GE_ANY", 3},

	OpBAndInt: {"BAND_INT", 3},
	OpBOrInt:  {"BOR_INT", 3},
	OpBXorInt: {"BXOR_INT", 3},
	OpShlInt:  {"SHL_INT", 3},
	OpShrInt:  {"SHR_INT", 3},
	OpNotBool: {"NOT_BOOL", 2},
	OpBAndAny: {"BAND_ANY", 3},
	OpNotAny:  {"NOT_ANY", 2},

	OpCastFloatInt: {"CAST_FLOAT_INT", 2},
	OpCastIntFloat: {"CAST_INT_FLOAT", 2},
	OpCastAnyChar:  {"CAST_ANY_CHAR", 2},
	OpCastAnyInt:   {"CAST_ANY_INT", 2},
	OpCastIntChar:  {"CAST_INT_CHAR", 2},

	OpMakeIntConst: {"MAKE_INT_CONST", 2},
	OpLoadConst:    {"LOAD_CONST", 2},
	OpSaveConst:    {"SAVE_CONST", 2},

	OpIsNull:    {"IS_NULL", 2},
	OpNullCheck: {"NULL_CHECK", 1},

	OpTypeCheck: {"TYPE_CHECK", 2},

	OpCall:             {"CALL", 0},
	OpCallTyck:         {"CALL_TYCK", 0},
	OpCallPtr:          {"CALL_PTR", 0},
	OpCallPtrTyck:      {"CALL_PTR_TYCK", 0},
	OpCallOverload:     {"CALL_OVERLOAD", 0},
	OpFFICallTyck:      {"FFI_CALL_TYCK", 0},
	OpFFICallRtlc:      {"FFI_CALL_RTLC", 0},
	OpFFICall:          {"FFI_CALL", 0},
	OpFFICallAsync:     {"FFI_CALL_ASYNC", 0},
	OpFFICallAsyncTyck: {"FFI_CALL_ASYNC_TYCK", 0},
	OpAwait:            {"AWAIT", 2},

	OpReturnNothing: {"RETURN_NOTHING", 0},
	OpReturnOne:     {"RETURN_ONE", 1},
	OpReturn:        {"RETURN", 0},

	OpJump:        {"JUMP", 1},
	OpJumpIfTrue:  {"JUMP_IF_TRUE", 2},
	OpJumpIfFalse: {"JUMP_IF_FALSE", 2},

	OpRaise: {"RAISE", 1},

	OpCreateObject:    {"CREATE_OBJECT", 1},
	OpCreateContainer: {"CREATE_CONTAINER", 2},
	OpVecPush:         {"VEC_PUSH", 2},
	OpVecIndex:        {"VEC_INDEX", 3},
	OpVecPop:          {"VEC_POP", 2},
	OpVecLen:          {"VEC_LEN", 2},
	OpObjectGet:       {"OBJECT_GET", 3},
	OpObjectPut:       {"OBJECT_PUT", 3},
	OpStrConcat:       {"STR_CONCAT", 3},
}

// String returns the mnemonic name of the opcode, used by disassembly and
// error messages.
func (op Opcode) String() string {
	if int(op) >= len(opcodeTable) || opcodeTable[op].name == "" {
		return "UNKNOWN"
	}
	return opcodeTable[op].name
}
