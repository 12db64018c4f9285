// Package guest implements the opcode-dispatch engine spec component
// C8 ("guest execution") drives: a minimal stack machine over a
// program's already-compiled instruction stream. The MTPScript→JS
// compiler that produces real program bytes from source text is out
// of scope (spec §1); this package only defines the concrete encoding
// this core's own execution engine understands, and the dispatcher
// that walks it, charging gas.Meter and calling into effects exactly
// the way a production guest runtime would.
package guest

import (
	"encoding/binary"

	"github.com/mtpscript/runtime/gas"
	"github.com/mtpscript/runtime/mtperr"
)

// Opcode is one instruction in a function's bytecode stream. It maps
// onto a gas.Opcode cost class via class() below; several guest
// opcodes can share one gas class, matching spec §4.4 Annex A's
// classes being coarser than any one instruction set.
type Opcode uint8

const (
	OpPushInt Opcode = iota
	OpPushDecimal
	OpPushString
	OpAdd
	OpSub
	OpMul
	OpParseJSON
	OpCallEffect
	OpReturn
	OpMakeRecord1
	OpSetField
)

// class maps a guest opcode onto the fixed gas cost class it charges
// (spec §4.4 Annex A).
func (op Opcode) class() (gas.Opcode, error) {
	switch op {
	case OpPushInt, OpPushDecimal, OpPushString, OpMakeRecord1, OpSetField:
		return gas.OpLoad, nil
	case OpAdd, OpSub, OpMul:
		return gas.OpMathBasic, nil
	case OpParseJSON:
		return gas.OpJSONParse, nil
	case OpCallEffect:
		return gas.OpEffectLog, nil // placeholder: Execute replaces it per effect name via effectGasClass (vm.go)
	case OpReturn:
		return gas.OpReturn, nil
	default:
		return 0, mtperr.New(mtperr.ForbiddenSyntax, "unknown guest opcode %d", op)
	}
}

// Instruction is one decoded bytecode instruction. At most one of
// IntArg/StrArg is meaningful, depending on Op.
type Instruction struct {
	Op     Opcode
	IntArg int64
	StrArg string
}

// Program is a compiled program's decoded form: one flat instruction
// stream per declared function. Functions never call each other in
// this minimal engine — spec §1 excludes the full language, and
// nothing in the acceptance scenarios needs more than straight-line
// and effect-calling code per entry point.
type Program struct {
	Functions map[string][]Instruction
}

// Decode parses program bytes in this engine's own binary encoding.
// The format is this core's concern alone (spec §1: "the core consumes
// a compiled program as opaque bytes" — opaque to the snapshot codec,
// not to the engine that ultimately executes it):
//
//	u32                        function count
//	per function:
//	  u8   nameLen, name bytes
//	  u32  instruction count
//	  per instruction:
//	    u8  opcode
//	    u8  argKind (0 none, 1 int64 BE, 2 length-prefixed (u32) string)
//	    ... argument bytes per argKind
func Decode(raw []byte) (*Program, error) {
	r := &byteReader{buf: raw}

	fnCount, err := r.u32()
	if err != nil {
		return nil, err
	}
	prog := &Program{Functions: make(map[string][]Instruction, fnCount)}
	for i := uint32(0); i < fnCount; i++ {
		nameLen, err := r.u8()
		if err != nil {
			return nil, err
		}
		name, err := r.bytes(int(nameLen))
		if err != nil {
			return nil, err
		}
		instrCount, err := r.u32()
		if err != nil {
			return nil, err
		}
		instrs := make([]Instruction, 0, instrCount)
		for j := uint32(0); j < instrCount; j++ {
			op, err := r.u8()
			if err != nil {
				return nil, err
			}
			kind, err := r.u8()
			if err != nil {
				return nil, err
			}
			instr := Instruction{Op: Opcode(op)}
			switch kind {
			case 0:
			case 1:
				n, err := r.i64()
				if err != nil {
					return nil, err
				}
				instr.IntArg = n
			case 2:
				strLen, err := r.u32()
				if err != nil {
					return nil, err
				}
				s, err := r.bytes(int(strLen))
				if err != nil {
					return nil, err
				}
				instr.StrArg = string(s)
			default:
				return nil, mtperr.New(mtperr.ForbiddenSyntax, "unknown instruction arg kind %d", kind)
			}
			instrs = append(instrs, instr)
		}
		prog.Functions[string(name)] = instrs
	}
	return prog, nil
}

// Encode serialises a Program back into this engine's binary form.
// Used by test fixtures and by the (out-of-scope) compiler's eventual
// codegen backend; the execution core itself only ever decodes.
func Encode(p *Program) []byte {
	var out []byte
	out = appendU32(out, uint32(len(p.Functions)))
	for name, instrs := range p.Functions {
		out = append(out, byte(len(name)))
		out = append(out, name...)
		out = appendU32(out, uint32(len(instrs)))
		for _, in := range instrs {
			out = append(out, byte(in.Op))
			switch in.Op {
			case OpPushInt:
				out = append(out, 1)
				out = appendI64(out, in.IntArg)
			case OpPushDecimal, OpPushString, OpParseJSON, OpCallEffect, OpMakeRecord1, OpSetField:
				out = append(out, 2)
				out = appendU32(out, uint32(len(in.StrArg)))
				out = append(out, in.StrArg...)
			default:
				out = append(out, 0)
			}
		}
	}
	return out
}

func appendU32(buf []byte, n uint32) []byte {
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], n)
	return append(buf, tmp[:]...)
}

func appendI64(buf []byte, n int64) []byte {
	var tmp [8]byte
	binary.BigEndian.PutUint64(tmp[:], uint64(n))
	return append(buf, tmp[:]...)
}

type byteReader struct {
	buf []byte
	pos int
}

func (r *byteReader) u8() (byte, error) {
	if r.pos+1 > len(r.buf) {
		return 0, mtperr.New(mtperr.ForbiddenSyntax, "truncated program bytes")
	}
	b := r.buf[r.pos]
	r.pos++
	return b, nil
}

func (r *byteReader) u32() (uint32, error) {
	if r.pos+4 > len(r.buf) {
		return 0, mtperr.New(mtperr.ForbiddenSyntax, "truncated program bytes")
	}
	n := binary.BigEndian.Uint32(r.buf[r.pos : r.pos+4])
	r.pos += 4
	return n, nil
}

func (r *byteReader) i64() (int64, error) {
	if r.pos+8 > len(r.buf) {
		return 0, mtperr.New(mtperr.ForbiddenSyntax, "truncated program bytes")
	}
	n := binary.BigEndian.Uint64(r.buf[r.pos : r.pos+8])
	r.pos += 8
	return int64(n), nil
}

func (r *byteReader) bytes(n int) ([]byte, error) {
	if r.pos+n > len(r.buf) {
		return nil, mtperr.New(mtperr.ForbiddenSyntax, "truncated program bytes")
	}
	b := r.buf[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}
