package vm

import (
	"fmt"

	"stcc1/pkg/tac"
)

var opcodeMnemonics = map[tac.Opcode]string{
	tac.OpNop:          "NOP",
	tac.OpAdd:          "ADD",
	tac.OpSub:          "SUB",
	tac.OpMul:          "MUL",
	tac.OpDiv:          "DIV",
	tac.OpMod:          "MOD",
	tac.OpNeg:          "NEG",
	tac.OpAnd:          "AND",
	tac.OpOr:           "OR",
	tac.OpXor:          "XOR",
	tac.OpShl:          "SHL",
	tac.OpShr:          "SHR",
	tac.OpBitwiseNot:   "BNOT",
	tac.OpNot:          "NOT",
	tac.OpLogicalAnd:   "LAND",
	tac.OpLogicalOr:    "LOR",
	tac.OpEq:           "EQ",
	tac.OpNe:           "NE",
	tac.OpLt:           "LT",
	tac.OpLe:           "LE",
	tac.OpGt:           "GT",
	tac.OpGe:           "GE",
	tac.OpAssign:       "ASSIGN",
	tac.OpLoad:         "LOAD",
	tac.OpStore:        "STORE",
	tac.OpAddr:         "ADDR",
	tac.OpIndex:        "INDEX",
	tac.OpMember:       "MEMBER",
	tac.OpMemberPtr:    "MEMBERPTR",
	tac.OpLabel:        "LABEL",
	tac.OpGoto:         "GOTO",
	tac.OpIfFalse:      "IF_FALSE",
	tac.OpIfTrue:       "IF_TRUE",
	tac.OpCall:         "CALL",
	tac.OpParam:        "PARAM",
	tac.OpReturn:       "RETURN",
	tac.OpReturnVoid:   "RETURN_VOID",
	tac.OpCast:         "CAST",
	tac.OpSizeof:       "SIZEOF",
	tac.OpPhi:          "PHI",
}

// Mnemonic returns the human-readable opcode name, or a numeric fallback
// for an opcode value outside the known set.
func Mnemonic(op tac.Opcode) string {
	if m, ok := opcodeMnemonics[op]; ok {
		return m
	}
	return fmt.Sprintf("OP(%d)", uint16(op))
}

func (e *Engine) formatOperand(op tac.Operand) string {
	switch op.Kind {
	case tac.OperandNone:
		return "-"
	case tac.OperandTemp:
		return fmt.Sprintf("t%d", op.ID)
	case tac.OperandVar:
		if e.symtab != nil {
			return e.resolveVariableName(op.ID)
		}
		return fmt.Sprintf("var_%d", op.ID)
	case tac.OperandImmediateI32:
		return fmt.Sprintf("%d", op.Immediate)
	case tac.OperandLabel:
		return fmt.Sprintf("L%d", op.Label)
	case tac.OperandParam:
		return fmt.Sprintf("param[%d]", op.Index)
	case tac.OperandFunction:
		return fmt.Sprintf("func(%d)", op.Index)
	case tac.OperandGlobal:
		return fmt.Sprintf("global(%d)", op.Index)
	case tac.OperandReturnVal:
		return "retval"
	default:
		return "?"
	}
}

// Disassemble renders count instructions starting at address start (both
// 1-based, per the stores' convention), one line per instruction.
func (e *Engine) Disassemble(start uint32, count int) []string {
	out := make([]string, 0, count)
	for i := 0; i < count; i++ {
		addr := start + uint32(i)
		if addr == 0 || int(addr) > len(e.code) {
			break
		}
		in := e.code[addr-1]
		line := fmt.Sprintf("%6d: %-12s %s, %s, %s", addr, Mnemonic(in.Opcode),
			e.formatOperand(in.Result), e.formatOperand(in.Operand1), e.formatOperand(in.Operand2))
		out = append(out, line)
	}
	return out
}
