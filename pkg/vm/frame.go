package vm

import "stcc1/pkg/tac"

// frame is a call-stack entry (§4.7.1): the return address, the caller's
// temp array at the moment of CALL (restored on return so a callee that
// reuses the caller's temp ids, as a recursive call does, cannot clobber
// the caller's values), the destination the callee's
// RETURN value is written into, and the incoming-parameter snapshot a
// PARAM-kind operand indexes into within this frame.
type frame struct {
	returnAddr    uint32
	savedTemps    []Value
	resultDest    tac.Operand
	incomingParams []Value
}
