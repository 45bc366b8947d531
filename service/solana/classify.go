package solana

import "fmt"

// Classification is the coarse category tag derived from a transaction's
// canonical instruction list, used to group generated output.
type Classification string

const (
	ClassSystem       Classification = "system"
	ClassToken        Classification = "token"
	ClassMemo         Classification = "memo"
	ClassProgram      Classification = "program"
	ClassComplex      Classification = "complex"
	ClassUnrecognized Classification = "unrecognized"
)

// complexThreshold is the instruction count at which a transaction stops
// being "multi-N" and becomes "complex".
const complexThreshold = 5

// singleInstructionTags maps a lone instruction's program id to its tag.
var singleInstructionTags = map[string]Classification{
	SystemProgram:     ClassSystem,
	TokenProgram:      ClassToken,
	Token2022Program:  ClassToken,
	MemoProgramSPL:    ClassMemo,
	MemoProgramLegacy: ClassMemo,
}

// Classify tags a transaction by its instruction composition. Pure function:
// no state, no I/O.
func Classify(instructions []Instruction) Classification {
	switch {
	case len(instructions) == 0:
		// Normalization returns nil instead of an empty list, so this is only
		// reachable when fed a transaction that had nothing resolvable.
		return ClassUnrecognized
	case len(instructions) == 1:
		if tag, ok := singleInstructionTags[instructions[0].ProgramID]; ok {
			return tag
		}
		if instructions[0].ProgramID == "" {
			return ClassUnrecognized
		}
		return ClassProgram
	case len(instructions) < complexThreshold:
		return Classification(fmt.Sprintf("multi-%d", len(instructions)))
	default:
		return ClassComplex
	}
}
