// Package errtag implements the error-kind taxonomy. It follows the
// txscript convention for script-engine errors: a typed code plus a
// free-form description, constructed with a single scriptError-style
// helper, generalized from a fixed sentinel set to the tracer's own
// taxonomy.
package errtag

import "fmt"

// Code is one entry of the error-kind taxonomy.
type Code string

const (
	// CheckOpcodeInvalid is check_<opcode>_invalid: a precondition of an
	// opcode violated (arity, size, encoding). Use WithOpcode to fill in
	// <opcode>.
	CheckOpcodeInvalid Code = "check_opcode_invalid"

	CheckBranchConditionInvalid Code = "check_branch_condition_invalid"

	// AssertionFailedAtLine and CheckAssertionAtLine take a line number via
	// WithLine.
	AssertionFailedAtLine Code = "assertion_failed_at_line"
	CheckAssertionAtLine  Code = "check_assertion_at_line"
	CheckAssumptionAtLine Code = "check_assumption_at_line"

	WarnPossibleSuccessWithoutSigCheck Code = "warn_possible_success_without_sig_check"

	UntrackedConstraintCheckFailed Code = "untracked_constraint_check_failed"

	SolverResultUnknown Code = "solver_result_unknown"
)

// Error is a tagged script-tracer error: a taxonomy code, an optional
// opcode/line qualifier, and a human-readable description, in the same
// shape txscript's scriptError(code, desc) pairs an ErrorCode with a
// description string.
type Error struct {
	Code   Code
	Opcode string // set via WithOpcode, for CheckOpcodeInvalid
	Line   int    // set via WithLine, for the *AtLine codes
	Desc   string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Tag(), e.Desc)
}

// Tag renders the final taxonomy string embedded in the report, e.g.
// "check_add_invalid" or "assertion_failed_at_line_42".
func (e *Error) Tag() string {
	switch e.Code {
	case CheckOpcodeInvalid:
		return fmt.Sprintf("check_%s_invalid", e.Opcode)
	case AssertionFailedAtLine, CheckAssertionAtLine, CheckAssumptionAtLine:
		return fmt.Sprintf("%s_%d", e.Code, e.Line)
	default:
		return string(e.Code)
	}
}

// New constructs a plain taxonomy error with no opcode/line qualifier.
func New(code Code, desc string) *Error {
	return &Error{Code: code, Desc: desc}
}

// WithOpcode constructs a check_<opcode>_invalid error.
func WithOpcode(opcode, desc string) *Error {
	return &Error{Code: CheckOpcodeInvalid, Opcode: opcode, Desc: desc}
}

// WithLine constructs one of the *_at_line_<N> errors.
func WithLine(code Code, line int, desc string) *Error {
	return &Error{Code: code, Line: line, Desc: desc}
}
