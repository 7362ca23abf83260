package sqlir

import (
	"errors"
	"fmt"
)

// Error represents a failure to lower a statement.
//
// Errors fall into three categories:
//   - Unsupported shape: no resolution or context rule matches a node
//   - Schema resolution: the schema resolver rejected a member, constant or join
//   - Internal consistency: a mapping lookup missed (pipeline contract violation)
//
// All of them are fatal: resolution is all-or-nothing and never retried.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Construct identifies the offending node, e.g. "MemberAccess(.Assistants)".
	Construct string
}

// ErrorCode categorizes resolution errors.
type ErrorCode string

const (
	// ErrCodeUnsupportedShape indicates a node with no matching rule.
	ErrCodeUnsupportedShape ErrorCode = "UNSUPPORTED_SHAPE"

	// ErrCodeSchemaResolution indicates the schema resolver rejected a request.
	ErrCodeSchemaResolution ErrorCode = "SCHEMA_RESOLUTION"

	// ErrCodeInternalConsistency indicates a mapping lookup missed.
	ErrCodeInternalConsistency ErrorCode = "INTERNAL_CONSISTENCY"
)

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Construct != "" {
		return fmt.Sprintf("%s: %s (at %s)", e.Code, e.Message, e.Construct)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsUnsupportedShape returns true if err is an unsupported-shape error.
// Uses errors.As to handle wrapped errors.
func IsUnsupportedShape(err error) bool {
	return hasCode(err, ErrCodeUnsupportedShape)
}

// IsSchemaResolution returns true if err is a schema resolution failure.
func IsSchemaResolution(err error) bool {
	return hasCode(err, ErrCodeSchemaResolution)
}

// IsInternalConsistency returns true if err is a mapping contract violation.
func IsInternalConsistency(err error) bool {
	return hasCode(err, ErrCodeInternalConsistency)
}

// CodeOf returns the error code of err, or "" if err is not an *Error.
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

func hasCode(err error, code ErrorCode) bool {
	return CodeOf(err) == code
}

// NewUnsupportedShapeError creates an Error for a node with no matching rule.
func NewUnsupportedShapeError(node any, format string, args ...any) *Error {
	return &Error{
		Code:      ErrCodeUnsupportedShape,
		Message:   fmt.Sprintf(format, args...),
		Construct: Describe(node),
	}
}

// NewSchemaError creates an Error for a rejected schema lookup.
func NewSchemaError(construct, format string, args ...any) *Error {
	return &Error{
		Code:      ErrCodeSchemaResolution,
		Message:   fmt.Sprintf(format, args...),
		Construct: construct,
	}
}

// NewInternalConsistencyError creates an Error for a missed mapping lookup.
func NewInternalConsistencyError(node any, format string, args ...any) *Error {
	return &Error{
		Code:      ErrCodeInternalConsistency,
		Message:   fmt.Sprintf(format, args...),
		Construct: Describe(node),
	}
}

// Describe returns a short description of a tree node for diagnostics.
func Describe(node any) string {
	switch n := node.(type) {
	case nil:
		return "<nil>"
	case *Constant:
		return fmt.Sprintf("Constant(%v)", n.Value)
	case *Column:
		return fmt.Sprintf("Column([%s].[%s])", n.TableAlias, n.Name)
	case *Entity:
		return fmt.Sprintf("Entity(%s [%s])", n.T, n.TableAlias)
	case *EntityConstant:
		return fmt.Sprintf("EntityConstant(%s)", n.T)
	case *EntityRefMember:
		return fmt.Sprintf("EntityRefMember(%s.%s)", n.Entity.T, n.Member.Name)
	case *Named:
		return fmt.Sprintf("Named(%s)", n.Name)
	case *SubStatement:
		return "SubStatement"
	case *Case:
		return "Case"
	case *IsNull:
		return "IsNull"
	case *IsNotNull:
		return "IsNotNull"
	case *GroupingSelect:
		return "GroupingSelect"
	case *Aggregation:
		return fmt.Sprintf("Aggregation(%s)", n.Func)
	case *Function:
		return fmt.Sprintf("Function(%s)", n.Name)
	case *Binary:
		return fmt.Sprintf("Binary(%s)", n.Op)
	case *Unary:
		return fmt.Sprintf("Unary(%s)", n.Op)
	case *New:
		return fmt.Sprintf("New(%s)", n.Ctor)
	case *MemberAccess:
		return fmt.Sprintf("MemberAccess(.%s)", n.Member.Name)
	case *TypeCheck:
		return fmt.Sprintf("TypeCheck(%s)", n.Target)
	case *TableReference:
		return fmt.Sprintf("TableReference(%s)", n.Table.ItemType())
	case *ConvertedBoolean:
		return "ConvertedBoolean"
	case *Statement:
		return "Statement"
	case *SqlTable:
		return fmt.Sprintf("SqlTable(%s)", n.ItemType())
	case TableSource:
		return fmt.Sprintf("%T", n)
	case JoinInfo:
		return fmt.Sprintf("%T", n)
	default:
		return fmt.Sprintf("%T", node)
	}
}
