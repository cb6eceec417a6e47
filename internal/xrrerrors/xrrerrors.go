// Copyright (C) 2020 Markus L. Noga
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

// Package xrrerrors defines the closed set of error kinds that can cross a
// reduction pipeline boundary, and maps them to process exit codes.
package xrrerrors

import "fmt"

// Kind enumerates the error variants a reduction can fail with.
type Kind int

const (
	// FileNotFound: a declared raw data file, recipe file, or normalisation
	// file could not be located after the search-path fallback.
	FileNotFound Kind = iota
	// ParseFailure: a raw file is present but its schema is unrecognised.
	ParseFailure
	// SchemaViolation: the recipe document fails validation.
	SchemaViolation
	// InvariantViolation: internal length/shape mismatch.
	InvariantViolation
	// FitFailure: a nonlinear fit did not converge within bounds/budget.
	FitFailure
	// InconsistentProfile: scans with differing energies were combined.
	InconsistentProfile
	// NumericalWarning: non-fatal, logged only.
	NumericalWarning
)

func (k Kind) String() string {
	switch k {
	case FileNotFound:
		return "FileNotFound"
	case ParseFailure:
		return "ParseFailure"
	case SchemaViolation:
		return "SchemaViolation"
	case InvariantViolation:
		return "InvariantViolation"
	case FitFailure:
		return "FitFailure"
	case InconsistentProfile:
		return "InconsistentProfile"
	case NumericalWarning:
		return "NumericalWarning"
	}
	return "Unknown"
}

// Error is a typed pipeline error carrying its Kind alongside context.
type Error struct {
	Kind    Kind
	Context string
	Err     error // optional wrapped cause
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %s", e.Kind, e.Context, e.Err.Error())
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Context)
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is an *Error of the same Kind, so that
// errors.Is(err, xrrerrors.Sentinel(xrrerrors.FitFailure)) matches any
// FitFailure regardless of its context string.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// New constructs an Error of the given kind with a formatted context string.
func New(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Context: fmt.Sprintf(format, args...)}
}

// Wrap constructs an Error of the given kind, wrapping an underlying cause.
func Wrap(kind Kind, err error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Context: fmt.Sprintf(format, args...), Err: err}
}

// Sentinel returns a zero-context Error of the given kind, suitable for use
// as an errors.Is() comparison target.
func Sentinel(kind Kind) *Error { return &Error{Kind: kind} }

// ExitCode maps an error to a process exit code, the only place in the
// module allowed to perform that mapping (cmd/xrrreduce delegates to it).
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	return 1
}
