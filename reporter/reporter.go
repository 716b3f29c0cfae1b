// Copyright 2020-2025 Buf Technologies, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package reporter contains the types used for reporting errors and warnings
// from compiling embedded WGSL fragments. Errors and warnings carry the source
// position that produced them, which for text inlined through an import is the
// position of the exporting definition.
package reporter

import (
	"sync"

	"github.com/bufbuild/wgslcompile/ast"
)

// ErrorReporter is responsible for reporting the given error. If the reporter
// returns a non-nil error, compilation aborts with that error. If the
// reporter returns nil, compilation will continue, allowing the compiler to
// try to report as many errors as it can find.
type ErrorReporter func(err ErrorWithPos) error

// WarningReporter is responsible for reporting the given warning. This is used
// for indicating non-error messages to the calling program for things that do
// not cause compilation to fail but are considered bad practice. Though they
// are just warnings, the details are supplied to the reporter via an error
// type.
type WarningReporter func(ErrorWithPos)

// Reporter is a type that handles reporting both errors and warnings.
type Reporter interface {
	// Error is called when the given error is encountered and needs to be
	// reported to the calling program. This signature matches ErrorReporter
	// because it has the same semantics. If this function returns non-nil
	// then the compile operation will abort immediately.
	Error(ErrorWithPos) error
	// Warning is called when the given warning is encountered and needs to be
	// reported to the calling program. Despite the argument being an error
	// type, a warning will never cause the compile operation to abort.
	Warning(ErrorWithPos)
}

// NewReporter creates a new reporter that invokes the given functions on error
// or warning.
func NewReporter(errs ErrorReporter, warnings WarningReporter) Reporter {
	return reporterFuncs{errs: errs, warnings: warnings}
}

type reporterFuncs struct {
	errs     ErrorReporter
	warnings WarningReporter
}

func (r reporterFuncs) Error(err ErrorWithPos) error {
	if r.errs == nil {
		return err
	}
	return r.errs(err)
}

func (r reporterFuncs) Warning(err ErrorWithPos) {
	if r.warnings != nil {
		r.warnings(err)
	}
}

// Handler is used by the compiler as a mechanism for reporting errors and
// warnings. Handlers are thread-safe.
type Handler struct {
	reporter Reporter

	mu           sync.Mutex
	errsReported bool
	err          error
}

// NewHandler creates a new Handler that reports errors and warnings using the
// given reporter.
func NewHandler(rep Reporter) *Handler {
	if rep == nil {
		rep = NewReporter(nil, nil)
	}
	return &Handler{reporter: rep}
}

// HandleErrorf handles an error with the given source position, creating the
// error using the given message format and arguments.
//
// If the handler has already aborted (by returning a non-nil error from a
// previous call), that same error is returned and the given error is not
// reported.
func (h *Handler) HandleErrorf(pos ast.SourcePos, format string, args ...any) error {
	return h.HandleError(Errorf(pos, format, args...))
}

// HandleError handles the given error. If the given err is an ErrorWithPos, it
// is reported, and this function returns the error returned by the handler's
// reporter. Otherwise this method returns the given error.
//
// If the handler has already aborted (by returning a non-nil error from a
// previous call), that same error is returned and the given error is not
// reported.
func (h *Handler) HandleError(err error) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.err != nil {
		return h.err
	}
	if ewp, ok := err.(ErrorWithPos); ok {
		h.errsReported = true
		err = h.reporter.Error(ewp)
	}
	h.err = err
	return err
}

// HandleWarning handles a warning with the given source position. This will
// delegate to the handler's configured reporter.
func (h *Handler) HandleWarning(pos ast.SourcePos, err error) {
	// no need for lock; warnings don't interact with mutable fields
	h.reporter.Warning(errorWithSourcePos{pos: pos, underlying: err})
}

// HandleWarningf handles a warning with the given source position, creating
// the warning using the given message format and arguments.
func (h *Handler) HandleWarningf(pos ast.SourcePos, format string, args ...any) {
	h.HandleWarning(pos, Errorf(pos, format, args...).Unwrap())
}

// Error returns an error that represents the handler's overall state. If the
// handler reported any errors but the configured reporter suppressed them all
// (by returning nil), this returns ErrInvalidFragment.
func (h *Handler) Error() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.errsReported && h.err == nil {
		return ErrInvalidFragment
	}
	return h.err
}

// ReporterError returns the error returned by the handler's reporter, if it
// has aborted the compile operation.
func (h *Handler) ReporterError() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.err
}
