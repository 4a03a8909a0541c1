package orchestrator

import (
	"context"
	"errors"

	"github.com/valpere/playconv/internal/backend"
	"github.com/valpere/playconv/internal/diag"
	"github.com/valpere/playconv/internal/dialect"
	"github.com/valpere/playconv/internal/playbook"
)

var errPanic = errors.New("adapter panic")

// codeFor maps an error to the diagnostic code reported for it.
func codeFor(err error) diag.Code {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, backend.ErrAuth):
		return diag.CodeBackendAuth
	case errors.Is(err, backend.ErrToolLoopExceeded):
		return diag.CodeToolLoopExceeded
	case errors.Is(err, context.DeadlineExceeded):
		return diag.CodeTimeout
	case errors.Is(err, backend.ErrTransport):
		return diag.CodeBackendTransport
	case errors.Is(err, backend.ErrMalformedResponse):
		return diag.CodeMalformedResponse
	case errors.Is(err, dialect.ErrAmbiguous):
		return diag.CodeClassificationAmbiguous
	case errors.Is(err, playbook.ErrParse):
		return diag.CodeFlattenParse
	}
	return diag.CodeInternal
}
