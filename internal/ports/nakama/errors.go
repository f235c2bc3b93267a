package nakama

import (
	"errors"

	"github.com/heroiclabs/nakama-common/runtime"

	"github.com/quarrelgame-framework/server/internal/app"
	"github.com/quarrelgame-framework/server/internal/domain"
)

// gRPC status codes used by runtime.NewError.
const (
	codeInvalidArgument    = 3
	codeNotFound           = 5
	codePermissionDenied   = 7
	codeFailedPrecondition = 9
	codeAborted            = 10
	codeDeadlineExceeded   = 4
	codeInternal           = 13
	codeUnauthenticated    = 16
)

// errorCode maps app errors onto gRPC status codes.
func errorCode(err error) int {
	var timeout *app.LoadTimeoutError
	var rejected *app.LoadRejectedError
	switch {
	case errors.As(err, &timeout):
		return codeDeadlineExceeded
	case errors.As(err, &rejected):
		return codeAborted
	case errors.Is(err, domain.ErrInvalidInput),
		errors.Is(err, domain.ErrEmptyParticipant),
		errors.Is(err, app.ErrUnknownCharacter):
		return codeInvalidArgument
	case errors.Is(err, app.ErrSessionNotFound),
		errors.Is(err, app.ErrUnknownParticipant),
		errors.Is(err, app.ErrNotInSession),
		errors.Is(err, app.ErrNotParticipant):
		return codeNotFound
	case errors.Is(err, app.ErrNotHost):
		return codePermissionDenied
	case errors.Is(err, app.ErrInvalidTicket),
		errors.Is(err, app.ErrTicketsDisabled):
		return codeUnauthenticated
	case errors.Is(err, app.ErrAlreadyStarted),
		errors.Is(err, app.ErrInvalidPhase),
		errors.Is(err, app.ErrNoReadyParticipants),
		errors.Is(err, app.ErrAlreadyInSession),
		errors.Is(err, app.ErrAlreadyReady),
		errors.Is(err, app.ErrNotReady),
		errors.Is(err, app.ErrNotSpawned),
		errors.Is(err, app.ErrNoActiveMove),
		errors.Is(err, domain.ErrAlreadyInRoster):
		return codeFailedPrecondition
	default:
		return codeInternal
	}
}

// toRuntimeError converts an app error for an RPC response.
func toRuntimeError(err error) error {
	code := errorCode(err)
	if code == codeInternal {
		return runtime.NewError("internal error", code)
	}
	return runtime.NewError(err.Error(), code)
}
