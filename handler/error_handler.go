package handler

import (
	"fmt"
	"go-auth-api/common"
	"net/http"
	"runtime/debug"
)

// ErrorHandlingMiddleware is the terminal link of the chain: every handler
// returns a *common.AppError instead of writing its own error response, and
// this wrapper renders it into the uniform envelope. Panics are recovered and
// reported as INTERNAL_ERROR with the stack going only to the log.
func ErrorHandlingMiddleware(next func(http.ResponseWriter, *http.Request) *common.AppError) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				err := common.ErrInternal(fmt.Errorf("panic: %v\n%s", rec, debug.Stack()))
				err.Send(w, r)
			}
		}()

		if err := next(w, r); err != nil {
			err.Send(w, r)
		}
	}
}
