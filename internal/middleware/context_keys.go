package middleware

import "context"

// callerKey stores the authenticated token subject in the request context.
const callerKey = contextKey("caller")

// GetCallerFromCtx returns the subject of the bearer token that authorized
// the request, if any.
func GetCallerFromCtx(ctx context.Context) (string, bool) {
	caller, ok := ctx.Value(callerKey).(string)
	return caller, ok && caller != ""
}
