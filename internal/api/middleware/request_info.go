package middleware

import "context"

const requestInfoKey contextKey = "request_info"

// requestInfo lets inner middleware report the authenticated actor back to the
// logging middleware, which runs before authentication.
type requestInfo struct {
	actorID string
	role    string
}

func withRequestInfo(ctx context.Context, info *requestInfo) context.Context {
	return context.WithValue(ctx, requestInfoKey, info)
}

func recordActor(ctx context.Context, actorID, role string) {
	if info, ok := ctx.Value(requestInfoKey).(*requestInfo); ok {
		info.actorID = actorID
		info.role = role
	}
}
