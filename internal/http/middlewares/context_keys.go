package middlewares

// gin context keys. Plain strings because gin.Context.Set only takes
// string keys.
const (
	CtxRequestID = "request_id"
	CtxUserID    = "auth.userID"
)
