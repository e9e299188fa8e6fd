package audit

import "context"

// Client identifies where a request came from.
type Client struct {
	IP        string
	UserAgent string
}

type clientKey struct{}

// ContextWithClient attaches request origin details picked up by every
// entry written with the returned context.
func ContextWithClient(ctx context.Context, c Client) context.Context {
	return context.WithValue(ctx, clientKey{}, c)
}

func ClientFromContext(ctx context.Context) Client {
	c, _ := ctx.Value(clientKey{}).(Client)
	return c
}
