package shim

import "context"

type consoleKey struct{}

// WithConsole returns a context carrying c for host calls made under it.
func WithConsole(ctx context.Context, c *Console) context.Context {
	return context.WithValue(ctx, consoleKey{}, c)
}

// ConsoleFrom returns the console carried by ctx, if any.
func ConsoleFrom(ctx context.Context) (*Console, bool) {
	if ctx == nil {
		return nil, false
	}
	c, ok := ctx.Value(consoleKey{}).(*Console)
	return c, ok && c != nil
}
