package pipe

import "context"

type ctxKeyCorrelation struct{}

// WithCorrelationID tags ctx with the workflow correlation id for transport headers and logs.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, ctxKeyCorrelation{}, id)
}

func CorrelationID(ctx context.Context) string {
	s, _ := ctx.Value(ctxKeyCorrelation{}).(string)
	return s
}
