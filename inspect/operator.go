package inspect

import "context"

type operatorKey struct{}

// WithOperator tags ctx with the name of whoever triggers an operator action.
func WithOperator(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, operatorKey{}, name)
}

// OperatorFrom returns the operator stored in ctx, or "unknown".
func OperatorFrom(ctx context.Context) string {
	if ctx != nil {
		if name, ok := ctx.Value(operatorKey{}).(string); ok && name != "" {
			return name
		}
	}
	return "unknown"
}
