package service

import (
	"context"

	"cooling_control/internal/models"
)

type operatorKey struct{}

// WithOperator attaches the authenticated operator to ctx.
func WithOperator(ctx context.Context, op models.Operator) context.Context {
	return context.WithValue(ctx, operatorKey{}, op)
}

// OperatorFrom returns the operator set by WithOperator, if any.
func OperatorFrom(ctx context.Context) (models.Operator, bool) {
	op, ok := ctx.Value(operatorKey{}).(models.Operator)
	return op, ok
}
