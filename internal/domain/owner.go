package domain

import "context"

type ownerKey struct{}

// DefaultOwner is used when a caller does not identify itself.
const DefaultOwner = "default"

// WithOwner stores the storage partition (client id or chat id) in ctx.
func WithOwner(ctx context.Context, owner string) context.Context {
	return context.WithValue(ctx, ownerKey{}, owner)
}

func OwnerFrom(ctx context.Context) string {
	if owner, ok := ctx.Value(ownerKey{}).(string); ok && owner != "" {
		return owner
	}
	return DefaultOwner
}
