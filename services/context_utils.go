package services

import "context"

// persistentContext keeps ctx values but drops its cancellation, for
// cleanup work that must run after the request context is gone.
func persistentContext(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return context.WithoutCancel(ctx)
}
