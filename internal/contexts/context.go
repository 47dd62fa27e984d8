package contexts

import (
	"context"

	"github.com/looplj/todohub/internal/objects"
)

// WithSession stores the session lookup result in the context.
func WithSession(ctx context.Context, session *objects.SessionWithUser) context.Context {
	container := getContainer(ctx)

	container.mu.Lock()
	container.Session = session
	container.mu.Unlock()

	return withContainer(ctx, container)
}

// GetSession retrieves the session from the context.
func GetSession(ctx context.Context) (*objects.SessionWithUser, bool) {
	container := getContainer(ctx)

	container.mu.RLock()
	defer container.mu.RUnlock()

	return container.Session, container.Session != nil
}

// AddError records an error for the access log.
func AddError(ctx context.Context, err error) context.Context {
	if err == nil {
		return ctx
	}

	container := getContainer(ctx)

	container.mu.Lock()
	container.Errors = append(container.Errors, err)
	container.mu.Unlock()

	return withContainer(ctx, container)
}

// GetErrors returns a copy of the recorded errors.
func GetErrors(ctx context.Context) []error {
	container := getContainer(ctx)

	container.mu.RLock()
	defer container.mu.RUnlock()

	if len(container.Errors) == 0 {
		return nil
	}

	errs := make([]error, len(container.Errors))
	copy(errs, container.Errors)

	return errs
}
