package solve

import (
	"context"

	"github.com/sei-international/nemo/internal/model"
)

// Backend runs a synchronous optimize call over the model's current column
// and active-row state. Implementations must treat the model as read-only;
// the engine imposes no timeout of its own — cancellation policy belongs to
// the backend and the caller's context.
type Backend interface {
	Solve(ctx context.Context, m *model.Model) (*Result, error)
}

// BackendFunc adapts a plain function to the Backend interface.
type BackendFunc func(ctx context.Context, m *model.Model) (*Result, error)

// Solve calls f.
func (f BackendFunc) Solve(ctx context.Context, m *model.Model) (*Result, error) {
	return f(ctx, m)
}
