package port

import (
	"context"

	"ortho-mapper/internal/domain/entity"
)

// RunNotifier announces finished runs
type RunNotifier interface {
	Notify(ctx context.Context, record *entity.RunRecord) error
}
