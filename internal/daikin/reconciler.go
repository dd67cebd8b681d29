package daikin

import (
	"context"
	"fmt"

	"github.com/thatsimonsguy/daikin-climate/internal/model"
)

// Getter is the read half of Client.
type Getter interface {
	Get(ctx context.Context, endpoint string) (map[string]string, error)
}

// Reconciler builds complete control vectors for writes. The set-control endpoint
// resets any field left out of a request, so every write starts from a fresh read
// of the unit's control info, never from a cached copy.
type Reconciler struct {
	client Getter
}

func NewReconciler(client Getter) *Reconciler {
	return &Reconciler{client: client}
}

// PrepareWrite fetches the current control vector and applies overrides on top.
func (r *Reconciler) PrepareWrite(ctx context.Context, overrides map[string]string) (map[string]string, error) {
	current, err := r.client.Get(ctx, ControlInfoEndpoint)
	if err != nil {
		return nil, fmt.Errorf("fetch control info before write: %w", err)
	}

	vector, err := model.ControlVectorFromFields(current)
	if err != nil {
		return nil, err
	}

	fields := vector.Fields()
	for k, v := range overrides {
		fields[k] = v
	}
	return fields, nil
}
