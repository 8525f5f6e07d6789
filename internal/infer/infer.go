// Package infer evaluates a loaded classifier bundle against a preprocessed
// feature matrix. It is pure CPU work with no I/O; cancellation is checked
// between rows so a worker shutdown does not wait on a large batch.
package infer

import (
	"context"
	"fmt"

	"github.com/SpiritGreen/mushroom-checker-backend/internal/artifacts"
	pkgerrors "github.com/SpiritGreen/mushroom-checker-backend/pkg/errors"
)

// Predict runs the bundle's classifier over every row of the matrix and
// returns the decoded class label per row, in input order.
func Predict(ctx context.Context, bundle *artifacts.Bundle, matrix [][]float64) ([]string, error) {
	if bundle == nil || bundle.Forest == nil || bundle.LabelDecoder == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInference, "classifier bundle is not loaded")
	}

	labels := make([]string, len(matrix))
	for i, features := range matrix {
		if err := ctx.Err(); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInference, err, "inference cancelled")
		}
		code, err := bundle.Forest.Predict(features)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInference, err, fmt.Sprintf("row %d", i))
		}
		label, err := bundle.LabelDecoder.Decode(code)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInference, err, fmt.Sprintf("row %d", i))
		}
		labels[i] = label
	}
	return labels, nil
}
