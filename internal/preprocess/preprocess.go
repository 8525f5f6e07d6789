package preprocess

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/SpiritGreen/mushroom-checker-backend/internal/artifacts"
	"github.com/SpiritGreen/mushroom-checker-backend/internal/tabular"
	pkgerrors "github.com/SpiritGreen/mushroom-checker-backend/pkg/errors"
)

// ValidateRows checks that every row carries each required column, order
// independent, with exact name matching. The first missing column fails the
// whole submission.
func ValidateRows(rows []tabular.Row, required []string) error {
	if len(rows) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "input contains no rows")
	}
	for i, row := range rows {
		for _, col := range required {
			if _, ok := row[col]; !ok {
				return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("row %d: missing column: %s", i, col)).
					WithDetails(map[string]any{"row": i, "column": col})
			}
		}
	}
	return nil
}

// Transform turns raw rows into the numeric matrix the classifier expects,
// columns in the bundle's trained order, rows in input order.
//
// Numeric columns run through their fitted imputer. Categorical columns are
// imputed with the bundle's placeholder, then any value outside the encoder
// vocabulary is replaced by that placeholder before encoding, so unseen
// categories follow the same path as missing values. A placeholder that the
// encoder itself does not know is an artifact packaging defect, not an input
// problem.
func Transform(rows []tabular.Row, bundle *artifacts.Bundle) ([][]float64, error) {
	if bundle == nil || bundle.Forest == nil {
		return nil, fmt.Errorf("artifact bundle required")
	}

	order := bundle.FeatureOrder()
	matrix := make([][]float64, len(rows))

	for i, row := range rows {
		vector := make([]float64, len(order))
		for j, col := range order {
			value, err := encodeCell(row[col], col, bundle)
			if err != nil {
				return nil, fmt.Errorf("row %d: %w", i, err)
			}
			vector[j] = value
		}
		matrix[i] = vector
	}
	return matrix, nil
}

func encodeCell(raw any, col string, bundle *artifacts.Bundle) (float64, error) {
	if imputer, ok := bundle.NumericImputers[col]; ok {
		value, err := floatValue(raw)
		if err != nil {
			return 0, fmt.Errorf("column %s: %w", col, err)
		}
		return imputer.Impute(value), nil
	}

	imputer, ok := bundle.CategoricalImputers[col]
	if !ok {
		return 0, pkgerrors.New(pkgerrors.CodeArtifact, fmt.Sprintf("column %s has no imputer in bundle %s", col, bundle.ModelName))
	}
	encoder, ok := bundle.Encoders[col]
	if !ok {
		return 0, pkgerrors.New(pkgerrors.CodeArtifact, fmt.Sprintf("column %s has no encoder in bundle %s", col, bundle.ModelName))
	}

	value := imputer.Impute(stringValue(raw))
	if !encoder.Contains(value) {
		value = imputer.Fill
	}
	code, ok := encoder.Encode(value)
	if !ok {
		return 0, pkgerrors.New(pkgerrors.CodeArtifact,
			fmt.Sprintf("placeholder %q missing from encoder vocabulary for column %s in bundle %s", value, col, bundle.ModelName))
	}
	return float64(code), nil
}

func floatValue(raw any) (*float64, error) {
	switch v := raw.(type) {
	case nil:
		return nil, nil
	case float64:
		return &v, nil
	case float32:
		f := float64(v)
		return &f, nil
	case int:
		f := float64(v)
		return &f, nil
	case int64:
		f := float64(v)
		return &f, nil
	case string:
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			return nil, nil
		}
		f, err := strconv.ParseFloat(trimmed, 64)
		if err != nil {
			return nil, fmt.Errorf("value %q is not numeric", v)
		}
		return &f, nil
	default:
		return nil, fmt.Errorf("unsupported numeric value of type %T", raw)
	}
}

func stringValue(raw any) string {
	switch v := raw.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	default:
		return strings.TrimSpace(fmt.Sprintf("%v", v))
	}
}
