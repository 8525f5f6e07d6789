package controllers

import (
	"net/http"

	"github.com/SpiritGreen/mushroom-checker-backend/api/responses"
	"github.com/SpiritGreen/mushroom-checker-backend/internal/catalog"
	pkgerrors "github.com/SpiritGreen/mushroom-checker-backend/pkg/errors"
	"github.com/SpiritGreen/mushroom-checker-backend/pkg/logger"
)

type modelResponse struct {
	ModelID            string   `json:"model_id"`
	Name               string   `json:"name"`
	Cost               string   `json:"cost"`
	NumericColumns     []string `json:"numeric_columns"`
	CategoricalColumns []string `json:"categorical_columns"`
}

// ModelsList returns the priced model catalog.
func ModelsList(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog service unavailable"))
			return
		}

		list, err := svc.List(ctx)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		out := make([]modelResponse, 0, len(list))
		for _, descriptor := range list {
			out = append(out, modelResponse{
				ModelID:            descriptor.ID.String(),
				Name:               descriptor.Name,
				Cost:               descriptor.Cost.StringFixed(2),
				NumericColumns:     descriptor.NumericColumns,
				CategoricalColumns: descriptor.CategoricalColumns,
			})
		}
		responses.WriteSuccess(w, out)
	}
}
