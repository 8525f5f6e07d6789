package controllers

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/SpiritGreen/mushroom-checker-backend/api/middleware"
	"github.com/SpiritGreen/mushroom-checker-backend/api/responses"
	"github.com/SpiritGreen/mushroom-checker-backend/api/validators"
	"github.com/SpiritGreen/mushroom-checker-backend/internal/admission"
	"github.com/SpiritGreen/mushroom-checker-backend/internal/jobs"
	"github.com/SpiritGreen/mushroom-checker-backend/internal/tabular"
	"github.com/SpiritGreen/mushroom-checker-backend/pkg/db/models"
	pkgerrors "github.com/SpiritGreen/mushroom-checker-backend/pkg/errors"
	"github.com/SpiritGreen/mushroom-checker-backend/pkg/logger"
	"github.com/SpiritGreen/mushroom-checker-backend/pkg/pagination"
)

// Uploaded datasets are small tabular files; anything bigger is a mistake.
const maxUploadBytes = 10 << 20

type submitPredictionPayload struct {
	ModelID string        `json:"model_id" validate:"required,uuid"`
	Rows    []tabular.Row `json:"rows" validate:"required,min=1"`
}

type predictionJobResponse struct {
	JobID     string    `json:"job_id"`
	ModelID   string    `json:"model_id"`
	Status    string    `json:"status"`
	Result    []string  `json:"result,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func toPredictionJobResponse(job *models.PredictionJob) predictionJobResponse {
	resp := predictionJobResponse{
		JobID:     job.ID.String(),
		ModelID:   job.ModelID.String(),
		Status:    job.Status.String(),
		CreatedAt: job.CreatedAt,
		UpdatedAt: job.UpdatedAt,
	}
	if len(job.Result) > 0 {
		var labels []string
		if err := json.Unmarshal(job.Result, &labels); err == nil {
			resp.Result = labels
		}
	}
	return resp
}

// PredictionsSubmit admits a prediction request. The body is either JSON
// {model_id, rows} or a multipart form with a model_id field and a csv/xlsx
// file upload.
func PredictionsSubmit(svc admission.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "admission service unavailable"))
			return
		}

		accountID, err := accountFromContext(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		modelID, rows, err := decodeSubmission(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		job, err := svc.Submit(ctx, accountID, modelID, rows)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusAccepted, toPredictionJobResponse(job))
	}
}

func decodeSubmission(r *http.Request) (uuid.UUID, []tabular.Row, error) {
	contentType := r.Header.Get("Content-Type")
	if strings.HasPrefix(contentType, "multipart/form-data") {
		return decodeMultipartSubmission(r)
	}

	var payload submitPredictionPayload
	if err := validators.DecodeJSONBody(r, &payload); err != nil {
		return uuid.Nil, nil, err
	}
	modelID, err := uuid.Parse(payload.ModelID)
	if err != nil {
		return uuid.Nil, nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid model id")
	}
	return modelID, payload.Rows, nil
}

func decodeMultipartSubmission(r *http.Request) (uuid.UUID, []tabular.Row, error) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		return uuid.Nil, nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid multipart form")
	}

	modelID, err := uuid.Parse(strings.TrimSpace(r.FormValue("model_id")))
	if err != nil {
		return uuid.Nil, nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid model id")
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		return uuid.Nil, nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "file upload required")
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxUploadBytes+1))
	if err != nil {
		return uuid.Nil, nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read upload")
	}
	if len(data) > maxUploadBytes {
		return uuid.Nil, nil, pkgerrors.New(pkgerrors.CodeValidation, "uploaded file too large")
	}

	rows, err := tabular.DecodeFile(header.Filename, data)
	if err != nil {
		return uuid.Nil, nil, err
	}
	return modelID, rows, nil
}

// PredictionsGet returns a job for its owner. Pending jobs carry no result.
func PredictionsGet(svc jobs.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "jobs service unavailable"))
			return
		}

		accountID, err := accountFromContext(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		jobID, err := uuid.Parse(chi.URLParam(r, "jobId"))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid job id"))
			return
		}

		job, err := svc.Get(ctx, jobID, accountID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccess(w, toPredictionJobResponse(job))
	}
}

type predictionJobPage struct {
	Items      []predictionJobResponse `json:"items"`
	NextCursor string                  `json:"next_cursor,omitempty"`
}

// PredictionsList returns one page of the caller's jobs, newest first.
func PredictionsList(svc jobs.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "jobs service unavailable"))
			return
		}

		accountID, err := accountFromContext(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		params, err := pageParams(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		list, next, err := svc.ListByAccount(ctx, accountID, params)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		page := predictionJobPage{
			Items:      make([]predictionJobResponse, 0, len(list)),
			NextCursor: next,
		}
		for i := range list {
			page.Items = append(page.Items, toPredictionJobResponse(&list[i]))
		}
		responses.WriteSuccess(w, page)
	}
}

func pageParams(r *http.Request) (pagination.Params, error) {
	limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
	if err != nil {
		return pagination.Params{}, err
	}
	return pagination.Params{
		Limit:  limit,
		Cursor: r.URL.Query().Get("cursor"),
	}, nil
}

func accountFromContext(r *http.Request) (uuid.UUID, error) {
	raw := middleware.AccountIDFromContext(r.Context())
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "account context missing")
	}
	accountID, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid account id")
	}
	return accountID, nil
}
