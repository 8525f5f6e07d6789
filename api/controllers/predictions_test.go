package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/SpiritGreen/mushroom-checker-backend/api/middleware"
	"github.com/SpiritGreen/mushroom-checker-backend/internal/tabular"
	"github.com/SpiritGreen/mushroom-checker-backend/pkg/db/models"
	"github.com/SpiritGreen/mushroom-checker-backend/pkg/enums"
	pkgerrors "github.com/SpiritGreen/mushroom-checker-backend/pkg/errors"
	"github.com/SpiritGreen/mushroom-checker-backend/pkg/pagination"
	"github.com/SpiritGreen/mushroom-checker-backend/pkg/types"
)

type fakeAdmission struct {
	job      *models.PredictionJob
	err      error
	gotRows  []tabular.Row
	gotModel uuid.UUID
}

func (f *fakeAdmission) Submit(ctx context.Context, accountID, modelID uuid.UUID, rows []tabular.Row) (*models.PredictionJob, error) {
	f.gotModel = modelID
	f.gotRows = rows
	if f.err != nil {
		return nil, f.err
	}
	return f.job, nil
}

type fakeJobService struct {
	job  *models.PredictionJob
	list []models.PredictionJob
	next string
	err  error
}

func (f *fakeJobService) CreateTx(ctx context.Context, tx *gorm.DB, accountID, modelID uuid.UUID, input json.RawMessage) (*models.PredictionJob, error) {
	panic("not used")
}

func (f *fakeJobService) UpdateResult(ctx context.Context, jobID uuid.UUID, result []string, status enums.JobStatus) error {
	panic("not used")
}

func (f *fakeJobService) Get(ctx context.Context, jobID, accountID uuid.UUID) (*models.PredictionJob, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.job, nil
}

func (f *fakeJobService) GetByID(ctx context.Context, jobID uuid.UUID) (*models.PredictionJob, error) {
	panic("not used")
}

func (f *fakeJobService) ListByAccount(ctx context.Context, accountID uuid.UUID, params pagination.Params) ([]models.PredictionJob, string, error) {
	if f.err != nil {
		return nil, "", f.err
	}
	return f.list, f.next, nil
}

func authedRequest(method, target string, body *bytes.Buffer) *http.Request {
	if body == nil {
		body = &bytes.Buffer{}
	}
	req := httptest.NewRequest(method, target, body)
	return req.WithContext(middleware.WithAccountID(req.Context(), uuid.NewString()))
}

func TestPredictionsSubmitJSON(t *testing.T) {
	modelID := uuid.New()
	svc := &fakeAdmission{job: &models.PredictionJob{
		ID:      uuid.New(),
		ModelID: modelID,
		Status:  enums.JobStatusPending,
	}}

	payload := map[string]any{
		"model_id": modelID.String(),
		"rows":     []map[string]any{{"cap-shape": "x"}},
	}
	body := &bytes.Buffer{}
	_ = json.NewEncoder(body).Encode(payload)

	req := authedRequest(http.MethodPost, "/api/v1/predictions", body)
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	PredictionsSubmit(svc, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusAccepted {
		t.Fatalf("expected 202 got %d: %s", resp.Code, resp.Body.String())
	}
	if svc.gotModel != modelID {
		t.Errorf("expected model %s, got %s", modelID, svc.gotModel)
	}
	if len(svc.gotRows) != 1 {
		t.Errorf("expected 1 row, got %d", len(svc.gotRows))
	}

	var envelope types.SuccessEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	data := envelope.Data.(map[string]any)
	if data["status"] != "pending" {
		t.Errorf("expected pending status, got %v", data["status"])
	}
}

func TestPredictionsSubmitCSVUpload(t *testing.T) {
	modelID := uuid.New()
	svc := &fakeAdmission{job: &models.PredictionJob{
		ID:      uuid.New(),
		ModelID: modelID,
		Status:  enums.JobStatusPending,
	}}

	body := &bytes.Buffer{}
	form := multipart.NewWriter(body)
	_ = form.WriteField("model_id", modelID.String())
	part, _ := form.CreateFormFile("file", "mushrooms.csv")
	_, _ = part.Write([]byte("cap-shape,cap-diameter\nx,4.2\nb,\n"))
	_ = form.Close()

	req := authedRequest(http.MethodPost, "/api/v1/predictions", body)
	req.Header.Set("Content-Type", form.FormDataContentType())
	resp := httptest.NewRecorder()
	PredictionsSubmit(svc, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusAccepted {
		t.Fatalf("expected 202 got %d: %s", resp.Code, resp.Body.String())
	}
	if len(svc.gotRows) != 2 {
		t.Fatalf("expected 2 decoded rows, got %d", len(svc.gotRows))
	}
	if svc.gotRows[0]["cap-shape"] != "x" {
		t.Errorf("unexpected first row: %v", svc.gotRows[0])
	}
	if svc.gotRows[1]["cap-diameter"] != nil {
		t.Errorf("blank cells must decode to nil, got %v", svc.gotRows[1]["cap-diameter"])
	}
}

func TestPredictionsSubmitRequiresAuth(t *testing.T) {
	svc := &fakeAdmission{}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/predictions", strings.NewReader("{}"))
	resp := httptest.NewRecorder()
	PredictionsSubmit(svc, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestPredictionsSubmitRejectsBadModelID(t *testing.T) {
	svc := &fakeAdmission{}
	body := bytes.NewBufferString(`{"model_id":"nope","rows":[{"cap-shape":"x"}]}`)
	req := authedRequest(http.MethodPost, "/api/v1/predictions", body)
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	PredictionsSubmit(svc, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestPredictionsSubmitSurfacesInsufficientFunds(t *testing.T) {
	modelID := uuid.New()
	svc := &fakeAdmission{err: pkgerrors.New(pkgerrors.CodeInsufficientFunds, "balance is below the model cost")}

	body := &bytes.Buffer{}
	_ = json.NewEncoder(body).Encode(map[string]any{
		"model_id": modelID.String(),
		"rows":     []map[string]any{{"cap-shape": "x"}},
	})
	req := authedRequest(http.MethodPost, "/api/v1/predictions", body)
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	PredictionsSubmit(svc, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
	var envelope types.ErrorEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Error.Code != string(pkgerrors.CodeInsufficientFunds) {
		t.Errorf("unexpected error code %s", envelope.Error.Code)
	}
}

func TestPredictionsGetReturnsResult(t *testing.T) {
	jobID := uuid.New()
	result, _ := json.Marshal([]string{"e", "p"})
	svc := &fakeJobService{job: &models.PredictionJob{
		ID:      jobID,
		ModelID: uuid.New(),
		Status:  enums.JobStatusCompleted,
		Result:  result,
	}}

	req := authedRequest(http.MethodGet, "/api/v1/predictions/"+jobID.String(), nil)
	rc := chi.NewRouteContext()
	rc.URLParams.Add("jobId", jobID.String())
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rc))

	resp := httptest.NewRecorder()
	PredictionsGet(svc, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
	var envelope types.SuccessEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	data := envelope.Data.(map[string]any)
	labels := data["result"].([]any)
	if len(labels) != 2 || labels[0] != "e" || labels[1] != "p" {
		t.Errorf("unexpected result %v", labels)
	}
}

func TestPredictionsListReturnsPage(t *testing.T) {
	svc := &fakeJobService{
		list: []models.PredictionJob{
			{ID: uuid.New(), ModelID: uuid.New(), Status: enums.JobStatusCompleted},
			{ID: uuid.New(), ModelID: uuid.New(), Status: enums.JobStatusPending},
		},
		next: "opaque-cursor",
	}

	req := authedRequest(http.MethodGet, "/api/v1/predictions?limit=2", nil)
	resp := httptest.NewRecorder()
	PredictionsList(svc, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
	var envelope types.SuccessEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	data := envelope.Data.(map[string]any)
	if len(data["items"].([]any)) != 2 {
		t.Errorf("expected 2 items, got %v", data["items"])
	}
	if data["next_cursor"] != "opaque-cursor" {
		t.Errorf("expected next cursor, got %v", data["next_cursor"])
	}
}

func TestPredictionsListRejectsBadLimit(t *testing.T) {
	svc := &fakeJobService{}
	req := authedRequest(http.MethodGet, "/api/v1/predictions?limit=9999", nil)
	resp := httptest.NewRecorder()
	PredictionsList(svc, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestPredictionsGetHidesForeignJobs(t *testing.T) {
	jobID := uuid.New()
	svc := &fakeJobService{err: pkgerrors.New(pkgerrors.CodeNotFound, "prediction job not found")}

	req := authedRequest(http.MethodGet, "/api/v1/predictions/"+jobID.String(), nil)
	rc := chi.NewRouteContext()
	rc.URLParams.Add("jobId", jobID.String())
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rc))

	resp := httptest.NewRecorder()
	PredictionsGet(svc, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", resp.Code)
	}
}
