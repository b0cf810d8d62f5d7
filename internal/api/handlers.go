package api

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/rotisserie/eris"

	"github.com/sells-group/deal-enricher/internal/deals"
	"github.com/sells-group/deal-enricher/internal/model"
	"github.com/sells-group/deal-enricher/internal/pipeline"
)

// Runner is the set of invocations the handlers call.
type Runner interface {
	Range(start, end string) (deals.DateRange, error)
	FetchDeals(ctx context.Context, r deals.DateRange) ([]*model.Deal, []model.PhaseResult, error)
	Recommend(ctx context.Context, r deals.DateRange) (*pipeline.RecommendResult, error)
	Export(ctx context.Context, r deals.DateRange) (*pipeline.ExportResult, error)
}

// Handlers serves the HTTP entry points.
type Handlers struct {
	runner   Runner
	password string
}

// NewHandlers creates Handlers. password is the shared secret checked by
// the password endpoint; an empty secret rejects every attempt.
func NewHandlers(runner Runner, password string) *Handlers {
	return &Handlers{runner: runner, password: password}
}

// Health reports liveness.
func (h *Handlers) Health(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Deals returns enriched deals as JSON.
func (h *Handlers) Deals(w http.ResponseWriter, r *http.Request) {
	rng, err := h.dateRange(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	ds, _, err := h.runner.FetchDeals(r.Context(), rng)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if ds == nil {
		ds = []*model.Deal{}
	}
	respondJSON(w, http.StatusOK, ds)
}

// Recommend runs the classification flow and reports a plain-text status.
func (h *Handlers) Recommend(w http.ResponseWriter, r *http.Request) {
	rng, err := h.dateRange(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	res, err := h.runner.Recommend(r.Context(), rng)
	if err != nil {
		writeError(w, r, err)
		return
	}

	msg := fmt.Sprintf("Processed %d deals", res.Deals)
	if res.JobID != "" {
		msg = fmt.Sprintf("Processed %d deals - batch %s: %d results, %d matched, %d updated, %d failed",
			res.Deals, res.JobID, res.Results, res.Matched, res.Writeback.Updated, res.Writeback.Failed)
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, msg)
}

// Export returns the CSV export as an attachment.
func (h *Handlers) Export(w http.ResponseWriter, r *http.Request) {
	rng, err := h.dateRange(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	res, err := h.runner.Export(r.Context(), rng)
	if err != nil {
		writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", "attachment; filename="+strconv.Quote(res.Filename))
	w.WriteHeader(http.StatusOK)
	_, _ = res.Data.WriteTo(w)
}

type passwordResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// Password checks a submitted password against the shared secret.
func (h *Handlers) Password(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Password string `json:"password"`
	}
	password := r.URL.Query().Get("password")
	if password == "" && r.Method == http.MethodPost {
		if err := decodeBody(r, &body); err != nil {
			respondJSON(w, http.StatusBadRequest, passwordResponse{Message: "Invalid JSON"})
			return
		}
		password = body.Password
	}

	switch {
	case password == "":
		respondJSON(w, http.StatusBadRequest, passwordResponse{Message: "Password is required"})
	case h.password != "" && subtle.ConstantTimeCompare([]byte(password), []byte(h.password)) == 1:
		respondJSON(w, http.StatusOK, passwordResponse{Success: true})
	default:
		respondJSON(w, http.StatusUnauthorized, passwordResponse{Message: "Invalid password"})
	}
}

// dateRange reads start_date and end_date from the query string, falling
// back to a JSON body on POST.
func (h *Handlers) dateRange(r *http.Request) (deals.DateRange, error) {
	q := r.URL.Query()
	start, end := q.Get("start_date"), q.Get("end_date")
	if start == "" && end == "" && r.Method == http.MethodPost {
		var body struct {
			StartDate string `json:"start_date"`
			EndDate   string `json:"end_date"`
		}
		if err := decodeBody(r, &body); err != nil {
			return deals.DateRange{}, &pipeline.ValidationError{Field: "request body", Err: err}
		}
		start, end = body.StartDate, body.EndDate
	}
	return h.runner.Range(start, end)
}

// decodeBody decodes a JSON body. An empty body is not an error.
func decodeBody(r *http.Request, v any) error {
	if r.Body == nil {
		return nil
	}
	err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(v)
	if err == nil || err == io.EOF {
		return nil
	}
	return eris.Wrap(err, "api: decode body")
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
