package handler

import (
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"quizwrap/internal/logger"
	"quizwrap/internal/model"
	"quizwrap/internal/service"
	"quizwrap/internal/transport/rest/middleware"
)

// RecordHandler handles the instructor review endpoints
type RecordHandler struct {
	recordSvc *service.RecordService
}

// NewRecordHandler creates a new record handler
func NewRecordHandler(recordSvc *service.RecordService) *RecordHandler {
	return &RecordHandler{recordSvc: recordSvc}
}

// RecordListResponse is the body of GET /v1/records
type RecordListResponse struct {
	Records []model.SessionRecord `json:"records"`
	Summary model.Summary         `json:"summary"`
}

// List handles GET /v1/records
func (h *RecordHandler) List(w http.ResponseWriter, r *http.Request) {
	records, err := h.recordSvc.List(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, RecordListResponse{
		Records: records,
		Summary: service.Summarize(records),
	})
}

// Summary handles GET /v1/records/summary
func (h *RecordHandler) Summary(w http.ResponseWriter, r *http.Request) {
	sum, err := h.recordSvc.Summarize(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

// Export handles GET /v1/records/export?format=xlsx|json
func (h *RecordHandler) Export(w http.ResponseWriter, r *http.Request) {
	art, err := h.recordSvc.Export(r.Context(), r.URL.Query().Get("format"))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", art.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+art.FileName+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(len(art.Data)))
	w.WriteHeader(http.StatusOK)
	w.Write(art.Data)
}

// Clear handles DELETE /v1/records
func (h *RecordHandler) Clear(w http.ResponseWriter, r *http.Request) {
	n, err := h.recordSvc.Clear(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	logger.Log.Info("records cleared by instructor",
		zap.String("instructorId", middleware.GetInstructorID(r.Context())),
		zap.Int64("removed", n))
	writeJSON(w, http.StatusOK, map[string]int64{"removed": n})
}
