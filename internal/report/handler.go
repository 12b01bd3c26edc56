package report

import (
	"bytes"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"legislens/internal/analyses"
	"legislens/internal/shared/server/respond"
	"legislens/internal/shared/util"
)

const (
	contentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	contentTypeCSV  = "text/csv; charset=utf-8"
	maxReportBody   = 2 << 20
)

// Handler renders analysis results as downloadable reports.
type Handler struct {
	now func() time.Time
}

// NewHandler constructs a Handler.
func NewHandler() *Handler {
	return &Handler{now: time.Now}
}

// RegisterRoutes attaches report routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/reports", h.export)
}

func (h *Handler) export(c *gin.Context) {
	format := strings.ToLower(strings.TrimSpace(c.DefaultQuery("format", "xlsx")))
	if format != "xlsx" && format != "csv" {
		respond.Error(c, http.StatusBadRequest, "validation_error", "format must be xlsx or csv", []map[string]string{
			{"field": "format", "issue": "unsupported"},
		})
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxReportBody)
	var result analyses.Result
	if err := c.ShouldBindJSON(&result); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "body must be an analysis result", nil)
		return
	}
	if result.Clauses == nil {
		result.Clauses = []analyses.Clause{}
	}

	var buf bytes.Buffer
	contentType := contentTypeCSV
	var err error
	if format == "xlsx" {
		contentType = contentTypeXLSX
		err = WriteXLSX(&buf, result, Meta{
			DocumentName: c.Query("name"),
			AnalysisID:   c.Query("analysisId"),
			GeneratedAt:  h.now(),
		})
	} else {
		err = WriteCSV(&buf, result)
	}
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to render report", nil)
		return
	}

	fileName := util.ReportFileName(c.Query("name"), format)
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, fileName))
	c.Data(http.StatusOK, contentType, buf.Bytes())
}
