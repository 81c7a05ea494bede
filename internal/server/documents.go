package server

import (
	"context"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/belgededektif/docanalyze/internal/answer"
	"github.com/belgededektif/docanalyze/internal/common"
	"github.com/belgededektif/docanalyze/internal/entity"
	"github.com/belgededektif/docanalyze/internal/export"
	"github.com/belgededektif/docanalyze/internal/pipeline"
	"github.com/belgededektif/docanalyze/internal/repository"
)

// DocumentHandler exposes the ingestion pipeline over HTTP.
type DocumentHandler struct {
	processor *pipeline.Processor
	docs      repository.DocumentRepository
	answerer  *answer.Service
	exporter  *export.Service
	workers   int
	logger    *zap.Logger
}

func NewDocumentHandler(
	processor *pipeline.Processor,
	docs repository.DocumentRepository,
	answerer *answer.Service,
	exporter *export.Service,
	workers int,
	logger *zap.Logger,
) *DocumentHandler {
	if workers <= 0 {
		workers = 4
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DocumentHandler{
		processor: processor,
		docs:      docs,
		answerer:  answerer,
		exporter:  exporter,
		workers:   workers,
		logger:    logger,
	}
}

type fieldsResponse struct {
	Vendor      *string `json:"vendor,omitempty"`
	VATAmount   *string `json:"vat_amount,omitempty"`
	TotalAmount *string `json:"total_amount,omitempty"`
	Date        *string `json:"date,omitempty"`
}

type documentResponse struct {
	ID            string         `json:"id"`
	Filename      string         `json:"filename"`
	Status        string         `json:"status"`
	StorageURL    string         `json:"storage_url"`
	SizeBytes     int64          `json:"size_bytes"`
	MimeType      string         `json:"mime_type"`
	ExtractedText string         `json:"extracted_text,omitempty"`
	Fields        fieldsResponse `json:"fields"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

func toResponse(doc *entity.Document, includeText bool) documentResponse {
	resp := documentResponse{
		ID:         doc.ID.String(),
		Filename:   doc.Filename,
		Status:     string(doc.Status),
		StorageURL: doc.StorageURL,
		SizeBytes:  doc.SizeBytes,
		MimeType:   doc.MimeType,
		Fields: fieldsResponse{
			Vendor: doc.Fields.Vendor,
			Date:   doc.Fields.Date,
		},
		CreatedAt: doc.CreatedAt,
		UpdatedAt: doc.UpdatedAt,
	}
	if doc.Fields.VATAmount != nil {
		s := doc.Fields.VATAmount.String()
		resp.Fields.VATAmount = &s
	}
	if doc.Fields.TotalAmount != nil {
		s := doc.Fields.TotalAmount.String()
		resp.Fields.TotalAmount = &s
	}
	if includeText {
		resp.ExtractedText = doc.ExtractedText
	}
	return resp
}

func (h *DocumentHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type uploadItemResult struct {
	Filename string            `json:"filename"`
	Error    string            `json:"error,omitempty"`
	Document *documentResponse `json:"document,omitempty"`
}

// Upload accepts one or more files under the multipart field "files" and
// processes each independently. One bad file never fails the batch; its
// slot in the response carries the error instead.
func (h *DocumentHandler) Upload(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "multipart form required"})
		return
	}
	files := form.File["files"]
	if len(files) == 0 {
		files = form.File["file"]
	}
	if len(files) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no files in request"})
		return
	}

	results := make([]uploadItemResult, len(files))
	var mu sync.Mutex

	g, ctx := errgroup.WithContext(c.Request.Context())
	g.SetLimit(h.workers)
	for i, fh := range files {
		i, fh := i, fh
		g.Go(func() error {
			res := h.processOne(ctx, fh)
			mu.Lock()
			results[i] = res
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	status := http.StatusCreated
	allFailed := true
	for _, r := range results {
		if r.Error == "" {
			allFailed = false
			break
		}
	}
	if allFailed {
		status = http.StatusBadRequest
	}
	c.JSON(status, gin.H{"results": results})
}

func (h *DocumentHandler) processOne(ctx context.Context, fh *multipart.FileHeader) uploadItemResult {
	out := uploadItemResult{Filename: fh.Filename}

	f, err := fh.Open()
	if err != nil {
		out.Error = "cannot open uploaded file"
		return out
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		out.Error = "cannot read uploaded file"
		return out
	}

	doc, err := h.processor.Process(ctx, fh.Filename, data)
	if err != nil {
		h.logger.Warn("http.upload.item_error",
			zap.String("filename", fh.Filename),
			zap.Error(err),
		)
		out.Error = err.Error()
		return out
	}
	resp := toResponse(doc, true)
	out.Document = &resp
	return out
}

func (h *DocumentHandler) List(c *gin.Context) {
	docs, err := h.docs.List(c.Request.Context())
	if err != nil {
		h.renderError(c, err)
		return
	}
	out := make([]documentResponse, 0, len(docs))
	for _, doc := range docs {
		out = append(out, toResponse(doc, false))
	}
	c.JSON(http.StatusOK, gin.H{"documents": out})
}

func (h *DocumentHandler) Get(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}
	doc, err := h.docs.GetByID(c.Request.Context(), id)
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, toResponse(doc, true))
}

func (h *DocumentHandler) Delete(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}
	if err := h.processor.Remove(c.Request.Context(), id); err != nil {
		h.renderError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type askRequest struct {
	Question string `json:"question" binding:"required"`
}

func (h *DocumentHandler) Ask(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}
	var req askRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "question is required"})
		return
	}
	text, err := h.answerer.Ask(c.Request.Context(), id, req.Question)
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"answer": text})
}

func (h *DocumentHandler) Export(c *gin.Context) {
	data, err := h.exporter.ExportDocumentsXLSX(c.Request.Context())
	if err != nil {
		h.renderError(c, err)
		return
	}
	filename := "documents-" + time.Now().UTC().Format("20060102-150405") + ".xlsx"
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK,
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", data)
}

func (h *DocumentHandler) parseID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid document id"})
		return uuid.Nil, false
	}
	return id, true
}

func (h *DocumentHandler) renderError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, common.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, common.ErrNotReady):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, common.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case common.IsInvalidInput(err):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, common.ErrUnavailable):
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
	default:
		h.logger.Error("http.internal_error", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
