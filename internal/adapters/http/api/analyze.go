package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/okian/framerank/internal/adapters/remote"
	"github.com/okian/framerank/internal/domain/model"
	"github.com/okian/framerank/internal/domain/types"
	"github.com/okian/framerank/pkg/logger"
)

// maxBodyBytes bounds POST /analyze bodies: the largest accepted image plus
// room for the detections.
const maxBodyBytes = int64(remote.MaxBase64Length) + 1<<20

// AnalyzeDependencies runs one analysis.
type AnalyzeDependencies interface {
	Analyze(ctx context.Context, req types.AnalyzeRequest) (*model.Result, error)
}

// AnalyzeHandler handles analysis requests.
type AnalyzeHandler struct {
	deps   AnalyzeDependencies
	logger logger.Logger
}

// NewAnalyzeHandler creates a new analyze handler.
func NewAnalyzeHandler(deps AnalyzeDependencies, l logger.Logger) *AnalyzeHandler {
	if l == nil {
		l = logger.Nop()
	}
	return &AnalyzeHandler{deps: deps, logger: l.Named("api")}
}

// HandleAnalyze handles POST /analyze requests.
func (h *AnalyzeHandler) HandleAnalyze(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	ctx := r.Context()

	if r.ContentLength > maxBodyBytes {
		writeError(w, http.StatusRequestEntityTooLarge, model.CodeInvalidImage, msgTooLarge)
		return
	}
	var req types.AnalyzeRequest
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, model.CodeInvalidImage, msgTooLarge)
			return
		}
		writeError(w, http.StatusBadRequest, model.CodeInvalidImage, "Request body is not valid JSON")
		return
	}
	if err := validate.StructCtx(ctx, req); err != nil {
		writeError(w, http.StatusBadRequest, model.CodeInvalidImage, validationMessage(err))
		return
	}

	res, err := h.deps.Analyze(ctx, req)
	if err != nil {
		status := StatusFor(err)
		if status >= http.StatusInternalServerError {
			h.logger.Error(ctx, "analysis failed",
				logger.String("requestID", RequestIDFrom(ctx)),
				logger.Int("status", status),
				logger.Error(err),
			)
		}
		writeError(w, status, model.CodeOf(err), model.MessageOf(err))
		return
	}
	writeJSON(w, http.StatusOK, types.OK(res))
}

const msgTooLarge = "Image too large. Please use an image under 5MB."

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "Invalid request"
	}
	switch f := verrs[0]; {
	case f.Field() == "Image" || (f.Field() == "MimeType" && f.Tag() == "required"):
		return "Missing image or mimeType"
	case f.Field() == "MimeType":
		return "Unsupported image type. Use JPEG, PNG or WebP."
	default:
		return "Invalid " + f.Namespace()
	}
}

// StatusFor maps an analysis error to its HTTP status.
func StatusFor(err error) int {
	switch model.CodeOf(err) {
	case model.CodeInvalidImage:
		if errors.Is(err, remote.ErrTooLarge) {
			return http.StatusRequestEntityTooLarge
		}
		return http.StatusBadRequest
	case model.CodeNoPeople, model.CodeTooManyPeople, model.CodePoorQuality:
		return http.StatusUnprocessableEntity
	case model.CodeRateLimit:
		return http.StatusTooManyRequests
	case model.CodeAIError:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
