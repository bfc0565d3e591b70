package handlers

import (
	stderrors "errors"
	"fmt"
	"net/http"

	"github.com/starfederation/datastar-go/datastar"

	"sales-dashboard/internal/errors"
	"sales-dashboard/internal/sales"
)

const (
	uploadField     = "file"
	uploadMaxMemory = 8 << 20
)

// HandleUpload replaces the session's dataset with the uploaded CSV. A
// Datastar request gets the refreshed dashboard as SSE patches, anything
// else gets the dataset stats as JSON.
func (h *APIHandlers) HandleUpload(w http.ResponseWriter, r *http.Request) {
	a, err := sessionAnalytics(r)
	if err != nil {
		h.uploadError(w, r, err)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	if err := r.ParseMultipartForm(uploadMaxMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if stderrors.As(err, &tooLarge) {
			appErr := errors.Wrap(err, errors.CodeTooLarge, "The uploaded file is too large")
			appErr.Details = fmt.Sprintf("limit is %d bytes", tooLarge.Limit)
			h.uploadError(w, r, appErr)
			return
		}
		h.uploadError(w, r, errors.ValidationWrap(err, "Expected a multipart form upload"))
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile(uploadField)
	if err != nil {
		h.uploadError(w, r, errors.ValidationWrap(err, "Missing file field "+uploadField))
		return
	}
	defer file.Close()

	if err := a.LoadFromReader(r.Context(), header.Filename, file); err != nil {
		h.uploadError(w, r, err)
		return
	}

	h.logger.Info("dataset uploaded",
		"filename", header.Filename,
		"size", header.Size,
	)

	if isDatastar(r) {
		s, err := a.Summarize(r.Context(), sales.Filter{})
		sse := datastar.NewSSE(w, r)
		if err != nil {
			patchError(sse, h.logger, err)
			return
		}
		patchSummary(sse, h.logger, a, s, sales.Filter{})
		return
	}

	errors.WriteSuccess(w, r, a.Stats())
}

func (h *APIHandlers) uploadError(w http.ResponseWriter, r *http.Request, err error) {
	if isDatastar(r) {
		patchError(datastar.NewSSE(w, r), h.logger, err)
		return
	}
	h.writeError(w, r, err)
}

func isDatastar(r *http.Request) bool {
	return r.Header.Get("Datastar-Request") == "true"
}
