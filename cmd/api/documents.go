package main

import (
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/farxc/dsd_reconciler/internal/extraction"
	"github.com/farxc/dsd_reconciler/internal/reconcile"
)

const maxDocumentBytes = 20 << 20

type extractResult struct {
	Document   *extraction.Document        `json:"document"`
	Submission *reconcile.SubmissionResult `json:"submission,omitempty"`
}

// @Summary		Extract an invoice document
// @Description	Sends a scanned invoice (multipart field "file" or raw body) to the extraction service. With submit=true the extracted invoice is reconciled and stored.
// @Tags			Documents
// @Accept			multipart/form-data
// @Produce		json
// @Param			submit	query		bool	false	"Reconcile the extracted invoice"
// @Success		200		{object}	response.APIResponse[extractResult]
// @Failure		400		{object}	response.ErrorResponse
// @Failure		502		{object}	response.ErrorResponse	"Extraction service failed"
// @Router			/documents/extract [post]
func (app *application) handleExtractDocument(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxDocumentBytes)

	body, contentType, filename, err := documentBody(r)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid document upload: "+err.Error())
		return
	}
	defer body.Close()

	ctx := r.Context()
	doc, err := app.extractor.Extract(ctx, body, contentType, filename)
	if err != nil {
		app.writeError(w, r, err)
		return
	}

	result := extractResult{Document: doc}
	if submit, _ := strconv.ParseBool(r.URL.Query().Get("submit")); submit {
		sub, err := app.coordinator.Submit(ctx, doc.Submission())
		if err != nil {
			app.writeError(w, r, err)
			return
		}
		result.Submission = sub
		writeOK(w, http.StatusCreated, "invoice "+sub.Summary.PaymentStatus, result)
		return
	}

	writeOK(w, http.StatusOK, "extracted", result)
}

// documentBody returns the uploaded file, from a multipart form when the
// request is one and the raw body otherwise.
func documentBody(r *http.Request) (io.ReadCloser, string, string, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		ct := r.Header.Get("Content-Type")
		if ct == "" {
			ct = "application/octet-stream"
		}
		return r.Body, ct, r.URL.Query().Get("filename"), nil
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		return nil, "", "", err
	}
	ct := header.Header.Get("Content-Type")
	if ct == "" || strings.HasPrefix(ct, "application/octet-stream") {
		ct = mime.TypeByExtension(strings.ToLower(filepath.Ext(header.Filename)))
	}
	if ct == "" {
		ct = "application/octet-stream"
	}
	return file, ct, header.Filename, nil
}
