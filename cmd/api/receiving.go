package main

import (
	"net/http"

	"github.com/farxc/dsd_reconciler/internal/reconcile"
	"github.com/farxc/dsd_reconciler/internal/response"
	"github.com/farxc/dsd_reconciler/internal/store"
	"github.com/google/uuid"
)

type SubmitInvoiceResponse = response.APIResponse[*reconcile.SubmissionResult]
type ApprovalQueueResponse = response.APIResponse[[]store.InvoiceSummary]

type approvalResult struct {
	InvoiceID     int64  `json:"invoice_id"`
	PaymentStatus string `json:"payment_status"`
}

type reconcileRequest struct {
	LineItems             []reconcile.LineItem     `json:"line_items"`
	ExpectedLines         []reconcile.ExpectedLine `json:"expected_lines"`
	Scans                 []reconcile.ScanEvent    `json:"scans"`
	Adjustments           []reconcile.Adjustment   `json:"adjustments"`
	MarkRemainingVerified bool                     `json:"mark_remaining_verified"`
	Close                 bool                     `json:"close"`
}

type reconcileResult struct {
	SessionID   string                    `json:"session_id"`
	Stats       reconcile.ReceivingStats  `json:"stats"`
	Lines       []reconcile.LineState     `json:"lines"`
	Unmatched   []reconcile.UnmatchedScan `json:"not_on_invoice"`
	NeedsReview bool                      `json:"needs_review"`
}

// @Summary		Submit an invoice
// @Description	Reconciles a delivery invoice: resolves products, verifies prices, records the ledger and stores the invoice.
// @Tags			Receiving
// @Accept			json
// @Produce		json
// @Param			submission	body		reconcile.Submission	true	"Invoice submission"
// @Success		201			{object}	SubmitInvoiceResponse
// @Failure		400			{object}	response.ErrorResponse
// @Failure		500			{object}	response.ErrorResponse
// @Router			/receiving [post]
func (app *application) handleSubmitInvoice(w http.ResponseWriter, r *http.Request) {
	var sub reconcile.Submission
	if err := readJSON(w, r, &sub); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request payload")
		return
	}

	result, err := app.coordinator.Submit(r.Context(), sub)
	if err != nil {
		app.writeError(w, r, err)
		return
	}

	writeOK(w, http.StatusCreated, "invoice "+result.Summary.PaymentStatus, result)
}

// @Summary		Approval queue
// @Description	Lists invoices by payment status, pending by default.
// @Tags			Receiving
// @Produce		json
// @Param			status	query		string	false	"Payment status"	default(pending)
// @Param			limit	query		int		false	"Limit the number of results"	default(50)
// @Success		200		{object}	ApprovalQueueResponse
// @Failure		400		{object}	response.ErrorResponse
// @Router			/receiving [get]
func (app *application) handleGetApprovalQueue(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", reconcile.DefaultQueueLimit)

	data, err := app.coordinator.Pending(r.Context(), r.URL.Query().Get("status"), limit)
	if err != nil {
		app.writeError(w, r, err)
		return
	}

	writeOK(w, http.StatusOK, "", data)
}

// @Summary		Approve or reject an invoice
// @Tags			Receiving
// @Accept			json
// @Produce		json
// @Param			id			path		int					true	"Invoice ID"
// @Param			approval	body		reconcile.Approval	true	"approve or reject"
// @Success		200			{object}	response.APIResponse[approvalResult]
// @Failure		400			{object}	response.ErrorResponse
// @Failure		404			{object}	response.ErrorResponse
// @Router			/receiving/{id} [patch]
func (app *application) handleApproveInvoice(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		app.writeError(w, r, err)
		return
	}

	var input reconcile.Approval
	if err := readJSON(w, r, &input); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request payload")
		return
	}

	status, err := app.coordinator.Approve(r.Context(), id, input)
	if err != nil {
		app.writeError(w, r, err)
		return
	}

	writeOK(w, http.StatusOK, "invoice "+status, approvalResult{InvoiceID: id, PaymentStatus: status})
}

// @Summary		Replay a receiving session
// @Description	Evaluates recorded scans and adjustments against expected lines without storing anything.
// @Tags			Receiving
// @Accept			json
// @Produce		json
// @Success		200	{object}	response.APIResponse[reconcileResult]
// @Failure		400	{object}	response.ErrorResponse
// @Router			/receiving/reconcile [post]
func (app *application) handleReconcileScans(w http.ResponseWriter, r *http.Request) {
	var input reconcileRequest
	if err := readJSON(w, r, &input); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request payload")
		return
	}

	lines := input.ExpectedLines
	if len(lines) == 0 {
		lines = reconcile.ExpectedLines(input.LineItems)
	}
	if len(lines) == 0 {
		app.writeError(w, r, &reconcile.ValidationError{Fields: map[string]string{"expected_lines": "required"}})
		return
	}

	session, err := reconcile.Replay(lines, input.Scans, input.Adjustments, input.MarkRemainingVerified)
	if err != nil {
		app.writeError(w, r, err)
		return
	}
	if input.Close {
		session.Close()
	}

	writeOK(w, http.StatusOK, "", reconcileResult{
		SessionID:   uuid.NewString(),
		Stats:       session.Stats(),
		Lines:       session.Lines(),
		Unmatched:   session.Unmatched(),
		NeedsReview: session.NeedsReview(),
	})
}
