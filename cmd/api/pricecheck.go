package main

import (
	"net/http"

	"github.com/farxc/dsd_reconciler/internal/reconcile"
)

// @Summary		Check invoice prices
// @Description	Verifies line prices against the ledger without writing anything.
// @Tags			Prices
// @Accept			json
// @Produce		json
// @Param			request	body		reconcile.PriceCheckRequest	true	"Vendor and lines"
// @Success		200		{object}	response.APIResponse[reconcile.PriceCheckReport]
// @Failure		400		{object}	response.ErrorResponse
// @Router			/price-check [post]
func (app *application) handlePriceCheck(w http.ResponseWriter, r *http.Request) {
	var input reconcile.PriceCheckRequest
	if err := readJSON(w, r, &input); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request payload")
		return
	}

	report, err := app.priceChecker.Check(r.Context(), input)
	if err != nil {
		app.writeError(w, r, err)
		return
	}

	writeOK(w, http.StatusOK, "", report)
}

// @Summary		Price history
// @Description	Ledger entries for a product, newest first.
// @Tags			Prices
// @Produce		json
// @Param			id		path		int	true	"Product ID"
// @Param			limit	query		int	false	"Limit the number of results"	default(50)
// @Success		200		{object}	response.APIResponse[[]store.PriceEntry]
// @Failure		404		{object}	response.ErrorResponse
// @Router			/products/{id}/prices [get]
func (app *application) handleGetPriceHistory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		app.writeError(w, r, err)
		return
	}

	ctx := r.Context()
	if _, err := app.store.Products.GetByID(ctx, id); err != nil {
		app.writeError(w, r, err)
		return
	}

	limit := queryInt(r, "limit", 50)
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	data, err := app.store.Prices.History(ctx, id, limit)
	if err != nil {
		app.writeError(w, r, err)
		return
	}

	writeOK(w, http.StatusOK, "", data)
}

// @Summary		Dashboard stats
// @Tags			Stats
// @Produce		json
// @Success		200	{object}	response.APIResponse[store.DashboardStats]
// @Router			/stats [get]
func (app *application) handleGetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := app.store.Invoices.Stats(r.Context())
	if err != nil {
		app.writeError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "", stats)
}
