package main

import (
	"net/http"

	"github.com/farxc/dsd_reconciler/internal/reconcile"
)

// @Summary		Look up a UPC
// @Description	Advisory lookup in internal products, then the wholesale catalog.
// @Tags			Lookup
// @Produce		json
// @Param			upc	query		string	true	"Scanned UPC"
// @Success		200	{object}	response.APIResponse[reconcile.LookupResult]
// @Failure		400	{object}	response.ErrorResponse
// @Router			/lookup/upc [get]
func (app *application) handleLookupUPC(w http.ResponseWriter, r *http.Request) {
	result, err := app.lookuper.Lookup(r.Context(), r.URL.Query().Get("upc"))
	if err != nil {
		app.writeError(w, r, err)
		return
	}

	msg := "not found"
	if result.Found {
		msg = "found in " + result.Source
	}
	writeOK(w, http.StatusOK, msg, result)
}

// @Summary		Register a product
// @Description	Creates or overwrites a manually entered product keyed by UPC.
// @Tags			Lookup
// @Accept			json
// @Produce		json
// @Param			product	body		reconcile.ManualProduct	true	"Product"
// @Success		201		{object}	response.APIResponse[store.Product]
// @Failure		400		{object}	response.ErrorResponse
// @Router			/lookup/upc [post]
func (app *application) handleRegisterProduct(w http.ResponseWriter, r *http.Request) {
	var input reconcile.ManualProduct
	if err := readJSON(w, r, &input); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request payload")
		return
	}

	product, err := app.resolver.Register(r.Context(), input)
	if err != nil {
		app.writeError(w, r, err)
		return
	}

	writeOK(w, http.StatusCreated, "product saved", product)
}
