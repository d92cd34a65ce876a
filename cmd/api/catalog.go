package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/farxc/dsd_reconciler/internal/cache"
	"github.com/farxc/dsd_reconciler/internal/catalog"
	"github.com/farxc/dsd_reconciler/internal/reconcile"
	"github.com/farxc/dsd_reconciler/internal/response"
	"github.com/farxc/dsd_reconciler/internal/store"
)

type GetImportHistoryResponse = response.APIResponse[[]store.CatalogImport]
type CatalogImportResponse = response.APIResponse[catalog.Result]

type catalogImportRequest struct {
	Source      string           `json:"source"`
	Products    []catalog.Record `json:"products"`
	LinkVendors bool             `json:"link_vendors"`
}

// @Summary		Get catalog import history
// @Description	Get a list of the latest catalog import records.
// @Tags			Catalog
// @Produce		json
// @Param			limit	query		int							false	"Limit the number of results"	default(10)
// @Success		200		{object}	GetImportHistoryResponse	"Successfully retrieved latest import records"
// @Failure		500		{object}	response.ErrorResponse		"Failed to get import history"
// @Router			/catalog/imports [get]
func (app *application) handleGetImportHistory(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 10)
	if limit <= 0 {
		limit = 10
	}

	data, err := app.store.CatalogImports.GetLatest(r.Context(), limit)
	if err != nil {
		app.writeError(w, r, err)
		return
	}

	writeOK(w, http.StatusOK, "Successfully retrieved latest import records", data)
}

// @Summary		Import catalog rows
// @Description	Upserts rows into the wholesale catalog (awg) or the internal product table.
// @Tags			Catalog
// @Accept			json
// @Produce		json
// @Param			import	body		catalogImportRequest	true	"Source and rows"
// @Success		201		{object}	CatalogImportResponse
// @Failure		400		{object}	response.ErrorResponse
// @Failure		409		{object}	response.ErrorResponse	"Another import of this source is running"
// @Router			/catalog/import [post]
func (app *application) handleCatalogImport(w http.ResponseWriter, r *http.Request) {
	var input catalogImportRequest
	if err := readJSON(w, r, &input); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request payload")
		return
	}

	fields := map[string]string{}
	if !catalog.ValidSource(input.Source) {
		fields["source"] = "oneof=awg internal"
	}
	if len(input.Products) == 0 {
		fields["products"] = "required"
	}
	if len(fields) > 0 {
		app.writeError(w, r, &reconcile.ValidationError{Fields: fields})
		return
	}

	result, err := app.importRecords(r.Context(), input)
	if err != nil {
		app.writeError(w, r, err)
		return
	}

	writeOK(w, http.StatusCreated, fmt.Sprintf("imported %d, skipped %d", result.Imported, result.Skipped), result)
}

func (app *application) importRecords(ctx context.Context, input catalogImportRequest) (catalog.Result, error) {
	unlock, err := app.locker.Lock(ctx, "catalog-import:"+input.Source)
	if err != nil {
		return catalog.Result{}, err
	}
	defer func() {
		if err := unlock(context.WithoutCancel(ctx)); err != nil && !errors.Is(err, context.Canceled) {
			app.logger.Warn("CATALOG", "failed to release import lock: %v", err)
		}
	}()

	history := &store.CatalogImport{
		Source:      input.Source,
		SourceFile:  "api",
		TriggerType: store.TriggerTypeAPI,
		Status:      store.ImportStatusInProgress,
	}
	if err := app.store.CatalogImports.InsertCatalogImport(ctx, history); err != nil {
		return catalog.Result{}, fmt.Errorf("failed to create import record: %w", err)
	}

	result, err := app.loader.Load(ctx, input.Source, input.Products)

	status := store.ImportStatusSuccess
	switch {
	case err != nil:
		status = store.ImportStatusFailure
	case result.Skipped > 0:
		status = store.ImportStatusPartial
	}
	if uerr := app.store.CatalogImports.UpdateImportStatus(context.WithoutCancel(ctx), history.ID, status, result.Imported, result.Skipped); uerr != nil {
		app.logger.Error("CATALOG", "failed to update import %d: %v", history.ID, uerr)
	}
	if err != nil {
		return result, err
	}

	if app.invalidator != nil && result.Imported > 0 {
		if _, err := app.invalidator.Invalidate(ctx); err != nil {
			app.logger.Warn("CATALOG", "catalog cache invalidation failed: %v", err)
		}
	}

	if input.LinkVendors && input.Source == catalog.SourceAWG {
		if _, err := app.loader.LinkVendors(ctx); err != nil {
			return result, err
		}
	}
	return result, nil
}

// @Summary		Link catalog vendors
// @Description	Attaches unlinked catalog rows to known vendors by name, short code or brand.
// @Tags			Catalog
// @Produce		json
// @Success		200	{object}	response.APIResponse[catalog.LinkResult]
// @Failure		409	{object}	response.ErrorResponse
// @Router			/catalog/import [patch]
func (app *application) handleLinkVendors(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	unlock, err := app.locker.Lock(ctx, "catalog-import:"+catalog.SourceAWG)
	if err != nil {
		if errors.Is(err, cache.ErrLocked) {
			app.writeError(w, r, fmt.Errorf("catalog import in progress: %w", err))
			return
		}
		app.writeError(w, r, err)
		return
	}
	defer unlock(context.WithoutCancel(ctx))

	result, err := app.loader.LinkVendors(ctx)
	if err != nil {
		app.writeError(w, r, err)
		return
	}

	if app.invalidator != nil {
		if _, err := app.invalidator.Invalidate(ctx); err != nil {
			app.logger.Warn("CATALOG", "catalog cache invalidation failed: %v", err)
		}
	}

	writeOK(w, http.StatusOK, fmt.Sprintf("matched %d, unmatched %d", result.Matched, result.Unmatched), result)
}
