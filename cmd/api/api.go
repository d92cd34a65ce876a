package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/farxc/dsd_reconciler/internal/cache"
	"github.com/farxc/dsd_reconciler/internal/catalog"
	"github.com/farxc/dsd_reconciler/internal/db"
	"github.com/farxc/dsd_reconciler/internal/extraction"
	"github.com/farxc/dsd_reconciler/internal/logger"
	"github.com/farxc/dsd_reconciler/internal/reconcile"
	"github.com/farxc/dsd_reconciler/internal/store"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type application struct {
	config config
	store  *store.Storage
	logger *logger.Logger

	coordinator  *reconcile.Coordinator
	priceChecker *reconcile.PriceChecker
	lookuper     *reconcile.Lookuper
	resolver     *reconcile.Resolver
	loader       *catalog.Loader
	extractor    *extraction.Client
	locker       cache.Locker
	invalidator  catalog.Invalidator

	checks map[string]func(context.Context) error
}

type config struct {
	addr                  string
	db                    db.Config
	migrate               bool
	redis                 cache.RedisConfig
	catalogCacheTTL       time.Duration
	extractionURL         string
	extractionTimeout     time.Duration
	priceCheckConcurrency int
}

func (app *application) mount() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(middleware.Logger)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)

	// Document extraction can take a while upstream; everything else is
	// bounded well below this.
	r.Use(middleware.Timeout(90 * time.Second))

	r.Route("/v1", func(r chi.Router) {
		r.Get("/health", app.healthCheckHandler)
		r.Get("/stats", app.handleGetStats)

		r.Route("/receiving", func(r chi.Router) {
			r.Get("/", app.handleGetApprovalQueue)
			r.Post("/", app.handleSubmitInvoice)
			r.Post("/reconcile", app.handleReconcileScans)
			r.Patch("/{id}", app.handleApproveInvoice)
		})

		r.Post("/price-check", app.handlePriceCheck)

		r.Route("/lookup", func(r chi.Router) {
			r.Get("/upc", app.handleLookupUPC)
			r.Post("/upc", app.handleRegisterProduct)
		})

		r.Route("/catalog", func(r chi.Router) {
			r.Get("/imports", app.handleGetImportHistory)
			r.Post("/import", app.handleCatalogImport)
			r.Patch("/import", app.handleLinkVendors)
		})

		r.Post("/documents/extract", app.handleExtractDocument)

		r.Get("/products/{id}/prices", app.handleGetPriceHistory)
	})

	return r
}

func (app *application) run(ctx context.Context, mux http.Handler) error {
	srv := &http.Server{
		Addr:         app.config.addr,
		Handler:      mux,
		WriteTimeout: time.Second * 120,
		ReadTimeout:  time.Second * 40,
		IdleTimeout:  time.Minute,
	}

	shutdownErr := make(chan error, 1)
	go func() {
		<-ctx.Done()
		app.logger.Info("SERVER", "shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		shutdownErr <- srv.Shutdown(shutdownCtx)
	}()

	app.logger.Info("SERVER", "server started on %s", app.config.addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return <-shutdownErr
}
