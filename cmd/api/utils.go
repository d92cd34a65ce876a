package main

import (
	"net/http"
	"strconv"

	"github.com/farxc/dsd_reconciler/internal/reconcile"
	"github.com/go-chi/chi/v5"
)

func queryInt(r *http.Request, key string, fallback int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, &reconcile.ValidationError{Fields: map[string]string{"id": "numeric"}}
	}
	return id, nil
}
