package main

import (
	"net/http"
)

// @Summary		Health check
// @Description	returns the status of the service and its dependencies
// @Tags			Health
// @Produce		json
// @Success		200	{object}	map[string]string
// @Failure		503	{object}	map[string]string
// @Router			/health [get]
func (app *application) healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	data := map[string]string{
		"status":  "available",
		"version": "0.1.0",
	}

	status := http.StatusOK
	for name, check := range app.checks {
		if err := check(r.Context()); err != nil {
			data[name] = err.Error()
			data["status"] = "degraded"
			status = http.StatusServiceUnavailable
			continue
		}
		data[name] = "ok"
	}

	if err := writeJSON(w, status, data); err != nil {
		writeJSONError(w, http.StatusInternalServerError, err.Error())
	}
}
