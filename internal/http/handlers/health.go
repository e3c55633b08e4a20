package handlers

import "net/http"

// Health reports liveness along with the generation model this relay fronts.
func (a *App) Health(w http.ResponseWriter, r *http.Request) {
	a.json(w, http.StatusOK, map[string]string{
		"status": "ok",
		"model":  a.Cfg.VeoModel,
	})
}
