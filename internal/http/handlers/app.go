package handlers

import (
	"encoding/json"
	"net/http"

	"veorelay/internal/infra"
	"veorelay/internal/providers/veo"
	"veorelay/internal/store"
)

// App bundles the dependencies shared by every relay handler.
type App struct {
	Cfg    *infra.Config
	Logger infra.Logger
	Veo    *veo.Client
	Ops    *store.OperationStore
}

func NewApp(cfg *infra.Config, logger infra.Logger, client *veo.Client, ops *store.OperationStore) *App {
	return &App{Cfg: cfg, Logger: logger, Veo: client, Ops: ops}
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, status int, code, message string) {
	a.json(w, status, map[string]string{"error": code, "message": message})
}
