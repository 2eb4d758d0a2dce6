package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/gorilla/mux"

	"mathengine/internal/models"
	"mathengine/internal/worker"
)

// WorkSource - очередь готовой работы (worker.Manager)
type WorkSource interface {
	Next() (models.Work, bool)
	Complete(ctx context.Context, id, result string) error
	Fail(ctx context.Context, id string, cause error) error
}

// Handler обслуживает HTTP-агентов: выдача работы и прием результатов
type Handler struct {
	source WorkSource
}

func NewHandler(source WorkSource) *Handler {
	return &Handler{source: source}
}

// NewRouter собирает внутренний роутер для агентов. Пустой agentKey
// отключает проверку ключа.
func NewRouter(source WorkSource, agentKey string) *mux.Router {
	h := NewHandler(source)

	r := mux.NewRouter()
	internal := r.PathPrefix("/internal").Subrouter()
	internal.Use(AgentKeyMiddleware(agentKey))
	internal.HandleFunc("/work", h.HandleGetWork).Methods("GET")
	internal.HandleFunc("/work", h.HandleSubmitResult).Methods("POST")

	r.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}).Methods("GET")
	return r
}

func (h *Handler) HandleGetWork(w http.ResponseWriter, r *http.Request) {
	work, found := h.source.Next()
	if !found {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	log.Printf("HTTP агент получил работу %s", work.ID)
	writeJSON(w, http.StatusOK, work)
}

func (h *Handler) HandleSubmitResult(w http.ResponseWriter, r *http.Request) {
	var result models.WorkResult
	if err := json.NewDecoder(r.Body).Decode(&result); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
		return
	}
	if result.ID == "" {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": "id is required"})
		return
	}

	var err error
	if result.Error != "" {
		err = h.source.Fail(r.Context(), result.ID, errors.New(result.Error))
	} else {
		err = h.source.Complete(r.Context(), result.ID, result.Result)
	}

	if err != nil {
		if errors.Is(err, worker.ErrUnknownWork) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
			return
		}
		log.Printf("Ошибка при обработке результата работы %s: %v", result.ID, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	w.WriteHeader(http.StatusOK)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Ошибка записи ответа: %v", err)
	}
}
