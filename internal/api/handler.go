package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"mathengine/internal/calculator"
	"mathengine/internal/engine"
	"mathengine/internal/models"
	"mathengine/internal/notify"
)

const defaultHistoryLimit = 50

type QuestionHandler struct {
	engine Engine
	now    func() time.Time
}

func NewQuestionHandler(e Engine, now func() time.Time) *QuestionHandler {
	return &QuestionHandler{engine: e, now: now}
}

// QuestionRequest принимает либо expression ("2 * 3"), либо операнды и
// операцию по отдельности
type QuestionRequest struct {
	ID            string   `json:"id,omitempty"`
	Expression    string   `json:"expression,omitempty"`
	FirstOperand  *float64 `json:"first_operand,omitempty"`
	SecondOperand *float64 `json:"second_operand,omitempty"`
	Operator      string   `json:"operator,omitempty"`
	DelaySeconds  int64    `json:"delay_seconds"`
}

type QuestionResponse struct {
	ID string `json:"id"`
}

type OperationsResponse struct {
	Operations []notify.OperationView `json:"operations"`
}

type AnswersResponse struct {
	Answers []models.Answer `json:"answers"`
}

// Question проверяет запрос и строит вопрос
func (req QuestionRequest) Question() (models.Question, error) {
	if strings.TrimSpace(req.Expression) != "" {
		q, err := calculator.ParseQuestion(req.Expression, req.DelaySeconds)
		if err != nil {
			return models.Question{}, err
		}
		q.ID = req.ID
		return q, nil
	}

	if req.FirstOperand == nil || req.SecondOperand == nil {
		return models.Question{}, calculator.ErrInvalidOperand
	}
	op, err := models.ParseOperator(req.Operator)
	if err != nil {
		return models.Question{}, errors.Join(calculator.ErrUnknownOperator, err)
	}

	q := models.Question{
		ID:            req.ID,
		FirstOperand:  *req.FirstOperand,
		SecondOperand: *req.SecondOperand,
		Operator:      op,
		DelaySeconds:  req.DelaySeconds,
	}
	if err := calculator.Validate(q); err != nil {
		return models.Question{}, err
	}
	return q, nil
}

func (h *QuestionHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req QuestionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		SendErrorResponse(w, http.StatusUnprocessableEntity, "Question is not valid")
		return
	}

	q, err := req.Question()
	if err != nil {
		SendErrorResponse(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	id, err := h.engine.Calculate(r.Context(), q)
	if err != nil {
		if errors.Is(err, engine.ErrDuplicateQuestion) {
			SendErrorResponse(w, http.StatusConflict, err.Error())
			return
		}
		log.Printf("Ошибка отправки вопроса %s: %v", q, err)
		SendErrorResponse(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	SendJSON(w, http.StatusAccepted, QuestionResponse{ID: id})
}

func (h *QuestionHandler) Operations(w http.ResponseWriter, r *http.Request) {
	pending, _, err := h.engine.Snapshot(r.Context())
	if err != nil {
		SendErrorResponse(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	SendJSON(w, http.StatusOK, OperationsResponse{Operations: notify.Views(pending, h.now())})
}

func (h *QuestionHandler) Answers(w http.ResponseWriter, r *http.Request) {
	_, completed, err := h.engine.Snapshot(r.Context())
	if err != nil {
		SendErrorResponse(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	if completed == nil {
		completed = []models.Answer{}
	}
	SendJSON(w, http.StatusOK, AnswersResponse{Answers: completed})
}

func (h *QuestionHandler) Summary(w http.ResponseWriter, r *http.Request) {
	s, err := h.engine.Summary(r.Context())
	if err != nil {
		SendErrorResponse(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	SendJSON(w, http.StatusOK, s)
}

func (h *QuestionHandler) History(w http.ResponseWriter, r *http.Request) {
	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			SendErrorResponse(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	answers, err := h.engine.History(r.Context(), limit)
	if err != nil {
		log.Printf("Ошибка получения истории: %v", err)
		SendErrorResponse(w, http.StatusInternalServerError, "Failed to retrieve history")
		return
	}
	if answers == nil {
		answers = []models.Answer{}
	}
	SendJSON(w, http.StatusOK, AnswersResponse{Answers: answers})
}

func (h *QuestionHandler) CancelAll(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.CancelAll(r.Context()); err != nil {
		log.Printf("Ошибка отмены операций: %v", err)
		SendErrorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
