package handler

import (
	"encoding/json"
	"net/http"

	"portfolio-booking/internal/delivery/dto"
	"portfolio-booking/internal/usecase"
	"portfolio-booking/pkg/response"
	"portfolio-booking/pkg/validator"
)

type AssistantHandler struct {
	assistantUsecase usecase.AssistantUsecase
	validator        *validator.CustomValidator
}

func NewAssistantHandler(assistantUsecase usecase.AssistantUsecase, validator *validator.CustomValidator) *AssistantHandler {
	return &AssistantHandler{
		assistantUsecase: assistantUsecase,
		validator:        validator,
	}
}

func (h *AssistantHandler) PostMessage(w http.ResponseWriter, r *http.Request) {
	var req dto.AssistantMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest, "Invalid request body", nil)
		return
	}

	if err := h.validator.Validate(&req); err != nil {
		response.ValidationError(w, h.validator.FormatValidationErrors(err))
		return
	}

	reply, err := h.assistantUsecase.Reply(r.Context(), &req)
	if err != nil {
		switch err {
		case usecase.ErrEmptyMessage:
			response.Error(w, http.StatusBadRequest, "Message is empty", nil)
		default:
			response.InternalServerError(w, "Failed to answer message")
		}
		return
	}

	response.Success(w, http.StatusOK, "Reply generated", reply)
}
