package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"portfolio-booking/internal/delivery/dto"
	"portfolio-booking/internal/service"
	"portfolio-booking/internal/usecase"
	"portfolio-booking/pkg/response"
	"portfolio-booking/pkg/validator"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

type BookingHandler struct {
	bookingUsecase usecase.BookingFlowUsecase
	validator      *validator.CustomValidator
}

func NewBookingHandler(bookingUsecase usecase.BookingFlowUsecase, validator *validator.CustomValidator) *BookingHandler {
	return &BookingHandler{
		bookingUsecase: bookingUsecase,
		validator:      validator,
	}
}

func (h *BookingHandler) OpenSession(w http.ResponseWriter, r *http.Request) {
	var req dto.OpenSessionRequest
	// An empty body opens a fresh session with the default timezone
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		response.Error(w, http.StatusBadRequest, "Invalid request body", nil)
		return
	}

	if err := h.validator.Validate(&req); err != nil {
		response.ValidationError(w, h.validator.FormatValidationErrors(err))
		return
	}

	view, err := h.bookingUsecase.Open(r.Context(), &req)
	if err != nil {
		writeFlowError(w, err)
		return
	}

	response.Success(w, http.StatusCreated, "Booking session opened", view)
}

func (h *BookingHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := parseSessionID(w, r)
	if !ok {
		return
	}

	view, err := h.bookingUsecase.GetState(r.Context(), sessionID)
	if err != nil {
		writeFlowError(w, err)
		return
	}

	response.Success(w, http.StatusOK, "Booking session retrieved", view)
}

func (h *BookingHandler) CloseSession(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := parseSessionID(w, r)
	if !ok {
		return
	}

	if err := h.bookingUsecase.Close(r.Context(), sessionID); err != nil {
		writeFlowError(w, err)
		return
	}

	response.Success(w, http.StatusOK, "Booking session closed", nil)
}

func (h *BookingHandler) SelectDate(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := parseSessionID(w, r)
	if !ok {
		return
	}

	var req dto.SelectDateRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	view, err := h.bookingUsecase.SelectDate(r.Context(), sessionID, &req)
	if err != nil {
		writeFlowError(w, err)
		return
	}

	response.Success(w, http.StatusOK, "Date selected", view)
}

func (h *BookingHandler) SelectTime(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := parseSessionID(w, r)
	if !ok {
		return
	}

	var req dto.SelectTimeRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	view, err := h.bookingUsecase.SelectTime(r.Context(), sessionID, &req)
	if err != nil {
		writeFlowError(w, err)
		return
	}

	response.Success(w, http.StatusOK, "Time selected", view)
}

func (h *BookingHandler) Continue(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := parseSessionID(w, r)
	if !ok {
		return
	}

	view, err := h.bookingUsecase.Continue(r.Context(), sessionID)
	if err != nil {
		writeFlowError(w, err)
		return
	}

	response.Success(w, http.StatusOK, "Moved to next step", view)
}

func (h *BookingHandler) Back(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := parseSessionID(w, r)
	if !ok {
		return
	}

	view, err := h.bookingUsecase.Back(r.Context(), sessionID)
	if err != nil {
		writeFlowError(w, err)
		return
	}

	response.Success(w, http.StatusOK, "Moved to previous step", view)
}

func (h *BookingHandler) ValidateField(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := parseSessionID(w, r)
	if !ok {
		return
	}

	var req dto.FieldValueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest, "Invalid request body", nil)
		return
	}

	view, err := h.bookingUsecase.ValidateField(r.Context(), sessionID, mux.Vars(r)["field"], &req)
	if err != nil {
		writeFlowError(w, err)
		return
	}

	response.Success(w, http.StatusOK, "Field checked", view)
}

func (h *BookingHandler) EditField(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := parseSessionID(w, r)
	if !ok {
		return
	}

	view, err := h.bookingUsecase.EditField(r.Context(), sessionID, mux.Vars(r)["field"])
	if err != nil {
		writeFlowError(w, err)
		return
	}

	response.Success(w, http.StatusOK, "Field error cleared", view)
}

func (h *BookingHandler) SubmitDetails(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := parseSessionID(w, r)
	if !ok {
		return
	}

	var req dto.ContactDetailsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest, "Invalid request body", nil)
		return
	}

	view, err := h.bookingUsecase.SubmitDetails(r.Context(), sessionID, &req)
	if err != nil {
		if errors.Is(err, usecase.ErrValidationFailed) && view != nil {
			response.Failure(w, http.StatusUnprocessableEntity, "Please correct the highlighted fields", view, view.Form.FieldErrors)
			return
		}
		writeFlowError(w, err)
		return
	}

	response.Success(w, http.StatusOK, "Details accepted", view)
}

func (h *BookingHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := parseSessionID(w, r)
	if !ok {
		return
	}

	view, err := h.bookingUsecase.Confirm(r.Context(), sessionID)
	if err != nil {
		if errors.Is(err, service.ErrSubmissionFailed) && view != nil {
			response.Failure(w, http.StatusBadGateway, service.SubmissionNotice, view, nil)
			return
		}
		writeFlowError(w, err)
		return
	}

	response.Success(w, http.StatusOK, "Booking confirmed", view)
}

func (h *BookingHandler) ExportInvite(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := parseSessionID(w, r)
	if !ok {
		return
	}

	invite, err := h.bookingUsecase.ExportInvite(r.Context(), sessionID)
	if err != nil {
		writeFlowError(w, err)
		return
	}

	w.Header().Set("Content-Type", service.InviteContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", invite.FileName))
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(invite.Body))
}

func (h *BookingHandler) GetSubmissions(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := parseSessionID(w, r)
	if !ok {
		return
	}

	submissions, err := h.bookingUsecase.SubmissionHistory(r.Context(), sessionID)
	if err != nil {
		writeFlowError(w, err)
		return
	}

	response.Success(w, http.StatusOK, "Submissions retrieved successfully", submissions)
}

func (h *BookingHandler) decodeAndValidate(w http.ResponseWriter, r *http.Request, req interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		response.Error(w, http.StatusBadRequest, "Invalid request body", nil)
		return false
	}

	if err := h.validator.Validate(req); err != nil {
		response.ValidationError(w, h.validator.FormatValidationErrors(err))
		return false
	}
	return true
}

func parseSessionID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	sessionID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		response.Error(w, http.StatusBadRequest, "Invalid session ID", nil)
		return uuid.Nil, false
	}
	return sessionID, true
}

func writeFlowError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, usecase.ErrSessionNotFound):
		response.NotFound(w, "Booking session not found")
	case errors.Is(err, usecase.ErrSessionClosed):
		response.Conflict(w, "Booking session is closed")
	case errors.Is(err, usecase.ErrInvalidTransition):
		response.Conflict(w, "Action not available at the current step")
	case errors.Is(err, usecase.ErrSubmissionInFlight):
		response.Conflict(w, "Your booking is already being confirmed")
	case errors.Is(err, usecase.ErrBookingNotCompleted):
		response.Conflict(w, "Booking is not confirmed yet")
	case errors.Is(err, usecase.ErrSelectionRequired):
		response.Error(w, http.StatusUnprocessableEntity, "Please make a selection first", nil)
	case errors.Is(err, usecase.ErrDateNotSelectable):
		response.Error(w, http.StatusUnprocessableEntity, "Date is not available", nil)
	case errors.Is(err, usecase.ErrUnknownSlot):
		response.Error(w, http.StatusUnprocessableEntity, "Time slot is not available", nil)
	case errors.Is(err, usecase.ErrUnknownField):
		response.NotFound(w, "Unknown field")
	case errors.Is(err, service.ErrSubmissionFailed):
		response.Error(w, http.StatusBadGateway, service.SubmissionNotice, nil)
	default:
		response.InternalServerError(w, "Failed to process booking request")
	}
}
