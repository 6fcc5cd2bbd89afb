package http

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"portfolio-booking/config"
	"portfolio-booking/internal/delivery/dto"
	"portfolio-booking/internal/delivery/http/handler"
	"portfolio-booking/internal/delivery/http/middleware"
	"portfolio-booking/internal/repository"
	"portfolio-booking/internal/service"
	"portfolio-booking/internal/usecase"
	"portfolio-booking/pkg/validator"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   json.RawMessage `json:"error"`
}

func newTestServer(t *testing.T, relayBody string) *httptest.Server {
	t.Helper()

	log := logrus.New()
	log.SetOutput(io.Discard)

	relay := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(relayBody))
	}))
	t.Cleanup(relay.Close)

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	locks := service.NewSessionLockService(log)
	resets := service.NewResetScheduler(time.Hour)
	t.Cleanup(func() {
		resets.Stop()
		locks.Stop()
	})

	reg := prometheus.NewRegistry()
	customValidator := validator.NewValidator()
	calendar := service.NewCalendarService(20).WithClock(func() time.Time {
		return time.Date(2026, time.October, 15, 9, 0, 0, 0, time.UTC)
	})

	bookingUsecase := usecase.NewBookingFlowUsecase(
		log,
		repository.NewSessionRepository(client, time.Hour),
		calendar,
		customValidator,
		service.NewRelayClient(config.RelayConfig{Endpoint: relay.URL, AccessKey: "k", FromName: "Portfolio Booking System", Timeout: time.Second}, log),
		service.NewInviteService(config.CalendarConfig{ProductID: "Portfolio", HostDomain: "portfolio.local", Summary: "Consultation Call", Location: "Online Meeting", FileName: "booking.ics"}),
		service.NewNoopLedger(),
		locks,
		resets,
		service.NewBookingMetrics(reg),
		"UTC",
	)
	topics, fallback := usecase.DefaultAssistantTopics("Jordan", "jordan@example.com")
	rateLimit := middleware.NewRateLimitMiddleware(log, 60, 5, nil)
	t.Cleanup(rateLimit.Stop)

	router := NewRouter(
		log,
		handler.NewBookingHandler(bookingUsecase, customValidator),
		handler.NewAssistantHandler(usecase.NewAssistantUsecase(log, topics, fallback), customValidator),
		middleware.NewCORSMiddleware("*"),
		rateLimit,
		reg,
	)

	srv := httptest.NewServer(router.Setup())
	t.Cleanup(srv.Close)
	return srv
}

func call(t *testing.T, srv *httptest.Server, method, path string, body interface{}) (int, envelope) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, srv.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var env envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	return resp.StatusCode, env
}

func decodeView(t *testing.T, env envelope) dto.BookingView {
	t.Helper()
	var view dto.BookingView
	require.NoError(t, json.Unmarshal(env.Data, &view))
	return view
}

// walkToReview opens a session and fills every step up to review
func walkToReview(t *testing.T, srv *httptest.Server) string {
	t.Helper()

	code, env := call(t, srv, http.MethodPost, "/api/v1/booking/sessions", dto.OpenSessionRequest{Timezone: "Europe/Berlin"})
	require.Equal(t, http.StatusCreated, code)
	base := "/api/v1/booking/sessions/" + decodeView(t, env).SessionID.String()

	code, _ = call(t, srv, http.MethodPost, base+"/date", dto.SelectDateRequest{Date: "2026-10-20"})
	require.Equal(t, http.StatusOK, code)
	code, _ = call(t, srv, http.MethodPost, base+"/continue", nil)
	require.Equal(t, http.StatusOK, code)
	code, _ = call(t, srv, http.MethodPost, base+"/time", dto.SelectTimeRequest{Time: "02:00 PM"})
	require.Equal(t, http.StatusOK, code)
	code, _ = call(t, srv, http.MethodPost, base+"/continue", nil)
	require.Equal(t, http.StatusOK, code)

	code, env = call(t, srv, http.MethodPost, base+"/details", dto.ContactDetailsRequest{Name: "", Email: "a@b.com"})
	require.Equal(t, http.StatusUnprocessableEntity, code)
	assert.False(t, env.Success)
	view := decodeView(t, env)
	require.NotNil(t, view.Form)
	assert.True(t, view.Form.Shake)
	assert.Equal(t, "name", view.Form.FocusField)

	code, env = call(t, srv, http.MethodPost, base+"/details", dto.ContactDetailsRequest{Name: "Ada Lovelace", Email: "ada@example.com"})
	require.Equal(t, http.StatusOK, code)
	require.NotNil(t, decodeView(t, env).Review)

	return base
}

func TestRouter_FullBookingFlow(t *testing.T) {
	srv := newTestServer(t, `{"success": true, "message": "Email sent"}`)
	base := walkToReview(t, srv)

	code, env := call(t, srv, http.MethodGet, base+"/invite.ics", nil)
	assert.Equal(t, http.StatusConflict, code)
	assert.False(t, env.Success)

	code, env = call(t, srv, http.MethodPost, base+"/confirm", nil)
	require.Equal(t, http.StatusOK, code)
	view := decodeView(t, env)
	require.NotNil(t, view.Success)
	assert.Equal(t, base+"/invite.ics", view.Success.InviteURL)

	resp, err := srv.Client().Get(srv.URL + base + "/invite.ics")
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, service.InviteContentType, resp.Header.Get("Content-Type"))
	assert.Contains(t, resp.Header.Get("Content-Disposition"), `filename="booking.ics"`)
	body := string(raw)
	assert.True(t, strings.HasPrefix(body, "BEGIN:VCALENDAR\r\n"))
	assert.Contains(t, body, "DTSTART:20261020T120000Z\r\n")
	assert.Contains(t, body, "DTEND:20261020T123000Z\r\n")

	metrics, err := srv.Client().Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer metrics.Body.Close()
	scrape, err := io.ReadAll(metrics.Body)
	require.NoError(t, err)
	assert.Contains(t, string(scrape), "portfolio_booking_submissions_total")
}

func TestRouter_ConfirmFailureShowsNotice(t *testing.T) {
	srv := newTestServer(t, `{"success": false, "message": "Invalid access key"}`)
	base := walkToReview(t, srv)

	code, env := call(t, srv, http.MethodPost, base+"/confirm", nil)
	assert.Equal(t, http.StatusBadGateway, code)
	assert.Equal(t, service.SubmissionNotice, env.Message)

	view := decodeView(t, env)
	require.NotNil(t, view.Review)
	assert.Equal(t, 4, view.Step)
	assert.True(t, view.Review.ConfirmEnabled)
}

func TestRouter_CloseThenReopen(t *testing.T) {
	srv := newTestServer(t, `{"success": true}`)
	base := walkToReview(t, srv)
	id := strings.TrimPrefix(base, "/api/v1/booking/sessions/")

	code, _ := call(t, srv, http.MethodDelete, base, nil)
	require.Equal(t, http.StatusOK, code)

	code, _ = call(t, srv, http.MethodPost, base+"/back", nil)
	assert.Equal(t, http.StatusConflict, code)

	code, env := call(t, srv, http.MethodPost, "/api/v1/booking/sessions", map[string]string{"session_id": id})
	require.Equal(t, http.StatusCreated, code)
	view := decodeView(t, env)
	assert.Equal(t, 1, view.Step)
	require.NotNil(t, view.Date)
	assert.False(t, view.Date.CanContinue)
}

func TestRouter_BadInput(t *testing.T) {
	srv := newTestServer(t, `{"success": true}`)

	code, _ := call(t, srv, http.MethodGet, "/api/v1/booking/sessions/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = call(t, srv, http.MethodGet, "/api/v1/booking/sessions/6f1c1f3e-8a57-4d7c-9d55-0d8b1d1f0a11", nil)
	assert.Equal(t, http.StatusNotFound, code)

	code, env := call(t, srv, http.MethodPost, "/api/v1/booking/sessions", nil)
	require.Equal(t, http.StatusCreated, code)
	base := "/api/v1/booking/sessions/" + decodeView(t, env).SessionID.String()

	code, _ = call(t, srv, http.MethodPost, base+"/date", dto.SelectDateRequest{Date: "20/10/2026"})
	assert.Equal(t, http.StatusBadRequest, code)
	code, _ = call(t, srv, http.MethodPost, base+"/date", dto.SelectDateRequest{Date: "2026-10-18"})
	assert.Equal(t, http.StatusUnprocessableEntity, code)
	code, _ = call(t, srv, http.MethodPost, base+"/continue", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, code)
}

func TestRouter_AssistantBookingIntent(t *testing.T) {
	srv := newTestServer(t, `{"success": true}`)

	code, env := call(t, srv, http.MethodPost, "/api/v1/assistant/messages", dto.AssistantMessageRequest{Message: "Can we schedule a meeting?"})
	require.Equal(t, http.StatusOK, code)

	var reply dto.AssistantReplyResponse
	require.NoError(t, json.Unmarshal(env.Data, &reply))
	assert.Equal(t, usecase.WidgetBooking, reply.Widget)

	code, _ = call(t, srv, http.MethodPost, "/api/v1/assistant/messages", dto.AssistantMessageRequest{Message: ""})
	assert.Equal(t, http.StatusBadRequest, code)
}
