package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"portfolio-booking/config"
	"portfolio-booking/internal/domain/entity"

	"github.com/sirupsen/logrus"
)

// ErrSubmissionFailed is returned when the relay rejects a booking or cannot
// be reached. The wrapped text carries the relay's reason.
var ErrSubmissionFailed = errors.New("booking submission failed")

// SubmissionNotice is the blocking message shown to the visitor on failure
const SubmissionNotice = "Something went wrong while confirming your booking. Please try again or contact me directly."

const defaultRelayFailure = "relay reported failure"

// RelayRequest is the JSON body accepted by the form relay
type RelayRequest struct {
	AccessKey string `json:"access_key"`
	Subject   string `json:"subject"`
	Email     string `json:"email"`
	Name      string `json:"name"`
	FromName  string `json:"from_name"`
	Message   string `json:"message"`
}

// RelayResponse is the relay's JSON reply
type RelayResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// Submitter sends a completed booking to the relay
type Submitter interface {
	Submit(ctx context.Context, state *entity.BookingState) error
}

type RelayClient struct {
	httpClient *http.Client
	endpoint   string
	accessKey  string
	fromName   string
	log        *logrus.Logger
}

func NewRelayClient(cfg config.RelayConfig, log *logrus.Logger) *RelayClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &RelayClient{
		httpClient: &http.Client{Timeout: timeout},
		endpoint:   cfg.Endpoint,
		accessKey:  cfg.AccessKey,
		fromName:   cfg.FromName,
		log:        log,
	}
}

// Submit posts the booking once. Any transport error, undecodable reply or
// falsy success flag is reported as ErrSubmissionFailed.
func (c *RelayClient) Submit(ctx context.Context, state *entity.BookingState) error {
	payload, err := c.BuildRequest(state)
	if err != nil {
		return err
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal relay request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build relay request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Warnf("Relay request for session %s failed: %+v", state.SessionID, err)
		return fmt.Errorf("%w: %v", ErrSubmissionFailed, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%w: read relay response: %v", ErrSubmissionFailed, err)
	}

	var result RelayResponse
	if err := json.Unmarshal(raw, &result); err != nil {
		c.log.Warnf("Relay returned non-JSON response (status %d) for session %s", resp.StatusCode, state.SessionID)
		return fmt.Errorf("%w: unexpected relay response (status %d)", ErrSubmissionFailed, resp.StatusCode)
	}

	if !result.Success {
		reason := result.Message
		if reason == "" {
			reason = defaultRelayFailure
		}
		c.log.Warnf("Relay rejected session %s: %s", state.SessionID, reason)
		return fmt.Errorf("%w: %s", ErrSubmissionFailed, reason)
	}

	c.log.Infof("Relay accepted booking: session=%s, date=%s, time=%s", state.SessionID, state.Date, *state.Time)
	return nil
}

// BuildRequest composes the relay payload for a booking at the review step
func (c *RelayClient) BuildRequest(state *entity.BookingState) (*RelayRequest, error) {
	if state.Date == nil || state.Time == nil {
		return nil, errors.New("booking has no date or time selected")
	}

	return &RelayRequest{
		AccessKey: c.accessKey,
		Subject:   fmt.Sprintf("New Booking Request from %s", state.Details.Name),
		Email:     state.Details.Email,
		Name:      state.Details.Name,
		FromName:  c.fromName,
		Message:   ComposeMessage(state),
	}, nil
}

// ComposeMessage renders the plaintext body sent through the relay
func ComposeMessage(state *entity.BookingState) string {
	var b strings.Builder

	b.WriteString("New meeting request\n\n")
	fmt.Fprintf(&b, "Name: %s\n", state.Details.Name)
	fmt.Fprintf(&b, "Email: %s\n", state.Details.Email)
	fmt.Fprintf(&b, "Phone: %s\n", state.Details.PhoneOrNA())
	fmt.Fprintf(&b, "Company: %s\n\n", state.Details.CompanyOrNA())
	if state.Date != nil {
		fmt.Fprintf(&b, "Requested Date: %s\n", LongDate(*state.Date))
	}
	if state.Time != nil {
		fmt.Fprintf(&b, "Requested Time: %s\n", *state.Time)
	}
	fmt.Fprintf(&b, "Timezone: %s\n", state.Timezone)

	return b.String()
}
