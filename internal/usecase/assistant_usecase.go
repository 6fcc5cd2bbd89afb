package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"portfolio-booking/internal/delivery/dto"

	"github.com/sirupsen/logrus"
)

var ErrEmptyMessage = errors.New("message is empty")

// WidgetBooking tells the client to open the booking flow inline
const WidgetBooking = "booking"

// AssistantTopic is one entry of the keyword table. A topic matches when the
// lower-cased message contains any of its keywords.
type AssistantTopic struct {
	Name     string
	Keywords []string
	Reply    string
	Widget   string
}

type AssistantUsecase interface {
	Reply(ctx context.Context, req *dto.AssistantMessageRequest) (*dto.AssistantReplyResponse, error)
}

type assistantUsecase struct {
	log      *logrus.Logger
	topics   []AssistantTopic
	fallback string
}

func NewAssistantUsecase(log *logrus.Logger, topics []AssistantTopic, fallback string) AssistantUsecase {
	return &assistantUsecase{
		log:      log,
		topics:   topics,
		fallback: fallback,
	}
}

// DefaultAssistantTopics builds the stock table for the site owner. Booking
// intent is checked first so that "book a call" is never answered as a
// greeting.
func DefaultAssistantTopics(ownerName, ownerEmail string) ([]AssistantTopic, string) {
	topics := []AssistantTopic{
		{
			Name:     "booking",
			Keywords: []string{"book", "booking", "meeting", "schedule", "appointment", "calendar", "call"},
			Reply:    fmt.Sprintf("I can certainly help you schedule a meeting with %s. Please select a preferred date below:", ownerName),
			Widget:   WidgetBooking,
		},
		{
			Name:     "contact",
			Keywords: []string{"contact", "email", "phone", "reach", "connect", "get in touch", "linkedin"},
			Reply:    fmt.Sprintf("You can reach %s by email at %s.", ownerName, ownerEmail),
		},
		{
			Name:     "availability",
			Keywords: []string{"available", "hire", "job", "opportunity", "open to"},
			Reply:    fmt.Sprintf("%s is open to new opportunities. Feel free to reach out at %s.", ownerName, ownerEmail),
		},
		{
			Name:     "resume",
			Keywords: []string{"resume", "cv", "download", "pdf"},
			Reply:    fmt.Sprintf("The resume of %s can be downloaded from the resume section of this site.", ownerName),
		},
		{
			Name:     "skills",
			Keywords: []string{"skills", "expertise", "good at", "abilities", "competencies"},
			Reply:    fmt.Sprintf("The skills section lists the platforms, compliance areas and tooling %s works with.", ownerName),
		},
		{
			Name:     "experience",
			Keywords: []string{"experience", "background", "career", "worked", "history"},
			Reply:    fmt.Sprintf("The experience timeline on this site walks through the career of %s role by role.", ownerName),
		},
		{
			Name:     "thanks",
			Keywords: []string{"thank", "thanks", "appreciate"},
			Reply:    fmt.Sprintf("You're welcome! If you have more questions about %s, feel free to ask.", ownerName),
		},
		{
			Name:     "greeting",
			Keywords: []string{"hello", "hey", "hi", "good morning", "good afternoon", "good evening"},
			Reply:    fmt.Sprintf("Hello! I'm the assistant of %s. I can help with experience, skills, contact details or booking a meeting.", ownerName),
		},
	}

	fallback := fmt.Sprintf("I'm focused on the professional profile of %s. Ask about experience, skills, contact details, the resume or booking a meeting.", ownerName)
	return topics, fallback
}

// Reply answers with the first matching topic, or the fallback text
func (u *assistantUsecase) Reply(ctx context.Context, req *dto.AssistantMessageRequest) (*dto.AssistantReplyResponse, error) {
	q := strings.ToLower(strings.TrimSpace(req.Message))
	if q == "" {
		return nil, ErrEmptyMessage
	}

	for _, topic := range u.topics {
		if matchesAny(q, topic.Keywords) {
			u.log.Debugf("Assistant matched topic %s", topic.Name)
			return &dto.AssistantReplyResponse{
				Topic:  topic.Name,
				Text:   topic.Reply,
				Widget: topic.Widget,
			}, nil
		}
	}

	return &dto.AssistantReplyResponse{Topic: "default", Text: u.fallback}, nil
}

func matchesAny(text string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(text, k) {
			return true
		}
	}
	return false
}
