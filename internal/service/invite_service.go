package service

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"portfolio-booking/config"
	"portfolio-booking/internal/domain/entity"

	"github.com/google/uuid"
)

// InviteContentType is the MIME type the invite is served with
const InviteContentType = "text/calendar; charset=utf-8"

// MeetingLength is the duration of every booked slot
const MeetingLength = 30 * time.Minute

const icsTimestampLayout = "20060102T150405Z"

var ErrInvalidSlotTime = errors.New("invalid slot time")

// Invite is a rendered calendar-interchange document
type Invite struct {
	UID      string
	Start    time.Time
	End      time.Time
	FileName string
	Body     []byte
}

// InviteService renders the downloadable .ics file of a completed booking
type InviteService struct {
	productID  string
	hostDomain string
	summary    string
	location   string
	fileName   string
	now        func() time.Time
	newID      func() string
}

func NewInviteService(cfg config.CalendarConfig) *InviteService {
	return &InviteService{
		productID:  cfg.ProductID,
		hostDomain: cfg.HostDomain,
		summary:    cfg.Summary,
		location:   cfg.Location,
		fileName:   cfg.FileName,
		now:        time.Now,
		newID:      uuid.NewString,
	}
}

// Build renders the invite. Only date, time, details and timezone are read
// from state, so repeated calls differ in UID and DTSTAMP only.
func (s *InviteService) Build(state *entity.BookingState, loc *time.Location) (*Invite, error) {
	if state.Date == nil || state.Time == nil {
		return nil, errors.New("booking has no date or time selected")
	}

	start, err := SlotStart(*state.Date, *state.Time, loc)
	if err != nil {
		return nil, err
	}
	end := start.Add(MeetingLength)
	uid := fmt.Sprintf("%s@%s", s.newID(), s.hostDomain)

	lines := []string{
		"BEGIN:VCALENDAR",
		"VERSION:2.0",
		fmt.Sprintf("PRODID:-//%s//Booking//EN", s.productID),
		"BEGIN:VEVENT",
		"UID:" + uid,
		"DTSTAMP:" + icsTimestamp(s.now()),
		"DTSTART:" + icsTimestamp(start),
		"DTEND:" + icsTimestamp(end),
		"SUMMARY:" + escapeText(s.summary),
		"DESCRIPTION:" + escapeText(describe(state.Details)),
		"LOCATION:" + escapeText(s.location),
		"STATUS:CONFIRMED",
		"END:VEVENT",
		"END:VCALENDAR",
	}

	return &Invite{
		UID:      uid,
		Start:    start,
		End:      end,
		FileName: s.fileName,
		Body:     []byte(strings.Join(lines, "\r\n") + "\r\n"),
	}, nil
}

// SlotStart combines a date with a 12-hour slot string ("02:00 PM") into an
// instant in loc.
func SlotStart(date entity.CalendarDate, slot string, loc *time.Location) (time.Time, error) {
	hour, minute, err := ParseSlot(slot)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(date.Year, date.Month, date.Day, hour, minute, 0, 0, loc), nil
}

// ParseSlot converts "hh:mm AM|PM" into 24-hour hour and minute. Hour 12 maps
// to 0 before the PM offset, so "12:00 PM" is noon and "12:00 AM" midnight.
func ParseSlot(slot string) (int, int, error) {
	clock, meridiem, ok := strings.Cut(strings.TrimSpace(slot), " ")
	if !ok {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidSlotTime, slot)
	}
	hh, mm, ok := strings.Cut(clock, ":")
	if !ok {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidSlotTime, slot)
	}

	hour, err := strconv.Atoi(hh)
	if err != nil || hour < 1 || hour > 12 {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidSlotTime, slot)
	}
	minute, err := strconv.Atoi(mm)
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidSlotTime, slot)
	}

	if hour == 12 {
		hour = 0
	}
	switch strings.ToUpper(meridiem) {
	case "AM":
	case "PM":
		hour += 12
	default:
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidSlotTime, slot)
	}

	return hour, minute, nil
}

func describe(d entity.ContactDetails) string {
	return fmt.Sprintf("Meeting with %s\nPhone: %s\nEmail: %s", d.Name, d.PhoneOrNA(), d.Email)
}

func icsTimestamp(t time.Time) string {
	return t.UTC().Format(icsTimestampLayout)
}

var textEscaper = strings.NewReplacer(
	`\`, `\\`,
	";", `\;`,
	",", `\,`,
	"\r\n", `\n`,
	"\n", `\n`,
)

// escapeText applies RFC 5545 TEXT escaping
func escapeText(s string) string {
	return textEscaper.Replace(s)
}
