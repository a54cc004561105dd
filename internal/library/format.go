package library

import (
	"time"
	"unicode/utf8"
)

const (
	// DefaultLoanDays is how long a book is lent when no due date is given
	DefaultLoanDays = 14

	dateLayout     = "Jan 02, 2006"
	dateTimeLayout = "Jan 02, 2006 15:04"
	apiDateLayout  = "2006-01-02"
)

// ParseTime accepts the date and datetime formats the API returns
func ParseTime(s string) (time.Time, bool) {
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05.999999", apiDateLayout} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// FormatDate renders an API date as "Jan 02, 2006", or "N/A" when empty
func FormatDate(s string) string {
	return formatWith(s, dateLayout)
}

// FormatDateTime renders an API datetime as "Jan 02, 2006 15:04", or "N/A" when empty
func FormatDateTime(s string) string {
	return formatWith(s, dateTimeLayout)
}

func formatWith(s, layout string) string {
	if s == "" {
		return "N/A"
	}
	t, ok := ParseTime(s)
	if !ok {
		return s
	}
	return t.Format(layout)
}

// DaysUntil returns the number of whole days from now until date.
// Negative values mean the date has passed.
func DaysUntil(date string, now time.Time) (int, bool) {
	t, ok := ParseTime(date)
	if !ok {
		return 0, false
	}
	// Compare calendar days in the date's own zone
	return int(startOfDay(t).Sub(startOfDay(now.In(t.Location()))).Hours() / 24), true
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DefaultDueDate is the due date the circulation desk proposes for a new loan
func DefaultDueDate(now time.Time) string {
	return now.AddDate(0, 0, DefaultLoanDays).Format(apiDateLayout)
}

// APIDate formats t the way the API expects dates in request bodies
func APIDate(t time.Time) string {
	return t.Format(apiDateLayout)
}

// Badge is a display label with a tone used to colour it
type Badge struct {
	Text string
	Tone string
}

const (
	ToneSuccess   = "success"
	ToneWarning   = "warning"
	ToneInfo      = "info"
	ToneDanger    = "danger"
	ToneSecondary = "secondary"
)

var bookStatusBadges = map[string]Badge{
	"available":   {"Available", ToneSuccess},
	"issued":      {"Issued", ToneWarning},
	"reserved":    {"Reserved", ToneInfo},
	"maintenance": {"Maintenance", ToneDanger},
	"lost":        {"Lost", ToneDanger},
}

var transactionStatusBadges = map[string]Badge{
	"issued":   {"Issued", ToneInfo},
	"returned": {"Returned", ToneSuccess},
	"overdue":  {"Overdue", ToneDanger},
	"lost":     {"Lost", ToneDanger},
}

var reservationStatusBadges = map[string]Badge{
	"pending":   {"Pending", ToneWarning},
	"fulfilled": {"Fulfilled", ToneSuccess},
	"cancelled": {"Cancelled", ToneSecondary},
	"expired":   {"Expired", ToneDanger},
}

var userTypeBadges = map[string]Badge{
	"staff":    {"Staff", ToneDanger},
	"student":  {"Student", ToneInfo},
	"external": {"External", ToneWarning},
	"faculty":  {"Faculty", ToneSuccess},
}

func lookupBadge(table map[string]Badge, value string) Badge {
	if b, ok := table[value]; ok {
		return b
	}
	return Badge{Text: value, Tone: ToneSecondary}
}

func BookStatusBadge(status string) Badge {
	return lookupBadge(bookStatusBadges, status)
}

func TransactionStatusBadge(status string) Badge {
	return lookupBadge(transactionStatusBadges, status)
}

func ReservationStatusBadge(status string) Badge {
	return lookupBadge(reservationStatusBadges, status)
}

func UserTypeBadge(userType string) Badge {
	return lookupBadge(userTypeBadges, userType)
}

// Truncate shortens text to maxLen runes, appending "..." when it was cut
func Truncate(text string, maxLen int) string {
	maxLen = max(maxLen, 0)
	if utf8.RuneCountInString(text) <= maxLen {
		return text
	}
	runes := []rune(text)
	return string(runes[:maxLen]) + "..."
}
