// Package calendar renders portal events as iCalendar documents and
// Google Calendar links.
package calendar

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/mellanby-hall/portal/internal/portal"
)

const uidDomain = "mellanby.ui.edu.ng"

// timestamp folds a date ("2006-01-02") and a time ("15:04") into the
// iCalendar local form 20060102T150400.
func timestamp(date, clock string) string {
	return strings.ReplaceAll(date, "-", "") + "T" + strings.ReplaceAll(clock, ":", "") + "00"
}

// escapeText escapes the characters iCalendar TEXT values reserve.
func escapeText(s string) string {
	r := strings.NewReplacer("\\", "\\\\", ";", "\\;", ",", "\\,", "\n", "\\n")
	return r.Replace(s)
}

// ICS renders the event as a single-VEVENT iCalendar document.
func ICS(e portal.Event) string {
	lines := []string{
		"BEGIN:VCALENDAR",
		"VERSION:2.0",
		"PRODID:-//Mellanby E-Secretariat//EN",
		"BEGIN:VEVENT",
		fmt.Sprintf("UID:%s@%s", e.ID, uidDomain),
		"DTSTAMP:" + timestamp(e.Date, e.StartTime),
		"DTSTART:" + timestamp(e.Date, e.StartTime),
		"DTEND:" + timestamp(e.Date, e.EndTime),
		"SUMMARY:" + escapeText(e.Title),
		"DESCRIPTION:" + escapeText(e.Description),
		"LOCATION:" + escapeText(e.Location),
		"END:VEVENT",
		"END:VCALENDAR",
	}
	return strings.Join(lines, "\r\n")
}

// Filename returns the suggested download name for the event's ICS file.
func Filename(e portal.Event) string {
	return strings.Join(strings.Fields(e.Title), "_") + ".ics"
}

// GoogleURL returns a prefilled Google Calendar event-creation link.
func GoogleURL(e portal.Event) string {
	params := url.Values{
		"text":     {e.Title},
		"dates":    {timestamp(e.Date, e.StartTime) + "/" + timestamp(e.Date, e.EndTime)},
		"details":  {e.Description},
		"location": {e.Location},
	}
	return "https://calendar.google.com/calendar/render?action=TEMPLATE&" + params.Encode()
}
