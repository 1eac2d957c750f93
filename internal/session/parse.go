package session

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	apperrors "github.com/edgard/scoutbot/internal/errors"
)

// statDateLayouts are the accepted date formats, day first.
var statDateLayouts = []string{
	"02-01-2006",
	"2-1-2006",
	"02/01/2006",
	"2/1/2006",
	"02.01.2006",
	"2.1.2006",
	"2006-01-02",
	"2 January 2006",
	"2 Jan 2006",
	"January 2 2006",
	"Jan 2 2006",
	"January 2, 2006",
}

var tokenPattern = regexp.MustCompile(`^[0-9]+:[A-Za-z0-9_-]+$`)

func parseConfirm(text string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(text)) {
	case "yes":
		return true, nil
	case "no":
		return false, nil
	}
	return false, apperrors.Newf(apperrors.CodeParse, "expected yes or no, got %q", text)
}

// inviteRequest is a parsed "<limit>,<destination>,<yes|no>" reply.
type inviteRequest struct {
	Limit       int
	Destination string
	Force       bool
}

// parseInviteRequest splits on the first and last comma, so destination names
// may contain commas.
func parseInviteRequest(text string) (inviteRequest, error) {
	first := strings.Index(text, ",")
	last := strings.LastIndex(text, ",")
	if first < 0 || first == last {
		return inviteRequest{}, apperrors.Newf(apperrors.CodeParse, "expected 3 comma-separated elements")
	}

	limitText := strings.TrimSpace(text[:first])
	limit, err := strconv.Atoi(limitText)
	if err != nil || limit <= 0 {
		return inviteRequest{}, apperrors.NewParseError(fmt.Sprintf("limit %q is not a positive number", limitText), err)
	}

	dest := strings.TrimSpace(text[first+1 : last])
	if dest == "" {
		return inviteRequest{}, apperrors.Newf(apperrors.CodeParse, "destination is empty")
	}

	force, err := parseConfirm(text[last+1:])
	if err != nil {
		return inviteRequest{}, apperrors.Newf(apperrors.CodeParse, "force flag must be yes or no, got %q", strings.TrimSpace(text[last+1:]))
	}

	return inviteRequest{Limit: limit, Destination: dest, Force: force}, nil
}

// parseStatDate returns the inclusive end of the requested day. "today"
// selects the current day. Dates after today are rejected.
func parseStatDate(text string, now time.Time) (time.Time, error) {
	text = strings.TrimSpace(text)
	loc := now.Location()

	var day time.Time
	if strings.EqualFold(text, "today") {
		day = now
	} else {
		var parsed bool
		for _, layout := range statDateLayouts {
			t, err := time.ParseInLocation(layout, text, loc)
			if err == nil {
				day, parsed = t, true
				break
			}
		}
		if !parsed {
			return time.Time{}, apperrors.Newf(apperrors.CodeParse, "%q is not a valid date", text)
		}
	}

	y, m, d := day.Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, loc)
	if start.After(now) {
		return time.Time{}, apperrors.Newf(apperrors.CodeParse, "%s is in the future", start.Format("02-01-2006"))
	}
	return start.AddDate(0, 0, 1).Add(-time.Nanosecond), nil
}

func validateToken(text string) error {
	if !tokenPattern.MatchString(strings.TrimSpace(text)) {
		return apperrors.Newf(apperrors.CodeParse, "token must look like <digits>:<secret>")
	}
	return nil
}
