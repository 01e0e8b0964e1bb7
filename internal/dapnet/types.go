// Package dapnet is a minimal client for the DAPNET paging network REST API.
//
// Only the two write operations the announcer needs are implemented: rubric
// news (broadcast to everyone subscribed to a rubric) and calls (pages to an
// explicit set of callsigns).
package dapnet

import (
	"errors"
	"fmt"
	"strings"
)

// MaxTextLen is the longest message text the network accepts.
const MaxTextLen = 80

var (
	ErrEmptyText      = errors.New("dapnet: empty text")
	ErrTextTooLong    = fmt.Errorf("dapnet: text longer than %d characters", MaxTextLen)
	ErrNoRecipients   = errors.New("dapnet: call has no recipients")
	ErrNoRubric       = errors.New("dapnet: news has no rubric")
	ErrNumberOutRange = errors.New("dapnet: news number out of range 1..10")
)

// News is a message posted to a rubric. Number selects one of the rubric's
// ten slots on receivers.
type News struct {
	Rubric string `json:"rubricName"`
	Text   string `json:"text"`
	Number int    `json:"number"`
}

// Call is a page addressed to individual callsigns via transmitter groups.
type Call struct {
	Text              string   `json:"text"`
	Recipients        []string `json:"callSignNames"`
	TransmitterGroups []string `json:"transmitterGroupNames"`
	Emergency         bool     `json:"emergency"`
}

// NewNews builds a validated News.
func NewNews(rubric string, number int, text string) (News, error) {
	n := News{Rubric: rubric, Number: number, Text: text}
	return n, n.Validate()
}

// NewCall builds a validated Call. The recipient and group slices are copied.
func NewCall(recipients, groups []string, text string) (Call, error) {
	c := Call{
		Text:              text,
		Recipients:        append([]string(nil), recipients...),
		TransmitterGroups: append([]string(nil), groups...),
	}
	return c, c.Validate()
}

func (n News) Validate() error {
	if strings.TrimSpace(n.Rubric) == "" {
		return ErrNoRubric
	}
	if n.Number < 1 || n.Number > 10 {
		return fmt.Errorf("%w: %d", ErrNumberOutRange, n.Number)
	}
	return validateText(n.Text)
}

func (c Call) Validate() error {
	if len(c.Recipients) == 0 {
		return ErrNoRecipients
	}
	return validateText(c.Text)
}

func validateText(text string) error {
	if strings.TrimSpace(text) == "" {
		return ErrEmptyText
	}
	if n := len([]rune(text)); n > MaxTextLen {
		return fmt.Errorf("%w (got %d)", ErrTextTooLong, n)
	}
	return nil
}
