// Package announce turns schedule events into paging payloads.
package announce

import (
	"errors"
	"fmt"
	"strings"

	"emfpager/internal/dapnet"
	"emfpager/internal/schedule"
	"emfpager/internal/venue"
	"emfpager/pkg/logx"
)

// Target is the kind of payload a notification carries. It doubles as the
// metric label.
type Target string

const (
	TargetRubric Target = "rubric"
	TargetCall   Target = "call"
)

// DefaultTransmitterGroups is used for calls when none are configured.
var DefaultTransmitterGroups = []string{"uk-all"}

var ErrInvalidMode = errors.New("announce: invalid mode")

// Notification is a validated payload ready for delivery. Exactly one of
// News and Call is set, matching Kind.
type Notification struct {
	Kind Target
	News *dapnet.News
	Call *dapnet.Call
}

// Text returns the message text regardless of kind.
func (n Notification) Text() string {
	switch {
	case n.News != nil:
		return n.News.Text
	case n.Call != nil:
		return n.Call.Text
	}
	return ""
}

// Mode selects how events are announced.
type Mode struct {
	Kind Target
	// Rubric is the rubric name used in rubric mode.
	Rubric string
	// Recipients and TransmitterGroups are used in call mode.
	Recipients        []string
	TransmitterGroups []string
}

// Validate reports whether m can produce notifications.
func (m Mode) Validate() error {
	switch m.Kind {
	case TargetRubric:
		if strings.TrimSpace(m.Rubric) == "" {
			return fmt.Errorf("%w: rubric mode needs a rubric name", ErrInvalidMode)
		}
	case TargetCall:
		if len(m.Recipients) == 0 {
			return fmt.Errorf("%w: call mode needs at least one recipient", ErrInvalidMode)
		}
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidMode, m.Kind)
	}
	return nil
}

// Translator builds notifications from events. Safe for concurrent use.
type Translator struct {
	mode    Mode
	catalog *venue.Catalog
	log     logx.Logger
}

func NewTranslator(mode Mode, catalog *venue.Catalog, log logx.Logger) (*Translator, error) {
	if err := mode.Validate(); err != nil {
		return nil, err
	}
	if catalog == nil {
		catalog = venue.Default()
	}
	if mode.Kind == TargetCall && len(mode.TransmitterGroups) == 0 {
		mode.TransmitterGroups = DefaultTransmitterGroups
	}
	mode.Recipients = append([]string(nil), mode.Recipients...)
	mode.TransmitterGroups = append([]string(nil), mode.TransmitterGroups...)
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Translator{mode: mode, catalog: catalog, log: log}, nil
}

// Mode returns the translator's mode.
func (t *Translator) Mode() Mode { return t.mode }

// Translate builds the notification for ev. It returns false when the payload
// fails validation; the failure is logged and the event should be dropped.
func (t *Translator) Translate(ev schedule.Event) (Notification, bool) {
	entry := t.catalog.Resolve(ev.Venue)
	text := entry.ShortName + ": " + ev.Title

	var (
		n   Notification
		err error
	)
	switch t.mode.Kind {
	case TargetRubric:
		var news dapnet.News
		news, err = dapnet.NewNews(t.mode.Rubric, entry.Channel, text)
		n = Notification{Kind: TargetRubric, News: &news}
	case TargetCall:
		var call dapnet.Call
		call, err = dapnet.NewCall(t.mode.Recipients, t.mode.TransmitterGroups, text)
		n = Notification{Kind: TargetCall, Call: &call}
	}
	if err != nil {
		t.log.Error("cannot build notification; event dropped",
			logx.Int("event_id", ev.ID),
			logx.String("venue", ev.Venue),
			logx.String("title", ev.Title),
			logx.String("target", string(t.mode.Kind)),
			logx.Err(err),
		)
		return Notification{}, false
	}
	return n, true
}
