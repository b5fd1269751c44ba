package dialogue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/dwizi/permit-tracker/internal/selection"
	"github.com/dwizi/permit-tracker/internal/session"
	"github.com/dwizi/permit-tracker/internal/store"
	"github.com/dwizi/permit-tracker/internal/tracking"
)

type PermitLookup interface {
	LookupPermit(ctx context.Context, permitID string) (tracking.PermitArea, error)
}

type Sender interface {
	Send(ctx context.Context, destination, text string) error
}

type TrackingStore interface {
	GetTrackingList(ctx context.Context, userID string) (tracking.List, error)
	UpsertMerge(ctx context.Context, userID, destination string, area tracking.PermitArea) (tracking.List, error)
}

type Option func(*Engine)

// WithClock replaces time.Now, which decides the year of "6/15" replies.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

type Engine struct {
	lookup   PermitLookup
	sender   Sender
	store    TrackingStore
	sessions *session.Store[Conversation]
	logger   *slog.Logger
	now      func() time.Time
}

func New(lookup PermitLookup, sender Sender, trackingStore TrackingStore, sessions session.Config, logger *slog.Logger, opts ...Option) *Engine {
	engine := &Engine{
		lookup: lookup,
		sender: sender,
		store:  trackingStore,
		sessions: session.New(sessions, func(userID string) Conversation {
			return Conversation{UserID: userID, State: StateIdle}
		}),
		logger: logger,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(engine)
	}
	return engine
}

// HandleMessage advances the user's conversation by one reply. Messages from
// the same user are handled one at a time. Failed replies are logged and not
// returned; the error is only set when the conversation could not be reached.
func (e *Engine) HandleMessage(ctx context.Context, event Event) error {
	if strings.TrimSpace(event.UserID) == "" {
		return fmt.Errorf("dialogue: user id is required")
	}
	return e.sessions.With(ctx, event.UserID, func(conversation *Conversation) error {
		before := conversation.State
		reply := e.step(ctx, conversation, event)
		e.logger.Debug("dialogue step",
			"user_id", event.UserID,
			"from_state", before.String(),
			"to_state", conversation.State.String(),
		)
		if strings.TrimSpace(reply) == "" {
			return nil
		}
		if err := e.sender.Send(ctx, event.Destination, reply); err != nil {
			e.logger.Warn("reply send failed", "user_id", event.UserID, "destination", event.Destination, "error", err)
		}
		return nil
	})
}

// Conversation returns a copy of the user's current conversation.
func (e *Engine) Conversation(ctx context.Context, userID string) (Conversation, error) {
	var snapshot Conversation
	err := e.sessions.With(ctx, userID, func(conversation *Conversation) error {
		snapshot = Conversation{
			UserID:  conversation.UserID,
			State:   conversation.State,
			Pending: conversation.Pending.Clone(),
		}
		return nil
	})
	return snapshot, err
}

func (e *Engine) step(ctx context.Context, conversation *Conversation, event Event) string {
	text := strings.TrimSpace(event.Text)
	command, argument := splitCommand(text)

	switch command {
	case "LIST":
		return e.listReply(ctx, event.UserID)
	case "CANCEL", "STOP":
		wasIdle := conversation.State == StateIdle
		conversation.reset()
		if wasIdle {
			return helpText
		}
		return cancelledText
	case "HELP":
		conversation.reset()
		return helpText
	case "ADD":
		return e.startFlow(ctx, conversation, argument)
	}

	switch conversation.State {
	case StateAwaitingAreaSelection:
		return e.selectAreas(conversation, text)
	case StateAwaitingSiteSelection:
		return e.selectSites(conversation, text)
	case StateAwaitingDateSelection:
		return e.selectDates(ctx, conversation, event, text)
	default:
		conversation.reset()
		return invalidCommandText
	}
}

func (e *Engine) listReply(ctx context.Context, userID string) string {
	list, err := e.store.GetTrackingList(ctx, userID)
	if errors.Is(err, store.ErrTrackingListNotFound) {
		return tracking.Summary(tracking.List{UserID: userID})
	}
	if err != nil {
		e.logger.Error("tracking list read failed", "user_id", userID, "error", err)
		return listFailedText
	}
	return tracking.Summary(list)
}

func (e *Engine) startFlow(ctx context.Context, conversation *Conversation, argument string) string {
	conversation.reset()
	permitID, ok := permitIDFromURL(argument)
	if !ok {
		return invalidCommandText
	}
	permit, err := e.lookup.LookupPermit(ctx, permitID)
	if err == nil && len(permit.StartingAreas) == 0 {
		err = fmt.Errorf("permit %s has no starting areas", permitID)
	}
	if err != nil {
		e.logger.Warn("permit lookup failed", "user_id", conversation.UserID, "permit_id", permitID, "error", err)
		return lookupFailedText
	}
	conversation.Pending = permit.Clone()
	conversation.State = StateAwaitingAreaSelection
	return areaPrompt(conversation.Pending)
}

func (e *Engine) selectAreas(conversation *Conversation, text string) string {
	count := len(conversation.Pending.StartingAreas)
	indices, err := selection.ParseIndexSelection(text, count)
	if err != nil {
		return fmt.Sprintf(invalidAreasText, count) + "\n\n" + areaPrompt(conversation.Pending)
	}
	conversation.Pending = tracking.FilterByAreaIndices(conversation.Pending, indices)
	conversation.State = StateAwaitingSiteSelection
	return sitePrompt(conversation.Pending)
}

func (e *Engine) selectSites(conversation *Conversation, text string) string {
	codes, err := selection.ParseSiteCodes(text)
	if err != nil {
		return invalidSitesText + "\n\n" + sitePrompt(conversation.Pending)
	}
	filtered := tracking.FilterBySiteCodes(conversation.Pending, codes)
	if filtered.SiteCount() == 0 {
		return invalidSitesText + "\n\n" + sitePrompt(conversation.Pending)
	}
	conversation.Pending = filtered
	conversation.State = StateAwaitingDateSelection
	return datePrompt(conversation.Pending)
}

func (e *Engine) selectDates(ctx context.Context, conversation *Conversation, event Event, text string) string {
	var (
		area      tracking.PermitArea
		datesText string
	)
	if strings.EqualFold(text, anyDateKeyword) {
		area = tracking.AnyDates(conversation.Pending)
		datesText = "any open date"
	} else {
		dates, err := selection.ParseDateList(text, e.now())
		if err != nil {
			return invalidDatesText
		}
		area = tracking.AddDates(conversation.Pending, dates)
		datesText = selection.FormatShortList(dates)
	}

	if _, err := e.store.UpsertMerge(ctx, event.UserID, event.Destination, area); err != nil {
		e.logger.Error("tracking list merge failed", "user_id", event.UserID, "permit_id", area.ID, "error", err)
		return saveFailedText
	}
	e.logger.Info("tracking list updated", "user_id", event.UserID, "permit_id", area.ID, "sites", area.SiteCount())
	reply := confirmation(area, datesText)
	conversation.reset()
	return reply
}

func splitCommand(text string) (string, string) {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return "", ""
	}
	command := strings.ToUpper(fields[0])
	argument := strings.TrimSpace(strings.TrimPrefix(text, fields[0]))
	return command, argument
}

// permitIDFromURL returns the last path segment of an absolute http(s) URL.
func permitIDFromURL(raw string) (string, bool) {
	candidate := strings.TrimSpace(selection.ExtractURLFromBracketedMessage(strings.TrimSpace(raw)))
	if candidate == "" {
		return "", false
	}
	parsed, err := url.Parse(candidate)
	if err != nil || !parsed.IsAbs() || parsed.Host == "" {
		return "", false
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", false
	}
	segments := strings.Split(strings.Trim(parsed.Path, "/"), "/")
	last := segments[len(segments)-1]
	if last == "" {
		return "", false
	}
	return last, true
}
