package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/shiva-1301/hospiico/internal/appointment"
	"github.com/shiva-1301/hospiico/internal/geo"
	"github.com/shiva-1301/hospiico/internal/llm"
	"github.com/shiva-1301/hospiico/internal/metrics"
	"github.com/shiva-1301/hospiico/internal/session"
)

const (
	maxTokens          = 350
	symptomTemperature = 0.1
	plainTemperature   = 0.3

	replyLocationRequired = "I need access to your location to find hospitals near you. Please enable location services or specify a city name (e.g., 'Hospital in Hyderabad')."
	replyNoneNearby       = "No hospitals found near your current location."
	replyNearby           = "Here are the hospitals closest to your location:"
	replyUpstreamFailed   = "Sorry, I'm having trouble responding right now. Please try again in a moment."
	replyEmpty            = "Sorry, I didn't get a response. Could you rephrase that?"
)

var ErrNoMessages = errors.New("messages must not be empty")

type ReplyType string

const (
	ReplyText               ReplyType = "text"
	ReplyHospitals          ReplyType = "hospitals"
	ReplySymptomExplanation ReplyType = "symptom_explanation"
)

type Request struct {
	Messages []llm.Message
	Language string
	// SessionID, when set, is preferred over the most recent symptom session
	// for "show hospitals" follow-ups.
	SessionID string
	Origin    *geo.Point
}

type Hospital = geo.Ranked[appointment.Clinic]

type Reply struct {
	Type      ReplyType
	Text      string
	Step      string
	SessionID string
	Hospitals []Hospital
	// Set for symptom explanations and session-based hospital lists.
	Specialty     string
	HospitalCount int
	Match         *SymptomMatch
}

type Options struct {
	Metrics *metrics.Metrics
	Logger  *zap.Logger
}

// Service answers /api/chat turns: place queries, follow-ups on a symptom
// session, symptom interpretation and plain conversation.
type Service struct {
	llm      llm.Client
	sessions session.Store
	repo     appointment.Repository
	metrics  *metrics.Metrics
	logger   *zap.Logger
}

func NewService(client llm.Client, sessions session.Store, repo appointment.Repository, opts Options) *Service {
	if client == nil {
		client = llm.Unconfigured{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		llm:      client,
		sessions: sessions,
		repo:     repo,
		metrics:  opts.Metrics,
		logger:   logger,
	}
}

// HandleChat answers the latest message. Completion failures degrade to a
// text reply; only llm.ErrNotConfigured and storage errors are returned.
func (s *Service) HandleChat(ctx context.Context, req Request) (Reply, error) {
	if len(req.Messages) == 0 {
		return Reply{}, ErrNoMessages
	}
	text := req.Messages[len(req.Messages)-1].Content

	var resumable *session.Session
	var lookupErr error
	c := Classify(text, func() bool {
		resumable, lookupErr = s.findResumable(ctx, req.SessionID)
		return resumable != nil
	})
	if lookupErr != nil {
		return Reply{}, lookupErr
	}

	var (
		reply Reply
		err   error
	)
	switch c.Intent {
	case IntentPlaceQuery:
		if c.NearMe {
			reply, err = s.nearby(ctx, req.Origin)
		} else {
			reply, err = s.citySearch(ctx, c.Place, req.Origin)
		}
	case IntentContinuation:
		reply, err = s.presentHospitals(ctx, resumable, req.Origin)
	case IntentSymptom:
		reply, err = s.interpretSymptom(ctx, text, req.Messages)
	default:
		reply, err = s.converse(ctx, req.Messages, req.Language)
	}
	if err != nil {
		return Reply{}, err
	}

	s.metrics.ObserveChat(c.Intent.String(), string(reply.Type))
	return reply, nil
}

func (s *Service) findResumable(ctx context.Context, sessionID string) (*session.Session, error) {
	if sessionID != "" {
		sess, err := s.sessions.Get(ctx, sessionID)
		if err != nil {
			return nil, fmt.Errorf("load session: %w", err)
		}
		if sess != nil && sess.HasSymptom() && !sess.Expired(time.Now()) {
			return sess, nil
		}
	}
	sess, err := s.sessions.GetMostRecentWithSymptom(ctx)
	if err != nil {
		return nil, fmt.Errorf("find recent session: %w", err)
	}
	return sess, nil
}

// rebook starts a new session carrying the symptom of a finished booking.
// The confirmed session stays untouched so its summary remains readable.
func (s *Service) rebook(ctx context.Context, done *session.Session) (*session.Session, error) {
	next, err := s.sessions.GetOrCreate(ctx, uuid.NewString())
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	if err := next.ExplainSymptom(*done.Clone().Symptom); err != nil {
		return nil, err
	}
	next.UserID = done.UserID
	s.logger.Debug("booking already confirmed, starting a new session",
		zap.String("session_id", done.ID), zap.String("new_session_id", next.ID))
	return next, nil
}

func (s *Service) nearby(ctx context.Context, origin *geo.Point) (Reply, error) {
	if origin == nil {
		return textReply(replyLocationRequired), nil
	}

	clinics, err := s.repo.ListClinics(ctx)
	if err != nil {
		return Reply{}, fmt.Errorf("list clinics: %w", err)
	}
	located := clinics[:0:0]
	for _, c := range clinics {
		if c.HasCoordinates() {
			located = append(located, c)
		}
	}
	if len(located) == 0 {
		return textReply(replyNoneNearby), nil
	}

	return Reply{
		Type:      ReplyHospitals,
		Text:      replyNearby,
		Step:      session.StepHospitalSelection.String(),
		Hospitals: rankClinics(located, origin),
	}, nil
}

func (s *Service) citySearch(ctx context.Context, place string, origin *geo.Point) (Reply, error) {
	clinics, err := s.repo.FindClinicsByCity(ctx, place)
	if err != nil {
		return Reply{}, fmt.Errorf("find clinics in %q: %w", place, err)
	}

	if len(clinics) == 0 {
		cities, err := s.repo.DistinctCities(ctx)
		if err != nil {
			return Reply{}, fmt.Errorf("list cities: %w", err)
		}
		msg := fmt.Sprintf("Sorry, couldn't find any hospitals in %s.", place)
		if suggestions := geo.SuggestCities(place, cities); len(suggestions) > 0 {
			msg += fmt.Sprintf(" Did you mean: %s?", strings.Join(suggestions, ", "))
		} else {
			msg += " Try searching for a different city."
		}
		return textReply(msg), nil
	}

	hospitals := rankClinics(clinics, origin)
	return Reply{
		Type:      ReplyHospitals,
		Text:      fmt.Sprintf("Found %d hospital(s) in %s:", len(hospitals), place),
		Step:      session.StepHospitalSelection.String(),
		Hospitals: hospitals,
	}, nil
}

// presentHospitals lists clinics for a session's specialization and moves the
// session to hospital selection. A session already past that step keeps its
// step; the list is still returned.
func (s *Service) presentHospitals(ctx context.Context, sess *session.Session, origin *geo.Point) (Reply, error) {
	if sess.Step == session.StepBookingConfirmed {
		next, err := s.rebook(ctx, sess)
		if err != nil {
			return Reply{}, err
		}
		sess = next
	}
	specialty := sess.Specialization()

	var (
		clinics []appointment.Clinic
		err     error
	)
	if specialty != "" {
		clinics, err = s.repo.FindClinicsBySpecialization(ctx, []string{specialty})
	} else {
		clinics, err = s.repo.ListClinics(ctx)
	}
	if err != nil {
		return Reply{}, fmt.Errorf("find clinics for session: %w", err)
	}

	switch err := sess.PresentHospitals(); {
	case err == nil:
		if err := s.sessions.Save(ctx, sess); err != nil {
			return Reply{}, fmt.Errorf("save session: %w", err)
		}
	case errors.Is(err, session.ErrStepOutOfOrder):
		s.logger.Debug("session already past hospital selection",
			zap.String("session_id", sess.ID), zap.Stringer("step", sess.Step))
	default:
		return Reply{}, err
	}

	if specialty == "" {
		specialty = GeneralMedicine
	}
	hospitals := rankClinics(clinics, origin)
	return Reply{
		Type:          ReplyHospitals,
		Text:          fmt.Sprintf("I recommend consulting a %s specialist. Here are %d hospital(s) that may help:", specialty, len(hospitals)),
		Step:          sess.Step.String(),
		SessionID:     sess.ID,
		Hospitals:     hospitals,
		Specialty:     specialty,
		HospitalCount: len(hospitals),
	}, nil
}

func (s *Service) interpretSymptom(ctx context.Context, text string, messages []llm.Message) (Reply, error) {
	resp, err := s.complete(ctx, "symptom", llm.Request{
		System:      symptomPrompt,
		Messages:    messages,
		MaxTokens:   maxTokens,
		Temperature: symptomTemperature,
		JSON:        true,
	})
	if err != nil {
		if errors.Is(err, llm.ErrNotConfigured) {
			return Reply{}, err
		}
		return textReply(replyUpstreamFailed), nil
	}

	match, err := ParseSymptomMatch(resp.Text)
	if err != nil {
		s.logger.Info("symptom reply was not a specialization match", zap.Error(err))
		return rawTextReply(resp.Text), nil
	}
	if match.Symptom == "" {
		match.Symptom = strings.TrimSpace(text)
	}

	sess, err := s.sessions.GetOrCreate(ctx, uuid.NewString())
	if err != nil {
		return Reply{}, fmt.Errorf("create session: %w", err)
	}
	err = sess.ExplainSymptom(session.SymptomContext{
		Symptom:         match.Symptom,
		Specialization:  match.Specializations[0],
		Specializations: match.Specializations,
	})
	if err != nil {
		return Reply{}, err
	}
	if err := s.sessions.Save(ctx, sess); err != nil {
		return Reply{}, fmt.Errorf("save session: %w", err)
	}

	count := 0
	clinics, err := s.repo.FindClinicsBySpecialization(ctx, match.Specializations)
	if err != nil {
		s.logger.Warn("count clinics for specializations", zap.Strings("specializations", match.Specializations), zap.Error(err))
	} else {
		count = min(len(clinics), geo.DefaultLimit)
	}

	return Reply{
		Type:          ReplySymptomExplanation,
		Text:          explanation(match),
		Step:          sess.Step.String(),
		SessionID:     sess.ID,
		Specialty:     strings.Join(match.Specializations, ", "),
		HospitalCount: count,
		Match:         &match,
	}, nil
}

func (s *Service) converse(ctx context.Context, messages []llm.Message, language string) (Reply, error) {
	resp, err := s.complete(ctx, "plain", llm.Request{
		System:      plainPrompt(language),
		Messages:    messages,
		MaxTokens:   maxTokens,
		Temperature: plainTemperature,
	})
	if err != nil {
		if errors.Is(err, llm.ErrNotConfigured) {
			return Reply{}, err
		}
		return textReply(replyUpstreamFailed), nil
	}
	return rawTextReply(resp.Text), nil
}

func (s *Service) complete(ctx context.Context, purpose string, req llm.Request) (llm.Response, error) {
	start := time.Now()
	resp, err := s.llm.Complete(ctx, req)
	s.metrics.ObserveLLM(purpose, time.Since(start).Seconds(), err)

	if err != nil && !errors.Is(err, llm.ErrNotConfigured) {
		s.logger.Warn("completion failed", zap.String("purpose", purpose), zap.Error(err))
	}
	return resp, err
}

func rankClinics(clinics []appointment.Clinic, origin *geo.Point) []Hospital {
	candidates := make([]geo.Candidate[appointment.Clinic], len(clinics))
	for i, c := range clinics {
		candidates[i].Item = c
		if c.HasCoordinates() {
			candidates[i].Position = &geo.Point{Lat: *c.Latitude, Lng: *c.Longitude}
		}
	}
	return geo.Rank(candidates, origin, geo.DefaultLimit)
}

func textReply(msg string) Reply {
	return Reply{Type: ReplyText, Text: msg}
}

func rawTextReply(raw string) Reply {
	if strings.TrimSpace(raw) == "" {
		return textReply(replyEmpty)
	}
	return textReply(raw)
}
