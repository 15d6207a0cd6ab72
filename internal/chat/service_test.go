package chat

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/shiva-1301/hospiico/internal/appointment"
	"github.com/shiva-1301/hospiico/internal/geo"
	"github.com/shiva-1301/hospiico/internal/llm"
	"github.com/shiva-1301/hospiico/internal/metrics"
	"github.com/shiva-1301/hospiico/internal/session"
)

type stubLLM struct {
	mu       sync.Mutex
	text     string
	err      error
	requests []llm.Request
}

func (s *stubLLM) Complete(_ context.Context, req llm.Request) (llm.Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, req)
	if s.err != nil {
		return llm.Response{}, s.err
	}
	return llm.Response{Text: s.text, Provider: "stub"}, nil
}

func (s *stubLLM) last(t *testing.T) llm.Request {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	require.NotEmpty(t, s.requests)
	return s.requests[len(s.requests)-1]
}

func ptr[T any](v T) *T { return &v }

type fixture struct {
	svc      *Service
	llm      *stubLLM
	sessions *session.MemoryStore
	repo     *appointment.MemoryRepository
	metrics  *metrics.Metrics
}

func newFixture(t *testing.T, client llm.Client) fixture {
	t.Helper()
	repo := appointment.NewMemoryRepository()
	ctx := context.Background()

	clinics := []appointment.Clinic{
		{ID: uuid.New(), Name: "Care Heart Institute", City: "Hyderabad", Rating: 4.6,
			Latitude: ptr(17.4065), Longitude: ptr(78.4772), Specializations: []string{"Cardiology", "General Medicine"}},
		{ID: uuid.New(), Name: "Banjara Skin Clinic", City: "Hyderabad", Rating: 4.1,
			Latitude: ptr(17.4156), Longitude: ptr(78.4347), Specializations: []string{"Dermatology"}},
		{ID: uuid.New(), Name: "Pune Ortho Centre", City: "Pune", Rating: 4.3,
			Latitude: ptr(18.5204), Longitude: ptr(73.8567), Specializations: []string{"Orthopedics", "Cardiology"}},
		{ID: uuid.New(), Name: "Unmapped Nursing Home", City: "Pune", Rating: 3.9,
			Specializations: []string{"General Medicine"}},
	}
	for _, c := range clinics {
		require.NoError(t, repo.SaveClinic(ctx, c))
	}

	stub, _ := client.(*stubLLM)
	store := session.NewMemoryStore(30*time.Minute, nil)
	m := metrics.New(prometheus.NewRegistry())
	return fixture{
		svc:      NewService(client, store, repo, Options{Metrics: m, Logger: zap.NewNop()}),
		llm:      stub,
		sessions: store,
		repo:     repo,
		metrics:  m,
	}
}

func userSays(text string) []llm.Message {
	return []llm.Message{{Role: llm.RoleUser, Content: text}}
}

func hospitalNames(hs []Hospital) []string {
	names := make([]string, len(hs))
	for i, h := range hs {
		names[i] = h.Item.Name
	}
	return names
}

func TestHandleChatRejectsEmptyConversation(t *testing.T) {
	f := newFixture(t, &stubLLM{})
	_, err := f.svc.HandleChat(context.Background(), Request{})
	require.ErrorIs(t, err, ErrNoMessages)
}

func TestCitySearch(t *testing.T) {
	f := newFixture(t, llm.Unconfigured{})

	reply, err := f.svc.HandleChat(context.Background(), Request{Messages: userSays("hospitals in hyderabad")})
	require.NoError(t, err)

	assert.Equal(t, ReplyHospitals, reply.Type)
	assert.Equal(t, "Found 2 hospital(s) in hyderabad:", reply.Text)
	assert.Equal(t, "hospital_selection", reply.Step)
	assert.Equal(t, []string{"Care Heart Institute", "Banjara Skin Clinic"}, hospitalNames(reply.Hospitals))
	assert.Nil(t, reply.Hospitals[0].Distance)
}

func TestCitySearchSuggestsCities(t *testing.T) {
	f := newFixture(t, llm.Unconfigured{})

	reply, err := f.svc.HandleChat(context.Background(), Request{Messages: userSays("Hospitals in Hyderbad")})
	require.NoError(t, err)
	assert.Equal(t, ReplyText, reply.Type)
	assert.Equal(t, "Sorry, couldn't find any hospitals in Hyderbad. Did you mean: Hyderabad?", reply.Text)

	reply, err = f.svc.HandleChat(context.Background(), Request{Messages: userSays("clinics in Timbuktu")})
	require.NoError(t, err)
	assert.Equal(t, "Sorry, couldn't find any hospitals in Timbuktu. Try searching for a different city.", reply.Text)
}

func TestNearMe(t *testing.T) {
	f := newFixture(t, llm.Unconfigured{})
	ctx := context.Background()

	reply, err := f.svc.HandleChat(ctx, Request{Messages: userSays("hospitals near me")})
	require.NoError(t, err)
	assert.Equal(t, ReplyText, reply.Type)
	assert.Equal(t, replyLocationRequired, reply.Text)

	pune := &geo.Point{Lat: 18.53, Lng: 73.85}
	reply, err = f.svc.HandleChat(ctx, Request{Messages: userSays("hospitals near me"), Origin: pune})
	require.NoError(t, err)
	assert.Equal(t, ReplyHospitals, reply.Type)
	assert.Equal(t, replyNearby, reply.Text)

	names := hospitalNames(reply.Hospitals)
	assert.Equal(t, "Pune Ortho Centre", names[0])
	assert.NotContains(t, names, "Unmapped Nursing Home")
	require.NotNil(t, reply.Hospitals[0].Distance)
	assert.Less(t, *reply.Hospitals[0].Distance, 5.0)
	require.NotNil(t, reply.Hospitals[0].TravelMinutes)
}

func TestNearMeWithoutLocatedClinics(t *testing.T) {
	repo := appointment.NewMemoryRepository()
	require.NoError(t, repo.SaveClinic(context.Background(), appointment.Clinic{ID: uuid.New(), Name: "Somewhere", City: "Goa"}))
	svc := NewService(nil, session.NewMemoryStore(time.Minute, nil), repo, Options{})

	reply, err := svc.HandleChat(context.Background(), Request{
		Messages: userSays("clinics near me"),
		Origin:   &geo.Point{Lat: 15.5, Lng: 73.8},
	})
	require.NoError(t, err)
	assert.Equal(t, replyNoneNearby, reply.Text)
}

const chestPainJSON = `Sure. {"type":"specialization_match","symptom":"chest pain","inferred_issue":"muscle strain or a heart-related issue",` +
	`"specializations":["Cardiology","general medicine"],"confidence":"medium","disclaimer":"Not a diagnosis."}`

func TestSymptomThenShowHospitals(t *testing.T) {
	stub := &stubLLM{text: chestPainJSON}
	f := newFixture(t, stub)
	ctx := context.Background()

	reply, err := f.svc.HandleChat(ctx, Request{Messages: userSays("I have chest pain since morning")})
	require.NoError(t, err)

	assert.Equal(t, ReplySymptomExplanation, reply.Type)
	assert.Equal(t, "symptom_explanation", reply.Step)
	assert.Equal(t, "Cardiology, General Medicine", reply.Specialty)
	assert.Equal(t, 3, reply.HospitalCount)
	assert.Contains(t, reply.Text, "Based on your symptoms (chest pain)")
	require.NotNil(t, reply.Match)
	assert.Equal(t, "Not a diagnosis.", reply.Match.Disclaimer)
	require.NotEmpty(t, reply.SessionID)

	req := stub.last(t)
	assert.True(t, req.JSON)
	assert.InDelta(t, 0.1, req.Temperature, 1e-6)
	assert.Equal(t, 350, req.MaxTokens)
	assert.Equal(t, symptomPrompt, req.System)

	sess, err := f.sessions.Get(ctx, reply.SessionID)
	require.NoError(t, err)
	require.NotNil(t, sess)
	assert.Equal(t, session.StepSymptomExplanation, sess.Step)
	assert.Equal(t, "Cardiology", sess.Specialization())

	follow, err := f.svc.HandleChat(ctx, Request{
		Messages: append(userSays("I have chest pain since morning"), llm.Message{Role: llm.RoleUser, Content: "yes show hospitals"}),
		Origin:   &geo.Point{Lat: 17.41, Lng: 78.47},
	})
	require.NoError(t, err)
	assert.Equal(t, ReplyHospitals, follow.Type)
	assert.Equal(t, "hospital_selection", follow.Step)
	assert.Equal(t, reply.SessionID, follow.SessionID)
	assert.Equal(t, "I recommend consulting a Cardiology specialist. Here are 2 hospital(s) that may help:", follow.Text)
	assert.Equal(t, []string{"Care Heart Institute", "Pune Ortho Centre"}, hospitalNames(follow.Hospitals))
	assert.Len(t, stub.requests, 1, "follow-up must not call the completion service")

	sess, err = f.sessions.Get(ctx, reply.SessionID)
	require.NoError(t, err)
	assert.Equal(t, session.StepHospitalSelection, sess.Step)

}

func TestShowHospitalsKeepsLaterStep(t *testing.T) {
	f := newFixture(t, &stubLLM{})
	ctx := context.Background()

	sess, err := f.sessions.GetOrCreate(ctx, "s-late")
	require.NoError(t, err)
	require.NoError(t, sess.ExplainSymptom(session.SymptomContext{Symptom: "rash", Specialization: "Dermatology"}))
	require.NoError(t, sess.SelectClinic(session.Choice{ID: uuid.New(), Name: "Banjara Skin Clinic"}))
	require.NoError(t, f.sessions.Save(ctx, sess))

	reply, err := f.svc.HandleChat(ctx, Request{Messages: userSays("show hospitals again"), SessionID: "s-late"})
	require.NoError(t, err)
	assert.Equal(t, ReplyHospitals, reply.Type)
	assert.Equal(t, "doctor_selection", reply.Step)
	assert.Equal(t, []string{"Banjara Skin Clinic"}, hospitalNames(reply.Hospitals))
}

func confirmedSession(t *testing.T, f fixture, id string) *session.Session {
	t.Helper()
	ctx := context.Background()

	sess, err := f.sessions.GetOrCreate(ctx, id)
	require.NoError(t, err)
	sess.UserID = "user-7"
	require.NoError(t, sess.ExplainSymptom(session.SymptomContext{
		Symptom: "chest pain", Specialization: "Cardiology", Specializations: []string{"Cardiology", "General Medicine"},
	}))
	require.NoError(t, sess.PresentHospitals())
	require.NoError(t, sess.SelectClinic(session.Choice{ID: uuid.New(), Name: "Care Heart Institute"}))
	require.NoError(t, sess.SelectDoctor(session.Choice{ID: uuid.New(), Name: "Dr. Rao"}))
	require.NoError(t, sess.SelectDate("2030-03-04"))
	require.NoError(t, sess.SelectTime("10:30"))
	require.NoError(t, sess.Confirm(session.PatientDetails{Name: "Asha"}, uuid.NewString()))
	require.NoError(t, f.sessions.Save(ctx, sess))
	return sess
}

func TestBookAnotherAfterConfirmation(t *testing.T) {
	tests := []struct {
		name      string
		sessionID string
	}{
		{name: "most recent session", sessionID: ""},
		{name: "explicit session id", sessionID: "s-done"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t, &stubLLM{})
			ctx := context.Background()
			done := confirmedSession(t, f, "s-done")

			reply, err := f.svc.HandleChat(ctx, Request{
				Messages:  userSays("I want to book another appointment"),
				SessionID: tc.sessionID,
			})
			require.NoError(t, err)
			assert.Equal(t, ReplyHospitals, reply.Type)
			assert.Equal(t, "hospital_selection", reply.Step)
			assert.Equal(t, "Cardiology", reply.Specialty)
			require.NotEmpty(t, reply.SessionID)
			assert.NotEqual(t, done.ID, reply.SessionID)

			next, err := f.sessions.Get(ctx, reply.SessionID)
			require.NoError(t, err)
			require.NotNil(t, next)
			assert.Equal(t, session.StepHospitalSelection, next.Step)
			assert.Equal(t, "user-7", next.UserID)
			assert.Equal(t, "chest pain", next.Symptom.Symptom)
			assert.Nil(t, next.Clinic)

			old, err := f.sessions.Get(ctx, done.ID)
			require.NoError(t, err)
			assert.Equal(t, session.StepBookingConfirmed, old.Step)
			assert.Equal(t, done.AppointmentID, old.AppointmentID)
		})
	}
}

func TestSymptomDegradesToText(t *testing.T) {
	tests := []struct {
		name string
		llm  *stubLLM
		want string
	}{
		{"prose reply", &stubLLM{text: "Please drink water and rest."}, "Please drink water and rest."},
		{"wrong type", &stubLLM{text: `{"type":"other"}`}, `{"type":"other"}`},
		{"upstream error", &stubLLM{err: errors.New("502 bad gateway")}, replyUpstreamFailed},
		{"timeout", &stubLLM{err: context.DeadlineExceeded}, replyUpstreamFailed},
		{"empty reply", &stubLLM{text: "  "}, replyEmpty},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, tt.llm)
			reply, err := f.svc.HandleChat(context.Background(), Request{Messages: userSays("my back hurts")})
			require.NoError(t, err)
			assert.Equal(t, ReplyText, reply.Type)
			assert.Equal(t, tt.want, reply.Text)
			assert.Empty(t, reply.SessionID)
		})
	}
}

func TestUnconfiguredOnlyFailsCompletionPaths(t *testing.T) {
	f := newFixture(t, llm.Unconfigured{})
	ctx := context.Background()

	_, err := f.svc.HandleChat(ctx, Request{Messages: userSays("I have a fever")})
	require.ErrorIs(t, err, llm.ErrNotConfigured)

	_, err = f.svc.HandleChat(ctx, Request{Messages: userSays("hello")})
	require.ErrorIs(t, err, llm.ErrNotConfigured)

	reply, err := f.svc.HandleChat(ctx, Request{Messages: userSays("hospitals in Pune")})
	require.NoError(t, err)
	assert.Equal(t, ReplyHospitals, reply.Type)
}

func TestPlainConversationUsesLanguage(t *testing.T) {
	stub := &stubLLM{text: "नमस्ते!"}
	f := newFixture(t, stub)

	reply, err := f.svc.HandleChat(context.Background(), Request{Messages: userSays("hello"), Language: "hi"})
	require.NoError(t, err)
	assert.Equal(t, ReplyText, reply.Type)
	assert.Equal(t, "नमस्ते!", reply.Text)

	req := stub.last(t)
	assert.False(t, req.JSON)
	assert.InDelta(t, 0.3, req.Temperature, 1e-6)
	assert.Contains(t, req.System, "You MUST respond in Hindi language")
}
