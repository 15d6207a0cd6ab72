package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/shiva-1301/hospiico/internal/appointment"
	"github.com/shiva-1301/hospiico/internal/booking"
	"github.com/shiva-1301/hospiico/internal/chat"
	"github.com/shiva-1301/hospiico/internal/geo"
	"github.com/shiva-1301/hospiico/internal/llm"
	redisclient "github.com/shiva-1301/hospiico/internal/redis"
	"github.com/shiva-1301/hospiico/internal/requestlog"
	"github.com/shiva-1301/hospiico/internal/schedule"
	"github.com/shiva-1301/hospiico/internal/session"
)

const maxBodyBytes = 1 << 20

type ChatService interface {
	HandleChat(ctx context.Context, req chat.Request) (chat.Reply, error)
}

type BookingService interface {
	Dispatch(ctx context.Context, a booking.Action) (*booking.Result, error)
}

func chatHandler(svc ChatService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		var req ChatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		var origin *geo.Point
		if req.Latitude != nil && req.Longitude != nil {
			lat, lng := *req.Latitude, *req.Longitude
			if lat < -90 || lat > 90 || lng < -180 || lng > 180 {
				writeError(w, http.StatusBadRequest, "invalid_location", "latitude must be within [-90, 90] and longitude within [-180, 180]")
				return
			}
			origin = &geo.Point{Lat: lat, Lng: lng}
		}

		reply, err := svc.HandleChat(r.Context(), chat.Request{
			Messages:  req.Messages,
			Language:  req.Language,
			SessionID: strings.TrimSpace(req.SessionID),
			Origin:    origin,
		})
		if err != nil {
			handleChatError(w, r, logger, err)
			return
		}

		writeJSON(w, http.StatusOK, chatResponse(reply))
	}
}

func chatActionHandler(svc BookingService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		var req ActionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		res, err := svc.Dispatch(r.Context(), booking.Action{
			SessionID: req.SessionID,
			Name:      strings.TrimSpace(req.Action),
			Value:     req.Value,
			UserID:    req.UserID,
			Patient: session.PatientDetails{
				Name:   req.PatientName,
				Age:    req.PatientAge,
				Gender: req.PatientGender,
				Phone:  req.PatientPhone,
				Email:  req.PatientEmail,
				Reason: req.Reason,
			},
		})
		if err != nil {
			handleActionError(w, r, logger, req.Action, err)
			return
		}

		writeJSON(w, http.StatusOK, actionResponse(res))
	}
}

func recentRequestsHandler(ring *requestlog.Ring) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, ring.Recent())
	}
}

func handleChatError(w http.ResponseWriter, r *http.Request, logger *zap.Logger, err error) {
	switch {
	case errors.Is(err, llm.ErrNotConfigured):
		writeError(w, http.StatusServiceUnavailable, "chat_not_configured",
			"Chat service is not configured. Please set GROQ_API_KEY or GEMINI_API_KEY.")
	case errors.Is(err, chat.ErrNoMessages):
		writeError(w, http.StatusBadRequest, "no_messages", "At least one message is required")
	case errors.Is(err, session.ErrRevisionConflict):
		writeError(w, http.StatusConflict, "busy", "Another request is in progress. Please try again.")
	default:
		internalError(w, r, logger, err)
	}
}

func handleActionError(w http.ResponseWriter, r *http.Request, logger *zap.Logger, action string, err error) {
	switch {
	case errors.Is(err, booking.ErrUnknownAction):
		writeError(w, http.StatusBadRequest, "unknown_action", "Unknown action: "+action)
	case errors.Is(err, appointment.ErrSlotTaken):
		writeError(w, http.StatusBadRequest, "slot_taken", "This time slot has just been booked. Please select another time.")
	case errors.Is(err, appointment.ErrClinicNotFound):
		writeError(w, http.StatusBadRequest, "hospital_not_found", "Hospital not found")
	case errors.Is(err, appointment.ErrDoctorNotFound):
		writeError(w, http.StatusBadRequest, "doctor_not_found", "Doctor not found")
	case errors.Is(err, booking.ErrDoctorNotAtClinic):
		writeError(w, http.StatusBadRequest, "doctor_not_at_hospital", "Doctor does not work at the selected hospital")
	case errors.Is(err, schedule.ErrInvalidDate):
		writeError(w, http.StatusBadRequest, "invalid_date", "Invalid date format. Please use YYYY-MM-DD")
	case errors.Is(err, schedule.ErrPastDate):
		writeError(w, http.StatusBadRequest, "past_date", "Cannot book appointments in the past")
	case errors.Is(err, schedule.ErrInvalidTime):
		writeError(w, http.StatusBadRequest, "invalid_time", "Invalid time format. Please use HH:MM")
	case errors.Is(err, schedule.ErrSlotUnavailable):
		writeError(w, http.StatusBadRequest, "slot_unavailable", "This time slot is not available. Please choose one of the listed times.")
	case errors.Is(err, session.ErrIncompleteBooking):
		writeError(w, http.StatusBadRequest, "incomplete_booking", "Incomplete booking information")
	case errors.Is(err, session.ErrNoClinicSelected):
		writeError(w, http.StatusBadRequest, "no_hospital_selected", "Please select a hospital first")
	case errors.Is(err, session.ErrNoDoctorSelected):
		writeError(w, http.StatusBadRequest, "no_doctor_selected", "Please select a doctor first")
	case errors.Is(err, session.ErrNoDateSelected):
		writeError(w, http.StatusBadRequest, "no_date_selected", "Please select a date first")
	case errors.Is(err, session.ErrStepOutOfOrder):
		writeError(w, http.StatusBadRequest, "step_out_of_order", "This step has already been completed")
	case errors.Is(err, session.ErrSessionExpired):
		writeError(w, http.StatusBadRequest, "session_expired", "Your session has expired. Please start again.")
	case errors.Is(err, redisclient.ErrLockNotAcquired),
		errors.Is(err, session.ErrRevisionConflict),
		errors.Is(err, appointment.ErrSlotBeingBooked):
		writeError(w, http.StatusConflict, "busy", "Another request is in progress. Please try again.")
	default:
		internalError(w, r, logger, err)
	}
}

func internalError(w http.ResponseWriter, r *http.Request, logger *zap.Logger, err error) {
	logger.Error("request failed",
		zap.String("path", r.URL.Path),
		zap.String("request_id", GetRequestID(r.Context())),
		zap.Error(err))
	writeError(w, http.StatusInternalServerError, "internal_error", "Something went wrong. Please try again.")
}

func chatResponse(reply chat.Reply) any {
	switch reply.Type {
	case chat.ReplyHospitals:
		return HospitalsResponse{
			Type:      string(reply.Type),
			Reply:     reply.Text,
			Step:      reply.Step,
			Hospitals: hospitalResponses(reply.Hospitals),
			SessionID: reply.SessionID,
			Specialty: reply.Specialty,
		}
	case chat.ReplySymptomExplanation:
		resp := SymptomExplanationResponse{
			Type:            string(reply.Type),
			Reply:           reply.Text,
			Step:            reply.Step,
			SessionID:       reply.SessionID,
			Specialty:       reply.Specialty,
			HospitalCount:   reply.HospitalCount,
			Specializations: []string{},
		}
		if m := reply.Match; m != nil {
			resp.Symptom = m.Symptom
			resp.InferredIssue = m.InferredIssue
			resp.Specializations = m.Specializations
			resp.Confidence = m.Confidence
			resp.Disclaimer = m.Disclaimer
		}
		return resp
	default:
		return TextResponse{Type: string(chat.ReplyText), Reply: reply.Text}
	}
}

func hospitalResponses(hospitals []chat.Hospital) []HospitalResponse {
	out := make([]HospitalResponse, 0, len(hospitals))
	for _, h := range hospitals {
		c := h.Item
		out = append(out, HospitalResponse{
			ID:              c.ID,
			Name:            c.Name,
			ImageURL:        c.ImageURL,
			City:            c.City,
			State:           c.State,
			Rating:          c.Rating,
			Address:         c.Address,
			Phone:           c.Phone,
			Specializations: c.Specializations,
			Latitude:        c.Latitude,
			Longitude:       c.Longitude,
			Distance:        h.Distance,
			TravelMinutes:   h.TravelMinutes,
		})
	}
	return out
}

func actionResponse(res *booking.Result) any {
	base := ActionResponse{
		Step:      res.Step.String(),
		SessionID: res.SessionID,
		Message:   res.Message,
	}

	switch res.Step {
	case session.StepDoctorSelection:
		doctors := make([]DoctorResponse, 0, len(res.Doctors))
		for _, d := range res.Doctors {
			doctors = append(doctors, DoctorResponse{
				ID:             d.ID,
				Name:           d.Name,
				Specialization: d.Specialization,
				Qualifications: d.Qualifications,
				Experience:     d.Experience,
				ImageURL:       d.ImageURL,
			})
		}
		return DoctorSelectionResponse{ActionResponse: base, Doctors: doctors}
	case session.StepTimeSelection:
		slots := res.Slots
		if slots == nil {
			slots = []string{}
		}
		return TimeSelectionResponse{ActionResponse: base, Date: res.Date, AvailableSlots: slots}
	case session.StepPatientDetails:
		return PatientDetailsResponse{ActionResponse: base, AppointmentDetails: summaryResponse(res.AppointmentDetails)}
	case session.StepBookingConfirmed:
		return BookingConfirmedResponse{
			ActionResponse: base,
			AppointmentID:  res.AppointmentID,
			Details:        summaryResponse(res.Details),
		}
	default:
		return base
	}
}

func summaryResponse(s *booking.Summary) SummaryResponse {
	if s == nil {
		return SummaryResponse{}
	}
	return SummaryResponse{
		Hospital: s.Hospital,
		Doctor:   s.Doctor,
		Date:     s.Date,
		Time:     s.Time,
		Patient:  s.Patient,
	}
}
