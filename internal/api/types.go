package api

import (
	"github.com/google/uuid"

	"github.com/shiva-1301/hospiico/internal/llm"
)

type ChatRequest struct {
	Messages  []llm.Message `json:"messages"`
	Language  string        `json:"language,omitempty"`
	SessionID string        `json:"sessionId,omitempty"`
	Latitude  *float64      `json:"latitude,omitempty"`
	Longitude *float64      `json:"longitude,omitempty"`
}

type TextResponse struct {
	Type  string `json:"type"`
	Reply string `json:"reply"`
}

type HospitalResponse struct {
	ID              uuid.UUID `json:"id"`
	Name            string    `json:"name"`
	ImageURL        string    `json:"imageUrl"`
	City            string    `json:"city"`
	State           string    `json:"state,omitempty"`
	Rating          float64   `json:"rating"`
	Address         string    `json:"address"`
	Phone           string    `json:"phone,omitempty"`
	Specializations []string  `json:"specialties,omitempty"`
	Latitude        *float64  `json:"latitude"`
	Longitude       *float64  `json:"longitude"`
	Distance        *float64  `json:"distance,omitempty"`
	TravelMinutes   *int      `json:"travelMinutes,omitempty"`
}

type HospitalsResponse struct {
	Type      string             `json:"type"`
	Reply     string             `json:"reply"`
	Step      string             `json:"step"`
	Hospitals []HospitalResponse `json:"hospitals"`
	SessionID string             `json:"sessionId,omitempty"`
	Specialty string             `json:"specialty,omitempty"`
}

type SymptomExplanationResponse struct {
	Type            string   `json:"type"`
	Reply           string   `json:"reply"`
	Step            string   `json:"step"`
	SessionID       string   `json:"sessionId"`
	Specialty       string   `json:"specialty"`
	HospitalCount   int      `json:"hospitalCount"`
	Symptom         string   `json:"symptom"`
	InferredIssue   string   `json:"inferredIssue,omitempty"`
	Specializations []string `json:"specializations"`
	Confidence      string   `json:"confidence,omitempty"`
	Disclaimer      string   `json:"disclaimer"`
}

type ActionRequest struct {
	SessionID     string `json:"sessionId"`
	Action        string `json:"action"`
	Value         string `json:"value"`
	UserID        string `json:"userId,omitempty"`
	PatientName   string `json:"patientName,omitempty"`
	PatientAge    *int   `json:"patientAge,omitempty"`
	PatientGender string `json:"patientGender,omitempty"`
	PatientPhone  string `json:"patientPhone,omitempty"`
	PatientEmail  string `json:"patientEmail,omitempty"`
	Reason        string `json:"reason,omitempty"`
}

type ActionResponse struct {
	Step      string `json:"step"`
	SessionID string `json:"sessionId"`
	Message   string `json:"message"`
}

type DoctorResponse struct {
	ID             uuid.UUID `json:"id"`
	Name           string    `json:"name"`
	Specialization string    `json:"specialization"`
	Qualifications string    `json:"qualifications"`
	Experience     string    `json:"experience"`
	ImageURL       string    `json:"imageUrl"`
}

type DoctorSelectionResponse struct {
	ActionResponse
	Doctors []DoctorResponse `json:"doctors"`
}

type TimeSelectionResponse struct {
	ActionResponse
	Date           string   `json:"date"`
	AvailableSlots []string `json:"availableSlots"`
}

type SummaryResponse struct {
	Hospital string `json:"hospital"`
	Doctor   string `json:"doctor"`
	Date     string `json:"date"`
	Time     string `json:"time"`
	Patient  string `json:"patient,omitempty"`
}

type PatientDetailsResponse struct {
	ActionResponse
	AppointmentDetails SummaryResponse `json:"appointmentDetails"`
}

type BookingConfirmedResponse struct {
	ActionResponse
	AppointmentID string          `json:"appointmentId"`
	Details       SummaryResponse `json:"details"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}
