package visits

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/clinicops/visitdesk/internal/apperr"
	"github.com/clinicops/visitdesk/internal/auth"
	"github.com/clinicops/visitdesk/internal/users"
	"github.com/clinicops/visitdesk/pkg/logging"
)

// Handler handles HTTP requests for the visit lifecycle
type Handler struct {
	svc    *Service
	logger *logging.Logger
}

// NewHandler creates a new visits handler
func NewHandler(svc *Service, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{svc: svc, logger: logger}
}

// ListDoctors handles GET /visits/doctors
func (h *Handler) ListDoctors(w http.ResponseWriter, r *http.Request) {
	doctors, err := h.svc.ListDoctors(r.Context())
	if err != nil {
		h.logger.Error("failed to list doctors", "error", err)
		apperr.WriteJSON(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doctors)
}

type bookVisitRequest struct {
	DoctorID uuid.UUID `json:"doctor_id"`
}

// Book handles POST /visits
func (h *Handler) Book(w http.ResponseWriter, r *http.Request) {
	caller, ok := auth.UserFromContext(r.Context())
	if !ok {
		apperr.WriteJSON(w, apperr.New(apperr.KindUnauthorized, "not authenticated"))
		return
	}

	var req bookVisitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.DoctorID == uuid.Nil {
		apperr.WriteJSON(w, apperr.New(apperr.KindValidation, "doctor_id is required"))
		return
	}

	visit, err := h.svc.Book(r.Context(), caller, req.DoctorID)
	if err != nil {
		apperr.WriteJSON(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, visit)
}

// MyVisits handles GET /visits/my-visits
func (h *Handler) MyVisits(w http.ResponseWriter, r *http.Request) {
	caller, ok := auth.UserFromContext(r.Context())
	if !ok {
		apperr.WriteJSON(w, apperr.New(apperr.KindUnauthorized, "not authenticated"))
		return
	}
	visits, err := h.svc.MyVisits(r.Context(), caller)
	if err != nil {
		h.logger.Error("failed to list patient visits", "error", err, "patient_id", caller.ID)
		apperr.WriteJSON(w, err)
		return
	}
	writeJSON(w, http.StatusOK, emptyIfNil(visits))
}

// ActiveVisit handles GET /visits/active
func (h *Handler) ActiveVisit(w http.ResponseWriter, r *http.Request) {
	caller, ok := auth.UserFromContext(r.Context())
	if !ok {
		apperr.WriteJSON(w, apperr.New(apperr.KindUnauthorized, "not authenticated"))
		return
	}
	visit, err := h.svc.ActiveVisit(r.Context(), caller)
	if err != nil {
		h.logger.Error("failed to get active visit", "error", err, "doctor_id", caller.ID)
		apperr.WriteJSON(w, err)
		return
	}
	writeJSON(w, http.StatusOK, visit)
}

// PendingVisits handles GET /visits/pending
func (h *Handler) PendingVisits(w http.ResponseWriter, r *http.Request) {
	caller, ok := auth.UserFromContext(r.Context())
	if !ok {
		apperr.WriteJSON(w, apperr.New(apperr.KindUnauthorized, "not authenticated"))
		return
	}
	visits, err := h.svc.PendingVisits(r.Context(), caller)
	if err != nil {
		h.logger.Error("failed to list pending visits", "error", err, "doctor_id", caller.ID)
		apperr.WriteJSON(w, err)
		return
	}
	writeJSON(w, http.StatusOK, emptyIfNil(visits))
}

// Start handles PUT /visits/{id}/start
func (h *Handler) Start(w http.ResponseWriter, r *http.Request) {
	h.visitAction(w, r, func(caller *users.User, visitID uuid.UUID) (*Visit, error) {
		return h.svc.Start(r.Context(), caller, visitID)
	})
}

type addTreatmentRequest struct {
	Name  string  `json:"name"`
	Cost  float64 `json:"cost"`
	Notes string  `json:"notes"`
}

// AddTreatment handles PUT /visits/{id}/add-treatment
func (h *Handler) AddTreatment(w http.ResponseWriter, r *http.Request) {
	var req addTreatmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apperr.WriteJSON(w, apperr.New(apperr.KindValidation, "invalid request body"))
		return
	}
	h.visitAction(w, r, func(caller *users.User, visitID uuid.UUID) (*Visit, error) {
		return h.svc.AddTreatment(r.Context(), caller, visitID, req.Name, req.Cost, req.Notes)
	})
}

type updateNotesRequest struct {
	MedicalNotes string `json:"medical_notes"`
}

// UpdateNotes handles PUT /visits/{id}/notes
func (h *Handler) UpdateNotes(w http.ResponseWriter, r *http.Request) {
	var req updateNotesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apperr.WriteJSON(w, apperr.New(apperr.KindValidation, "invalid request body"))
		return
	}
	h.visitAction(w, r, func(caller *users.User, visitID uuid.UUID) (*Visit, error) {
		return h.svc.UpdateMedicalNotes(r.Context(), caller, visitID, req.MedicalNotes)
	})
}

// Complete handles PUT /visits/{id}/complete
func (h *Handler) Complete(w http.ResponseWriter, r *http.Request) {
	h.visitAction(w, r, func(caller *users.User, visitID uuid.UUID) (*Visit, error) {
		return h.svc.Complete(r.Context(), caller, visitID)
	})
}

// AllVisits handles GET /visits
func (h *Handler) AllVisits(w http.ResponseWriter, r *http.Request) {
	visits, err := h.svc.AllVisits(r.Context())
	if err != nil {
		h.logger.Error("failed to list all visits", "error", err)
		apperr.WriteJSON(w, err)
		return
	}
	writeJSON(w, http.StatusOK, emptyIfNil(visits))
}

// Search handles GET /visits/search
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	visits, err := h.svc.Search(r.Context(), q.Get("visit_id"), q.Get("doctor_name"), q.Get("patient_name"))
	if err != nil {
		h.logger.Error("search failed", "error", err)
		apperr.WriteJSON(w, err)
		return
	}
	writeJSON(w, http.StatusOK, emptyIfNil(visits))
}

func (h *Handler) visitAction(w http.ResponseWriter, r *http.Request, action func(*users.User, uuid.UUID) (*Visit, error)) {
	caller, ok := auth.UserFromContext(r.Context())
	if !ok {
		apperr.WriteJSON(w, apperr.New(apperr.KindUnauthorized, "not authenticated"))
		return
	}
	visitID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		apperr.WriteJSON(w, apperr.New(apperr.KindValidation, "invalid visit id"))
		return
	}
	visit, err := action(caller, visitID)
	if err != nil {
		apperr.WriteJSON(w, err)
		return
	}
	writeJSON(w, http.StatusOK, visit)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func emptyIfNil(visits []*Visit) []*Visit {
	if visits == nil {
		return []*Visit{}
	}
	return visits
}
