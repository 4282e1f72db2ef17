// Package http implements the HTTP transport layer. It decodes requests,
// resolves the caller's identity, calls the services and maps their errors
// to status codes.
package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/leanmaker/leanmaker-backend/internal/apperrors"
	"github.com/leanmaker/leanmaker-backend/internal/domain"
	"github.com/leanmaker/leanmaker-backend/internal/service"
	"github.com/leanmaker/leanmaker-backend/internal/validation"
	"github.com/leanmaker/leanmaker-backend/pkg/logger/sl"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Pinger reports store liveness; satisfied by *sqlx.DB.
type Pinger interface {
	Ping() error
}

// Server holds the handler dependencies: the logger, the services and the
// auth/ratelimit settings.
type Server struct {
	log           *slog.Logger
	jwtSecret     string
	limiter       *rateLimiter
	db            Pinger
	visibility    service.VisibilityService
	applications  service.ApplicationService
	projects      service.ProjectService
	workHours     service.WorkHourService
	apiLevels     service.ApiLevelService
	strikes       service.StrikeService
	reconcile     service.ReconcileService
	students      service.StudentService
	notifications service.NotificationService
}

func NewServer(
	log *slog.Logger,
	jwtSecret string,
	rps float64,
	burst int,
	db Pinger,
	visibility service.VisibilityService,
	applications service.ApplicationService,
	projects service.ProjectService,
	workHours service.WorkHourService,
	apiLevels service.ApiLevelService,
	strikes service.StrikeService,
	reconcile service.ReconcileService,
	students service.StudentService,
	notifications service.NotificationService,
) *Server {
	return &Server{
		log:           log,
		jwtSecret:     jwtSecret,
		limiter:       newRateLimiter(rps, burst),
		db:            db,
		visibility:    visibility,
		applications:  applications,
		projects:      projects,
		workHours:     workHours,
		apiLevels:     apiLevels,
		strikes:       strikes,
		reconcile:     reconcile,
		students:      students,
		notifications: notifications,
	}
}

// Routes sets up the router with all middleware and endpoints.
func (s *Server) Routes() http.Handler {
	mux := chi.NewRouter()

	mux.Use(s.requestID)
	mux.Use(s.logRequest)
	mux.Use(s.metricsMiddleware)

	mux.Get("/health", s.getHealth)
	mux.Handle("/metrics", promhttp.Handler())

	mux.Group(func(r chi.Router) {
		r.Use(s.authenticate)
		r.Use(s.rateLimit)

		r.Get("/projects", s.listVisibleProjects)
		r.Post("/projects/{id}/apply", s.applyToProject)
		r.Post("/projects/{id}/publish", s.publishProject)
		r.Post("/projects/{id}/start", s.startProject)
		r.Post("/projects/{id}/complete", s.completeProject)
		r.Post("/projects/{id}/cancel", s.cancelProject)
		r.Delete("/projects/{id}", s.deleteProject)

		r.Post("/applications/{id}/accept", s.acceptApplication)
		r.Post("/applications/{id}/reject", s.rejectApplication)
		r.Post("/applications/{id}/withdraw", s.withdrawApplication)
		r.Post("/applications/{id}/cancel", s.cancelApplication)

		r.Post("/work-hours", s.logWorkHour)
		r.Post("/work-hours/{id}/verify", s.verifyWorkHour)

		r.Post("/strike-reports", s.fileStrikeReport)

		r.Get("/students/me", s.getStudentProfile)
		r.Patch("/students/me", s.updateStudentProfile)

		r.Get("/notifications", s.listNotifications)
		r.Post("/notifications/{id}/read", s.markNotificationRead)

		r.Route("/admin", func(r chi.Router) {
			r.Get("/strike-reports", s.listStrikeReports)
			r.Post("/strike-reports/{id}/review", s.reviewStrikeReport)
			r.Put("/students/{id}/api-level", s.setStudentApiLevel)
			r.Post("/students/{id}/api-level/recompute", s.recomputeStudentApiLevel)
			r.Post("/reconcile/students/{id}", s.reconcileStudent)
			r.Post("/reconcile/projects/{id}", s.reconcileProject)
		})
	})

	return mux
}

func (s *Server) getHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.db.Ping(); err != nil {
		s.respondError(w, http.StatusServiceUnavailable, "store unreachable")
		return
	}

	s.respond(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) listVisibleProjects(w http.ResponseWriter, r *http.Request) {
	const op = "internal.transport.http.listVisibleProjects"

	query := service.VisibleProjectsQuery{
		Limit:  20,
		Offset: 0,
	}

	q := r.URL.Query()

	if area := q.Get("area"); area != "" {
		query.Area = &area
	}

	if raw := q.Get("min_trl"); raw != "" {
		minTrl, err := strconv.Atoi(raw)
		if err != nil {
			s.handleServiceError(w, r, op, fmt.Errorf("%w: min_trl must be an integer", apperrors.ErrInvalidRequest))
			return
		}
		query.MinTrl = &minTrl
	}

	if raw := q.Get("max_trl"); raw != "" {
		maxTrl, err := strconv.Atoi(raw)
		if err != nil {
			s.handleServiceError(w, r, op, fmt.Errorf("%w: max_trl must be an integer", apperrors.ErrInvalidRequest))
			return
		}
		query.MaxTrl = &maxTrl
	}

	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.ParseUint(raw, 10, 64)
		if err != nil || limit == 0 || limit > 100 {
			s.handleServiceError(w, r, op, fmt.Errorf("%w: limit must be in [1, 100]", apperrors.ErrInvalidRequest))
			return
		}
		query.Limit = limit
	}

	if raw := q.Get("offset"); raw != "" {
		offset, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			s.handleServiceError(w, r, op, fmt.Errorf("%w: offset must be a non-negative integer", apperrors.ErrInvalidRequest))
			return
		}
		query.Offset = offset
	}

	projects, err := s.visibility.ListVisibleProjects(r.Context(), getActor(r.Context()), query)
	if err != nil {
		s.handleServiceError(w, r, op, err)
		return
	}

	s.respond(w, http.StatusOK, map[string][]domain.Project{"projects": projects})
}

func (s *Server) applyToProject(w http.ResponseWriter, r *http.Request) {
	const op = "internal.transport.http.applyToProject"

	app, err := s.applications.Apply(r.Context(), getActor(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		s.handleServiceError(w, r, op, err)
		return
	}

	s.respond(w, http.StatusCreated, map[string]*domain.Application{"application": app})
}

func (s *Server) publishProject(w http.ResponseWriter, r *http.Request) {
	const op = "internal.transport.http.publishProject"

	project, err := s.projects.Publish(r.Context(), getActor(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		s.handleServiceError(w, r, op, err)
		return
	}

	s.respond(w, http.StatusOK, map[string]*domain.Project{"project": project})
}

func (s *Server) startProject(w http.ResponseWriter, r *http.Request) {
	const op = "internal.transport.http.startProject"

	project, err := s.projects.Start(r.Context(), getActor(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		s.handleServiceError(w, r, op, err)
		return
	}

	s.respond(w, http.StatusOK, map[string]*domain.Project{"project": project})
}

func (s *Server) completeProject(w http.ResponseWriter, r *http.Request) {
	const op = "internal.transport.http.completeProject"

	// The body is optional; an empty body means no confirmation flag.
	var req completeProjectRequest
	if r.ContentLength > 0 {
		if err := s.decodeAndValidate(r, &req); err != nil {
			s.handleServiceError(w, r, op, err)
			return
		}
	}

	project, err := s.projects.Complete(r.Context(), getActor(r.Context()), chi.URLParam(r, "id"), req.ConfirmEmpty)
	if err != nil {
		s.handleServiceError(w, r, op, err)
		return
	}

	s.respond(w, http.StatusOK, map[string]*domain.Project{"project": project})
}

func (s *Server) cancelProject(w http.ResponseWriter, r *http.Request) {
	const op = "internal.transport.http.cancelProject"

	project, err := s.projects.Cancel(r.Context(), getActor(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		s.handleServiceError(w, r, op, err)
		return
	}

	s.respond(w, http.StatusOK, map[string]*domain.Project{"project": project})
}

func (s *Server) deleteProject(w http.ResponseWriter, r *http.Request) {
	const op = "internal.transport.http.deleteProject"

	project, err := s.projects.Delete(r.Context(), getActor(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		s.handleServiceError(w, r, op, err)
		return
	}

	s.respond(w, http.StatusOK, map[string]*domain.Project{"project": project})
}

func (s *Server) acceptApplication(w http.ResponseWriter, r *http.Request) {
	const op = "internal.transport.http.acceptApplication"

	app, err := s.applications.Accept(r.Context(), getActor(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		s.handleServiceError(w, r, op, err)
		return
	}

	s.respond(w, http.StatusOK, map[string]*domain.Application{"application": app})
}

func (s *Server) rejectApplication(w http.ResponseWriter, r *http.Request) {
	const op = "internal.transport.http.rejectApplication"

	app, err := s.applications.Reject(r.Context(), getActor(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		s.handleServiceError(w, r, op, err)
		return
	}

	s.respond(w, http.StatusOK, map[string]*domain.Application{"application": app})
}

func (s *Server) withdrawApplication(w http.ResponseWriter, r *http.Request) {
	const op = "internal.transport.http.withdrawApplication"

	app, err := s.applications.Withdraw(r.Context(), getActor(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		s.handleServiceError(w, r, op, err)
		return
	}

	s.respond(w, http.StatusOK, map[string]*domain.Application{"application": app})
}

func (s *Server) cancelApplication(w http.ResponseWriter, r *http.Request) {
	const op = "internal.transport.http.cancelApplication"

	app, err := s.applications.Cancel(r.Context(), getActor(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		s.handleServiceError(w, r, op, err)
		return
	}

	s.respond(w, http.StatusOK, map[string]*domain.Application{"application": app})
}

func (s *Server) logWorkHour(w http.ResponseWriter, r *http.Request) {
	const op = "internal.transport.http.logWorkHour"

	var req logWorkHourRequest
	if err := s.decodeAndValidate(r, &req); err != nil {
		s.handleServiceError(w, r, op, err)
		return
	}

	wh, err := s.workHours.LogHours(r.Context(), getActor(r.Context()), service.LogWorkHourRequest{
		ProjectID:   req.ProjectID,
		Date:        req.Date,
		HoursWorked: req.HoursWorked,
		Description: req.Description,
	})
	if err != nil {
		s.handleServiceError(w, r, op, err)
		return
	}

	s.respond(w, http.StatusCreated, map[string]*domain.WorkHour{"work_hour": wh})
}

func (s *Server) verifyWorkHour(w http.ResponseWriter, r *http.Request) {
	const op = "internal.transport.http.verifyWorkHour"

	wh, err := s.workHours.Verify(r.Context(), getActor(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		s.handleServiceError(w, r, op, err)
		return
	}

	s.respond(w, http.StatusOK, map[string]*domain.WorkHour{"work_hour": wh})
}

func (s *Server) fileStrikeReport(w http.ResponseWriter, r *http.Request) {
	const op = "internal.transport.http.fileStrikeReport"

	var req fileStrikeReportRequest
	if err := s.decodeAndValidate(r, &req); err != nil {
		s.handleServiceError(w, r, op, err)
		return
	}

	report, err := s.strikes.FileReport(r.Context(), getActor(r.Context()), service.FileStrikeReportRequest{
		StudentID: req.StudentID,
		ProjectID: req.ProjectID,
		Reason:    req.Reason,
		Severity:  req.Severity,
	})
	if err != nil {
		s.handleServiceError(w, r, op, err)
		return
	}

	s.respond(w, http.StatusCreated, map[string]*domain.StrikeReport{"report": report})
}

func (s *Server) listStrikeReports(w http.ResponseWriter, r *http.Request) {
	const op = "internal.transport.http.listStrikeReports"

	var status *domain.StrikeReportStatus
	if raw := r.URL.Query().Get("status"); raw != "" {
		st := domain.StrikeReportStatus(raw)
		if st != domain.ReportPending && st != domain.ReportApproved && st != domain.ReportRejected {
			s.handleServiceError(w, r, op, fmt.Errorf("%w: unknown report status '%s'", apperrors.ErrInvalidRequest, raw))
			return
		}
		status = &st
	}

	reports, err := s.strikes.ListReports(r.Context(), getActor(r.Context()), status, 50, 0)
	if err != nil {
		s.handleServiceError(w, r, op, err)
		return
	}

	s.respond(w, http.StatusOK, map[string][]domain.StrikeReport{"reports": reports})
}

func (s *Server) reviewStrikeReport(w http.ResponseWriter, r *http.Request) {
	const op = "internal.transport.http.reviewStrikeReport"

	var req reviewStrikeReportRequest
	if err := s.decodeAndValidate(r, &req); err != nil {
		s.handleServiceError(w, r, op, err)
		return
	}

	report, err := s.strikes.Review(r.Context(), getActor(r.Context()), chi.URLParam(r, "id"), service.ReviewDecision(req.Decision))
	if err != nil {
		s.handleServiceError(w, r, op, err)
		return
	}

	s.respond(w, http.StatusOK, map[string]*domain.StrikeReport{"report": report})
}

func (s *Server) getStudentProfile(w http.ResponseWriter, r *http.Request) {
	const op = "internal.transport.http.getStudentProfile"

	student, err := s.students.GetProfile(r.Context(), getActor(r.Context()))
	if err != nil {
		s.handleServiceError(w, r, op, err)
		return
	}

	s.respond(w, http.StatusOK, map[string]*domain.Student{"student": student})
}

func (s *Server) updateStudentProfile(w http.ResponseWriter, r *http.Request) {
	const op = "internal.transport.http.updateStudentProfile"

	var req updateStudentProfileRequest
	if err := s.decodeAndValidate(r, &req); err != nil {
		s.handleServiceError(w, r, op, err)
		return
	}

	student, err := s.students.UpdateProfile(r.Context(), getActor(r.Context()), service.UpdateStudentProfileRequest{
		TrlLevel:        req.TrlLevel,
		ApiLevelPresent: req.ApiLevel != nil,
	})
	if err != nil {
		s.handleServiceError(w, r, op, err)
		return
	}

	s.respond(w, http.StatusOK, map[string]*domain.Student{"student": student})
}

func (s *Server) setStudentApiLevel(w http.ResponseWriter, r *http.Request) {
	const op = "internal.transport.http.setStudentApiLevel"

	var req setApiLevelRequest
	if err := s.decodeAndValidate(r, &req); err != nil {
		s.handleServiceError(w, r, op, err)
		return
	}

	student, err := s.apiLevels.SetLevel(r.Context(), getActor(r.Context()), chi.URLParam(r, "id"), req.Level)
	if err != nil {
		s.handleServiceError(w, r, op, err)
		return
	}

	s.respond(w, http.StatusOK, map[string]*domain.Student{"student": student})
}

func (s *Server) recomputeStudentApiLevel(w http.ResponseWriter, r *http.Request) {
	const op = "internal.transport.http.recomputeStudentApiLevel"

	student, err := s.apiLevels.Recompute(r.Context(), getActor(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		s.handleServiceError(w, r, op, err)
		return
	}

	s.respond(w, http.StatusOK, map[string]*domain.Student{"student": student})
}

func (s *Server) reconcileStudent(w http.ResponseWriter, r *http.Request) {
	const op = "internal.transport.http.reconcileStudent"

	student, err := s.reconcile.ReconcileStudent(r.Context(), getActor(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		s.handleServiceError(w, r, op, err)
		return
	}

	s.respond(w, http.StatusOK, map[string]*domain.Student{"student": student})
}

func (s *Server) reconcileProject(w http.ResponseWriter, r *http.Request) {
	const op = "internal.transport.http.reconcileProject"

	project, err := s.reconcile.ReconcileProject(r.Context(), getActor(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		s.handleServiceError(w, r, op, err)
		return
	}

	s.respond(w, http.StatusOK, map[string]*domain.Project{"project": project})
}

func (s *Server) listNotifications(w http.ResponseWriter, r *http.Request) {
	const op = "internal.transport.http.listNotifications"

	notifications, err := s.notifications.List(r.Context(), getActor(r.Context()), 50, 0)
	if err != nil {
		s.handleServiceError(w, r, op, err)
		return
	}

	s.respond(w, http.StatusOK, map[string][]domain.Notification{"notifications": notifications})
}

func (s *Server) markNotificationRead(w http.ResponseWriter, r *http.Request) {
	const op = "internal.transport.http.markNotificationRead"

	if err := s.notifications.MarkRead(r.Context(), getActor(r.Context()), chi.URLParam(r, "id")); err != nil {
		s.handleServiceError(w, r, op, err)
		return
	}

	s.respond(w, http.StatusOK, map[string]string{"status": "ok"})
}

// respond encodes data to JSON and writes it with the given status code.
func (s *Server) respond(w http.ResponseWriter, code int, data interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)

	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			s.log.Error("failed to encode response", sl.Err(err))
		}
	}
}

// respondError is a convenience wrapper around respond for simple error
// messages.
func (s *Server) respondError(w http.ResponseWriter, code int, message string) {
	s.respond(w, code, map[string]string{"error": message})
}

// decodeAndValidate deserializes a JSON request body into a struct and runs
// validation on it.
func (s *Server) decodeAndValidate(r *http.Request, v interface{}) error {
	if err := s.decode(r.Body, v); err != nil {
		return err
	}

	if err := validation.ValidateStruct(v); err != nil {
		return err
	}

	return nil
}

func (s *Server) decode(body io.ReadCloser, v interface{}) error {
	defer body.Close()

	if err := json.NewDecoder(body).Decode(v); err != nil {
		return fmt.Errorf("%w: %w", apperrors.ErrInvalidRequest, err)
	}

	return nil
}

// handleServiceError provides centralized error handling for all handlers.
// It logs the internal error and maps it to a status code.
func (s *Server) handleServiceError(w http.ResponseWriter, _ *http.Request, op string, err error) {
	log := s.log.With(slog.String("op", op))
	log.Error("service error occurred", sl.Err(err))

	var (
		validationErr  *validation.ValidationError
		alreadyApplied *apperrors.AlreadyAppliedError
		projectFull    *apperrors.ProjectFullError
		stateConflict  *apperrors.StateConflictError
	)

	switch {
	case errors.As(err, &validationErr):
		s.respondError(w, http.StatusBadRequest, validationErr.Error())
	case errors.Is(err, apperrors.ErrInvalidRequest):
		s.respondError(w, http.StatusBadRequest, trimOp(err))
	case errors.Is(err, apperrors.ErrUnauthenticated):
		s.respondError(w, http.StatusUnauthorized, "authentication required")
	case errors.Is(err, apperrors.ErrStudentSuspended):
		s.respondError(w, http.StatusForbidden, apperrors.ErrStudentSuspended.Error())
	case errors.Is(err, apperrors.ErrForbiddenApiLevel):
		s.respondError(w, http.StatusForbidden, apperrors.ErrForbiddenApiLevel.Error())
	case errors.Is(err, apperrors.ErrForbiddenTRL):
		s.respondError(w, http.StatusForbidden, apperrors.ErrForbiddenTRL.Error())
	case errors.Is(err, apperrors.ErrForbidden):
		s.respondError(w, http.StatusForbidden, "operation not allowed")
	case errors.Is(err, apperrors.ErrNotFound):
		s.respondError(w, http.StatusNotFound, "resource not found")
	case errors.As(err, &alreadyApplied):
		s.respondError(w, http.StatusConflict, alreadyApplied.Error())
	case errors.As(err, &projectFull):
		s.respondError(w, http.StatusConflict, projectFull.Error())
	case errors.Is(err, apperrors.ErrApiLevelProtected):
		s.respondError(w, http.StatusConflict, apperrors.ErrApiLevelProtected.Error())
	case errors.Is(err, apperrors.ErrInvariantConflict):
		s.respondError(w, http.StatusConflict, trimOp(err))
	case errors.Is(err, apperrors.ErrAlreadyExists):
		s.respondError(w, http.StatusConflict, "resource already exists")
	case errors.As(err, &stateConflict):
		s.respondError(w, http.StatusUnprocessableEntity, stateConflict.Error())
	case errors.Is(err, apperrors.ErrStateConflict):
		s.respondError(w, http.StatusUnprocessableEntity, apperrors.ErrStateConflict.Error())
	case errors.Is(err, apperrors.ErrTransitionTimeout):
		s.respondError(w, http.StatusGatewayTimeout, apperrors.ErrTransitionTimeout.Error())
	case errors.Is(err, apperrors.ErrTransientStore):
		s.respondError(w, http.StatusServiceUnavailable, "temporary store failure, retry later")
	default:
		s.respondError(w, http.StatusInternalServerError, "internal server error")
	}
}

// trimOp strips leading "op:" prefixes so internal call paths do not leak
// into client-facing messages. Only dotted prefixes are treated as op names.
func trimOp(err error) string {
	msg := err.Error()
	for {
		prefix, rest, found := strings.Cut(msg, ": ")
		if !found || !strings.Contains(prefix, ".") {
			return msg
		}
		msg = rest
	}
}
