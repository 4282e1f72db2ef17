package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/leanmaker/leanmaker-backend/internal/apperrors"
	"github.com/leanmaker/leanmaker-backend/internal/domain"
	"github.com/leanmaker/leanmaker-backend/internal/repository"
)

// FileStrikeReportRequest is a company's complaint against a student.
type FileStrikeReportRequest struct {
	StudentID string
	ProjectID *string
	Reason    string
	Severity  string
}

// ReviewDecision is the admin's verdict on a strike report.
type ReviewDecision string

const (
	DecisionApprove ReviewDecision = "approve"
	DecisionReject  ReviewDecision = "reject"
)

// StrikeService handles strike reports and their review. An approved report
// materialises a strike; the third active strike suspends the student.
type StrikeService interface {
	// FileReport creates a pending report; it causes no strike until an
	// admin approves it.
	FileReport(ctx context.Context, actor domain.Actor, req FileStrikeReportRequest) (*domain.StrikeReport, error)

	// Review resolves a pending report. Reviewing an already reviewed
	// report is a state conflict.
	Review(ctx context.Context, actor domain.Actor, reportID string, decision ReviewDecision) (*domain.StrikeReport, error)

	// ListReports returns reports, optionally filtered by status.
	ListReports(ctx context.Context, actor domain.Actor, status *domain.StrikeReportStatus, limit, offset uint64) ([]domain.StrikeReport, error)
}

type StrikeServiceImpl struct {
	log       *slog.Logger
	clock     Clock
	notifier  Notifier
	students  repository.StudentRepository
	companies repository.CompanyRepository
	strikes   repository.StrikeRepository
	txRunner
}

func NewStrikeService(
	db Transactor,
	log *slog.Logger,
	clock Clock,
	notifier Notifier,
	students repository.StudentRepository,
	companies repository.CompanyRepository,
	strikes repository.StrikeRepository,
	transitionTimeout time.Duration,
) *StrikeServiceImpl {
	return &StrikeServiceImpl{
		log:       log,
		clock:     clock,
		notifier:  notifier,
		students:  students,
		companies: companies,
		strikes:   strikes,
		txRunner:  txRunner{db: db, log: log, timeout: transitionTimeout},
	}
}

func (s *StrikeServiceImpl) FileReport(ctx context.Context, actor domain.Actor, req FileStrikeReportRequest) (*domain.StrikeReport, error) {
	const op = "internal.service.strike.FileReport"
	log := s.log.With(slog.String("op", op), slog.String("student_id", req.StudentID))

	if err := requireRole(actor, domain.RoleCompany); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	company, err := s.companies.GetByUserID(ctx, nil, actor.UserID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", op, apperrors.ErrForbidden)
		}

		return nil, fmt.Errorf("%s: failed to get company: %w", op, err)
	}

	if company.Status() != domain.CompanyActive {
		return nil, fmt.Errorf("%s: %w: company is %s", op, apperrors.ErrForbidden, company.Status())
	}

	if _, err := s.students.GetByID(ctx, nil, req.StudentID); err != nil {
		return nil, fmt.Errorf("%s: failed to get student: %w", op, err)
	}

	report := &domain.StrikeReport{
		ID:        uuid.NewString(),
		CompanyID: company.ID,
		StudentID: req.StudentID,
		ProjectID: req.ProjectID,
		Reason:    req.Reason,
		Severity:  req.Severity,
		Status:    domain.ReportPending,
		CreatedAt: s.clock.Now(),
	}

	if err := s.strikes.CreateReport(ctx, nil, report); err != nil {
		return nil, fmt.Errorf("%s: failed to create report: %w", op, err)
	}

	log.Info("strike report filed", slog.String("report_id", report.ID))

	return report, nil
}

func (s *StrikeServiceImpl) Review(ctx context.Context, actor domain.Actor, reportID string, decision ReviewDecision) (*domain.StrikeReport, error) {
	const op = "internal.service.strike.Review"
	log := s.log.With(slog.String("op", op), slog.String("report_id", reportID))

	if err := requireRole(actor, domain.RoleAdmin); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if decision != DecisionApprove && decision != DecisionReject {
		return nil, fmt.Errorf("%s: %w: decision must be approve or reject", op, apperrors.ErrInvalidRequest)
	}

	var (
		report    *domain.StrikeReport
		suspended bool
		notices   []Notice
	)

	err := s.transaction(ctx, op, func(tx *sqlx.Tx) error {
		suspended = false
		notices = notices[:0]

		var err error

		report, err = s.strikes.GetReportByIDForUpdate(ctx, tx, reportID)
		if err != nil {
			return fmt.Errorf("%s: failed to get report with lock: %w", op, err)
		}

		if report.Status != domain.ReportPending {
			return fmt.Errorf("%s: %w", op, &apperrors.StateConflictError{
				Entity: "strike_report",
				ID:     report.ID,
				From:   string(report.Status),
				Event:  "review",
			})
		}

		now := s.clock.Now()

		target := domain.ReportRejected
		if decision == DecisionApprove {
			target = domain.ReportApproved
		}

		if err := s.strikes.SetReportStatus(ctx, tx, report.ID, target, actor.UserID, now); err != nil {
			return fmt.Errorf("%s: failed to set report status: %w", op, err)
		}

		report.Status = target
		report.ReviewedBy = &actor.UserID
		report.ReviewedAt = &now

		if target == domain.ReportRejected {
			return nil
		}

		student, err := s.students.GetByIDForUpdate(ctx, tx, report.StudentID)
		if err != nil {
			return fmt.Errorf("%s: failed to get student with lock: %w", op, err)
		}

		strike := &domain.Strike{
			ID:        uuid.NewString(),
			StudentID: report.StudentID,
			CompanyID: report.CompanyID,
			ProjectID: report.ProjectID,
			Reason:    report.Reason,
			Severity:  report.Severity,
			IssuedBy:  actor.UserID,
			IssuedAt:  now,
			IsActive:  true,
		}

		if err := s.strikes.CreateStrike(ctx, tx, strike); err != nil {
			return fmt.Errorf("%s: failed to create strike: %w", op, err)
		}

		count, err := s.strikes.CountActiveByStudent(ctx, tx, report.StudentID)
		if err != nil {
			return fmt.Errorf("%s: failed to count strikes: %w", op, err)
		}

		status := student.Status
		if count >= domain.MaxStrikes {
			status = domain.StudentSuspended
			suspended = true
		}

		if err := s.students.SetStrikes(ctx, tx, student.ID, count, status); err != nil {
			return fmt.Errorf("%s: failed to set strikes: %w", op, err)
		}

		company, err := s.companies.GetByID(ctx, tx, report.CompanyID)
		if err != nil {
			return fmt.Errorf("%s: failed to get company: %w", op, err)
		}

		body := fmt.Sprintf("A strike was issued against you (%d of %d)", count, domain.MaxStrikes)
		if suspended {
			body = "A strike was issued against you; your account is suspended"
		}

		notices = append(notices,
			Notice{
				Recipient: student.UserID,
				Kind:      "strike.issued",
				Title:     "Strike issued",
				Body:      body,
			},
			Notice{
				Recipient: company.UserID,
				Kind:      "strike.report_approved",
				Title:     "Strike report approved",
				Body:      "Your strike report was approved",
			},
		)

		return nil
	})
	if err != nil {
		return nil, err
	}

	s.emit(ctx, s.notifier, notices)

	log.Info("strike report reviewed",
		slog.String("status", string(report.Status)),
		slog.Bool("student_suspended", suspended))

	return report, nil
}

func (s *StrikeServiceImpl) ListReports(ctx context.Context, actor domain.Actor, status *domain.StrikeReportStatus, limit, offset uint64) ([]domain.StrikeReport, error) {
	const op = "internal.service.strike.ListReports"

	if err := requireRole(actor, domain.RoleAdmin); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	reports, err := s.strikes.ListReports(ctx, status, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to list reports: %w", op, err)
	}

	if reports == nil {
		reports = []domain.StrikeReport{}
	}

	return reports, nil
}
