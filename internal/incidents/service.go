package incidents

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/hibiken/asynq"

	"github.com/agrohub/agrohub/internal/shared"
	"github.com/agrohub/agrohub/jobs"
)

// idempotencyModule namespaces incident keys in idempotency_keys.
const idempotencyModule = "incidents"

// IdempotencyStore guards report creation against replays.
type IdempotencyStore interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key, module string) error
}

// TaskQueue enqueues the HR notification job.
type TaskQueue interface {
	EnqueueHRTaskNotify(ctx context.Context, payload jobs.HRTaskNotifyPayload) (*asynq.TaskInfo, error)
}

// ServiceConfig groups Service dependencies.
type ServiceConfig struct {
	Repository  Repository
	Audit       shared.AuditRecorder
	Idempotency IdempotencyStore
	Queue       TaskQueue
	Logger      *slog.Logger
	// Strict enforces the ordered state precondition on transitions.
	Strict bool
	// DefaultAmount applies to reports without an amount. Zero uses DefaultAmount.
	DefaultAmount float64
}

// Service implements the incident workflow.
type Service struct {
	repo          Repository
	audit         shared.AuditRecorder
	idem          IdempotencyStore
	queue         TaskQueue
	logger        *slog.Logger
	validator     *validator.Validate
	strict        bool
	defaultAmount float64
	now           func() time.Time
}

// NewService builds Service instance.
func NewService(cfg ServiceConfig) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	amount := cfg.DefaultAmount
	if amount <= 0 {
		amount = DefaultAmount
	}
	return &Service{
		repo:          cfg.Repository,
		audit:         cfg.Audit,
		idem:          cfg.Idempotency,
		queue:         cfg.Queue,
		logger:        logger,
		validator:     shared.NewValidator(),
		strict:        cfg.Strict,
		defaultAmount: amount,
		now:           time.Now,
	}
}

// seesAll lists roles that read every incident.
var seesAll = []shared.Role{shared.RoleAdmin, shared.RoleManager, shared.RoleMonitor, shared.RoleHR}

// List returns incidents visible to the caller.
func (s *Service) List(ctx context.Context, actor shared.Principal, filter ListFilter) ([]Incident, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, shared.Invalid("status", "unknown status "+strconv.Quote(string(filter.Status)))
	}
	filter.ReporterID = 0
	if !actor.Role.In(seesAll...) {
		filter.ReporterID = actor.UserID
	}
	return s.repo.List(ctx, filter)
}

// Get returns one incident if the caller may see it.
func (s *Service) Get(ctx context.Context, actor shared.Principal, id int64) (Incident, error) {
	if id <= 0 {
		return Incident{}, shared.MissingField("incident_id")
	}
	in, err := s.repo.Get(ctx, id)
	if err != nil {
		return Incident{}, err
	}
	if !actor.Role.In(seesAll...) && in.ReporterID != actor.UserID {
		return Incident{}, shared.NewError(shared.ErrNotFound, "incident not found")
	}
	return in, nil
}

// Create files a report for the caller. A non-empty key makes the request
// idempotent; a replayed key returns ErrConflict.
func (s *Service) Create(ctx context.Context, actor shared.Principal, in CreateInput, key string) (int64, error) {
	in.Reason = strings.TrimSpace(in.Reason)
	if err := shared.ValidateStruct(s.validator, in); err != nil {
		return 0, err
	}
	if key != "" && s.idem != nil {
		if err := s.idem.CheckAndInsert(ctx, key, idempotencyModule); err != nil {
			return 0, err
		}
	}
	amount := s.defaultAmount
	if in.Amount != nil {
		amount = *in.Amount
	}
	id, err := s.repo.Create(ctx, Incident{
		ReporterID: actor.UserID,
		Amount:     amount,
		Reason:     in.Reason,
		Evidence:   in.Evidence,
		Status:     StatusReported,
	})
	if err != nil {
		if key != "" && s.idem != nil {
			if delErr := s.idem.Delete(ctx, key, idempotencyModule); delErr != nil {
				s.logger.Warn("release idempotency key", slog.Any("error", delErr))
			}
		}
		return 0, err
	}
	s.record(ctx, actor, "incident.create", id, map[string]any{"amount": amount})
	return id, nil
}

// Transition applies a workflow action and returns the updated incident.
func (s *Service) Transition(ctx context.Context, actor shared.Principal, in TransitionInput) (Incident, error) {
	if in.IncidentID <= 0 {
		return Incident{}, shared.MissingField("incident_id")
	}
	if strings.TrimSpace(string(in.Action)) == "" {
		return Incident{}, shared.MissingField("action")
	}
	if in.PaidAmount != nil && *in.PaidAmount < 0 {
		return Incident{}, shared.Invalid("paid_amount", "paid_amount must not be negative")
	}
	// Role and action are checked before the lookup so unknown actions and
	// forbidden roles never reveal whether an incident exists.
	if _, err := Next("", in.Action, actor.Role, false); err != nil {
		return Incident{}, err
	}
	current, err := s.repo.Get(ctx, in.IncidentID)
	if err != nil {
		return Incident{}, err
	}
	to, err := Next(current.Status, in.Action, actor.Role, s.strict)
	if err != nil {
		return Incident{}, err
	}

	change := Change{
		ID:      current.ID,
		From:    current.Status,
		To:      to,
		ActorID: actor.UserID,
		At:      s.now().UTC(),
		Strict:  s.strict,
	}
	if to == StatusPaid {
		paid := current.Amount
		if in.PaidAmount != nil {
			paid = *in.PaidAmount
		}
		change.PaidAmount = &paid
	}
	if err := s.repo.Apply(ctx, change); err != nil {
		return Incident{}, err
	}
	if current.Status != transitions[in.Action].from {
		s.logger.Warn("incident transition skipped states",
			slog.Int64("incident_id", current.ID),
			slog.String("from", string(current.Status)),
			slog.String("action", string(in.Action)))
	}

	s.record(ctx, actor, "incident."+string(in.Action), current.ID, map[string]any{
		"from": string(current.Status),
		"to":   string(to),
	})
	if to == StatusPaid {
		s.createHRTask(ctx, actor, current.ID, *change.PaidAmount)
	}

	updated, err := s.repo.Get(ctx, current.ID)
	if err != nil {
		return Incident{}, err
	}
	return updated, nil
}

// createHRTask is best effort. The incident stays paid even when the task
// insert or the enqueue fails; the reconcile job backfills missing rows.
func (s *Service) createHRTask(ctx context.Context, actor shared.Principal, incidentID int64, amount float64) {
	logger := s.logger.With(slog.Int64("incident_id", incidentID))
	taskID, err := s.repo.CreateHRTask(ctx, incidentID, jobs.HRTaskTitle(incidentID), amount)
	if err != nil {
		logger.Error("create hr task", slog.Any("error", err))
		return
	}
	if s.queue == nil {
		return
	}
	_, err = s.queue.EnqueueHRTaskNotify(ctx, jobs.HRTaskNotifyPayload{
		TaskID:     taskID,
		IncidentID: incidentID,
		Amount:     amount,
		PaidBy:     actor.UserID,
	})
	if err != nil && !errors.Is(err, asynq.ErrDuplicateTask) && !errors.Is(err, asynq.ErrTaskIDConflict) {
		logger.Error("enqueue hr task notify", slog.Int64("task_id", taskID), slog.Any("error", err))
	}
}

func (s *Service) record(ctx context.Context, actor shared.Principal, action string, id int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actor.UserID,
		Action:   action,
		Entity:   "incident",
		EntityID: strconv.FormatInt(id, 10),
		Meta:     meta,
		At:       s.now().UTC(),
	}); err != nil {
		s.logger.Error("audit incident", slog.Int64("incident_id", id), slog.Any("error", err))
	}
}
