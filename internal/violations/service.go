package violations

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/agrohub/agrohub/internal/permissions"
	"github.com/agrohub/agrohub/internal/shared"
)

// CapabilityResolver resolves the caller's violation capabilities.
type CapabilityResolver interface {
	Resolve(ctx context.Context, userID int64, role shared.Role) (permissions.Capabilities, error)
}

// BranchMembership returns the explicit UserBranch set of a user.
type BranchMembership interface {
	UserBranchIDs(ctx context.Context, userID int64) ([]int64, error)
}

// exportLimit caps rows written to a single workbook.
const exportLimit = 10000

// Service implements the violation workflow.
type Service struct {
	repo      Repository
	caps      CapabilityResolver
	branches  BranchMembership
	storage   PhotoStorage
	audit     shared.AuditRecorder
	logger    *slog.Logger
	validator *validator.Validate
	now       func() time.Time
}

// ServiceConfig groups Service dependencies.
type ServiceConfig struct {
	Repository   Repository
	Capabilities CapabilityResolver
	Branches     BranchMembership
	Storage      PhotoStorage
	Audit        shared.AuditRecorder
	Logger       *slog.Logger
}

// NewService builds Service instance.
func NewService(cfg ServiceConfig) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:      cfg.Repository,
		caps:      cfg.Capabilities,
		branches:  cfg.Branches,
		storage:   cfg.Storage,
		audit:     cfg.Audit,
		logger:    logger,
		validator: shared.NewValidator(),
		now:       time.Now,
	}
}

// Capabilities resolves the caller's flags.
func (s *Service) Capabilities(ctx context.Context, actor shared.Principal) (permissions.Capabilities, error) {
	caps, err := s.caps.Resolve(ctx, actor.UserID, actor.Role)
	if err != nil {
		return permissions.Capabilities{}, fmt.Errorf("violations: resolve capabilities: %w", err)
	}
	return caps, nil
}

func (s *Service) scope(ctx context.Context, actor shared.Principal, caps permissions.Capabilities, requested []int64) (Scope, error) {
	var userBranches []int64
	if len(requested) == 0 {
		ids, err := s.userBranches(ctx, actor, caps)
		if err != nil {
			return Scope{}, err
		}
		userBranches = ids
	}
	scope := ResolveScope(caps, actor.UserID, requested, userBranches)
	if scope.Bypass() && !caps.ViewAll {
		s.logger.Warn("violations: branch filter bypasses scope",
			slog.Int64("user_id", actor.UserID),
			slog.Any("branch_ids", requested))
	}
	return scope, nil
}

// userBranches loads the UserBranch set, which only the branch rule reads.
func (s *Service) userBranches(ctx context.Context, actor shared.Principal, caps permissions.Capabilities) ([]int64, error) {
	if caps.ViewAll || !caps.ViewBranch {
		return nil, nil
	}
	ids, err := s.branches.UserBranchIDs(ctx, actor.UserID)
	if err != nil {
		return nil, fmt.Errorf("violations: user branches: %w", err)
	}
	return ids, nil
}

// List returns the caller's visible violations.
func (s *Service) List(ctx context.Context, actor shared.Principal, filter ListFilter) (ListResult, error) {
	if filter.Progress != "" && !filter.Progress.Valid() {
		return ListResult{}, shared.Invalid("progress", "unknown progress "+strconv.Quote(string(filter.Progress)))
	}
	caps, err := s.Capabilities(ctx, actor)
	if err != nil {
		return ListResult{}, err
	}
	scope, err := s.scope(ctx, actor, caps, filter.BranchIDs)
	if err != nil {
		return ListResult{}, err
	}
	result := ListResult{Violations: []Violation{}, Limit: filter.Limit, Offset: filter.Offset}
	filter.SearchSanctions = caps.ViewSanctions
	if scope.Empty() {
		return result, nil
	}
	items, total, err := s.repo.List(ctx, scope, filter)
	if err != nil {
		return ListResult{}, err
	}
	for _, v := range items {
		result.Violations = append(result.Violations, redact(v, caps, actor.UserID))
	}
	result.Count = total
	return result, nil
}

// Get returns one violation if it is inside the caller's scope.
func (s *Service) Get(ctx context.Context, actor shared.Principal, id int64) (Violation, error) {
	if id <= 0 {
		return Violation{}, shared.MissingField("id")
	}
	caps, err := s.Capabilities(ctx, actor)
	if err != nil {
		return Violation{}, err
	}
	v, err := s.repo.Get(ctx, id)
	if err != nil {
		return Violation{}, err
	}
	userBranches, err := s.userBranches(ctx, actor, caps)
	if err != nil {
		return Violation{}, err
	}
	if !ResolveRecordScope(caps, actor.UserID, userBranches).Allows(v) {
		return Violation{}, shared.NewError(shared.ErrNotFound, "violation not found")
	}
	return redact(v, caps, actor.UserID), nil
}

// Create files a new violation and returns its id.
func (s *Service) Create(ctx context.Context, actor shared.Principal, in CreateInput) (int64, error) {
	caps, err := s.Capabilities(ctx, actor)
	if err != nil {
		return 0, err
	}
	if !CanCreate(caps) {
		return 0, shared.NewError(shared.ErrPermissionDenied, "you are not allowed to create violations")
	}
	for _, f := range in.requiredFields() {
		if strings.TrimSpace(f.value) == "" {
			return 0, shared.MissingField(f.name)
		}
	}
	if err := shared.ValidateStruct(s.validator, in); err != nil {
		return 0, err
	}

	v := Violation{
		BranchID:         int64(in.BranchID),
		UserID:           actor.UserID,
		ProcessingDate:   s.now().UTC(),
		DVR:              in.DVR,
		Camera:           in.Camera,
		IncidentLocation: in.IncidentLocation,
		Category:         in.Category,
		CategoryComment:  in.CategoryComment,
		FactIdentifier:   in.FactIdentifier,
		Progress:         ProgressPending,
	}
	if in.ProcessingDate != nil && !in.ProcessingDate.IsZero() {
		v.ProcessingDate = in.ProcessingDate.Time
	}
	if in.ProcessedDate != nil && !in.ProcessedDate.IsZero() {
		t := in.ProcessedDate.Time
		v.ProcessedDate = &t
	}
	if in.UserID > 0 && actor.IsAdmin() {
		v.UserID = int64(in.UserID)
	}

	id, err := s.repo.Create(ctx, v)
	if err != nil {
		return 0, err
	}
	s.record(ctx, actor, "violation.create", id, map[string]any{"branch_id": v.BranchID, "category": v.Category})
	return id, nil
}

// Update applies a partial update after the edit guard.
func (s *Service) Update(ctx context.Context, actor shared.Principal, id int64, in UpdateInput) error {
	if id <= 0 {
		return shared.MissingField("id")
	}
	if in.Empty() {
		return shared.NewError(shared.ErrValidation, "no updatable fields supplied")
	}
	if in.Progress.Set && (in.Progress.Null || !in.Progress.Value.Valid()) {
		return shared.Invalid("progress", "progress must be one of pending, in_progress, completed")
	}
	if in.FineAmount.Set && !in.FineAmount.Null && in.FineAmount.Value < 0 {
		return shared.Invalid("fine_amount", "fine_amount must not be negative")
	}
	caps, err := s.Capabilities(ctx, actor)
	if err != nil {
		return err
	}
	current, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if !CanEdit(caps, actor.UserID, current) {
		return shared.NewError(shared.ErrPermissionDenied, "you are not allowed to edit this violation")
	}
	if err := s.repo.Update(ctx, id, in); err != nil {
		return err
	}
	meta := map[string]any{}
	for column := range updateClauses(in) {
		meta[column] = true
	}
	if in.Progress.Set {
		meta["progress"] = in.Progress.Value
	}
	s.record(ctx, actor, "violation.update", id, meta)
	return nil
}

// Delete removes a violation and its photos.
func (s *Service) Delete(ctx context.Context, actor shared.Principal, id int64) error {
	if id <= 0 {
		return shared.MissingField("id")
	}
	caps, err := s.Capabilities(ctx, actor)
	if err != nil {
		return err
	}
	if !CanDelete(caps) {
		return shared.NewError(shared.ErrPermissionDenied, "you are not allowed to delete violations")
	}
	photos, err := s.repo.Delete(ctx, id)
	if err != nil {
		return err
	}
	for _, p := range photos {
		if err := s.storage.Remove(ctx, p.StoredPath); err != nil {
			s.logger.Warn("remove photo file", slog.Int64("violation_id", id), slog.Any("error", err))
		}
	}
	s.record(ctx, actor, "violation.delete", id, map[string]any{"photos": len(photos)})
	return nil
}

// UploadPhoto stores an evidence file and attaches it to a violation.
func (s *Service) UploadPhoto(ctx context.Context, actor shared.Principal, violationID int64, filename string, r io.Reader) (Photo, error) {
	if violationID <= 0 {
		return Photo{}, shared.MissingField("violation_id")
	}
	if _, err := ValidatePhotoName(filename); err != nil {
		return Photo{}, err
	}
	caps, err := s.Capabilities(ctx, actor)
	if err != nil {
		return Photo{}, err
	}
	v, err := s.repo.Get(ctx, violationID)
	if err != nil {
		return Photo{}, err
	}
	if !CanAttachPhoto(caps, actor.UserID, v) {
		return Photo{}, shared.NewError(shared.ErrPermissionDenied, "you are not allowed to attach photos to this violation")
	}
	stored, err := s.storage.Save(ctx, filename, r)
	if err != nil {
		return Photo{}, err
	}
	photo, err := s.repo.AddPhoto(ctx, Photo{
		ViolationID: violationID,
		Filename:    stored.Filename,
		StoredPath:  stored.Path,
		URL:         stored.URL,
		Size:        stored.Size,
		UploadedBy:  actor.UserID,
	})
	if err != nil {
		if rmErr := s.storage.Remove(ctx, stored.Path); rmErr != nil {
			s.logger.Warn("remove orphaned photo", slog.String("path", stored.Path), slog.Any("error", rmErr))
		}
		return Photo{}, err
	}
	s.record(ctx, actor, "violation.photo", violationID, map[string]any{"filename": photo.Filename, "size": photo.Size})
	return photo, nil
}

// Export writes the caller's scoped list as an xlsx workbook.
func (s *Service) Export(ctx context.Context, actor shared.Principal, filter ListFilter, w io.Writer) error {
	caps, err := s.Capabilities(ctx, actor)
	if err != nil {
		return err
	}
	if !caps.Export {
		return shared.NewError(shared.ErrPermissionDenied, "you are not allowed to export violations")
	}
	filter.Limit, filter.Offset = exportLimit, 0
	result, err := s.List(ctx, actor, filter)
	if err != nil {
		return err
	}
	return WriteXLSX(w, result.Violations)
}

// Analytics returns aggregate counts over the caller's scope.
func (s *Service) Analytics(ctx context.Context, actor shared.Principal, filter ListFilter) (Stats, error) {
	caps, err := s.Capabilities(ctx, actor)
	if err != nil {
		return Stats{}, err
	}
	if !caps.ViewAnalytics {
		return Stats{}, shared.NewError(shared.ErrPermissionDenied, "you are not allowed to view analytics")
	}
	scope, err := s.scope(ctx, actor, caps, filter.BranchIDs)
	if err != nil {
		return Stats{}, err
	}
	if scope.Empty() {
		return Stats{ByProgress: map[string]int{}, ByBranch: []BranchCount{}}, nil
	}
	filter.SearchSanctions = caps.ViewSanctions
	stats, err := s.repo.Stats(ctx, scope, filter)
	if err != nil {
		return Stats{}, err
	}
	if !caps.ViewSanctions {
		stats.FinesTotal = 0
	}
	return stats, nil
}

func (s *Service) record(ctx context.Context, actor shared.Principal, action string, id int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actor.UserID,
		Action:   action,
		Entity:   "violation",
		EntityID: strconv.FormatInt(id, 10),
		Meta:     meta,
	}); err != nil {
		s.logger.Warn("audit violation", slog.Int64("violation_id", id), slog.Any("error", err))
	}
}
