package permkit

import (
	"context"
	"log/slog"

	"github.com/fernandezvara/dbkit"
	"github.com/go-playground/validator/v10"
)

// Service persists the administration state (users, groups, roles,
// overrides, entities) in PostgreSQL through dbkit and enforces the same
// cascade rules as the in-memory Snapshot mutators, inside transactions.
//
// Error Handling:
// All database operations use dbkit's chainable error wrapping to provide
// detailed context about failed operations. Domain rules surface as
// permkit sentinel errors:
//
//	err := service.DeleteRole(ctx, roleID, "")
//	if permkit.IsRoleInUse(err) {
//	    // prompt for a reassignment role and retry
//	}
type Service struct {
	db        dbkit.IDB
	logger    *slog.Logger
	validate  *validator.Validate
	txMonitor *transactionMonitor
}

// ServiceOption configures the Service.
type ServiceOption func(*Service)

// WithLogger sets a structured logger for mutation and audit events.
// Without it the service stays silent.
func WithLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) {
		s.logger = logger
	}
}

// NewService creates a new PermKit service.
//
// Example:
//
//	db, _ := dbkit.New(dbkit.Config{URL: "postgres://..."})
//	service := permkit.NewService(db, permkit.WithLogger(slog.Default()))
func NewService(db dbkit.IDB, opts ...ServiceOption) *Service {
	s := &Service{
		db:        db,
		validate:  validator.New(validator.WithRequiredStructEnabled()),
		txMonitor: newTransactionMonitor(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// validateStruct runs field validation and wraps failures in the domain
// error type.
func (s *Service) validateStruct(v any) error {
	if err := s.validate.Struct(v); err != nil {
		return NewError(ErrInvalidInput, err.Error())
	}
	return nil
}

func (s *Service) logMutation(ctx context.Context, msg string, args ...any) {
	if s.logger == nil {
		return
	}
	if actor := GetActorID(ctx); actor != "" {
		args = append(args, slog.String("actor_id", actor))
	}
	s.logger.InfoContext(ctx, msg, args...)
}

// ============================================================================
// AUDIT LOG
// ============================================================================

// GetAuditLog retrieves audit log entries with optional filters, newest
// first.
func (s *Service) GetAuditLog(ctx context.Context, filter AuditLogFilter) ([]PermissionAuditLog, error) {
	var logs []PermissionAuditLog
	q := s.db.NewSelect().Model(&logs)
	if filter.ActorID != "" {
		q = q.Where("actor_id = ?", filter.ActorID)
	}
	if filter.TargetKind != "" {
		q = q.Where("target_kind = ?", string(filter.TargetKind))
	}
	if filter.TargetID != "" {
		q = q.Where("target_id = ?", filter.TargetID)
	}
	if filter.Action != "" {
		q = q.Where("action = ?", string(filter.Action))
	}
	if !filter.Since.IsZero() {
		q = q.Where("timestamp >= ?", filter.Since)
	}
	if !filter.Until.IsZero() {
		q = q.Where("timestamp <= ?", filter.Until)
	}

	limit := filter.Limit
	if limit == 0 {
		limit = 100 // Default limit
	}
	q = q.Limit(limit)

	if filter.Offset > 0 {
		q = q.Offset(filter.Offset)
	}

	q = q.Order("timestamp DESC")
	err := dbkit.WithErr1(q.Scan(ctx), "GetAuditLog").Err()
	if err != nil {
		return nil, err
	}

	return logs, nil
}

// PruneAuditLog deletes audit entries older than the configured
// retention. A zero retention disables pruning.
func (s *Service) PruneAuditLog(ctx context.Context, cfg Config) (int64, error) {
	if cfg.AuditRetention <= 0 {
		return 0, nil
	}
	cutoff := nowUTC().Add(-cfg.AuditRetention)
	result, err := s.db.NewDelete().
		Table("permission_audit_log").
		Where("timestamp < ?", cutoff).
		Exec(ctx)
	err = dbkit.WithErr(result, err, "PruneAuditLog").Err()
	if err != nil {
		return 0, err
	}
	rows, _ := result.RowsAffected()
	if rows > 0 {
		s.logMutation(ctx, "audit log pruned", slog.Int64("entries", rows))
	}
	return rows, nil
}
