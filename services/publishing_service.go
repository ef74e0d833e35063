package services

import (
	"context"
	"strings"
	"time"

	"publishing-api/models"
	"publishing-api/utils"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultPageLimit = 50
	MaxPageLimit     = 200
)

// ApprovalNotifier is told when a page starts waiting for review.
type ApprovalNotifier interface {
	NotifyApprovalRequested(ctx context.Context, wf *models.PublishingWorkflow, page *models.Page) error
}

// PublishingService is the approval gate between draft and published pages.
type PublishingService struct {
	store    PublishingStore
	notifier ApprovalNotifier
	log      *zap.Logger
	tracer   trace.Tracer
	now      func() time.Time
}

type PublishingOption func(*PublishingService)

// WithNotifier sets the approver notifier. Without one no mail is sent.
func WithNotifier(n ApprovalNotifier) PublishingOption {
	return func(s *PublishingService) { s.notifier = n }
}

func WithLogger(l *zap.Logger) PublishingOption {
	return func(s *PublishingService) { s.log = l }
}

// WithClock overrides time.Now, mostly for tests.
func WithClock(now func() time.Time) PublishingOption {
	return func(s *PublishingService) { s.now = now }
}

func NewPublishingService(store PublishingStore, opts ...PublishingOption) *PublishingService {
	s := &PublishingService{
		store:  store,
		log:    zap.NewNop(),
		tracer: otel.Tracer("publishing-api/services"),
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// WorkflowInput configures approval for a page.
type WorkflowInput struct {
	RequiresApproval bool
	// Approvers replaces the stored list; nil keeps it.
	Approvers []string
}

// ApprovalResult is the outcome of ApprovePage.
type ApprovalResult struct {
	Workflow *models.PublishingWorkflow
	Page     *models.Page
}

func (s *PublishingService) GetWorkflow(ctx context.Context, pageID string) (*models.PublishingWorkflow, error) {
	ctx, span := s.startSpan(ctx, "GetWorkflow", pageID)
	defer span.End()

	if err := requirePageID(pageID); err != nil {
		return nil, err
	}
	wf, err := s.store.GetWorkflow(ctx, pageID)
	return wf, traceErr(span, err)
}

// CreateOrUpdateWorkflow upserts the workflow of a page. Requiring approval
// puts the record in pending; otherwise the approval state is cleared.
func (s *PublishingService) CreateOrUpdateWorkflow(ctx context.Context, pageID string, in WorkflowInput) (*models.PublishingWorkflow, error) {
	ctx, span := s.startSpan(ctx, "CreateOrUpdateWorkflow", pageID)
	defer span.End()

	if err := requirePageID(pageID); err != nil {
		return nil, err
	}
	approvers, err := normalizeApprovers(in.Approvers)
	if err != nil {
		return nil, err
	}

	existing, err := s.store.GetWorkflow(ctx, pageID)
	if err != nil {
		return nil, traceErr(span, err)
	}

	wf := &models.PublishingWorkflow{PageID: pageID}
	if existing != nil {
		wf.Approvers = existing.Approvers
		wf.RequestedBy = existing.RequestedBy
	}
	if in.Approvers != nil {
		wf.Approvers = approvers
	}
	wf.RequiresApproval = in.RequiresApproval
	if in.RequiresApproval {
		wf.SetDecision(models.Pending{})
	} else {
		wf.SetDecision(nil)
	}
	now := s.now()
	wf.CreatedAt = now
	wf.UpdatedAt = now

	saved, err := s.store.SaveWorkflow(ctx, wf)
	if err != nil {
		return nil, traceErr(span, err)
	}

	s.log.Info("publishing workflow configured",
		zap.String("page_id", pageID),
		zap.Bool("requires_approval", saved.RequiresApproval),
	)
	if saved.IsPending() {
		s.notifyApprovers(ctx, saved)
	}
	return saved, nil
}

// RequestApproval puts the page in pending regardless of any earlier decision.
func (s *PublishingService) RequestApproval(ctx context.Context, pageID, actorID string) (*models.PublishingWorkflow, error) {
	ctx, span := s.startSpan(ctx, "RequestApproval", pageID)
	defer span.End()

	if err := requirePageID(pageID); err != nil {
		return nil, err
	}
	if err := requireActor(actorID); err != nil {
		return nil, err
	}

	existing, err := s.store.GetWorkflow(ctx, pageID)
	if err != nil {
		return nil, traceErr(span, err)
	}

	wf := &models.PublishingWorkflow{PageID: pageID}
	if existing != nil {
		wf.Approvers = existing.Approvers
	}
	wf.RequiresApproval = true
	wf.SetDecision(models.Pending{})
	wf.RequestedBy = &actorID
	now := s.now()
	wf.CreatedAt = now
	wf.UpdatedAt = now

	saved, err := s.store.SaveWorkflow(ctx, wf)
	if err != nil {
		return nil, traceErr(span, err)
	}

	s.log.Info("approval requested", zap.String("page_id", pageID), zap.String("actor", actorID))
	s.notifyApprovers(ctx, saved)
	return saved, nil
}

// ApprovePage approves a pending workflow and publishes its page in one
// transaction: either both rows change or neither does.
func (s *PublishingService) ApprovePage(ctx context.Context, pageID, actorID string) (*ApprovalResult, error) {
	ctx, span := s.startSpan(ctx, "ApprovePage", pageID)
	defer span.End()

	if err := requirePageID(pageID); err != nil {
		return nil, err
	}
	if err := requireActor(actorID); err != nil {
		return nil, err
	}

	now := s.now()
	var result ApprovalResult
	err := s.store.Transaction(ctx, func(tx PublishingStore) error {
		wf, err := tx.DecidePending(ctx, pageID, models.Approved{By: actorID, At: now}, now)
		if err != nil {
			return err
		}
		page, err := tx.PublishPage(ctx, pageID, actorID, now)
		if err != nil {
			return err
		}
		result = ApprovalResult{Workflow: wf, Page: page}
		return nil
	})
	if err != nil {
		return nil, traceErr(span, err)
	}

	s.log.Info("page approved and published", zap.String("page_id", pageID), zap.String("actor", actorID))
	return &result, nil
}

// RejectPage rejects a pending workflow. The page itself is left as is.
func (s *PublishingService) RejectPage(ctx context.Context, pageID, actorID, reason string) (*models.PublishingWorkflow, error) {
	ctx, span := s.startSpan(ctx, "RejectPage", pageID)
	defer span.End()

	if err := requirePageID(pageID); err != nil {
		return nil, err
	}
	if err := requireActor(actorID); err != nil {
		return nil, err
	}
	reason = utils.SanitizeInput(reason)
	if reason == "" {
		return nil, newValidationError("reason", "Rejection reason is required")
	}

	now := s.now()
	wf, err := s.store.DecidePending(ctx, pageID, models.Rejected{By: actorID, At: now, Reason: reason}, now)
	if err != nil {
		return nil, traceErr(span, err)
	}

	s.log.Info("page rejected", zap.String("page_id", pageID), zap.String("actor", actorID))
	return wf, nil
}

func (s *PublishingService) ListPendingApprovals(ctx context.Context, limit, offset int) ([]models.PendingApproval, error) {
	ctx, span := s.startSpan(ctx, "ListPendingApprovals", "")
	defer span.End()

	limit, offset = ClampPage(limit, offset)
	rows, err := s.store.ListPendingApprovals(ctx, limit, offset)
	return rows, traceErr(span, err)
}

// ListScheduledPages returns scheduled pages, soonest first.
func (s *PublishingService) ListScheduledPages(ctx context.Context, limit, offset int) ([]models.Page, error) {
	ctx, span := s.startSpan(ctx, "ListScheduledPages", "")
	defer span.End()

	limit, offset = ClampPage(limit, offset)
	pages, err := s.store.ListPagesByStatus(ctx, models.PageStatusScheduled, limit, offset)
	return pages, traceErr(span, err)
}

// GetPublishingStats recomputes the counters from the tables on every call.
func (s *PublishingService) GetPublishingStats(ctx context.Context) (*models.PublishingStats, error) {
	ctx, span := s.startSpan(ctx, "GetPublishingStats", "")
	defer span.End()

	var (
		byStatus map[models.PageStatus]int64
		pending  int64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		byStatus, err = s.store.CountPagesByStatus(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		pending, err = s.store.CountPendingApprovals(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, traceErr(span, err)
	}

	stats := &models.PublishingStats{
		Draft:            byStatus[models.PageStatusDraft],
		Scheduled:        byStatus[models.PageStatusScheduled],
		Published:        byStatus[models.PageStatusPublished],
		Archived:         byStatus[models.PageStatusArchived],
		PendingApprovals: pending,
	}
	stats.Total = stats.Draft + stats.Scheduled + stats.Published + stats.Archived
	return stats, nil
}

// ClampPage applies the default and maximum page size.
func ClampPage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = DefaultPageLimit
	}
	if limit > MaxPageLimit {
		limit = MaxPageLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func (s *PublishingService) notifyApprovers(ctx context.Context, wf *models.PublishingWorkflow) {
	if s.notifier == nil || len(wf.Approvers) == 0 {
		return
	}
	page, err := s.store.GetPage(ctx, wf.PageID)
	if err != nil || page == nil {
		s.log.Warn("approval notification skipped", zap.String("page_id", wf.PageID), zap.Error(err))
		return
	}
	if err := s.notifier.NotifyApprovalRequested(ctx, wf, page); err != nil {
		s.log.Warn("approval notification failed", zap.String("page_id", wf.PageID), zap.Error(err))
	}
}

func (s *PublishingService) startSpan(ctx context.Context, op, pageID string) (context.Context, trace.Span) {
	ctx, span := s.tracer.Start(ctx, "publishing."+op)
	if pageID != "" {
		span.SetAttributes(attribute.String("page.id", pageID))
	}
	return ctx, span
}

func traceErr(span trace.Span, err error) error {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func requirePageID(pageID string) error {
	if strings.TrimSpace(pageID) == "" {
		return newValidationError("pageId", "Page id is required")
	}
	return nil
}

func requireActor(actorID string) error {
	if strings.TrimSpace(actorID) == "" {
		return ErrUnauthorized
	}
	return nil
}

func normalizeApprovers(in []string) ([]string, error) {
	out := make([]string, 0, len(in))
	seen := make(map[string]bool, len(in))
	for _, raw := range in {
		addr := strings.ToLower(utils.SanitizeInput(raw))
		if addr == "" {
			continue
		}
		if !utils.ValidateEmail(addr) {
			return nil, newValidationError("approvers", "invalid approver e-mail "+addr)
		}
		if seen[addr] {
			continue
		}
		seen[addr] = true
		out = append(out, addr)
	}
	return out, nil
}
