package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Malitic/Everbright-Optical-Clinic-sub007/internal/identity"
	"github.com/Malitic/Everbright-Optical-Clinic-sub007/internal/shared"
)

// Notifier performs synchronous fan-out. None of its methods return errors or
// let a collaborator panic escape; inspect the Result instead.
type Notifier struct {
	directory Directory
	publisher Publisher
	audit     AuditPort
	metrics   *Metrics
	logger    *slog.Logger
	now       func() time.Time
}

// NewNotifier wires the collaborators. audit and metrics may be nil.
func NewNotifier(directory Directory, publisher Publisher, audit AuditPort, metrics *Metrics, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{
		directory: directory,
		publisher: publisher,
		audit:     audit,
		metrics:   metrics,
		logger:    logger,
		now:       time.Now,
	}
}

// NotifyAppointmentChange tells the patient, the optometrist, the branch staff
// and every admin about an appointment change.
func (n *Notifier) NotifyAppointmentChange(ctx context.Context, appt Appointment, changeType, message string) (res Result) {
	res.Event = AppointmentEvent(changeType)
	defer n.finish(ctx, &res)

	recipients := NewRecipientSet(appt.PatientID, appt.OptometristID)
	if appt.BranchID != nil {
		n.resolveBranch(ctx, &res, recipients, identity.RoleStaff, *appt.BranchID)
	}
	n.resolveRole(ctx, &res, recipients, identity.RoleAdmin)
	res.Recipients = recipients.IDs()

	res.Topics = []Topic{TopicAppointments, TopicNotifications}
	res.Topics = appendUserTopics(res.Topics, res.Recipients)
	if appt.BranchID != nil {
		res.Topics = append(res.Topics, BranchTopic(*appt.BranchID))
	}

	payload := AppointmentPayload{
		ID:          appt.ID,
		Type:        changeType,
		Message:     message,
		Appointment: appointmentSummary(appt),
		Timestamp:   n.timestamp(),
	}
	n.publishAll(ctx, &res, payload)
	return res
}

// NotifyInventoryChange tells the branch staff and every admin about a stock change.
func (n *Notifier) NotifyInventoryChange(ctx context.Context, product Product, branch Branch, changeType, message string, stockLevel, threshold int) (res Result) {
	res.Event = InventoryEvent(changeType)
	defer n.finish(ctx, &res)

	recipients := NewRecipientSet()
	n.resolveBranch(ctx, &res, recipients, identity.RoleStaff, branch.ID)
	n.resolveRole(ctx, &res, recipients, identity.RoleAdmin)
	res.Recipients = recipients.IDs()

	res.Topics = []Topic{TopicInventory, TopicNotifications}
	res.Topics = appendUserTopics(res.Topics, res.Recipients)
	res.Topics = append(res.Topics, BranchTopic(branch.ID))

	payload := InventoryPayload{
		Type:    changeType,
		Message: message,
		Product: product,
		Branch:  branch,
		Stock: StockSnapshot{
			CurrentLevel: stockLevel,
			Threshold:    threshold,
			Status:       StockStatus(stockLevel, threshold),
		},
		Timestamp: n.timestamp(),
	}
	n.publishAll(ctx, &res, payload)
	return res
}

// NotifyUsers publishes a generic notification to the given recipients.
func (n *Notifier) NotifyUsers(ctx context.Context, title, message, kind string, recipientIDs []int64, data map[string]any) (res Result) {
	res.Event = NotificationEvent(kind)
	defer n.finish(ctx, &res)
	n.notifyUsers(ctx, &res, title, message, kind, NewRecipientSet(recipientIDs...), data)
	return res
}

// NotifyRole publishes a generic notification to every holder of role.
func (n *Notifier) NotifyRole(ctx context.Context, title, message string, role identity.Role, kind string, data map[string]any) (res Result) {
	res.Event = NotificationEvent(kind)
	defer n.finish(ctx, &res)
	recipients := NewRecipientSet()
	n.resolveRole(ctx, &res, recipients, role)
	n.notifyUsers(ctx, &res, title, message, kind, recipients, data)
	return res
}

// NotifyBranch publishes a generic notification to the staff of a branch.
func (n *Notifier) NotifyBranch(ctx context.Context, title, message string, branchID int64, kind string, data map[string]any) (res Result) {
	res.Event = NotificationEvent(kind)
	defer n.finish(ctx, &res)
	recipients := NewRecipientSet()
	n.resolveBranch(ctx, &res, recipients, identity.RoleStaff, branchID)
	n.notifyUsers(ctx, &res, title, message, kind, recipients, data)
	return res
}

func (n *Notifier) notifyUsers(ctx context.Context, res *Result, title, message, kind string, recipients *RecipientSet, data map[string]any) {
	if data == nil {
		data = map[string]any{}
	}
	res.Recipients = recipients.IDs()
	res.Topics = appendUserTopics([]Topic{TopicNotifications}, res.Recipients)
	payload := GeneralPayload{
		Title:     title,
		Message:   message,
		Type:      kind,
		Data:      data,
		Timestamp: n.timestamp(),
	}
	n.publishAll(ctx, res, payload)
}

func (n *Notifier) resolveRole(ctx context.Context, res *Result, into *RecipientSet, role identity.Role) {
	if n.directory == nil {
		return
	}
	var ids []int64
	err := guard(func() error {
		var err error
		ids, err = n.directory.UsersWithRole(ctx, role)
		return err
	})
	if err != nil {
		res.Errors = append(res.Errors, fmt.Errorf("%w: role %s: %w", ErrDirectoryLookup, role, err))
		return
	}
	into.Add(ids...)
}

func (n *Notifier) resolveBranch(ctx context.Context, res *Result, into *RecipientSet, role identity.Role, branchID int64) {
	if n.directory == nil {
		return
	}
	var ids []int64
	err := guard(func() error {
		var err error
		ids, err = n.directory.UsersWithRoleAndBranch(ctx, role, branchID)
		return err
	})
	if err != nil {
		res.Errors = append(res.Errors, fmt.Errorf("%w: role %s branch %d: %w", ErrDirectoryLookup, role, branchID, err))
		return
	}
	into.Add(ids...)
}

func (n *Notifier) publishAll(ctx context.Context, res *Result, payload any) {
	if n.publisher == nil {
		return
	}
	for _, topic := range res.Topics {
		err := guard(func() error {
			return n.publisher.Publish(ctx, topic, res.Event, payload)
		})
		if err != nil {
			res.Errors = append(res.Errors, fmt.Errorf("%w: topic %s: %w", ErrTransportPublish, topic, err))
			continue
		}
		res.Published++
	}
}

// finish recovers from panics outside collaborator calls, then logs, audits and
// counts the result.
func (n *Notifier) finish(ctx context.Context, res *Result) {
	if rec := recover(); rec != nil {
		res.Errors = append(res.Errors, fmt.Errorf("%w: %v", ErrCollaboratorPanic, rec))
	}
	n.metrics.observe(*res)
	if res.OK() {
		n.logger.Info("notification sent",
			slog.String("event", res.Event),
			slog.Int("recipients_count", len(res.Recipients)),
			slog.Int("published", res.Published),
		)
		return
	}
	n.logger.Error("notification degraded",
		slog.String("event", res.Event),
		slog.Int("recipients_count", len(res.Recipients)),
		slog.Int("published", res.Published),
		slog.Int("topics", len(res.Topics)),
		slog.Any("error", res.Err()),
	)
	n.recordFailures(ctx, *res)
}

func (n *Notifier) recordFailures(ctx context.Context, res Result) {
	if n.audit == nil {
		return
	}
	errs := make([]string, 0, len(res.Errors))
	for _, err := range res.Errors {
		errs = append(errs, err.Error())
	}
	entry := shared.AuditLog{
		Action:   "notify.failed",
		Entity:   "notification",
		EntityID: res.Event,
		Meta: map[string]any{
			"recipients": len(res.Recipients),
			"published":  res.Published,
			"errors":     errs,
		},
		At: n.now().UTC(),
	}
	err := guard(func() error { return n.audit.Record(context.WithoutCancel(ctx), entry) })
	if err != nil {
		n.logger.Warn("notification audit failed", slog.String("event", res.Event), slog.Any("error", err))
	}
}

func (n *Notifier) timestamp() string {
	return n.now().UTC().Format(time.RFC3339)
}

func appendUserTopics(topics []Topic, ids []int64) []Topic {
	for _, id := range ids {
		topics = append(topics, UserTopic(id))
	}
	return topics
}

// guard converts a panic in fn into an error.
func guard(fn func() error) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("%w: %v", ErrCollaboratorPanic, rec)
		}
	}()
	return fn()
}
