// Package dispatcher runs the notification batch: schedule evaluation,
// report generation and delivery over every tenant channel.
package dispatcher

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/blockedby/stockwatch-os/internal/logger"
	"github.com/blockedby/stockwatch-os/internal/models"
	"github.com/blockedby/stockwatch-os/internal/schedule"
)

// TenantSource lists the tenants a batch run iterates over.
type TenantSource interface {
	ListTenants(ctx context.Context) ([]models.Tenant, error)
}

// ReportGenerator builds the report snapshot for one tenant.
type ReportGenerator interface {
	Generate(ctx context.Context, tenant models.Tenant) (*models.ReportModel, error)
}

// MailSender delivers a report over the tenant's mail channel. The returned
// detail carries delivery notes (partial recipient rejections) on success.
type MailSender interface {
	Send(ctx context.Context, tenant models.Tenant, rep *models.ReportModel) (string, error)
}

// ChatSender delivers a report over the tenant's chat channel.
type ChatSender interface {
	Send(ctx context.Context, tenant models.Tenant, rep *models.ReportModel) error
}

// DispatchedEvent is published for every dispatch result.
type DispatchedEvent struct {
	RunID      uuid.UUID      `json:"run_id"`
	TenantID   uuid.UUID      `json:"tenant_id"`
	TenantName string         `json:"tenant_name"`
	Channel    models.Channel `json:"channel"`
	Outcome    models.Outcome `json:"outcome"`
	Detail     string         `json:"detail,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

// EventPublisher pushes dispatch events to downstream consumers.
type EventPublisher interface {
	PublishDispatched(ctx context.Context, event DispatchedEvent) error
}

// Service orchestrates one batch run. Tenants are processed concurrently by
// a bounded worker pool; the two channels of one tenant run sequentially so
// a tenant never holds more than one outbound connection.
type Service struct {
	tenants TenantSource
	reports ReportGenerator
	mail    MailSender
	chat    ChatSender
	pub     EventPublisher // optional
	limiter *rate.Limiter
	workers int
	log     *logger.Logger
}

// NewService creates a dispatcher service. pub may be nil, in which case no
// events are published. sendRate paces outbound sends across all workers.
func NewService(
	tenants TenantSource,
	reports ReportGenerator,
	mail MailSender,
	chat ChatSender,
	pub EventPublisher,
	workers int,
	sendRate float64,
	log *logger.Logger,
) *Service {
	if workers < 1 {
		workers = 1
	}
	if sendRate <= 0 {
		sendRate = 1
	}
	return &Service{
		tenants: tenants,
		reports: reports,
		mail:    mail,
		chat:    chat,
		pub:     pub,
		limiter: rate.NewLimiter(rate.Limit(sendRate), 1),
		workers: workers,
		log:     log,
	}
}

// RunBatch executes the batch for the given calendar day and returns the run
// summary with all per-channel results. Per-tenant failures never abort the
// batch; only a tenant list failure does.
func (s *Service) RunBatch(ctx context.Context, today time.Time) (*models.NotificationRun, []models.DispatchResult, error) {
	run := &models.NotificationRun{
		ID:        uuid.New(),
		RunDate:   time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, today.Location()),
		StartedAt: time.Now(),
	}

	tenants, err := s.tenants.ListTenants(ctx)
	if err != nil {
		return nil, nil, err
	}

	s.log.Info().
		Str("run_id", run.ID.String()).
		Time("date", today).
		Int("tenants", len(tenants)).
		Msg("starting batch run")

	var (
		mu      sync.Mutex
		results []models.DispatchResult
		wg      sync.WaitGroup
	)
	sem := make(chan struct{}, s.workers)

	for _, tenant := range tenants {
		wg.Add(1)
		sem <- struct{}{}
		go func(t models.Tenant) {
			defer wg.Done()
			defer func() { <-sem }()

			res := s.dispatchTenant(ctx, run.ID, t, today)

			mu.Lock()
			results = append(results, res...)
			mu.Unlock()
		}(tenant)
	}
	wg.Wait()

	run.FinishedAt = time.Now()
	run.Count(results)

	s.log.Info().
		Str("run_id", run.ID.String()).
		Int("sent", run.Sent).
		Int("skipped", run.Skipped).
		Int("failed", run.Failed).
		Msg("batch run finished")

	return run, results, nil
}

// dispatchTenant handles both channels of one tenant sequentially. The
// report is generated at most once and shared between the channels.
func (s *Service) dispatchTenant(ctx context.Context, runID uuid.UUID, t models.Tenant, today time.Time) []models.DispatchResult {
	if !t.HasEnabledChannel() {
		s.log.Debug().Str("tenant", t.Name).Msg("no enabled channel, nothing to do")
		return nil
	}

	var results []models.DispatchResult

	mailReady := false
	if t.MailEnabled {
		switch {
		case !schedule.IsDueToday(t.MailFrequency, today):
			results = append(results, s.result(runID, t, models.ChannelMail, models.OutcomeSkipped,
				"not due today ("+string(t.MailFrequency)+")"))
		case !t.MailConfigured():
			results = append(results, s.result(runID, t, models.ChannelMail, models.OutcomeSkipped,
				"incomplete channel settings"))
		default:
			mailReady = true
		}
	}

	chatReady := false
	if t.ChatEnabled {
		switch {
		case !schedule.IsDueToday(t.ChatFrequency, today):
			results = append(results, s.result(runID, t, models.ChannelChat, models.OutcomeSkipped,
				"not due today ("+string(t.ChatFrequency)+")"))
		case !t.ChatConfigured():
			results = append(results, s.result(runID, t, models.ChannelChat, models.OutcomeSkipped,
				"incomplete channel settings"))
		default:
			chatReady = true
		}
	}

	if !mailReady && !chatReady {
		return s.publish(ctx, results)
	}

	rep, err := s.reports.Generate(ctx, t)
	if err != nil {
		// one broken inventory read fails every due channel of this
		// tenant, and only this tenant
		s.log.Error().Err(err).Str("tenant", t.Name).Msg("report generation failed")
		if mailReady {
			results = append(results, s.result(runID, t, models.ChannelMail, models.OutcomeFailed, err.Error()))
		}
		if chatReady {
			results = append(results, s.result(runID, t, models.ChannelChat, models.OutcomeFailed, err.Error()))
		}
		return s.publish(ctx, results)
	}

	if mailReady {
		results = append(results, s.sendMail(ctx, runID, t, rep))
	}
	if chatReady {
		results = append(results, s.sendChat(ctx, runID, t, rep))
	}

	return s.publish(ctx, results)
}

func (s *Service) sendMail(ctx context.Context, runID uuid.UUID, t models.Tenant, rep *models.ReportModel) models.DispatchResult {
	if err := s.limiter.Wait(ctx); err != nil {
		return s.result(runID, t, models.ChannelMail, models.OutcomeFailed, "run cancelled: "+err.Error())
	}

	detail, err := s.mail.Send(ctx, t, rep)
	if err != nil {
		s.log.Error().Err(err).Str("tenant", t.Name).Msg("mail dispatch failed")
		return s.result(runID, t, models.ChannelMail, models.OutcomeFailed, err.Error())
	}

	s.log.Info().Str("tenant", t.Name).Msg("mail report sent")
	return s.result(runID, t, models.ChannelMail, models.OutcomeSent, detail)
}

func (s *Service) sendChat(ctx context.Context, runID uuid.UUID, t models.Tenant, rep *models.ReportModel) models.DispatchResult {
	if err := s.limiter.Wait(ctx); err != nil {
		return s.result(runID, t, models.ChannelChat, models.OutcomeFailed, "run cancelled: "+err.Error())
	}

	if err := s.chat.Send(ctx, t, rep); err != nil {
		s.log.Error().Err(err).Str("tenant", t.Name).Msg("chat dispatch failed")
		return s.result(runID, t, models.ChannelChat, models.OutcomeFailed, err.Error())
	}

	s.log.Info().Str("tenant", t.Name).Msg("chat report sent")
	return s.result(runID, t, models.ChannelChat, models.OutcomeSent, "")
}

func (s *Service) result(runID uuid.UUID, t models.Tenant, ch models.Channel, outcome models.Outcome, detail string) models.DispatchResult {
	return models.DispatchResult{
		ID:         uuid.New(),
		RunID:      runID,
		TenantID:   t.ID,
		TenantName: t.Name,
		Channel:    ch,
		Outcome:    outcome,
		Detail:     detail,
		CreatedAt:  time.Now(),
	}
}

// publish pushes events for the given results and passes them through.
// Publishing failures are logged, never escalated.
func (s *Service) publish(ctx context.Context, results []models.DispatchResult) []models.DispatchResult {
	if s.pub == nil {
		return results
	}
	for _, r := range results {
		event := DispatchedEvent{
			RunID:      r.RunID,
			TenantID:   r.TenantID,
			TenantName: r.TenantName,
			Channel:    r.Channel,
			Outcome:    r.Outcome,
			Detail:     r.Detail,
			CreatedAt:  r.CreatedAt,
		}
		if err := s.pub.PublishDispatched(ctx, event); err != nil {
			s.log.Warn().Err(err).Str("tenant", r.TenantName).Msg("failed to publish dispatch event")
		}
	}
	return results
}
