// Package jobs управляет фоновыми задачами (cron).
// scheduler.go настраивает расписание: очистка просроченных сессий подтверждения
// и ежедневная сводка по зависшим заявкам для оператора.
package jobs

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/payout-bot/internal/common"
	"serotonyl.ru/payout-bot/internal/features/payouts"
	"serotonyl.ru/payout-bot/internal/middleware"
)

const purgeSchedule = "* * * * *"

const digestLimit = 15

// SessionPurger — confirm.Service.
type SessionPurger interface {
	PurgeExpired(ctx context.Context) (int, error)
}

// PendingLister — payouts.Service.
type PendingLister interface {
	ListPending(ctx context.Context, olderThan time.Duration) ([]*payouts.Request, error)
}

// Notifier — сообщения оператору.
type Notifier interface {
	Notify(ctx context.Context, text string) error
}

// Options — расписание и пороги.
type Options struct {
	Location       *time.Location
	DigestSchedule string
	StaleAfter     time.Duration
}

// Scheduler управляет фоновыми задачами.
type Scheduler struct {
	cron     *cron.Cron
	sessions SessionPurger
	pending  PendingLister
	notifier Notifier
	opts     Options
}

// NewScheduler создаёт планировщик задач в часовом поясе opts.Location.
func NewScheduler(sessions SessionPurger, pending PendingLister, notifier Notifier, opts Options) *Scheduler {
	if opts.Location == nil {
		opts.Location = common.LoadLocation("Asia/Kolkata")
	}
	return &Scheduler{
		cron:     cron.New(cron.WithLocation(opts.Location)),
		sessions: sessions,
		pending:  pending,
		notifier: notifier,
		opts:     opts,
	}
}

// Start регистрирует задачи и запускает планировщик.
func (s *Scheduler) Start(ctx context.Context) error {
	if _, err := s.cron.AddFunc(purgeSchedule, func() {
		defer middleware.RecoverFromPanic()
		s.PurgeSessions(ctx)
	}); err != nil {
		return fmt.Errorf("ошибка регистрации очистки сессий: %w", err)
	}

	if _, err := s.cron.AddFunc(s.opts.DigestSchedule, func() {
		defer middleware.RecoverFromPanic()
		s.PendingDigest(ctx)
	}); err != nil {
		return fmt.Errorf("ошибка регистрации сводки %q: %w", s.opts.DigestSchedule, err)
	}

	s.cron.Start()
	log.WithFields(log.Fields{
		"location": s.opts.Location.String(),
		"digest":   s.opts.DigestSchedule,
	}).Info("Планировщик задач запущен")
	return nil
}

// Stop останавливает планировщик и ждёт текущие задачи.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	log.Info("Планировщик задач остановлен")
}

// PurgeSessions удаляет просроченные сессии подтверждения.
func (s *Scheduler) PurgeSessions(ctx context.Context) {
	n, err := s.sessions.PurgeExpired(ctx)
	if err != nil {
		log.WithError(err).Error("[CRON] Ошибка очистки сессий подтверждения")
		return
	}
	if n > 0 {
		log.WithField("purged", n).Debug("[CRON] Просроченные сессии подтверждения удалены")
	}
}

// PendingDigest напоминает оператору о заявках, ждущих дольше StaleAfter.
func (s *Scheduler) PendingDigest(ctx context.Context) {
	list, err := s.pending.ListPending(ctx, s.opts.StaleAfter)
	if err != nil {
		log.WithError(err).Error("[CRON] Ошибка чтения зависших заявок")
		return
	}
	if len(list) == 0 {
		log.Debug("[CRON] Зависших заявок нет")
		return
	}

	total := decimal.Zero
	for _, req := range list {
		total = total.Add(req.Amount)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "⏰ %s waiting longer than %s, %s total\n",
		common.Pluralize(len(list), "payout is", "payouts are"), s.opts.StaleAfter, common.FormatINR(total))
	for i, req := range list {
		if i == digestLimit {
			fmt.Fprintf(&sb, "\n…and %d more, see /pending", len(list)-digestLimit)
			break
		}
		fmt.Fprintf(&sb, "\n/confirm_payout %s (%s, %s)",
			req.ID, common.FormatINR(req.Amount), common.FormatDateTime(req.CreatedAt, s.opts.Location))
	}

	if err := s.notifier.Notify(ctx, sb.String()); err != nil {
		log.WithError(err).Warn("[CRON] Не удалось отправить сводку оператору")
		return
	}
	log.WithField("pending", len(list)).Info("[CRON] Сводка по зависшим заявкам отправлена")
}
