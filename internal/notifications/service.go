package notifications

import (
	"context"
	"fmt"
	"time"

	"github.com/0xPuncker/andon-notifier/internal/report"
	"github.com/0xPuncker/andon-notifier/pkg/types"
	"github.com/sirupsen/logrus"
)

// NotificationService emails the latest period's report to every department.
type NotificationService struct {
	source       report.Source
	directory    *Directory
	mailer       Mailer
	logger       *logrus.Logger
	sendDelay    time.Duration
	dashboardURL string
}

type Option func(*NotificationService)

// WithSendDelay sets the pause after each email, keeping the relay under its rate limit.
func WithSendDelay(d time.Duration) Option {
	return func(s *NotificationService) {
		s.sendDelay = d
	}
}

func WithDashboardURL(url string) Option {
	return func(s *NotificationService) {
		s.dashboardURL = url
	}
}

func NewNotificationService(source report.Source, directory *Directory, mailer Mailer, logger *logrus.Logger, options ...Option) *NotificationService {
	s := &NotificationService{
		source:    source,
		directory: directory,
		mailer:    mailer,
		logger:    logger,
	}
	for _, option := range options {
		option(s)
	}
	return s
}

// Send looks up the latest period and mails each department in turn. Lookup failures
// abort the run; a failed email is logged and the remaining departments still get theirs.
func (s *NotificationService) Send(ctx context.Context) error {
	period, err := s.source.LatestPeriod(ctx)
	if err != nil {
		return fmt.Errorf("failed to find latest report period: %w", err)
	}

	summaries, err := s.source.DepartmentSummaries(ctx, period)
	if err != nil {
		return fmt.Errorf("failed to load department summaries: %w", err)
	}

	departments, err := s.directory.Departments()
	if err != nil {
		return err
	}

	byDepartment := make(map[string]types.DepartmentSummary, len(summaries))
	for _, summary := range summaries {
		byDepartment[summary.Department] = summary
	}

	var messages []*Message
	for _, dept := range departments {
		summary, ok := byDepartment[dept.Name]
		if !ok {
			summary = types.DepartmentSummary{Department: dept.Name}
		}
		delete(byDepartment, dept.Name)

		if len(dept.Recipients) == 0 {
			s.logger.WithField("department", dept.Name).Debug("No recipients configured, skipping department")
			continue
		}

		msg, err := formatDepartmentReport(period, dept, summary, s.dashboardURL)
		if err != nil {
			return err
		}
		messages = append(messages, msg)
	}

	for name := range byDepartment {
		s.logger.WithField("department", name).Warn("Department has report data but no recipient entry")
	}

	var sent, failed int
	for _, msg := range messages {
		if err := s.mailer.Send(ctx, msg); err != nil {
			failed++
			s.logger.WithFields(logrus.Fields{
				"subject": msg.Subject,
				"to":      msg.To,
				"error":   err.Error(),
			}).Error("Failed to send department report")
		} else {
			sent++
			s.logger.WithFields(logrus.Fields{
				"subject": msg.Subject,
				"to":      msg.To,
			}).Info("Department report sent")
		}

		if err := sleep(ctx, s.sendDelay); err != nil {
			return err
		}
	}

	s.logger.WithFields(logrus.Fields{
		"period": period.Format("2006-01-02"),
		"sent":   sent,
		"failed": failed,
	}).Info("Completed department report run")
	return nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
