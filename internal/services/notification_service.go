package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"veriboard/internal/logger"
	"veriboard/internal/metrics"
	"veriboard/internal/models"
)

var errNoTransports = errors.New("no mail transport configured")

// DeliveryResult is the outcome of a dispatch; SendCode never returns an error.
type DeliveryResult struct {
	Delivered bool   `json:"delivered"`
	Transport string `json:"transport,omitempty"`
	Attempts  int    `json:"attempts"`
	Error     string `json:"error,omitempty"`
}

type NotificationOptions struct {
	MaxAttempts int
	SendTimeout time.Duration
	// LogCodes writes undelivered codes to the log for local development.
	LogCodes bool
	CodeTTL  time.Duration
}

type NotificationService struct {
	transports []MailTransport
	opts       NotificationOptions
}

func NewNotificationService(transports []MailTransport, opts NotificationOptions) *NotificationService {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 3
	}
	if opts.SendTimeout <= 0 {
		opts.SendTimeout = 20 * time.Second
	}
	if opts.CodeTTL <= 0 {
		opts.CodeTTL = defaultOTPTTL
	}
	if len(transports) == 0 {
		logger.Log.Warn("[notify] no email transport configured; codes will not be delivered")
	}
	return &NotificationService{transports: transports, opts: opts}
}

// SendCode renders the purpose template and walks the transport chain in order,
// wrapping around until one succeeds or the attempt budget is spent.
// Every transport is tried at least once.
func (s *NotificationService) SendCode(ctx context.Context, email, code string, purpose models.OTPPurpose) DeliveryResult {
	res := s.send(ctx, email, code, purpose)
	s.record(email, code, purpose, res)
	return res
}

// SendCodeAsync dispatches in the background; the request context only contributes values.
func (s *NotificationService) SendCodeAsync(ctx context.Context, email, code string, purpose models.OTPPurpose) {
	bg := context.WithoutCancel(ctx)
	go func() {
		ctx, cancel := context.WithTimeout(bg, s.opts.SendTimeout)
		defer cancel()
		s.SendCode(ctx, email, code, purpose)
	}()
}

func (s *NotificationService) send(ctx context.Context, email, code string, purpose models.OTPPurpose) DeliveryResult {
	if len(s.transports) == 0 {
		return DeliveryResult{Error: errNoTransports.Error()}
	}

	msg, err := renderCodeEmail(email, code, purpose, int(s.opts.CodeTTL/time.Minute))
	if err != nil {
		return DeliveryResult{Error: err.Error()}
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.SendTimeout)
	defer cancel()

	tries := s.opts.MaxAttempts
	if tries < len(s.transports) {
		tries = len(s.transports)
	}

	var lastErr error
	for i := 0; i < tries; i++ {
		if ctx.Err() != nil {
			lastErr = ctx.Err()
			break
		}
		t := s.transports[i%len(s.transports)]
		if err := t.Send(ctx, msg); err != nil {
			lastErr = err
			logger.Log.WithFields(logrus.Fields{
				"transport": t.Name(),
				"attempt":   i + 1,
				"purpose":   purpose,
			}).WithError(err).Warn("[notify][send] transport failed")
			continue
		}
		return DeliveryResult{Delivered: true, Transport: t.Name(), Attempts: i + 1}
	}

	res := DeliveryResult{Attempts: tries}
	if lastErr != nil {
		res.Error = lastErr.Error()
	}
	return res
}

func (s *NotificationService) record(email, code string, purpose models.OTPPurpose, res DeliveryResult) {
	metrics.OTPDelivery(string(purpose), res.Transport, res.Delivered)

	entry := logger.Log.WithFields(logrus.Fields{
		"event":     "otp_delivery",
		"to":        maskEmail(email),
		"purpose":   purpose,
		"delivered": res.Delivered,
		"transport": res.Transport,
		"attempts":  res.Attempts,
	})
	if res.Delivered {
		entry.Info("[notify] code delivered")
		return
	}
	if s.opts.LogCodes {
		entry = entry.WithField("code", code)
	}
	entry.WithField("error", res.Error).Error("[notify] code delivery failed")
}

func maskEmail(email string) string {
	at := strings.LastIndex(email, "@")
	if at <= 0 {
		return "***"
	}
	return email[:1] + "***" + email[at:]
}
