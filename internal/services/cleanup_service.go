package services

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"veriboard/internal/logger"
)

const purgeSpec = "@every 1h"

type otpPurger interface {
	PurgeExpired(ctx context.Context, olderThan time.Duration) (int64, error)
}

// CleanupService schedules housekeeping jobs. Code lookups never rely on it;
// expired rows are already invisible to verification.
type CleanupService struct {
	cron       *cron.Cron
	otp        otpPurger
	purgeAfter time.Duration
}

func NewCleanupService(otp otpPurger, purgeAfter time.Duration) *CleanupService {
	return &CleanupService{
		cron:       cron.New(cron.WithLocation(time.UTC)),
		otp:        otp,
		purgeAfter: purgeAfter,
	}
}

func (s *CleanupService) Start() error {
	if _, err := s.cron.AddFunc(purgeSpec, s.PurgeOTPs); err != nil {
		return fmt.Errorf("schedule otp purge: %w", err)
	}
	s.cron.Start()
	logger.Log.WithField("spec", purgeSpec).Info("[cleanup] scheduler started")
	return nil
}

// Stop waits for a running job to finish or the context to end.
func (s *CleanupService) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
	}
}

func (s *CleanupService) PurgeOTPs() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	n, err := s.otp.PurgeExpired(ctx, s.purgeAfter)
	if err != nil {
		logger.Log.WithError(err).Error("[cleanup][otp] purge failed")
		return
	}
	logger.Log.WithFields(logrus.Fields{"deleted": n}).Info("[cleanup][otp] purged expired codes")
}
