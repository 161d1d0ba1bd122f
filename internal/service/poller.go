package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/diegolsarmond/qchat/internal/models"
)

// StreamPoller is the fallback transport for deployments where the
// provider cannot reach the webhook endpoint. On every tick it opens a
// bounded SSE listen window per active credential and runs the gathered
// events through the same processing path the webhook uses.
type StreamPoller struct {
	db             Storage
	messageService *MessageService
	config         models.ProviderConfig
	retryConfig    models.RetryConfig
	logger         *logrus.Logger
	ctx            context.Context
	cancel         context.CancelFunc
	wg             sync.WaitGroup
	running        bool
	mu             sync.RWMutex
}

func NewStreamPoller(db Storage, messageService *MessageService, providerConfig models.ProviderConfig, retryConfig models.RetryConfig, logger *logrus.Logger) *StreamPoller {
	return &StreamPoller{
		db:             db,
		messageService: messageService,
		config:         providerConfig,
		retryConfig:    retryConfig,
		logger:         logger,
	}
}

// Start begins the background polling process
func (sp *StreamPoller) Start(ctx context.Context) error {
	sp.mu.Lock()
	defer sp.mu.Unlock()

	if sp.running {
		return fmt.Errorf("stream poller is already running")
	}

	if !sp.config.PollingEnabled {
		sp.logger.Info("Stream polling is disabled in configuration")
		return nil
	}

	sp.ctx, sp.cancel = context.WithCancel(ctx)
	sp.running = true

	sp.wg.Add(1)
	go sp.pollLoop()

	sp.logger.WithFields(logrus.Fields{
		"interval": sp.config.PollIntervalSec,
	}).Info("Stream poller started")

	return nil
}

// Stop gracefully stops the polling process
func (sp *StreamPoller) Stop() {
	sp.mu.Lock()
	defer sp.mu.Unlock()

	if !sp.running {
		return
	}

	sp.logger.Info("Stopping stream poller...")
	sp.cancel()
	sp.wg.Wait()
	sp.running = false
	sp.logger.Info("Stream poller stopped")
}

// IsRunning returns whether the poller is currently active
func (sp *StreamPoller) IsRunning() bool {
	sp.mu.RLock()
	defer sp.mu.RUnlock()
	return sp.running
}

func (sp *StreamPoller) pollLoop() {
	defer sp.wg.Done()

	ticker := time.NewTicker(time.Duration(sp.config.PollIntervalSec) * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-sp.ctx.Done():
			return
		case <-ticker.C:
			sp.pollAllCredentials()
		}
	}
}

func (sp *StreamPoller) pollAllCredentials() {
	creds, err := sp.db.ListActiveCredentials(sp.ctx)
	if err != nil {
		sp.logger.WithError(err).Error("Failed to list credentials for polling")
		return
	}

	for i := range creds {
		select {
		case <-sp.ctx.Done():
			return
		default:
		}
		sp.pollWithRetry(&creds[i])
	}
}

// pollWithRetry runs one listen window for a credential with exponential
// backoff on failure.
func (sp *StreamPoller) pollWithRetry(cred *models.Credential) {
	listenTimeout := time.Duration(sp.config.PollTimeoutSec) * time.Second
	ctx, cancel := context.WithTimeout(sp.ctx, listenTimeout+5*time.Second)
	defer cancel()

	backoff := time.Duration(sp.retryConfig.InitialBackoffMs) * time.Millisecond
	maxBackoff := time.Duration(sp.retryConfig.MaxBackoffMs) * time.Millisecond

	for attempt := 0; attempt < sp.retryConfig.MaxAttempts; attempt++ {
		err := sp.pollOnce(ctx, cred, listenTimeout)
		if err == nil {
			return
		}

		if IsVerboseLogging(ctx) {
			sp.logger.WithFields(logrus.Fields{
				LogFieldCredentialID: cred.ID,
				LogFieldAttempt:      attempt + 1,
				"error":              err,
				"backoff":            backoff,
			}).Warn("Stream polling failed, retrying with backoff")
		} else {
			sp.logger.WithField(LogFieldCredentialID, cred.ID).
				Warn("Stream polling failed, retrying")
		}

		// Don't sleep on the last attempt
		if attempt < sp.retryConfig.MaxAttempts-1 {
			select {
			case <-sp.ctx.Done():
				return
			case <-time.After(backoff):
				backoff *= 2
				if backoff > maxBackoff {
					backoff = maxBackoff
				}
			}
		}
	}

	sp.logger.WithField(LogFieldCredentialID, cred.ID).
		Error("Stream polling failed after all retry attempts")
}

func (sp *StreamPoller) pollOnce(ctx context.Context, cred *models.Credential, listenTimeout time.Duration) error {
	client := sp.messageService.clientFor(cred)

	events, err := client.Listen(ctx, listenTimeout)
	if err != nil {
		return err
	}
	if len(events) == 0 {
		sp.logger.WithField(LogFieldCredentialID, cred.ID).
			Debug("No stream events in listen window")
		return nil
	}

	processed, err := sp.messageService.ProcessStreamEvents(ctx, cred, events)
	if err != nil {
		return err
	}
	if processed > 0 {
		sp.logger.WithFields(logrus.Fields{
			LogFieldCredentialID: cred.ID,
			LogFieldCount:        processed,
		}).Info("Processed messages from stream fallback")
	}
	return nil
}
