package services

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"round-lottery/internal/models"
	"round-lottery/internal/notify"
	"round-lottery/internal/repository"

	"github.com/panjf2000/ants/v2"
)

// Notifier is the fire-and-forget notification collaborator
type Notifier interface {
	Notify(ctx context.Context, accountID uint, payload models.NotificationPayload)
	NotifyAdmin(ctx context.Context, message string)
	Broadcast(ctx context.Context, payload models.NotificationPayload)
}

// NotificationService stores account and admin notifications and fans every
// message out to the configured sinks on a worker pool
type NotificationService struct {
	repo  *repository.Repository
	sinks []notify.Sink
	pool  *ants.Pool
	wg    sync.WaitGroup
}

// NewNotificationService builds the service. A poolSize of zero or less
// delivers synchronously.
func NewNotificationService(repo *repository.Repository, poolSize int, sinks ...notify.Sink) (*NotificationService, error) {
	s := &NotificationService{
		repo:  repo,
		sinks: sinks,
	}

	if poolSize > 0 {
		pool, err := ants.NewPool(poolSize)
		if err != nil {
			return nil, err
		}
		s.pool = pool
	}

	return s, nil
}

// Notify stores a notification for one account and pushes it to the sinks
func (s *NotificationService) Notify(ctx context.Context, accountID uint, payload models.NotificationPayload) {
	s.dispatch(func() {
		ctx := context.WithoutCancel(ctx)
		row, err := models.NewUserNotification(accountID, payload)
		if err != nil {
			log.Printf("[Notify] Failed to encode %s: %v", payload.MessageKey(), err)
			return
		}
		if err := s.repo.CreateUserNotification(ctx, row); err != nil {
			log.Printf("[Notify] Failed to store %s for account %d: %v", row.MessageKey, accountID, err)
		}

		msg := notify.NewMessage(notify.AudienceAccount, accountID)
		msg.Key = row.MessageKey
		msg.Kind = string(row.Kind)
		msg.Params = json.RawMessage(row.Params)
		s.deliver(ctx, msg)
	})
}

// NotifyAdmin stores a message in the admin inbox and pushes it to the sinks
func (s *NotificationService) NotifyAdmin(ctx context.Context, message string) {
	s.dispatch(func() {
		ctx := context.WithoutCancel(ctx)
		if err := s.repo.CreateAdminNotification(ctx, &models.AdminNotification{Message: message}); err != nil {
			log.Printf("[Notify] Failed to store admin notification: %v", err)
		}

		msg := notify.NewMessage(notify.AudienceAdmin, 0)
		msg.Text = message
		s.deliver(ctx, msg)
	})
}

// Broadcast pushes payload to every connected client without storing it
func (s *NotificationService) Broadcast(ctx context.Context, payload models.NotificationPayload) {
	s.dispatch(func() {
		params, err := json.Marshal(payload)
		if err != nil {
			log.Printf("[Notify] Failed to encode %s: %v", payload.MessageKey(), err)
			return
		}

		msg := notify.NewMessage(notify.AudienceAll, 0)
		msg.Key = payload.MessageKey()
		msg.Kind = string(payload.Kind())
		msg.Params = params
		s.deliver(context.WithoutCancel(ctx), msg)
	})
}

func (s *NotificationService) dispatch(task func()) {
	s.wg.Add(1)
	run := func() {
		defer s.wg.Done()
		task()
	}

	if s.pool == nil {
		run()
		return
	}

	if err := s.pool.Submit(run); err != nil {
		log.Printf("[Notify] Pool rejected task, running inline: %v", err)
		run()
	}
}

func (s *NotificationService) deliver(ctx context.Context, msg notify.Message) {
	for _, sink := range s.sinks {
		sinkCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		if err := sink.Deliver(sinkCtx, msg); err != nil {
			log.Printf("[Notify] %s delivery of %s failed: %v", sink.Name(), msg.ID, err)
		}
		cancel()
	}
}

// Wait blocks until every dispatched notification has been handled
func (s *NotificationService) Wait() {
	s.wg.Wait()
}

// Close waits for pending deliveries and releases the worker pool
func (s *NotificationService) Close() {
	s.Wait()
	if s.pool != nil {
		s.pool.Release()
	}
}
