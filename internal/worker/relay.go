package worker

import (
	"context"
	"sync"

	"github.com/jwalitptl/office-portal/internal/repository"
	"github.com/jwalitptl/office-portal/internal/service/notification"
	"github.com/jwalitptl/office-portal/pkg/logger"
	"github.com/jwalitptl/office-portal/pkg/messaging"
	"github.com/jwalitptl/office-portal/pkg/metrics"
	"github.com/jwalitptl/office-portal/pkg/notify"
	"github.com/jwalitptl/office-portal/pkg/worker"
)

// Relay moves outbox events onto the broker and delivers them to users.
// Both halves stop when the context passed to Run is cancelled.
type Relay struct {
	processor *worker.OutboxProcessor
	consumer  *notification.Consumer
	logger    *logger.Logger
}

func NewRelay(
	repos repository.Repositories,
	broker messaging.Broker,
	config worker.OutboxProcessorConfig,
	dispatcher notify.Dispatcher,
	log *logger.Logger,
	m *metrics.Metrics,
) *Relay {
	return &Relay{
		processor: worker.NewOutboxProcessor(repos.Outbox, broker, config, component(log, "outbox_processor"), m),
		consumer:  notification.NewConsumer(broker, config.Channel, repos.Users, dispatcher, component(log, "notification_consumer"), m),
		logger:    component(log, "relay"),
	}
}

// Run blocks until ctx is done and both loops have returned.
func (r *Relay) Run(ctx context.Context) {
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		if err := r.consumer.Run(ctx); err != nil {
			r.logger.Error(err, "Notification consumer stopped")
		}
	}()
	go func() {
		defer wg.Done()
		r.processor.Start(ctx)
	}()

	wg.Wait()
}

// NewDispatcher picks email delivery when SMTP is configured, logging otherwise.
func NewDispatcher(smtp *notify.SMTPConfig, log *logger.Logger) notify.Dispatcher {
	if smtp == nil {
		return notify.NewLogDispatcher(log)
	}
	return notify.NewEmailDispatcher(*smtp)
}

func component(log *logger.Logger, name string) *logger.Logger {
	return log.WithFields(map[string]interface{}{"component": name})
}
