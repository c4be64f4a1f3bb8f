package events

import (
	"context"
	"fmt"
	"log/slog"

	"plate-order-backend/config"
)

// FromConfig assembles the publishers enabled in cfg, always including the
// in-process hub. On error every publisher opened so far is closed.
func FromConfig(ctx context.Context, cfg config.EventsConfig, hub *Hub, logger *slog.Logger) (Publisher, error) {
	pubs := Multi{hub}

	if cfg.AMQP.Enabled {
		p, err := DialAMQP(cfg.AMQP)
		if err != nil {
			_ = pubs.Close()
			return nil, fmt.Errorf("amqp publisher: %w", err)
		}
		logger.Info("publishing order events to rabbitmq", slog.String("exchange", cfg.AMQP.Exchange))
		pubs = append(pubs, p)
	}
	if cfg.Kafka.Enabled {
		p, err := NewKafkaPublisher(cfg.Kafka)
		if err != nil {
			_ = pubs.Close()
			return nil, fmt.Errorf("kafka publisher: %w", err)
		}
		logger.Info("publishing order events to kafka",
			slog.String("topic", cfg.Kafka.Topic),
			slog.Any("brokers", cfg.Kafka.Brokers),
		)
		pubs = append(pubs, p)
	}
	if cfg.PGNotify.Enabled {
		p, err := ConnectPGNotify(ctx, cfg.PGNotify.DSN, cfg.PGNotify.Channel)
		if err != nil {
			_ = pubs.Close()
			return nil, fmt.Errorf("pg_notify publisher: %w", err)
		}
		logger.Info("publishing order events with pg_notify", slog.String("channel", cfg.PGNotify.Channel))
		pubs = append(pubs, p)
	}
	return pubs, nil
}
