package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"crashgame/internal/game"
)

const EVENT_BUFFER_SIZE = 512

type Config struct {
	Addr     string
	Password string
	DB       int
	Channel  string
}

// Service mirrors engine events onto a Redis channel so other presentation
// nodes can follow the round. Nothing is stored in Redis.
type Service interface {
	game.EventSink
	Health() map[string]string
	Close() error
}

type service struct {
	client  *redis.Client
	channel string
	events  chan game.Event
	cancel  context.CancelFunc
	done    chan struct{}
	logger  zerolog.Logger
}

func New(cfg Config, logger zerolog.Logger) (Service, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     10,
		MinIdleConns: 1,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", cfg.Addr, err)
	}

	runCtx, stop := context.WithCancel(context.Background())
	s := &service{
		client:  client,
		channel: cfg.Channel,
		events:  make(chan game.Event, EVENT_BUFFER_SIZE),
		cancel:  stop,
		done:    make(chan struct{}),
		logger:  logger,
	}
	go s.run(runCtx)

	logger.Info().Str("addr", cfg.Addr).Str("channel", cfg.Channel).Msg("redis connected")
	return s, nil
}

// Publish never blocks the round loop; events are dropped when the buffer
// is full.
func (s *service) Publish(ev game.Event) {
	select {
	case s.events <- ev:
	default:
		s.logger.Warn().Str("type", string(ev.Type)).Msg("event buffer full, dropping")
	}
}

func (s *service) run(ctx context.Context) {
	defer close(s.done)
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-s.events:
			payload, err := encodeEvent(ev)
			if err != nil {
				s.logger.Error().Err(err).Msg("encode event")
				continue
			}
			if err := s.client.Publish(ctx, s.channel, payload).Err(); err != nil {
				s.logger.Warn().Err(err).Str("type", string(ev.Type)).Msg("publish event")
			}
		}
	}
}

func encodeEvent(ev game.Event) ([]byte, error) {
	data, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("marshal %s event: %w", ev.Type, err)
	}
	return data, nil
}

func (s *service) Health() map[string]string {
	ctx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()

	stats := make(map[string]string)

	if err := s.client.Ping(ctx).Err(); err != nil {
		stats["status"] = "down"
		stats["error"] = fmt.Sprintf("redis down: %v", err)
		return stats
	}

	stats["status"] = "up"
	stats["message"] = "Redis is healthy"
	stats["channel"] = s.channel
	stats["pending_events"] = strconv.Itoa(len(s.events))

	poolStats := s.client.PoolStats()
	stats["hits"] = strconv.FormatUint(uint64(poolStats.Hits), 10)
	stats["misses"] = strconv.FormatUint(uint64(poolStats.Misses), 10)
	stats["timeouts"] = strconv.FormatUint(uint64(poolStats.Timeouts), 10)
	stats["total_conns"] = strconv.FormatUint(uint64(poolStats.TotalConns), 10)
	stats["idle_conns"] = strconv.FormatUint(uint64(poolStats.IdleConns), 10)

	return stats
}

func (s *service) Close() error {
	s.logger.Info().Msg("disconnecting from redis")
	s.cancel()
	<-s.done
	return s.client.Close()
}
