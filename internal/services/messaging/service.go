package messaging

import (
	"context"
	"encoding/json"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"

	"weaponwatch-server-go/internal/config"
	"weaponwatch-server-go/internal/models"
)

// Service is the NATS connection shared by the changefeed and the detection
// ingest bridge.
type Service struct {
	conn *nats.Conn
	cfg  *config.Config
}

func NewService(cfg *config.Config) (*Service, error) {
	opts := []nats.Option{
		nats.Name("weaponwatch-server"),
		nats.Timeout(cfg.NatsConnectTimeout),
		nats.ReconnectWait(cfg.NatsReconnectWait),
		nats.MaxReconnects(cfg.NatsMaxReconnects),
	}

	conn, err := nats.Connect(cfg.NatsURL, opts...)
	if err != nil {
		return nil, err
	}

	log.Info().Str("url", cfg.NatsURL).Msg("NATS connection established")

	return &Service{
		conn: conn,
		cfg:  cfg,
	}, nil
}

func (s *Service) Publish(subject string, data interface{}) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}

	return s.conn.Publish(subject, payload)
}

func (s *Service) Subscribe(subject string, handler func([]byte)) (*nats.Subscription, error) {
	return s.conn.Subscribe(subject, func(msg *nats.Msg) {
		handler(msg.Data)
	})
}

func (s *Service) QueueSubscribe(subject, queue string, handler func([]byte)) (*nats.Subscription, error) {
	return s.conn.QueueSubscribe(subject, queue, func(msg *nats.Msg) {
		handler(msg.Data)
	})
}

// SiteChanged implements store.ChangeSink: every committed site write goes
// out as a (previous, current) snapshot pair for watchers and dashboards.
func (s *Service) SiteChanged(change models.SiteChange) {
	if err := s.Publish(s.cfg.SiteChangesSubject, change); err != nil {
		log.Error().Err(err).
			Str("site_id", change.Current.ID).
			Msg("Failed to publish site change")
	}
}

// SubscribeSiteChanges delivers decoded change events to the handler in a
// queue group, so only one server instance reacts to each change.
func (s *Service) SubscribeSiteChanges(queue string, handler func(models.SiteChange)) (*nats.Subscription, error) {
	return s.QueueSubscribe(s.cfg.SiteChangesSubject, queue, func(data []byte) {
		var change models.SiteChange
		if err := json.Unmarshal(data, &change); err != nil {
			log.Error().Err(err).Msg("Malformed site change event")
			return
		}
		handler(change)
	})
}

// DetectionMessage is the wire shape the external producer publishes.
type DetectionMessage struct {
	SiteID    string `json:"site_id"`
	CameraID  string `json:"camera_id"`
	ImagePath string `json:"image_path"`
}

// SubscribeDetections bridges producer reports into the handler.
func (s *Service) SubscribeDetections(queue string, handler func(DetectionMessage)) (*nats.Subscription, error) {
	return s.QueueSubscribe(s.cfg.DetectionsSubject, queue, func(data []byte) {
		var msg DetectionMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			log.Error().Err(err).Msg("Malformed detection message")
			return
		}
		handler(msg)
	})
}

func (s *Service) IsConnected() bool {
	return s.conn != nil && s.conn.IsConnected()
}

func (s *Service) Shutdown(ctx context.Context) error {
	if s.conn != nil {
		// Try graceful drain with timeout, fallback to immediate close
		if err := s.conn.Drain(); err != nil {
			log.Warn().Err(err).Msg("Failed to drain NATS connection gracefully, closing immediately")
			s.conn.Close()
		}
	}
	return nil
}
