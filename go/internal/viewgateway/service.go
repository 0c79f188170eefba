// Package viewgateway exposes the engine over a JSON API and pushes published
// views and user notifications to websocket clients.
package viewgateway

import (
	"context"
	"net/http"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/arjunamarcelino/velobid/go/internal/models"
	"github.com/arjunamarcelino/velobid/go/internal/notify"
)

// Source is the engine plus its push streams.
type Source interface {
	Engine
	SubscribeViews(fn func(models.CategorizedView)) (unsubscribe func())
	SubscribeNotifications(fn func(notify.Notification)) (unsubscribe func())
}

type Config struct {
	ConnectionConfig ConnectionConfig
	TokenSymbol      string
}

func DefaultConfig() Config {
	return Config{
		ConnectionConfig: DefaultConnectionConfig(),
		TokenSymbol:      "EDU",
	}
}

// Service owns the connection manager and the HTTP handlers.
type Service struct {
	connectionManager *ConnectionManager
	wsHandler         *WebSocketHandler
	stateHandler      *StateHandler
	source            Source
	clock             clockwork.Clock
	unsubscribe       []func()
}

// NewService subscribes to the source right away, so views published before
// Start wait in the broadcast queue instead of being lost.
func NewService(config Config, source Source, clock clockwork.Clock) *Service {
	cm := NewConnectionManager(config.ConnectionConfig, clock)
	s := &Service{
		connectionManager: cm,
		wsHandler:         NewWebSocketHandler(cm, source.View, clock),
		stateHandler:      NewStateHandler(source, clock, config.TokenSymbol),
		source:            source,
		clock:             clock,
	}
	s.unsubscribe = append(s.unsubscribe,
		source.SubscribeViews(func(v models.CategorizedView) {
			cm.Broadcast(NewViewEvent(v, clock))
		}),
		source.SubscribeNotifications(func(n notify.Notification) {
			cm.Broadcast(NewNotificationEvent(n, clock))
		}),
	)
	return s
}

// Start forwards engine events to websocket clients until ctx is cancelled.
func (s *Service) Start(ctx context.Context) error {
	log.Info().Msg("starting view gateway")
	defer func() {
		for _, unsub := range s.unsubscribe {
			unsub()
		}
	}()

	s.connectionManager.Start(ctx)

	log.Info().Msg("view gateway stopped")
	return nil
}

func (s *Service) RegisterRoutes(mux *http.ServeMux) {
	s.wsHandler.RegisterRoutes(mux)
	s.stateHandler.RegisterRoutes(mux)
	log.Info().Msg("view gateway routes registered")
}

func (s *Service) Stats() ConnectionStats {
	return s.connectionManager.Stats()
}
