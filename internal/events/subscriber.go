// Package events consumes playstate notifications published on NATS.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"
)

// Dispatcher routes a local playstate change to the linked accounts
type Dispatcher interface {
	Dispatch(ctx context.Context, userID, itemID string, played bool, playedAt *time.Time) (int, error)
}

// message is the JSON payload of a playstate notification
type message struct {
	UserID   string     `json:"user_id"`
	ItemID   string     `json:"item_id"`
	Played   bool       `json:"played"`
	PlayedAt *time.Time `json:"played_at,omitempty"`
}

// Subscriber feeds NATS playstate notifications to the dispatcher
type Subscriber struct {
	conn       *nats.Conn
	sub        *nats.Subscription
	dispatcher Dispatcher
	logger     *logrus.Logger

	ctx    context.Context
	cancel context.CancelFunc
}

// NewSubscriber creates a subscriber without a connection
func NewSubscriber(dispatcher Dispatcher, logger *logrus.Logger) *Subscriber {
	ctx, cancel := context.WithCancel(context.Background())
	return &Subscriber{
		dispatcher: dispatcher,
		logger:     logger,
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Start connects to the server and subscribes to subject
func (s *Subscriber) Start(url, subject string) error {
	conn, err := nats.Connect(url,
		nats.Name("traktsync"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				s.logger.WithError(err).Warn("Disconnected from NATS")
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			s.logger.WithField("url", nc.ConnectedUrl()).Info("Reconnected to NATS")
		}),
	)
	if err != nil {
		return fmt.Errorf("failed to connect to NATS: %w", err)
	}

	sub, err := conn.Subscribe(subject, func(msg *nats.Msg) {
		s.handleMessage(msg.Data)
	})
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to subscribe to %s: %w", subject, err)
	}

	s.conn = conn
	s.sub = sub
	s.logger.WithFields(logrus.Fields{
		"url":     url,
		"subject": subject,
	}).Info("Subscribed to playstate notifications")
	return nil
}

// Close drains the subscription and closes the connection
func (s *Subscriber) Close() error {
	defer s.cancel()
	if s.conn == nil {
		return nil
	}
	if err := s.conn.Drain(); err != nil && !errors.Is(err, nats.ErrConnectionClosed) {
		return fmt.Errorf("failed to drain NATS connection: %w", err)
	}
	return nil
}

// handleMessage dispatches one notification; malformed messages are dropped
func (s *Subscriber) handleMessage(data []byte) {
	var msg message
	if err := json.Unmarshal(data, &msg); err != nil {
		s.logger.WithError(err).WithField("payload", string(data)).Warn("Dropping malformed playstate message")
		return
	}
	if msg.UserID == "" || msg.ItemID == "" {
		s.logger.WithField("payload", string(data)).Warn("Dropping playstate message without user_id or item_id")
		return
	}

	dispatched, err := s.dispatcher.Dispatch(s.ctx, msg.UserID, msg.ItemID, msg.Played, msg.PlayedAt)
	if err != nil {
		s.logger.WithError(err).WithFields(logrus.Fields{
			"user_id": msg.UserID,
			"item_id": msg.ItemID,
		}).Error("Failed to dispatch playstate message")
		return
	}

	s.logger.WithFields(logrus.Fields{
		"user_id":  msg.UserID,
		"item_id":  msg.ItemID,
		"played":   msg.Played,
		"accounts": dispatched,
	}).Debug("Playstate message dispatched")
}
