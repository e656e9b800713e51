// Copyright (C) 2026 Questweave
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package server provides the REST query API and the WebSocket progress
// event stream. Handlers read through the query service, mutate through the
// cascade tracker, and broadcast the cascade's events to connected clients.
package server

import (
	"context"
	"sync"

	"github.com/questweave/questweave/internal/common"
	"github.com/questweave/questweave/internal/logger"

	"github.com/rs/zerolog"
)

var (
	log     *zerolog.Logger
	logOnce sync.Once
)

func getLog() *zerolog.Logger {
	logOnce.Do(func() {
		l := logger.GetAPILogger()
		log = &l
	})
	return log
}

// EventBroadcaster reads every event from the cascade tracker's event
// channel and fans them out to all connected WebSocket clients.
type EventBroadcaster struct {
	eventChan <-chan common.Event
	clients   *ClientRegistry
}

// NewEventBroadcaster creates a broadcaster over the cascade event channel.
func NewEventBroadcaster(eventChan <-chan common.Event, clients *ClientRegistry) *EventBroadcaster {
	return &EventBroadcaster{
		eventChan: eventChan,
		clients:   clients,
	}
}

// Run reads events until the channel is closed or the context is cancelled.
func (b *EventBroadcaster) Run(ctx context.Context) {
	for {
		select {
		case event, ok := <-b.eventChan:
			if !ok {
				getLog().Info().Msg("Event broadcaster stopped (channel closed)")
				return
			}
			b.dispatch(event)
		case <-ctx.Done():
			getLog().Info().Msg("Event broadcaster stopped (context cancelled)")
			return
		}
	}
}

func (b *EventBroadcaster) dispatch(event common.Event) {
	if b.clients != nil {
		b.clients.Broadcast(event)
	}
}
