package events

import (
	"github.com/ThreeDotsLabs/watermill"
	"github.com/rs/zerolog"
)

// watermillZerologAdapter routes watermill's internal logging through
// zerolog. Watermill INFO is mapped down to debug because the router is
// chatty at that level.
type watermillZerologAdapter struct {
	logger zerolog.Logger
}

func NewWatermillLogger(logger zerolog.Logger) watermill.LoggerAdapter {
	return &watermillZerologAdapter{logger: logger}
}

func (w *watermillZerologAdapter) Error(msg string, err error, fields watermill.LogFields) {
	w.logger.Error().Fields(fields).Err(err).Msg(msg)
}

func (w *watermillZerologAdapter) Info(msg string, fields watermill.LogFields) {
	w.logger.Debug().Fields(fields).Msg(msg)
}

func (w *watermillZerologAdapter) Debug(msg string, fields watermill.LogFields) {
	w.logger.Debug().Fields(fields).Msg(msg)
}

func (w *watermillZerologAdapter) Trace(msg string, fields watermill.LogFields) {
	w.logger.Trace().Fields(fields).Msg(msg)
}

func (w *watermillZerologAdapter) With(fields watermill.LogFields) watermill.LoggerAdapter {
	return &watermillZerologAdapter{logger: w.logger.With().Fields(fields).Logger()}
}

var _ watermill.LoggerAdapter = &watermillZerologAdapter{}
