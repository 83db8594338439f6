package copilot

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"github.com/ehr/copilot/internal/platform/metrics"
)

var (
	ErrNotConfigured  = errors.New("copilot is not configured")
	ErrInvalidMessage = errors.New("invalid chat request")
)

// Service relays conversations to the completion backend. A nil completer
// means the relay is not configured.
type Service struct {
	completer Completer
	logger    zerolog.Logger
	now       func() time.Time
}

func NewService(completer Completer, logger zerolog.Logger) *Service {
	return &Service{
		completer: completer,
		logger:    logger.With().Str("component", "copilot").Logger(),
		now:       time.Now,
	}
}

// Validate checks that every turn has a known role and non-blank content.
func Validate(req ChatRequest) error {
	if len(req.Messages) == 0 {
		return fmt.Errorf("%w: messages must not be empty", ErrInvalidMessage)
	}
	for i, m := range req.Messages {
		if !lo.Contains(validRoles, m.Role) {
			return fmt.Errorf("%w: messages[%d]: role must be one of %s", ErrInvalidMessage, i, strings.Join(validRoles, ", "))
		}
		if strings.TrimSpace(m.Content) == "" {
			return fmt.Errorf("%w: messages[%d]: content must not be blank", ErrInvalidMessage, i)
		}
	}
	return nil
}

func (s *Service) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	if err := Validate(req); err != nil {
		metrics.RecordCopilotRequest(metrics.CopilotOutcomeInvalid)
		return nil, err
	}
	if s.completer == nil {
		metrics.RecordCopilotRequest(metrics.CopilotOutcomeUnconfigured)
		return nil, ErrNotConfigured
	}

	content, err := s.completer.Complete(ctx, req.Messages)
	if err != nil {
		metrics.RecordCopilotRequest(metrics.CopilotOutcomeUpstreamError)
		s.logger.Warn().Err(err).Int("turns", len(req.Messages)).Msg("completion failed")
		if !errors.Is(err, ErrUpstream) {
			err = fmt.Errorf("%w: %v", ErrUpstream, err)
		}
		return nil, err
	}

	metrics.RecordCopilotRequest(metrics.CopilotOutcomeOK)
	return &ChatResponse{Messages: []Reply{{
		ID:        uuid.NewString(),
		Role:      RoleAssistant,
		Content:   content,
		CreatedAt: s.now().UTC(),
	}}}, nil
}

// StatusFor maps a Chat error to an HTTP status.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, ErrInvalidMessage):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotConfigured):
		return http.StatusServiceUnavailable
	case errors.Is(err, ErrUpstream):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
