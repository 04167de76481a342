package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/geniesugar/glucose-monitor/internal/apperror"
	"github.com/geniesugar/glucose-monitor/internal/assistant"
	"github.com/geniesugar/glucose-monitor/internal/metrics"
	"github.com/geniesugar/glucose-monitor/internal/repository"
)

const (
	ChatApology       = "I'm having trouble connecting right now. Please try again later."
	ChatNotConfigured = "The assistant is not configured."

	MaxChatMessageLength = 2000
	chatContextReadings  = 5
)

// ChatReply is always returned with a usable Message. OK is false when the
// message is a fallback rather than a model answer.
type ChatReply struct {
	OK      bool
	Message string
}

// ChatService proxies questions to the configured assistant provider.
type ChatService struct {
	users     repository.UserRepository
	timeline  repository.TimelineRepository
	assistant assistant.Assistant
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

func NewChatService(
	users repository.UserRepository,
	timeline repository.TimelineRepository,
	a assistant.Assistant,
	m *metrics.Metrics,
	logger *slog.Logger,
) *ChatService {
	if a == nil {
		a = assistant.Unconfigured{}
	}
	return &ChatService{
		users:     users,
		timeline:  timeline,
		assistant: a,
		metrics:   m,
		logger:    logger,
	}
}

// Chat answers message with the user's name and five most recent readings
// as context. Only input validation produces an error; every provider or
// context failure becomes a fallback reply.
func (s *ChatService) Chat(ctx context.Context, userID, message string) (ChatReply, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return ChatReply{}, apperror.ValidationFailed("message", "message is required")
	}
	if len(message) > MaxChatMessageLength {
		return ChatReply{}, apperror.ValidationFailed("message", "message is too long")
	}

	log := s.logger.With(slog.String("user_id", userID))

	c, err := s.context(ctx, userID)
	if err != nil {
		log.Error("assistant context failed", slog.String("error", err.Error()))
		s.metrics.AssistantRequest("error")
		return ChatReply{Message: ChatApology}, nil
	}

	answer, err := s.assistant.Complete(ctx, message, c)
	switch {
	case errors.Is(err, assistant.ErrNotConfigured):
		s.metrics.AssistantRequest("not_configured")
		return ChatReply{Message: ChatNotConfigured}, nil
	case err != nil:
		log.Warn("assistant request failed", slog.String("error", err.Error()))
		s.metrics.AssistantRequest("error")
		return ChatReply{Message: ChatApology}, nil
	}

	s.metrics.AssistantRequest("ok")
	return ChatReply{OK: true, Message: answer}, nil
}

func (s *ChatService) context(ctx context.Context, userID string) (assistant.Context, error) {
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return assistant.Context{}, err
	}
	recent, err := s.timeline.Recent(ctx, userID, chatContextReadings)
	if err != nil {
		return assistant.Context{}, err
	}

	values := make([]float64, len(recent))
	for i, r := range recent {
		values[i] = r.Value
	}
	return assistant.Context{UserName: user.FullName, RecentGlucose: values}, nil
}
