package store

import (
	"context"
	"encoding/json"
	"errors"
	"slices"

	"github.com/akolanti/GroundedQA/internal/config"
	"github.com/akolanti/GroundedQA/internal/data/redisStore"
	"github.com/akolanti/GroundedQA/internal/domain/jobModel"
	"github.com/akolanti/GroundedQA/pkg/logger_i"
)

var ErrUnknownChat = errors.New("invalid chat id")

type RedisMessageStore struct {
	store  *redisStore.Store
	logger *logger_i.Logger
}

func GetRedisMessageStore(ctx context.Context, cfg config.RedisConfig) *RedisMessageStore {
	s := redisStore.GetRedisStore(ctx, cfg, config.RedisMessageStore)
	if s == nil {
		return nil
	}
	return &RedisMessageStore{
		store:  s,
		logger: logger_i.NewLogger("MessageStore"),
	}
}

func TestMessageStore(store *redisStore.Store) *RedisMessageStore {
	return &RedisMessageStore{store: store, logger: logger_i.NewLogger("test redis")}
}

func (s *RedisMessageStore) ValidateChatId(ctx context.Context, chatId string) bool {
	log := s.logger.WithTrace(ctx, config.TRACE_ID_KEY).With("chat Id", chatId)
	log.Debug("validating chatId")
	isFound, err := s.store.Exists(ctx, chatId)
	if s.store.IsNil(err) {
		return false
	} else if err != nil {
		log.Error("Failed to check if chatId exists", "err", err)
		return false
	}
	return isFound
}

func (s *RedisMessageStore) TrySaveChat(ctx context.Context, id string, conversation jobModel.JobPayload) error {
	log := s.logger.WithTrace(ctx, config.TRACE_ID_KEY).With("chat Id", id)
	if !s.ValidateChatId(ctx, id) {
		log.Error("Failed Validation before saving", "err", ErrUnknownChat)
		return ErrUnknownChat
	}
	return s.saveChatId(ctx, id, historyEntry(conversation))
}

func (s *RedisMessageStore) saveChatId(ctx context.Context, id string, conversation jobModel.JobPayload) error {
	log := s.logger.WithTrace(ctx, config.TRACE_ID_KEY).With("chat Id", id)
	data, err := json.Marshal(conversation)
	if err != nil {
		return err
	}
	if err := s.store.ListPush(ctx, id, data); err != nil {
		log.Error("error saving chat", "error", err)
		return err
	}
	if err := s.store.Expire(ctx, id, config.RedisMessageStoreTTL); err != nil {
		log.Warn("could not refresh chat ttl", "error", err)
	}
	log.Debug("Saved chat successfully")
	return nil
}

func (s *RedisMessageStore) InitNewChat(ctx context.Context, id string) error {
	log := s.logger.WithTrace(ctx, config.TRACE_ID_KEY).With("chat Id", id)
	log.Debug("Initializing new chat")
	if err := s.store.Del(ctx, id); err != nil && !s.store.IsNil(err) {
		log.Error("Error initializing chat", "error", err)
	}
	// the empty marker makes the chat id valid before its first answer
	return s.saveChatId(ctx, id, jobModel.JobPayload{})
}

// GetMessageHistory returns the newest exchanges first.
func (s *RedisMessageStore) GetMessageHistory(ctx context.Context, chatId string) (error, []string) {
	log := s.logger.WithTrace(ctx, config.TRACE_ID_KEY).With("chat Id", chatId)
	log.Debug("Getting message history")

	res, err := s.store.ListGetRecent(ctx, chatId, config.MessageHistoryLength)
	if err != nil {
		log.Error("Error getting history", "error", err)
		return err, nil
	}
	history := make([]string, 0, len(res))
	for _, r := range res {
		if r != "{}" {
			history = append(history, r)
		}
	}
	slices.Reverse(history)
	return nil, history
}

// historyEntry keeps what the model needs to follow the conversation.
func historyEntry(p jobModel.JobPayload) jobModel.JobPayload {
	return jobModel.JobPayload{
		Question:   p.Question,
		Answer:     p.Answer,
		Sources:    p.Sources,
		Incomplete: p.Incomplete,
	}
}
