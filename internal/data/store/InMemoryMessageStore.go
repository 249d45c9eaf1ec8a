package store

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/akolanti/GroundedQA/internal/config"
	"github.com/akolanti/GroundedQA/internal/domain/jobModel"
)

type InMemoryMessageStore struct {
	chatLock *sync.RWMutex
	chatMap  map[string][]jobModel.JobPayload
}

func InitMessageStore() *InMemoryMessageStore {
	return &InMemoryMessageStore{
		chatLock: new(sync.RWMutex),
		chatMap:  make(map[string][]jobModel.JobPayload),
	}
}

func (store *InMemoryMessageStore) ValidateChatId(ctx context.Context, chatId string) bool {
	store.chatLock.RLock()
	defer store.chatLock.RUnlock()
	_, ok := store.chatMap[chatId]
	return ok
}

func (store *InMemoryMessageStore) saveChatId(id string, conversation jobModel.JobPayload) {
	store.chatLock.Lock()
	defer store.chatLock.Unlock()
	store.chatMap[id] = append(store.chatMap[id], conversation)
}

func (store *InMemoryMessageStore) TrySaveChat(ctx context.Context, id string, conversation jobModel.JobPayload) error {
	if !store.ValidateChatId(ctx, id) {
		return ErrUnknownChat
	}
	store.saveChatId(id, historyEntry(conversation))
	return nil
}

func (store *InMemoryMessageStore) InitNewChat(ctx context.Context, id string) error {
	store.chatLock.Lock()
	defer store.chatLock.Unlock()
	store.chatMap[id] = make([]jobModel.JobPayload, 0)
	return nil
}

// GetMessageHistory matches the Redis store: newest first, at most
// MessageHistoryLength entries.
func (store *InMemoryMessageStore) GetMessageHistory(ctx context.Context, chatId string) (error, []string) {
	store.chatLock.RLock()
	defer store.chatLock.RUnlock()

	chat := store.chatMap[chatId]
	history := make([]string, 0, config.MessageHistoryLength)
	for i := len(chat) - 1; i >= 0 && len(history) < config.MessageHistoryLength; i-- {
		data, err := json.Marshal(chat[i])
		if err != nil {
			return err, nil
		}
		history = append(history, string(data))
	}
	return nil, history
}
