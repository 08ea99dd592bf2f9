package service

import (
	"context"
	"encoding/json"
	"time"

	"ai-accelerator-be/internal/apperror"
	"ai-accelerator-be/internal/dto"
	"ai-accelerator-be/internal/model"
	"ai-accelerator-be/internal/pkg/logger"
	"ai-accelerator-be/internal/repository/contract"

	"gorm.io/datatypes"
)

// ChatSession is a conversation with its full ordered dialog history.
type ChatSession struct {
	UserID         string       `json:"user_id"`
	ConversationID string       `json:"conversation_id"`
	Dialogs        []dto.Dialog `json:"dialogs"`
}

type IChatSessionService interface {
	Get(ctx context.Context, userID, conversationID string) (*ChatSession, error)
	CreateIfAbsent(ctx context.Context, userID, conversationID string) error
	AppendDialog(ctx context.Context, userID, conversationID string, dialog dto.Dialog) error
	Clear(ctx context.Context, userID, conversationID string) error
}

type chatSessionService struct {
	repo   contract.ConversationRepository
	logger logger.ILogger
}

const appendRetries = 3

func NewChatSessionService(repo contract.ConversationRepository, log logger.ILogger) IChatSessionService {
	return &chatSessionService{repo: repo, logger: log}
}

// Get returns the stored session, or an empty one when the conversation has
// no history yet.
func (s *chatSessionService) Get(ctx context.Context, userID, conversationID string) (*ChatSession, error) {
	row, err := s.repo.FindOne(ctx, model.ConversationPartitionKey(userID, conversationID))
	if err != nil {
		return nil, err
	}
	session := &ChatSession{UserID: userID, ConversationID: conversationID, Dialogs: []dto.Dialog{}}
	if row == nil {
		return session, nil
	}
	if len(row.Dialogs) > 0 {
		if err := json.Unmarshal(row.Dialogs, &session.Dialogs); err != nil {
			return nil, apperror.Wrap(apperror.KindInternal, "stored dialogs are unreadable", err)
		}
	}
	return session, nil
}

func (s *chatSessionService) CreateIfAbsent(ctx context.Context, userID, conversationID string) error {
	pk := model.ConversationPartitionKey(userID, conversationID)
	row, err := s.repo.FindOne(ctx, pk)
	if err != nil {
		return err
	}
	if row != nil {
		return nil
	}

	empty, _ := json.Marshal([]dto.Dialog{})
	err = s.repo.Create(ctx, &model.Conversation{
		PartitionKey:   pk,
		UserID:         userID,
		ConversationID: conversationID,
		Dialogs:        datatypes.JSON(empty),
	})
	if err != nil && apperror.KindOf(err) == apperror.KindConflict {
		// Lost the creation race, which is the outcome we wanted anyway.
		return nil
	}
	return err
}

// AppendDialog appends one turn with read-modify-write semantics. Timestamps
// are forced monotonic so history ordering survives clock jitter, and a lost
// optimistic write is retried against the fresh row.
func (s *chatSessionService) AppendDialog(ctx context.Context, userID, conversationID string, dialog dto.Dialog) error {
	if err := s.CreateIfAbsent(ctx, userID, conversationID); err != nil {
		return err
	}
	pk := model.ConversationPartitionKey(userID, conversationID)

	var lastErr error
	for attempt := 0; attempt < appendRetries; attempt++ {
		row, err := s.repo.FindOne(ctx, pk)
		if err != nil {
			return err
		}
		if row == nil {
			return apperror.New(apperror.KindNotFound, "conversation disappeared during append")
		}

		var dialogs []dto.Dialog
		if len(row.Dialogs) > 0 {
			if err := json.Unmarshal(row.Dialogs, &dialogs); err != nil {
				return apperror.Wrap(apperror.KindInternal, "stored dialogs are unreadable", err)
			}
		}

		entry := dialog
		if entry.Timestamp.IsZero() {
			entry.Timestamp = time.Now().UTC()
		}
		if n := len(dialogs); n > 0 && !entry.Timestamp.After(dialogs[n-1].Timestamp) {
			entry.Timestamp = dialogs[n-1].Timestamp.Add(time.Microsecond)
		}
		dialogs = append(dialogs, entry)

		raw, err := json.Marshal(dialogs)
		if err != nil {
			return err
		}
		row.Dialogs = datatypes.JSON(raw)

		err = s.repo.UpdateDialogs(ctx, row, row.Version)
		if err == nil {
			return nil
		}
		if apperror.KindOf(err) != apperror.KindConflict {
			return err
		}
		lastErr = err
		s.logger.Debug("chat_session", "dialog append lost optimistic race, retrying", map[string]interface{}{
			"partition_key": pk,
			"attempt":       attempt + 1,
		})
	}
	return lastErr
}

func (s *chatSessionService) Clear(ctx context.Context, userID, conversationID string) error {
	return s.repo.Delete(ctx, model.ConversationPartitionKey(userID, conversationID))
}
