package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"ai-accelerator-be/internal/apperror"
	"ai-accelerator-be/internal/dto"
	"ai-accelerator-be/internal/model"
	"ai-accelerator-be/internal/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

// fakeConversationRepo is an in-memory ConversationRepository with optimistic
// version checks. conflictsLeft forces UpdateDialogs to lose that many races.
type fakeConversationRepo struct {
	rows          map[string]*model.Conversation
	conflictsLeft int
	updates       int
}

func newFakeConversationRepo() *fakeConversationRepo {
	return &fakeConversationRepo{rows: make(map[string]*model.Conversation)}
}

func (r *fakeConversationRepo) FindOne(_ context.Context, pk string) (*model.Conversation, error) {
	row, ok := r.rows[pk]
	if !ok {
		return nil, nil
	}
	clone := *row
	return &clone, nil
}

func (r *fakeConversationRepo) Create(_ context.Context, conversation *model.Conversation) error {
	if _, ok := r.rows[conversation.PartitionKey]; ok {
		return apperror.New(apperror.KindConflict, "conversation already exists")
	}
	clone := *conversation
	r.rows[conversation.PartitionKey] = &clone
	return nil
}

func (r *fakeConversationRepo) UpdateDialogs(_ context.Context, conversation *model.Conversation, expectedVersion int64) error {
	r.updates++
	if r.conflictsLeft > 0 {
		r.conflictsLeft--
		return apperror.New(apperror.KindConflict, "conversation was modified concurrently")
	}
	stored, ok := r.rows[conversation.PartitionKey]
	if !ok || stored.Version != expectedVersion {
		return apperror.New(apperror.KindConflict, "conversation was modified concurrently")
	}
	stored.Dialogs = conversation.Dialogs
	stored.Version = expectedVersion + 1
	conversation.Version = expectedVersion + 1
	return nil
}

func (r *fakeConversationRepo) Delete(_ context.Context, pk string) error {
	delete(r.rows, pk)
	return nil
}

func (r *fakeConversationRepo) dialogs(t *testing.T, pk string) []dto.Dialog {
	t.Helper()
	row := r.rows[pk]
	require.NotNil(t, row)
	var out []dto.Dialog
	require.NoError(t, json.Unmarshal(row.Dialogs, &out))
	return out
}

func TestAppendDialogCreatesConversation(t *testing.T) {
	repo := newFakeConversationRepo()
	svc := NewChatSessionService(repo, logger.NopLogger{})
	ctx := context.Background()

	err := svc.AppendDialog(ctx, "u1", "c1", dto.Dialog{
		Participant: dto.ParticipantUser,
		Payload:     []dto.UserPromptPayload{{Type: dto.PayloadTypeText, Value: "hello"}},
	})
	require.NoError(t, err)

	dialogs := repo.dialogs(t, model.ConversationPartitionKey("u1", "c1"))
	require.Len(t, dialogs, 1)
	assert.Equal(t, dto.ParticipantUser, dialogs[0].Participant)
	assert.False(t, dialogs[0].Timestamp.IsZero())
}

func TestAppendDialogForcesMonotonicTimestamps(t *testing.T) {
	repo := newFakeConversationRepo()
	svc := NewChatSessionService(repo, logger.NopLogger{})
	ctx := context.Background()

	future := time.Now().UTC().Add(time.Hour)
	require.NoError(t, svc.AppendDialog(ctx, "u1", "c1", dto.Dialog{
		Participant: dto.ParticipantUser,
		Timestamp:   future,
	}))
	// Second entry arrives with an earlier clock reading.
	require.NoError(t, svc.AppendDialog(ctx, "u1", "c1", dto.Dialog{
		Participant: dto.ParticipantAssistant,
		Timestamp:   future.Add(-time.Minute),
	}))

	dialogs := repo.dialogs(t, model.ConversationPartitionKey("u1", "c1"))
	require.Len(t, dialogs, 2)
	assert.True(t, dialogs[1].Timestamp.After(dialogs[0].Timestamp),
		"append order must win over wall clocks")
}

func TestAppendDialogRetriesLostOptimisticWrite(t *testing.T) {
	repo := newFakeConversationRepo()
	repo.conflictsLeft = 2
	svc := NewChatSessionService(repo, logger.NopLogger{})

	err := svc.AppendDialog(context.Background(), "u1", "c1", dto.Dialog{Participant: dto.ParticipantUser})
	require.NoError(t, err)
	assert.Equal(t, 3, repo.updates)
}

func TestAppendDialogGivesUpAfterRetries(t *testing.T) {
	repo := newFakeConversationRepo()
	repo.conflictsLeft = 10
	svc := NewChatSessionService(repo, logger.NopLogger{})

	err := svc.AppendDialog(context.Background(), "u1", "c1", dto.Dialog{Participant: dto.ParticipantUser})
	require.Error(t, err)
	assert.Equal(t, apperror.KindConflict, apperror.KindOf(err))
}

func TestGetEmptySession(t *testing.T) {
	repo := newFakeConversationRepo()
	svc := NewChatSessionService(repo, logger.NopLogger{})

	session, err := svc.Get(context.Background(), "u1", "never-seen")
	require.NoError(t, err)
	assert.Equal(t, "u1", session.UserID)
	assert.Empty(t, session.Dialogs)
}

func TestClearRemovesHistory(t *testing.T) {
	repo := newFakeConversationRepo()
	svc := NewChatSessionService(repo, logger.NopLogger{})
	ctx := context.Background()

	require.NoError(t, svc.AppendDialog(ctx, "u1", "c1", dto.Dialog{Participant: dto.ParticipantUser}))
	require.NoError(t, svc.Clear(ctx, "u1", "c1"))

	session, err := svc.Get(ctx, "u1", "c1")
	require.NoError(t, err)
	assert.Empty(t, session.Dialogs)
}

func TestCreateIfAbsentToleratesLostRace(t *testing.T) {
	repo := newFakeConversationRepo()
	svc := NewChatSessionService(repo, logger.NopLogger{})
	ctx := context.Background()

	require.NoError(t, svc.CreateIfAbsent(ctx, "u1", "c1"))
	require.NoError(t, svc.CreateIfAbsent(ctx, "u1", "c1"))

	// Simulate two writers racing past the existence check.
	err := repo.Create(ctx, &model.Conversation{
		PartitionKey: model.ConversationPartitionKey("u1", "c1"),
		Dialogs:      datatypes.JSON(`[]`),
	})
	assert.Equal(t, apperror.KindConflict, apperror.KindOf(err))
}
