// ABOUTME: Tests for the conversation orchestrator
// ABOUTME: Uses a real SQLite ledger and stub completers to probe failure ordering

package conversation

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/praxyhealth/praxy-gateway/internal/ledger"
)

type stubCompleter struct {
	reply string
	err   error
	// captured arguments from the last call
	lastVariant string
	lastMsgs    []Message
	calls       int
}

func (s *stubCompleter) Complete(ctx context.Context, modelVariant string, msgs []Message) (string, error) {
	s.calls++
	s.lastVariant = modelVariant
	s.lastMsgs = msgs
	if s.err != nil {
		return "", s.err
	}
	return s.reply, nil
}

type blockingCompleter struct{}

func (blockingCompleter) Complete(ctx context.Context, modelVariant string, msgs []Message) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

// failingAppendLedger passes everything through to the real ledger but
// fails appends of the given role.
type failingAppendLedger struct {
	Ledger
	failRole ledger.Role
}

func (f *failingAppendLedger) AppendTurn(ctx context.Context, internalID, modelVariant string, role ledger.Role, content string) (*ledger.Turn, error) {
	if role == f.failRole {
		return nil, fmt.Errorf("disk full")
	}
	return f.Ledger.AppendTurn(ctx, internalID, modelVariant, role, content)
}

func setupTestService(t *testing.T, c Completer) (*Service, *ledger.SQLiteLedger) {
	t.Helper()
	l, err := ledger.NewSQLiteLedger(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })
	return New(l, c, 5*time.Second, nil), l
}

func TestHandleQuestionFirstContact(t *testing.T) {
	comp := &stubCompleter{reply: "Sore throats usually resolve within a week."}
	svc, l := setupTestService(t, comp)
	ctx := context.Background()

	transcript, err := svc.HandleQuestion(ctx, "user-1", "t_tuned", "How long does a sore throat last?")
	require.NoError(t, err)
	require.Len(t, transcript, 2)

	assert.Equal(t, ledger.RoleUser, transcript[0].Role)
	assert.Equal(t, "How long does a sore throat last?", transcript[0].Content)
	assert.Equal(t, ledger.RoleAssistant, transcript[1].Role)
	assert.Equal(t, comp.reply, transcript[1].Content)
	assert.Less(t, transcript[0].Seq, transcript[1].Seq)

	// the outbound request carried only the new user message
	require.Len(t, comp.lastMsgs, 1)
	assert.Equal(t, "t_tuned", comp.lastVariant)

	// both turns persisted
	ident, err := l.ResolveIdentity(ctx, "user-1")
	require.NoError(t, err)
	stored, err := l.History(ctx, ident.ID, "t_tuned")
	require.NoError(t, err)
	assert.Len(t, stored, 2)
}

func TestHandleQuestionCarriesHistory(t *testing.T) {
	comp := &stubCompleter{reply: "hello"}
	svc, _ := setupTestService(t, comp)
	ctx := context.Background()

	_, err := svc.HandleQuestion(ctx, "user-2", "default", "hi")
	require.NoError(t, err)

	comp.reply = "I said hello."
	transcript, err := svc.HandleQuestion(ctx, "user-2", "default", "what did you say?")
	require.NoError(t, err)
	require.Len(t, transcript, 4)

	// outbound = two prior turns plus the new question
	require.Len(t, comp.lastMsgs, 3)
	assert.Equal(t, Message{Role: ledger.RoleUser, Content: "hi"}, comp.lastMsgs[0])
	assert.Equal(t, Message{Role: ledger.RoleAssistant, Content: "hello"}, comp.lastMsgs[1])
	assert.Equal(t, Message{Role: ledger.RoleUser, Content: "what did you say?"}, comp.lastMsgs[2])

	// transcript is strictly ordered
	for i := 1; i < len(transcript); i++ {
		assert.Less(t, transcript[i-1].Seq, transcript[i].Seq)
	}
}

func TestHandleQuestionEmptyQuestion(t *testing.T) {
	comp := &stubCompleter{reply: "unused"}
	svc, _ := setupTestService(t, comp)

	_, err := svc.HandleQuestion(context.Background(), "user-3", "default", "")
	require.Error(t, err)
	assert.Zero(t, comp.calls)
}

func TestHandleQuestionCompletionFailureWritesNothing(t *testing.T) {
	comp := &stubCompleter{err: errors.New("upstream 503")}
	svc, l := setupTestService(t, comp)
	ctx := context.Background()

	_, err := svc.HandleQuestion(ctx, "user-4", "default", "hi")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRemoteCompletion)

	// the failed call must not have created any turns
	turns, err := l.HistoryByExternalID(ctx, "user-4", "default")
	require.NoError(t, err)
	assert.Empty(t, turns)
}

func TestHandleQuestionCompletionTimeout(t *testing.T) {
	l, err := ledger.NewSQLiteLedger(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })
	svc := New(l, blockingCompleter{}, 50*time.Millisecond, nil)

	start := time.Now()
	_, err = svc.HandleQuestion(context.Background(), "user-5", "default", "hi")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRemoteCompletion)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 2*time.Second)

	turns, err := l.HistoryByExternalID(context.Background(), "user-5", "default")
	require.NoError(t, err)
	assert.Empty(t, turns)
}

func TestHandleQuestionPartialAppend(t *testing.T) {
	real, err := ledger.NewSQLiteLedger(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { real.Close() })

	flaky := &failingAppendLedger{Ledger: real, failRole: ledger.RoleAssistant}
	svc := New(flaky, &stubCompleter{reply: "hello"}, time.Second, nil)
	ctx := context.Background()

	_, err = svc.HandleQuestion(ctx, "user-6", "default", "hi")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPartialAppend)

	// the user turn is committed and observable as a trailing question
	turns, err := real.HistoryByExternalID(ctx, "user-6", "default")
	require.NoError(t, err)
	require.Len(t, turns, 1)
	assert.Equal(t, ledger.RoleUser, turns[0].Role)
	assert.Equal(t, "hi", turns[0].Content)
}

func TestHandleQuestionVariantsIsolated(t *testing.T) {
	comp := &stubCompleter{reply: "ok"}
	svc, _ := setupTestService(t, comp)
	ctx := context.Background()

	_, err := svc.HandleQuestion(ctx, "user-7", "default", "first")
	require.NoError(t, err)

	transcript, err := svc.HandleQuestion(ctx, "user-7", "c-tuned", "second")
	require.NoError(t, err)
	require.Len(t, transcript, 2)
	require.Len(t, comp.lastMsgs, 1, "history from another variant must not leak")
}
