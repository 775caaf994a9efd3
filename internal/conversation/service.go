// ABOUTME: Completion orchestrator layered on the conversation ledger
// ABOUTME: Resolves identity, assembles history, delegates to the remote completion call

package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/praxyhealth/praxy-gateway/internal/ledger"
)

// ErrRemoteCompletion marks failures (including timeouts) of the external
// completion call. No ledger writes happen on this path.
var ErrRemoteCompletion = errors.New("remote completion failed")

// ErrPartialAppend marks the state where the user turn committed but the
// assistant turn append failed. The conversation is left with a trailing
// user turn, observable on the next history read; the orchestrator reports
// it and never retries or hides it.
var ErrPartialAppend = errors.New("assistant turn not recorded")

// Message is one entry of an outbound completion request.
type Message struct {
	Role    ledger.Role
	Content string
}

// Ledger defines what the orchestrator needs from conversation storage.
type Ledger interface {
	ResolveIdentity(ctx context.Context, externalID string) (*ledger.Identity, error)
	AppendTurn(ctx context.Context, internalID, modelVariant string, role ledger.Role, content string) (*ledger.Turn, error)
	History(ctx context.Context, internalID, modelVariant string) ([]*ledger.Turn, error)
}

// Completer is the external completion call. It receives the assembled
// conversation (without the system instruction, which is the completer's
// own concern) and returns the assistant reply text.
type Completer interface {
	Complete(ctx context.Context, modelVariant string, msgs []Message) (string, error)
}

// Service orchestrates a question round trip: history in, completion out,
// both turns persisted, full transcript returned. It never mutates identity
// or turn storage except through the Ledger's operations.
type Service struct {
	ledger    Ledger
	completer Completer
	timeout   time.Duration
	logger    *slog.Logger
}

// New creates a conversation service. timeout bounds the external
// completion call; zero means no bound beyond the caller's context.
func New(l Ledger, c Completer, timeout time.Duration, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		ledger:    l,
		completer: c,
		timeout:   timeout,
		logger:    logger.With("component", "conversation"),
	}
}

// HandleQuestion runs one exchange for (externalID, modelVariant):
//
//  1. Resolve the identity (creating it on first contact).
//  2. Load the prior history for the variant.
//  3. Build the outbound request as history plus the not-yet-persisted
//     user turn and invoke the completion call under the timeout.
//  4. On success persist the user turn, then the assistant turn.
//  5. Return prior ++ user ++ assistant.
//
// A failed completion leaves the ledger untouched. A failed assistant
// append after the user turn committed returns ErrPartialAppend.
func (s *Service) HandleQuestion(ctx context.Context, externalID, modelVariant, question string) ([]*ledger.Turn, error) {
	if question == "" {
		return nil, fmt.Errorf("question is required")
	}

	ident, err := s.ledger.ResolveIdentity(ctx, externalID)
	if err != nil {
		return nil, fmt.Errorf("resolving identity: %w", err)
	}

	prior, err := s.ledger.History(ctx, ident.ID, modelVariant)
	if err != nil {
		return nil, fmt.Errorf("loading history: %w", err)
	}

	outbound := TurnsToMessages(prior)
	outbound = append(outbound, Message{Role: ledger.RoleUser, Content: question})

	callCtx := ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	reply, err := s.completer.Complete(callCtx, modelVariant, outbound)
	if err != nil {
		s.logger.Warn("completion call failed",
			"external_id", externalID,
			"model_variant", modelVariant,
			"error", err)
		return nil, fmt.Errorf("%w: %w", ErrRemoteCompletion, err)
	}

	userTurn, err := s.ledger.AppendTurn(ctx, ident.ID, modelVariant, ledger.RoleUser, question)
	if err != nil {
		return nil, fmt.Errorf("recording user turn: %w", err)
	}

	assistantTurn, err := s.ledger.AppendTurn(ctx, ident.ID, modelVariant, ledger.RoleAssistant, reply)
	if err != nil {
		// The conversation now ends in an unanswered user turn. That state
		// is visible to the next history read; a retry policy upstream can
		// detect and react to it.
		s.logger.Error("assistant turn append failed, conversation left with trailing user turn",
			"internal_id", ident.ID,
			"model_variant", modelVariant,
			"user_turn_id", userTurn.ID,
			"error", err)
		return nil, fmt.Errorf("%w: %w", ErrPartialAppend, err)
	}

	transcript := make([]*ledger.Turn, 0, len(prior)+2)
	transcript = append(transcript, prior...)
	transcript = append(transcript, userTurn, assistantTurn)

	s.logger.Debug("question handled",
		"internal_id", ident.ID,
		"model_variant", modelVariant,
		"transcript_len", len(transcript))
	return transcript, nil
}

// TurnsToMessages converts persisted turns to completion request messages.
func TurnsToMessages(turns []*ledger.Turn) []Message {
	msgs := make([]Message, 0, len(turns)+1)
	for _, t := range turns {
		msgs = append(msgs, Message{Role: t.Role, Content: t.Content})
	}
	return msgs
}
