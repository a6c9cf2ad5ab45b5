package query

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/docuchat/docuchat/internal/chat"
	"github.com/docuchat/docuchat/internal/common"
	"github.com/docuchat/docuchat/internal/index"
)

// Pipeline stages, used for logging and failure descriptions.
const (
	stageReceived   = "received"
	stageRetrieving = "retrieving"
	stageGenerating = "generating"
	stagePersisting = "persisting"
)

type Result struct {
	Answer    string   `json:"answer"`
	Sources   []string `json:"sources"`
	MessageID string   `json:"message_id"`
}

// Orchestrator sequences one question through retrieve -> generate ->
// persist. Once the user's turn is saved, pipeline failures surface as a
// normal assistant message so the conversation never loses continuity.
type Orchestrator struct {
	chats     *chat.Service
	retriever *Retriever
	generator *Generator

	historyWindow int
	retryWait     time.Duration
}

func NewOrchestrator(chats *chat.Service, retriever *Retriever, generator *Generator, historyWindow int) *Orchestrator {
	if historyWindow <= 0 || historyWindow > 100 {
		historyWindow = 20
	}
	return &Orchestrator{
		chats:         chats,
		retriever:     retriever,
		generator:     generator,
		historyWindow: historyWindow,
		retryWait:     2 * time.Second,
	}
}

// SetRetryWait overrides the backoff before the single provider retry.
func (o *Orchestrator) SetRetryWait(d time.Duration) { o.retryWait = d }

func (o *Orchestrator) Query(ctx context.Context, chatID, question string) (*Result, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, fmt.Errorf("%w: question is required", common.ErrValidation)
	}

	// RECEIVED: the chat must exist, and the user's turn is saved before
	// anything that can fail, so it is never lost.
	c, err := o.chats.GetChat(ctx, chatID)
	if err != nil {
		return nil, err
	}
	history, err := o.chats.RecentHistory(ctx, chatID, o.historyWindow)
	if err != nil {
		return nil, err
	}
	if _, err := o.chats.AppendMessage(ctx, chatID, chat.RoleUser, question, nil); err != nil {
		return nil, err
	}

	answer, sources, pipeErr := o.answer(ctx, c.ProjectID, question, history)
	if pipeErr != nil {
		if ctx.Err() != nil {
			// Caller is gone; the user message stays, the assistant turn
			// is simply never produced.
			return nil, pipeErr
		}
		log.Printf("query chat=%s stage failed err=%v", chatID, pipeErr)
		answer = failureAnswer(pipeErr)
		sources = []string{}
	}

	// PERSISTING: the assistant turn always lands, answer or apology.
	m, err := o.chats.AppendMessage(ctx, chatID, chat.RoleAssistant, answer, sources)
	if err != nil {
		return nil, err
	}

	return &Result{Answer: answer, Sources: sources, MessageID: m.ID}, nil
}

func (o *Orchestrator) answer(ctx context.Context, projectID, question string, history []chat.Message) (string, []string, error) {
	// RETRIEVING
	hits, err := withRetry(ctx, o.retryWait, func() ([]index.Scored, error) {
		return o.retriever.Retrieve(ctx, projectID, question)
	})
	if err != nil {
		return "", nil, fmt.Errorf("%s: %w", stageRetrieving, err)
	}

	// GENERATING
	type generated struct {
		answer  string
		sources []string
	}
	out, err := withRetry(ctx, o.retryWait, func() (generated, error) {
		a, s, err := o.generator.Generate(ctx, question, hits, history)
		return generated{a, s}, err
	})
	if err != nil {
		return "", nil, fmt.Errorf("%s: %w", stageGenerating, err)
	}
	return out.answer, out.sources, nil
}

// withRetry retries provider failures once after a backoff. Other errors
// (not found, index unavailable) are terminal.
func withRetry[T any](ctx context.Context, wait time.Duration, fn func() (T, error)) (T, error) {
	out, err := fn()
	if err == nil || !errors.Is(err, common.ErrProvider) {
		return out, err
	}

	select {
	case <-time.After(wait):
	case <-ctx.Done():
		return out, ctx.Err()
	}
	return fn()
}

func failureAnswer(err error) string {
	switch {
	case errors.Is(err, common.ErrIndexUnavailable):
		return "I can't answer yet: this project's document index hasn't finished building. Please try again in a moment."
	case errors.Is(err, common.ErrProvider):
		return "Sorry, I couldn't generate an answer right now because the language model service failed. Please try again."
	default:
		return fmt.Sprintf("Sorry, something went wrong while answering: %v", err)
	}
}
