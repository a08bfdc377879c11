package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kirillkom/lore-assistant/internal/core/domain"
	"github.com/kirillkom/lore-assistant/internal/core/ports"
)

const DefaultTopK = 5

const (
	OutcomeSuccess      = "success"
	OutcomeAuthRetried  = "auth_retried"
	OutcomeDegraded     = "degraded"
	OutcomeNoRetrieval  = "retrieval_failed"
	OutcomeInvalidInput = "invalid_input"
)

type AnswerOptions struct {
	TopK          int
	IncludeTitles bool
}

type AnswerUseCase struct {
	searcher ports.Searcher
	renderer ports.PromptRenderer
	model    ports.LLM
	observer ports.AnswerObserver
	opts     AnswerOptions
	logger   *slog.Logger
}

func NewAnswerUseCase(
	searcher ports.Searcher,
	renderer ports.PromptRenderer,
	model ports.LLM,
	opts AnswerOptions,
	observer ports.AnswerObserver,
	logger *slog.Logger,
) *AnswerUseCase {
	if opts.TopK <= 0 {
		opts.TopK = DefaultTopK
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AnswerUseCase{
		searcher: searcher,
		renderer: renderer,
		model:    model,
		observer: observer,
		opts:     opts,
		logger:   logger,
	}
}

// GenerateAnswer never fails: any error past input validation is logged and
// turned into a degraded answer with empty text.
func (uc *AnswerUseCase) GenerateAnswer(ctx context.Context, question string, role domain.Role) domain.Answer {
	if role == "" {
		role = domain.RoleDefault
	}
	answer := domain.Answer{Question: question, Role: role}

	if strings.TrimSpace(question) == "" {
		return uc.degrade(answer, OutcomeInvalidInput, domain.WrapError(domain.ErrInvalidInput, "generate answer", errors.New("question is empty")))
	}

	results, err := uc.searcher.Search(ctx, question, uc.opts.TopK)
	if err != nil {
		return uc.degrade(answer, OutcomeNoRetrieval, err)
	}
	answer.Sources = results

	prompt, err := uc.BuildPrompt(question, results, role)
	if err != nil {
		return uc.degrade(answer, OutcomeDegraded, err)
	}

	text, outcome, err := uc.call(ctx, prompt)
	if err != nil {
		return uc.degrade(answer, OutcomeDegraded, err)
	}

	answer.Text = text
	uc.observe(outcome, len(results))
	return answer
}

// BuildPrompt concatenates retrieved contents in descending score order and
// renders the role template around them.
func (uc *AnswerUseCase) BuildPrompt(question string, results []domain.SearchResult, role domain.Role) (domain.Prompt, error) {
	parts := make([]string, 0, len(results))
	for _, r := range results {
		content := r.Payload.Content
		if uc.opts.IncludeTitles && r.Payload.Metadata.Title != "" {
			content = fmt.Sprintf("[%s]\n%s", r.Payload.Metadata.Title, content)
		}
		parts = append(parts, content)
	}

	system, err := uc.renderer.Render(question, strings.Join(parts, "\n"), role)
	if err != nil {
		return domain.Prompt{}, fmt.Errorf("render system prompt: %w", err)
	}
	return domain.Prompt{System: system, User: question}, nil
}

// call invokes the model, re-minting credentials and retrying exactly once
// when the provider reports an expired authorization.
func (uc *AnswerUseCase) call(ctx context.Context, prompt domain.Prompt) (string, string, error) {
	text, err := uc.model.Answer(ctx, prompt.System, prompt.User)
	if err == nil {
		return text, OutcomeSuccess, nil
	}
	if !domain.IsKind(err, domain.ErrAuthExpired) {
		return "", "", err
	}

	uc.logger.Warn("auth_expired_retry", "provider", uc.model.Name(), "error", err)
	if uc.observer != nil {
		uc.observer.AuthRetry(uc.model.Name())
	}
	if re, ok := uc.model.(ports.Reauthenticator); ok {
		if rerr := re.Reauthenticate(ctx); rerr != nil {
			return "", "", fmt.Errorf("reauthenticate %s: %w", uc.model.Name(), rerr)
		}
	}

	text, err = uc.model.Answer(ctx, prompt.System, prompt.User)
	if err != nil {
		// A second expiry is not retried again.
		return "", "", domain.WrapError(domain.ErrProvider, "answer after reauthentication", err)
	}
	return text, OutcomeAuthRetried, nil
}

func (uc *AnswerUseCase) degrade(answer domain.Answer, outcome string, err error) domain.Answer {
	uc.logger.Error("answer_degraded",
		"provider", uc.model.Name(),
		"outcome", outcome,
		"error", err,
	)
	answer.Text = ""
	answer.Degraded = true
	answer.Reason = err.Error()
	uc.observe(outcome, len(answer.Sources))
	return answer
}

func (uc *AnswerUseCase) observe(outcome string, sources int) {
	if uc.observer != nil {
		uc.observer.AnswerFinished(uc.model.Name(), outcome, sources)
	}
}
