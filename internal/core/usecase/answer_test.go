package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/kirillkom/lore-assistant/internal/core/domain"
	"github.com/kirillkom/lore-assistant/internal/core/ports"
)

type searcherFake struct {
	results []domain.SearchResult
	err     error
	topK    int
}

func (f *searcherFake) Search(_ context.Context, _ string, topK int) ([]domain.SearchResult, error) {
	f.topK = topK
	return f.results, f.err
}

type rendererFake struct{}

func (rendererFake) Render(question, contextBlock string, role domain.Role) (string, error) {
	if role == "pirate" {
		return "", domain.WrapError(domain.ErrInvalidInput, "render", errors.New("no template"))
	}
	return fmt.Sprintf("role=%s\ncontext=%s\nquestion=%s", role, contextBlock, question), nil
}

// modelFake replays errs in order and answers "ok" once they run out.
type modelFake struct {
	errs     []error
	calls    int
	systems  []string
	reauthFn func() error
	reauths  int
}

func (m *modelFake) Name() string { return "fake" }

func (m *modelFake) Answer(_ context.Context, system, _ string) (string, error) {
	m.calls++
	m.systems = append(m.systems, system)
	if len(m.errs) > 0 {
		err := m.errs[0]
		m.errs = m.errs[1:]
		if err != nil {
			return "", err
		}
	}
	return "  ok  ", nil
}

type reauthModelFake struct {
	*modelFake
}

func (m reauthModelFake) Reauthenticate(context.Context) error {
	m.reauths++
	if m.reauthFn != nil {
		return m.reauthFn()
	}
	return nil
}

var errExpired = domain.WrapError(domain.ErrAuthExpired, "chat", errors.New("401 Unauthorized"))

func newAnswer(searcher *searcherFake, model ports.LLM, observer *observerFake, opts AnswerOptions) *AnswerUseCase {
	var obs ports.AnswerObserver
	if observer != nil {
		obs = observer
	}
	return NewAnswerUseCase(searcher, rendererFake{}, model, opts, obs, quietLogger())
}

func TestGenerateAnswerBuildsContextInScoreOrder(t *testing.T) {
	searcher := &searcherFake{results: []domain.SearchResult{result("Монолит", 0.9), result("Стрелок", 0.4)}}
	model := &modelFake{}
	observer := &observerFake{}
	uc := newAnswer(searcher, model, observer, AnswerOptions{})

	answer := uc.GenerateAnswer(context.Background(), "Что такое Монолит?", "")
	if answer.Degraded || answer.Text != "  ok  " {
		t.Fatalf("unexpected answer: %+v", answer)
	}
	if answer.Role != domain.RoleDefault {
		t.Fatalf("expected default role, got %q", answer.Role)
	}
	if searcher.topK != DefaultTopK {
		t.Fatalf("expected default top k %d, got %d", DefaultTopK, searcher.topK)
	}
	want := "context=content of Монолит\ncontent of Стрелок\n"
	if !strings.Contains(model.systems[0], want) {
		t.Fatalf("system prompt %q does not contain %q", model.systems[0], want)
	}
	if len(observer.outcomes) != 1 || observer.outcomes[0] != OutcomeSuccess {
		t.Fatalf("expected success outcome, got %v", observer.outcomes)
	}
}

func TestGenerateAnswerIncludesTitles(t *testing.T) {
	searcher := &searcherFake{results: []domain.SearchResult{result("Монолит", 0.9)}}
	model := &modelFake{}
	uc := newAnswer(searcher, model, nil, AnswerOptions{TopK: 3, IncludeTitles: true})

	uc.GenerateAnswer(context.Background(), "q", domain.RoleBandit)
	if searcher.topK != 3 {
		t.Fatalf("expected top k 3, got %d", searcher.topK)
	}
	if !strings.Contains(model.systems[0], "context=[Монолит]\ncontent of Монолит") {
		t.Fatalf("expected titled context, got %q", model.systems[0])
	}
	if !strings.Contains(model.systems[0], "role=bandit") {
		t.Fatalf("expected bandit role in prompt, got %q", model.systems[0])
	}
}

func TestGenerateAnswerRetriesOnceAfterReauthentication(t *testing.T) {
	base := &modelFake{errs: []error{errExpired}}
	observer := &observerFake{}
	uc := newAnswer(&searcherFake{results: []domain.SearchResult{result("a", 1)}}, reauthModelFake{base}, observer, AnswerOptions{})

	answer := uc.GenerateAnswer(context.Background(), "q", domain.RoleDefault)
	if answer.Degraded || answer.Text != "  ok  " {
		t.Fatalf("expected answer after re-mint, got %+v", answer)
	}
	if base.reauths != 1 || base.calls != 2 {
		t.Fatalf("expected 1 re-mint and 2 calls, got %d and %d", base.reauths, base.calls)
	}
	if observer.authRetries != 1 || observer.outcomes[0] != OutcomeAuthRetried {
		t.Fatalf("expected auth retry outcome, got retries=%d outcomes=%v", observer.authRetries, observer.outcomes)
	}
}

func TestGenerateAnswerDegradesAfterSecondExpiry(t *testing.T) {
	base := &modelFake{errs: []error{errExpired, errExpired, errExpired}}
	observer := &observerFake{}
	uc := newAnswer(&searcherFake{}, reauthModelFake{base}, observer, AnswerOptions{})

	answer := uc.GenerateAnswer(context.Background(), "q", domain.RoleDefault)
	if !answer.Degraded || answer.Text != "" {
		t.Fatalf("expected degraded empty answer, got %+v", answer)
	}
	if base.reauths != 1 || base.calls != 2 {
		t.Fatalf("expected exactly one re-mint and one retry, got reauths=%d calls=%d", base.reauths, base.calls)
	}
	if observer.outcomes[0] != OutcomeDegraded {
		t.Fatalf("expected degraded outcome, got %v", observer.outcomes)
	}
}

func TestGenerateAnswerDegradesWhenReauthenticationFails(t *testing.T) {
	base := &modelFake{errs: []error{errExpired}, reauthFn: func() error { return errors.New("400 bad key") }}
	uc := newAnswer(&searcherFake{}, reauthModelFake{base}, nil, AnswerOptions{})

	answer := uc.GenerateAnswer(context.Background(), "q", domain.RoleDefault)
	if !answer.Degraded || base.calls != 1 {
		t.Fatalf("expected degraded answer without retry, got %+v calls=%d", answer, base.calls)
	}
	if !strings.Contains(answer.Reason, "400 bad key") {
		t.Fatalf("expected re-mint error in reason, got %q", answer.Reason)
	}
}

func TestGenerateAnswerRetriesExpiryWithoutReauthenticator(t *testing.T) {
	model := &modelFake{errs: []error{errExpired}}
	uc := newAnswer(&searcherFake{}, model, nil, AnswerOptions{})

	answer := uc.GenerateAnswer(context.Background(), "q", domain.RoleDefault)
	if answer.Degraded || model.calls != 2 {
		t.Fatalf("expected single retry to succeed, got %+v calls=%d", answer, model.calls)
	}
}

func TestGenerateAnswerDegradesOnProviderError(t *testing.T) {
	base := &modelFake{errs: []error{domain.WrapError(domain.ErrProvider, "chat", errors.New("500"))}}
	uc := newAnswer(&searcherFake{}, reauthModelFake{base}, nil, AnswerOptions{})

	answer := uc.GenerateAnswer(context.Background(), "q", domain.RoleDefault)
	if !answer.Degraded || answer.Text != "" {
		t.Fatalf("expected degraded answer, got %+v", answer)
	}
	if base.reauths != 0 || base.calls != 1 {
		t.Fatalf("provider errors must not trigger re-mint, got reauths=%d calls=%d", base.reauths, base.calls)
	}
}

func TestGenerateAnswerDegradesOnRetrievalError(t *testing.T) {
	model := &modelFake{}
	observer := &observerFake{}
	searcher := &searcherFake{err: domain.WrapError(domain.ErrStore, "search", errors.New("qdrant down"))}
	uc := newAnswer(searcher, model, observer, AnswerOptions{})

	answer := uc.GenerateAnswer(context.Background(), "q", domain.RoleDefault)
	if !answer.Degraded || model.calls != 0 {
		t.Fatalf("expected degraded answer without model call, got %+v calls=%d", answer, model.calls)
	}
	if observer.outcomes[0] != OutcomeNoRetrieval {
		t.Fatalf("expected retrieval outcome, got %v", observer.outcomes)
	}
}

func TestGenerateAnswerDegradesOnEmptyQuestionAndBadRole(t *testing.T) {
	model := &modelFake{}
	observer := &observerFake{}
	uc := newAnswer(&searcherFake{}, model, observer, AnswerOptions{})

	if answer := uc.GenerateAnswer(context.Background(), "   ", domain.RoleDefault); !answer.Degraded {
		t.Fatalf("expected degraded answer for blank question")
	}
	if answer := uc.GenerateAnswer(context.Background(), "q", "pirate"); !answer.Degraded {
		t.Fatalf("expected degraded answer for unknown role")
	}
	if model.calls != 0 {
		t.Fatalf("model must not be called, got %d calls", model.calls)
	}
	if observer.outcomes[0] != OutcomeInvalidInput {
		t.Fatalf("expected invalid input outcome, got %v", observer.outcomes)
	}
}
