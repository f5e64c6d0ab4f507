// Package summary contains services for summarizing articles with an
// OpenAI-compatible model endpoint and a local extractive fallback.
package summary

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"text/template"

	"github.com/Simooonnnnn/Novascope-sub001/app/store"
	"github.com/sashabaranov/go-openai"
	"golang.org/x/exp/slog"
)

//go:embed data/prompt.tmpl
var prompt string

var promptTmpl = template.Must(template.New("prompt").Parse(prompt))

// ErrNoModel is returned when the model asset has not been imported yet.
var ErrNoModel = errors.New("model not imported")

// Update is one element of a progressive summary stream: a refined text,
// or a terminal error.
type Update struct {
	Text string
	Err  error
}

// ChatClient is an interface for the model endpoint client with the
// possibility to mock it.
type ChatClient interface {
	CreateChatCompletion(context.Context, openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
	CreateChatCompletionStream(context.Context, openai.ChatCompletionRequest) (*openai.ChatCompletionStream, error)
}

// Service produces article summaries from a chat-completion endpoint that
// serves the imported model.
type Service struct {
	log       *slog.Logger
	cl        ChatClient
	models    *Models
	model     string
	maxTokens int

	mu          sync.Mutex
	initialized bool
}

// NewService creates new Service talking to an endpoint at baseURL.
func NewService(lg *slog.Logger, cl *http.Client, baseURL, model string, maxTokens int, models *Models) *Service {
	config := openai.DefaultConfig("")
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	config.HTTPClient = cl

	return &Service{
		log:       lg,
		cl:        openai.NewClientWithConfig(config),
		models:    models,
		model:     model,
		maxTokens: maxTokens,
	}
}

// Ready reports whether the model asset is imported.
func (s *Service) Ready() bool { return s.models.Imported() }

// Initialize warms the model up with a tiny completion request. It is
// idempotent; on failure the model stays uninitialized.
func (s *Service) Initialize(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.initialized {
		return nil
	}
	if !s.models.Imported() {
		return ErrNoModel
	}

	_, err := s.cl.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     s.model,
		MaxTokens: 1,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: "ping"},
		},
	})
	if err != nil {
		return fmt.Errorf("warm up model: %w", err)
	}

	s.initialized = true
	return nil
}

// Summarize streams progressively refined summaries of the article. The
// returned channel is closed after the last refinement; a terminal failure
// is delivered as an Update with Err set.
func (s *Service) Summarize(ctx context.Context, a store.Article) <-chan Update {
	out := make(chan Update)

	go func() {
		defer close(out)

		buf := &strings.Builder{}
		if err := promptTmpl.Execute(buf, a); err != nil {
			s.send(ctx, out, Update{Err: fmt.Errorf("build prompt: %w", err)})
			return
		}

		stream, err := s.cl.CreateChatCompletionStream(ctx, openai.ChatCompletionRequest{
			Model:     s.model,
			MaxTokens: s.maxTokens,
			Stream:    true,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleUser, Content: buf.String()},
			},
		})
		if err != nil {
			s.send(ctx, out, Update{Err: fmt.Errorf("create chat completion stream: %w", err)})
			return
		}
		defer stream.Close()

		text := &strings.Builder{}
		for {
			resp, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				s.send(ctx, out, Update{Err: fmt.Errorf("receive chunk: %w", err)})
				return
			}

			if len(resp.Choices) == 0 {
				continue
			}

			text.WriteString(resp.Choices[0].Delta.Content)
			if !s.send(ctx, out, Update{Text: strings.TrimSpace(text.String())}) {
				return
			}
		}
	}()

	return out
}

// Import downloads the model asset and invalidates the warmed-up state,
// so the next Initialize call warms the fresh model.
func (s *Service) Import(ctx context.Context, locator string, progress func(pct int)) error {
	if err := s.models.Import(ctx, locator, progress); err != nil {
		return err
	}

	s.mu.Lock()
	s.initialized = false
	s.mu.Unlock()

	return nil
}

func (s *Service) send(ctx context.Context, out chan<- Update, u Update) bool {
	select {
	case out <- u:
		return true
	case <-ctx.Done():
		return false
	}
}
