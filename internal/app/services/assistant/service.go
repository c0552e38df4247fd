// Package assistant calls the hosted generative content API for chat
// replies and document analysis. It holds no conversation state of its own;
// callers pass the history they want the model to see.
package assistant

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"

	"github.com/studyflow-app/studyflow-core/internal/app/domain/chat"
	"github.com/studyflow-app/studyflow-core/internal/app/metrics"
	"github.com/studyflow-app/studyflow-core/internal/errors"
	"github.com/studyflow-app/studyflow-core/pkg/logger"
)

const defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// Service is a thin client over the generative content API.
type Service struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
	limiter    *rate.Limiter
	log        *logger.Logger
}

// New creates the assistant client. The limiter smooths request bursts so a
// misbehaving caller cannot exhaust the API quota.
func New(apiKey, model string, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("assistant")
	}
	return &Service{
		baseURL:    defaultBaseURL,
		apiKey:     apiKey,
		model:      model,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		limiter:    rate.NewLimiter(rate.Every(time.Second), 5),
		log:        log,
	}
}

// SetBaseURL overrides the API endpoint. Used in tests.
func (s *Service) SetBaseURL(u string) { s.baseURL = u }

type contentPart struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inlineData,omitempty"`
}

type inlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type content struct {
	Role  string        `json:"role,omitempty"`
	Parts []contentPart `json:"parts"`
}

type generateRequest struct {
	Contents          []content `json:"contents"`
	SystemInstruction *content  `json:"systemInstruction,omitempty"`
}

// Chat sends the conversation history plus one new user message and returns
// the model's reply.
func (s *Service) Chat(ctx context.Context, history []chat.Message, message string) (string, error) {
	contents := make([]content, 0, len(history)+1)
	for _, m := range history {
		contents = append(contents, content{
			Role:  string(m.Role),
			Parts: []contentPart{{Text: m.Text}},
		})
	}
	contents = append(contents, content{
		Role:  string(chat.RoleUser),
		Parts: []contentPart{{Text: message}},
	})

	reply, err := s.generate(ctx, generateRequest{
		Contents:          contents,
		SystemInstruction: &content{Parts: []contentPart{{Text: chatSystemPrompt}}},
	})
	if err != nil {
		metrics.AssistantRequest("chat", "error")
		return "", err
	}
	metrics.AssistantRequest("chat", "ok")
	return reply, nil
}

// AnalyzeDocument runs one of the study tasks over an uploaded document.
// The document bytes are inlined base64, the way the API expects small
// uploads.
func (s *Service) AnalyzeDocument(ctx context.Context, task, mimeType string, data []byte) (string, error) {
	prompt, ok := taskPrompts[task]
	if !ok {
		return "", errors.InvalidInput(fmt.Sprintf("unknown task %q", task))
	}

	reply, err := s.generate(ctx, generateRequest{
		Contents: []content{{
			Role: string(chat.RoleUser),
			Parts: []contentPart{
				{InlineData: &inlineData{
					MimeType: mimeType,
					Data:     base64.StdEncoding.EncodeToString(data),
				}},
				{Text: prompt},
			},
		}},
	})
	if err != nil {
		metrics.AssistantRequest(task, "error")
		return "", err
	}
	metrics.AssistantRequest(task, "ok")
	return reply, nil
}

func (s *Service) generate(ctx context.Context, req generateRequest) (string, error) {
	if s.apiKey == "" {
		return "", errors.InvalidInput("assistant API key is not configured")
	}
	if err := s.limiter.Wait(ctx); err != nil {
		return "", err
	}

	body, err := json.Marshal(req)
	if err != nil {
		return "", errors.New("encode request: " + err.Error())
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", s.baseURL, s.model, s.apiKey)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", errors.Remote("generate content", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(httpReq)
	if err != nil {
		return "", errors.Remote("generate content", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", errors.Remote("generate content", err)
	}
	if resp.StatusCode != http.StatusOK {
		msg := gjson.GetBytes(raw, "error.message").String()
		if msg == "" {
			msg = resp.Status
		}
		return "", errors.Remote("generate content", fmt.Errorf("%s", msg))
	}

	text := gjson.GetBytes(raw, "candidates.0.content.parts.0.text").String()
	if text == "" {
		return "", errors.Remote("generate content", fmt.Errorf("empty response"))
	}
	s.log.Debug("content generated", "model", s.model, "chars", len(text))
	return text, nil
}
