package rag

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"lesson-rag/internal/models"
)

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
}

// Answer retrieves context for the query and streams a completion from the
// inference endpoint. The prompt always carries whatever context was found,
// including none; the model is told to answer from general knowledge then.
func (e *Engine) Answer(ctx context.Context, query, subject, grade string) (*models.PromptResponse, error) {
	bundle, err := e.GetRelevantContext(ctx, query, subject, grade, e.cfg.RAG.ContextMaxTokens)
	if err != nil {
		return nil, err
	}

	contextText := bundle.Context
	if contextText == "" {
		contextText = "（未检索到相关资料，请基于通用教学经验回答。）"
	}

	prompt := fmt.Sprintf(models.LessonPromptTemplate, contextText, query)
	content, err := e.streamCompletion(ctx, prompt)
	if err != nil {
		return nil, err
	}

	return &models.PromptResponse{
		Query:   query,
		Source:  strings.Join(bundle.Sources, ", "),
		Content: content,
	}, nil
}

// streamCompletion POSTs an OpenAI-style streaming chat request and
// accumulates the delta fragments into one string.
func (e *Engine) streamCompletion(ctx context.Context, prompt string) (string, error) {
	payload := chatRequest{
		Model: e.cfg.InferLLM.Model,
		Messages: []chatMessage{
			{Role: "user", Content: prompt},
		},
		Stream: true,
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		e.cfg.InferLLM.BaseURL+"/v1/chat/completions", bytes.NewBuffer(jsonData))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", e.cfg.InferLLM.Key)
	req.Header.Set("Content-Type", "application/json")

	client := &http.Client{Timeout: 60 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("completion request failed: %d, %s", resp.StatusCode, string(body))
	}

	var response strings.Builder
	reader := bufio.NewReader(resp.Body)
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			if err == io.EOF {
				break
			}
			return "", err
		}

		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, ":") {
			continue
		}
		if line == "data: [DONE]" {
			break
		}
		if !strings.HasPrefix(line, "data: ") {
			continue
		}

		data := strings.TrimPrefix(line, "data: ")
		var chunk struct {
			Choices []struct {
				Delta struct {
					Content string `json:"content"`
				} `json:"delta"`
			} `json:"choices"`
		}
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			log.Debug().Err(err).Msg("Skipping malformed stream event")
			continue
		}
		if len(chunk.Choices) > 0 && chunk.Choices[0].Delta.Content != "" {
			response.WriteString(chunk.Choices[0].Delta.Content)
		}
	}

	return response.String(), nil
}
