package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/stroysnab-cloud/procura/internal/domain"
)

const parserSystemPrompt = "Ты - эксперт по анализу запросов для поиска товаров. " +
	"Отвечаешь только в формате JSON."

// parserPromptTemplate is filled with the user query. The model must answer
// with a single JSON object and nothing else.
const parserPromptTemplate = `Ты - эксперт по анализу запросов для поиска электротехнической продукции.

Твоя задача: разобрать запрос пользователя и выдать структурированный список товаров с количеством.

ПРАВИЛА:
1. Определи ВСЕ товары, которые нужны пользователю
2. Укажи точное количество каждого товара
3. Определи top_k (количество альтернатив для поиска, 1-10):
   - Для товаров с точными размерами и спецификациями: 2-3
   - Для стандартного крепежа (винты, гайки, шайбы): 5-7
   - Для общих запросов без точных характеристик: 3-5
4. Для комплектов монтажа используй стандарты:
   - Короб/лоток: 1 шт, top_k: 3
   - Крышка: 1 шт, top_k: 3
   - Винты: 4 шт, top_k: 5 (стандарт для монтажа)
   - Гайки: 4 шт, top_k: 5 (если нужны)
   - Шайбы: 4 шт, top_k: 5 (если нужны)
5. Сохраняй спецификации (размеры, резьбу, материал)

ФОРМАТ ОТВЕТА (только JSON, без дополнительного текста):
{
    "items": [
        {"name": "название товара", "quantity": число, "specifications": "технические характеристики", "top_k": 1-10},
        ...
    ],
    "confidence": 0.0-1.0,
    "analysis": "краткий анализ запроса"
}

ЗАПРОС ПОЛЬЗОВАТЕЛЯ:
%s

ОТВЕТ (только JSON):`

// jsonObjectRe finds the JSON object inside a chatty model answer.
var jsonObjectRe = regexp.MustCompile(`(?s)\{.*\}`)

// Parser extracts a structured item list from a free-text request via an
// OpenAI-compatible chat completion API.
type Parser struct {
	client *openai.Client
	model  string
	logger *zap.Logger
}

// ParserConfig holds the request parser settings.
type ParserConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Logger  *zap.Logger
}

// NewParser creates an OpenAI-compatible request parser.
func NewParser(cfg *ParserConfig) *Parser {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	return &Parser{
		client: openai.NewClientWithConfig(clientCfg),
		model:  cfg.Model,
		logger: cfg.Logger,
	}
}

// wire format of the model answer.
type parsedResponse struct {
	Items []struct {
		Name           string `json:"name"`
		Quantity       int    `json:"quantity"`
		Specifications string `json:"specifications"`
		TopK           int    `json:"top_k"`
	} `json:"items"`
	Confidence float64 `json:"confidence"`
	Analysis   string  `json:"analysis"`
}

// ParseRequest asks the model to decompose text into items. Any failure is
// wrapped with domain.ErrParserUnavailable; the caller falls back to rules.
func (p *Parser) ParseRequest(ctx context.Context, text string) (domain.ParsedRequest, error) {
	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: p.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: parserSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: fmt.Sprintf(parserPromptTemplate, text)},
		},
		Temperature: 0.3,
		MaxTokens:   512,
	})
	if err != nil {
		return domain.ParsedRequest{}, fmt.Errorf("chat completion: %v: %w", err, domain.ErrParserUnavailable)
	}
	if len(resp.Choices) == 0 {
		return domain.ParsedRequest{}, fmt.Errorf("empty completion response: %w", domain.ErrParserUnavailable)
	}

	parsed, err := decodeParserAnswer(resp.Choices[0].Message.Content)
	if err != nil {
		p.logger.Debug("Unparseable model answer",
			zap.String("answer", resp.Choices[0].Message.Content))
		return domain.ParsedRequest{}, fmt.Errorf("decode answer: %v: %w", err, domain.ErrParserUnavailable)
	}

	return parsed, nil
}

// decodeParserAnswer pulls the JSON object out of the answer and validates
// the structure: every item needs a name and a quantity.
func decodeParserAnswer(answer string) (domain.ParsedRequest, error) {
	raw := jsonObjectRe.FindString(answer)
	if raw == "" {
		return domain.ParsedRequest{}, fmt.Errorf("no JSON object in answer")
	}

	var resp parsedResponse
	if err := json.Unmarshal([]byte(raw), &resp); err != nil {
		return domain.ParsedRequest{}, fmt.Errorf("unmarshal answer: %w", err)
	}
	if len(resp.Items) == 0 {
		return domain.ParsedRequest{}, fmt.Errorf("answer has no items")
	}

	out := domain.ParsedRequest{
		Items:      make([]domain.ParsedItem, 0, len(resp.Items)),
		Confidence: resp.Confidence,
		Analysis:   resp.Analysis,
	}
	for i, it := range resp.Items {
		if it.Name == "" {
			return domain.ParsedRequest{}, fmt.Errorf("item %d has no name", i)
		}
		out.Items = append(out.Items, domain.ParsedItem{
			Name:           it.Name,
			Quantity:       it.Quantity,
			Specification:  it.Specifications,
			CandidateCount: it.TopK,
		})
	}
	return out, nil
}
