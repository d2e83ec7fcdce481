package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"astra-chat-go/internal/config"
	"astra-chat-go/internal/model"
	"astra-chat-go/internal/repository"
	"astra-chat-go/pkg/es"
	"astra-chat-go/pkg/log"
)

// searchResultSize 单次检索返回的消息条数上限。
const searchResultSize = 20

// SearchService 在用户的历史消息中做全文检索。
// 首选 Elasticsearch；索引不可用时降级为数据库子串匹配。
type SearchService interface {
	SearchMessages(ctx context.Context, userID uint, query string) ([]model.MessageSearchRow, error)
}

type searchService struct {
	messages repository.MessageRepository
	cfg      *config.ElasticsearchConfig
}

func NewSearchService(messages repository.MessageRepository, cfg *config.ElasticsearchConfig) SearchService {
	return &searchService{messages: messages, cfg: cfg}
}

func (s *searchService) SearchMessages(ctx context.Context, userID uint, query string) ([]model.MessageSearchRow, error) {
	if query == "" {
		return []model.MessageSearchRow{}, nil
	}

	rows, err := s.searchES(ctx, userID, query)
	if err != nil {
		log.Warnf("elasticsearch query failed, falling back to database: %v", err)
		return s.messages.SearchLike(ctx, userID, query, searchResultSize)
	}
	return rows, nil
}

func (s *searchService) searchES(ctx context.Context, userID uint, query string) ([]model.MessageSearchRow, error) {
	if es.ESClient == nil {
		return nil, fmt.Errorf("elasticsearch client not initialized")
	}

	body := map[string]any{
		"size": searchResultSize,
		"query": map[string]any{
			"bool": map[string]any{
				"must": map[string]any{
					"match": map[string]any{"content": query},
				},
				"filter": map[string]any{
					"term": map[string]any{"user_id": userID},
				},
			},
		},
		"sort": []map[string]any{
			{"created_at": map[string]any{"order": "desc"}},
		},
	}
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return nil, fmt.Errorf("failed to encode search query: %w", err)
	}

	res, err := es.ESClient.Search(
		es.ESClient.Search.WithContext(ctx),
		es.ESClient.Search.WithIndex(s.cfg.IndexName),
		es.ESClient.Search.WithBody(&buf),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to execute search: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, fmt.Errorf("search returned error: %s", res.String())
	}

	var parsed struct {
		Hits struct {
			Hits []struct {
				Source struct {
					MessageUID        string `json:"message_uid"`
					ConversationID    uint   `json:"conversation_id"`
					ConversationTitle string `json:"conversation_title"`
					Content           string `json:"content"`
					CreatedAt         string `json:"created_at"`
				} `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}

	rows := make([]model.MessageSearchRow, 0, len(parsed.Hits.Hits))
	for _, hit := range parsed.Hits.Hits {
		rows = append(rows, model.MessageSearchRow{
			MessageUID:        hit.Source.MessageUID,
			ConversationID:    hit.Source.ConversationID,
			ConversationTitle: hit.Source.ConversationTitle,
			Content:           hit.Source.Content,
			CreatedAt:         parseESTime(hit.Source.CreatedAt),
		})
	}
	return rows, nil
}

// parseESTime 解析索引里的 RFC3339 时间，失败时返回零值。
func parseESTime(s string) model.LocalTime {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return model.LocalTime{}
	}
	return model.LocalTime(t)
}
