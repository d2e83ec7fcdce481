// Package pipeline 包含了异步处理消息的管线组件。
package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"astra-chat-go/pkg/es"
	"astra-chat-go/pkg/log"
	"astra-chat-go/pkg/tasks"
)

// Indexer 把消息索引任务写入 Elasticsearch 的消息索引。
// 以 message_uid 作为文档 ID，重复消费天然幂等。
type Indexer struct {
	indexName string
}

// NewIndexer 创建一个新的 Indexer。
func NewIndexer(indexName string) *Indexer {
	return &Indexer{indexName: indexName}
}

// Process 索引单条消息。
func (i *Indexer) Process(ctx context.Context, task tasks.MessageIndexTask) error {
	doc := map[string]any{
		"message_uid":        task.MessageUID,
		"conversation_id":    task.ConversationID,
		"conversation_title": task.ConversationTitle,
		"user_id":            task.UserID,
		"role":               task.Role,
		"content":            task.Content,
		"created_at":         task.CreatedAt,
	}
	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal index document: %w", err)
	}

	res, err := es.ESClient.Index(
		i.indexName,
		bytes.NewReader(body),
		es.ESClient.Index.WithContext(ctx),
		es.ESClient.Index.WithDocumentID(task.MessageUID),
	)
	if err != nil {
		return fmt.Errorf("failed to index message %s: %w", task.MessageUID, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("index request for message %s failed: %s", task.MessageUID, res.String())
	}

	log.Infof("消息 %s 已写入索引 %s", task.MessageUID, i.indexName)
	return nil
}
