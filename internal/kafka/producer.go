package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/lvdashuaibi/hotrank/config"
	"github.com/lvdashuaibi/hotrank/internal/model"
	"github.com/segmentio/kafka-go"
)

// Producer 变更事件生产者。投票、购买排名、新增事件后
// 向Kafka发送变更事件，由消费侧清理缓存。
type Producer struct {
	writer *kafka.Writer
}

func NewProducer() (*Producer, error) {
	// 连接探活，尽早暴露Broker配置问题
	conn, err := kafka.DialLeader(context.Background(), "tcp",
		config.AppConfig.Kafka.Brokers[0], config.AppConfig.Kafka.Topic, 0)
	if err != nil {
		return nil, fmt.Errorf("连接Kafka失败: %w", err)
	}
	conn.Close()

	// 使用Hash分区器，基于消息Key进行分区路由
	writer := &kafka.Writer{
		Addr:     kafka.TCP(config.AppConfig.Kafka.Brokers...),
		Topic:    config.AppConfig.Kafka.Topic,
		Balancer: &kafka.Hash{},
	}

	return &Producer{writer: writer}, nil
}

// SendChangeEvent 发送变更事件到Kafka
func (p *Producer) SendChangeEvent(ctx context.Context, event *model.ChangeEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("序列化变更事件失败: %w", err)
	}

	// 同一事件的变更路由到同一分区，保证消费顺序
	var key []byte
	if event.EventID > 0 {
		key = []byte(event.Type + ":" + strconv.FormatInt(event.EventID, 10))
	} else {
		key = []byte(event.Type + ":" + strconv.FormatInt(event.UserID, 10))
	}

	msg := kafka.Message{
		Key:   key,
		Value: data,
		Time:  time.Now(),
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("发送变更事件失败: %w", err)
	}

	return nil
}

// Close 关闭Kafka生产者
func (p *Producer) Close() error {
	return p.writer.Close()
}
