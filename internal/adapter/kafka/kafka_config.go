package kafka

import (
	"time"

	"github.com/IBM/sarama"
)

func NewSyncProducer(brokers []string) (sarama.SyncProducer, error) {
	cfg := sarama.NewConfig()
	cfg.Version = sarama.V2_6_0_0
	cfg.Producer.RequiredAcks = sarama.WaitForLocal
	cfg.Producer.Return.Successes = true
	cfg.Producer.Retry.Max = 3
	cfg.Net.DialTimeout = 5 * time.Second
	return sarama.NewSyncProducer(brokers, cfg)
}
