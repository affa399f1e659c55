package kafka

import (
	"time"

	"github.com/IBM/sarama"
	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
)

const (
	CirculationTopic = "circulation"
)

type EventType string

const (
	EventBookCheckedOut EventType = "book.checked_out"
	EventBookReturned   EventType = "book.returned"
	EventHoldPlaced     EventType = "hold.placed"
	EventHoldPromoted   EventType = "hold.promoted"
	EventFineAssessed   EventType = "fine.assessed"
)

type Config struct {
	Addrs   []string `envconfig:"KAFKA_ADDRS"`
	Enabled bool     `envconfig:"KAFKA_ENABLED" default:"true"`
}

// EventCirculation is the payload published on CirculationTopic.
type EventCirculation struct {
	EventType EventType `json:"eventType"`
	Timestamp time.Time `json:"timestamp"`
	Barcode   string    `json:"barcode"`
	PatronID  string    `json:"patronId,omitempty"`
	DueDate   time.Time `json:"dueDate,omitempty"`
	Amount    string    `json:"amount,omitempty"`
	DaysOver  int       `json:"daysOverdue,omitempty"`
}

var json = jsoniter.ConfigCompatibleWithStandardLibrary

func Encode(v any) ([]byte, error) {
	return json.Marshal(v)
}

func Decode(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

func NewProducer(cfg Config) (sarama.SyncProducer, error) {
	defaultCfg := sarama.NewConfig()

	defaultCfg.Producer.RequiredAcks = sarama.WaitForAll
	defaultCfg.Producer.Return.Successes = true
	defaultCfg.Producer.Retry.Max = 3

	return sarama.NewSyncProducer(cfg.Addrs, defaultCfg)
}

type Publisher struct {
	producer sarama.SyncProducer
	topic    string
}

func NewPublisher(producer sarama.SyncProducer, topic string) *Publisher {
	return &Publisher{
		producer: producer,
		topic:    topic,
	}
}

// Publish keys messages by barcode so events of one book stay ordered within a partition.
func (p *Publisher) Publish(event EventCirculation) error {
	data, err := Encode(event)
	if err != nil {
		return errors.Wrap(err, "encode event")
	}
	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(event.Barcode),
		Value: sarama.ByteEncoder(data),
	}
	if _, _, err = p.producer.SendMessage(msg); err != nil {
		return errors.Wrap(err, "send message")
	}
	return nil
}

func (p *Publisher) Close() error {
	return p.producer.Close()
}
