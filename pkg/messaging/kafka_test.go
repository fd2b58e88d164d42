package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type writerStub struct {
	messages []kafka.Message
	err      error
	closed   bool
}

func (w *writerStub) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *writerStub) Close() error {
	w.closed = true
	return nil
}

func TestPublishJSON(t *testing.T) {
	stub := &writerStub{}
	publisher := NewPublisher("formador.audit", stub, nil)

	err := publisher.PublishJSON(context.Background(), "inst-1", map[string]string{"action": "AVAILABILITY_CHECK"}, map[string]string{"type": "audit"})
	require.NoError(t, err)

	require.Len(t, stub.messages, 1)
	msg := stub.messages[0]
	assert.Equal(t, []byte("inst-1"), msg.Key)
	var decoded map[string]string
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, "AVAILABILITY_CHECK", decoded["action"])
	require.Len(t, msg.Headers, 1)
	assert.Equal(t, "type", msg.Headers[0].Key)

	require.NoError(t, publisher.Close())
	assert.True(t, stub.closed)
}

func TestPublishJSONPropagatesWriterError(t *testing.T) {
	publisher := NewPublisher("formador.audit", &writerStub{err: errors.New("broker down")}, nil)

	err := publisher.PublishJSON(context.Background(), "k", struct{}{}, nil)
	assert.ErrorContains(t, err, "broker down")
}

func TestNewKafkaWriterValidates(t *testing.T) {
	_, err := NewKafkaWriter(nil, "topic")
	assert.Error(t, err)
	_, err = NewKafkaWriter([]string{"localhost:9092"}, "")
	assert.Error(t, err)

	writer, err := NewKafkaWriter([]string{"localhost:9092"}, "formador.audit")
	require.NoError(t, err)
	assert.Equal(t, "formador.audit", writer.Topic)
}
