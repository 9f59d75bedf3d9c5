package stream

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingProducer struct {
	topic   string
	message string
	err     error
}

func (p *recordingProducer) ProduceMessage(topic, message string) error {
	p.topic = topic
	p.message = message
	return p.err
}

func TestPublish(t *testing.T) {
	p := &recordingProducer{}

	err := Publish(p, TopicKYCDecided, KYCDecidedEvent{
		SubmissionID: "sub-1",
		UserID:       "user-1",
		Status:       "approved",
	})
	require.NoError(t, err)

	assert.Equal(t, "kyc.decided", p.topic)
	assert.JSONEq(t, `{"submission_id":"sub-1","user_id":"user-1","status":"approved"}`, p.message)
}

func TestPublish_ProducerError(t *testing.T) {
	p := &recordingProducer{err: errors.New("broker down")}

	err := Publish(p, TopicWithdrawalProcessed, WithdrawalProcessedEvent{WithdrawalID: "w-1"})
	assert.EqualError(t, err, "broker down")
}
