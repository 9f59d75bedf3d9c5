package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/cradoe/vestra/internal/stream"
)

// NotificationWorker consumes the notification topics until ctx is done.
func (wk *Worker) NotificationWorker(ctx context.Context) error {
	consumer, err := wk.KafkaStream.CreateConsumer(&stream.StreamConsumer{
		GroupId: notificationGroupID,
		Topics:  NotificationTopics,
	})
	if err != nil {
		return fmt.Errorf("create notification consumer: %w", err)
	}
	defer consumer.Close()

	wk.Logger.Info("notification worker started", "topics", NotificationTopics)

	for {
		select {
		case <-ctx.Done():
			wk.Logger.Info("notification worker stopped")
			return nil
		default:
		}

		event := consumer.Poll(100)
		switch e := event.(type) {
		case *kafka.Message:
			topic := ""
			if e.TopicPartition.Topic != nil {
				topic = *e.TopicPartition.Topic
			}

			wk.Logger.Debug("notification message received", "topic", topic, "partition", e.TopicPartition.Partition)

			if err := wk.HandleMessage(topic, e.Value); err != nil {
				wk.Logger.Error("notification failed", "topic", topic, "error", err.Error())
			}
		case kafka.Error:
			wk.Logger.Error("notification consumer error", "error", e.Error())
		}
	}
}

// HandleMessage emails the owner of the event. Events for unknown users are
// dropped.
func (wk *Worker) HandleMessage(topic string, value []byte) error {
	switch topic {
	case stream.TopicWithdrawalProcessed:
		var event stream.WithdrawalProcessedEvent
		if err := json.Unmarshal(value, &event); err != nil {
			return fmt.Errorf("decode %s: %w", topic, err)
		}

		return wk.notify(event.UserID, "withdrawal-processed.tmpl", map[string]any{
			"Status":     event.Status,
			"Amount":     event.Amount,
			"NewBalance": event.NewBalance,
			"Notes":      event.Notes,
		})

	case stream.TopicKYCDecided:
		var event stream.KYCDecidedEvent
		if err := json.Unmarshal(value, &event); err != nil {
			return fmt.Errorf("decode %s: %w", topic, err)
		}

		return wk.notify(event.UserID, "kyc-decided.tmpl", map[string]any{
			"Status": event.Status,
		})

	case stream.TopicInvestmentCreated:
		var event stream.InvestmentCreatedEvent
		if err := json.Unmarshal(value, &event); err != nil {
			return fmt.Errorf("decode %s: %w", topic, err)
		}

		return wk.notify(event.UserID, "investment-created.tmpl", map[string]any{
			"PlanName": event.PlanName,
			"Amount":   event.Amount,
			"Returns":  event.Returns,
		})
	}

	return fmt.Errorf("unexpected topic %q", topic)
}

func (wk *Worker) notify(userID, template string, fields map[string]any) error {
	profile, found, err := wk.ProfileRepo.GetOne(userID)
	if err != nil {
		return err
	}

	if !found {
		wk.Logger.Warn("notification for unknown user dropped", "user_id", userID, "template", template)
		return nil
	}

	data := wk.Helper.NewEmailData()
	data["Name"] = profile.DisplayName()
	for key, value := range fields {
		data[key] = value
	}

	return wk.Mailer.Send(profile.Email, data, template)
}
