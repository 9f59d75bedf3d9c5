package worker

import (
	"log/slog"

	"github.com/cradoe/vestra/internal/helper"
	"github.com/cradoe/vestra/internal/repository"
	"github.com/cradoe/vestra/internal/smtp"
	"github.com/cradoe/vestra/internal/stream"
)

type Worker struct {
	KafkaStream *stream.KafkaStream
	ProfileRepo repository.ProfileRepository
	Mailer      smtp.MailerInterface
	Helper      *helper.HelperRepository
	Logger      *slog.Logger
}

const (
	// notificationGroupID is used by workers that email users when something
	// happened to their money or their identity verification
	notificationGroupID = "notification-group"
)

// NotificationTopics are the domain events that end in an email to the owner.
var NotificationTopics = []string{
	stream.TopicWithdrawalProcessed,
	stream.TopicKYCDecided,
	stream.TopicInvestmentCreated,
}

// Our workers typically need access to the profiles, the mailer and the
// event stream. Worker-specific dependencies can be passed as arguments.
func New(wk *Worker) *Worker {
	return &Worker{
		KafkaStream: wk.KafkaStream,
		ProfileRepo: wk.ProfileRepo,
		Mailer:      wk.Mailer,
		Helper:      wk.Helper,
		Logger:      wk.Logger,
	}
}
