package notification

import (
	"context"
	"log/slog"
)

const (
	// KindTransferReceived tells a recipient that money arrived.
	KindTransferReceived = "transfer_received"
	// KindOTPCode delivers a one-time verification code over SMS.
	KindOTPCode = "otp_code"
)

// Message describes a notification payload. Destination is a phone number.
type Message struct {
	Kind        string
	Destination string
	Body        string
}

// Notifier delivers notifications to downstream systems, typically an SMS
// provider.
type Notifier interface {
	Send(ctx context.Context, message Message) error
}

// LoggerNotifier is a stub implementation that writes notifications to the
// logger. The real SMS provider integration slots in behind Notifier.
type LoggerNotifier struct {
	logger *slog.Logger
}

// NewLoggerNotifier constructs a logging notifier stub.
func NewLoggerNotifier(logger *slog.Logger) *LoggerNotifier {
	return &LoggerNotifier{logger: logger}
}

// Send writes the message to the structured logger.
func (n *LoggerNotifier) Send(_ context.Context, message Message) error {
	if n == nil || n.logger == nil {
		return nil
	}
	n.logger.Info("notification", "kind", message.Kind, "destination", message.Destination, "body", message.Body)
	return nil
}
