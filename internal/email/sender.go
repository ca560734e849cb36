package email

import (
	"context"
	"errors"
)

// Sender define la interfaz para envio de correos transaccionales.
type Sender interface {
	SendVerification(ctx context.Context, toEmail, name, token, link string) error
	SendPasswordReset(ctx context.Context, toEmail, name, token, link string) error
}

type disabledSender struct {
	reason string
}

func NewDisabledSender(reason string) Sender {
	return &disabledSender{reason: reason}
}

func (s *disabledSender) SendVerification(_ context.Context, _, _, _, _ string) error {
	return s.err()
}

func (s *disabledSender) SendPasswordReset(_ context.Context, _, _, _, _ string) error {
	return s.err()
}

func (s *disabledSender) err() error {
	if s.reason == "" {
		return errors.New("email sender disabled")
	}
	return errors.New(s.reason)
}
