package notify

import (
	"context"

	"github.com/rs/zerolog/log"
)

// LogSender only logs the messages it is given. Used when mail delivery is disabled.
type LogSender struct{}

func (LogSender) SendTemplated(_ context.Context, msg TemplateMessage) error {
	if err := msg.Validate(); err != nil {
		return err
	}
	log.Info().
		Str("template", msg.TemplateCode).
		Str("sender", msg.Sender).
		Interface("title_params", msg.TitleParams).
		Interface("body_params", msg.BodyParams).
		Strs("receivers", msg.Receivers).
		Msg("Notification (delivery disabled)")
	return nil
}
