package notify

import (
	"context"

	"buildctl/internal/metrics"

	"github.com/rs/zerolog/log"
)

// PauseNotice describes a paused task
type PauseNotice struct {
	ProjectName  string
	PipelineName string
	BuildID      string
	TaskID       string
	TaskName     string
	Recipients   []string
}

// PauseNotifier tells users that a task is waiting for them. Delivery is best effort: failures are
// logged and counted, never returned.
type PauseNotifier struct {
	sender       Sender
	templateCode string
	senderName   string
	metrics      *metrics.Metrics
}

func NewPauseNotifier(sender Sender, templateCode, senderName string, m *metrics.Metrics) *PauseNotifier {
	if templateCode == "" {
		templateCode = PauseTemplateCode
	}
	return &PauseNotifier{
		sender:       sender,
		templateCode: templateCode,
		senderName:   senderName,
		metrics:      m,
	}
}

// Notify sends the pause notification. It reports whether a message was handed to the sender
// successfully.
func (n *PauseNotifier) Notify(ctx context.Context, notice PauseNotice) bool {
	if len(notice.Recipients) == 0 {
		log.Info().
			Str("build_id", notice.BuildID).
			Str("task_id", notice.TaskID).
			Msg("No one to notify about paused task")
		return false
	}

	msg := TemplateMessage{
		TemplateCode: n.templateCode,
		Sender:       n.senderName,
		TitleParams: map[string]string{
			"pipelineName": notice.PipelineName,
			"buildId":      notice.BuildID,
		},
		BodyParams: map[string]string{
			"projectName":  notice.ProjectName,
			"pipelineName": notice.PipelineName,
			"buildId":      notice.BuildID,
			"taskId":       notice.TaskID,
			"taskName":     notice.TaskName,
		},
		Receivers: notice.Recipients,
	}

	if err := n.sender.SendTemplated(ctx, msg); err != nil {
		log.Error().
			Err(err).
			Str("build_id", notice.BuildID).
			Str("task_id", notice.TaskID).
			Strs("receivers", notice.Recipients).
			Msg("Could not send pause notification")
		n.metrics.NotificationFailure()
		return false
	}
	return true
}
