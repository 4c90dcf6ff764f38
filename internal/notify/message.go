// Package notify sends the templated messages that tell users a build is waiting on them.
package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidMessage is returned for a message that cannot be sent
var ErrInvalidMessage = errors.New("invalid notification message")

// TemplateMessage is a message rendered from a named template
type TemplateMessage struct {
	TemplateCode string
	Sender       string
	TitleParams  map[string]string
	BodyParams   map[string]string
	Receivers    []string
}

// Validate checks the message has a template and at least one receiver
func (m TemplateMessage) Validate() error {
	if strings.TrimSpace(m.TemplateCode) == "" {
		return fmt.Errorf("%w: template code is empty", ErrInvalidMessage)
	}
	if len(m.Receivers) == 0 {
		return fmt.Errorf("%w: no receivers", ErrInvalidMessage)
	}
	for _, r := range m.Receivers {
		if strings.TrimSpace(r) == "" {
			return fmt.Errorf("%w: blank receiver", ErrInvalidMessage)
		}
	}
	return nil
}

// Sender delivers templated messages
type Sender interface {
	SendTemplated(ctx context.Context, msg TemplateMessage) error
}
