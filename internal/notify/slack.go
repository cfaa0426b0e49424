package notify

import (
	"context"
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/slack-go/slack"
)

type messagePoster interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slack.MsgOption) (string, string, error)
}

// SlackNotifier posts a one-line summary of each event to a channel.
type SlackNotifier struct {
	api       messagePoster
	channelID string
}

func NewSlackNotifier(token, channelID string) *SlackNotifier {
	return &SlackNotifier{api: slack.New(token), channelID: channelID}
}

func (s *SlackNotifier) Notify(ctx context.Context, e Event) error {
	_, _, err := s.api.PostMessageContext(ctx, s.channelID, slack.MsgOptionText(Text(e), false))
	if err != nil {
		return eris.Wrapf(err, "post %s for %s to slack", e.Kind, e.RecordID)
	}
	return nil
}

// Text renders e for humans.
func Text(e Event) string {
	switch e.Kind {
	case KindAssigned:
		return fmt.Sprintf(":inbox_tray: Request *%s* (%s / %s) assigned to *%s* (#%d)",
			e.RecordID, e.RequestType, e.SubRequestType, e.HandlerName, e.HandlerID)
	case KindDuplicate:
		return fmt.Sprintf(":repeat: Request *%s* duplicates *%s*", e.RecordID, e.OriginalID)
	default:
		return fmt.Sprintf(":warning: Request *%s* (%s / %s) has no matching handler",
			e.RecordID, e.RequestType, e.SubRequestType)
	}
}
