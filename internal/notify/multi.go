package notify

import (
	"context"

	"github.com/rotisserie/eris"
)

// Multi sends each event to every notifier. All are tried; the first error
// is returned.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, e Event) error {
	var first error
	for _, n := range m {
		if err := n.Notify(ctx, e); err != nil && first == nil {
			first = eris.Wrapf(err, "notify %s", e.Kind)
		}
	}
	return first
}
