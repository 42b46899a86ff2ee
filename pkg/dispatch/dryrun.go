package dispatch

import (
	"context"

	"go.uber.org/zap"

	"github.com/goliatone/go-mailmerge/pkg/message"
)

// DryRunName is the registry name of the dry-run transport.
const DryRunName = "dryrun"

// DryRun logs every message instead of sending it. Every message succeeds.
type DryRun struct {
	logger *zap.Logger
}

// NewDryRun builds a dry-run transport. A nil logger discards output.
func NewDryRun(logger *zap.Logger) *DryRun {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DryRun{logger: logger}
}

func (d *DryRun) Name() string { return DryRunName }

func (d *DryRun) Verify(context.Context) error { return nil }

func (d *DryRun) Send(ctx context.Context, msgs []message.Message) ([]Result, error) {
	results := make([]Result, len(msgs))
	for i, msg := range msgs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		d.logger.Info("dry run message",
			zap.String("message_id", msg.ID),
			zap.String("from", msg.From),
			zap.String("to", msg.To),
			zap.String("subject", msg.Subject),
			zap.Int("html_bytes", len(msg.HTML)),
			zap.Int("text_bytes", len(msg.Text)),
		)
		results[i] = Result{MessageID: msg.ID}
	}
	return results, nil
}
