package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/goliatone/go-mailmerge/pkg/message"
	"github.com/goliatone/go-mailmerge/pkg/submission"
)

var (
	// ErrMissingTransport signals a service built without a transport.
	ErrMissingTransport = errors.New("dispatch: transport is required")
	// ErrMissingComposer signals a service built without a composer.
	ErrMissingComposer = errors.New("dispatch: composer is required")
)

// CredentialChecker optionally replaces Transport.Verify as the credential
// capability, for example a cached check.
type CredentialChecker interface {
	EnsureCredential(ctx context.Context) error
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithLogger sets the structured logger.
func WithLogger(logger *zap.Logger) ServiceOption {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithCredentialChecker overrides the transport's own Verify.
func WithCredentialChecker(checker CredentialChecker) ServiceOption {
	return func(s *Service) {
		if checker != nil {
			s.credentials = checker
		}
	}
}

// Service adapts a Transport to the submission capabilities: it renders each
// entry, sends what rendered, and maps provider results back onto entries.
type Service struct {
	transport   Transport
	composer    *message.Composer
	credentials CredentialChecker
	logger      *zap.Logger
}

var (
	_ submission.Dispatcher         = (*Service)(nil)
	_ submission.CredentialProvider = (*Service)(nil)
)

// NewService wires transport and composer together.
func NewService(transport Transport, composer *message.Composer, options ...ServiceOption) (*Service, error) {
	if transport == nil {
		return nil, ErrMissingTransport
	}
	if composer == nil {
		return nil, ErrMissingComposer
	}
	s := &Service{transport: transport, composer: composer, logger: zap.NewNop()}
	for _, opt := range options {
		if opt != nil {
			opt(s)
		}
	}
	return s, nil
}

// Transport returns the wrapped transport.
func (s *Service) Transport() Transport {
	return s.transport
}

// EnsureCredential verifies the transport credential.
func (s *Service) EnsureCredential(ctx context.Context) error {
	if s.credentials != nil {
		return s.credentials.EnsureCredential(ctx)
	}
	return s.transport.Verify(ctx)
}

// Dispatch renders and sends the batch. An entry that fails to render is
// reported as failed without reaching the transport; the others still go out.
func (s *Service) Dispatch(ctx context.Context, batch submission.Batch) (submission.Outcome, error) {
	results := make([]submission.EntryResult, len(batch.Entries))
	msgs := make([]message.Message, 0, len(batch.Entries))
	positions := make([]int, 0, len(batch.Entries))

	for idx, entry := range batch.Entries {
		results[idx] = submission.EntryResult{Email: strings.TrimSpace(entry.Email)}
		msg, err := s.composer.Compose(batch.Template, entry)
		if err != nil {
			results[idx].Message = err.Error()
			s.logger.Warn("render failed",
				zap.String("batch_id", batch.ID),
				zap.Int("entry", idx),
				zap.Error(err),
			)
			continue
		}
		if batch.ID != "" {
			msg.Headers[message.HeaderBatchID] = batch.ID
		}
		msgs = append(msgs, msg)
		positions = append(positions, idx)
	}

	if len(msgs) > 0 {
		sent, err := s.transport.Send(ctx, msgs)
		if err != nil {
			return submission.Outcome{}, err
		}
		if len(sent) != len(msgs) {
			return submission.Outcome{}, fmt.Errorf("dispatch: %s returned %d results for %d messages", s.transport.Name(), len(sent), len(msgs))
		}
		for i, res := range sent {
			idx := positions[i]
			if res.Err != nil {
				results[idx].Message = res.Err.Error()
				continue
			}
			results[idx].Succeeded = true
			results[idx].MessageID = res.MessageID
		}
	}

	outcome := submission.NewOutcome(results)
	succeeded, failed := outcome.Counts()
	s.logger.Info("batch dispatched",
		zap.String("transport", s.transport.Name()),
		zap.String("batch_id", batch.ID),
		zap.Int("succeeded", succeeded),
		zap.Int("failed", failed),
	)
	return outcome, nil
}
