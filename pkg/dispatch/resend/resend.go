package resend

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	resendapi "github.com/resend/resend-go/v2"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/goliatone/go-mailmerge/pkg/dispatch"
	"github.com/goliatone/go-mailmerge/pkg/message"
)

// Name is the registry name of the Resend transport.
const Name = "resend"

// MaxBatchSize is the largest batch the Resend API accepts in one call.
const MaxBatchSize = 100

var (
	// ErrMissingAPIKey signals a transport built without an API key.
	ErrMissingAPIKey = errors.New("resend: api key is required")
	// ErrMissingResult signals a permissive response that omitted an entry.
	ErrMissingResult = errors.New("resend: no result returned for message")
)

// BatchSender is the subset of the Resend batch service the transport needs.
type BatchSender interface {
	SendWithOptions(ctx context.Context, params []*resendapi.SendEmailRequest, options *resendapi.BatchSendEmailOptions) (*resendapi.BatchEmailResponse, error)
}

// DomainLister is used to verify the API key.
type DomainLister interface {
	ListWithContext(ctx context.Context) (resendapi.ListDomainsResponse, error)
}

// Option configures a Transport.
type Option func(*Transport)

// WithLogger sets the structured logger.
func WithLogger(logger *zap.Logger) Option {
	return func(t *Transport) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// WithBatchSize caps the number of messages per API call.
func WithBatchSize(size int) Option {
	return func(t *Transport) {
		if size > 0 && size <= MaxBatchSize {
			t.batchSize = size
		}
	}
}

// WithServices swaps the Resend services, mainly for tests.
func WithServices(batch BatchSender, domains DomainLister) Option {
	return func(t *Transport) {
		if batch != nil {
			t.batch = batch
		}
		if domains != nil {
			t.domains = domains
		}
	}
}

// WithBreakerSettings overrides the circuit breaker guarding API calls.
func WithBreakerSettings(settings gobreaker.Settings) Option {
	return func(t *Transport) {
		t.breakerSettings = &settings
	}
}

// Transport sends through the Resend batch API in permissive mode so one bad
// recipient does not reject the whole call.
type Transport struct {
	batch           BatchSender
	domains         DomainLister
	batchSize       int
	breaker         *gobreaker.CircuitBreaker
	breakerSettings *gobreaker.Settings
	logger          *zap.Logger
}

var _ dispatch.Transport = (*Transport)(nil)

// New builds a transport for apiKey.
func New(apiKey string, options ...Option) (*Transport, error) {
	t := &Transport{batchSize: MaxBatchSize, logger: zap.NewNop()}
	for _, opt := range options {
		if opt != nil {
			opt(t)
		}
	}

	if t.batch == nil || t.domains == nil {
		key := strings.TrimSpace(apiKey)
		if key == "" {
			return nil, ErrMissingAPIKey
		}
		client := resendapi.NewClient(key)
		if t.batch == nil {
			t.batch = client.Batch
		}
		if t.domains == nil {
			t.domains = client.Domains
		}
	}

	settings := gobreaker.Settings{
		Name:     "resend-batch",
		Interval: time.Minute,
		Timeout:  30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
	}
	if t.breakerSettings != nil {
		settings = *t.breakerSettings
	}
	logger := t.logger
	settings.OnStateChange = func(name string, from gobreaker.State, to gobreaker.State) {
		logger.Warn("circuit breaker state changed",
			zap.String("name", name),
			zap.String("from", from.String()),
			zap.String("to", to.String()),
		)
	}
	t.breaker = gobreaker.NewCircuitBreaker(settings)
	return t, nil
}

func (t *Transport) Name() string { return Name }

// Verify lists domains, which fails fast on a missing or revoked API key.
func (t *Transport) Verify(ctx context.Context) error {
	if _, err := t.domains.ListWithContext(ctx); err != nil {
		return fmt.Errorf("resend: verify api key: %w", err)
	}
	return nil
}

// Send delivers msgs in chunks of at most the batch size, sequentially. When
// every chunk fails the first error is returned; otherwise failed chunks are
// reported per message.
func (t *Transport) Send(ctx context.Context, msgs []message.Message) ([]dispatch.Result, error) {
	results := make([]dispatch.Result, len(msgs))
	var (
		firstErr  error
		delivered bool
	)

	for start := 0; start < len(msgs); start += t.batchSize {
		end := start + t.batchSize
		if end > len(msgs) {
			end = len(msgs)
		}
		chunk := msgs[start:end]

		chunkResults, err := t.sendChunk(ctx, chunk)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			t.logger.Warn("resend chunk failed",
				zap.Int("offset", start),
				zap.Int("size", len(chunk)),
				zap.Error(err),
			)
			for i := range chunk {
				results[start+i] = dispatch.Result{Err: err}
			}
			continue
		}
		delivered = true
		copy(results[start:end], chunkResults)
	}

	if !delivered && firstErr != nil {
		return nil, firstErr
	}
	return results, nil
}

func (t *Transport) sendChunk(ctx context.Context, chunk []message.Message) ([]dispatch.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	params := make([]*resendapi.SendEmailRequest, len(chunk))
	for i, msg := range chunk {
		params[i] = toRequest(msg)
	}
	options := &resendapi.BatchSendEmailOptions{
		IdempotencyKey:  idempotencyKey(chunk),
		BatchValidation: resendapi.BatchValidationPermissive,
	}

	raw, err := t.breaker.Execute(func() (interface{}, error) {
		return t.batch.SendWithOptions(ctx, params, options)
	})
	if err != nil {
		return nil, fmt.Errorf("resend: send batch: %w", err)
	}
	resp, _ := raw.(*resendapi.BatchEmailResponse)
	if resp == nil {
		return nil, errors.New("resend: empty batch response")
	}
	return mapResponse(len(chunk), resp), nil
}

// mapResponse lines up a permissive response with the request: Errors carry
// request indexes, Data carries ids for the remaining messages in order.
func mapResponse(size int, resp *resendapi.BatchEmailResponse) []dispatch.Result {
	results := make([]dispatch.Result, size)
	failed := make(map[int]string, len(resp.Errors))
	for _, batchErr := range resp.Errors {
		if batchErr.Index >= 0 && batchErr.Index < size {
			failed[batchErr.Index] = batchErr.Message
		}
	}

	next := 0
	for i := 0; i < size; i++ {
		if msg, ok := failed[i]; ok {
			results[i] = dispatch.Result{Err: errors.New(msg)}
			continue
		}
		if next >= len(resp.Data) {
			results[i] = dispatch.Result{Err: ErrMissingResult}
			continue
		}
		results[i] = dispatch.Result{MessageID: resp.Data[next].Id}
		next++
	}
	return results
}

func toRequest(msg message.Message) *resendapi.SendEmailRequest {
	req := &resendapi.SendEmailRequest{
		From:    msg.From,
		To:      []string{msg.To},
		Subject: msg.Subject,
		Html:    msg.HTML,
		Text:    msg.Text,
	}
	if len(msg.Headers) > 0 {
		req.Headers = make(map[string]string, len(msg.Headers))
		for k, v := range msg.Headers {
			req.Headers[k] = v
		}
	}
	return req
}

// idempotencyKey derives a stable key from the message ids so a retried chunk
// is not delivered twice.
func idempotencyKey(chunk []message.Message) string {
	ids := make([]string, len(chunk))
	for i, msg := range chunk {
		ids[i] = msg.ID
	}
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(strings.Join(ids, ","))).String()
}
