package resend_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
	resendapi "github.com/resend/resend-go/v2"
	"github.com/sony/gobreaker"

	"github.com/goliatone/go-mailmerge/pkg/dispatch/resend"
	"github.com/goliatone/go-mailmerge/pkg/message"
)

type fakeBatch struct {
	calls   [][]*resendapi.SendEmailRequest
	options []*resendapi.BatchSendEmailOptions
	respond func(call int, params []*resendapi.SendEmailRequest) (*resendapi.BatchEmailResponse, error)
}

func (f *fakeBatch) SendWithOptions(_ context.Context, params []*resendapi.SendEmailRequest, options *resendapi.BatchSendEmailOptions) (*resendapi.BatchEmailResponse, error) {
	call := len(f.calls)
	f.calls = append(f.calls, params)
	f.options = append(f.options, options)
	if f.respond != nil {
		return f.respond(call, params)
	}
	resp := &resendapi.BatchEmailResponse{}
	for i := range params {
		resp.Data = append(resp.Data, resendapi.SendEmailResponse{Id: fmt.Sprintf("id-%d-%d", call, i)})
	}
	return resp, nil
}

type fakeDomains struct {
	err error
}

func (f fakeDomains) ListWithContext(context.Context) (resendapi.ListDomainsResponse, error) {
	return resendapi.ListDomainsResponse{}, f.err
}

func messages(n int) []message.Message {
	out := make([]message.Message, n)
	for i := range out {
		out[i] = message.Message{
			ID:      fmt.Sprintf("msg-%d", i),
			From:    "team@example.com",
			To:      fmt.Sprintf("user%d@example.com", i),
			Subject: "Hello",
			Headers: map[string]string{message.HeaderTemplateID: "invite"},
		}
	}
	return out
}

func TestNew_RequiresAPIKey(t *testing.T) {
	if _, err := resend.New(" "); !errors.Is(err, resend.ErrMissingAPIKey) {
		t.Fatalf("expected ErrMissingAPIKey, got %v", err)
	}
}

func TestVerify(t *testing.T) {
	ok, err := resend.New("", resend.WithServices(&fakeBatch{}, fakeDomains{}))
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := ok.Verify(context.Background()); err != nil {
		t.Fatalf("verify: %v", err)
	}

	denied, _ := resend.New("", resend.WithServices(&fakeBatch{}, fakeDomains{err: errors.New("invalid api key")}))
	if err := denied.Verify(context.Background()); err == nil {
		t.Fatalf("expected verify failure")
	}
}

func TestSend_PermissivePartialFailure(t *testing.T) {
	batch := &fakeBatch{
		respond: func(_ int, params []*resendapi.SendEmailRequest) (*resendapi.BatchEmailResponse, error) {
			return &resendapi.BatchEmailResponse{
				Data:   []resendapi.SendEmailResponse{{Id: "a"}, {Id: "c"}},
				Errors: []resendapi.BatchError{{Index: 1, Message: "invalid recipient"}},
			}, nil
		},
	}
	transport, err := resend.New("", resend.WithServices(batch, fakeDomains{}))
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	results, err := transport.Send(context.Background(), messages(3))
	if err != nil {
		t.Fatalf("send: %v", err)
	}

	got := []string{results[0].MessageID, results[1].Err.Error(), results[2].MessageID}
	if diff := cmp.Diff([]string{"a", "invalid recipient", "c"}, got); diff != "" {
		t.Fatalf("results mismatch (-want +got):\n%s", diff)
	}

	opts := batch.options[0]
	if opts.BatchValidation != resendapi.BatchValidationPermissive || opts.IdempotencyKey == "" {
		t.Fatalf("unexpected options %+v", opts)
	}
	req := batch.calls[0][0]
	if req.To[0] != "user0@example.com" || req.Headers[message.HeaderTemplateID] != "invite" {
		t.Fatalf("unexpected request %+v", req)
	}
}

func TestSend_ChunksRequests(t *testing.T) {
	batch := &fakeBatch{}
	transport, err := resend.New("", resend.WithServices(batch, fakeDomains{}), resend.WithBatchSize(2))
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	results, err := transport.Send(context.Background(), messages(5))
	if err != nil {
		t.Fatalf("send: %v", err)
	}

	sizes := make([]int, len(batch.calls))
	for i, call := range batch.calls {
		sizes[i] = len(call)
	}
	if diff := cmp.Diff([]int{2, 2, 1}, sizes); diff != "" {
		t.Fatalf("chunk sizes mismatch (-want +got):\n%s", diff)
	}
	if results[4].MessageID != "id-2-0" {
		t.Fatalf("unexpected id for last message: %q", results[4].MessageID)
	}
	if batch.options[0].IdempotencyKey == batch.options[1].IdempotencyKey {
		t.Fatalf("expected distinct idempotency keys per chunk")
	}
}

func TestSend_FailedChunkReportedPerMessage(t *testing.T) {
	batch := &fakeBatch{}
	batch.respond = func(call int, params []*resendapi.SendEmailRequest) (*resendapi.BatchEmailResponse, error) {
		if call == 1 {
			return nil, errors.New("rate limited")
		}
		resp := &resendapi.BatchEmailResponse{}
		for range params {
			resp.Data = append(resp.Data, resendapi.SendEmailResponse{Id: "ok"})
		}
		return resp, nil
	}
	transport, _ := resend.New("", resend.WithServices(batch, fakeDomains{}), resend.WithBatchSize(2))

	results, err := transport.Send(context.Background(), messages(4))
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if results[0].Err != nil || results[1].Err != nil {
		t.Fatalf("first chunk should succeed: %+v", results[:2])
	}
	if results[2].Err == nil || results[3].Err == nil {
		t.Fatalf("second chunk should fail: %+v", results[2:])
	}
}

func TestSend_AllChunksFailReturnsError(t *testing.T) {
	batch := &fakeBatch{
		respond: func(int, []*resendapi.SendEmailRequest) (*resendapi.BatchEmailResponse, error) {
			return nil, errors.New("unauthorized")
		},
	}
	transport, _ := resend.New("", resend.WithServices(batch, fakeDomains{}))

	if _, err := transport.Send(context.Background(), messages(2)); err == nil {
		t.Fatalf("expected error when nothing was delivered")
	}
}

func TestSend_BreakerOpensAfterFailures(t *testing.T) {
	batch := &fakeBatch{
		respond: func(int, []*resendapi.SendEmailRequest) (*resendapi.BatchEmailResponse, error) {
			return nil, errors.New("upstream down")
		},
	}
	transport, _ := resend.New("",
		resend.WithServices(batch, fakeDomains{}),
		resend.WithBatchSize(1),
		resend.WithBreakerSettings(gobreaker.Settings{
			Name: "test",
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 2
			},
		}),
	)

	_, err := transport.Send(context.Background(), messages(4))
	if err == nil {
		t.Fatalf("expected error")
	}
	if len(batch.calls) != 2 {
		t.Fatalf("expected breaker to stop calls after 2 failures, got %d", len(batch.calls))
	}
}
