package smtp_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/wneessen/go-mail"

	"github.com/goliatone/go-mailmerge/pkg/dispatch/smtp"
	"github.com/goliatone/go-mailmerge/pkg/message"
)

type fakeClient struct {
	dialErr  error
	sendErr  error
	closed   int
	sent     []*mail.Msg
	dialed   int
	sendRuns int
}

func (f *fakeClient) DialWithContext(context.Context) error {
	f.dialed++
	return f.dialErr
}

func (f *fakeClient) Close() error {
	f.closed++
	return nil
}

func (f *fakeClient) DialAndSendWithContext(_ context.Context, msgs ...*mail.Msg) error {
	f.sendRuns++
	f.sent = append(f.sent, msgs...)
	return f.sendErr
}

func sample(id, to string) message.Message {
	return message.Message{
		ID:      id,
		From:    "Team <team@example.com>",
		To:      to,
		Subject: "Hello",
		HTML:    "<p>Hi</p>",
		Text:    "Hi",
		Headers: map[string]string{message.HeaderTemplateID: "invite"},
	}
}

func TestNew_RequiresHost(t *testing.T) {
	if _, err := smtp.New(smtp.Config{}); !errors.Is(err, smtp.ErrMissingHost) {
		t.Fatalf("expected ErrMissingHost, got %v", err)
	}
}

func TestVerify(t *testing.T) {
	client := &fakeClient{}
	transport, err := smtp.New(smtp.Config{}, smtp.WithClient(client))
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := transport.Verify(context.Background()); err != nil {
		t.Fatalf("verify: %v", err)
	}
	if client.dialed != 1 || client.closed != 1 {
		t.Fatalf("expected dial and close, got dial=%d close=%d", client.dialed, client.closed)
	}

	client.dialErr = errors.New("535 authentication failed")
	if err := transport.Verify(context.Background()); err == nil {
		t.Fatalf("expected verify failure")
	}
}

func TestSend_Success(t *testing.T) {
	client := &fakeClient{}
	transport, _ := smtp.New(smtp.Config{}, smtp.WithClient(client))

	results, err := transport.Send(context.Background(), []message.Message{
		sample("m1", "a@b.com"),
		sample("m2", "c@d.com"),
	})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if client.sendRuns != 1 || len(client.sent) != 2 {
		t.Fatalf("expected one session with two messages, got runs=%d msgs=%d", client.sendRuns, len(client.sent))
	}
	ids := []string{results[0].MessageID, results[1].MessageID}
	if diff := cmp.Diff([]string{"m1", "m2"}, ids); diff != "" {
		t.Fatalf("ids mismatch (-want +got):\n%s", diff)
	}
}

func TestSend_InvalidRecipientFailsOnlyThatMessage(t *testing.T) {
	client := &fakeClient{}
	transport, _ := smtp.New(smtp.Config{}, smtp.WithClient(client))

	results, err := transport.Send(context.Background(), []message.Message{
		sample("m1", "not an address"),
		sample("m2", "c@d.com"),
	})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if results[0].Err == nil || results[1].Err != nil {
		t.Fatalf("unexpected results %+v", results)
	}
	if len(client.sent) != 1 {
		t.Fatalf("expected only the valid message sent, got %d", len(client.sent))
	}
}

func TestSend_SessionFailure(t *testing.T) {
	client := &fakeClient{sendErr: errors.New("dial failed: connection refused")}
	transport, _ := smtp.New(smtp.Config{}, smtp.WithClient(client))

	if _, err := transport.Send(context.Background(), []message.Message{sample("m1", "a@b.com")}); err == nil {
		t.Fatalf("expected session failure to fail the call")
	}
}

func TestBuildMsg(t *testing.T) {
	msg, err := smtp.BuildMsg(sample("m1", "a@b.com"))
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	rcpts, err := msg.GetRecipients()
	if err != nil {
		t.Fatalf("recipients: %v", err)
	}
	if diff := cmp.Diff([]string{"a@b.com"}, rcpts); diff != "" {
		t.Fatalf("recipients mismatch (-want +got):\n%s", diff)
	}
	if got := msg.GetGenHeader(mail.HeaderSubject); len(got) != 1 || got[0] != "Hello" {
		t.Fatalf("unexpected subject %v", got)
	}
	if got := msg.GetGenHeader(mail.Header(message.HeaderTemplateID)); len(got) != 1 || got[0] != "invite" {
		t.Fatalf("unexpected template header %v", got)
	}
}
