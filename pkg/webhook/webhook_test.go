package webhook

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	contractx "github.com/smate-ai/smate-agent/agent/contract"
)

type fakeResponder struct {
	reply string
	err   error
	calls []string
}

func (f *fakeResponder) HandleMessage(ctx context.Context, correspondentID, text string) (string, error) {
	f.calls = append(f.calls, correspondentID+"|"+text)
	return f.reply, f.err
}

type fakeSender struct {
	sent []string
	err  error
}

func (f *fakeSender) SendText(ctx context.Context, to, body string) (string, error) {
	f.sent = append(f.sent, to+"|"+body)
	return "wamid.out", f.err
}

func newTestHandler(agent *fakeResponder, sender *fakeSender) *Handler {
	return NewHandler(Config{
		VerifyToken: "secreto",
		DedupeTTL:   time.Minute,
	}, agent, sender)
}

func doRequest(h *Handler, req *http.Request) *httptest.ResponseRecorder {
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	switch req.Method {
	case http.MethodGet:
		_ = h.Verify(c)
	default:
		_ = h.Receive(c)
	}
	return rec
}

func TestVerifyHandshake(t *testing.T) {
	t.Parallel()

	h := newTestHandler(&fakeResponder{}, &fakeSender{})

	req := httptest.NewRequest(http.MethodGet,
		"/webhook?hub.mode=subscribe&hub.verify_token=secreto&hub.challenge=12345", nil)
	rec := doRequest(h, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "12345", rec.Body.String())

	req = httptest.NewRequest(http.MethodGet,
		"/webhook?hub.mode=subscribe&hub.verify_token=equivocado&hub.challenge=12345", nil)
	rec = doRequest(h, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func envelope(id, from, body string) string {
	return `{"entry":[{"changes":[{"value":{"messages":[{"id":"` + id +
		`","from":"` + from + `","type":"text","text":{"body":"` + body + `"}}]}}]}]}`
}

func postEnvelope(h *Handler, payload string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(payload))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	return doRequest(h, req)
}

func TestReceiveDispatchesAndReplies(t *testing.T) {
	t.Parallel()

	agent := &fakeResponder{reply: "hola Ana"}
	sender := &fakeSender{}
	h := newTestHandler(agent, sender)

	rec := postEnvelope(h, envelope("wamid.1", "56911112222", "hola"))
	assert.Equal(t, http.StatusOK, rec.Code)

	require.Len(t, agent.calls, 1)
	assert.Equal(t, "56911112222|hola", agent.calls[0])
	require.Len(t, sender.sent, 1)
	assert.Equal(t, "56911112222|hola Ana", sender.sent[0])
}

func TestReceiveDropsDuplicateDelivery(t *testing.T) {
	t.Parallel()

	agent := &fakeResponder{reply: "ok"}
	sender := &fakeSender{}
	h := newTestHandler(agent, sender)

	postEnvelope(h, envelope("wamid.dup", "56911112222", "hola"))
	postEnvelope(h, envelope("wamid.dup", "56911112222", "hola"))

	assert.Len(t, agent.calls, 1)
	assert.Len(t, sender.sent, 1)
}

func TestReceiveIgnoresNonTextMessages(t *testing.T) {
	t.Parallel()

	agent := &fakeResponder{reply: "ok"}
	h := newTestHandler(agent, &fakeSender{})

	payload := `{"entry":[{"changes":[{"value":{"messages":[{"id":"wamid.img","from":"56911112222","type":"image"}]}}]}]}`
	rec := postEnvelope(h, payload)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, agent.calls)
}

func TestReceiveAcksRateLimitedMessage(t *testing.T) {
	t.Parallel()

	agent := &fakeResponder{err: contractx.ErrRateLimited}
	sender := &fakeSender{}
	h := newTestHandler(agent, sender)

	rec := postEnvelope(h, envelope("wamid.2", "56911112222", "hola"))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, sender.sent)
}

func TestReceiveBadPayload(t *testing.T) {
	t.Parallel()

	h := newTestHandler(&fakeResponder{}, &fakeSender{})
	rec := postEnvelope(h, `{"entry":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDedupeEvictsExpiredIDs(t *testing.T) {
	t.Parallel()

	h := newTestHandler(&fakeResponder{reply: "ok"}, &fakeSender{})
	now := time.Unix(1000, 0)
	h.now = func() time.Time { return now }

	require.True(t, h.firstDelivery("wamid.old"))
	require.False(t, h.firstDelivery("wamid.old"))

	now = now.Add(2 * time.Minute)
	require.True(t, h.firstDelivery("wamid.old"))

	h.mu.Lock()
	defer h.mu.Unlock()
	assert.Len(t, h.seen, 1)
}
