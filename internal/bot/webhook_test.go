package bot

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/akudrin/ipkeeper/internal/models"
	"github.com/akudrin/ipkeeper/internal/repository"
	"github.com/akudrin/ipkeeper/internal/service"
)

type sentMessage struct {
	chatID int64
	reply  models.Reply
}

// fakeSender records outbound traffic instead of calling the Bot API.
type fakeSender struct {
	sent          []sentMessage
	deleted       []int
	answered      []string
	nextMessageID int
}

func (f *fakeSender) SendMessage(ctx context.Context, chatID int64, reply *models.Reply) (int, error) {
	f.sent = append(f.sent, sentMessage{chatID: chatID, reply: *reply})
	f.nextMessageID++
	return f.nextMessageID, nil
}

func (f *fakeSender) DeleteMessage(ctx context.Context, chatID int64, messageID int) error {
	f.deleted = append(f.deleted, messageID)
	return nil
}

func (f *fakeSender) AnswerCallbackQuery(ctx context.Context, callbackID string) error {
	f.answered = append(f.answered, callbackID)
	return nil
}

func newTestWebhook() (*Webhook, *fakeSender, *repository.MemoryStore) {
	logger := zap.NewNop()
	store := repository.NewMemoryStore()
	engine := service.NewEngine(store, logger)
	sender := &fakeSender{}
	return NewWebhook(engine, sender, store, logger, "test-secret"), sender, store
}

func postUpdate(t *testing.T, router http.Handler, secret, body string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, "/webhook/"+secret, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func messageUpdate(chatID, fromID int64, text string) string {
	return fmt.Sprintf(`{"update_id":1,"message":{"message_id":10,"from":{"id":%d},"chat":{"id":%d},"text":%q}}`,
		fromID, chatID, text)
}

func callbackUpdate(chatID, fromID int64, data string) string {
	return fmt.Sprintf(`{"update_id":2,"callback_query":{"id":"cb-1","from":{"id":%d},"message":{"message_id":11,"chat":{"id":%d}},"data":%q}}`,
		fromID, chatID, data)
}

func TestUpdateHandlerSecret(t *testing.T) {
	webhook, sender, _ := newTestWebhook()
	router := webhook.SetupRouter()

	w := postUpdate(t, router, "wrong-secret", messageUpdate(100, 1, "/help"))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Empty(t, sender.sent)
}

func TestUpdateHandlerCommand(t *testing.T) {
	webhook, sender, _ := newTestWebhook()
	router := webhook.SetupRouter()

	w := postUpdate(t, router, "test-secret", messageUpdate(100, 1, "/add 10.0.0.1"))
	assert.Equal(t, http.StatusOK, w.Code)

	require.Len(t, sender.sent, 1)
	assert.Equal(t, int64(100), sender.sent[0].chatID)
	assert.Equal(t, "Added IP 10.0.0.1", sender.sent[0].reply.Text)
}

func TestUpdateHandlerMalformedBody(t *testing.T) {
	webhook, sender, _ := newTestWebhook()
	router := webhook.SetupRouter()

	w := postUpdate(t, router, "test-secret", "{not json")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, sender.sent)
}

func TestPlainTextOutsideBatchSendsNothing(t *testing.T) {
	webhook, sender, _ := newTestWebhook()
	router := webhook.SetupRouter()

	w := postUpdate(t, router, "test-secret", messageUpdate(100, 1, "just chatting"))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, sender.sent)
}

func TestBatchFlowOverWebhook(t *testing.T) {
	webhook, sender, store := newTestWebhook()
	router := webhook.SetupRouter()

	postUpdate(t, router, "test-secret", messageUpdate(100, 1, "/batchadd"))
	require.Len(t, sender.sent, 1)
	assert.Equal(t, "Send the values to add, one per line.", sender.sent[0].reply.Text)

	postUpdate(t, router, "test-secret", messageUpdate(100, 1, "10.0.0.1\n10.0.0.0/8"))
	require.Len(t, sender.sent, 2)
	prompt := sender.sent[1].reply
	assert.Contains(t, prompt.Text, "Add the following 2 entries?")
	require.Len(t, prompt.Buttons, 1)

	// The prompt was message 2 from the fake sender; confirming must retract it.
	postUpdate(t, router, "test-secret", callbackUpdate(100, 1, models.CallbackConfirmBatch))
	require.Len(t, sender.sent, 3)
	assert.Equal(t, "2 succeeded, 0 errors", sender.sent[2].reply.Text)
	assert.Equal(t, []int{2}, sender.deleted)
	assert.Equal(t, []string{"cb-1"}, sender.answered)

	count, err := store.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestBatchConfirmFromOtherUserOverWebhook(t *testing.T) {
	webhook, sender, store := newTestWebhook()
	router := webhook.SetupRouter()

	postUpdate(t, router, "test-secret", messageUpdate(100, 1, "/batchadd"))
	postUpdate(t, router, "test-secret", messageUpdate(100, 1, "10.0.0.1"))
	sentBefore := len(sender.sent)

	postUpdate(t, router, "test-secret", callbackUpdate(100, 2, models.CallbackConfirmBatch))

	assert.Len(t, sender.sent, sentBefore, "no reply to a non-initiator confirmation")
	count, err := store.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
}

func TestPaginationOverWebhook(t *testing.T) {
	webhook, sender, _ := newTestWebhook()
	router := webhook.SetupRouter()

	for i := 0; i < 12; i++ {
		postUpdate(t, router, "test-secret", messageUpdate(100, 1, fmt.Sprintf("/add 10.0.0.%d", i)))
	}

	postUpdate(t, router, "test-secret", messageUpdate(100, 1, "/list"))
	listing := sender.sent[len(sender.sent)-1].reply
	require.Len(t, listing.Buttons, 1)
	assert.Equal(t, "Next", listing.Buttons[0][0].Label)

	postUpdate(t, router, "test-secret", callbackUpdate(100, 1, "next_page_0"))
	page2 := sender.sent[len(sender.sent)-1].reply
	assert.Len(t, strings.Split(page2.Text, "\n"), 2)
	require.Len(t, page2.Buttons, 1)
	assert.Equal(t, "Previous", page2.Buttons[0][0].Label)
}

func TestPingHandler(t *testing.T) {
	webhook, _, _ := newTestWebhook()
	router := webhook.SetupRouter()

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}
