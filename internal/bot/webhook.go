package bot

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/akudrin/ipkeeper/internal/models"
	"github.com/akudrin/ipkeeper/internal/repository"
	"github.com/akudrin/ipkeeper/internal/service"
)

type update struct {
	UpdateID      int64          `json:"update_id"`
	Message       *message       `json:"message"`
	CallbackQuery *callbackQuery `json:"callback_query"`
}

type message struct {
	MessageID int     `json:"message_id"`
	From      *user   `json:"from"`
	Chat      chatRef `json:"chat"`
	Text      string  `json:"text"`
}

type user struct {
	ID int64 `json:"id"`
}

type chatRef struct {
	ID int64 `json:"id"`
}

type callbackQuery struct {
	ID      string   `json:"id"`
	From    *user    `json:"from"`
	Message *message `json:"message"`
	Data    string   `json:"data"`
}

// Webhook receives Bot API updates over HTTP and relays them to the engine.
type Webhook struct {
	engine *service.Engine
	client Sender
	store  repository.Store
	logger *zap.Logger
	secret string
}

func NewWebhook(engine *service.Engine, client Sender, store repository.Store, logger *zap.Logger, secret string) *Webhook {
	return &Webhook{
		engine: engine,
		client: client,
		store:  store,
		logger: logger,
		secret: secret,
	}
}

func (w *Webhook) SetupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(Logger(w.logger))

	r.Post("/webhook/{secret}", w.UpdateHandler)
	r.Get("/ping", w.PingHandler)

	r.NotFound(func(rw http.ResponseWriter, r *http.Request) {
		http.Error(rw, "Not Found", http.StatusNotFound)
	})

	return r
}

func (w *Webhook) PingHandler(rw http.ResponseWriter, r *http.Request) {
	if err := w.store.Ping(r.Context()); err != nil {
		w.logger.Error("Store ping failed", zap.Error(err))
		http.Error(rw, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	rw.WriteHeader(http.StatusOK)
}

// UpdateHandler always answers 200 once the payload is decoded: Telegram
// re-delivers updates on any other status, and a failed store operation is
// already reported to the chat by the engine.
func (w *Webhook) UpdateHandler(rw http.ResponseWriter, r *http.Request) {
	if chi.URLParam(r, "secret") != w.secret {
		http.Error(rw, "Not Found", http.StatusNotFound)
		return
	}

	var upd update
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(&upd); err != nil {
		w.logger.Error("Failed to decode update", zap.Error(err))
		http.Error(rw, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	ctx := r.Context()

	switch {
	case upd.Message != nil && upd.Message.From != nil:
		w.handleMessage(ctx, upd.Message)
	case upd.CallbackQuery != nil:
		w.handleCallback(ctx, upd.CallbackQuery)
	default:
		w.logger.Debug("Update carries nothing to handle", zap.Int64("updateID", upd.UpdateID))
	}

	rw.WriteHeader(http.StatusOK)
}

func (w *Webhook) handleMessage(ctx context.Context, msg *message) {
	cmd := ParseCommand(msg.Text)
	userID := strconv.FormatInt(msg.From.ID, 10)

	reply := w.engine.Execute(ctx, msg.Chat.ID, userID, cmd)
	if reply == nil {
		return
	}

	w.deliver(ctx, msg.Chat.ID, reply)
}

func (w *Webhook) handleCallback(ctx context.Context, cb *callbackQuery) {
	if err := w.client.AnswerCallbackQuery(ctx, cb.ID); err != nil {
		w.logger.Error("Failed to answer callback query", zap.Error(err))
	}

	if cb.From == nil || cb.Message == nil {
		return
	}

	userID := strconv.FormatInt(cb.From.ID, 10)
	reply := w.engine.Callback(ctx, cb.Message.Chat.ID, userID, cb.Data)
	if reply == nil {
		return
	}

	w.deliver(ctx, cb.Message.Chat.ID, reply)
}

func (w *Webhook) deliver(ctx context.Context, chatID int64, reply *models.Reply) {
	if reply.DeleteMessageID != 0 {
		if err := w.client.DeleteMessage(ctx, chatID, reply.DeleteMessageID); err != nil {
			w.logger.Error("Failed to delete message",
				zap.Int64("chatID", chatID),
				zap.Int("messageID", reply.DeleteMessageID),
				zap.Error(err))
		}
	}

	messageID, err := w.client.SendMessage(ctx, chatID, reply)
	if err != nil {
		w.logger.Error("Failed to send reply",
			zap.Int64("chatID", chatID),
			zap.Error(err))
		return
	}

	if isConfirmationPrompt(reply) {
		w.engine.RememberPrompt(chatID, messageID)
	}
}

func isConfirmationPrompt(reply *models.Reply) bool {
	for _, row := range reply.Buttons {
		for _, b := range row {
			if b.Data == models.CallbackConfirmBatch {
				return true
			}
		}
	}
	return false
}
