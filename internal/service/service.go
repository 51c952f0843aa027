package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/akudrin/ipkeeper/internal/models"
	"github.com/akudrin/ipkeeper/internal/netaddr"
	"github.com/akudrin/ipkeeper/internal/repository"
)

const pageSize = 10

const helpText = `I keep track of IP addresses and CIDR blocks.

/add <value> - store an IP or CIDR
/delete <value> - remove a stored value
/list - show all stored entries
/check <value> - test a value against stored entries
/batchadd - add many values at once`

type batchState int

const (
	awaitingInput batchState = iota
	awaitingConfirmation
)

// pendingBatch is the per-conversation transient state of a batch-add flow.
type pendingBatch struct {
	ownerID         string
	state           batchState
	candidates      []string
	promptMessageID int
}

// Engine interprets chat commands and drives the validator and the store.
// It knows nothing about the transport: every operation returns a Reply
// payload for the caller to deliver.
type Engine struct {
	store  repository.Store
	logger *zap.Logger

	mu      sync.Mutex
	pending map[int64]*pendingBatch
	cursors map[int64]int
}

func NewEngine(store repository.Store, logger *zap.Logger) *Engine {
	return &Engine{
		store:   store,
		logger:  logger,
		pending: make(map[int64]*pendingBatch),
		cursors: make(map[int64]int),
	}
}

// Execute dispatches a parsed command. Plain text is consumed only while a
// batch is awaiting input for the conversation; otherwise it is ignored and
// Execute returns nil.
func (e *Engine) Execute(ctx context.Context, conversationID int64, userID string, cmd models.Command) *models.Reply {
	switch cmd.Kind {
	case models.CommandStart, models.CommandHelp:
		return e.Help()
	case models.CommandAdd:
		return e.Add(ctx, userID, cmd.Arg)
	case models.CommandDelete:
		return e.Delete(ctx, userID, cmd.Arg)
	case models.CommandList:
		return e.List(ctx, conversationID)
	case models.CommandCheck:
		return e.Check(ctx, cmd.Arg)
	case models.CommandBatchAdd:
		return e.StartBatch(conversationID, userID)
	case models.CommandPlainText:
		return e.CollectBatch(conversationID, cmd.Arg)
	default:
		return e.Help()
	}
}

func (e *Engine) Help() *models.Reply {
	return &models.Reply{Text: helpText}
}

func (e *Engine) Add(ctx context.Context, userID, raw string) *models.Reply {
	value, isCIDR := netaddr.Classify(raw)
	if value == "" {
		return &models.Reply{Text: "Nothing to add. Usage: /add 192.168.0.1 or /add 10.0.0.0/8"}
	}

	exists, err := e.store.Exists(ctx, userID, value)
	if err != nil {
		return e.storageFailure("check existence", userID, value, err)
	}
	if exists {
		return &models.Reply{Text: fmt.Sprintf("%s is already added", value)}
	}

	if _, err := e.store.Insert(ctx, userID, value, isCIDR); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return &models.Reply{Text: fmt.Sprintf("%s is already added", value)}
		}
		return e.storageFailure("insert", userID, value, err)
	}

	kind := "IP"
	if isCIDR {
		kind = "CIDR"
	}
	return &models.Reply{Text: fmt.Sprintf("Added %s %s", kind, value)}
}

func (e *Engine) Delete(ctx context.Context, userID, raw string) *models.Reply {
	value, _ := netaddr.Classify(raw)
	if value == "" {
		return &models.Reply{Text: "Nothing to delete. Usage: /delete 192.168.0.1"}
	}

	deleted, err := e.store.DeleteByValue(ctx, userID, value)
	if err != nil {
		return e.storageFailure("delete", userID, value, err)
	}
	if deleted == 0 {
		return &models.Reply{Text: fmt.Sprintf("No entry found for %s", value)}
	}
	return &models.Reply{Text: fmt.Sprintf("Deleted %s", value)}
}

func (e *Engine) List(ctx context.Context, conversationID int64) *models.Reply {
	e.mu.Lock()
	e.cursors[conversationID] = 0
	e.mu.Unlock()

	return e.renderPage(ctx, 0)
}

func (e *Engine) renderPage(ctx context.Context, page int) *models.Reply {
	var records []models.AddressRecord
	if page >= 0 {
		var err error
		records, err = e.store.Page(ctx, page*pageSize, pageSize)
		if err != nil {
			return e.storageFailure("list page", "", fmt.Sprintf("page %d", page), err)
		}
	}

	var row []models.Button
	if page > 0 {
		row = append(row, models.Button{
			Label: "Previous",
			Data:  fmt.Sprintf("%s%d", models.CallbackPrevPagePrefix, page),
		})
	}
	if len(records) == pageSize {
		row = append(row, models.Button{
			Label: "Next",
			Data:  fmt.Sprintf("%s%d", models.CallbackNextPagePrefix, page),
		})
	}

	reply := &models.Reply{}
	if len(row) > 0 {
		reply.Buttons = [][]models.Button{row}
	}

	if len(records) == 0 {
		reply.Text = "No entries found."
		return reply
	}

	var b strings.Builder
	for _, rec := range records {
		fmt.Fprintf(&b, "%d. %s (%s)\n", rec.ID, rec.Value(), rec.UserID)
	}
	reply.Text = strings.TrimRight(b.String(), "\n")
	return reply
}

func (e *Engine) Check(ctx context.Context, raw string) *models.Reply {
	value, isCIDR := netaddr.Classify(raw)
	if value == "" {
		return &models.Reply{Text: "Nothing to check. Usage: /check 192.168.0.1"}
	}

	records, err := e.store.ScanAll(ctx)
	if err != nil {
		return e.storageFailure("scan", "", value, err)
	}

	if isCIDR {
		for _, rec := range records {
			if rec.CIDR == value {
				return &models.Reply{Text: fmt.Sprintf("%s exists in records", value)}
			}
		}
		return &models.Reply{Text: fmt.Sprintf("%s does not exist in records", value)}
	}

	for _, rec := range records {
		if rec.IPAddress == value || netaddr.Contains(rec.CIDR, value) {
			return &models.Reply{Text: fmt.Sprintf("%s is within CIDR %s from %s", value, rec.Value(), rec.UserID)}
		}
	}
	return &models.Reply{Text: fmt.Sprintf("%s is not within any stored CIDR", value)}
}

func (e *Engine) StartBatch(conversationID int64, userID string) *models.Reply {
	e.mu.Lock()
	e.pending[conversationID] = &pendingBatch{
		ownerID: userID,
		state:   awaitingInput,
	}
	e.mu.Unlock()

	return &models.Reply{Text: "Send the values to add, one per line."}
}

// CollectBatch consumes a plain message. It only acts when the conversation
// has a batch awaiting input; any other plain message is ignored.
func (e *Engine) CollectBatch(conversationID int64, text string) *models.Reply {
	e.mu.Lock()
	defer e.mu.Unlock()

	batch, ok := e.pending[conversationID]
	if !ok || batch.state != awaitingInput {
		return nil
	}

	var candidates []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		candidates = append(candidates, line)
	}

	if len(candidates) == 0 {
		delete(e.pending, conversationID)
		return &models.Reply{Text: "No values found in the message, batch add cancelled."}
	}

	batch.candidates = candidates
	batch.state = awaitingConfirmation

	return &models.Reply{
		Text: fmt.Sprintf("Add the following %d entries?\n%s",
			len(candidates), strings.Join(candidates, "\n")),
		Buttons: [][]models.Button{{
			{Label: "Yes", Data: models.CallbackConfirmBatch},
			{Label: "No", Data: models.CallbackCancelBatch},
		}},
	}
}

// RememberPrompt records the message reference of a sent confirmation prompt
// so it can be retracted once the batch resolves.
func (e *Engine) RememberPrompt(conversationID int64, messageID int) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if batch, ok := e.pending[conversationID]; ok && batch.state == awaitingConfirmation {
		batch.promptMessageID = messageID
	}
}

// ConfirmBatch attempts every candidate insert concurrently and reports the
// tallies. A confirmation from anyone but the batch owner is dropped without
// a reply or a state change.
func (e *Engine) ConfirmBatch(ctx context.Context, conversationID int64, userID string) *models.Reply {
	e.mu.Lock()
	batch, ok := e.pending[conversationID]
	if !ok || batch.state != awaitingConfirmation {
		e.mu.Unlock()
		return nil
	}
	if batch.ownerID != userID {
		e.mu.Unlock()
		e.logger.Info("Batch confirmation from non-initiating user dropped",
			zap.Int64("conversationID", conversationID),
			zap.String("userID", userID))
		return nil
	}
	delete(e.pending, conversationID)
	e.mu.Unlock()

	var succeeded, failed atomic.Int64
	var wg sync.WaitGroup
	for _, candidate := range batch.candidates {
		wg.Add(1)
		go func(raw string) {
			defer wg.Done()

			value, isCIDR := netaddr.Classify(raw)
			if _, err := e.store.Insert(ctx, batch.ownerID, value, isCIDR); err != nil {
				failed.Add(1)
				e.logger.Error("Batch insert failed",
					zap.String("userID", batch.ownerID),
					zap.String("value", value),
					zap.Bool("isCIDR", isCIDR),
					zap.Error(err))
				return
			}
			succeeded.Add(1)
		}(candidate)
	}
	wg.Wait()

	return &models.Reply{
		Text:            fmt.Sprintf("%d succeeded, %d errors", succeeded.Load(), failed.Load()),
		DeleteMessageID: batch.promptMessageID,
	}
}

// CancelBatch clears any pending batch. Cancelling with nothing pending is a
// no-op.
func (e *Engine) CancelBatch(conversationID int64) *models.Reply {
	e.mu.Lock()
	batch, ok := e.pending[conversationID]
	if ok {
		delete(e.pending, conversationID)
	}
	e.mu.Unlock()

	if !ok {
		return nil
	}

	return &models.Reply{
		Text:            "Batch add cancelled.",
		DeleteMessageID: batch.promptMessageID,
	}
}

// Callback dispatches a button interaction by its token.
func (e *Engine) Callback(ctx context.Context, conversationID int64, userID, data string) *models.Reply {
	switch {
	case strings.HasPrefix(data, models.CallbackPrevPagePrefix):
		return e.turnPage(ctx, conversationID, -1)
	case strings.HasPrefix(data, models.CallbackNextPagePrefix):
		return e.turnPage(ctx, conversationID, +1)
	case data == models.CallbackConfirmBatch:
		return e.ConfirmBatch(ctx, conversationID, userID)
	case data == models.CallbackCancelBatch:
		return e.CancelBatch(conversationID)
	default:
		e.logger.Warn("Unknown callback token",
			zap.Int64("conversationID", conversationID),
			zap.String("data", data))
		return nil
	}
}

func (e *Engine) turnPage(ctx context.Context, conversationID int64, delta int) *models.Reply {
	e.mu.Lock()
	e.cursors[conversationID] += delta
	page := e.cursors[conversationID]
	e.mu.Unlock()

	return e.renderPage(ctx, page)
}

func (e *Engine) storageFailure(op, userID, value string, err error) *models.Reply {
	e.logger.Error("Storage operation failed",
		zap.String("operation", op),
		zap.String("userID", userID),
		zap.String("value", value),
		zap.Error(err))
	return &models.Reply{Text: fmt.Sprintf("Storage error: %s", err)}
}
