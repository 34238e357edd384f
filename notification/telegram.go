// Package notification delivers operator alerts and receives remote
// commands over Telegram.
package notification

import (
	"fmt"
	"strings"
	"sync"
	"time"

	tb "gopkg.in/tucnak/telebot.v2"

	"github.com/ver3trade/engine/core"
)

const (
	pollingTimeout = 10 * time.Second

	// outboxCap bounds the pending notification queue. When full, the
	// oldest message is dropped so the trading cycle never blocks on
	// Telegram delivery.
	outboxCap = 100

	// commandCap bounds pending operator commands between cycles.
	commandCap = 64
)

// Settings carries the Telegram credentials. The token is never logged.
type Settings struct {
	Token string
	Users []int64
}

// Telegram implements core.NotifierWithStart and core.CommandSource.
// Incoming commands are queued and drained by the portfolio manager at
// the start of each cycle; outgoing messages are queued and delivered
// by a background sender.
type Telegram struct {
	settings Settings
	client   *tb.Bot
	menu     *tb.ReplyMarkup
	log      core.Logger

	outbox   chan string
	commands chan core.Command
	done     chan struct{}
	stopOnce sync.Once
}

// Option configures a Telegram instance.
type Option func(*Telegram)

// NewTelegram creates and initializes the Telegram service.
func NewTelegram(settings Settings, log core.Logger, options ...Option) (*Telegram, error) {
	poller := &tb.LongPoller{Timeout: pollingTimeout}
	client, err := tb.NewBot(tb.Settings{
		ParseMode: tb.ModeMarkdown,
		Token:     settings.Token,
		Poller:    newAuthMiddleware(poller, settings.Users, log),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}

	menu := &tb.ReplyMarkup{ResizeReplyKeyboard: true}
	setupKeyboard(menu)
	if err := setupCommands(client); err != nil {
		return nil, fmt.Errorf("failed to set commands: %w", err)
	}

	t := newQueued(settings, log)
	t.client = client
	t.menu = menu

	for _, option := range options {
		option(t)
	}

	registerHandlers(client, t)

	return t, nil
}

// newQueued builds the queue machinery without a live bot client.
func newQueued(settings Settings, log core.Logger) *Telegram {
	return &Telegram{
		settings: settings,
		log:      log,
		outbox:   make(chan string, outboxCap),
		commands: make(chan core.Command, commandCap),
		done:     make(chan struct{}),
	}
}

// newAuthMiddleware creates a middleware that drops updates from
// unauthorized senders before they reach any handler.
func newAuthMiddleware(poller *tb.LongPoller, users []int64, log core.Logger) *tb.MiddlewarePoller {
	return tb.NewMiddlewarePoller(poller, func(u *tb.Update) bool {
		if u.Message == nil || u.Message.Sender == nil {
			log.Error("message or sender is nil ", u)
			return false
		}

		for _, id := range users {
			if u.Message.Sender.ID == id {
				return true
			}
		}

		log.Error("unauthorized user ", u.Message.Sender.ID)
		return false
	})
}

// setupKeyboard configures the reply keyboard layout.
func setupKeyboard(menu *tb.ReplyMarkup) {
	var (
		statusBtn    = menu.Text("/status")
		positionsBtn = menu.Text("/positions")
		factorsBtn   = menu.Text("/factors")
		closeBtn     = menu.Text("/close")
		stopBtn      = menu.Text("/stop")
	)

	menu.Reply(
		menu.Row(statusBtn, positionsBtn, factorsBtn),
		menu.Row(closeBtn, stopBtn),
	)
}

// setupCommands configures available bot commands.
func setupCommands(client *tb.Bot) error {
	return client.SetCommands([]tb.Command{
		{Text: "/help", Description: "Display help instructions"},
		{Text: "/status", Description: "Engine status and capital"},
		{Text: "/positions", Description: "Open positions"},
		{Text: "/factors", Description: "Current dynamic factors"},
		{Text: "/close", Description: "Close a position, e.g. /close BTC"},
		{Text: "/stop", Description: "Stop the engine cleanly"},
	})
}

// registerHandlers registers all command handlers.
func registerHandlers(client *tb.Bot, t *Telegram) {
	client.Handle("/help", t.HelpHandle)
	client.Handle("/status", t.StatusHandle)
	client.Handle("/positions", t.PositionsHandle)
	client.Handle("/factors", t.FactorsHandle)
	client.Handle("/close", t.CloseHandle)
	client.Handle("/stop", t.StopHandle)
}

// Start launches the receive loop and the outbound sender.
func (t *Telegram) Start() {
	if t.client == nil {
		return
	}
	go t.client.Start()
	go t.senderLoop()
	t.sendAll("Engine initialized.", t.menu)
}

// Stop halts the receive loop and the sender. Messages still queued at
// this point are discarded.
func (t *Telegram) Stop() {
	t.stopOnce.Do(func() {
		close(t.done)
		if t.client != nil {
			t.client.Stop()
		}
	})
}

// Notify queues a message for all authorized users. When the queue is
// full the oldest pending message is dropped.
func (t *Telegram) Notify(text string) {
	select {
	case t.outbox <- text:
		return
	default:
	}

	select {
	case <-t.outbox:
		t.log.Warn("notification queue full, dropping oldest message")
	default:
	}
	select {
	case t.outbox <- text:
	default:
	}
}

// OnError queues an error alert.
func (t *Telegram) OnError(err error) {
	t.Notify(fmt.Sprintf("🛑 ERROR\n-----\n%s", err.Error()))
}

// Next returns the oldest pending operator command without blocking.
func (t *Telegram) Next() (core.Command, bool) {
	select {
	case cmd := <-t.commands:
		return cmd, true
	default:
		return core.Command{}, false
	}
}

// senderLoop drains the outbox until Stop.
func (t *Telegram) senderLoop() {
	for {
		select {
		case <-t.done:
			return
		case text := <-t.outbox:
			t.sendAll(text)
		}
	}
}

// sendAll sends a message to every authorized user.
func (t *Telegram) sendAll(text string, options ...any) {
	for _, user := range t.settings.Users {
		if _, err := t.client.Send(&tb.User{ID: user}, text, options...); err != nil {
			t.log.WithError(err).Error("failed to send notification")
		}
	}
}

func (t *Telegram) sendTo(to *tb.User, text string, options ...any) {
	if _, err := t.client.Send(to, text, options...); err != nil {
		t.log.WithError(err).Error("failed to send message")
	}
}

// enqueue records an operator command for the next cycle. Commands are
// dropped with a warning when the queue is full.
func (t *Telegram) enqueue(cmd core.Command) bool {
	select {
	case t.commands <- cmd:
		return true
	default:
		t.log.Warnf("command queue full, dropping %s", cmd.Type)
		return false
	}
}

// Command handlers
// ----------------

// HelpHandle displays available commands.
func (t *Telegram) HelpHandle(m *tb.Message) {
	commands, err := t.client.GetCommands()
	if err != nil {
		t.log.WithError(err).Error("failed to get commands")
		return
	}

	lines := make([]string, 0, len(commands))
	for _, command := range commands {
		lines = append(lines, fmt.Sprintf("/%s - %s", command.Text, command.Description))
	}

	t.sendTo(m.Sender, strings.Join(lines, "\n"))
}

// StatusHandle queues a status request; the answer arrives with the
// next cycle.
func (t *Telegram) StatusHandle(m *tb.Message) {
	t.queueAndAck(m, core.Command{Type: core.CommandStatus})
}

// PositionsHandle queues a positions request.
func (t *Telegram) PositionsHandle(m *tb.Message) {
	t.queueAndAck(m, core.Command{Type: core.CommandPositions})
}

// FactorsHandle queues a dynamic-factors request.
func (t *Telegram) FactorsHandle(m *tb.Message) {
	t.queueAndAck(m, core.Command{Type: core.CommandFactors})
}

// CloseHandle queues a position close for the named coin.
func (t *Telegram) CloseHandle(m *tb.Message) {
	coin := strings.ToUpper(strings.TrimSpace(m.Payload))
	if coin == "" {
		t.sendTo(m.Sender, "Invalid command.\nExample of usage:\n`/close BTC`")
		return
	}
	t.queueAndAck(m, core.Command{Type: core.CommandClose, Coin: coin})
}

// StopHandle queues a clean engine stop.
func (t *Telegram) StopHandle(m *tb.Message) {
	t.queueAndAck(m, core.Command{Type: core.CommandStop})
}

func (t *Telegram) queueAndAck(m *tb.Message, cmd core.Command) {
	if !t.enqueue(cmd) {
		t.sendTo(m.Sender, "Command queue is full, try again later.")
		return
	}
	t.sendTo(m.Sender, fmt.Sprintf("`%s` queued, processed at the next cycle.", cmd.Type), t.menu)
}
