// Package bot маршрутизирует входящие события чата к операциям сервиса и отрисовывает ответы.
package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mmeshcher/gatedmart/internal/i18n"
	"github.com/mmeshcher/gatedmart/internal/messenger"
	"github.com/mmeshcher/gatedmart/internal/model"
	"github.com/mmeshcher/gatedmart/internal/service"
)

// EventKind определяет тип входящего события.
type EventKind int

const (
	EventText EventKind = iota + 1
	EventPhoto
	EventButton
)

// Event описывает входящее событие от чата.
type Event struct {
	Kind       EventKind
	SenderID   int64
	Username   string
	Text       string
	Data       string
	CallbackID string
	ImageRef   string
}

// Sender описывает исходящий канал сообщений.
type Sender interface {
	Send(ctx context.Context, msg messenger.Message) error
	AnswerCallback(ctx context.Context, callbackID string) error
}

// Bot обрабатывает события. События одного пользователя обрабатываются строго последовательно.
type Bot struct {
	svc    *service.Service
	sender Sender
	texts  *i18n.Catalog
	logger *zap.Logger
	locks  *keyedMutex
}

// New создаёт бота.
func New(svc *service.Service, sender Sender, texts *i18n.Catalog, logger *zap.Logger) *Bot {
	return &Bot{
		svc:    svc,
		sender: sender,
		texts:  texts,
		logger: logger,
		locks:  newKeyedMutex(),
	}
}

type request struct {
	ctx context.Context
	ev  Event
	acc *model.Account
	log *zap.Logger
}

func (r *request) lang() model.Language {
	return r.acc.Language
}

// Handle обрабатывает одно событие. Ошибка возвращается только для сбоев хранилища;
// ошибки пользовательского ввода отвечаются сообщением.
func (b *Bot) Handle(ctx context.Context, ev Event) error {
	if ev.SenderID == 0 {
		return nil
	}

	unlock := b.locks.Lock(ev.SenderID)
	defer unlock()

	log := b.logger.With(
		zap.String("event_id", uuid.NewString()),
		zap.Int64("sender", ev.SenderID),
	)

	if ev.CallbackID != "" {
		if err := b.sender.AnswerCallback(ctx, ev.CallbackID); err != nil {
			log.Debug("answer callback failed", zap.Error(err))
		}
	}

	acc, err := b.svc.Touch(ctx, ev.SenderID, ev.Username)
	if err != nil {
		return fmt.Errorf("touch account: %w", err)
	}

	r := &request{ctx: ctx, ev: ev, acc: acc, log: log}

	switch ev.Kind {
	case EventButton:
		log.Debug("button", zap.String("data", ev.Data))
		err = b.handleButton(r)
	case EventText:
		err = b.handleText(r)
	case EventPhoto:
		log.Debug("photo ignored", zap.String("image", ev.ImageRef))
	}

	if err != nil {
		log.Error("handle event", zap.Error(err))
		b.reply(r, b.texts.Text(r.lang(), "error_generic"), nil)
	}
	return err
}

func (b *Bot) handleButton(r *request) error {
	cb, err := ParseCallback(r.ev.Data)
	if err != nil {
		b.reply(r, b.texts.Text(r.lang(), "unknown_action"), nil)
		return nil
	}

	switch cb.Action {
	case ActionLanguage:
		return b.switchLanguage(r, cb.Language)
	case ActionClaimAccept, ActionClaimDecline, ActionRevoke, ActionOrderComplete, ActionOrderFee:
		return b.handleModeration(r, cb)
	}

	if r.acc.Status == model.AdmissionPending {
		b.reply(r, b.texts.Text(r.lang(), "wait_notice"), b.languageRow())
		return nil
	}

	if cb.Action == ActionVerify {
		if err := b.svc.BeginVerification(r.ctx, r.acc.ID); err != nil {
			return b.explain(r, err)
		}
		b.reply(r, b.texts.Text(r.lang(), "ask_voucher"), nil)
		return nil
	}

	if r.acc.Status != model.AdmissionSafe {
		return b.explain(r, model.ErrNotAdmitted)
	}

	return b.handleShop(r, cb)
}

func (b *Bot) handleText(r *request) error {
	text := strings.TrimSpace(r.ev.Text)

	if strings.HasPrefix(text, "/") {
		fields := strings.Fields(text)
		if fields[0] == "/start" {
			return b.showCurrent(r)
		}
		if handled, err := b.handleCommand(r, fields[0], text); handled {
			return err
		}
	}

	if b.svc.IsAdmin(r.acc.ID) {
		if handled, err := b.handleFeeInput(r, text); handled {
			return err
		}
	}

	if r.acc.Status == model.AdmissionPending {
		b.reply(r, b.texts.Text(r.lang(), "wait_notice"), b.languageRow())
		return nil
	}

	switch r.acc.State {
	case model.StateAwaitingVouch:
		return b.submitVoucher(r, text)
	case model.StateAwaitingAddress:
		return b.checkout(r, true, text)
	}

	return b.showCurrent(r)
}

func (b *Bot) switchLanguage(r *request, lang model.Language) error {
	if err := b.svc.SetLanguage(r.ctx, r.acc.ID, lang); err != nil {
		return b.explain(r, err)
	}
	r.acc.Language = lang
	return b.showCurrent(r)
}

func (b *Bot) submitVoucher(r *request, text string) error {
	claim, err := b.svc.SubmitVoucher(r.ctx, r.acc.ID, text)
	if err != nil {
		return b.explain(r, err)
	}

	r.log.Info("claim submitted", zap.Int64("claim", claim.ID), zap.String("voucher", claim.VoucherHandle))
	b.reply(r, b.texts.Text(r.lang(), "claim_submitted"), b.languageRow())

	adminLang := b.languageOf(r.ctx, b.svc.AdminID())
	b.send(r, messenger.Message{
		ChatID: b.svc.AdminID(),
		Text: b.texts.Text(adminLang, "admin_new_claim",
			claim.ID, displayName(r.acc), r.acc.ID, claim.VoucherHandle),
		Buttons: [][]messenger.Button{{
			{Text: b.texts.Text(adminLang, "btn_accept"), Data: claimData(true, claim.ID)},
			{Text: b.texts.Text(adminLang, "btn_decline"), Data: claimData(false, claim.ID)},
		}},
	})
	return nil
}

// explain отвечает пользователю на ожидаемую доменную ошибку. Прочие ошибки возвращаются вызывающему.
func (b *Bot) explain(r *request, err error) error {
	key := ""
	switch {
	case errors.Is(err, model.ErrInvalidVoucher):
		key = "invalid_voucher"
	case errors.Is(err, model.ErrAddressRequired):
		key = "invalid_address"
	case errors.Is(err, model.ErrEmptyCart):
		key = "cart_empty"
	case errors.Is(err, model.ErrInvalidAmount):
		key = "admin_invalid_fee"
	case errors.Is(err, model.ErrStoreUnavailable):
		key = "store_offline"
	case errors.Is(err, model.ErrAwaitingReview):
		key = "wait_notice"
	case errors.Is(err, model.ErrNotAdmitted):
		key = "not_admitted"
	case errors.Is(err, model.ErrNotAllowed):
		key = "not_allowed"
	case errors.Is(err, model.ErrItemNotFound):
		key = "item_missing"
	case errors.Is(err, model.ErrVerificationClosed):
		return b.showCurrent(r)
	case errors.Is(err, model.ErrValidation):
		key = "unknown_action"
	default:
		return err
	}

	r.log.Debug("rejected", zap.Error(err))
	b.reply(r, b.texts.Text(r.lang(), key), nil)
	return nil
}

func (b *Bot) reply(r *request, text string, buttons [][]messenger.Button) {
	b.send(r, messenger.Message{ChatID: r.acc.ID, Text: text, Buttons: buttons})
}

// send доставляет сообщение. Ошибки доставки не прерывают операцию и только логируются.
func (b *Bot) send(r *request, msg messenger.Message) {
	if msg.ChatID == 0 {
		return
	}
	if err := b.sender.Send(r.ctx, msg); err != nil {
		r.log.Warn("message not delivered", zap.Int64("chat", msg.ChatID), zap.Error(err))
	}
}

func (b *Bot) languageOf(ctx context.Context, userID int64) model.Language {
	acc, err := b.svc.Account(ctx, userID)
	if err != nil || !acc.Language.IsSupported() {
		return model.DefaultLanguage
	}
	return acc.Language
}

func (b *Bot) languageRow() [][]messenger.Button {
	row := make([]messenger.Button, 0, len(model.Languages))
	for _, l := range model.Languages {
		row = append(row, messenger.Button{Text: strings.ToUpper(string(l)), Data: languageData(l)})
	}
	return [][]messenger.Button{row}
}

func displayName(acc *model.Account) string {
	if acc.Username != "" {
		return "@" + acc.Username
	}
	return "—"
}
