package bot

import (
	"errors"
	"strconv"
	"strings"
	"unicode"

	"go.uber.org/zap"

	"github.com/mmeshcher/gatedmart/internal/i18n"
	"github.com/mmeshcher/gatedmart/internal/messenger"
	"github.com/mmeshcher/gatedmart/internal/model"
	"github.com/mmeshcher/gatedmart/internal/service"
)

func (b *Bot) handleModeration(r *request, cb Callback) error {
	mod, err := b.svc.Moderator(r.acc.ID)
	if err != nil {
		r.log.Warn("moderation attempt", zap.Int("action", int(cb.Action)))
		return b.explain(r, err)
	}

	switch cb.Action {
	case ActionClaimAccept, ActionClaimDecline:
		return b.decideClaim(r, mod, cb.ID, cb.Action == ActionClaimAccept)
	case ActionRevoke:
		return b.revoke(r, mod, cb.ID)
	case ActionOrderComplete:
		return b.completeOrder(r, mod, cb.ID)
	case ActionOrderFee:
		return b.beginFeeEntry(r, mod, cb.ID)
	}
	return nil
}

func (b *Bot) decideClaim(r *request, mod *service.Moderator, claimID int64, accept bool) error {
	lang := r.lang()

	claim, outcome, err := mod.DecideClaim(r.ctx, claimID, accept)
	if errors.Is(err, model.ErrClaimNotFound) {
		b.reply(r, b.texts.Text(lang, "admin_claim_missing", claimID), nil)
		return nil
	}
	if err != nil {
		return err
	}

	switch outcome {
	case model.ClaimUnchanged:
		b.reply(r, b.texts.Text(lang, "admin_claim_already", claim.ID, string(claim.Status)), nil)
		return nil
	case model.ClaimStale:
		r.log.Info("claim closed without effect",
			zap.Int64("claim", claim.ID),
			zap.Int64("applicant", claim.ApplicantID),
			zap.String("status", string(claim.Status)),
		)
		b.reply(r, b.texts.Text(lang, "admin_claim_stale", claim.ID, string(claim.Status)), nil)
		return nil
	}

	r.log.Info("claim decided",
		zap.Int64("claim", claim.ID),
		zap.Int64("applicant", claim.ApplicantID),
		zap.String("status", string(claim.Status)),
	)

	applicantLang := b.languageOf(r.ctx, claim.ApplicantID)
	if accept {
		b.reply(r, b.texts.Text(lang, "admin_claim_accepted", claim.ID), [][]messenger.Button{
			{{Text: b.texts.Text(lang, "btn_revoke"), Data: revokeData(claim.ApplicantID)}},
		})
		b.send(r, messenger.Message{
			ChatID:  claim.ApplicantID,
			Text:    b.texts.Text(applicantLang, "access_granted"),
			Buttons: b.homeRow(applicantLang),
		})
		return nil
	}

	b.reply(r, b.texts.Text(lang, "admin_claim_declined", claim.ID), nil)
	b.send(r, messenger.Message{
		ChatID:  claim.ApplicantID,
		Text:    b.texts.Text(applicantLang, "access_declined"),
		Buttons: b.entryButtons(applicantLang),
	})
	return nil
}

func (b *Bot) grant(r *request, mod *service.Moderator, userID int64) error {
	if err := mod.Grant(r.ctx, userID); err != nil {
		return err
	}

	r.log.Info("access granted", zap.Int64("user", userID))
	b.reply(r, b.texts.Text(r.lang(), "admin_access_granted", userID), [][]messenger.Button{
		{{Text: b.texts.Text(r.lang(), "btn_revoke"), Data: revokeData(userID)}},
	})

	userLang := b.languageOf(r.ctx, userID)
	b.send(r, messenger.Message{
		ChatID:  userID,
		Text:    b.texts.Text(userLang, "access_granted"),
		Buttons: b.homeRow(userLang),
	})
	return nil
}

func (b *Bot) revoke(r *request, mod *service.Moderator, userID int64) error {
	if err := mod.Revoke(r.ctx, userID); err != nil {
		return err
	}

	r.log.Info("access revoked", zap.Int64("user", userID))
	b.reply(r, b.texts.Text(r.lang(), "admin_access_revoked", userID), nil)

	userLang := b.languageOf(r.ctx, userID)
	b.send(r, messenger.Message{
		ChatID:  userID,
		Text:    b.texts.Text(userLang, "access_revoked"),
		Buttons: b.entryButtons(userLang),
	})
	return nil
}

func (b *Bot) completeOrder(r *request, mod *service.Moderator, orderID int64) error {
	lang := r.lang()

	order, applied, err := mod.CompleteOrder(r.ctx, orderID)
	if errors.Is(err, model.ErrOrderNotFound) {
		b.reply(r, b.texts.Text(lang, "admin_order_missing", orderID), nil)
		return nil
	}
	if err != nil {
		return err
	}

	if !applied {
		b.reply(r, b.texts.Text(lang, "admin_order_already", order.ID), nil)
		return nil
	}

	r.log.Info("order completed",
		zap.Int64("order", order.ID),
		zap.Int64("buyer", order.BuyerID),
		zap.Int64("total_cents", order.TotalCents),
	)
	b.reply(r, b.texts.Text(lang, "admin_order_completed", order.ID, i18n.FormatPrice(order.TotalCents)), nil)

	buyerLang := b.languageOf(r.ctx, order.BuyerID)
	b.send(r, messenger.Message{
		ChatID:  order.BuyerID,
		Text:    b.texts.Text(buyerLang, "order_completed", order.ID, i18n.FormatPrice(order.TotalCents)),
		Buttons: b.homeRow(buyerLang),
	})
	return nil
}

func (b *Bot) beginFeeEntry(r *request, mod *service.Moderator, orderID int64) error {
	lang := r.lang()

	order, err := mod.BeginFeeEntry(r.ctx, orderID)
	switch {
	case errors.Is(err, model.ErrOrderCompleted):
		b.reply(r, b.texts.Text(lang, "admin_order_already", orderID), nil)
		return nil
	case errors.Is(err, model.ErrOrderNotFound):
		b.reply(r, b.texts.Text(lang, "admin_order_missing", orderID), nil)
		return nil
	case err != nil:
		return err
	}

	b.reply(r, b.texts.Text(lang, "admin_enter_fee", order.ID), nil)
	return nil
}

// handleFeeInput принимает текст администратора как стоимость доставки, если ожидается её ввод.
func (b *Bot) handleFeeInput(r *request, text string) (bool, error) {
	mod, err := b.svc.Moderator(r.acc.ID)
	if err != nil {
		return false, nil
	}

	pending, err := mod.PendingFeeOrder(r.ctx)
	if err != nil {
		return true, err
	}
	if pending == 0 {
		return false, nil
	}

	lang := r.lang()

	order, err := mod.SubmitFee(r.ctx, text)
	switch {
	case errors.Is(err, model.ErrInvalidAmount):
		b.reply(r, b.texts.Text(lang, "admin_invalid_fee"), nil)
		return true, nil
	case errors.Is(err, model.ErrOrderCompleted):
		b.reply(r, b.texts.Text(lang, "admin_order_already", pending), nil)
		return true, nil
	case errors.Is(err, model.ErrOrderNotFound):
		b.reply(r, b.texts.Text(lang, "admin_order_missing", pending), nil)
		return true, nil
	case err != nil:
		return true, err
	}

	r.log.Info("delivery fee set",
		zap.Int64("order", order.ID),
		zap.Int64("fee_cents", order.DeliveryFeeCents),
	)

	fee, total := i18n.FormatPrice(order.DeliveryFeeCents), i18n.FormatPrice(order.TotalCents)
	b.reply(r, b.texts.Text(lang, "admin_fee_set", order.ID, fee, total), orderButtons(b.texts, lang, order.ID))

	buyerLang := b.languageOf(r.ctx, order.BuyerID)
	b.send(r, messenger.Message{
		ChatID: order.BuyerID,
		Text:   b.texts.Text(buyerLang, "order_fee_set", order.ID, fee, total),
	})
	return true, nil
}

// handleCommand выполняет команды администратора. Неизвестные команды не обрабатываются.
func (b *Bot) handleCommand(r *request, cmd, text string) (bool, error) {
	switch cmd {
	case "/grant", "/revoke", "/online", "/offline", "/pickup":
	default:
		return false, nil
	}

	mod, err := b.svc.Moderator(r.acc.ID)
	if err != nil {
		return true, b.explain(r, err)
	}

	lang := r.lang()
	usage := func() (bool, error) {
		b.reply(r, b.texts.Text(lang, "admin_usage"), nil)
		return true, nil
	}
	rest := strings.TrimSpace(strings.TrimPrefix(text, cmd))

	switch cmd {
	case "/online", "/offline":
		online := cmd == "/online"
		if err := mod.SetOnline(r.ctx, online); err != nil {
			return true, err
		}
		r.log.Info("storefront toggled", zap.Bool("online", online))
		key := "admin_offline"
		if online {
			key = "admin_online"
		}
		b.reply(r, b.texts.Text(lang, key), nil)
		return true, nil

	case "/grant", "/revoke":
		userID, ok := parseID(rest)
		if !ok {
			return usage()
		}
		if cmd == "/grant" {
			return true, b.grant(r, mod, userID)
		}
		return true, b.revoke(r, mod, userID)

	case "/pickup":
		rawID, info := rest, ""
		if i := strings.IndexFunc(rest, unicode.IsSpace); i >= 0 {
			rawID, info = rest[:i], rest[i:]
		}
		orderID, ok := parseID(rawID)
		if !ok {
			return usage()
		}

		order, info, err := mod.PickupInfo(r.ctx, orderID, info)
		switch {
		case errors.Is(err, model.ErrEmptyMessage):
			return usage()
		case errors.Is(err, model.ErrOrderNotFound):
			b.reply(r, b.texts.Text(lang, "admin_order_missing", orderID), nil)
			return true, nil
		case err != nil:
			return true, err
		}

		buyerLang := b.languageOf(r.ctx, order.BuyerID)
		b.send(r, messenger.Message{
			ChatID: order.BuyerID,
			Text:   b.texts.Text(buyerLang, "pickup_info", order.ID, info),
		})
		b.reply(r, b.texts.Text(lang, "admin_pickup_sent", order.ID), nil)
		return true, nil
	}

	return false, nil
}

func (b *Bot) homeRow(lang model.Language) [][]messenger.Button {
	return [][]messenger.Button{
		{{Text: b.texts.Text(lang, "btn_home"), Data: sectionData(SectionHome)}},
	}
}

func parseID(raw string) (int64, bool) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
