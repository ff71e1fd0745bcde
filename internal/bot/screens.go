package bot

import (
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/mmeshcher/gatedmart/internal/i18n"
	"github.com/mmeshcher/gatedmart/internal/messenger"
	"github.com/mmeshcher/gatedmart/internal/model"
)

// Экраны витрины. Текущий экран хранится в сессии, чтобы перерисовать его после смены языка.
const (
	screenHome     = "home"
	screenShop     = "shop"
	screenCart     = "cart"
	screenHelp     = "help"
	screenAccount  = "account"
	screenItem     = "item"
	screenQuantity = "quantity"
	screenDelivery = "delivery"
)

var sectionScreens = map[string]string{
	SectionShop:    screenShop,
	SectionBuy:     screenCart,
	SectionHelp:    screenHelp,
	SectionAccount: screenAccount,
	SectionHome:    screenHome,
}

var quantityChoices = [][]int{{1, 2, 3}, {4, 5, 10}, {0}}

func (b *Bot) handleShop(r *request, cb Callback) error {
	// Любая кнопка витрины, кроме выбора доставки, прерывает ввод адреса.
	if r.acc.State == model.StateAwaitingAddress && cb.Action != ActionBuyDelivery {
		if err := b.svc.CancelAddressEntry(r.ctx, r.acc.ID); err != nil {
			return err
		}
		r.acc.State = model.StateNone
	}

	switch cb.Action {
	case ActionNavigate:
		return b.show(r, sectionScreens[cb.Section], 0)

	case ActionItem:
		return b.show(r, screenItem, cb.ID)

	case ActionBuyItem:
		return b.show(r, screenQuantity, cb.ID)

	case ActionBuyQuantity:
		if err := b.svc.SetQuantity(r.ctx, r.acc.ID, cb.ID, cb.Quantity); err != nil {
			return b.explain(r, err)
		}
		return b.show(r, screenCart, 0)

	case ActionBuyClear:
		if err := b.svc.ClearCart(r.ctx, r.acc.ID); err != nil {
			return b.explain(r, err)
		}
		return b.show(r, screenCart, 0)

	case ActionBuyBack:
		return b.show(r, screenShop, 0)

	case ActionBuyNext:
		return b.show(r, screenDelivery, 0)

	case ActionBuyDelivery:
		if !cb.Delivery {
			return b.checkout(r, false, "")
		}
		if err := b.svc.RequestDelivery(r.ctx, r.acc.ID); err != nil {
			return b.explain(r, err)
		}
		r.acc.State = model.StateAwaitingAddress
		return b.showCurrent(r)
	}

	b.reply(r, b.texts.Text(r.lang(), "unknown_action"), nil)
	return nil
}

// showCurrent перерисовывает экран, вычисленный по состоянию аккаунта и сессии.
func (b *Bot) showCurrent(r *request) error {
	lang := r.lang()

	if r.acc.Status != model.AdmissionSafe {
		var msg messenger.Message
		switch {
		case r.acc.Status == model.AdmissionPending:
			msg.Text = b.texts.Text(lang, "wait_notice")
			msg.Buttons = b.languageRow()
		case r.acc.State == model.StateAwaitingVouch:
			msg.Text = b.texts.Text(lang, "ask_voucher")
			msg.Buttons = b.languageRow()
		case r.acc.Status == model.AdmissionDeclined:
			msg.Text = b.texts.Text(lang, "welcome_declined")
			msg.Buttons = b.entryButtons(lang)
		default:
			msg.Text = b.texts.Text(lang, "welcome_new")
			msg.Buttons = b.entryButtons(lang)
		}
		b.reply(r, msg.Text, msg.Buttons)
		return nil
	}

	if r.acc.State == model.StateAwaitingAddress {
		b.reply(r, b.texts.Text(lang, "ask_address"), [][]messenger.Button{
			{{Text: b.texts.Text(lang, "btn_back"), Data: cartData("back")}},
		})
		return nil
	}

	sess, err := b.svc.Session(r.ctx, r.acc.ID)
	if err != nil {
		return err
	}
	if sess.Screen == "" {
		sess.Screen = screenHome
	}
	return b.show(r, sess.Screen, sess.ScreenArg)
}

// show отрисовывает экран витрины и запоминает его как текущий.
func (b *Bot) show(r *request, screen string, arg int64) error {
	msg, screen, err := b.render(r, screen, arg)
	if err != nil {
		return err
	}
	if screen != screenItem && screen != screenQuantity {
		arg = 0
	}

	if err := b.svc.SetScreen(r.ctx, r.acc.ID, screen, arg); err != nil {
		return err
	}

	msg.ChatID = r.acc.ID
	b.send(r, msg)
	return nil
}

// render строит сообщение экрана и возвращает экран, который был отрисован фактически:
// при исчезнувшей позиции или невозможном оформлении показывается ближайший доступный экран.
func (b *Bot) render(r *request, screen string, arg int64) (messenger.Message, string, error) {
	lang := r.lang()
	home := []messenger.Button{{Text: b.texts.Text(lang, "btn_home"), Data: sectionData(SectionHome)}}

	switch screen {
	case screenShop:
		msg, err := b.renderShop(r, home)
		return msg, screenShop, err

	case screenCart:
		msg, err := b.renderCart(r, home)
		return msg, screenCart, err

	case screenItem, screenQuantity:
		item, err := b.svc.Item(r.ctx, arg)
		if err != nil {
			if err := b.explain(r, err); err != nil {
				return messenger.Message{}, "", err
			}
			msg, err := b.renderShop(r, home)
			return msg, screenShop, err
		}
		if screen == screenItem {
			msg, err := b.renderItem(r, item)
			return msg, screenItem, err
		}
		return b.renderQuantity(r, item), screenQuantity, nil

	case screenDelivery:
		priced, err := b.svc.BeginCheckout(r.ctx, r.acc.ID)
		if err != nil {
			if err := b.explain(r, err); err != nil {
				return messenger.Message{}, "", err
			}
			msg, err := b.renderCart(r, home)
			return msg, screenCart, err
		}
		return messenger.Message{
			Text: b.texts.Text(lang, "delivery_question", i18n.FormatPrice(priced.SubtotalCents)),
			Buttons: [][]messenger.Button{
				{
					{Text: b.texts.Text(lang, "btn_delivery_no"), Data: deliveryData(false)},
					{Text: b.texts.Text(lang, "btn_delivery_yes"), Data: deliveryData(true)},
				},
				{{Text: b.texts.Text(lang, "btn_back"), Data: sectionData(SectionBuy)}},
			},
		}, screenDelivery, nil

	case screenHelp:
		return messenger.Message{
			Text:    b.texts.Text(lang, "help_text"),
			Buttons: [][]messenger.Button{home},
		}, screenHelp, nil

	case screenAccount:
		return messenger.Message{
			Text: b.texts.Text(lang, "account_info",
				b.texts.Text(lang, "status_"+string(r.acc.Status)),
				strings.ToUpper(string(lang)),
				i18n.FormatPrice(r.acc.TotalSpent)),
			Buttons: append([][]messenger.Button{home}, b.languageRow()...),
		}, screenAccount, nil
	}

	return messenger.Message{
		Text: b.texts.Text(lang, "home_safe"),
		Buttons: append([][]messenger.Button{
			{
				{Text: b.texts.Text(lang, "btn_shop"), Data: sectionData(SectionShop)},
				{Text: b.texts.Text(lang, "btn_cart"), Data: sectionData(SectionBuy)},
			},
			{
				{Text: b.texts.Text(lang, "btn_account"), Data: sectionData(SectionAccount)},
				{Text: b.texts.Text(lang, "btn_help"), Data: sectionData(SectionHelp)},
			},
		}, b.languageRow()...),
	}, screenHome, nil
}

func (b *Bot) renderShop(r *request, home []messenger.Button) (messenger.Message, error) {
	lang := r.lang()

	items, err := b.svc.Catalog(r.ctx)
	if err != nil {
		return messenger.Message{}, err
	}

	if len(items) == 0 {
		return messenger.Message{
			Text:    b.texts.Text(lang, "shop_empty"),
			Buttons: [][]messenger.Button{home},
		}, nil
	}

	rows := make([][]messenger.Button, 0, len(items)+1)
	for _, it := range items {
		rows = append(rows, []messenger.Button{{
			Text: b.texts.Text(lang, "shop_item", it.Name, i18n.FormatPrice(it.PriceCents)),
			Data: itemData(it.ID),
		}})
	}
	rows = append(rows, []messenger.Button{
		{Text: b.texts.Text(lang, "btn_cart"), Data: sectionData(SectionBuy)},
		home[0],
	})

	return messenger.Message{Text: b.texts.Text(lang, "shop_title"), Buttons: rows}, nil
}

func (b *Bot) renderItem(r *request, item *model.Item) (messenger.Message, error) {
	lang := r.lang()

	sess, err := b.svc.Session(r.ctx, r.acc.ID)
	if err != nil {
		return messenger.Message{}, err
	}

	return messenger.Message{
		Text: b.texts.Text(lang, "item_detail",
			item.Name, item.Description, i18n.FormatPrice(item.PriceCents), sess.Cart.Quantity(item.ID)),
		PhotoRef: item.ImageRef,
		Buttons: [][]messenger.Button{
			{{Text: b.texts.Text(lang, "btn_add"), Data: buyItemData(item.ID)}},
			{{Text: b.texts.Text(lang, "btn_back"), Data: cartData("back")}},
		},
	}, nil
}

func (b *Bot) renderQuantity(r *request, item *model.Item) messenger.Message {
	lang := r.lang()

	rows := make([][]messenger.Button, 0, len(quantityChoices)+1)
	for _, choices := range quantityChoices {
		row := make([]messenger.Button, 0, len(choices))
		for _, n := range choices {
			row = append(row, messenger.Button{Text: strconv.Itoa(n), Data: quantityData(item.ID, n)})
		}
		rows = append(rows, row)
	}
	rows = append(rows, []messenger.Button{{Text: b.texts.Text(lang, "btn_back"), Data: itemData(item.ID)}})

	return messenger.Message{
		Text:    b.texts.Text(lang, "choose_quantity", item.Name),
		Buttons: rows,
	}
}

func (b *Bot) renderCart(r *request, home []messenger.Button) (messenger.Message, error) {
	lang := r.lang()

	priced, err := b.svc.CartView(r.ctx, r.acc.ID)
	if err != nil {
		return messenger.Message{}, err
	}

	if len(priced.Lines) == 0 {
		return messenger.Message{
			Text: b.texts.Text(lang, "cart_empty"),
			Buttons: [][]messenger.Button{
				{{Text: b.texts.Text(lang, "btn_shop"), Data: sectionData(SectionShop)}},
				home,
			},
		}, nil
	}

	var sb strings.Builder
	sb.WriteString(b.texts.Text(lang, "cart_title"))
	sb.WriteString("\n")
	sb.WriteString(b.formatLines(lang, priced.Lines))
	sb.WriteString("\n\n")
	sb.WriteString(b.texts.Text(lang, "cart_subtotal", i18n.FormatPrice(priced.SubtotalCents)))

	return messenger.Message{
		Text: sb.String(),
		Buttons: [][]messenger.Button{
			{{Text: b.texts.Text(lang, "btn_next"), Data: cartData("next")}},
			{
				{Text: b.texts.Text(lang, "btn_clear"), Data: cartData("clear")},
				{Text: b.texts.Text(lang, "btn_shop"), Data: cartData("back")},
			},
			home,
		},
	}, nil
}

func (b *Bot) entryButtons(lang model.Language) [][]messenger.Button {
	return append([][]messenger.Button{
		{{Text: b.texts.Text(lang, "btn_verify"), Data: verifyData()}},
	}, b.languageRow()...)
}

func (b *Bot) formatLines(lang model.Language, lines []model.OrderLine) string {
	out := make([]string, 0, len(lines))
	for _, l := range lines {
		out = append(out, b.texts.Text(lang, "cart_line", l.Name, l.Quantity, i18n.FormatPrice(l.TotalCents())))
	}
	return strings.Join(out, "\n")
}

func (b *Bot) checkout(r *request, delivery bool, address string) error {
	order, err := b.svc.Checkout(r.ctx, r.acc.ID, delivery, address)
	if err != nil {
		return b.explain(r, err)
	}

	r.log.Info("order placed",
		zap.Int64("order", order.ID),
		zap.Int64("subtotal_cents", order.SubtotalCents),
		zap.Bool("delivery", order.DeliveryRequested),
	)
	r.acc.State = model.StateNone

	lang := r.lang()
	text := b.texts.Text(lang, "order_placed", order.ID, i18n.FormatPrice(order.TotalCents))
	if order.DeliveryRequested {
		text = b.texts.Text(lang, "order_placed_delivery", order.ID, i18n.FormatPrice(order.SubtotalCents))
	}
	if err := b.svc.SetScreen(r.ctx, r.acc.ID, screenHome, 0); err != nil {
		return err
	}
	b.reply(r, text, [][]messenger.Button{
		{{Text: b.texts.Text(lang, "btn_home"), Data: sectionData(SectionHome)}},
	})

	b.notifyAdminOrder(r, order)
	return nil
}

func (b *Bot) notifyAdminOrder(r *request, order *model.Order) {
	adminID := b.svc.AdminID()
	lang := b.languageOf(r.ctx, adminID)

	delivery := b.texts.Text(lang, "admin_delivery_none")
	if order.DeliveryRequested {
		delivery = b.texts.Text(lang, "admin_delivery_to", order.Address)
	}

	b.send(r, messenger.Message{
		ChatID: adminID,
		Text: b.texts.Text(lang, "admin_new_order",
			order.ID, displayName(r.acc), order.BuyerID,
			b.formatLines(lang, order.Lines),
			i18n.FormatPrice(order.SubtotalCents),
			delivery,
			i18n.FormatPrice(order.DeliveryFeeCents),
			i18n.FormatPrice(order.TotalCents)),
		Buttons: orderButtons(b.texts, lang, order.ID),
	})
}

func orderButtons(texts *i18n.Catalog, lang model.Language, orderID int64) [][]messenger.Button {
	return [][]messenger.Button{{
		{Text: texts.Text(lang, "btn_set_fee"), Data: orderData("fee", orderID)},
		{Text: texts.Text(lang, "btn_complete"), Data: orderData("complete", orderID)},
	}}
}
