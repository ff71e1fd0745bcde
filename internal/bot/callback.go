package bot

import (
	"errors"
	"strconv"
	"strings"

	"github.com/mmeshcher/gatedmart/internal/model"
)

// Action определяет действие, закодированное в данных кнопки.
type Action int

const (
	ActionVerify Action = iota + 1
	ActionLanguage
	ActionNavigate
	ActionItem
	ActionBuyItem
	ActionBuyQuantity
	ActionBuyClear
	ActionBuyBack
	ActionBuyNext
	ActionBuyDelivery
	ActionClaimAccept
	ActionClaimDecline
	ActionRevoke
	ActionOrderComplete
	ActionOrderFee
)

// Разделы витрины, доступные через safe:<раздел>.
const (
	SectionShop    = "shop"
	SectionBuy     = "buy"
	SectionHelp    = "help"
	SectionAccount = "account"
	SectionHome    = "home"
)

var errBadCallback = errors.New("malformed callback data")

// Callback описывает разобранные данные кнопки.
type Callback struct {
	Action   Action
	Section  string
	Language model.Language
	ID       int64
	Quantity int
	Delivery bool
}

// ParseCallback разбирает данные кнопки вида "buy:qty:<id>:<n>".
func ParseCallback(data string) (Callback, error) {
	parts := strings.Split(data, ":")

	switch {
	case data == "verify":
		return Callback{Action: ActionVerify}, nil

	case parts[0] == "lang" && len(parts) == 2:
		lang := model.Language(parts[1])
		if !lang.IsSupported() {
			return Callback{}, errBadCallback
		}
		return Callback{Action: ActionLanguage, Language: lang}, nil

	case parts[0] == "safe" && len(parts) == 2:
		switch parts[1] {
		case SectionShop, SectionBuy, SectionHelp, SectionAccount, SectionHome:
			return Callback{Action: ActionNavigate, Section: parts[1]}, nil
		}
		return Callback{}, errBadCallback

	case parts[0] == "item" && len(parts) == 2:
		return withID(Callback{Action: ActionItem}, parts[1])

	case parts[0] == "buy":
		return parseBuy(parts[1:])

	case parts[0] == "adm" && len(parts) == 3:
		switch parts[1] {
		case "acc":
			return withID(Callback{Action: ActionClaimAccept}, parts[2])
		case "dec":
			return withID(Callback{Action: ActionClaimDecline}, parts[2])
		case "rem":
			return withID(Callback{Action: ActionRevoke}, parts[2])
		}
		return Callback{}, errBadCallback

	case parts[0] == "ord" && len(parts) == 3:
		switch parts[1] {
		case "complete":
			return withID(Callback{Action: ActionOrderComplete}, parts[2])
		case "fee":
			return withID(Callback{Action: ActionOrderFee}, parts[2])
		}
		return Callback{}, errBadCallback
	}

	return Callback{}, errBadCallback
}

func parseBuy(parts []string) (Callback, error) {
	if len(parts) == 0 {
		return Callback{}, errBadCallback
	}

	switch {
	case parts[0] == "item" && len(parts) == 2:
		return withID(Callback{Action: ActionBuyItem}, parts[1])

	case parts[0] == "qty" && len(parts) == 3:
		cb, err := withID(Callback{Action: ActionBuyQuantity}, parts[1])
		if err != nil {
			return Callback{}, err
		}
		qty, err := strconv.Atoi(parts[2])
		if err != nil || qty < 0 {
			return Callback{}, errBadCallback
		}
		cb.Quantity = qty
		return cb, nil

	case parts[0] == "clear" && len(parts) == 1:
		return Callback{Action: ActionBuyClear}, nil

	case parts[0] == "back" && len(parts) == 1:
		return Callback{Action: ActionBuyBack}, nil

	case parts[0] == "next" && len(parts) == 1:
		return Callback{Action: ActionBuyNext}, nil

	case parts[0] == "delivery" && len(parts) == 2:
		switch parts[1] {
		case "yes":
			return Callback{Action: ActionBuyDelivery, Delivery: true}, nil
		case "no":
			return Callback{Action: ActionBuyDelivery}, nil
		}
	}

	return Callback{}, errBadCallback
}

func withID(cb Callback, raw string) (Callback, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return Callback{}, errBadCallback
	}
	cb.ID = id
	return cb, nil
}

func verifyData() string { return "verify" }
func languageData(l model.Language) string { return "lang:" + string(l) }
func sectionData(section string) string { return "safe:" + section }
func itemData(id int64) string { return "item:" + strconv.FormatInt(id, 10) }
func buyItemData(id int64) string { return "buy:item:" + strconv.FormatInt(id, 10) }

func cartData(action string) string { return "buy:" + action }

func quantityData(id int64, qty int) string {
	return "buy:qty:" + strconv.FormatInt(id, 10) + ":" + strconv.Itoa(qty)
}

func deliveryData(yes bool) string {
	if yes {
		return "buy:delivery:yes"
	}
	return "buy:delivery:no"
}

func claimData(accept bool, claimID int64) string {
	if accept {
		return "adm:acc:" + strconv.FormatInt(claimID, 10)
	}
	return "adm:dec:" + strconv.FormatInt(claimID, 10)
}

func revokeData(userID int64) string { return "adm:rem:" + strconv.FormatInt(userID, 10) }

func orderData(action string, orderID int64) string {
	return "ord:" + action + ":" + strconv.FormatInt(orderID, 10)
}
