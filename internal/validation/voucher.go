// Package validation содержит функции валидации входных данных.
package validation

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// HandleMarker открывает имя пользователя в чате.
const HandleMarker = '@'

// IsValidVoucherHandle проверяет имя рекомендателя: маркер в начале, не короче двух символов, без пробелов.
func IsValidVoucherHandle(handle string) bool {
	if utf8.RuneCountInString(handle) < 2 {
		return false
	}

	first, _ := utf8.DecodeRuneInString(handle)
	if first != HandleMarker {
		return false
	}

	return strings.IndexFunc(handle, unicode.IsSpace) == -1
}

const maxAddressLength = 300

// NormalizeAddress убирает лишние пробелы вокруг адреса доставки и сообщает, пригоден ли он.
func NormalizeAddress(raw string) (string, bool) {
	address := strings.TrimSpace(raw)
	if address == "" || utf8.RuneCountInString(address) > maxAddressLength {
		return "", false
	}
	return address, true
}
