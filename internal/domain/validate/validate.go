// Пакет validate — нормализация и проверка пользовательских данных.
//
// Правила нормализации:
//   - email: обрезка пробелов, нижний регистр, проверка формата;
//   - имя: обрезка пробелов, первая буква заглавная, остальные строчные;
//   - фамилия: обрезка пробелов, верхний регистр;
//   - телефон: приведение к формату E.164, регион по умолчанию FR
//     (национальный номер 0XXXXXXXXX превращается в +33XXXXXXXXX).
package validate

import (
	"errors"
	"net/mail"
	"strings"
	"unicode"
)

// Ошибки валидации.
var (
	ErrInvalidEmail = errors.New("некорректный email")
	ErrEmptyName    = errors.New("имя не может быть пустым")
	ErrInvalidPhone = errors.New("некорректный номер телефона")
)

// Email нормализует и проверяет адрес электронной почты.
func Email(s string) (string, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return "", ErrInvalidEmail
	}
	addr, err := mail.ParseAddress(s)
	if err != nil || addr.Address != s {
		return "", ErrInvalidEmail
	}
	return s, nil
}

// FirstName нормализует имя: первая буква заглавная, остальные строчные.
func FirstName(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", ErrEmptyName
	}
	runes := []rune(strings.ToLower(s))
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes), nil
}

// LastName нормализует фамилию: верхний регистр.
func LastName(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", ErrEmptyName
	}
	return strings.ToUpper(s), nil
}

// Phone приводит номер телефона к формату E.164.
// Разделители (пробелы, точки, дефисы, скобки) удаляются.
// Номер без кода страны трактуется как французский национальный:
// ведущий 0 заменяется на +33.
func Phone(s string) (string, error) {
	var b strings.Builder
	for i, r := range strings.TrimSpace(s) {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '+' && i == 0:
			b.WriteRune(r)
		case r == ' ' || r == '-' || r == '.' || r == '(' || r == ')':
			// разделители игнорируются
		default:
			return "", ErrInvalidPhone
		}
	}
	cleaned := b.String()

	switch {
	case strings.HasPrefix(cleaned, "+"):
		digits := cleaned[1:]
		if len(digits) < 8 || len(digits) > 15 {
			return "", ErrInvalidPhone
		}
		return cleaned, nil
	case strings.HasPrefix(cleaned, "00"):
		// международный префикс 00 эквивалентен +
		return Phone("+" + cleaned[2:])
	case strings.HasPrefix(cleaned, "0") && len(cleaned) == 10:
		// французский национальный формат
		return "+33" + cleaned[1:], nil
	default:
		return "", ErrInvalidPhone
	}
}
