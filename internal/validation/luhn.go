// Package validation содержит функции валидации входных данных.
package validation

import (
	"strings"
	"unicode"
)

const (
	minCardDigits = 12
	maxCardDigits = 19
)

// NormalizeCardNumber убирает пробелы и дефисы из номера карты.
func NormalizeCardNumber(number string) string {
	return strings.Map(func(r rune) rune {
		if r == ' ' || r == '-' {
			return -1
		}
		return r
	}, number)
}

// IsValidCardNumber проверяет длину номера карты и контрольную сумму по алгоритму Луна.
func IsValidCardNumber(number string) bool {
	number = NormalizeCardNumber(number)
	if len(number) < minCardDigits || len(number) > maxCardDigits {
		return false
	}
	return luhn(number)
}

// CardLast4 возвращает последние четыре цифры номера карты для хранения в истории пополнений.
func CardLast4(number string) string {
	number = NormalizeCardNumber(number)
	if len(number) < 4 {
		return number
	}
	return number[len(number)-4:]
}

func luhn(number string) bool {
	if number == "" {
		return false
	}

	sum := 0
	double := false

	for i := len(number) - 1; i >= 0; i-- {
		ch := rune(number[i])
		if !unicode.IsDigit(ch) {
			return false
		}
		digit := int(ch - '0')
		if double {
			digit *= 2
			if digit > 9 {
				digit -= 9
			}
		}
		sum += digit
		double = !double
	}

	return sum%10 == 0
}
