// Package common содержит общие утилиты, используемые во всём проекте.
// Сюда входят: форматирование сумм в рупиях, перевод в пайсы, работа с временем.
package common

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// FormatINR форматирует сумму в рупиях с индийской группировкой разрядов.
//
// Примеры:
//
//	FormatINR(200)      → "₹200.00"
//	FormatINR(1234567.5) → "₹12,34,567.50"
func FormatINR(amount decimal.Decimal) string {
	sign := ""
	if amount.IsNegative() {
		sign = "-"
		amount = amount.Neg()
	}
	fixed := amount.StringFixed(2)
	intPart, frac, _ := strings.Cut(fixed, ".")
	return fmt.Sprintf("%s₹%s.%s", sign, groupIndian(intPart), frac)
}

// groupIndian расставляет запятые: последние три цифры, дальше по две.
func groupIndian(digits string) string {
	if len(digits) <= 3 {
		return digits
	}
	head, tail := digits[:len(digits)-3], digits[len(digits)-3:]
	var parts []string
	for len(head) > 2 {
		parts = append([]string{head[len(head)-2:]}, parts...)
		head = head[:len(head)-2]
	}
	if head != "" {
		parts = append([]string{head}, parts...)
	}
	return strings.Join(parts, ",") + "," + tail
}

// ToPaise переводит рупии в пайсы (целое число) для API процессора.
func ToPaise(amount decimal.Decimal) int64 {
	return amount.Mul(hundred).Round(0).IntPart()
}

// FromPaise переводит пайсы из вебхуков обратно в рупии.
func FromPaise(paise int64) decimal.Decimal {
	return decimal.NewFromInt(paise).Div(hundred)
}

// ValidMoney проверяет, что сумма положительная и не точнее пайсы.
func ValidMoney(amount decimal.Decimal) bool {
	return amount.IsPositive() && amount.Equal(amount.Round(2))
}

// LoadLocation загружает часовой пояс; если tzdata нет в образе —
// для Asia/Kolkata используем UTC+5:30 вручную.
func LoadLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err == nil {
		return loc
	}
	if name == "Asia/Kolkata" {
		return time.FixedZone("IST", 5*60*60+30*60)
	}
	return time.UTC
}

// FormatDateTime форматирует время в виде "02 Jan 2006 15:04 IST" в заданном поясе.
func FormatDateTime(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format("02 Jan 2006 15:04 MST")
}

// Pluralize возвращает форму слова для английского текста: 1 request, 2 requests.
func Pluralize(n int, one, many string) string {
	if n == 1 || n == -1 {
		return fmt.Sprintf("%d %s", n, one)
	}
	return fmt.Sprintf("%d %s", n, many)
}

// Truncate обрезает строку до max рун (для логов и причин отказа).
func Truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max]) + "..."
}
