// Package common содержит общие утилиты, используемые во всём проекте.
// Сюда входят: русская плюрализация, ограничение диапазонов, работа с временем.
package common

import (
	"fmt"
	"math"
	"time"
)

// Clamp ограничивает значение v диапазоном [lo, hi].
func Clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// HoursSince возвращает количество часов между from и now.
func HoursSince(from, now time.Time) float64 {
	return now.Sub(from).Hours()
}

// DaysSince возвращает целое число суток между from и now.
func DaysSince(from, now time.Time) int {
	return int(now.Sub(from).Hours() / 24)
}

// PluralizePoints возвращает правильную форму слова «балл» для числа n.
//
// Правила русского языка:
//   - n%10==1 И n%100!=11 → "балл" (1, 21, 31, 101, ...)
//   - n%10 в [2,3,4] И n%100 НЕ в [12,13,14] → "балла" (2, 3, 4, 22, ...)
//   - Остальные случаи → "баллов" (0, 5-20, 25-30, 100, ...)
func PluralizePoints(n int64) string {
	absN := int64(math.Abs(float64(n)))
	lastDigit := absN % 10
	lastTwoDigits := absN % 100

	if lastDigit == 1 && lastTwoDigits != 11 {
		return "балл"
	}
	if lastDigit >= 2 && lastDigit <= 4 && (lastTwoDigits < 12 || lastTwoDigits > 14) {
		return "балла"
	}
	return "баллов"
}

// FormatPoints форматирует сумму баллов в читабельную строку.
// Пример: FormatPoints(150) → "150 баллов"
func FormatPoints(n int64) string {
	return fmt.Sprintf("%d %s", n, PluralizePoints(n))
}

// PluralizeDays возвращает правильную форму слова «день» для числа n.
func PluralizeDays(n int) string {
	absN := int(math.Abs(float64(n)))
	lastDigit := absN % 10
	lastTwoDigits := absN % 100

	if lastDigit == 1 && lastTwoDigits != 11 {
		return "день"
	}
	if lastDigit >= 2 && lastDigit <= 4 && (lastTwoDigits < 12 || lastTwoDigits > 14) {
		return "дня"
	}
	return "дней"
}
