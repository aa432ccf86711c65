// Package common — errors.go определяет пользовательские ошибки,
// которые используются во всех модулях движка.
// Эти ошибки позволяют обработчикам различать типы проблем
// и возвращать вызывающей стороне осмысленные ответы.
package common

import "errors"

// Ошибки леджера (баллы, начисления, списания)
var (
	// ErrInsufficientBalance — недостаточно баллов на счёте
	ErrInsufficientBalance = errors.New("недостаточно баллов на счёте")
	// ErrInvalidAmount — некорректная сумма (ноль)
	ErrInvalidAmount = errors.New("сумма должна быть ненулевой")
	// ErrAccountNotFound — аккаунт не найден в базе
	ErrAccountNotFound = errors.New("аккаунт не найден")
	// ErrTransientStore — временный сбой хранилища, операция повторяется
	ErrTransientStore = errors.New("временный сбой хранилища")
)

// Ошибки реферальной системы
var (
	// ErrDuplicateReferral — приглашённый аккаунт уже привязан к рефереру
	ErrDuplicateReferral = errors.New("аккаунт уже привязан к рефереру")
	// ErrSelfReferral — попытка пригласить самого себя
	ErrSelfReferral = errors.New("нельзя пригласить самого себя")
)

// Ошибки алертов и переходов состояний
var (
	// ErrInvalidTransition — недопустимый переход статуса (алерт или реферал)
	ErrInvalidTransition = errors.New("недопустимый переход статуса")
	// ErrAlertNotFound — алерт не найден
	ErrAlertNotFound = errors.New("алерт не найден")
	// ErrUnknownDetection — тип детекции не зарегистрирован в реестре
	ErrUnknownDetection = errors.New("неизвестный тип детекции")
)

// Ошибки наград и челленджей
var (
	// ErrRewardNotFound — награда не найдена или отключена
	ErrRewardNotFound = errors.New("награда не найдена")
	// ErrChallengeNotFound — челлендж не найден
	ErrChallengeNotFound = errors.New("челлендж не найден")
	// ErrChallengeInactive — челлендж вне активного окна
	ErrChallengeInactive = errors.New("челлендж неактивен")
	// ErrChallengeCapReached — лимит выполнений челленджа исчерпан
	ErrChallengeCapReached = errors.New("лимит выполнений челленджа исчерпан")
)
