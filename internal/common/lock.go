// Package common — lock.go реализует пер-аккаунтную сериализацию операций.
// Все операции, изменяющие леджер одного аккаунта, обязаны выполняться
// последовательно: гонка «потерянного обновления» должна быть невозможна
// структурно, а не статистически.
package common

import "sync"

// AccountLocks — набор мьютексов, по одному на аккаунт.
// Мьютексы создаются лениво и никогда не удаляются: количество аккаунтов
// ограничено, а переиспользование исключает гонку создания/удаления.
type AccountLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewAccountLocks создаёт пустой набор замков.
func NewAccountLocks() *AccountLocks {
	return &AccountLocks{locks: make(map[string]*sync.Mutex)}
}

func (l *AccountLocks) get(id string) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()

	m, ok := l.locks[id]
	if !ok {
		m = &sync.Mutex{}
		l.locks[id] = m
	}
	return m
}

// Lock захватывает замок аккаунта и возвращает функцию освобождения.
//
//	unlock := locks.Lock(accountID)
//	defer unlock()
func (l *AccountLocks) Lock(id string) func() {
	m := l.get(id)
	m.Lock()
	return m.Unlock
}

// LockPair захватывает замки двух аккаунтов в фиксированном глобальном
// порядке (меньший id первым) — иначе встречные операции могут
// заблокировать друг друга намертво.
func (l *AccountLocks) LockPair(a, b string) func() {
	if a == b {
		return l.Lock(a)
	}
	first, second := a, b
	if second < first {
		first, second = second, first
	}
	m1, m2 := l.get(first), l.get(second)
	m1.Lock()
	m2.Lock()
	return func() {
		m2.Unlock()
		m1.Unlock()
	}
}
