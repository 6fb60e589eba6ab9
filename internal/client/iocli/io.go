// Package iocli отделяет команды CLI от терминала, чтобы их можно было
// тестировать на буферах.
package iocli

import "io"

// IO терминал команды: вывод, строки ввода, пароль без эха, подтверждения.
type IO interface {
	io.Writer

	Println(a ...any)
	Printf(format string, a ...any)

	// ReadInput returns one trimmed line
	ReadInput(prompt string) (string, error)
	ReadPassword(prompt string) (string, error)

	// Confirm accepts y/yes, anything else is a refusal
	Confirm(prompt string) (bool, error)
}
