// internal/perpetuals/errors.go
package perpetuals

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidSide возвращается для стороны "none" там, где нужна long/short.
	ErrInvalidSide = errors.New("invalid side: expected long or short")
	// ErrMissingReturnData - симуляция прошла, но view-инструкция ничего не вернула.
	ErrMissingReturnData = errors.New("view instruction returned no data")
	// ErrAccountDiscriminator - данные аккаунта не соответствуют ожидаемому типу.
	ErrAccountDiscriminator = errors.New("account discriminator mismatch")
)

// ValidationError описывает параметр, вышедший за допустимые границы.
// Возникает до любых сетевых вызовов.
type ValidationError struct {
	Field string
	Value interface{}
	Bound string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s = %v: must be %s", e.Field, e.Value, e.Bound)
}

func newValidationError(field string, value interface{}, bound string) *ValidationError {
	return &ValidationError{Field: field, Value: value, Bound: bound}
}

// IsValidationError проверяет, является ли ошибка ошибкой валидации
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// NotFoundError - запрошенный аккаунт программы не существует.
type NotFoundError struct {
	Kind string
	Key  string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.Key)
}

// IsNotFound проверяет, является ли ошибка NotFoundError
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}
