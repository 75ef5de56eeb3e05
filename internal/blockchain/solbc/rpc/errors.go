// internal/blockchain/solbc/rpc/errors.go
package rpc

import (
	"errors"
	"fmt"
)

var (
	// ErrNoEndpoints возникает, когда набор эндпоинтов пуст
	ErrNoEndpoints = errors.New("endpoint set is empty")

	// ErrInvalidEndpoint возникает при некорректном URL эндпоинта
	ErrInvalidEndpoint = errors.New("invalid RPC endpoint")
)

// Error представляет ошибку одной попытки RPC с дополнительным контекстом
type Error struct {
	Err     error
	NodeURL string
	Method  string
}

// Error реализует интерфейс error
func (e *Error) Error() string {
	return fmt.Sprintf("RPC error [%s] at %s: %v", e.Method, e.NodeURL, e.Err)
}

// Unwrap возвращает оригинальную ошибку
func (e *Error) Unwrap() error {
	return e.Err
}

// NewError создает новую ошибку RPC
func NewError(err error, nodeURL, method string) error {
	return &Error{
		Err:     err,
		NodeURL: nodeURL,
		Method:  method,
	}
}

// AggregateError возвращается, когда все эндпоинты отказали.
// LastURL и Err описывают последнюю попытку.
type AggregateError struct {
	Method   string
	LastURL  string
	Attempts int
	Err      error
}

func (e *AggregateError) Error() string {
	return fmt.Sprintf("all %d RPC attempts for method %s failed, last endpoint %s: %v",
		e.Attempts, e.Method, e.LastURL, e.Err)
}

func (e *AggregateError) Unwrap() error {
	return e.Err
}

// IsTransportError сообщает, что ошибка пришла от исчерпанного набора эндпоинтов.
func IsTransportError(err error) bool {
	var agg *AggregateError
	return errors.As(err, &agg)
}
