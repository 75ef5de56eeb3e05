// internal/blockchain/solbc/return_data.go
package solbc

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/gagliardetto/solana-go"
)

const returnLogPrefix = "Program return: "

// ErrNoReturnData возникает, если программа не вернула данные в логах симуляции.
var ErrNoReturnData = errors.New("no return data in simulation logs")

// ReturnData извлекает данные, возвращенные программой programID через set_return_data.
// Рантайм пишет их в лог вида "Program return: <program> <base64>".
// Берется последняя запись этой программы.
func ReturnData(logs []string, programID solana.PublicKey) ([]byte, error) {
	prefix := returnLogPrefix + programID.String() + " "
	for i := len(logs) - 1; i >= 0; i-- {
		if !strings.HasPrefix(logs[i], prefix) {
			continue
		}
		encoded := strings.TrimSpace(strings.TrimPrefix(logs[i], prefix))
		data, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			return nil, fmt.Errorf("decode return data: %w", err)
		}
		return data, nil
	}
	return nil, ErrNoReturnData
}
