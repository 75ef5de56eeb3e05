package solbc

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/gagliardetto/solana-go/rpc/jsonrpc"
	"go.uber.org/zap"
)

// AnchorError represents an error from Anchor framework
type AnchorError struct {
	Code int    `json:"code"`
	Name string `json:"name"`
	Msg  string `json:"msg"`
}

func (a AnchorError) String() string {
	return fmt.Sprintf("%s (%d): %s", a.Name, a.Code, a.Msg)
}

// ProgramError is a rejection reported by the on-chain program, either during
// simulation or at preflight. It is propagated verbatim: Err is the raw
// instruction error and Logs are the program logs.
type ProgramError struct {
	Err    interface{}
	Logs   []string
	Anchor *AnchorError
}

func (e *ProgramError) Error() string {
	if e.Anchor != nil {
		return fmt.Sprintf("program error: %s", e.Anchor)
	}
	raw, err := json.Marshal(e.Err)
	if err != nil {
		return fmt.Sprintf("program error: %v", e.Err)
	}
	return fmt.Sprintf("program error: %s", raw)
}

// NewProgramError builds a ProgramError from a simulation result and extracts
// the Anchor error, if any, from the logs.
func NewProgramError(simErr interface{}, logs []string) *ProgramError {
	pe := &ProgramError{Err: simErr, Logs: logs}
	if anchorErr, ok := FindAnchorError(logs); ok {
		pe.Anchor = &anchorErr
	}
	return pe
}

// IsProgramError reports whether err carries a program rejection.
func IsProgramError(err error) bool {
	var pe *ProgramError
	return errors.As(err, &pe)
}

// FindAnchorError returns the first Anchor error logged by the program.
func FindAnchorError(logs []string) (AnchorError, bool) {
	for _, logStr := range logs {
		if strings.Contains(logStr, "AnchorError") {
			return parseAnchorErrorLog(logStr), true
		}
	}
	return AnchorError{}, false
}

// ErrorAnalyzer provides methods to analyze Solana transaction errors
type ErrorAnalyzer struct {
	logger *zap.Logger
}

// NewErrorAnalyzer creates a new ErrorAnalyzer instance
func NewErrorAnalyzer(logger *zap.Logger) *ErrorAnalyzer {
	return &ErrorAnalyzer{
		logger: logger.Named("error-analyzer"),
	}
}

// AsProgramError converts a preflight failure returned by sendTransaction into a
// ProgramError. It returns nil when err is not a simulation rejection.
func (ea *ErrorAnalyzer) AsProgramError(err error) *ProgramError {
	var rpcErr *jsonrpc.RPCError
	if !errors.As(err, &rpcErr) {
		return nil
	}
	if !strings.Contains(rpcErr.Message, "Transaction simulation failed") {
		return nil
	}

	var logs []string
	var instrErr interface{} = rpcErr.Message
	if dataMap, ok := rpcErr.Data.(map[string]interface{}); ok {
		if rawLogs, ok := dataMap["logs"].([]interface{}); ok {
			for _, entry := range rawLogs {
				if s, ok := entry.(string); ok {
					logs = append(logs, s)
				}
			}
		}
		if e, ok := dataMap["err"]; ok && e != nil {
			instrErr = e
		}
	}

	pe := NewProgramError(instrErr, logs)
	if pe.Anchor != nil {
		ea.logger.Warn("Anchor error detected",
			zap.Int("code", pe.Anchor.Code),
			zap.String("name", pe.Anchor.Name),
			zap.String("message", pe.Anchor.Msg))
	}
	return pe
}

// parseAnchorErrorLog parses an Anchor error log string
// Example: "Program log: AnchorError occurred. Error Code: InstructionFallbackNotFound. Error Number: 101. Error Message: Fallback functions are not supported."
func parseAnchorErrorLog(logStr string) AnchorError {
	result := AnchorError{}

	if parts := strings.SplitN(logStr, "Error Number:", 2); len(parts) > 1 {
		numParts := strings.Split(parts[1], ".")
		if len(numParts) > 0 {
			fmt.Sscanf(strings.TrimSpace(numParts[0]), "%d", &result.Code)
		}
	}

	if parts := strings.SplitN(logStr, "Error Code:", 2); len(parts) > 1 {
		nameParts := strings.Split(parts[1], ".")
		if len(nameParts) > 0 {
			result.Name = strings.TrimSpace(nameParts[0])
		}
	}

	if parts := strings.SplitN(logStr, "Error Message:", 2); len(parts) > 1 {
		result.Msg = strings.TrimSuffix(strings.TrimSpace(parts[1]), ".")
	}

	return result
}
