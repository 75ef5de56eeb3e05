// ====================================
// File: cmd/perps/main.go
// ====================================
package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/rovshanmuradov/perps-client/internal/cli"
	"github.com/rovshanmuradov/perps-client/internal/ui/component"
	"github.com/rovshanmuradov/perps-client/internal/ui/style"
)

func main() {
	err := cli.Execute(context.Background(), os.Args[1:], cli.Options{})
	if err == nil {
		return
	}
	// отмена формы - не ошибка
	if errors.Is(err, component.ErrCancelled) || errors.Is(err, context.Canceled) {
		fmt.Fprintln(os.Stderr, style.Warning("Cancelled"))
		os.Exit(130)
	}
	fmt.Fprintln(os.Stderr, style.Error(err.Error()))
	os.Exit(1)
}
