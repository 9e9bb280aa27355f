// Command aidbook は支援記録管理のAPIサーバー・ワーカー・管理コマンドを提供する。
//
//	aidbook [serve|worker|migrate|seed|healthcheck]
package main

import (
	"log/slog"
	"os"

	"github.com/hitoshi/aidbook/internal/app"
)

func main() {
	if err := app.Run(os.Stdout, os.Args[1:]); err != nil {
		slog.Error("application exited with error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
