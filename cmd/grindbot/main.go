package main

import (
	"fmt"
	"os"

	// distrolessイメージにはタイムゾーンDBが無いため埋め込む
	_ "time/tzdata"

	"github.com/hitoshi/grindbot/internal/app"
)

func main() {
	if err := app.Run(os.Stdout, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "grindbot: %v\n", err)
		os.Exit(1)
	}
}
