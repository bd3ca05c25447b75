package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"github.com/doeshing/mindtrail/internal/infrastructure/cli"
)

func main() {
	// .env is optional
	_ = godotenv.Load()

	ctx := context.Background()
	root, closer := cli.NewRootCmd(ctx, cli.Options{Verbose: isVerbose()})

	err := root.ExecuteContext(ctx)
	if cerr := closer.Close(); cerr != nil {
		fmt.Fprintln(os.Stderr, "error: close:", cerr)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func isVerbose() bool {
	return strings.EqualFold(os.Getenv("MINDTRAIL_DEBUG"), "1") || strings.EqualFold(os.Getenv("MINDTRAIL_DEBUG"), "true")
}
