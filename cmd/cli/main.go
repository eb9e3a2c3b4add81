package main

import (
	"fmt"
	"os"

	"github.com/nimasrn/gpu-savings-gateway/pkg/logger"
)

func main() {
	defer logger.Sync()
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
