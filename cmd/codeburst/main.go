package main

import (
	"fmt"
	"os"

	_ "github.com/joho/godotenv/autoload"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	if err := Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
