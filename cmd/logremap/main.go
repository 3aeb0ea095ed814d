package main

import (
	"runtime"

	"github.com/joho/godotenv"

	"logremap/internal/cli"
)

func main() {
	// load .env file if present
	_ = godotenv.Load(".env")

	// workers are capped relative to logical cores during config validation
	runtime.GOMAXPROCS(runtime.NumCPU())

	cli.Execute()
}
