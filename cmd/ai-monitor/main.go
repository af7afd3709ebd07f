package main

import (
	"os"

	"github.com/jd-d/ai-monitor/internal/app"
)

func main() {
	os.Exit(app.Run(os.Args[1:]))
}
