package main

import (
	"os"

	"rental-pipeline/cmd"
	"rental-pipeline/config"
	"rental-pipeline/utils"
)

func main() {
	logger := utils.NewLogger()
	cfg := config.Load()

	if err := cmd.Execute(cfg, logger); err != nil {
		logger.Error("%v", err)
		os.Exit(1)
	}
}
