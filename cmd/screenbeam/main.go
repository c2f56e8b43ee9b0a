package main

import (
	"github.com/screenbeam/screenbeam/internal/command"
	"github.com/screenbeam/screenbeam/internal/logging"
)

func main() {
	// Initialize logging
	logging.Init()
	command.Execute()
}
