package main

import (
	"github.com/Prajwalkadam29/Decentralized-Chat-App/cmd"
	"github.com/Prajwalkadam29/Decentralized-Chat-App/internal/logging"
)

func main() {
	logging.Init()
	cmd.Execute()
}
