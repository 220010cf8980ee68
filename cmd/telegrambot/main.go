package main

import (
	"log"

	"github.com/pasindu8/telegrambot/bot/app"
	corecmd "github.com/pasindu8/telegrambot/core/cmd"
)

func main() {
	err := corecmd.Run(corecmd.Options{
		DefaultConfigPath: "config.yml",
		LoadConfig: func(path string) (corecmd.ConfigCarrier, error) {
			return app.LoadConfig(path)
		},
		Bootstrap: app.Bootstrap,
	})
	if err != nil {
		log.Fatalf("telegrambot: %v", err)
	}
}
