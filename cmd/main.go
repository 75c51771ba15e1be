package main

import (
	"log"

	"github.com/pissang/little-big-city/internal/app"
	"github.com/pissang/little-big-city/pkg/config"
)

func main() {
	realMain()
}

func realMain() {
	cfg, err := config.New()
	if err != nil {
		log.Fatalln("failed to load config: ", err)
	}

	app.Run(cfg)
}
