package main

import (
	"fmt"
	"log"
	"net/http"

	"github.com/placachat/placa-chat-api/api/handlers"

	"go.uber.org/zap"

	"github.com/placachat/placa-chat-api/config"
)

func main() {
	a := handlers.App{}
	a.Config = *config.New()

	if err := a.Initialize(); err != nil { //initialize database, scheduler and router
		log.Fatal(err)
	}

	zap.S().Infow("placa-chat-api is up and running",
		"port", a.Config.Port,
		"url", a.Config.BaseURL,
	)
	log.Fatal(http.ListenAndServe(fmt.Sprintf(":%v", a.Config.Port), a.Router))
}
