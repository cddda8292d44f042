package main

import (
	"log"

	"github.com/joho/godotenv"
	"go.uber.org/fx"

	"who-is-live/internal/app"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("no .env file loaded: %v", err)
	}

	fx.New(app.Module).Run()
}
