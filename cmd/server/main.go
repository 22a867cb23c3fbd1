package main

import (
	"context"
	"log"

	"github.com/joho/godotenv"

	"github.com/skyserve/drishti/internal/server"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using defaults")
	}

	srv := server.NewFromConfig()
	if err := srv.Run(context.Background()); err != nil {
		log.Fatal(err)
	}
}
