package main

import (
	"log"

	"gozon/storefront/internal/app"
)

func main() {
	if err := app.Run(); err != nil {
		log.Fatalf("gateway failed: %v", err)
	}
}
