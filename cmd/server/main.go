package main

import (
	"log"

	"github.com/prroha/fullstack-starter-sub003/cmd/internal/app"
)

func main() {
	if err := app.Run(); err != nil {
		log.Fatal(err)
	}
}
