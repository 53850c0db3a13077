package main

import (
	"log"

	"github.com/prroha/fullstack-starter-sub003/cmd/internal/app"
)

func main() {
	if err := app.RunSweeper(); err != nil {
		log.Fatal(err)
	}
}
