// migrate applies the embedded SQL migrations; run it before first boot
// and after every upgrade.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/prroha/fullstack-starter-sub003/cmd/internal/app"
)

func main() {
	direction := flag.String("direction", "up", "migration direction: up or down")
	flag.Parse()

	if err := app.RunMigrate(*direction); err != nil {
		fmt.Fprintln(os.Stderr, "migrate:", err)
		os.Exit(1)
	}
}
