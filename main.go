package main

import (
	"os"

	"github.com/campus-sms/campus-sms/app"
)

func main() {
	err := app.Execute()
	if err != nil {
		os.Exit(1)
	}
}
