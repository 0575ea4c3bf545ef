// Package main is the entry point for the knowledge base server.
package main

import (
	_ "go.uber.org/automaxprocs/maxprocs"

	"github.com/kart-io/knowledge-x/cmd/knowledge-server/app"
)

func main() {
	app.NewApp().Run()
}
