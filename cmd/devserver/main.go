package main

import (
	"github.com/nimburion/devserver/pkg/cli"
	"github.com/nimburion/devserver/pkg/version"
)

func main() {
	cli.Execute(cli.NewRootCommand(cli.CommandOptions{
		Name:        version.ServiceName,
		Description: "Minimal HTTP service with a JSON API and a static asset fallback",
	}))
}
