package main

import "github.com/nimburion/docrepo/pkg/cli"

func main() {
	cli.Execute(cli.NewRootCommand(cli.CommandOptions{Name: "docctl"}))
}
