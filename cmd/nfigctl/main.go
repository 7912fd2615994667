// Command nfigctl is the operator CLI for nfigd.
package main

import "github.com/getnfig/nfig/cmd/nfigctl/command"

func main() {
	command.Execute()
}
