package main

import "github.com/rachmataditiya/odoo-mcp-server/cmd"

// version can be set during build with -ldflags
var version = "dev"

func main() {
	cmd.SetVersion(version)
	cmd.Execute()
}
