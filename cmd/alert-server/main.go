package main

import "github.com/oshokin/emergency-alert/cmd/alert-server/cmd"

func main() {
	cmd.Execute()
}
