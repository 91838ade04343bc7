package main

import "github.com/oshokin/emergency-alert/cmd/alertctl/cmd"

func main() {
	cmd.Execute()
}
