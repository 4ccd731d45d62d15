package main

import "github.com/YoloWingPixie/dcs-lua-composer-action/cmd"

func main() {
	cmd.Execute()
}
