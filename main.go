package main

import "github.com/Manu343726/emu8086/cmd"

func main() {
	cmd.Execute()
}
