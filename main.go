package main

import "github.com/AdguardTeam/NetMapper/internal/cmd"

func main() {
	cmd.Main()
}
