package main

import "github.com/hunetmoducoding/rsmq-go/internal/cli"

func main() {
	cli.Main(cli.NewConsumerCommand())
}
