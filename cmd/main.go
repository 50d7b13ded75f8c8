package main

import (
	"fmt"
	"os"

	"github.com/furiosa-ai/furiosa-device-api/internal/device_cmd"
)

func main() {
	cli := device_cmd.NewDeviceCommand()
	if err := cli.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
