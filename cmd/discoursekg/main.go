// Package main is the entry point for the discoursekg application.
package main

import (
	"errors"
	"os"

	"github.com/discoursekg/discoursekg/cmd/discoursekg/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		var itemsFailed *cmd.ItemsFailedError
		if errors.As(err, &itemsFailed) {
			os.Exit(1)
		}
		os.Exit(2)
	}
}
