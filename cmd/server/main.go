package main

import (
	"os"

	"github.com/vovakirdan/linechat/internal/log"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		log.New("error").Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}
