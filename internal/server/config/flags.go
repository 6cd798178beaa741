package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/voicejournal/internal/flagx"
)

// parseFlags populates selected server Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   HTTP bind address (e.g., ":3001")
//	-d string   PostgreSQL DSN
//	-s string   JWT HMAC secret key
//	-t int      simulated transcription delay, seconds
//
// The function first filters os.Args to only the flags it recognizes using
// flagx.FilterArgs, avoiding collisions with other components.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-d", "-s", "-t"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddr, "a", config.EndpointAddr, "address and port to run server")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")

	transcriptionDelay := fs.Int("t", int(config.TranscriptionDelay.Seconds()), "transcription delay (in seconds)")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.TranscriptionDelay = time.Duration(*transcriptionDelay) * time.Second
}
