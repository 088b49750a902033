// Package cmd parse args to configure application.
package cmd

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"telecare/metric"
	"telecare/relay"
	"telecare/telecare"
)

// Run starts the application.
func Run() {
	config, err := SetupConfig(os.Stdout, os.Args[1:])
	if err != nil {
		os.Exit(1)
	}

	t := telecare.New(config)
	if err = t.Start(); err != nil {
		os.Exit(1)
	}
}

// SetupConfig sets up and returns the configuration.
func SetupConfig(w io.Writer, args []string) (telecare.Config, error) {
	config, err := Parse(w, args)
	if err != nil {
		return config, err
	}
	if err = config.Validate(); err != nil {
		return config, err
	}
	return config, nil
}

// Parse parses the command line arguments.
func Parse(w io.Writer, args []string) (telecare.Config, error) {
	con := telecare.Config{}

	fs := flag.NewFlagSet("telecare", flag.ContinueOnError)
	fs.SetOutput(w)
	fs.IntVar(&con.Relay.Port, "port", relay.DefaultPort, "listening port")
	fs.BoolVar(&con.Relay.Debug, "debug", false, "debug mode")
	fs.StringVar(&con.Relay.KeyFile, "key", "", "key file path")
	fs.StringVar(&con.Relay.CertFile, "cert", "", "cert file path")
	fs.IntVar(&con.Metrics.Port, "metrics-port", metric.DefaultMetricsPort, "metrics listening port")
	fs.StringVar(&con.Metrics.Path, "metrics-path", metric.DefaultMetricsPath, "metrics endpoint path")
	fs.BoolVar(&con.Coordinator.SkipSelfNotifyOnJoin, "skip-self-notify-on-join",
		false, "do not tell a joiner about members already in the room")

	err := fs.Parse(args)
	if err != nil {
		return telecare.Config{}, fmt.Errorf("failed to parse args: %w", err)
	}

	if fs.NArg() != 0 {
		return telecare.Config{}, errors.New("some args are not parsed")
	}

	return con, nil
}
