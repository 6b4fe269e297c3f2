package cmd

import (
	"github.com/carousell/ct-go/pkg/logger/log"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/ndtrung-ct/signal-reactor/internal/app"
	"github.com/ndtrung-ct/signal-reactor/internal/pipeline"
	"github.com/ndtrung-ct/signal-reactor/internal/server"
)

var rootCmd = &cobra.Command{
	Use:           "signal-reactor",
	SilenceUsage:  true,
	SilenceErrors: true,
	Run: func(cmd *cobra.Command, args []string) {
		app.Invoke(
			server.StartServer,
			pipeline.StartPipeline,
		).Run()
	},
}

func Execute() {
	// Local development convenience; missing .env is fine.
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
