package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/bothub-it/bothub-nlp/internal/profile"
	"github.com/bothub-it/bothub-nlp/server"
	"github.com/bothub-it/bothub-nlp/store"
	"github.com/bothub-it/bothub-nlp/store/db"
)

const greetingBanner = `bothub-nlp conversational worker pool`

var rootCmd = &cobra.Command{
	Use:   "bothub",
	Short: "Session-affine conversational bot server",
	Run: func(_ *cobra.Command, _ []string) {
		instanceProfile := &profile.Profile{
			Mode:         viper.GetString("mode"),
			Addr:         viper.GetString("addr"),
			Port:         viper.GetInt("port"),
			Driver:       viper.GetString("driver"),
			DSN:          viper.GetString("dsn"),
			Data:         viper.GetString("data"),
			InstanceAddr: viper.GetString("instance-addr"),
		}
		instanceProfile.FromEnv()
		if err := instanceProfile.Validate(); err != nil {
			slog.Error("invalid configuration", slog.Any("error", err))
			os.Exit(1)
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		dbDriver, err := db.NewDBDriver(instanceProfile)
		if err != nil {
			slog.Error("failed to create origin store driver", slog.Any("error", err))
			os.Exit(1)
		}
		origin := store.New(dbDriver, instanceProfile)
		if err := origin.Migrate(ctx); err != nil {
			slog.Error("failed to migrate origin store", slog.Any("error", err))
			os.Exit(1)
		}

		s, err := server.NewServer(ctx, instanceProfile, origin)
		if err != nil {
			slog.Error("failed to create server", slog.Any("error", err))
			os.Exit(1)
		}

		fmt.Println(greetingBanner)
		go func() {
			if err := s.Start(ctx); err != nil && err != http.ErrServerClosed {
				slog.Error("failed to start server", slog.Any("error", err))
				stop()
			}
		}()

		<-ctx.Done()
		s.Shutdown(context.Background())
	},
}

func init() {
	rootCmd.PersistentFlags().String("mode", "dev", `mode of the server, can be "prod", "dev" or "demo"`)
	rootCmd.PersistentFlags().String("addr", "", "binding address for the server")
	rootCmd.PersistentFlags().Int("port", 8001, "binding port for the server")
	rootCmd.PersistentFlags().String("driver", "sqlite", `origin store driver, "sqlite" or "postgres"`)
	rootCmd.PersistentFlags().String("dsn", "", "origin store connection string")
	rootCmd.PersistentFlags().String("data", "", "data directory for the sqlite driver")
	rootCmd.PersistentFlags().String("instance-addr", "", "externally routable address of this instance")

	if err := viper.BindPFlags(rootCmd.PersistentFlags()); err != nil {
		panic(err)
	}
	viper.SetEnvPrefix("bothub")
	viper.AutomaticEnv()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
