package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/kenneth/pq-encryption-service/internal/keymanager"
)

const version = "1.0.0"

var (
	storagePath  string
	preset       string
	expiryMonths int
	gracePeriod  time.Duration
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "keyctl",
		Short: "Administer the PQ encryption service key store",
	}

	rootCmd.PersistentFlags().StringVar(&storagePath, "storage", envOrDefault("KEYCTL_STORAGE_PATH", "./keys"), "Key storage directory")
	rootCmd.PersistentFlags().StringVar(&preset, "preset", envOrDefault("KEYCTL_PRESET", "NORMAL"), "Key preset: NORMAL or HIGH_SECURITY")
	rootCmd.PersistentFlags().IntVar(&expiryMonths, "expiry-months", 6, "Key expiry in months (1-12)")
	rootCmd.PersistentFlags().DurationVar(&gracePeriod, "grace-period", 5*time.Minute, "Rotation grace period")

	rootCmd.AddCommand(statusCmd())
	rootCmd.AddCommand(generateCmd())
	rootCmd.AddCommand(rotateCmd())
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// newManager builds a manager against the configured storage directory.
// The CLI operates on the store directly; do not run it against a
// directory a live server is using.
func newManager(autoGenerate bool) (*keymanager.Manager, error) {
	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)

	return keymanager.NewManager(keymanager.Config{
		Preset:        preset,
		StoragePath:   storagePath,
		ExpiryMonths:  expiryMonths,
		GracePeriod:   gracePeriod,
		AutoGenerate:  autoGenerate,
		BackupEnabled: true,
	}, logger)
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show key store status",
		RunE: func(cmd *cobra.Command, args []string) error {
			manager, err := newManager(false)
			if err != nil {
				return err
			}
			defer manager.SecurelyClearKeys()

			if err := manager.Initialize(context.Background()); err != nil {
				return err
			}

			out, err := json.MarshalIndent(manager.Status(), "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			return nil
		},
	}
}

func generateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "generate",
		Short: "Generate an initial key pair if none exists",
		RunE: func(cmd *cobra.Command, args []string) error {
			manager, err := newManager(true)
			if err != nil {
				return err
			}
			defer manager.SecurelyClearKeys()

			if err := manager.Initialize(context.Background()); err != nil {
				return err
			}

			info, err := manager.CurrentPublicKey()
			if err != nil {
				return err
			}
			fmt.Printf("key pair ready: preset=%s version=%d expiresAt=%s\n", info.Preset, info.Version, info.ExpiresAt.Format(time.RFC3339))
			return nil
		},
	}
}

func rotateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rotate",
		Short: "Rotate to a fresh key pair",
		RunE: func(cmd *cobra.Command, args []string) error {
			manager, err := newManager(false)
			if err != nil {
				return err
			}
			defer manager.SecurelyClearKeys()

			if err := manager.Initialize(context.Background()); err != nil {
				return err
			}

			kp, err := manager.RotateKeys(context.Background(), keymanager.ReasonManualRotation)
			if err != nil {
				return err
			}
			fmt.Printf("rotated to version %d (expires %s)\n", kp.Metadata.Version, kp.Metadata.ExpiresAt.Format(time.RFC3339))
			return nil
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("keyctl version %s\n", version)
		},
	}
}
