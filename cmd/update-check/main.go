package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"

	"github.com/go-update-relay/update-relay/internal/platform"
	"github.com/go-update-relay/update-relay/pkg/client"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var version = "dev"

const defaultRelayURL = "https://update.electronjs.org"

func defaultPlatform() string {
	if a, ok := platform.FromGOOS(runtime.GOOS, runtime.GOARCH); ok {
		return a.String()
	}
	return ""
}

func main() {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})
	cmd := &cobra.Command{
		Use:     "update-check <account>/<repository> <version>",
		Short:   "Ask an update relay whether a newer release exists",
		Version: version,
		Args:    cobra.ExactArgs(2),
		Run: func(cmd *cobra.Command, args []string) {
			if err := run(log, cmd, args); err != nil {
				log.Errorf("ERROR: %v", err)
				os.Exit(1)
			}
		},
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
	}

	cmd.PersistentFlags().StringP("relay-url", "r", defaultRelayURL, "the update relay URL")
	cmd.PersistentFlags().StringP("platform", "p", defaultPlatform(), "the platform tag, e.g. darwin-arm64 or win32-x64")
	cmd.PersistentFlags().Bool("releases", false, "print the RELEASES manifest instead of checking for an update")
	cmd.PersistentFlags().SortFlags = false

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func must[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}
	return v
}

func splitRepository(s string) (string, string, error) {
	account, repository, ok := strings.Cut(s, "/")
	if !ok || account == "" || repository == "" || strings.Contains(repository, "/") {
		return "", "", fmt.Errorf("invalid repository %q, expected <account>/<repository>", s)
	}
	return account, repository, nil
}

func run(log *logrus.Logger, cmd *cobra.Command, args []string) error {
	account, repository, err := splitRepository(args[0])
	if err != nil {
		return err
	}
	currentVersion := args[1]
	relayURL := must(cmd.PersistentFlags().GetString("relay-url"))
	platformTag := must(cmd.PersistentFlags().GetString("platform"))
	if platformTag == "" {
		return errors.New("no platform provided and the current one is not supported")
	}
	if _, ok := platform.ParseRouteToken(platformTag); !ok {
		return fmt.Errorf("unsupported platform %q", platformTag)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	c := client.New(relayURL)
	if must(cmd.PersistentFlags().GetBool("releases")) {
		manifest, err := c.GetReleasesManifest(ctx, account, repository, platformTag, currentVersion)
		if err != nil {
			return err
		}
		fmt.Println(manifest)
		return nil
	}

	log.Infof("checking %s/%s@%s (%s) against %s", account, repository, currentVersion, platformTag, relayURL)
	update, err := c.CheckForUpdate(ctx, account, repository, platformTag, currentVersion)
	if err != nil {
		return err
	}
	if update == nil {
		log.Info("up to date")
		return nil
	}
	log.Infof("update available: %s", update)
	if update.Notes != "" {
		fmt.Println(update.Notes)
	}
	return nil
}
