package main

import (
	"fmt"
	"os"

	"github.com/influxdata/sitefeatures/cmd/featured/launcher"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func main() {
	v := viper.New()

	rootCmd, err := newRootCmd(v)
	if err != nil {
		handleErr(err)
	}

	if err := rootCmd.Execute(); err != nil {
		handleErr(err)
	}
}

func newRootCmd(v *viper.Viper) (*cobra.Command, error) {
	runCmd, err := launcher.NewCommand(v)
	if err != nil {
		return nil, err
	}

	rootCmd := &cobra.Command{
		Use:   "featured",
		Short: "Serve and toggle runtime features",
		Args:  cobra.NoArgs,
		RunE:  runCmd.RunE,
	}
	rootCmd.Flags().AddFlagSet(runCmd.Flags())

	featuresCmd, err := newFeaturesCmd(v, os.Stdout)
	if err != nil {
		return nil, err
	}
	rootCmd.AddCommand(runCmd, featuresCmd)
	return rootCmd, nil
}

func handleErr(err error) {
	_, _ = fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
