package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/influxdata/sitefeatures"
	"github.com/influxdata/sitefeatures/kit/cli"
	"github.com/influxdata/sitefeatures/registry"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

type featuresCmd struct {
	host string
	out  io.Writer

	newService func(host string) sitefeatures.FeatureService
}

func newFeaturesCmd(v *viper.Viper, out io.Writer) (*cobra.Command, error) {
	c := &featuresCmd{
		out: out,
		newService: func(host string) sitefeatures.FeatureService {
			return registry.NewClient(host)
		},
	}

	cmd := &cobra.Command{
		Use:   "features",
		Short: "List and toggle the features of a running server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Usage()
		},
	}

	opts := []cli.Opt{
		{
			DestP:      &c.host,
			Flag:       "host",
			Default:    "http://localhost:8080",
			Desc:       "HTTP address of the featured server",
			Persistent: true,
		},
	}
	if err := cli.BindOptions(v, cmd, opts); err != nil {
		return nil, err
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List registered features",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return c.list(cmd.Context())
			},
		},
		&cobra.Command{
			Use:   "enable <id>",
			Short: "Enable a feature, running its setup",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return c.setEnabled(cmd.Context(), args[0], true)
			},
		},
		&cobra.Command{
			Use:   "disable <id>",
			Short: "Disable a feature, running its shutdown",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return c.setEnabled(cmd.Context(), args[0], false)
			},
		},
	)
	return cmd, nil
}

func (c *featuresCmd) list(ctx context.Context) error {
	infos, err := c.newService(c.host).FindFeatures(ctx)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(c.out, 0, 8, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tName\tSubpath\tEnabled")
	for _, f := range infos {
		fmt.Fprintf(w, "%s\t%s\t%s\t%t\n", f.ID, f.Name, f.Subpath, f.Enabled)
	}
	return w.Flush()
}

func (c *featuresCmd) setEnabled(ctx context.Context, id string, enabled bool) error {
	svc := c.newService(c.host)
	if err := svc.SetEnabled(ctx, id, enabled); err != nil {
		return err
	}

	f, err := svc.FindFeature(ctx, id)
	if err != nil {
		return err
	}
	state := "disabled"
	if f.Enabled {
		state = "enabled"
	}
	_, err = fmt.Fprintf(c.out, "%s is %s\n", f.ID, state)
	return err
}
