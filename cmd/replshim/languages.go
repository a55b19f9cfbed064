package main

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func newLanguagesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "languages",
		Short: "List languages and installed interpreter versions",
		Args:  cobra.NoArgs,
		RunE:  runLanguages,
	}
}

func runLanguages(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tLANGUAGE\tINSTALLED\tVERSION")
	for _, info := range describeLanguages(cmd.Context(), a) {
		version := info.Version
		if version == "" {
			version = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%t\t%s\n", info.Name, info.Display, info.Installed, version)
	}
	return tw.Flush()
}

// describeLanguages probes every registered language concurrently.
func describeLanguages(ctx context.Context, a *app) []languageInfo {
	if ctx == nil {
		ctx = context.Background()
	}
	names := a.registry.List()
	infos := make([]languageInfo, len(names))

	var g errgroup.Group
	for i, name := range names {
		lang, _ := a.registry.Get(name)
		infos[i] = languageInfo{Name: name, Display: lang.Config().DisplayName}
		g.Go(func() error {
			infos[i].Installed = a.session.CheckInstalled(ctx, name)
			if infos[i].Installed {
				infos[i].Version, _ = a.session.InstalledVersion(ctx, name)
			}
			return nil
		})
	}
	_ = g.Wait()
	return infos
}
