package cli

import (
	"github.com/spf13/cobra"
	"github.com/tfkr-ae/upiscan/domain"
)

type appView struct {
	ID       string `yaml:"id"`
	Name     string `yaml:"name"`
	Scheme   string `yaml:"scheme"`
	Package  string `yaml:"package"`
	Icon     string `yaml:"icon,omitempty"`
	Fallback string `yaml:"fallback_icon,omitempty"`
}

func toAppViews(apps []domain.PaymentApplication) []appView {
	views := make([]appView, len(apps))
	for i, app := range apps {
		views[i] = appView{ID: app.ID, Name: app.DisplayName, Scheme: app.URLScheme, Package: app.PackageID}
	}
	return views
}

func newAppsCmd(opts *rootOptions) *cobra.Command {
	var installed bool

	cmd := &cobra.Command{
		Use:   "apps",
		Short: "List supported payment apps",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			scanner, err := opts.openScanner(cmd)
			if err != nil {
				return err
			}
			defer scanner.Close()

			apps := scanner.Catalog.Applications()
			if installed {
				apps = scanner.Installed()
			}
			return writeYAML(cmd.OutOrStdout(), toAppViews(apps))
		},
	}

	cmd.Flags().BoolVar(&installed, "installed", false, "Only list apps with a handler on this machine")
	return cmd
}

func newIconsCmd(opts *rootOptions) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "icons",
		Short: "Resolve app icons from the lookup endpoint",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			scanner, err := opts.openScanner(cmd)
			if err != nil {
				return err
			}
			defer scanner.Close()

			apps := scanner.Installed()
			if all {
				apps = scanner.Catalog.Applications()
			}

			resolver := scanner.Icons()
			resolver.Preload(apps)
			resolver.Wait()

			views := toAppViews(apps)
			for i, app := range apps {
				if icon, ok := resolver.Icon(app.PackageID); ok {
					views[i].Icon = icon
				} else {
					views[i].Fallback = app.FallbackIcon
				}
			}
			return writeYAML(cmd.OutOrStdout(), views)
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "Resolve icons for every app in the catalog")
	return cmd
}
