package main

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

func newUploadCmd(c *cli) *cobra.Command {
	var user string

	cmd := &cobra.Command{
		Use:   "upload [file]",
		Short: "Upload a file for use in chat messages",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			data, err := c.client.UploadFile(cmd.Context(), filepath.Base(args[0]), f, user)
			if err != nil {
				return err
			}
			return c.printJSON(data)
		},
	}

	cmd.Flags().StringVar(&user, "user", "difyctl", "end-user identifier")
	return cmd
}

func newInfoCmd(c *cli) *cobra.Command {
	var (
		parameters bool
		site       bool
	)

	cmd := &cobra.Command{
		Use:   "info",
		Short: "Show app info",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			get := c.client.GetAppInfo
			switch {
			case parameters:
				get = c.client.GetAppParameters
			case site:
				get = c.client.GetAppSite
			}

			data, err := get(cmd.Context())
			if err != nil {
				return err
			}
			return c.printJSON(data)
		},
	}

	cmd.Flags().BoolVar(&parameters, "parameters", false, "show input parameters instead")
	cmd.Flags().BoolVar(&site, "site", false, "show WebApp settings instead")
	cmd.MarkFlagsMutuallyExclusive("parameters", "site")
	return cmd
}
