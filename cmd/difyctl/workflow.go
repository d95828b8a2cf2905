package main

import (
	"github.com/spf13/cobra"

	"difykit/pkg/dify"
)

func newWorkflowCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "workflow",
		Short: "Run and inspect workflow apps",
	}

	var (
		user   string
		stream bool
		inputs []string
	)
	run := &cobra.Command{
		Use:   "run",
		Short: "Run the workflow",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := parseInputs(inputs)
			if err != nil {
				return err
			}

			reply, err := c.client.RunWorkflow(cmd.Context(), dify.WorkflowRunRequest{
				Inputs:       in,
				ResponseMode: responseMode(stream),
				User:         user,
			}, c.streamCallbacks())
			if err != nil {
				return err
			}
			return c.finish(reply)
		},
	}
	run.Flags().StringVar(&user, "user", "difyctl", "end-user identifier")
	run.Flags().BoolVar(&stream, "stream", false, "print events as they arrive")
	run.Flags().StringArrayVar(&inputs, "input", nil, "workflow input as key=value, repeatable")

	show := &cobra.Command{
		Use:   "show [workflow-run-id]",
		Short: "Show a workflow run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := c.client.GetWorkflowRun(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return c.printJSON(data)
		},
	}

	cmd.AddCommand(run, show)
	return cmd
}
