package main

import (
	"strings"

	"github.com/spf13/cobra"

	"difykit/pkg/dify"
)

func newChatCmd(c *cli) *cobra.Command {
	var (
		user           string
		conversationID string
		stream         bool
		inputs         []string
	)

	cmd := &cobra.Command{
		Use:   "chat [query]",
		Short: "Send a chat message",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := parseInputs(inputs)
			if err != nil {
				return err
			}

			reply, err := c.client.SendChatMessage(cmd.Context(), dify.ChatMessageRequest{
				Query:          strings.Join(args, " "),
				Inputs:         in,
				ResponseMode:   responseMode(stream),
				User:           user,
				ConversationID: conversationID,
			}, c.streamCallbacks())
			if err != nil {
				return err
			}
			return c.finish(reply)
		},
	}

	cmd.Flags().StringVar(&user, "user", "difyctl", "end-user identifier")
	cmd.Flags().StringVar(&conversationID, "conversation", "", "continue an existing conversation")
	cmd.Flags().BoolVar(&stream, "stream", false, "print events as they arrive")
	cmd.Flags().StringArrayVar(&inputs, "input", nil, "app variable as key=value, repeatable")
	return cmd
}

func newMessagesCmd(c *cli) *cobra.Command {
	var (
		user    string
		firstID string
		limit   int
	)

	cmd := &cobra.Command{
		Use:   "messages [conversation-id]",
		Short: "List messages of a conversation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := c.client.GetMessages(cmd.Context(), dify.MessagesQuery{
				ConversationID: args[0],
				User:           user,
				FirstID:        firstID,
				Limit:          limit,
			})
			if err != nil {
				return err
			}
			return c.printJSON(data)
		},
	}

	cmd.Flags().StringVar(&user, "user", "difyctl", "end-user identifier")
	cmd.Flags().StringVar(&firstID, "first-id", "", "page before this message id")
	cmd.Flags().IntVar(&limit, "limit", 20, "page size")
	return cmd
}

func newConversationsCmd(c *cli) *cobra.Command {
	var (
		user   string
		lastID string
		limit  int
		sortBy string
	)

	cmd := &cobra.Command{
		Use:   "conversations",
		Short: "List conversations of a user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := c.client.GetConversations(cmd.Context(), dify.ConversationsQuery{
				User:   user,
				LastID: lastID,
				Limit:  limit,
				SortBy: sortBy,
			})
			if err != nil {
				return err
			}
			return c.printJSON(data)
		},
	}

	cmd.Flags().StringVar(&user, "user", "difyctl", "end-user identifier")
	cmd.Flags().StringVar(&lastID, "last-id", "", "page after this conversation id")
	cmd.Flags().IntVar(&limit, "limit", 20, "page size")
	cmd.Flags().StringVar(&sortBy, "sort-by", "-updated_at", "sort field, prefix - for descending")
	return cmd
}
