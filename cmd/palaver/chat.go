package main

import (
	"context"
	"errors"
	"os"

	"github.com/aretw0/palaver"
	"github.com/aretw0/palaver/internal/demo"
	"github.com/aretw0/palaver/internal/presentation/tui"
	"github.com/aretw0/palaver/pkg/adapters/console"
	"github.com/aretw0/palaver/pkg/bot"
	"github.com/spf13/cobra"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Chat with the bot in the terminal",
	Long: `Reads one message per line from stdin and prints the bot's replies.
Use --conversation to resume a conversation stored by a persistent driver.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := loadRuntime(cmd)
		if err != nil {
			return err
		}
		defer rt.Close()

		b, err := demo.NewBot(rt.BotOptions()...)
		if err != nil {
			return err
		}

		user, _ := cmd.Flags().GetString("user")
		conversation, _ := cmd.Flags().GetString("conversation")
		plain, _ := cmd.Flags().GetBool("plain")

		opts := []console.Option{console.WithBotOptions(bot.WithLogger(rt.Logger))}
		if conversation != "" {
			opts = append(opts, console.WithConversation(user, conversation))
		}

		interactive := tui.IsTerminal(os.Stdin) && tui.IsTerminal(os.Stdout)
		if interactive && !plain {
			tui.PrintBanner(os.Stdout, palaver.Version)
			render, err := tui.NewRenderer(tui.Width(os.Stdout))
			if err != nil {
				return err
			}
			opts = append(opts, console.WithRenderer(render))
		} else {
			opts = append(opts, console.WithPrompt(""))
		}

		adapter := console.New(os.Stdin, os.Stdout, opts...)
		b.Install(adapter.Adapter)

		ctx, cancel := signalContext(cmd)
		defer cancel()

		rt.Logger.Debug("chat started", "conversation", adapter.Reference().Conversation.ID)
		if err := adapter.Listen(ctx, b.Handler()); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(chatCmd)
	chatCmd.Flags().String("user", "user", "User id for the session")
	chatCmd.Flags().String("conversation", "", "Conversation id to resume (default: a new one)")
	chatCmd.Flags().Bool("plain", false, "Disable the banner and markdown rendering")
}
