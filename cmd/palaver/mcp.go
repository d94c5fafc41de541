package main

import (
	"fmt"

	"github.com/aretw0/palaver"
	"github.com/aretw0/palaver/internal/demo"
	mcpadapter "github.com/aretw0/palaver/pkg/adapters/mcp"
	"github.com/aretw0/palaver/pkg/bot"
	"github.com/spf13/cobra"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Expose the bot as an MCP server",
	Long: `Starts a Model Context Protocol server with a send_message tool.
The stdio transport is meant for MCP clients that spawn the process; sse
listens on the configured address.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := loadRuntime(cmd)
		if err != nil {
			return err
		}
		defer rt.Close()

		if transport, _ := cmd.Flags().GetString("transport"); transport != "" {
			rt.Config.MCP.Transport = transport
		}

		b, err := demo.NewBot(rt.BotOptions()...)
		if err != nil {
			return err
		}
		adapter := mcpadapter.NewAdapter(bot.WithLogger(rt.Logger))
		b.Install(adapter.Adapter)
		server := mcpadapter.NewServer(adapter, b.Handler(), palaver.Version, mcpadapter.WithLogger(rt.Logger))

		switch rt.Config.MCP.Transport {
		case "stdio":
			return server.ServeStdio()
		case "sse":
			ctx, cancel := signalContext(cmd)
			defer cancel()
			return server.ServeSSE(ctx, rt.Config.MCP.Addr, rt.Config.MCP.BaseURL)
		default:
			return fmt.Errorf("unknown transport %q", rt.Config.MCP.Transport)
		}
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
	mcpCmd.Flags().String("transport", "", "Transport (stdio or sse)")
}
