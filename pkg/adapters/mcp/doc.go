// Package mcp exposes a bot to Model Context Protocol clients through a
// single send_message tool. Each call runs one turn and returns its replies.
package mcp
