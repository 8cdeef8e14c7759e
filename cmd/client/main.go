// cmd/client is the CLI entry-point built with Cobra.
//
// Usage:
//
//	kvcli put mykey "hello world"   --server http://localhost:8080
//	kvcli get mykey                 --server http://localhost:8080
//	kvcli delete mykey               --server http://localhost:8080
//	kvcli state                      --server http://localhost:8080
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"mini-dynamo/internal/client"
)

var (
	serverAddr string
	timeout    time.Duration
)

func main() {
	root := &cobra.Command{
		Use:   "kvcli",
		Short: "CLI client for the mini-dynamo key-value store",
	}

	root.PersistentFlags().StringVarP(&serverAddr, "server", "s",
		"http://localhost:8080", "node address to coordinate through")
	root.PersistentFlags().DurationVar(&timeout, "timeout", 10*time.Second,
		"HTTP request timeout")

	root.AddCommand(putCmd(), getCmd(), deleteCmd(), stateCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// ─── put ────────────────────────────────────────────────────────────────────

func putCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "put <key> <value>",
		Short: "Store a key-value pair",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := client.New(serverAddr, timeout)
			resp, err := c.Put(context.Background(), args[0], args[1])
			if err != nil {
				return err
			}
			prettyPrint(resp)
			return nil
		},
	}
}

// ─── get ────────────────────────────────────────────────────────────────────

func getCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Retrieve a value by key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := client.New(serverAddr, timeout)
			resp, err := c.Get(context.Background(), args[0])
			if err == client.ErrNotFound {
				fmt.Printf("key %q not found\n", args[0])
				return nil
			}
			if err != nil {
				return err
			}
			prettyPrint(resp)
			return nil
		},
	}
}

// ─── delete ─────────────────────────────────────────────────────────────────

func deleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <key>",
		Short: "Delete a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := client.New(serverAddr, timeout)
			resp, err := c.Delete(context.Background(), args[0])
			if err != nil {
				return err
			}
			prettyPrint(resp)
			return nil
		},
	}
}

// ─── state ──────────────────────────────────────────────────────────────────

func stateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "state",
		Short: "Show ring membership and peer liveness for the contacted node",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := client.New(serverAddr, timeout)
			resp, err := c.GetRaw(context.Background(), "/debug/state")
			if err != nil {
				return err
			}
			fmt.Println(resp)
			return nil
		},
	}
}

// ─── helpers ────────────────────────────────────────────────────────────────

func prettyPrint(v any) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Println(v)
		return
	}
	fmt.Println(string(data))
}
