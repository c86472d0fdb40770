package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/qbradley/hyperlight/call"
)

var callCmd = &cobra.Command{
	Use:   "call [guest] [function] [args...]",
	Short: "Call one guest function (state resets afterward)",
	Long: `Call a single function inside a guest. The sandbox restores its
baseline state after the call, so nothing carries over to the next one.

Arguments are typed literals in type:value form, and --ret declares the
expected return type:

  hl call demo Echo str:hello --ret str
  hl call demo AddViaHost i64:19 i64:23 --ret i64
  hl call calc.wasm Store u64:4096 bytes:deadbeef`,
	Args: cobra.MinimumNArgs(2),
	Run:  runCall,
}

func init() {
	callCmd.Flags().String("ret", "void", "Expected return type")
	rootCmd.AddCommand(callCmd)
}

func runCall(cmd *cobra.Command, args []string) {
	retName, _ := cmd.Flags().GetString("ret")
	ret, err := parseType(retName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	params, err := parseArgs(args[2:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	sb, err := startSandbox(cmd.Context(), cmd, args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer sb.Close()

	v, err := sb.Call(cmd.Context(), args[1], ret, params...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if v.Tag != call.TypeVoid {
		fmt.Println(v.String())
	}
}
