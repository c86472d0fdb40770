package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/qbradley/hyperlight/call"
	"github.com/qbradley/hyperlight/sandbox"
)

var replCmd = &cobra.Command{
	Use:   "repl [guest]",
	Short: "Interactive calls with persistent guest state",
	Long: `Start an interactive session against a guest. Calls run inside one
call context, so each call sees the effects of the ones before it.

Call syntax:

  Echo str:hello -> str
  AddToTotal u64:5 -> u64
  PokeByte u64:4096 u32:255

Arguments are type:value literals; '-> type' declares the return type
and defaults to void.

Session commands:
  .reset   discard accumulated guest state
  .keep    make accumulated guest state the new baseline

Type 'exit' or 'quit' to end the session, or press Ctrl+D.`,
	Args: cobra.ExactArgs(1),
	Run:  runRepl,
}

func init() {
	replCmd.Flags().String("history", "", "History file path (default: ~/.hl_history)")
	rootCmd.AddCommand(replCmd)
}

func runRepl(cmd *cobra.Command, args []string) {
	historyFile, _ := cmd.Flags().GetString("history")
	if historyFile == "" {
		home, _ := os.UserHomeDir()
		historyFile = filepath.Join(home, ".hl_history")
	}

	sb, err := startSandbox(cmd.Context(), cmd, args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer sb.Close()

	cc, err := sb.NewContext()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:            ">>> ",
		HistoryFile:       historyFile,
		HistoryLimit:      1000,
		InterruptPrompt:   "^C",
		EOFPrompt:         "exit",
		HistorySearchFold: true,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing readline: %v\n", err)
		os.Exit(1)
	}
	defer rl.Close()

	fmt.Fprintf(os.Stderr, "hl repl: guest %s (state persists across calls; 'exit' to quit)\n", sb.Guest().Name())

loop:
	for {
		line, err := rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				continue
			}
			if err == io.EOF {
				fmt.Println()
				break
			}
			fmt.Fprintf(os.Stderr, "Error reading input: %v\n", err)
			break
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		switch line {
		case "exit", "quit":
			break loop
		case ".reset":
			if _, err := cc.Finish(); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				break loop
			}
			if cc, err = sb.NewContext(); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				break loop
			}
			fmt.Fprintln(os.Stderr, "state reset to baseline")
			continue
		case ".keep":
			if _, err := cc.FinishNoReset(); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				break loop
			}
			if cc, err = sb.NewContext(); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				break loop
			}
			fmt.Fprintln(os.Stderr, "state kept as new baseline")
			continue
		}

		out, err := evalLine(cmd.Context(), cc, line)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			continue
		}
		if out != "" {
			fmt.Println(out)
		}
	}

	cc.Finish()
}

// evalLine parses one REPL line ("Func arg... -> type") and runs the
// call in the context.
func evalLine(ctx context.Context, cc *sandbox.CallContext, line string) (string, error) {
	expr, retName, _ := strings.Cut(line, "->")
	ret, err := parseType(retName)
	if err != nil {
		return "", err
	}

	fields := strings.Fields(expr)
	if len(fields) == 0 {
		return "", fmt.Errorf("missing function name")
	}
	params, err := parseArgs(fields[1:])
	if err != nil {
		return "", err
	}

	v, err := cc.Call(ctx, fields[0], ret, params...)
	if err != nil {
		return "", err
	}
	if v.Tag == call.TypeVoid {
		return "", nil
	}
	return v.String(), nil
}
