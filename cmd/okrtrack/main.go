package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/go-faster/errors"
)

const appName = "okrtrack"

func main() {
	flag.String("workspace", "", "Path to workspace root (env OKRTRACK_WORKSPACE)")
	flag.String("org", "", "Organization id (env OKRTRACK_ORG)")
	flag.String("as", "", "Acting user id from identities.yml (env OKRTRACK_AS)")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "%s: OKR tracking for product organizations\n\n", appName)
		fmt.Fprintf(os.Stderr, "Usage:\n  %s [command] [flags]\n\n", appName)
		fmt.Fprintln(os.Stderr, "Commands:")
		fmt.Fprintln(os.Stderr, "  init    Initialize a new workspace")
		fmt.Fprintln(os.Stderr, "  import  Load seed YAML into the database")
		fmt.Fprintln(os.Stderr, "  okr     Create, check in, close and inspect OKRs")
		fmt.Fprintln(os.Stderr, "  kr      Update key results")
		fmt.Fprintln(os.Stderr, "  team    Manage teams")
		fmt.Fprintln(os.Stderr, "  due     List check-ins that are due")
		fmt.Fprintln(os.Stderr, "  export  Write CSV, tables, narratives, decks and workbooks")
		fmt.Fprintln(os.Stderr, "  remind  Install a daily check-in reminder (macOS)")
		fmt.Fprintln(os.Stderr, "  audit   Show recent audit events")
		fmt.Fprintln(os.Stderr, "  help    Show this help")
		fmt.Fprintln(os.Stderr, "\nFlags:")
		flag.PrintDefaults()
	}

	globals, remaining, err := extractGlobalFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	args := remaining
	if len(args) == 0 || args[0] == "help" || args[0] == "-h" || args[0] == "--help" {
		flag.Usage()
		return
	}

	var run func([]string, globalFlags) error
	switch args[0] {
	case "init":
		run = runInit
	case "import":
		run = runImport
	case "okr":
		run = runOKR
	case "kr":
		run = runKR
	case "team":
		run = runTeam
	case "due":
		run = runDue
	case "export":
		run = runExport
	case "remind":
		run = runRemind
	case "audit":
		run = runAudit
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", args[0])
		flag.Usage()
		os.Exit(1)
	}
	if err := run(args[1:], globals); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// globalFlags are accepted anywhere on the command line.
type globalFlags struct {
	Workspace string
	Org       string
	As        string
}

func extractGlobalFlags(args []string) (globalFlags, []string, error) {
	var g globalFlags
	targets := map[string]*string{
		"workspace": &g.Workspace,
		"org":       &g.Org,
		"as":        &g.As,
	}
	remaining := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		arg := args[i]
		matched := false
		for name, target := range targets {
			flagName := "--" + name
			if arg == flagName {
				if i+1 >= len(args) {
					return g, nil, errors.Errorf("%s requires a value", flagName)
				}
				*target = args[i+1]
				i++
				matched = true
				break
			}
			if strings.HasPrefix(arg, flagName+"=") {
				*target = strings.TrimPrefix(arg, flagName+"=")
				matched = true
				break
			}
		}
		if !matched {
			remaining = append(remaining, arg)
		}
	}
	return g, remaining, nil
}

func missingSubcommand(command string) error {
	return errors.Errorf("%s %s: missing subcommand", appName, command)
}

func unknownSubcommand(command, sub string) error {
	return errors.Errorf("%s %s: unknown subcommand %q", appName, command, sub)
}

func isHelp(args []string) bool {
	return len(args) == 0 || args[0] == "help" || args[0] == "-h" || args[0] == "--help"
}
