package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/zull0910/tunos/internal/client"
	"github.com/zull0910/tunos/internal/config"
	"github.com/zull0910/tunos/internal/control"
	"github.com/zull0910/tunos/internal/display"
	"github.com/zull0910/tunos/internal/tui"
	"github.com/zull0910/tunos/internal/voice"

	tea "github.com/charmbracelet/bubbletea"
)

const appName = "tunos"

var (
	version = "dev"
	commit  = "none"
)

func printUsage(out *os.File) {
	fmt.Fprintf(out, "Usage: %s <control|display> [--version]\n", appName)
}

func printVersion() {
	fmt.Printf("%s %s", appName, version)
	if commit != "none" && commit != "" {
		fmt.Printf(" (%s)", commit)
	}
	fmt.Println()
}

// handleArgs returns the selected role, or "" when the process should exit.
func handleArgs(args []string) string {
	if len(args) == 0 {
		printUsage(os.Stderr)
		os.Exit(2)
	}

	for _, arg := range args {
		switch arg {
		case "control", "display":
			return arg
		case "-h", "--help", "help":
			printUsage(os.Stdout)
			return ""
		case "-v", "--version", "version":
			printVersion()
			return ""
		default:
			fmt.Fprintf(os.Stderr, "Unknown argument: %s\n", arg)
			printUsage(os.Stderr)
			os.Exit(2)
		}
	}

	return ""
}

func main() {
	role := handleArgs(os.Args[1:])
	if role == "" {
		return
	}

	cfg := config.Load()
	if path := os.Getenv("TUNOS_LOG_FILE"); path != "" {
		f, err := tea.LogToFile(path, appName)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		defer f.Close()
	} else {
		log.SetOutput(io.Discard)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	conn, err := client.Dial(ctx, cfg.RelayURL, cfg.Channel)
	cancel()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", appName, err)
		os.Exit(1)
	}
	defer conn.Close()

	var model tea.Model
	switch role {
	case "control":
		var hooks []control.Hook
		if cfg.Voice.Enabled {
			announcer := voice.NewAnnouncer(
				voice.NewSynthesizer(cfg.Voice.Provider, cfg.Voice.Command, cfg.Voice.URL),
				voice.Config{
					Preferred: cfg.Voice.Preferred,
					Lang:      cfg.Voice.Lang,
					Template:  cfg.Voice.Template,
					Timeout:   cfg.Voice.Timeout,
				},
			)
			hooks = append(hooks, announcer.Announce)
		}
		ctrl := control.New(conn, control.Options{Rooms: cfg.Rooms, Hooks: hooks})
		model = tui.NewControl(ctrl, conn.Frames())
	case "display":
		model = tui.NewDisplay(display.NewScreen(nil), conn.Frames())
	}

	if _, err := tea.NewProgram(model, tea.WithAltScreen()).Run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
