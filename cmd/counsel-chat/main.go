// Command counsel-chat is an interactive terminal client for the counseling
// agent. It keeps one conversation going over stdin/stdout and persists a
// session summary whenever the conversation reaches closure.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/theimaginaryfoundation/socratic-counsel/counsel"
	"github.com/theimaginaryfoundation/socratic-counsel/counsel/provider"
	"github.com/theimaginaryfoundation/socratic-counsel/counsel/store"
)

func main() {
	cfg, err := parseFlags(flag.CommandLine, os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(2)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(2)
	}

	appCfg := counsel.DefaultConfig()
	if cfg.ConfigPath != "" {
		appCfg, err = counsel.LoadConfig(cfg.ConfigPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, err.Error())
			os.Exit(2)
		}
	}
	if err := appCfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(2)
	}

	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}

	log, err := counsel.NewLogger(cfg.LogMode)
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(2)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var summaries counsel.SummaryStore
	if appCfg.Memory.UseSummaryMemory {
		db, err := store.Open(appCfg.Memory.Driver, appCfg.Memory.DSN, appCfg.Memory.MaxOpenConns, appCfg.Memory.MaxIdleConns, log)
		if err != nil {
			fmt.Fprintln(os.Stderr, err.Error())
			os.Exit(2)
		}
		defer db.Close()
		if err := db.Init(ctx); err != nil {
			fmt.Fprintln(os.Stderr, err.Error())
			os.Exit(2)
		}
		summaries = db
	}

	client := provider.NewClient(appCfg.Generation, apiKey)
	summarizer := provider.NewSessionSummarizer(client, "")
	agent := counsel.NewAgent(appCfg, client, summaries, summarizer, log)
	agent.SetUserID(cfg.UserID)

	if err := runREPL(ctx, agent, cfg, os.Stdin, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}

// runREPL reads user lines until EOF, "exit" or context cancellation. The full
// conversation history is resent every turn; the agent tracks the delta.
func runREPL(ctx context.Context, agent *counsel.Agent, cfg Config, in io.Reader, out io.Writer) error {
	fmt.Fprintf(out, "諮商對話開始（session %s），輸入 exit 結束。\n", agent.SessionID())

	var history []counsel.Message
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for {
		select {
		case <-ctx.Done():
			fmt.Fprintln(out)
			return nil
		default:
		}

		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil && !errors.Is(err, ctx.Err()) {
				return err
			}
			fmt.Fprintln(out)
			return nil
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			return nil
		}

		history = append(history, counsel.Message{Role: counsel.RoleUser, Content: line})
		sessionID := agent.SessionID()

		reply, err := agent.Process(ctx, history)
		if err != nil {
			history = history[:len(history)-1]
			fmt.Fprintf(out, "[error] %v\n", err)
			continue
		}
		history = append(history, counsel.Message{Role: counsel.RoleAssistant, Content: reply})
		fmt.Fprintln(out, reply)

		if cfg.ShowAnalysis {
			a := agent.LastAnalysis()
			fmt.Fprintf(out, "[analysis] emotion=%s belief=%s stage=%s\n", a.Emotion, a.Belief, a.Stage)
		}
		if merr := agent.LastMemoryError(); merr != nil {
			fmt.Fprintf(out, "[warn] %v\n", merr)
		}

		// A new session ID means the previous conversation closed; start
		// the next one with empty history.
		if agent.SessionID() != sessionID {
			fmt.Fprintf(out, "本次會談已結案，新的 session %s 開始。\n", agent.SessionID())
			history = nil
		}
	}
}

func parseFlags(fs *flag.FlagSet, args []string) (Config, error) {
	cfg := defaultConfig()
	fs.SetOutput(os.Stderr)
	fs.StringVar(&cfg.ConfigPath, "config", "", "Optional YAML config file path")
	fs.StringVar(&cfg.UserID, "user", cfg.UserID, "User identifier for persisted session summaries")
	fs.StringVar(&cfg.APIKey, "api-key", "", "API key (default: OPENAI_API_KEY env var; may be empty for local endpoints)")
	fs.BoolVar(&cfg.ShowAnalysis, "show-analysis", false, "Print extracted analysis markers after each reply")
	fs.StringVar(&cfg.LogMode, "log-mode", cfg.LogMode, "Logger mode: prod or dev")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
