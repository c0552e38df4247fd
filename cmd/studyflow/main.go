// Command studyflow is a small CLI over the state layer. It drives the same
// services an embedding frontend would: identity, the job and chat stores,
// the credit ledger and the study assistant.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"syscall"

	"golang.org/x/term"

	"github.com/studyflow-app/studyflow-core/internal/app"
	"github.com/studyflow-app/studyflow-core/internal/app/domain/chat"
	"github.com/studyflow-app/studyflow-core/internal/config"
	"github.com/studyflow-app/studyflow-core/pkg/logger"
)

func usage() {
	fmt.Fprintln(os.Stderr, `usage: studyflow [flags] <command> [args]

commands:
  signup <email>         register a new account
  signin <email>         sign in to an existing account
  signout                end the current session
  whoami                 show the active user
  credits                show balance and recent ledger entries
  jobs                   list jobs
  job <tool>             create a job and simulate it to completion
  chat <message>         send a message to the study assistant
  history                show the conversation
  clear                  clear the conversation

flags:`)
	flag.PrintDefaults()
}

func main() {
	var (
		envFile  = flag.String("env", ".env", "Path to .env file (optional)")
		remember = flag.Bool("remember", false, "Keep the session across restarts")
	)
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() == 0 {
		usage()
		os.Exit(2)
	}

	cfg, err := config.Load(*envFile)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	appLog := logger.NewDefault("studyflow")

	application, err := app.New(cfg, app.Stores{}, appLog)
	if err != nil {
		log.Fatalf("init application: %v", err)
	}

	ctx := context.Background()
	if err := run(ctx, application, *remember, flag.Args()); err != nil {
		log.Fatalf("%v", err)
	}
}

func run(ctx context.Context, a *app.Application, remember bool, args []string) error {
	cmd, rest := args[0], args[1:]

	switch cmd {
	case "signup", "signin":
		if len(rest) != 1 {
			return fmt.Errorf("%s requires an email", cmd)
		}
		password, err := readPassword()
		if err != nil {
			return err
		}
		var u any
		if cmd == "signup" {
			u, err = a.Identity.SignUp(ctx, rest[0], password, remember)
		} else {
			u, err = a.Identity.SignIn(ctx, rest[0], password, remember)
		}
		if err != nil {
			return err
		}
		fmt.Printf("%+v\n", u)
		return nil

	case "signout":
		return a.Identity.SignOut(ctx)

	case "whoami":
		u, err := a.Identity.Resolve(ctx)
		if err != nil {
			return err
		}
		if u == nil {
			fmt.Println("not signed in")
			return nil
		}
		fmt.Printf("%s <%s> plan=%s credits=%.1f/%.1f\n", u.Name, u.Email, u.Plan, u.Credits, u.MaxCredits)
		return nil

	case "credits":
		u := a.Identity.ResolveSync()
		if u == nil {
			fmt.Println("not signed in")
			return nil
		}
		fmt.Printf("balance: %.1f/%.1f\n", u.Credits, u.MaxCredits)
		txs, err := a.Identity.Transactions(ctx, 10)
		if err != nil {
			return err
		}
		for _, tx := range txs {
			fmt.Printf("  %s  %+.1f  ->%.1f  %s\n", tx.CreatedAt.Format("2006-01-02 15:04"), tx.Amount, tx.BalanceAfter, tx.Reference)
		}
		return nil

	case "jobs":
		jobs, err := a.Jobs.Jobs(ctx)
		if err != nil {
			return err
		}
		for _, j := range jobs {
			fmt.Printf("%s  %-12s %-10s %3d%%  %s\n", j.ID[:8], j.ToolName, j.Status, j.Progress, j.ResultURL)
		}
		return nil

	case "job":
		if len(rest) != 1 {
			return fmt.Errorf("job requires a tool name")
		}
		j, err := a.Jobs.AddJob(ctx, rest[0])
		if err != nil {
			return err
		}
		fmt.Printf("job %s queued\n", j.ID)
		if err := a.Simulator.Run(ctx, j.ID); err != nil {
			return err
		}
		fmt.Println("done")
		return nil

	case "chat":
		if len(rest) == 0 {
			return fmt.Errorf("chat requires a message")
		}
		reply, err := chatTurn(ctx, a, strings.Join(rest, " "))
		if err != nil {
			return err
		}
		fmt.Println(reply)
		return nil

	case "history":
		history, err := a.Chat.Messages(ctx)
		if err != nil {
			return err
		}
		for _, m := range history {
			fmt.Printf("[%s] %s\n", m.Role, m.Text)
		}
		return nil

	case "clear":
		return a.Chat.ClearHistory(ctx)

	default:
		usage()
		return fmt.Errorf("unknown command %q", cmd)
	}
}

// chatTurn stores one user message and the model's reply. The history sent
// to the assistant is read before the new message is stored; Assistant.Chat
// appends the message itself, so storing first would send it twice.
func chatTurn(ctx context.Context, a *app.Application, text string) (string, error) {
	history, err := a.Chat.Messages(ctx)
	if err != nil {
		return "", err
	}
	if _, err := a.Chat.AddMessage(ctx, chat.RoleUser, text); err != nil {
		return "", err
	}
	reply, err := a.Assistant.Chat(ctx, history, text)
	if err != nil {
		return "", err
	}
	if _, err := a.Chat.AddMessage(ctx, chat.RoleModel, reply); err != nil {
		return "", err
	}
	return reply, nil
}

func readPassword() (string, error) {
	fmt.Fprint(os.Stderr, "password: ")
	if term.IsTerminal(int(syscall.Stdin)) {
		raw, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", err
		}
		return string(raw), nil
	}
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}
