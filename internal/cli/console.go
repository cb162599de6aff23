package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/chzyer/readline"
	"github.com/google/shlex"
)

// Console is the interactive admin shell.
type Console struct {
	client *Client
	out    io.Writer
}

// NewConsole creates a console over client.
func NewConsole(client *Client) *Console {
	return &Console{client: client, out: os.Stdout}
}

// Run reads and executes commands until EOF or "exit".
func (c *Console) Run() error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "arena> ",
		HistoryFile:     historyFile(),
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
		AutoComplete:    completer(),
	})
	if err != nil {
		return err
	}
	defer rl.Close()

	for {
		line, err := rl.Readline()
		if err == readline.ErrInterrupt {
			continue
		}
		if err != nil {
			return nil
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		args, err := shlex.Split(line)
		if err != nil {
			fmt.Fprintf(c.out, "parse error: %v\n", err)
			continue
		}
		if args[0] == "exit" || args[0] == "quit" {
			return nil
		}
		if err := c.dispatch(args); err != nil {
			fmt.Fprintf(c.out, "error: %v\n", err)
		}
	}
}

func (c *Console) dispatch(args []string) error {
	switch args[0] {
	case "help":
		return c.help()
	case "login":
		return c.login(args[1:])
	case "tasks":
		return c.tasks(args[1:])
	case "task":
		return c.task(args[1:])
	case "matches":
		return c.matches(args[1:])
	case "generate":
		return c.generate(args[1:])
	case "leaderboard":
		return c.leaderboard(args[1:])
	case "submissions":
		return c.submissions(args[1:])
	default:
		return fmt.Errorf("unknown command %q, try help", args[0])
	}
}

func (c *Console) help() error {
	fmt.Fprint(c.out, `commands:
  login <email> <password>           authenticate against the API
  tasks <subject> [limit]            list tasks for a subject
  task <id>                          show one task with its cases
  task delete <id>                   delete a task
  task export <id>                   export a task pack
  task import <key>                  import a task pack
  matches [subject]                  list rooms with a free seat
  generate <subject> [theme] [diff]  generate and store a task
  leaderboard [limit]                show the rating ranking
  submissions [limit]                show your recent submissions
  exit                               leave the console
`)
	return nil
}

func (c *Console) login(args []string) error {
	if len(args) != 2 {
		return errors.New("usage: login <email> <password>")
	}
	if err := c.client.Login(args[0], args[1]); err != nil {
		return err
	}
	fmt.Fprintln(c.out, "logged in")
	return nil
}

func (c *Console) tasks(args []string) error {
	if len(args) < 1 {
		return errors.New("usage: tasks <subject> [limit]")
	}
	limit := "50"
	if len(args) > 1 {
		limit = args[1]
	}
	data, err := c.client.Call(http.MethodGet,
		fmt.Sprintf("/api/v1/tasks?subject=%s&limit=%s", args[0], limit), nil)
	if err != nil {
		return err
	}
	return c.printJSON(data)
}

func (c *Console) task(args []string) error {
	if len(args) == 0 {
		return errors.New("usage: task <id> | task delete <id> | task export <id> | task import <key>")
	}
	switch args[0] {
	case "delete":
		if len(args) != 2 {
			return errors.New("usage: task delete <id>")
		}
		if _, err := c.client.Call(http.MethodDelete, "/api/v1/tasks/"+args[1], nil); err != nil {
			return err
		}
		fmt.Fprintln(c.out, "deleted")
		return nil
	case "export":
		if len(args) != 2 {
			return errors.New("usage: task export <id>")
		}
		data, err := c.client.Call(http.MethodPost, "/api/v1/tasks/"+args[1]+"/export", nil)
		if err != nil {
			return err
		}
		return c.printJSON(data)
	case "import":
		if len(args) != 2 {
			return errors.New("usage: task import <key>")
		}
		data, err := c.client.Call(http.MethodPost, "/api/v1/tasks/import", map[string]string{"key": args[1]})
		if err != nil {
			return err
		}
		return c.printJSON(data)
	default:
		data, err := c.client.Call(http.MethodGet, "/api/v1/tasks/"+args[0], nil)
		if err != nil {
			return err
		}
		return c.printJSON(data)
	}
}

func (c *Console) matches(args []string) error {
	path := "/api/v1/matches"
	if len(args) > 0 {
		path += "?subject=" + args[0]
	}
	data, err := c.client.Call(http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	return c.printJSON(data)
}

func (c *Console) generate(args []string) error {
	if len(args) < 1 {
		return errors.New("usage: generate <subject> [theme] [difficulty]")
	}
	body := map[string]string{"subject": args[0]}
	if len(args) > 1 {
		body["theme"] = args[1]
	}
	if len(args) > 2 {
		body["difficulty"] = args[2]
	}
	data, err := c.client.Call(http.MethodPost, "/api/v1/tasks/generate", body)
	if err != nil {
		return err
	}
	return c.printJSON(data)
}

func (c *Console) leaderboard(args []string) error {
	limit := "10"
	if len(args) > 0 {
		limit = args[0]
	}
	data, err := c.client.Call(http.MethodGet, "/api/v1/leaderboard?limit="+limit, nil)
	if err != nil {
		return err
	}
	return c.printJSON(data)
}

func (c *Console) submissions(args []string) error {
	limit := "20"
	if len(args) > 0 {
		limit = args[0]
	}
	data, err := c.client.Call(http.MethodGet, "/api/v1/submissions?limit="+limit, nil)
	if err != nil {
		return err
	}
	return c.printJSON(data)
}

func (c *Console) printJSON(data json.RawMessage) error {
	var buf bytes.Buffer
	if err := json.Indent(&buf, data, "", "  "); err != nil {
		fmt.Fprintln(c.out, string(data))
		return nil
	}
	fmt.Fprintln(c.out, buf.String())
	return nil
}

func completer() readline.AutoCompleter {
	return readline.NewPrefixCompleter(
		readline.PcItem("help"),
		readline.PcItem("login"),
		readline.PcItem("tasks"),
		readline.PcItem("task",
			readline.PcItem("delete"),
			readline.PcItem("export"),
			readline.PcItem("import"),
		),
		readline.PcItem("matches"),
		readline.PcItem("generate"),
		readline.PcItem("leaderboard"),
		readline.PcItem("submissions"),
		readline.PcItem("exit"),
	)
}

func historyFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return home + "/.arena_history"
}
