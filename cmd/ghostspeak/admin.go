package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"syscall"
	"text/tabwriter"
	"time"

	"golang.org/x/term"
)

// runAdmin dispatches admin subcommands against a running engine over HTTP.
func runAdmin(args []string) error {
	if len(args) == 0 || args[0] == "help" || args[0] == "--help" {
		printAdminHelp()
		return nil
	}

	switch args[0] {
	case "pause":
		return runBreakerCommand("pause", args[1:])
	case "unpause":
		return runBreakerCommand("unpause", args[1:])
	case "breaker-state":
		return runBreakerState(args[1:])
	case "slash":
		return runSlash(args[1:])
	case "list-agents":
		return runListAgents(args[1:])
	case "staking-config":
		return runStakingConfig(args[1:])
	default:
		printAdminHelp()
		return fmt.Errorf("unknown admin command: %s", args[0])
	}
}

func printAdminHelp() {
	fmt.Fprintf(os.Stderr, `Usage: ghostspeak admin <command> [options]

Commands:
  pause            Pause an instruction class (global, registry, staking, escrow, payments)
  unpause          Unpause an instruction class
  breaker-state    Show the circuit breaker state per class
  slash            Slash staked collateral from an owner
  list-agents      List all registered agents
  staking-config   Show the current staking configuration
  help             Show this help message

The admin key is read from GHOSTSPEAK_ADMIN_KEY, or prompted if unset.

Examples:
  ghostspeak admin pause --class escrow
  ghostspeak admin slash --owner agent1 --amount 5000 --reason "missed deliverables"
  ghostspeak admin list-agents --addr http://engine:8080
`)
}

type adminClient struct {
	addr string
	key  string
	http *http.Client
}

func newAdminClient(addr string, needKey bool) (*adminClient, error) {
	c := &adminClient{
		addr: addr,
		http: &http.Client{Timeout: 15 * time.Second},
	}
	if !needKey {
		return c, nil
	}
	c.key = os.Getenv("GHOSTSPEAK_ADMIN_KEY")
	if c.key == "" {
		key, err := promptSecret("Admin key: ")
		if err != nil {
			return nil, fmt.Errorf("read admin key: %w", err)
		}
		c.key = key
	}
	if c.key == "" {
		return nil, fmt.Errorf("admin key is required")
	}
	return c, nil
}

func (c *adminClient) do(method, path string, body, out any) error {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
	}
	req, err := http.NewRequest(method, c.addr+path, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.key != "" {
		req.Header.Set("Authorization", "Bearer "+c.key)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request %s: %w", path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("%s %s: %s: %s", method, path, resp.Status, bytes.TrimSpace(data))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func runBreakerCommand(op string, args []string) error {
	fs := flag.NewFlagSet(op, flag.ContinueOnError)
	addr := fs.String("addr", "http://localhost:8080", "engine base URL")
	class := fs.String("class", "", "instruction class (required)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *class == "" {
		return fmt.Errorf("--class is required")
	}

	c, err := newAdminClient(*addr, true)
	if err != nil {
		return err
	}

	var state map[string]bool
	err = c.do(http.MethodPost, "/api/v1/admin/breaker/"+op, map[string]string{"class": *class}, &state)
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "Class %s %sd.\n", *class, op)
	printBreakerState(state)
	return nil
}

func runBreakerState(args []string) error {
	fs := flag.NewFlagSet("breaker-state", flag.ContinueOnError)
	addr := fs.String("addr", "http://localhost:8080", "engine base URL")
	if err := fs.Parse(args); err != nil {
		return err
	}

	c, err := newAdminClient(*addr, true)
	if err != nil {
		return err
	}

	var state map[string]bool
	if err := c.do(http.MethodGet, "/api/v1/admin/breaker", nil, &state); err != nil {
		return err
	}
	printBreakerState(state)
	return nil
}

func printBreakerState(state map[string]bool) {
	classes := make([]string, 0, len(state))
	for class := range state {
		classes = append(classes, class)
	}
	sort.Strings(classes)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "CLASS\tSTATE")
	for _, class := range classes {
		s := "live"
		if state[class] {
			s = "PAUSED"
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\n", class, s)
	}
	_ = w.Flush()
}

func runSlash(args []string) error {
	fs := flag.NewFlagSet("slash", flag.ContinueOnError)
	addr := fs.String("addr", "http://localhost:8080", "engine base URL")
	owner := fs.String("owner", "", "owner address to slash (required)")
	amount := fs.Uint64("amount", 0, "amount in base units (required)")
	reason := fs.String("reason", "", "audit reason (required)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *owner == "" || *amount == 0 || *reason == "" {
		return fmt.Errorf("--owner, --amount and --reason are required")
	}

	c, err := newAdminClient(*addr, true)
	if err != nil {
		return err
	}

	var out map[string]uint64
	err = c.do(http.MethodPost, "/api/v1/admin/slash", map[string]any{
		"owner":  *owner,
		"amount": *amount,
		"reason": *reason,
	}, &out)
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "Slashed %d from %s.\n", out["slashed"], *owner)
	return nil
}

func runListAgents(args []string) error {
	fs := flag.NewFlagSet("list-agents", flag.ContinueOnError)
	addr := fs.String("addr", "http://localhost:8080", "engine base URL")
	if err := fs.Parse(args); err != nil {
		return err
	}

	c, err := newAdminClient(*addr, false)
	if err != nil {
		return err
	}

	var agents []struct {
		Owner   string `json:"owner"`
		Name    string `json:"name"`
		Active  bool   `json:"active"`
		Address string `json:"address"`
	}
	if err := c.do(http.MethodGet, "/api/v1/agents", nil, &agents); err != nil {
		return err
	}

	if len(agents) == 0 {
		fmt.Println("No agents registered.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "OWNER\tNAME\tACTIVE\tADDRESS")
	for _, a := range agents {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%t\t%s\n", a.Owner, a.Name, a.Active, a.Address)
	}
	return w.Flush()
}

func runStakingConfig(args []string) error {
	fs := flag.NewFlagSet("staking-config", flag.ContinueOnError)
	addr := fs.String("addr", "http://localhost:8080", "engine base URL")
	if err := fs.Parse(args); err != nil {
		return err
	}

	c, err := newAdminClient(*addr, false)
	if err != nil {
		return err
	}

	var cfg json.RawMessage
	if err := c.do(http.MethodGet, "/api/v1/staking/config", nil, &cfg); err != nil {
		return err
	}

	var pretty bytes.Buffer
	if err := json.Indent(&pretty, cfg, "", "  "); err != nil {
		return err
	}
	fmt.Println(pretty.String())
	return nil
}

// promptSecret reads a secret from the terminal without echoing.
func promptSecret(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	b, err := term.ReadPassword(int(syscall.Stdin)) //nolint:unconvert // int conversion needed on some platforms
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
