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
	"time"

	"github.com/muster-io/muster/internal/api"
	"github.com/muster-io/muster/internal/config"
	"github.com/muster-io/muster/internal/log"
	"github.com/muster-io/muster/internal/profile"
)

func runAgentNoun(args []string) int {
	if len(args) < 1 {
		printAgentNounHelp(os.Stderr)
		return 1
	}
	if isHelpToken(args[0]) {
		printAgentNounHelp(os.Stdout)
		return 0
	}

	action := args[0]
	actionArgs := args[1:]

	switch action {
	case "dispatch":
		if hasHelpFlag(actionArgs) {
			printAgentDispatchHelp()
			return 0
		}
		return runAgentDispatch(actionArgs)
	case "list":
		return runAgentList(actionArgs)
	case "status":
		return runAgentStatus(actionArgs)
	case "kill":
		return runAgentKill(actionArgs)
	case "restart":
		return runAgentRestart(actionArgs)
	case "remove":
		return runAgentRemove(actionArgs)
	case "history":
		return runAgentHistory(actionArgs)
	case "help":
		printAgentNounHelp(os.Stdout)
		return 0
	default:
		fmt.Fprintf(os.Stderr, "Unknown agent action: %s\n", action)
		return 1
	}
}

func printAgentNounHelp(w *os.File) {
	fmt.Fprintln(w, "Usage: muster agent <action> [flags]")
	fmt.Fprintln(w, "Actions: dispatch, list, status, kill, restart, remove, history")
}

func printAgentDispatchHelp() {
	fmt.Println("Usage: muster agent dispatch --profile NAME --prompt TEXT [flags]")
	fmt.Println()
	fmt.Println("Flags:")
	fmt.Println("  --profile NAME     Agent profile to dispatch (required)")
	fmt.Println("  --prompt TEXT      Task prompt (required)")
	fmt.Println("  --model NAME       Model override")
	fmt.Println("  --timeout SECONDS  Runtime deadline override")
	fmt.Println("  --visible          Launch in a visible terminal session")
	fmt.Println("  --wait             Block until the agent reaches a terminal state")
	fmt.Println("  --api-url URL      Controller API URL (default: http://localhost:8080)")
	fmt.Println("  --api-key KEY      API bearer token (or MUSTER_API_KEY env var)")
}

// apiClient is the thin HTTP client the agent noun uses against a running
// controller.
type apiClient struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

func clientFlags(fs *flag.FlagSet) (apiURL, apiKey *string) {
	apiURL = fs.String("api-url", "http://localhost:8080", "Controller API URL")
	apiKey = fs.String("api-key", os.Getenv("MUSTER_API_KEY"), "API bearer token")
	return apiURL, apiKey
}

func (c *apiClient) do(method, path string, body, out any) error {
	var buf io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		buf = bytes.NewReader(b)
	}

	req, err := http.NewRequest(method, c.baseURL+path, buf)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("controller unreachable at %s: %w", c.baseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var apiErr api.ErrorResponse
		if json.NewDecoder(resp.Body).Decode(&apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("%s", apiErr.Error)
		}
		return fmt.Errorf("%s %s: %s", method, path, resp.Status)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func runAgentDispatch(args []string) int {
	fs := flag.NewFlagSet("dispatch", flag.ContinueOnError)
	profileName := fs.String("profile", "", "Agent profile to dispatch")
	prompt := fs.String("prompt", "", "Task prompt")
	model := fs.String("model", "", "Model override")
	timeoutSec := fs.Int("timeout", 0, "Runtime deadline in seconds")
	visible := fs.Bool("visible", false, "Launch in a visible terminal session")
	wait := fs.Bool("wait", false, "Block until the agent reaches a terminal state")
	apiURL, apiKey := clientFlags(fs)
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}
	if *profileName == "" || *prompt == "" {
		fmt.Fprintln(os.Stderr, "Usage: muster agent dispatch --profile NAME --prompt TEXT")
		return 1
	}

	client := &apiClient{baseURL: *apiURL, apiKey: *apiKey, http: &http.Client{Timeout: 10 * time.Second}}

	background := true
	var resp api.DispatchResponse
	err := client.do(http.MethodPost, "/v1/agents", api.DispatchRequest{
		Profile:        *profileName,
		Prompt:         *prompt,
		Background:     &background,
		Visible:        *visible,
		Model:          *model,
		TimeoutSeconds: *timeoutSec,
	}, &resp)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Dispatch failed: %v\n", err)
		return 1
	}

	fmt.Printf("Dispatched %s (%s)\n", resp.AgentID, resp.Status)

	if !*wait {
		return 0
	}
	return waitForAgent(client, resp.AgentID)
}

// waitForAgent polls the status endpoint until the record is terminal. The
// controller's own sweep bounds the agent's runtime, so the loop needs no
// deadline of its own.
func waitForAgent(client *apiClient, agentID string) int {
	for {
		time.Sleep(time.Second)

		var agent api.AgentResponse
		if err := client.do(http.MethodGet, "/v1/agents/"+agentID, nil, &agent); err != nil {
			fmt.Fprintf(os.Stderr, "Status poll failed: %v\n", err)
			return 1
		}
		switch agent.Status {
		case "completed":
			fmt.Println(agent.Result)
			return 0
		case "errored", "terminated":
			fmt.Fprintf(os.Stderr, "Agent %s: %s", agentID, agent.Status)
			if agent.Result != "" {
				fmt.Fprintf(os.Stderr, " (%s)", agent.Result)
			}
			fmt.Fprintln(os.Stderr)
			return 1
		}
	}
}

func runAgentList(args []string) int {
	fs := flag.NewFlagSet("list", flag.ContinueOnError)
	jsonOut := fs.Bool("json", false, "Output as JSON")
	apiURL, apiKey := clientFlags(fs)
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}

	client := &apiClient{baseURL: *apiURL, apiKey: *apiKey, http: &http.Client{Timeout: 10 * time.Second}}

	var agents []api.AgentResponse
	if err := client.do(http.MethodGet, "/v1/agents", nil, &agents); err != nil {
		fmt.Fprintf(os.Stderr, "List failed: %v\n", err)
		return 1
	}

	if *jsonOut {
		data, _ := json.MarshalIndent(agents, "", "  ")
		fmt.Println(string(data))
		return 0
	}

	if len(agents) == 0 {
		fmt.Println("No agents tracked.")
		return 0
	}
	fmt.Printf("%-38s %-14s %-11s %-8s %s\n", "AGENT", "PROFILE", "STATUS", "PID", "STARTED")
	for _, a := range agents {
		pid := "-"
		if a.PID != 0 {
			pid = fmt.Sprintf("%d", a.PID)
		}
		fmt.Printf("%-38s %-14s %-11s %-8s %s\n",
			a.AgentID, a.Profile, a.Status, pid, a.StartTime.Local().Format(time.RFC3339))
	}
	return 0
}

func runAgentStatus(args []string) int {
	fs := flag.NewFlagSet("status", flag.ContinueOnError)
	jsonOut := fs.Bool("json", false, "Output as JSON")
	apiURL, apiKey := clientFlags(fs)
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Usage: muster agent status <agent-id> [--json]")
		return 1
	}

	client := &apiClient{baseURL: *apiURL, apiKey: *apiKey, http: &http.Client{Timeout: 10 * time.Second}}

	var agent api.AgentResponse
	if err := client.do(http.MethodGet, "/v1/agents/"+fs.Arg(0), nil, &agent); err != nil {
		fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
		return 1
	}

	if *jsonOut {
		data, _ := json.MarshalIndent(agent, "", "  ")
		fmt.Println(string(data))
		return 0
	}
	printAgent(agent)
	return 0
}

func printAgent(a api.AgentResponse) {
	fmt.Printf("Agent:      %s\n", a.AgentID)
	fmt.Printf("Profile:    %s\n", a.Profile)
	fmt.Printf("Status:     %s\n", a.Status)
	if a.Model != "" {
		fmt.Printf("Model:      %s\n", a.Model)
	}
	if a.PID != 0 {
		fmt.Printf("PID:        %d\n", a.PID)
	}
	fmt.Printf("Started:    %s\n", a.StartTime.Local().Format(time.RFC3339))
	fmt.Printf("Timeout:    %ds\n", a.TimeoutSeconds)
	if a.Visible {
		fmt.Printf("Session:    %s\n", a.SessionInfo)
	}
	if a.LastReasoning != "" {
		fmt.Printf("Reasoning:  %s\n", a.LastReasoning)
	}
	if a.Result != "" {
		fmt.Printf("Result:     %s\n", a.Result)
	}
	if a.ExitCode != nil {
		fmt.Printf("Exit code:  %d\n", *a.ExitCode)
	}
}

func runAgentKill(args []string) int {
	return runAgentAction(args, "kill", func(client *apiClient, id string) error {
		var agent api.AgentResponse
		if err := client.do(http.MethodPost, "/v1/agents/"+id+"/kill", nil, &agent); err != nil {
			return err
		}
		fmt.Printf("Agent %s: %s", id, agent.Status)
		if agent.Result != "" {
			fmt.Printf(" (%s)", agent.Result)
		}
		fmt.Println()
		return nil
	})
}

func runAgentRestart(args []string) int {
	return runAgentAction(args, "restart", func(client *apiClient, id string) error {
		var resp api.RestartResponse
		if err := client.do(http.MethodPost, "/v1/agents/"+id+"/restart", nil, &resp); err != nil {
			return err
		}
		fmt.Printf("Agent %s superseded by %s\n", id, resp.RestartedAs)
		return nil
	})
}

func runAgentRemove(args []string) int {
	return runAgentAction(args, "remove", func(client *apiClient, id string) error {
		if err := client.do(http.MethodDelete, "/v1/agents/"+id, nil, nil); err != nil {
			return err
		}
		fmt.Printf("Removed %s\n", id)
		return nil
	})
}

func runAgentHistory(args []string) int {
	fs := flag.NewFlagSet("history", flag.ContinueOnError)
	jsonOut := fs.Bool("json", false, "Output as JSON")
	apiURL, apiKey := clientFlags(fs)
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Usage: muster agent history <agent-id> [--json]")
		return 1
	}

	client := &apiClient{baseURL: *apiURL, apiKey: *apiKey, http: &http.Client{Timeout: 10 * time.Second}}

	var entries []api.HistoryEntry
	if err := client.do(http.MethodGet, "/v1/agents/"+fs.Arg(0)+"/history", nil, &entries); err != nil {
		fmt.Fprintf(os.Stderr, "History failed: %v\n", err)
		return 1
	}

	if *jsonOut {
		data, _ := json.MarshalIndent(entries, "", "  ")
		fmt.Println(string(data))
		return 0
	}

	if len(entries) == 0 {
		fmt.Println("No journal entries.")
		return 0
	}
	for _, e := range entries {
		line := fmt.Sprintf("%s  %-11s", e.RecordedAt.Local().Format(time.RFC3339), e.Status)
		if e.Reason != "" {
			line += "  " + e.Reason
		}
		if e.ExitCode != nil {
			line += fmt.Sprintf("  exit=%d", *e.ExitCode)
		}
		fmt.Println(line)
	}
	return 0
}

// runAgentAction handles the common single-id action plumbing.
func runAgentAction(args []string, name string, fn func(*apiClient, string) error) int {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	apiURL, apiKey := clientFlags(fs)
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}
	if fs.NArg() != 1 {
		fmt.Fprintf(os.Stderr, "Usage: muster agent %s <agent-id>\n", name)
		return 1
	}

	client := &apiClient{baseURL: *apiURL, apiKey: *apiKey, http: &http.Client{Timeout: 10 * time.Second}}
	if err := fn(client, fs.Arg(0)); err != nil {
		fmt.Fprintf(os.Stderr, "%s failed: %v\n", name, err)
		return 1
	}
	return 0
}

// runProfileNoun lists profiles straight off the filesystem; it needs the
// config, not a running controller.
func runProfileNoun(args []string) int {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: muster profile <action>")
		fmt.Fprintln(os.Stderr, "Actions: list")
		return 1
	}
	if isHelpToken(args[0]) {
		fmt.Println("Usage: muster profile <action>")
		fmt.Println("Actions: list")
		return 0
	}

	switch args[0] {
	case "list":
		return runProfileList(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "Unknown profile action: %s\n", args[0])
		return 1
	}
}

func runProfileList(args []string) int {
	fs := flag.NewFlagSet("list", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to configuration file")
	jsonOut := fs.Bool("json", false, "Output as JSON")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}

	path, err := resolveConfigPath(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to locate config: %v\n", err)
		return 1
	}
	cfg, err := config.Load(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}

	log.Setup("error", "text")
	registry, err := profile.Discover(cfg.ProfilesDir, log.WithComponent("profile"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Profile discovery failed: %v\n", err)
		return 1
	}

	if *jsonOut {
		data, _ := json.MarshalIndent(registry.All(), "", "  ")
		fmt.Println(string(data))
		return 0
	}

	names := registry.Names()
	sort.Strings(names)
	if len(names) == 0 {
		fmt.Println("No profiles discovered.")
		return 0
	}
	fmt.Printf("%-16s %-16s %-10s %s\n", "NAME", "MODEL", "TIMEOUT", "DESCRIPTION")
	for _, name := range names {
		p, _ := registry.Get(name)
		timeout := "-"
		if p.Timeout > 0 {
			timeout = p.Timeout.String()
		}
		model := p.Model
		if model == "" {
			model = "-"
		}
		fmt.Printf("%-16s %-16s %-10s %s\n", p.Name, model, timeout, p.Description)
	}
	return 0
}
