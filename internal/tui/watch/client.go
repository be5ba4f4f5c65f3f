package watch

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/muster-io/muster/internal/api"
)

// agentEvent is one lifecycle event decoded from the SSE stream.
type agentEvent struct {
	ID      int64
	Type    string          `json:"type"`
	AgentID string          `json:"agent_id"`
	At      time.Time       `json:"at"`
	Data    json.RawMessage `json:"data"`
}

// --- Message types ---

type eventMsg agentEvent

type healthMsg api.HealthzResponse

type agentsMsg []api.AgentResponse

type tickMsg time.Time

type errMsg error

type sseDisconnectedMsg struct{}
type reconnectMsg struct{}

// --- Commands ---

// subscribeToEvents connects to the SSE /v1/events endpoint and feeds events
// into ch. Returns sseDisconnectedMsg when the connection drops.
func subscribeToEvents(apiURL, apiKey string, ch chan<- agentEvent) tea.Cmd {
	return func() tea.Msg {
		req, err := http.NewRequest(http.MethodGet, apiURL+"/v1/events", nil)
		if err != nil {
			return errMsg(err)
		}
		authorize(req, apiKey)

		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return sseDisconnectedMsg{}
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return errMsg(fmt.Errorf("event stream: %s", resp.Status))
		}

		scanner := bufio.NewScanner(resp.Body)
		var data string
		for scanner.Scan() {
			line := scanner.Text()

			if line == "" {
				if data != "" {
					var ev agentEvent
					if err := json.Unmarshal([]byte(data), &ev); err == nil {
						ch <- ev
					}
					data = ""
				}
				continue
			}
			// Only the data: line matters; the envelope repeats id and type.
			if len(line) > 6 && line[:6] == "data: " {
				data = line[6:]
			}
		}
		return sseDisconnectedMsg{}
	}
}

// receiveNextEvent waits for the next event from the channel.
func receiveNextEvent(ch <-chan agentEvent) tea.Cmd {
	return func() tea.Msg {
		return eventMsg(<-ch)
	}
}

// fetchHealth queries /healthz.
func fetchHealth(apiURL, apiKey string) tea.Msg {
	var h healthMsg
	if err := getJSON(apiURL+"/healthz", apiKey, &h); err != nil {
		return errMsg(err)
	}
	return h
}

// fetchAgents queries /v1/agents for the fleet table.
func fetchAgents(apiURL, apiKey string) tea.Msg {
	var agents []api.AgentResponse
	if err := getJSON(apiURL+"/v1/agents", apiKey, &agents); err != nil {
		return errMsg(err)
	}
	return agentsMsg(agents)
}

func getJSON(url, apiKey string, v any) error {
	client := &http.Client{Timeout: 2 * time.Second}
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	authorize(req, apiKey)

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s: %s", url, resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(v)
}

func authorize(req *http.Request, apiKey string) {
	if apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}
}
