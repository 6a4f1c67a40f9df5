package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/pterm/pterm"
	"github.com/urfave/cli/v2"

	"reputation-chain/models"
)

var httpClient = &http.Client{Timeout: 10 * time.Second}

func runStatus(cmdCtx *cli.Context) error {
	var status models.Status
	if err := call(http.MethodGet, cmdCtx.String("addr")+"/ping", nil, &status); err != nil {
		return err
	}

	label := color.New(color.FgHiGreen).SprintFunc()
	fmt.Printf("%s %d\n", label("round:"), status.Round)
	fmt.Printf("%s %s\n", label("state:"), status.State)
	fmt.Printf("%s %d\n", label("chain length:"), status.ChainLength)
	fmt.Printf("%s %d/%d\n", label("online nodes:"), status.OnlineNodes, status.TotalNodes)
	fmt.Printf("%s %.2f\n", label("average reputation:"), status.AverageReputation)
	return nil
}

func runReputations(cmdCtx *cli.Context) error {
	var nodes []models.Node
	if err := call(http.MethodGet, cmdCtx.String("addr")+"/reputations", nil, &nodes); err != nil {
		return err
	}
	if len(nodes) == 0 {
		pterm.Info.Println("no nodes have joined yet")
		return nil
	}

	data := pterm.TableData{{"Node", "Reputation", "Online"}}
	for _, n := range nodes {
		online := pterm.LightRed("no")
		if n.Online {
			online = pterm.LightGreen("yes")
		}
		data = append(data, []string{n.ID, fmt.Sprintf("%.2f", n.Reputation), online})
	}
	return pterm.DefaultTable.WithHasHeader().WithBoxed().WithData(data).Render()
}

func runJoin(cmdCtx *cli.Context) error {
	req := map[string]string{"node_id": cmdCtx.String("node-id")}
	var res models.JoinResult
	if err := call(http.MethodPost, cmdCtx.String("addr")+"/join", req, &res); err != nil {
		return err
	}

	if res.Status == models.JoinStatusJoined {
		color.HiGreen("joined: reputation %.2f, chain length %d", res.Reputation, res.ChainLength)
	} else {
		color.Yellow("already joined: reputation %.2f, chain length %d", res.Reputation, res.ChainLength)
	}
	return nil
}

// call sends body as JSON and decodes a JSON reply into out.
func call(method, url string, body interface{}, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var apiErr struct {
			Error string `json:"error"`
		}
		raw, _ := io.ReadAll(resp.Body)
		if json.Unmarshal(raw, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("%s: %s", resp.Status, apiErr.Error)
		}
		return fmt.Errorf("%s: %s", resp.Status, strings.TrimSpace(string(raw)))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
