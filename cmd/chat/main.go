// Command chat is a terminal client for the routing API. It keeps the last
// few answers as conversation context and prints confidence, source, and
// conflict details alongside each answer.
package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"

	"github.com/askroute/backend/internal/models"
)

var (
	serverURL   = flag.String("server", "http://localhost:8080", "AskRoute API base URL")
	userID      = flag.String("user", "cli", "User ID sent with every query")
	urgency     = flag.String("urgency", "", "Query urgency: low, normal, high, critical")
	bypassCache = flag.Bool("no-cache", false, "Bypass the response cache")
)

const contextTurns = 4

func main() {
	flag.Parse()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sig
		fmt.Println("\nBye.")
		cancel()
		os.Exit(0)
	}()

	boldGreen := color.New(color.FgGreen, color.Bold).SprintFunc()
	boldCyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	dim := color.New(color.Faint).SprintFunc()

	fmt.Println(boldGreen("AskRoute Chat"))
	fmt.Printf("Server: %s\n", boldCyan(*serverURL))
	fmt.Println("Type your question and press Enter. Type 'exit' or press Ctrl+C to quit.")
	fmt.Println()

	httpClient := &http.Client{Timeout: 60 * time.Second}
	var priorTurns []string

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print(boldGreen("You: "))
		if !scanner.Scan() {
			break
		}
		input := strings.TrimSpace(scanner.Text())

		if input == "" {
			continue
		}
		if strings.ToLower(input) == "exit" {
			break
		}

		response, err := query(ctx, httpClient, input, priorTurns)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s %v\n\n", red("Error:"), err)
			continue
		}

		fmt.Printf("%s %s\n", boldCyan("Answer:"), response.Answer)
		fmt.Printf("%s\n", dim(fmt.Sprintf("confidence=%d source=%s strategy=%s cached=%v latency=%dms",
			response.Confidence, response.Source, response.Strategy, response.CacheHit, response.LatencyMS)))

		if response.Warning != "" {
			fmt.Printf("%s %s\n", yellow("Warning:"), response.Warning)
		}
		if response.Conflict {
			fmt.Println(yellow("Sources disagreed on this one."))
		}
		for _, alt := range response.Alternatives {
			fmt.Printf("%s [%s, %d] %s\n", dim("Alternative:"), alt.Source, alt.Confidence, truncate(alt.Answer, 120))
		}
		fmt.Println()

		priorTurns = append(priorTurns, input, response.Answer)
		if len(priorTurns) > contextTurns {
			priorTurns = priorTurns[len(priorTurns)-contextTurns:]
		}
	}
}

func query(ctx context.Context, client *http.Client, text string, priorTurns []string) (*models.Response, error) {
	payload, err := json.Marshal(map[string]interface{}{
		"query":        text,
		"user_id":      *userID,
		"urgency":      *urgency,
		"context":      priorTurns,
		"bypass_cache": *bypassCache,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, *serverURL+"/api/v1/query", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", *userID)

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var apiErr struct {
			Error string `json:"error"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&apiErr); err == nil && apiErr.Error != "" {
			return nil, fmt.Errorf("%s (status %d)", apiErr.Error, resp.StatusCode)
		}
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var response models.Response
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, err
	}
	return &response, nil
}

func truncate(text string, limit int) string {
	if len(text) <= limit {
		return text
	}
	return text[:limit] + "..."
}
