// feedkeeperctl is a small control client for a running feedkeeperd. It
// speaks the HTTP API and prints JSON, so it composes with jq and cron.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

func main() {
	server := flag.String("server", envOr("FEEDKEEPER_SERVER", "http://127.0.0.1:8080"), "base URL of the feedkeeper server")
	timeout := flag.Duration("timeout", 5*time.Minute, "request timeout")
	flag.Usage = usage
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		usage()
		os.Exit(2)
	}

	client := &client{base: strings.TrimRight(*server, "/"), http: &http.Client{Timeout: *timeout}}

	var err error
	switch args[0] {
	case "tree":
		err = client.get("/api/tree")
	case "update-all":
		err = client.post("/api/update", nil)
	case "update-account":
		err = withID(args, func(id string) error {
			return client.post("/api/accounts/"+id+"/update", nil)
		})
	case "state":
		err = withID(args, func(id string) error {
			return client.get("/api/accounts/" + id + "/state")
		})
	case "empty-bin":
		body := map[string]any{}
		err = client.post("/api/bin/empty"+accountQuery(args), body)
	case "cleanup":
		err = client.post("/api/cleanup", parseCleanupArgs(args[1:]))
	case "import-status":
		err = client.get("/api/import/status")
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", args[0])
		usage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprint(os.Stderr, `usage: feedkeeperctl [flags] <command>

commands:
  tree                         print the item tree
  update-all                   run a sync batch for every account
  update-account <id>          run a sync batch for one account
  state <id>                   print an account's engine state
  empty-bin [account-id]       tombstone all binned messages
  cleanup [purge-read] [empty-bin] [compact] [older-than=<days>]
  import-status                print the current bulk import task

flags:
`)
	flag.PrintDefaults()
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func withID(args []string, fn func(id string) error) error {
	if len(args) < 2 {
		return fmt.Errorf("%s requires an account id", args[0])
	}
	return fn(args[1])
}

func accountQuery(args []string) string {
	if len(args) >= 2 {
		return "?accountId=" + args[1]
	}
	return ""
}

func parseCleanupArgs(args []string) map[string]any {
	opts := map[string]any{}
	for _, arg := range args {
		switch {
		case arg == "purge-read":
			opts["purgeRead"] = true
		case arg == "empty-bin":
			opts["emptyBin"] = true
		case arg == "compact":
			opts["compact"] = true
		case strings.HasPrefix(arg, "older-than="):
			var days int
			if _, err := fmt.Sscanf(arg, "older-than=%d", &days); err == nil {
				opts["olderThanDays"] = days
			}
		}
	}
	return opts
}

type client struct {
	base string
	http *http.Client
}

func (c *client) get(path string) error {
	resp, err := c.http.Get(c.base + path)
	if err != nil {
		return err
	}
	return c.render(resp)
}

func (c *client) post(path string, body any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	}
	resp, err := c.http.Post(c.base+path, "application/json", reader)
	if err != nil {
		return err
	}
	return c.render(resp)
}

// render pretty-prints the response body and fails on non-2xx statuses so
// scripts get a useful exit code.
func (c *client) render(resp *http.Response) error {
	defer resp.Body.Close()
	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	var pretty bytes.Buffer
	if json.Indent(&pretty, payload, "", "  ") == nil {
		fmt.Println(pretty.String())
	} else if len(payload) > 0 {
		fmt.Println(string(payload))
	}

	if resp.StatusCode >= 400 {
		return fmt.Errorf("server returned %s", resp.Status)
	}
	return nil
}
