package main

import (
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"
)

func runHealthcheckCLI(args []string) int {
	fs := flag.NewFlagSet("healthcheck", flag.ContinueOnError)
	mode := fs.String("mode", "ready", "healthcheck mode: ready (default) or live")
	addr := fs.String("addr", envOr("LISTEN_ADDR", ":8000"), "site listen address to check")
	host := fs.String("host", "", "Host header to send, must be in ALLOWED_HOSTS")
	timeout := fs.Duration("timeout", 5*time.Second, "check timeout")

	if err := fs.Parse(args); err != nil {
		return 2
	}

	path := "/healthz"
	if *mode == "ready" {
		path = "/readyz"
	}

	hostPort, port, err := net.SplitHostPort(*addr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Healthcheck failed (address): %v\n", err)
		return 1
	}
	if hostPort == "" || hostPort == "0.0.0.0" || hostPort == "::" {
		hostPort = "localhost"
	}

	req, err := http.NewRequest(http.MethodGet, "http://"+net.JoinHostPort(hostPort, port)+path, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Healthcheck failed (request): %v\n", err)
		return 1
	}
	if *host != "" {
		req.Host = *host
	}

	client := http.Client{Timeout: *timeout}
	resp, err := client.Do(req)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Healthcheck failed (network): %v\n", err)
		return 1
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		fmt.Fprintf(os.Stderr, "Healthcheck failed (status): %d %s\n", resp.StatusCode, resp.Status)
		return 1
	}

	fmt.Printf("Healthcheck successful (%s)\n", *mode)
	return 0
}

func envOr(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}
