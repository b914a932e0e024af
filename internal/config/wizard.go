package config

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/manifoldco/promptui"
)

// RunWizard runs an interactive configuration wizard, saves the result to
// path and returns it.
func RunWizard(path string) (*Config, error) {
	fmt.Println("Welcome to townctl! Let's point it at your game server.")
	fmt.Println()

	cfg := DefaultConfig()

	// 1. Server.
	baseURL, err := (&promptui.Prompt{
		Label:    "Game server base URL",
		Default:  cfg.BaseURL,
		Validate: validateURL,
	}).Run()
	if err != nil {
		return nil, fmt.Errorf("base url: %w", err)
	}
	cfg.BaseURL = strings.TrimRight(baseURL, "/")

	// 2. Staff username, remembered for login.
	username, err := (&promptui.Prompt{
		Label: "Staff username (blank to skip)",
	}).Run()
	if err != nil {
		return nil, fmt.Errorf("username: %w", err)
	}
	cfg.Username = strings.TrimSpace(username)

	// 3. Panel port.
	portStr, err := (&promptui.Prompt{
		Label:    "Local panel port",
		Default:  strconv.Itoa(cfg.Panel.Port),
		Validate: validatePort,
	}).Run()
	if err != nil {
		return nil, fmt.Errorf("panel port: %w", err)
	}
	cfg.Panel.Port, _ = strconv.Atoi(portStr)

	// 4. Guard behaviour.
	failIdx, _, err := (&promptui.Select{
		Label: "When the server cannot validate a session on page load",
		Items: []string{
			"fail open: keep the page, log the error",
			"fail closed: send the user back to login",
		},
	}).Run()
	if err != nil {
		return nil, fmt.Errorf("guard mode: %w", err)
	}
	cfg.Guard.FailOpen = failIdx == 0

	// 5. Optional S3 backup target.
	bucket, err := (&promptui.Prompt{
		Label: "S3 bucket for town backups (blank to disable)",
	}).Run()
	if err != nil {
		return nil, fmt.Errorf("backup bucket: %w", err)
	}
	cfg.Backup.Bucket = strings.TrimSpace(bucket)
	if cfg.Backup.Bucket != "" {
		endpoint, err := (&promptui.Prompt{
			Label: "S3 endpoint (blank for AWS)",
		}).Run()
		if err != nil {
			return nil, fmt.Errorf("backup endpoint: %w", err)
		}
		cfg.Backup.Endpoint = strings.TrimSpace(endpoint)
		cfg.Backup.PathStyle = cfg.Backup.Endpoint != ""
		fmt.Println("\nNote: credentials come from the AWS environment unless backup.access_key is set.")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Save(path); err != nil {
		return nil, fmt.Errorf("saving config: %w", err)
	}

	fmt.Printf("\nConfiguration saved to %s\n", path)
	return cfg, nil
}

func validateURL(s string) error {
	u, err := url.Parse(strings.TrimSpace(s))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("enter an http:// or https:// URL")
	}
	return nil
}

func validatePort(s string) error {
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 || n > 65535 {
		return fmt.Errorf("enter a port between 1 and 65535")
	}
	return nil
}
