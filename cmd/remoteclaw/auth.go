package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/remoteclaw/remoteclaw/internal/agent/auth"
	"github.com/remoteclaw/remoteclaw/internal/agent/runtime"
	"github.com/remoteclaw/remoteclaw/internal/common/config"
)

// runAuth dispatches the `remoteclaw auth <add|list|remove>` subcommands.
func runAuth(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: remoteclaw auth <add|list|remove>")
	}
	switch args[0] {
	case "add":
		return runAuthAdd(args[1:])
	case "list":
		return runAuthList(args[1:])
	case "remove":
		return runAuthRemove(args[1:])
	default:
		return fmt.Errorf("unknown auth subcommand %q", args[0])
	}
}

// authStorePath resolves the store path the same way the gateway does.
func authStorePath(configPath string) (string, error) {
	var cfg *config.Config
	var err error
	if configPath != "" {
		cfg, err = config.LoadWithPath(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return "", fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg.Auth.StorePath, nil
}

func runAuthAdd(args []string) error {
	fs := flag.NewFlagSet("auth add", flag.ExitOnError)
	configPath := fs.String("config", "", "config file path")
	id := fs.String("id", "", "profile id (default: the provider name)")
	provider := fs.String("provider", "", "provider the credential serves")
	key := fs.String("key", "", "API key (read from stdin when omitted)")
	token := fs.String("token", "", "OAuth/session token instead of an API key")
	expires := fs.Duration("expires", 0, "token lifetime from now (0 = no expiry)")
	email := fs.String("email", "", "account email for diagnostics")
	_ = fs.Parse(args)

	if *provider == "" {
		return fmt.Errorf("--provider is required")
	}
	profileID := *id
	if profileID == "" {
		profileID = runtime.NormalizeProvider(*provider)
	}

	secret := *key
	credType := auth.CredentialAPIKey
	if *token != "" {
		secret = *token
		credType = auth.CredentialToken
	}
	if secret == "" {
		fmt.Fprint(os.Stderr, "Paste the API key: ")
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil {
			return fmt.Errorf("failed to read key from stdin: %w", err)
		}
		secret = strings.TrimSpace(line)
	}
	if secret == "" {
		return fmt.Errorf("empty credential")
	}

	path, err := authStorePath(*configPath)
	if err != nil {
		return err
	}
	store := auth.LoadStore(path)

	cred := auth.Credential{
		Type:     credType,
		Provider: runtime.NormalizeProvider(*provider),
		Email:    *email,
	}
	if credType == auth.CredentialToken {
		cred.Token = secret
		if *expires > 0 {
			cred.Expires = time.Now().Add(*expires).UnixMilli()
		}
	} else {
		cred.Key = secret
	}
	store.Profiles[profileID] = cred

	if err := auth.SaveStore(path, store); err != nil {
		return err
	}
	fmt.Printf("saved profile %q (%s, %s) to %s\n",
		profileID, cred.Provider, credType, path)
	return nil
}

func runAuthList(args []string) error {
	fs := flag.NewFlagSet("auth list", flag.ExitOnError)
	configPath := fs.String("config", "", "config file path")
	_ = fs.Parse(args)

	path, err := authStorePath(*configPath)
	if err != nil {
		return err
	}
	store := auth.LoadStore(path)
	if len(store.Profiles) == 0 {
		fmt.Printf("no profiles in %s\n", path)
		return nil
	}

	ids := make([]string, 0, len(store.Profiles))
	for id := range store.Profiles {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		cred := store.Profiles[id]
		secret := cred.Key
		if cred.Type == auth.CredentialToken {
			secret = cred.Token
		}
		line := fmt.Sprintf("%-20s %-10s %-8s %s", id, cred.Provider, cred.Type, runtime.MaskSecret(secret))
		if cred.Expires > 0 {
			line += fmt.Sprintf("  expires %s", time.UnixMilli(cred.Expires).Format(time.RFC3339))
		}
		fmt.Println(line)
	}
	return nil
}

func runAuthRemove(args []string) error {
	fs := flag.NewFlagSet("auth remove", flag.ExitOnError)
	configPath := fs.String("config", "", "config file path")
	id := fs.String("id", "", "profile id to remove")
	_ = fs.Parse(args)

	if *id == "" {
		return fmt.Errorf("--id is required")
	}
	path, err := authStorePath(*configPath)
	if err != nil {
		return err
	}
	store := auth.LoadStore(path)
	if _, ok := store.Profiles[*id]; !ok {
		return fmt.Errorf("no profile %q in %s", *id, path)
	}
	delete(store.Profiles, *id)
	if err := auth.SaveStore(path, store); err != nil {
		return err
	}
	fmt.Printf("removed profile %q\n", *id)
	return nil
}
