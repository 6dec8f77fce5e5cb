// Command skm is a CLI client for the skill marketplace API.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ---- config/token store ----

type tokenFile struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
	Username    string    `json:"username,omitempty"`
}

func cfgDir() string {
	if v := os.Getenv("XDG_CONFIG_HOME"); v != "" {
		return filepath.Join(v, "skillmarket")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "skillmarket")
}

func tokenPath() string { return filepath.Join(cfgDir(), "token.json") }

func saveToken(tf tokenFile) error {
	if err := os.MkdirAll(cfgDir(), 0o700); err != nil {
		return err
	}
	f, err := os.OpenFile(tokenPath(), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(tf)
}

func loadToken() (string, error) {
	b, err := os.ReadFile(tokenPath())
	if err != nil {
		return "", err
	}
	var tf tokenFile
	if err := json.Unmarshal(b, &tf); err != nil {
		return "", err
	}
	if tf.AccessToken == "" || time.Now().After(tf.ExpiresAt) {
		return "", errors.New("no valid token (login required)")
	}
	return tf.AccessToken, nil
}

func dropToken() error {
	if err := os.Remove(tokenPath()); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// tokenExpiry prefers the server-reported expiry and falls back to the
// token's own exp claim. The signature is not checked here.
func tokenExpiry(raw string, reported time.Time) time.Time {
	if !reported.IsZero() {
		return reported
	}
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(raw, &claims); err == nil && claims.ExpiresAt != nil {
		return claims.ExpiresAt.Time
	}
	return time.Now().Add(time.Hour)
}

// ---- utils ----

func readAll(p string) ([]byte, error) {
	if p == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(p)
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func splitTags(s string) []string {
	if strings.TrimSpace(s) == "" {
		return []string{}
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func usage() {
	fmt.Fprintf(os.Stderr, `skm CLI
Usage:
  skm -server URL [-cacert file | -insecure] <cmd> [args]

Commands:
  version
  register   -e <email> -u <username> -p <password>   (saves token)
  login      -e <email> -p <password>                 (saves token)
  logout
  whoami
  get        <slug>
  like       <slug>                                   (toggles)
  publish    -name <n> -slug <s> -desc <d> -category <c> [-tags a,b] [-version v] [-readme file] [-repo url]
`)
	os.Exit(2)
}

// ---- main ----

var (
	version   = "dev"
	buildDate = "unknown"
)

// main dispatches subcommands against the HTTP API.
func main() {
	// global flags
	server := flag.String("server", "http://localhost:8080", "server base URL")
	caPath := flag.String("cacert", "", "CA cert (PEM)")
	insecure := flag.Bool("insecure", false, "skip cert verify (dev)")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() < 1 {
		usage()
	}
	cmd, args := flag.Arg(0), flag.Args()[1:]

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	anon := func() *client {
		c, err := newClient(*server, *caPath, *insecure, "")
		if err != nil {
			fail(err)
		}
		return c
	}
	authed := func() *client {
		tok, err := loadToken()
		if err != nil {
			fail(err)
		}
		c, err := newClient(*server, *caPath, *insecure, tok)
		if err != nil {
			fail(err)
		}
		return c
	}

	switch cmd {
	case "version":
		fmt.Printf("skm %s (%s)\n", version, buildDate)

	case "register":
		fs := flag.NewFlagSet("register", flag.ExitOnError)
		e := fs.String("e", "", "email")
		u := fs.String("u", "", "username")
		p := fs.String("p", "", "password")
		_ = fs.Parse(args)
		if *e == "" || *u == "" || *p == "" {
			fmt.Fprintln(os.Stderr, "need -e, -u and -p")
			os.Exit(1)
		}
		out, err := anon().register(ctx, *e, *u, *p)
		if err != nil {
			fail(err)
		}
		remember(out)
		fmt.Println(out.User.ID)

	case "login":
		fs := flag.NewFlagSet("login", flag.ExitOnError)
		e := fs.String("e", "", "email")
		p := fs.String("p", "", "password")
		_ = fs.Parse(args)
		if *e == "" || *p == "" {
			fmt.Fprintln(os.Stderr, "need -e and -p")
			os.Exit(1)
		}
		out, err := anon().login(ctx, *e, *p)
		if err != nil {
			fail(err)
		}
		remember(out)
		fmt.Println("ok")

	case "logout":
		// the server keeps no session; forgetting the token is enough
		if err := anon().do(ctx, "POST", "/auth/logout", nil, nil); err != nil {
			fmt.Fprintln(os.Stderr, "warning:", err)
		}
		if err := dropToken(); err != nil {
			fail(err)
		}
		fmt.Println("ok")

	case "whoami":
		out, err := authed().me(ctx)
		if err != nil {
			fail(err)
		}
		printJSON(out)

	case "get":
		if len(args) != 1 {
			fmt.Fprintln(os.Stderr, "need <slug>")
			os.Exit(1)
		}
		out, err := anon().item(ctx, args[0])
		if err != nil {
			fail(err)
		}
		printJSON(out)

	case "like":
		if len(args) != 1 {
			fmt.Fprintln(os.Stderr, "need <slug>")
			os.Exit(1)
		}
		out, err := authed().like(ctx, args[0])
		if err != nil {
			fail(err)
		}
		printJSON(out)

	case "publish":
		fs := flag.NewFlagSet("publish", flag.ExitOnError)
		name := fs.String("name", "", "display name")
		slug := fs.String("slug", "", "url slug")
		desc := fs.String("desc", "", "description")
		category := fs.String("category", "", "category")
		tags := fs.String("tags", "", "comma separated tags")
		ver := fs.String("version", "", "version (default 1.0.0)")
		readme := fs.String("readme", "", "readme file ('-'=stdin)")
		repo := fs.String("repo", "", "repository URL")
		_ = fs.Parse(args)
		if *name == "" || *slug == "" || *desc == "" || *category == "" {
			fmt.Fprintln(os.Stderr, "need -name -slug -desc -category")
			os.Exit(1)
		}
		body := map[string]any{
			"name":        *name,
			"slug":        *slug,
			"description": *desc,
			"category":    *category,
			"tags":        splitTags(*tags),
			"version":     *ver,
			"repoUrl":     *repo,
		}
		if *readme != "" {
			b, err := readAll(*readme)
			if err != nil {
				fail(err)
			}
			body["readme"] = string(b)
		}
		out, err := authed().publish(ctx, body)
		if err != nil {
			fail(err)
		}
		printJSON(out)

	default:
		usage()
	}
}

// ---- helpers ----

func remember(out authView) {
	tf := tokenFile{
		AccessToken: out.Token,
		ExpiresAt:   tokenExpiry(out.Token, out.ExpiresAt),
		Username:    out.User.Username,
	}
	if err := saveToken(tf); err != nil {
		fail(err)
	}
}

func fail(err error) {
	var ae *apiError
	if errors.As(err, &ae) {
		fmt.Fprintf(os.Stderr, "api error: status=%d msg=%s\n", ae.Status, ae.Message)
		os.Exit(1)
	}
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
