// Command blog is a CLI client for the blog HTTP API.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ---- config/token store ----

type tokenFile struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
}

func cfgDir() string {
	if v := os.Getenv("XDG_CONFIG_HOME"); v != "" {
		return filepath.Join(v, "gophblog")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "gophblog")
}

func tokenPath() string { return filepath.Join(cfgDir(), "token.json") }

func saveToken(tok string, exp time.Time) error {
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
	return enc.Encode(tokenFile{AccessToken: tok, ExpiresAt: exp})
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

// tokenExpiry reads exp without verifying the signature; the server does that.
func tokenExpiry(tok string, fallback time.Time) time.Time {
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(tok, &claims); err != nil || claims.ExpiresAt == nil {
		return fallback
	}
	return claims.ExpiresAt.Time
}

// ---- utils ----

func readAll(p string) ([]byte, error) {
	if p == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(p)
}

func printJSON(w io.Writer, v any) {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

const usageText = `blog CLI
Usage:
  blog [-addr URL] [-cacert file | -insecure] <cmd> [args]

Commands:
  version
  register   -u <username> -p <password> [-role reader|author]
  login      -u <username> -p <password>           (saves token)
  whoami
  list
  post       -title <t> [-content <c> | -file <path|->]
  edit       -id <n> [-title <t>] [-content <c> | -file <path|->]
  rm         -id <n>
`

// ---- main ----

var (
	version   = "dev"
	buildDate = "unknown"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run dispatches subcommands and returns the process exit code.
func run(args []string, stdout, stderr io.Writer) int {
	global := flag.NewFlagSet("blog", flag.ContinueOnError)
	global.SetOutput(stderr)
	addr := global.String("addr", "http://localhost:8080", "server URL")
	caPath := global.String("cacert", "", "CA cert (PEM) for https")
	insecure := global.Bool("insecure", false, "skip cert verify (dev)")
	global.Usage = func() { fmt.Fprint(stderr, usageText) }
	if err := global.Parse(args); err != nil {
		return 2
	}
	if global.NArg() < 1 {
		global.Usage()
		return 2
	}
	cmd, rest := global.Arg(0), global.Args()[1:]

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	client := func(authed bool) (*apiClient, error) {
		var tok string
		if authed {
			var err error
			if tok, err = loadToken(); err != nil {
				return nil, err
			}
		}
		return newClient(*addr, *caPath, *insecure, tok)
	}

	var err error
	switch cmd {
	case "version":
		fmt.Fprintf(stdout, "blog %s (%s)\n", version, buildDate)
	case "register":
		err = cmdRegister(ctx, rest, client, stdout)
	case "login":
		err = cmdLogin(ctx, rest, client, stdout)
	case "whoami":
		err = cmdGet(ctx, "/me", client, stdout)
	case "list":
		err = cmdGet(ctx, "/posts", client, stdout)
	case "post":
		err = cmdPost(ctx, rest, client, stdout)
	case "edit":
		err = cmdEdit(ctx, rest, client, stdout)
	case "rm":
		err = cmdRm(ctx, rest, client, stdout)
	default:
		global.Usage()
		return 2
	}
	if err != nil {
		var ae *apiError
		if errors.As(err, &ae) {
			fmt.Fprintf(stderr, "api error: status=%d msg=%s\n", ae.Status, ae.Detail)
		} else {
			fmt.Fprintln(stderr, err)
		}
		return 1
	}
	return 0
}

type clientFactory func(authed bool) (*apiClient, error)

var errUsage = errors.New("bad arguments, see blog -h")

func cmdRegister(ctx context.Context, args []string, mk clientFactory, out io.Writer) error {
	fs := flag.NewFlagSet("register", flag.ContinueOnError)
	u := fs.String("u", "", "username")
	p := fs.String("p", "", "password")
	role := fs.String("role", "reader", "reader or author")
	if err := fs.Parse(args); err != nil || *u == "" || *p == "" {
		return fmt.Errorf("%w: need -u and -p", errUsage)
	}
	c, err := mk(false)
	if err != nil {
		return err
	}
	var resp map[string]any
	if err := c.call(ctx, http.MethodPost, "/register", map[string]string{"username": *u, "password": *p, "role": *role}, &resp); err != nil {
		return err
	}
	printJSON(out, resp)
	return nil
}

func cmdLogin(ctx context.Context, args []string, mk clientFactory, out io.Writer) error {
	fs := flag.NewFlagSet("login", flag.ContinueOnError)
	u := fs.String("u", "", "username")
	p := fs.String("p", "", "password")
	if err := fs.Parse(args); err != nil || *u == "" || *p == "" {
		return fmt.Errorf("%w: need -u and -p", errUsage)
	}
	c, err := mk(false)
	if err != nil {
		return err
	}
	var resp struct {
		AccessToken string    `json:"access_token"`
		ExpiresAt   time.Time `json:"expires_at"`
	}
	if err := c.call(ctx, http.MethodPost, "/login", map[string]string{"username": *u, "password": *p}, &resp); err != nil {
		return err
	}
	fallback := resp.ExpiresAt
	if fallback.IsZero() {
		fallback = time.Now().Add(15 * time.Minute)
	}
	if err := saveToken(resp.AccessToken, tokenExpiry(resp.AccessToken, fallback)); err != nil {
		return err
	}
	fmt.Fprintln(out, "ok")
	return nil
}

func cmdGet(ctx context.Context, path string, mk clientFactory, out io.Writer) error {
	c, err := mk(true)
	if err != nil {
		return err
	}
	var resp any
	if err := c.call(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return err
	}
	printJSON(out, resp)
	return nil
}

// contentArg resolves -content and -file into one value. set is false when neither was given.
func contentArg(fs *flag.FlagSet, content, file string) (val string, set bool, err error) {
	given := map[string]bool{}
	fs.Visit(func(f *flag.Flag) { given[f.Name] = true })
	switch {
	case given["content"] && given["file"]:
		return "", false, fmt.Errorf("%w: -content and -file are exclusive", errUsage)
	case given["file"]:
		b, err := readAll(file)
		if err != nil {
			return "", false, err
		}
		return string(b), true, nil
	case given["content"]:
		return content, true, nil
	}
	return "", false, nil
}

func cmdPost(ctx context.Context, args []string, mk clientFactory, out io.Writer) error {
	fs := flag.NewFlagSet("post", flag.ContinueOnError)
	title := fs.String("title", "", "post title")
	content := fs.String("content", "", "post content")
	file := fs.String("file", "", "content file ('-'=stdin)")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	body, _, err := contentArg(fs, *content, *file)
	if err != nil {
		return err
	}
	c, err := mk(true)
	if err != nil {
		return err
	}
	var resp map[string]any
	if err := c.call(ctx, http.MethodPost, "/posts", map[string]string{"title": *title, "content": body}, &resp); err != nil {
		return err
	}
	printJSON(out, resp)
	return nil
}

func cmdEdit(ctx context.Context, args []string, mk clientFactory, out io.Writer) error {
	fs := flag.NewFlagSet("edit", flag.ContinueOnError)
	id := fs.Int64("id", 0, "post id")
	title := fs.String("title", "", "new title")
	content := fs.String("content", "", "new content")
	file := fs.String("file", "", "content file ('-'=stdin)")
	if err := fs.Parse(args); err != nil || *id <= 0 {
		return fmt.Errorf("%w: need -id", errUsage)
	}

	patch := map[string]string{}
	fs.Visit(func(f *flag.Flag) {
		if f.Name == "title" {
			patch["title"] = *title
		}
	})
	body, set, err := contentArg(fs, *content, *file)
	if err != nil {
		return err
	}
	if set {
		patch["content"] = body
	}

	c, err := mk(true)
	if err != nil {
		return err
	}
	var resp map[string]any
	if err := c.call(ctx, http.MethodPut, "/posts/"+strconv.FormatInt(*id, 10), patch, &resp); err != nil {
		return err
	}
	printJSON(out, resp)
	return nil
}

func cmdRm(ctx context.Context, args []string, mk clientFactory, out io.Writer) error {
	fs := flag.NewFlagSet("rm", flag.ContinueOnError)
	id := fs.Int64("id", 0, "post id")
	if err := fs.Parse(args); err != nil || *id <= 0 {
		return fmt.Errorf("%w: need -id", errUsage)
	}
	c, err := mk(true)
	if err != nil {
		return err
	}
	var resp map[string]any
	if err := c.call(ctx, http.MethodDelete, "/posts/"+strconv.FormatInt(*id, 10), nil, &resp); err != nil {
		return err
	}
	printJSON(out, resp)
	return nil
}
