// Command hz is a CLI client for the humanizer HTTP API.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

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

func usage() {
	fmt.Fprintf(os.Stderr, `hz CLI

Usage:
  hz [-addr URL] [-cacert file | -insecure] [-timeout d] <cmd> [args]

Commands:
  version
  register   -e <email> -p <password>          (adopts guest history, saves token)
  login      -e <email> -p <password>          (saves token)
  logout
  humanize   [-file path|-] [-readability r] [-purpose p] [-strength s] [text...]
  history    [-limit n] [-offset n]
  account    [-delete]
  plans
`)
	os.Exit(2)
}

func fail(err error) {
	fmt.Fprintln(os.Stderr, "error:", err)
	var ae *apiError
	if errors.As(err, &ae) && ae.Code == "QUOTA_EXCEEDED" {
		os.Exit(3)
	}
	os.Exit(1)
}

// ---- main ----

// main dispatches subcommands against the HTTP API.
func main() {
	addr := flag.String("addr", "http://localhost:8080", "server base URL")
	caPath := flag.String("cacert", "", "CA cert (PEM)")
	insecure := flag.Bool("insecure", false, "skip cert verify (dev)")
	timeout := flag.Duration("timeout", 5*time.Minute, "overall request timeout")
	flag.Usage = usage
	flag.Parse()
	if flag.NArg() < 1 {
		usage()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()

	tlsCfg, err := loadTLS(*caPath, *insecure)
	if err != nil {
		fail(err)
	}
	c := newClient(*addr, tlsCfg)
	if c.token, err = loadToken(); err != nil {
		fail(err)
	}
	c.guest = loadGuestID()

	if err := run(ctx, c, os.Stdout, flag.Arg(0), flag.Args()[1:]); err != nil {
		fail(err)
	}
}

func run(ctx context.Context, c *client, out io.Writer, cmd string, args []string) error {
	switch cmd {
	case "version":
		fmt.Fprintf(out, "hz %s (%s)\n", version, buildDate)
		return nil

	case "register", "login":
		fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
		email := fs.String("e", "", "email")
		pass := fs.String("p", "", "password")
		if err := fs.Parse(args); err != nil {
			return err
		}
		if *email == "" || *pass == "" {
			return errors.New("need -e and -p")
		}
		var (
			resp authResp
			err  error
		)
		if cmd == "register" {
			resp, err = c.register(ctx, *email, *pass)
		} else {
			resp, err = c.login(ctx, *email, *pass)
		}
		if err != nil {
			return err
		}
		if err := saveToken(resp.AccessToken, resp.ExpiresAt); err != nil {
			return err
		}
		c.token = resp.AccessToken
		if cmd == "register" {
			// guest history now lives on the account
			if err := clearGuestID(); err != nil {
				return err
			}
			c.guest = ""
		}
		printJSON(out, resp.Usage)
		if resp.Imported > 0 {
			fmt.Fprintf(out, "imported %d guest rewrites\n", resp.Imported)
		}
		return nil

	case "logout":
		if c.token == "" {
			return errors.New("not logged in")
		}
		err := c.logout(ctx)
		if cerr := clearToken(); cerr != nil && err == nil {
			err = cerr
		}
		if err != nil {
			return err
		}
		fmt.Fprintln(out, "ok")
		return nil

	case "humanize":
		fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
		file := fs.String("file", "", "read text from file, - for stdin")
		readability := fs.String("readability", "", "Elementary|Middle School|High School|University|Graduate")
		purpose := fs.String("purpose", "", "General Writing|Essay|Email|Creative Writing|Business")
		strength := fs.String("strength", "", "More Human|Balanced|More Original")
		if err := fs.Parse(args); err != nil {
			return err
		}
		text := strings.Join(fs.Args(), " ")
		if *file != "" {
			b, err := readAll(*file)
			if err != nil {
				return err
			}
			text = string(b)
		}
		if strings.TrimSpace(text) == "" {
			return errors.New("no text given")
		}
		resp, err := c.humanize(ctx, humanizeReq{Text: text, Readability: *readability, Purpose: *purpose, Strength: *strength})
		if err != nil {
			return err
		}
		fmt.Fprintln(out, resp.Record.RewrittenText)
		printJSON(os.Stderr, resp.Usage)
		return nil

	case "history":
		fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
		limit := fs.Int("limit", 0, "max records")
		offset := fs.Int("offset", 0, "skip records")
		if err := fs.Parse(args); err != nil {
			return err
		}
		resp, err := c.history(ctx, *limit, *offset)
		if err != nil {
			return err
		}
		printJSON(out, resp.Rewrites)
		return nil

	case "account":
		fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
		del := fs.Bool("delete", false, "delete the account")
		if err := fs.Parse(args); err != nil {
			return err
		}
		if *del {
			if err := c.deleteAccount(ctx); err != nil {
				return err
			}
			if err := clearToken(); err != nil {
				return err
			}
			fmt.Fprintln(out, "deleted")
			return nil
		}
		resp, err := c.account(ctx)
		if err != nil {
			return err
		}
		printJSON(out, resp)
		return nil

	case "plans":
		ps, err := c.plans(ctx)
		if err != nil {
			return err
		}
		printJSON(out, ps)
		return nil
	}
	return fmt.Errorf("unknown command %q", cmd)
}
